// Package irq models interrupt contexts on a host.
//
// Every interrupt service routine runs through a Line and holds the global
// mask while it executes, so ISRs are mutually exclusive with each other and
// with any code holding a Guard returned by Mask. ISRs must run to completion
// and must not raise lines or take the mask themselves.
package irq

import (
	"sync"
	"sync/atomic"
)

var mask sync.Mutex

// Guard is a held global interrupt mask.
type Guard struct {
	once sync.Once
}

// Mask blocks until no ISR is running and keeps all lines from running until
// the returned Guard is released.
func Mask() *Guard {
	mask.Lock()
	return &Guard{}
}

// Release unmasks interrupts. Safe to call more than once.
func (g *Guard) Release() {
	g.once.Do(mask.Unlock)
}

// Line is one interrupt source.
type Line struct {
	name string

	gate     sync.RWMutex
	isr      func()
	disabled bool
	pending  atomic.Bool
	count    atomic.Uint64
}

// NewLine returns an enabled line with no handler attached.
func NewLine(name string) *Line {
	return &Line{name: name}
}

func (l *Line) Name() string {
	return l.name
}

// SetISR attaches the service routine. Raises before the handler is attached
// are latched as pending.
func (l *Line) SetISR(isr func()) {
	l.gate.Lock()
	l.isr = isr
	enabled := !l.disabled
	l.gate.Unlock()
	if isr != nil && enabled && l.pending.Swap(false) {
		l.Raise()
	}
}

// Raise runs the ISR in interrupt context. When the line is disabled the
// request is latched and serviced on Enable.
func (l *Line) Raise() {
	l.gate.RLock()
	defer l.gate.RUnlock()

	if l.disabled || l.isr == nil {
		l.pending.Store(true)
		return
	}

	mask.Lock()
	defer mask.Unlock()
	l.count.Add(1)
	l.isr()
}

// Disable masks this line only. It waits for a running ISR of the line to
// finish, so it must not be called from that ISR.
func (l *Line) Disable() {
	l.gate.Lock()
	l.disabled = true
	l.gate.Unlock()
}

// Enable unmasks the line and services a latched request.
func (l *Line) Enable() {
	l.gate.Lock()
	l.disabled = false
	l.gate.Unlock()

	if l.pending.Swap(false) {
		l.Raise()
	}
}

// ClearPending drops a request latched while the line was disabled.
func (l *Line) ClearPending() {
	l.pending.Store(false)
}

// Serviced reports how many times the ISR ran.
func (l *Line) Serviced() uint64 {
	return l.count.Load()
}
