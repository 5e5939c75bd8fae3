package timesync

import (
	"sync"
	"time"

	"github.com/rigado/hciuart/irq"
)

// CompareTimer is a free running microsecond timer with one compare
// channel. The handler runs in the timer's interrupt context with the value
// the counter had when the compare matched.
type CompareTimer interface {
	Clock

	// SetCompare replaces the pending compare, if any.
	SetCompare(at uint32)
	DisableIRQ()
	EnableIRQ()
	// ClearIRQ drops a compare event that matched while the interrupt was
	// disabled.
	ClearIRQ()
	SetHandler(h func(captured uint32))
}

// SoftTimer is a CompareTimer over a host clock, fired by time.AfterFunc.
type SoftTimer struct {
	clock Clock
	line  *irq.Line

	mu      sync.Mutex
	t       *time.Timer
	gen     uint64
	handler func(uint32)

	// compare event waiting for the ISR, valid while firedGen == gen
	firedGen uint64
	captured uint32
}

func NewSoftTimer(c Clock) *SoftTimer {
	s := &SoftTimer{
		clock: c,
		line:  irq.NewLine("timer"),
	}
	s.line.SetISR(s.isr)
	return s
}

func (s *SoftTimer) Now() uint32 {
	return s.clock.Now()
}

func (s *SoftTimer) SetCompare(at uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.t != nil {
		s.t.Stop()
	}
	s.gen++
	gen := s.gen

	// a compare behind the counter by less than half the range is due now
	var d time.Duration
	if ahead := int32(at - s.clock.Now()); ahead > 0 {
		d = time.Duration(ahead) * time.Microsecond
	}
	s.t = time.AfterFunc(d, func() { s.fire(gen, at) })
}

func (s *SoftTimer) fire(gen uint64, at uint32) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.t = nil
	s.firedGen = gen
	s.captured = at
	s.mu.Unlock()

	s.line.Raise()
}

// isr drops an event whose compare was replaced after it matched.
func (s *SoftTimer) isr() {
	s.mu.Lock()
	if s.firedGen == 0 || s.firedGen != s.gen {
		s.mu.Unlock()
		return
	}
	s.firedGen = 0
	h, at := s.handler, s.captured
	s.mu.Unlock()

	if h != nil {
		h(at)
	}
}

func (s *SoftTimer) DisableIRQ() {
	s.line.Disable()
}

func (s *SoftTimer) EnableIRQ() {
	s.line.Enable()
}

func (s *SoftTimer) ClearIRQ() {
	s.line.ClearPending()
}

func (s *SoftTimer) SetHandler(h func(captured uint32)) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Stop cancels the pending compare.
func (s *SoftTimer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.t != nil {
		s.t.Stop()
		s.t = nil
	}
	s.gen++
}
