package timesync

import (
	"sync/atomic"
	"time"

	"github.com/rigado/hciuart"
)

// DefaultPresentationOffset separates the reference, the rising edge and
// the falling edge.
const DefaultPresentationOffset = 10 * time.Millisecond

// State is the step of the presentation toggle.
type State uint32

const (
	Idle State = iota
	AwaitingReference
	AwaitingPresentation
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingReference:
		return "awaiting reference"
	case AwaitingPresentation:
		return "awaiting presentation"
	default:
		return "unknown"
	}
}

// Presentation drives a line high one offset after a reference time and low
// one offset after that, so the pulse marks a pipeline of constant latency.
// State changes only in the timer interrupt and in the arming calls, which
// run with the timer interrupt disabled.
type Presentation struct {
	timer     CompareTimer
	line      Line
	offset    uint32
	threshold uint32
	log       hciuart.Logger

	state atomic.Uint32
	ref   uint32
}

func NewPresentation(timer CompareTimer, line Line, offset time.Duration, threshold uint32, l hciuart.Logger) *Presentation {
	if offset <= 0 {
		offset = DefaultPresentationOffset
	}
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	p := &Presentation{
		timer:     timer,
		line:      line,
		offset:    durationUS(offset),
		threshold: threshold,
		log:       hciuart.ComponentLogger(l, "presentation"),
	}
	timer.SetHandler(p.OnCompare)
	return p
}

// ArmAt starts a pulse for reference time ref, replacing any pulse in
// progress. It must not be called from the timer interrupt.
func (p *Presentation) ArmAt(ref uint32) {
	p.timer.DisableIRQ()
	defer p.timer.EnableIRQ()

	p.arm(ref)
}

// ArmIn starts a pulse whose reference is delay after the current counter
// value, read with the capture loop. It returns the reference.
func (p *Presentation) ArmIn(delay time.Duration) uint32 {
	p.timer.DisableIRQ()
	defer p.timer.EnableIRQ()

	now := uint32(Capture(p.timer, p.threshold))
	ref := now + durationUS(delay)
	p.log.Infof("toggle timer now %d, reference %d", now, ref)
	p.arm(ref)
	return ref
}

func (p *Presentation) arm(ref uint32) {
	if s := p.State(); s != Idle {
		p.log.Warnf("re-armed while %v", s)
	}
	p.ref = ref
	p.state.Store(uint32(AwaitingReference))
	p.line.Set(false)
	p.timer.SetCompare(ref + p.offset)
	p.timer.ClearIRQ()
}

// OnCompare advances the machine. It is the timer interrupt handler.
func (p *Presentation) OnCompare(captured uint32) {
	switch State(p.state.Load()) {
	case AwaitingReference:
		p.state.Store(uint32(AwaitingPresentation))
		p.line.Set(true)
		p.timer.SetCompare(captured + p.offset)
		p.log.Infof("reference %d: rise at %d", p.ref, captured)

	case AwaitingPresentation:
		p.state.Store(uint32(Idle))
		p.line.Set(false)
		p.log.Infof("presentation: fall at %d, %v after reference", captured, Since(p.ref, captured))

	default:
		p.log.Warnf("compare at %d while idle", captured)
	}
}

func (p *Presentation) State() State {
	return State(p.state.Load())
}
