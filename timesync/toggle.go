package timesync

import (
	"github.com/rigado/hciuart/irq"
)

// Toggler flips a line and reports when it did.
type Toggler struct {
	clock     Clock
	line      Line
	threshold uint32
}

func NewToggler(c Clock, line Line, threshold uint32) *Toggler {
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	return &Toggler{clock: c, line: line, threshold: threshold}
}

// ToggleAndCapture masks interrupts, captures a verified timestamp, toggles
// the line and unmasks. It must not be called from interrupt context.
func (t *Toggler) ToggleAndCapture() Sample {
	g := irq.Mask()
	defer g.Release()

	s := Capture(t.clock, t.threshold)
	t.line.Toggle()
	return s
}
