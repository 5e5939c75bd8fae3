package timesync

import (
	"fmt"
	"io"
	"time"

	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/linux/hci"
	"github.com/rigado/hciuart/parser"
)

// Report kinds.
const (
	KindRx = "R"
	KindTx = "T"
)

// Correlator toggles the timesync line for controller to host traffic that
// carries a reference time and reports the toggle time relative to it.
type Correlator struct {
	toggler *Toggler
	out     io.Writer
	journal hciuart.Journal
	log     hciuart.Logger

	now func() time.Time
}

// NewCorrelator writes reports to out and to j; either may be nil.
func NewCorrelator(t *Toggler, out io.Writer, j hciuart.Journal, l hciuart.Logger) *Correlator {
	return &Correlator{
		toggler: t,
		out:     out,
		journal: j,
		log:     hciuart.ComponentLogger(l, "correlator"),
		now:     time.Now,
	}
}

// Observe measures p if it is an ISO data packet with an SDU reference, or
// the Command Complete of LE Read ISO TX Sync. Anything else is ignored.
func (c *Correlator) Observe(p *hci.Packet) (hciuart.Measurement, bool) {
	b := p.Bytes()

	switch p.Kind() {
	case hci.PktTypeISOData:
		d, err := parser.ISOData(b)
		if err != nil {
			c.log.Debugf("iso: %v", err)
			return hciuart.Measurement{}, false
		}
		if !d.HasTimestamp || len(d.SDU) == 0 {
			return hciuart.Measurement{}, false
		}
		ts := c.toggler.ToggleAndCapture()
		return c.report(KindRx, uint32(ts), d.Timestamp, d.SDU[0]), true

	case hci.PktTypeEvent:
		op, ok := parser.CommandCompleteOpcode(b)
		if !ok || op != hci.OpLEReadISOTXSync {
			return hciuart.Measurement{}, false
		}
		s, err := parser.ISOTXSync(b)
		if err != nil {
			c.log.Debugf("tx sync: %v", err)
			return hciuart.Measurement{}, false
		}
		if s.Status != hci.StatusSuccess {
			c.log.Warnf("tx sync failed: %v", hci.ErrCommand(s.Status))
			return hciuart.Measurement{}, false
		}
		ts := c.toggler.ToggleAndCapture()
		return c.report(KindTx, uint32(ts), s.Timestamp, uint8(s.Sequence)), true
	}

	return hciuart.Measurement{}, false
}

func (c *Correlator) report(kind string, toggle, ref uint32, tag uint8) hciuart.Measurement {
	delta := int32(toggle - ref)
	m := hciuart.Measurement{
		Kind:      kind,
		Toggle:    toggle,
		Reference: ref,
		Delta:     delta,
		Tag:       tag,
		Report:    FormatReport(kind, delta, tag),
		At:        c.now(),
	}

	c.log.Infof("toggle %8d - reference %8d -> delta %s", toggle, ref, m.Report)

	if c.out != nil {
		if _, err := io.WriteString(c.out, m.Report); err != nil {
			c.log.Errorf("report: %v", err)
		}
	}
	if c.journal != nil {
		if err := c.journal.Append(m); err != nil {
			c.log.Errorf("journal: %v", err)
		}
	}
	return m
}

// FormatReport renders a measurement the way the report port expects it,
// for example R-01234@5A!.
func FormatReport(kind string, delta int32, tag uint8) string {
	return fmt.Sprintf("%s%+06d@%02X!", kind, delta, tag)
}
