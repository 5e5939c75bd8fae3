package timesync

import (
	"encoding/binary"

	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/linux/hci"
)

// OCFIsoTimesync is the vendor command that toggles the timesync line and
// returns the toggle time.
const OCFIsoTimesync = 0x200

// OpIsoTimesync is the full opcode, 0xFE00.
var OpIsoTimesync = hci.VendorOpcode(OCFIsoTimesync)

// Sender queues a packet for the host. On error the caller keeps p.
type Sender interface {
	Send(p *hci.Packet) error
}

// IsoTimesync handles the timesync vendor command.
type IsoTimesync struct {
	toggler *Toggler
	out     Sender
	log     hciuart.Logger
}

func NewIsoTimesync(t *Toggler, out Sender, l hciuart.Logger) *IsoTimesync {
	return &IsoTimesync{
		toggler: t,
		out:     out,
		log:     hciuart.ComponentLogger(l, "iso-timesync"),
	}
}

// Register installs the handler; the command carries one reserved octet.
func (c *IsoTimesync) Register(reg *hci.Registry) error {
	return reg.Register(hci.CmdExt{
		Opcode:      OpIsoTimesync,
		MinParamLen: 1,
		Func:        c.Handle,
	})
}

// Handle toggles, then answers with Command Complete carrying success and
// the toggle time, little endian.
func (c *IsoTimesync) Handle(cmd *hci.Packet) uint8 {
	c.log.Infof("%v", cmd)
	if pl := cmd.Payload(); len(pl) > 0 {
		c.log.Debugf("param 0x%02x", pl[0])
	}

	ts := c.toggler.ToggleAndCapture()

	rp := binary.LittleEndian.AppendUint32([]byte{hci.StatusSuccess}, uint32(ts))
	rsp := hci.CommandComplete(OpIsoTimesync, rp)
	if err := c.out.Send(rsp); err != nil {
		c.log.Errorf("can't queue response: %v", err)
		return hci.StatusUnspecified
	}

	return hci.StatusExtHandled
}
