package bridge

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
)

func (b *Bridge) SetUart(path string, baud uint) error {
	b.cfg.Uart.Path = path
	b.cfg.Uart.Baud = baud
	return nil
}

func (b *Bridge) SetControllerID(id int) error {
	if id < -1 {
		return errors.Errorf("invalid controller id %d", id)
	}
	b.cfg.Controller.HCIDev = id
	return nil
}

func (b *Bridge) SetQueueSizes(inbound, outbound int) error {
	b.cfg.Queues.Inbound = inbound
	b.cfg.Queues.Outbound = outbound
	return nil
}

func (b *Bridge) SetCaptureThreshold(us uint32) error {
	b.cfg.Timesync.ThresholdUS = us
	return nil
}

func (b *Bridge) SetPresentationOffset(d time.Duration) error {
	b.cfg.Timesync.PresentationUS = int(d / time.Microsecond)
	return nil
}

func (b *Bridge) SetStartupArm(d time.Duration) error {
	b.cfg.Timesync.StartupDelayUS = int(d / time.Microsecond)
	return nil
}

func (b *Bridge) SetWaitNOP(enable bool) error {
	b.cfg.WaitNOP = enable
	return nil
}

// SetErrorHandler sets the function called when the dispatch or controller
// loop stops on an error.
func (b *Bridge) SetErrorHandler(handler func(error)) error {
	b.errHandler = handler
	return nil
}

// SetSubmitErrorHandler sets the function called for every host packet the
// bridge could not forward. The bridge keeps running either way.
func (b *Bridge) SetSubmitErrorHandler(handler func(error)) error {
	b.submitErrHandler = handler
	return nil
}

func (b *Bridge) SetLogger(l hciuart.Logger) error {
	if l == nil {
		return errors.New("nil logger")
	}
	b.log = l
	return nil
}
