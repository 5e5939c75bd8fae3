package h4

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/linux/hci"
)

// Dispatcher moves framed packets from the inbound queue into the stack.
type Dispatcher struct {
	in    <-chan *hci.Packet
	stack hci.Stack
	log   hciuart.Logger

	onError func(error)

	forwarded atomic.Uint64
	handled   atomic.Uint64
	errs      atomic.Uint64
}

func NewDispatcher(in <-chan *hci.Packet, stack hci.Stack, l hciuart.Logger) *Dispatcher {
	return &Dispatcher{
		in:    in,
		stack: stack,
		log:   hciuart.ComponentLogger(l, "dispatch"),
	}
}

// SetErrorHandler is called with every forwarding failure.
func (d *Dispatcher) SetErrorHandler(f func(error)) {
	d.onError = f
}

// Run blocks until ctx is done or the inbound queue is closed.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-d.in:
			if !ok {
				return nil
			}
			d.dispatch(p)
		}

		// let other work run if the queue keeps getting new data
		runtime.Gosched()
	}
}

func (d *Dispatcher) dispatch(p *hci.Packet) {
	desc := p.String()
	err := d.stack.Submit(p)

	switch hci.Classify(err) {
	case hci.Forwarded:
		d.forwarded.Add(1)
	case hci.HandledLocally:
		d.handled.Add(1)
		p.Release()
	case hci.Failed:
		d.errs.Add(1)
		d.log.Errorf("unable to send %s: %v", desc, err)
		p.Release()
		if d.onError != nil {
			d.onError(err)
		}
	}
}

// Errors counts packets the stack rejected.
func (d *Dispatcher) Errors() uint64 {
	return d.errs.Load()
}

func (d *Dispatcher) Forwarded() uint64 {
	return d.forwarded.Load()
}

func (d *Dispatcher) Handled() uint64 {
	return d.handled.Load()
}
