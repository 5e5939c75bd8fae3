// Package controller is the protocol stack side of the bridge: a raw
// pass-through to a controller that intercepts registered commands.
package controller

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/linux/hci"
)

// Sender delivers packets to the host. On error the caller keeps p.
type Sender interface {
	Send(p *hci.Packet) error
}

// Raw implements hci.Stack over a controller transport carrying one H:4
// packet per Read and Write, such as an HCI user channel.
type Raw struct {
	ctrl io.ReadWriter
	reg  *hci.Registry
	log  hciuart.Logger

	mu      sync.RWMutex
	host    Sender
	observe func(p *hci.Packet)
}

func NewRaw(ctrl io.ReadWriter, reg *hci.Registry, l hciuart.Logger) *Raw {
	if reg == nil {
		reg = hci.NewRegistry()
	}
	return &Raw{
		ctrl: ctrl,
		reg:  reg,
		log:  hciuart.ComponentLogger(l, "raw"),
	}
}

// SetHost sets where controller packets and extension responses go.
func (r *Raw) SetHost(s Sender) {
	r.mu.Lock()
	r.host = s
	r.mu.Unlock()
}

// SetObserver installs a hook that sees every controller packet before it
// is sent to the host.
func (r *Raw) SetObserver(f func(p *hci.Packet)) {
	r.mu.Lock()
	r.observe = f
	r.mu.Unlock()
}

func (r *Raw) Registry() *hci.Registry {
	return r.reg
}

// Submit takes a host packet. A registered command runs its extension and
// yields hci.ErrExtHandled; anything else goes to the controller and is
// released once written.
func (r *Raw) Submit(p *hci.Packet) error {
	if p.Kind() == hci.PktTypeCommand {
		if ext, ok := r.reg.Lookup(p.Opcode()); ok {
			return r.runExt(ext, p)
		}
	}

	if !p.Kind().HostToController() {
		return errors.Errorf("unsupported packet type %v", p.Kind())
	}

	b := p.Bytes()
	n, err := r.ctrl.Write(b)
	if err != nil {
		return errors.Wrapf(err, "can't write %v", p)
	}
	if n != len(b) {
		return errors.Errorf("short write %d of %d", n, len(b))
	}
	p.Release()
	return nil
}

func (r *Raw) runExt(ext hci.CmdExt, p *hci.Packet) error {
	op := p.Opcode()

	status := hci.StatusInvalidParam
	if len(p.Payload()) >= ext.MinParamLen {
		status = ext.Func(p)
	} else {
		r.log.Warnf("%s: %d parameter bytes, want %d", hci.OpcodeString(op), len(p.Payload()), ext.MinParamLen)
	}

	if status != hci.StatusExtHandled {
		rsp := hci.CommandCompleteStatus(op, status)
		if err := r.sendHost(rsp); err != nil {
			r.log.Errorf("can't complete %s: %v", hci.OpcodeString(op), err)
		}
	}
	return hci.ErrExtHandled
}

func (r *Raw) sendHost(p *hci.Packet) error {
	r.mu.RLock()
	host := r.host
	r.mu.RUnlock()

	if host == nil {
		return errors.New("no host attached")
	}
	return host.Send(p)
}

// Run forwards controller packets to the host until ctx is done or the
// controller goes away.
func (r *Raw) Run(ctx context.Context) error {
	b := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.ctrl.Read(b)

		switch {
		case n == 0 && err == nil:
			// read timeout
			continue

		// callers depend on detecting io.EOF, don't wrap it
		case err == io.EOF:
			return err

		case err != nil:
			return errors.Wrap(err, "controller read")
		}

		p := hci.NewPacket(append([]byte(nil), b[:n]...))

		r.mu.RLock()
		observe := r.observe
		r.mu.RUnlock()
		if observe != nil {
			observe(p)
		}

		if err := r.sendHost(p); err != nil {
			r.log.Errorf("failed to send %v: %v", p, err)
			p.Release()
		}
	}
}
