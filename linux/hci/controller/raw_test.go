package controller

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/linux/hci"
	"github.com/stretchr/testify/require"
)

type fakeCtrl struct {
	mu       sync.Mutex
	written  [][]byte
	writeErr error
	rx       chan []byte
}

func newFakeCtrl() *fakeCtrl {
	return &fakeCtrl{rx: make(chan []byte, 8)}
}

func (c *fakeCtrl) Read(b []byte) (int, error) {
	select {
	case p, ok := <-c.rx:
		if !ok {
			return 0, io.EOF
		}
		return copy(b, p), nil
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (c *fakeCtrl) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), b...))
	return len(b), nil
}

type hostRecorder struct {
	mu  sync.Mutex
	got [][]byte
	err error
}

func (h *hostRecorder) Send(p *hci.Packet) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.got = append(h.got, append([]byte(nil), p.Bytes()...))
	p.Release()
	return nil
}

func newTestRaw(t *testing.T) (*Raw, *fakeCtrl, *hostRecorder) {
	ctrl := newFakeCtrl()
	host := &hostRecorder{}
	r := NewRaw(ctrl, nil, hciuart.NewDiscardLogger())
	r.SetHost(host)
	return r, ctrl, host
}

func TestRawForwardsToController(t *testing.T) {
	r, ctrl, host := newTestRaw(t)

	acl := hci.NewPacket([]byte{0x02, 0x40, 0x00, 0x01, 0x00, 0xaa})
	reset := hci.NewPacket([]byte{0x01, 0x03, 0x0c, 0x00})
	require.NoError(t, r.Submit(acl))
	require.NoError(t, r.Submit(reset))

	require.Equal(t, [][]byte{{0x02, 0x40, 0x00, 0x01, 0x00, 0xaa}, {0x01, 0x03, 0x0c, 0x00}}, ctrl.written)
	require.True(t, acl.Released())
	require.True(t, reset.Released())
	require.Empty(t, host.got)
}

func TestRawExtensionHandled(t *testing.T) {
	r, ctrl, host := newTestRaw(t)

	calls := 0
	require.NoError(t, r.Registry().Register(hci.CmdExt{
		Opcode:      0xfe00,
		MinParamLen: 1,
		Func: func(*hci.Packet) uint8 {
			calls++
			return hci.StatusExtHandled
		},
	}))

	p := hci.NewPacket([]byte{0x01, 0x00, 0xfe, 0x01, 0x00})
	err := r.Submit(p)
	require.Equal(t, hci.ErrExtHandled, err)
	require.Equal(t, hci.HandledLocally, hci.Classify(err))
	require.Equal(t, 1, calls)
	require.Empty(t, ctrl.written)
	require.Empty(t, host.got)
	require.False(t, p.Released(), "caller releases handled packets")
}

func TestRawExtensionDefaultComplete(t *testing.T) {
	r, ctrl, host := newTestRaw(t)

	require.NoError(t, r.Registry().Register(hci.CmdExt{
		Opcode: 0xfc01,
		Func:   func(*hci.Packet) uint8 { return hci.StatusSuccess },
	}))

	require.Equal(t, hci.ErrExtHandled, r.Submit(hci.NewPacket([]byte{0x01, 0x01, 0xfc, 0x00})))
	require.Empty(t, ctrl.written)
	require.Equal(t, [][]byte{{0x04, 0x0e, 0x04, 0x01, 0x01, 0xfc, 0x00}}, host.got)
}

func TestRawExtensionShortParams(t *testing.T) {
	r, _, host := newTestRaw(t)

	called := false
	require.NoError(t, r.Registry().Register(hci.CmdExt{
		Opcode:      0xfe00,
		MinParamLen: 1,
		Func: func(*hci.Packet) uint8 {
			called = true
			return hci.StatusExtHandled
		},
	}))

	require.Equal(t, hci.ErrExtHandled, r.Submit(hci.NewPacket([]byte{0x01, 0x00, 0xfe, 0x00})))
	require.False(t, called)
	require.Equal(t, [][]byte{{0x04, 0x0e, 0x04, 0x01, 0x00, 0xfe, hci.StatusInvalidParam}}, host.got)
}

func TestRawFailures(t *testing.T) {
	r, ctrl, _ := newTestRaw(t)

	err := r.Submit(hci.NewPacket([]byte{0x04, 0x0e, 0x00}))
	require.Error(t, err)
	require.Equal(t, hci.Failed, hci.Classify(err))

	ctrl.writeErr = errors.New("bus error")
	p := hci.NewPacket([]byte{0x02, 0x40, 0x00, 0x00, 0x00})
	err = r.Submit(p)
	require.Error(t, err)
	require.Equal(t, hci.Failed, hci.Classify(err))
	require.False(t, p.Released())
}

func TestRawRun(t *testing.T) {
	r, ctrl, host := newTestRaw(t)

	var seen []hci.Kind
	r.SetObserver(func(p *hci.Packet) { seen = append(seen, p.Kind()) })

	ctrl.rx <- []byte{0x04, 0x0e, 0x04, 0x01, 0x03, 0x0c, 0x00}
	ctrl.rx <- []byte{0x05, 0x60, 0x20, 0x01, 0x00, 0x01}
	close(ctrl.rx)

	require.Equal(t, io.EOF, r.Run(context.Background()))
	require.Equal(t, [][]byte{
		{0x04, 0x0e, 0x04, 0x01, 0x03, 0x0c, 0x00},
		{0x05, 0x60, 0x20, 0x01, 0x00, 0x01},
	}, host.got)
	require.Equal(t, []hci.Kind{hci.PktTypeEvent, hci.PktTypeISOData}, seen)
}

func TestRawRunStops(t *testing.T) {
	r, _, host := newTestRaw(t)
	host.err = hci.ErrQueueFull

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, r.Run(ctx))
}
