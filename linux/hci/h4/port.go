package h4

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/rigado/hciuart/irq"
	"github.com/smallnest/ringbuffer"
)

// Port is the byte source under the H4 transport. It mirrors an interrupt
// driven UART: TryRead and TryWrite never block, and the ISR fires while a
// direction is enabled and ready.
type Port interface {
	TryRead(b []byte) int
	TryWrite(b []byte) int

	RxReady() bool
	TxReady() bool

	// EnableRx and EnableTx may service the ISR before returning, so they
	// must not be called from interrupt context.
	EnableRx()
	DisableRx()
	EnableTx()
	DisableTx()

	// PollOut writes one byte synchronously, bypassing the tx FIFO and the
	// interrupt.
	PollOut(b byte)

	SetISR(isr func())
}

const DefaultFIFOSize = 64

// FIFOPort is a UART model with bounded rx and tx hardware FIFOs. Wire bytes
// arrive through Inject; transmitted bytes leave through Shift into the wire
// writer.
type FIFOPort struct {
	line *irq.Line
	rx   *ringbuffer.RingBuffer
	tx   *ringbuffer.RingBuffer
	size int

	rxOn atomic.Bool
	txOn atomic.Bool

	wmu     sync.Mutex
	wire    io.Writer
	scratch []byte

	kick chan struct{}
}

// NewFIFOPort returns a port with both directions disabled. wire receives
// every transmitted byte.
func NewFIFOPort(name string, size int, wire io.Writer) *FIFOPort {
	if size <= 0 {
		size = DefaultFIFOSize
	}
	return &FIFOPort{
		line:    irq.NewLine(name),
		rx:      ringbuffer.New(size),
		tx:      ringbuffer.New(size),
		size:    size,
		wire:    wire,
		scratch: make([]byte, size),
		kick:    make(chan struct{}, 1),
	}
}

func (p *FIFOPort) TryRead(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n, _ := p.rx.TryRead(b)
	return n
}

func (p *FIFOPort) TryWrite(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n, _ := p.tx.TryWrite(b)
	if n > 0 {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
	return n
}

func (p *FIFOPort) RxReady() bool {
	return p.rxOn.Load() && p.rx.Length() > 0
}

func (p *FIFOPort) TxReady() bool {
	return p.txOn.Load() && p.tx.Free() > 0
}

func (p *FIFOPort) EnableRx() {
	g := irq.Mask()
	p.rxOn.Store(true)
	g.Release()

	if p.RxReady() {
		p.line.Raise()
	}
}

func (p *FIFOPort) DisableRx() {
	p.rxOn.Store(false)
}

// EnableTx arms the transmitter. The enable is ordered against a running
// ISR, so a service routine that just disarmed tx cannot swallow it.
func (p *FIFOPort) EnableTx() {
	g := irq.Mask()
	p.txOn.Store(true)
	g.Release()

	if p.TxReady() {
		p.line.Raise()
	}
}

func (p *FIFOPort) DisableTx() {
	p.txOn.Store(false)
}

func (p *FIFOPort) PollOut(b byte) {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	p.flushLocked()
	p.wire.Write([]byte{b})
}

func (p *FIFOPort) SetISR(isr func()) {
	p.line.SetISR(isr)
}

// Inject delivers wire bytes into the rx FIFO, servicing the ISR as the FIFO
// fills. It returns how many bytes were accepted; the rest overran a FIFO
// nobody drains.
func (p *FIFOPort) Inject(b []byte) int {
	total := 0
	for len(b) > 0 {
		n, _ := p.rx.TryWrite(b)
		total += n
		b = b[n:]

		if p.RxReady() {
			p.line.Raise()
		}
		if n == 0 {
			break
		}
	}
	return total
}

// Shift moves everything in the tx FIFO to the wire and services the ISR if
// the transmitter wants more. It returns the number of bytes moved.
func (p *FIFOPort) Shift() int {
	p.wmu.Lock()
	n := p.flushLocked()
	p.wmu.Unlock()

	if p.TxReady() {
		p.line.Raise()
	}
	return n
}

func (p *FIFOPort) flushLocked() int {
	n, _ := p.tx.TryRead(p.scratch)
	if n > 0 {
		p.wire.Write(p.scratch[:n])
	}
	return n
}

// Kick signals after the tx FIFO received bytes.
func (p *FIFOPort) Kick() <-chan struct{} {
	return p.kick
}

// Line exposes the interrupt line of the port.
func (p *FIFOPort) Line() *irq.Line {
	return p.line
}
