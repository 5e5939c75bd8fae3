package h4

import (
	"sync"

	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/irq"
	"github.com/rigado/hciuart/linux/hci"
)

const DefaultRxQueueSize = 64

// Config sizes the two packet queues.
type Config struct {
	RxQueueSize int
	TxQueueSize int
}

// H4 is the UART side of the bridge. It frames host packets off the port
// into the inbound queue and transmits outbound packets back onto it.
type H4 struct {
	port   Port
	framer *Framer
	sched  *Scheduler
	in     chan *hci.Packet
	log    hciuart.Logger

	hmu  sync.Mutex
	halt func()
}

func New(port Port, alloc Allocator, cfg Config, l hciuart.Logger) *H4 {
	if cfg.RxQueueSize <= 0 {
		cfg.RxQueueSize = DefaultRxQueueSize
	}

	h := &H4{
		port: port,
		in:   make(chan *hci.Packet, cfg.RxQueueSize),
		log:  hciuart.ComponentLogger(l, "h4"),
		halt: func() { select {} },
	}
	h.framer = NewFramer(port, alloc, h.put, l)
	h.sched = NewScheduler(port, cfg.TxQueueSize, l)
	return h
}

// put never blocks; it runs in interrupt context.
func (h *H4) put(p *hci.Packet) bool {
	select {
	case h.in <- p:
		return true
	default:
		return false
	}
}

// Open takes over the port interrupt and starts receiving.
func (h *H4) Open() {
	h.port.DisableRx()
	h.port.DisableTx()
	h.port.SetISR(h.isr)
	h.port.EnableRx()
}

func (h *H4) isr() {
	rx, tx := h.port.RxReady(), h.port.TxReady()
	if !rx && !tx {
		h.log.Debug("spurious interrupt")
	}

	if tx {
		h.sched.OnTxReady()
	}
	if rx {
		h.framer.Service()
	}
}

// Inbound is the queue of framed host packets.
func (h *H4) Inbound() <-chan *hci.Packet {
	return h.in
}

// Dispatcher returns a worker forwarding the inbound queue into stack.
func (h *H4) Dispatcher(stack hci.Stack) *Dispatcher {
	return NewDispatcher(h.in, stack, h.log)
}

// Send queues p for the host. On error p still belongs to the caller.
func (h *H4) Send(p *hci.Packet) error {
	h.log.Debugf("send %v", p)
	return h.sched.Enqueue(p)
}

// SendNOP tells the host the controller is ready by polling out a Command
// Complete for the NOP opcode.
func (h *H4) SendNOP() {
	p := hci.NOPComplete()
	for _, b := range p.Bytes() {
		h.port.PollOut(b)
	}
}

// SetHalt replaces what Fatal does once the diagnostic frame is out. The
// default parks the calling goroutine forever.
func (h *H4) SetHalt(f func()) {
	h.hmu.Lock()
	h.halt = f
	h.hmu.Unlock()
}

// Fatal reports an unrecoverable fault at file:line to the host and halts.
// Transport interrupts stay disabled.
func (h *H4) Fatal(file string, line uint32) {
	g := irq.Mask()
	defer g.Release()

	h.port.DisableRx()
	h.port.DisableTx()

	for _, b := range hci.DebugEvent(file, line) {
		h.port.PollOut(b)
	}
	h.log.Errorf("fatal: %s:%d", file, line)

	h.hmu.Lock()
	halt := h.halt
	h.hmu.Unlock()
	halt()
}

func (h *H4) Stats() FramerStats {
	return h.framer.Stats()
}

func (h *H4) Sent() uint64 {
	return h.sched.Sent()
}
