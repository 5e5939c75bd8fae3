package h4

import (
	"sync/atomic"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/pkg/errors"
	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/linux/hci"
)

const DefaultTxQueueSize = 64

// Scheduler drains outbound packets onto the port one chunk per tx ready
// interrupt. Enqueue may be called from any goroutine; OnTxReady only from
// the port ISR.
type Scheduler struct {
	port Port
	q    mpmc.RingBuffer[*hci.Packet]
	log  hciuart.Logger

	cur *hci.Packet
	off int

	sent atomic.Uint64
}

func NewScheduler(port Port, size int, l hciuart.Logger) *Scheduler {
	if size <= 0 {
		size = DefaultTxQueueSize
	}
	return &Scheduler{
		port: port,
		q:    mpmc.New[*hci.Packet](uint32(size)),
		log:  hciuart.ComponentLogger(l, "scheduler"),
	}
}

// Enqueue queues p for transmission and arms the transmitter. On success
// the scheduler owns p; on error the caller keeps it.
func (s *Scheduler) Enqueue(p *hci.Packet) error {
	if p == nil || p.Len() == 0 {
		return errors.New("empty packet")
	}
	if err := s.q.Enqueue(p); err != nil {
		return errors.Wrapf(hci.ErrQueueFull, "tx %v", p)
	}

	s.log.Debugf("queued %v", p)
	s.port.EnableTx()
	return nil
}

// OnTxReady writes one chunk of the current packet. With nothing left to
// send it disarms the transmitter.
func (s *Scheduler) OnTxReady() {
	if s.cur == nil {
		p, err := s.q.Dequeue()
		if err != nil || p == nil {
			s.port.DisableTx()
			return
		}
		s.cur, s.off = p, 0
	}

	b := s.cur.Bytes()
	s.off += s.port.TryWrite(b[s.off:])
	if s.off >= len(b) {
		s.cur.Release()
		s.cur = nil
		s.sent.Add(1)
	}
}

// Sent counts fully transmitted packets.
func (s *Scheduler) Sent() uint64 {
	return s.sent.Load()
}
