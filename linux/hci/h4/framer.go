package h4

import (
	"sync/atomic"

	"github.com/rigado/hciuart"
	"github.com/rigado/hciuart/linux/hci"
)

// discardLen sizes the scratch used to drop bytes: the type byte plus 32
// bytes of ACL or event data.
const discardLen = 33

type framerState uint8

const (
	stateIdle framerState = iota
	stateHeader
	statePayload
	stateDiscard
)

func (s framerState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateHeader:
		return "header"
	case statePayload:
		return "payload"
	case stateDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// Reader is the receive half of a Port.
type Reader interface {
	TryRead(b []byte) int
}

// Allocator hands out packet buffers without blocking. *hci.Pool is one.
type Allocator interface {
	Get(k hci.Kind) *hci.Buffer
}

// Sink takes ownership of a completed packet. It must not block; false
// means the packet was not taken.
type Sink func(p *hci.Packet) bool

// FramerStats counts what the framer did with the stream.
type FramerStats struct {
	Packets       uint64
	DroppedTypes  uint64
	Discarded     uint64
	AllocFailures uint64
	Overflows     uint64
}

// Framer rebuilds host to controller packets from the rx byte stream. All
// of its state belongs to the interrupt context that calls Service.
type Framer struct {
	src   Reader
	alloc Allocator
	sink  Sink
	log   hciuart.Logger

	state     framerState
	kind      hci.Kind
	hdr       [hci.MaxHdrLen]byte
	hdrLen    int
	remaining int
	buf       *hci.Buffer
	discard   [discardLen]byte

	packets       atomic.Uint64
	droppedTypes  atomic.Uint64
	discarded     atomic.Uint64
	allocFailures atomic.Uint64
	overflows     atomic.Uint64
}

func NewFramer(src Reader, alloc Allocator, sink Sink, l hciuart.Logger) *Framer {
	return &Framer{
		src:   src,
		alloc: alloc,
		sink:  sink,
		log:   hciuart.ComponentLogger(l, "framer"),
	}
}

// Service drains every byte currently available, advancing the state
// machine, and returns once a read yields nothing.
func (f *Framer) Service() {
	for {
		var n int

		switch f.state {
		case stateIdle:
			var t [1]byte
			n = f.src.TryRead(t[:])
			if n == 0 {
				break
			}
			k := hci.Kind(t[0])
			if !k.HostToController() {
				f.log.Warnf("unknown header 0x%02x", t[0])
				f.droppedTypes.Add(1)
				break
			}
			f.kind = k
			f.hdrLen = k.HeaderLen()
			f.remaining = f.hdrLen
			f.state = stateHeader

		case stateHeader:
			off := f.hdrLen - f.remaining
			n = f.src.TryRead(f.hdr[off:f.hdrLen])
			f.remaining -= n
			if f.remaining == 0 {
				f.headerDone()
			}

		case statePayload:
			n = f.src.TryRead(f.buf.Tail()[:f.remaining])
			f.buf.Extend(n)
			f.remaining -= n
			if f.remaining == 0 {
				f.complete()
			}

		case stateDiscard:
			to := f.remaining
			if to > len(f.discard) {
				to = len(f.discard)
			}
			n = f.src.TryRead(f.discard[:to])
			f.remaining -= n
			f.discarded.Add(uint64(n))
			if f.remaining == 0 {
				f.state = stateIdle
			}
		}

		f.log.Debugf("read %d in %v", n, f.state)
		if n == 0 {
			return
		}
	}
}

// headerDone runs once the fixed header is in. Buffer exhaustion here drops
// the frame without discarding its payload, since the header has already
// been consumed from the stream.
func (f *Framer) headerDone() {
	buf := f.alloc.Get(f.kind)
	if buf == nil {
		f.log.Errorf("no available %v buffers", f.kind)
		f.allocFailures.Add(1)
		f.state = stateIdle
		return
	}

	hdr := f.hdr[:f.hdrLen]
	f.remaining = hci.PayloadLen(f.kind, hdr)

	if !buf.Append(hdr) || f.remaining > buf.Tailroom() {
		f.log.Errorf("not enough space in buffer: %v payload %d", f.kind, f.remaining)
		buf.Free()
		f.allocFailures.Add(1)
		f.state = stateDiscard
		if f.remaining == 0 {
			f.state = stateIdle
		}
		return
	}

	f.buf = buf
	f.state = statePayload
	if f.remaining == 0 {
		f.complete()
	}
}

func (f *Framer) complete() {
	p := f.buf.Packet()
	f.buf = nil
	f.state = stateIdle
	f.packets.Add(1)

	f.log.Debugf("putting rx packet in queue: %v", p)
	if !f.sink(p) {
		f.log.Errorf("inbound queue full, dropping %v", p)
		f.overflows.Add(1)
		p.Release()
	}
}

// Stats returns a snapshot of the counters.
func (f *Framer) Stats() FramerStats {
	return FramerStats{
		Packets:       f.packets.Load(),
		DroppedTypes:  f.droppedTypes.Load(),
		Discarded:     f.discarded.Load(),
		AllocFailures: f.allocFailures.Load(),
		Overflows:     f.overflows.Load(),
	}
}
