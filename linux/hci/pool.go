package hci

import (
	"fmt"
)

// BufferConfig sizes the buffers of one packet kind. Size includes the type
// byte and header. Count 0 means allocate on demand without bound.
type BufferConfig struct {
	Size  int `mapstructure:"size" yaml:"size"`
	Count int `mapstructure:"count" yaml:"count"`
}

// PoolConfig holds the per-kind buffer budget for host to controller traffic.
type PoolConfig struct {
	Command BufferConfig `mapstructure:"cmd" yaml:"cmd"`
	ACL     BufferConfig `mapstructure:"acl" yaml:"acl"`
	ISO     BufferConfig `mapstructure:"iso" yaml:"iso"`
}

// DefaultPoolConfig follows a typical LE controller: 255 byte command
// parameters, 251 byte LE data, ISO SDUs of 251 bytes plus timestamp and SDU
// header.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Command: BufferConfig{Size: 1 + cmdHdrLen + maxCmdParamLen, Count: 4},
		ACL:     BufferConfig{Size: 1 + aclHdrLen + 251, Count: 8},
		ISO:     BufferConfig{Size: 1 + isoHdrLen + 8 + 251, Count: 8},
	}
}

// Pool hands out fixed-size buffers per kind without ever blocking.
type Pool struct {
	slabs map[Kind]*slab
}

type slab struct {
	size  int
	count int
	free  chan []byte
}

func newSlab(c BufferConfig) (*slab, error) {
	if c.Size < 1+MaxHdrLen {
		return nil, fmt.Errorf("buffer size %d too small", c.Size)
	}
	if c.Count < 0 {
		return nil, fmt.Errorf("invalid buffer count %d", c.Count)
	}

	s := &slab{size: c.Size, count: c.Count}
	if c.Count > 0 {
		s.free = make(chan []byte, c.Count)
		for i := 0; i < c.Count; i++ {
			s.free <- make([]byte, 0, c.Size)
		}
	}
	return s, nil
}

func (s *slab) get() []byte {
	if s.free == nil {
		return make([]byte, 0, s.size)
	}
	select {
	case b := <-s.free:
		return b[:0]
	default:
		return nil
	}
}

func (s *slab) put(b []byte) {
	if s.free == nil || cap(b) != s.size {
		return
	}
	select {
	case s.free <- b[:0]:
	default:
	}
}

// NewPool builds a pool from cfg.
func NewPool(cfg PoolConfig) (*Pool, error) {
	p := &Pool{slabs: map[Kind]*slab{}}
	for k, c := range map[Kind]BufferConfig{
		PktTypeCommand: cfg.Command,
		PktTypeACLData: cfg.ACL,
		PktTypeISOData: cfg.ISO,
	} {
		s, err := newSlab(c)
		if err != nil {
			return nil, fmt.Errorf("%v pool: %v", k, err)
		}
		p.slabs[k] = s
	}
	return p, nil
}

// Get returns a buffer for kind k holding just the type byte, or nil when
// the kind has no buffers left.
func (p *Pool) Get(k Kind) *Buffer {
	s, ok := p.slabs[k]
	if !ok {
		return nil
	}
	b := s.get()
	if b == nil {
		return nil
	}
	return &Buffer{b: append(b, byte(k)), home: s}
}

// Available reports free buffers for k, -1 when unbounded.
func (p *Pool) Available(k Kind) int {
	s, ok := p.slabs[k]
	if !ok {
		return 0
	}
	if s.free == nil {
		return -1
	}
	return len(s.free)
}

// Buffer is a packet under construction.
type Buffer struct {
	b    []byte
	home *slab
}

func (b *Buffer) Len() int {
	return len(b.b)
}

// Tailroom is the number of bytes that still fit.
func (b *Buffer) Tailroom() int {
	return cap(b.b) - len(b.b)
}

// Append copies p in. It reports false, leaving the buffer untouched, when p
// does not fit.
func (b *Buffer) Append(p []byte) bool {
	if len(p) > b.Tailroom() {
		return false
	}
	b.b = append(b.b, p...)
	return true
}

// Tail exposes the free space so a reader can fill it in place; Extend
// commits what was written.
func (b *Buffer) Tail() []byte {
	return b.b[len(b.b):cap(b.b)]
}

// Extend grows the buffer over n bytes previously written through Tail.
func (b *Buffer) Extend(n int) {
	b.b = b.b[:len(b.b)+n]
}

// Packet seals the buffer. The buffer must not be used afterwards.
func (b *Buffer) Packet() *Packet {
	p := &Packet{b: b.b, home: b.home}
	b.b, b.home = nil, nil
	return p
}

// Free returns an unfinished buffer to its pool.
func (b *Buffer) Free() {
	if b.home != nil && b.b != nil {
		b.home.put(b.b)
	}
	b.b, b.home = nil, nil
}
