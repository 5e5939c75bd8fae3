package hci

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

const maxCmdParamLen = 255

// Packet is one complete H:4 framed HCI unit: type byte, header, payload.
// A Packet has exactly one owner; whoever holds it last calls Release.
type Packet struct {
	b        []byte
	home     *slab
	released atomic.Bool
}

// NewPacket wraps b, which must start with the type byte. The packet owns b
// from here on.
func NewPacket(b []byte) *Packet {
	return &Packet{b: b}
}

// Kind is the H:4 type byte.
func (p *Packet) Kind() Kind {
	if len(p.b) == 0 {
		return 0
	}
	return Kind(p.b[0])
}

// Bytes is the full wire form, type byte included.
func (p *Packet) Bytes() []byte {
	return p.b
}

func (p *Packet) Len() int {
	return len(p.b)
}

// Header is the fixed header following the type byte.
func (p *Packet) Header() []byte {
	n := p.Kind().HeaderLen()
	if len(p.b) < 1+n {
		return nil
	}
	return p.b[1 : 1+n]
}

// Payload is everything after the header.
func (p *Packet) Payload() []byte {
	n := p.Kind().HeaderLen()
	if len(p.b) < 1+n {
		return nil
	}
	return p.b[1+n:]
}

// Opcode is the command opcode of a Command packet, 0 otherwise.
func (p *Packet) Opcode() uint16 {
	if p.Kind() != PktTypeCommand || len(p.b) < 1+cmdHdrLen {
		return 0
	}
	return binary.LittleEndian.Uint16(p.b[1:3])
}

// Release hands the backing buffer back to its pool. Only the first call has
// any effect.
func (p *Packet) Release() {
	if p == nil || p.released.Swap(true) {
		return
	}
	if p.home != nil {
		p.home.put(p.b)
	}
	p.b = nil
}

// Released reports whether Release has been called.
func (p *Packet) Released() bool {
	return p.released.Load()
}

func (p *Packet) String() string {
	if p.Kind() == PktTypeCommand {
		return fmt.Sprintf("%v op %s len %d", p.Kind(), OpcodeString(p.Opcode()), len(p.b))
	}
	return fmt.Sprintf("%v len %d", p.Kind(), len(p.b))
}
