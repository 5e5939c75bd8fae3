// Package parser decodes the controller to host packets the timesync
// correlator measures. Every function takes a complete H:4 packet, type
// byte included.
package parser

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var EmptyOrNilPacket = errors.New("nil/empty packet")

const (
	h4ISO = 0x05
	h4Evt = 0x04

	evtCommandComplete = 0x0e

	isoHdrLen         = 4
	isoLenMask        = 0x3fff
	isoTSLen          = 4
	isoSDUHdr         = 4
	sduLenMask        = 0x0fff
	handleMask        = 0x0fff
	opLEReadISOTXSync = 0x2061
)

// PB flag values of an ISO data packet.
const (
	PBFirst        = 0x0
	PBContinuation = 0x1
	PBComplete     = 0x2
	PBLast         = 0x3
)

// ISOPacket is an ISO data packet header with its data load split out.
type ISOPacket struct {
	Handle       uint16
	PBFlag       uint8
	HasTimestamp bool
	Length       int

	// Timestamp is the SDU synchronization reference, valid with HasTimestamp.
	Timestamp uint32

	// Sequence, SDULength and PacketStatus are present only in the first
	// fragment of an SDU or a complete SDU.
	HasSDUHeader bool
	Sequence     uint16
	SDULength    uint16
	PacketStatus uint8

	SDU []byte
}

// ISOData decodes an ISO data packet.
func ISOData(b []byte) (*ISOPacket, error) {
	if len(b) == 0 {
		return nil, EmptyOrNilPacket
	}
	if b[0] != h4ISO {
		return nil, fmt.Errorf("not an iso packet: type 0x%02x", b[0])
	}
	if len(b) < 1+isoHdrLen {
		return nil, fmt.Errorf("short iso header: %v bytes", len(b))
	}

	hf := binary.LittleEndian.Uint16(b[1:3])
	p := &ISOPacket{
		Handle:       hf & handleMask,
		PBFlag:       uint8(hf>>12) & 0x3,
		HasTimestamp: hf&(1<<14) != 0,
		Length:       int(binary.LittleEndian.Uint16(b[3:5]) & isoLenMask),
	}

	load := b[1+isoHdrLen:]
	if len(load) != p.Length {
		return nil, fmt.Errorf("iso length mismatch: header %v, have %v", p.Length, len(load))
	}

	if p.HasTimestamp {
		if len(load) < isoTSLen {
			return nil, fmt.Errorf("iso timestamp missing")
		}
		p.Timestamp = binary.LittleEndian.Uint32(load)
		load = load[isoTSLen:]
	}

	if p.PBFlag == PBFirst || p.PBFlag == PBComplete {
		if len(load) < isoSDUHdr {
			return nil, fmt.Errorf("iso sdu header missing")
		}
		p.HasSDUHeader = true
		p.Sequence = binary.LittleEndian.Uint16(load)
		sl := binary.LittleEndian.Uint16(load[2:])
		p.SDULength = sl & sduLenMask
		p.PacketStatus = uint8(sl >> 14)
		load = load[isoSDUHdr:]
	}

	p.SDU = load
	return p, nil
}

// CommandCompleteOpcode returns the opcode of a Command Complete event.
func CommandCompleteOpcode(b []byte) (uint16, bool) {
	// type, event code, length, ncmd, opcode
	if len(b) < 6 || b[0] != h4Evt || b[1] != evtCommandComplete {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b[4:6]), true
}

// TXSync holds the return parameters of LE Read ISO TX Sync.
type TXSync struct {
	Status    uint8
	Handle    uint16
	Sequence  uint16
	Timestamp uint32
	Offset    uint32
}

// ISOTXSync decodes the Command Complete event of LE Read ISO TX Sync. A
// failed command carries the status alone.
func ISOTXSync(b []byte) (*TXSync, error) {
	if len(b) == 0 {
		return nil, EmptyOrNilPacket
	}
	op, ok := CommandCompleteOpcode(b)
	if !ok {
		return nil, fmt.Errorf("not a command complete event")
	}
	if op != opLEReadISOTXSync {
		return nil, fmt.Errorf("unexpected opcode 0x%04x", op)
	}

	rp := b[6:]
	if len(rp) < 1 {
		return nil, fmt.Errorf("status missing")
	}
	s := &TXSync{Status: rp[0]}
	if s.Status != 0 {
		return s, nil
	}

	// status, handle, sequence, timestamp, 24-bit offset
	if len(rp) < 12 {
		return nil, fmt.Errorf("short return parameters: want 12, have %v", len(rp))
	}
	s.Handle = binary.LittleEndian.Uint16(rp[1:]) & handleMask
	s.Sequence = binary.LittleEndian.Uint16(rp[3:])
	s.Timestamp = binary.LittleEndian.Uint32(rp[5:])
	s.Offset = uint32(rp[9]) | uint32(rp[10])<<8 | uint32(rp[11])<<16
	return s, nil
}
