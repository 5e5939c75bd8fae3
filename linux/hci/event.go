package hci

import (
	"encoding/binary"
	"path"
)

// CommandComplete builds an H:4 Command Complete event for op with one
// command credit and the given return parameters.
func CommandComplete(op uint16, params []byte) *Packet {
	b := make([]byte, 0, 1+evtHdrLen+3+len(params))
	b = append(b, byte(PktTypeEvent), EvtCommandComplete, byte(3+len(params)))
	b = append(b, 1, byte(op), byte(op>>8))
	b = append(b, params...)
	return NewPacket(b)
}

// CommandCompleteStatus is a Command Complete carrying only a status.
func CommandCompleteStatus(op uint16, status uint8) *Packet {
	return CommandComplete(op, []byte{status})
}

// NOPComplete tells the host the controller accepts commands.
func NOPComplete() *Packet {
	return CommandComplete(OpNOP, nil)
}

const debugAssertMarker = 0xAA

// DebugEvent encodes the vendor debug event emitted on an unrecoverable
// fault: marker, base name of file with NUL (omitted when empty), then the
// line as 32-bit little endian.
func DebugEvent(file string, line uint32) []byte {
	if file != "" {
		file = path.Base(file)
	}

	plen := 1 + 4
	if file != "" {
		plen += len(file) + 1
	}

	b := make([]byte, 0, 1+evtHdrLen+plen)
	b = append(b, byte(PktTypeEvent), EvtVendorDebug, byte(plen), debugAssertMarker)
	if file != "" {
		b = append(b, file...)
		b = append(b, 0x00)
	}
	return binary.LittleEndian.AppendUint32(b, line)
}
