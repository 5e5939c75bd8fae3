package hci

import (
	"fmt"
)

const (
	ogfBitShift = 10
	ocfMask     = 0x03FF

	// OGFVendor is the vendor-specific opcode group.
	OGFVendor = 0x3F
)

// Opcode composes a 16-bit command opcode.
func Opcode(ogf, ocf uint16) uint16 {
	return ogf<<ogfBitShift | ocf&ocfMask
}

// OGF returns the opcode group field.
func OGF(op uint16) uint16 {
	return op >> ogfBitShift
}

// OCF returns the opcode command field.
func OCF(op uint16) uint16 {
	return op & ocfMask
}

// VendorOpcode composes a vendor-specific opcode.
func VendorOpcode(ocf uint16) uint16 {
	return Opcode(OGFVendor, ocf)
}

// OpcodeString formats op the way controller logs do: (ogf|ocf).
func OpcodeString(op uint16) string {
	return fmt.Sprintf("(0x%02x|0x%04x)", OGF(op), OCF(op))
}

// VendorCommand builds an H:4 command packet for a vendor opcode.
func VendorCommand(ocf uint16, params []byte) (*Packet, error) {
	if len(params) > maxCmdParamLen {
		return nil, fmt.Errorf("invalid length %v; max hci payload length is %v", len(params), maxCmdParamLen)
	}

	op := VendorOpcode(ocf)
	b := make([]byte, 0, 1+cmdHdrLen+len(params))
	b = append(b, byte(PktTypeCommand), byte(op), byte(op>>8), byte(len(params)))
	b = append(b, params...)
	return NewPacket(b), nil
}
