package hci

import "fmt"

// Kind is the H:4 packet indicator that prefixes every packet on the wire.
type Kind uint8

// HCI Packet types
const (
	PktTypeCommand Kind = 0x01
	PktTypeACLData Kind = 0x02
	PktTypeSCOData Kind = 0x03
	PktTypeEvent   Kind = 0x04
	PktTypeISOData Kind = 0x05
	PktTypeVendor  Kind = 0xFF
)

// Header sizes, type byte excluded [Vol 4, Part E, 5.4].
const (
	cmdHdrLen = 3 // opcode(2) param_len(1)
	aclHdrLen = 4 // handle|flags(2) len(2)
	scoHdrLen = 3 // handle|flags(2) len(1)
	evtHdrLen = 2 // code(1) len(1)
	isoHdrLen = 4 // handle|flags(2) len(2), top two bits RFU

	// MaxHdrLen bounds the scratch needed to accumulate any header.
	MaxHdrLen = 4

	isoLenMask = 0x3fff
)

func (k Kind) String() string {
	switch k {
	case PktTypeCommand:
		return "CMD"
	case PktTypeACLData:
		return "ACL"
	case PktTypeSCOData:
		return "SCO"
	case PktTypeEvent:
		return "EVT"
	case PktTypeISOData:
		return "ISO"
	case PktTypeVendor:
		return "VND"
	default:
		return fmt.Sprintf("0x%02x", uint8(k))
	}
}

// HostToController reports whether k may arrive from the host side of an H:4
// link. Events only ever flow controller to host and SCO is not bridged.
func (k Kind) HostToController() bool {
	return k == PktTypeCommand || k == PktTypeACLData || k == PktTypeISOData
}

// HeaderLen is the fixed header size for k, or 0 for unknown kinds.
func (k Kind) HeaderLen() int {
	switch k {
	case PktTypeCommand:
		return cmdHdrLen
	case PktTypeACLData:
		return aclHdrLen
	case PktTypeSCOData:
		return scoHdrLen
	case PktTypeEvent:
		return evtHdrLen
	case PktTypeISOData:
		return isoHdrLen
	default:
		return 0
	}
}

// PayloadLen decodes the length field of a complete header of kind k.
func PayloadLen(k Kind, hdr []byte) int {
	switch k {
	case PktTypeCommand:
		return int(hdr[2])
	case PktTypeACLData:
		return int(uint16(hdr[2]) | uint16(hdr[3])<<8)
	case PktTypeSCOData:
		return int(hdr[2])
	case PktTypeEvent:
		return int(hdr[1])
	case PktTypeISOData:
		return int((uint16(hdr[2]) | uint16(hdr[3])<<8) & isoLenMask)
	default:
		return 0
	}
}

// Event codes
const (
	EvtCommandComplete = 0x0E
	EvtCommandStatus   = 0x0F
	EvtVendorDebug     = 0xFF
)

// Opcodes
const (
	OpNOP             uint16 = 0x0000
	OpLEReadISOTXSync uint16 = 0x2061
)
