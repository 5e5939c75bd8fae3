package hci

import (
	"fmt"

	"github.com/pkg/errors"
)

// HCI status codes [Vol 2, Part D, 1.3].
const (
	StatusSuccess        uint8 = 0x00
	StatusUnknownCommand uint8 = 0x01
	StatusInvalidParam   uint8 = 0x12
	StatusUnspecified    uint8 = 0x1F

	// StatusExtHandled is returned by command extensions that already
	// produced their own response.
	StatusExtHandled uint8 = 0xFF
)

var (
	// ErrExtHandled means the stack consumed a packet itself; the caller
	// must not treat it as forwarded.
	ErrExtHandled = errors.New("hci: handled by command extension")
	ErrQueueFull  = errors.New("hci: queue full")
	ErrClosed     = errors.New("hci: closed")
)

// ErrCommand is an HCI status returned by a controller.
type ErrCommand uint8

var errCommandNames = map[uint8]string{
	StatusUnknownCommand: "Unknown HCI Command",
	0x02:                 "Unknown Connection Identifier",
	0x03:                 "Hardware Failure",
	0x07:                 "Memory Capacity Exceeded",
	0x0C:                 "Command Disallowed",
	0x11:                 "Unsupported Feature or Parameter Value",
	StatusInvalidParam:   "Invalid HCI Command Parameters",
	StatusUnspecified:    "Unspecified Error",
}

func (e ErrCommand) Error() string {
	if s, ok := errCommandNames[uint8(e)]; ok {
		return s
	}
	return fmt.Sprintf("hci status 0x%02X", uint8(e))
}

// Result is what became of a packet handed to a Stack.
type Result int

const (
	Forwarded Result = iota
	HandledLocally
	Failed
)

func (r Result) String() string {
	switch r {
	case Forwarded:
		return "forwarded"
	case HandledLocally:
		return "handled"
	default:
		return "failed"
	}
}

// Classify maps the error returned by Stack.Submit.
func Classify(err error) Result {
	switch errors.Cause(err) {
	case nil:
		return Forwarded
	case ErrExtHandled:
		return HandledLocally
	default:
		return Failed
	}
}

// Stack is the ingestion side of the Bluetooth host or controller stack.
// On success the stack owns the packet. On any error, ErrExtHandled
// included, ownership stays with the caller.
type Stack interface {
	Submit(p *Packet) error
}

// StackFunc adapts a function to Stack.
type StackFunc func(p *Packet) error

func (f StackFunc) Submit(p *Packet) error {
	return f(p)
}
