package hciuart

import (
	"time"
)

// BridgeOption is an interface which the bridge should implement to allow using configuration options
type BridgeOption interface {
	SetUart(path string, baud uint) error
	SetControllerID(id int) error
	SetQueueSizes(inbound, outbound int) error
	SetCaptureThreshold(us uint32) error
	SetPresentationOffset(d time.Duration) error
	SetStartupArm(d time.Duration) error
	SetWaitNOP(bool) error
	SetErrorHandler(handler func(error)) error
	SetSubmitErrorHandler(handler func(error)) error
	SetLogger(Logger) error
}

// An Option is a configuration function, which configures the bridge.
type Option func(BridgeOption) error

// OptUart sets the host-facing serial port.
func OptUart(path string, baud uint) Option {
	return func(opt BridgeOption) error {
		return opt.SetUart(path, baud)
	}
}

// OptControllerID selects the HCI user channel device; -1 picks the first one available.
func OptControllerID(id int) Option {
	return func(opt BridgeOption) error {
		return opt.SetControllerID(id)
	}
}

// OptQueueSizes overrides the inbound handoff and outbound transmit queue depths.
func OptQueueSizes(inbound, outbound int) Option {
	return func(opt BridgeOption) error {
		return opt.SetQueueSizes(inbound, outbound)
	}
}

// OptCaptureThreshold sets the convergence bound of the double clock read.
func OptCaptureThreshold(us uint32) Option {
	return func(opt BridgeOption) error {
		return opt.SetCaptureThreshold(us)
	}
}

// OptPresentationOffset sets the delay between the deferred toggle edges.
func OptPresentationOffset(d time.Duration) Option {
	return func(opt BridgeOption) error {
		return opt.SetPresentationOffset(d)
	}
}

// OptStartupArm arms the presentation toggle d after start. Zero disables it.
func OptStartupArm(d time.Duration) Option {
	return func(opt BridgeOption) error {
		return opt.SetStartupArm(d)
	}
}

// OptWaitNOP emits a NOP Command Complete on the host port at start
func OptWaitNOP(enable bool) Option {
	return func(opt BridgeOption) error {
		return opt.SetWaitNOP(enable)
	}
}

// OptErrorHandler sets the handler for errors that stop a bridge loop
func OptErrorHandler(handler func(error)) Option {
	return func(opt BridgeOption) error {
		return opt.SetErrorHandler(handler)
	}
}

// OptSubmitErrorHandler sets the handler for single packets that could not
// be forwarded
func OptSubmitErrorHandler(handler func(error)) Option {
	return func(opt BridgeOption) error {
		return opt.SetSubmitErrorHandler(handler)
	}
}

// OptLogger replaces the global logger for one bridge.
func OptLogger(l Logger) Option {
	return func(opt BridgeOption) error {
		return opt.SetLogger(l)
	}
}
