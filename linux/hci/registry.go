package hci

import (
	"fmt"

	"github.com/cornelk/hashmap"
)

// CmdExtFunc handles one raw command. It returns an HCI status; returning
// StatusExtHandled means the handler already queued its own response.
type CmdExtFunc func(cmd *Packet) uint8

// CmdExt binds a handler to an opcode.
type CmdExt struct {
	Opcode      uint16
	MinParamLen int
	Func        CmdExtFunc
}

// Registry maps opcodes to command extensions. Lookups are lock free so the
// dispatch path never waits on registration.
type Registry struct {
	m *hashmap.Map[uint16, CmdExt]
}

func NewRegistry() *Registry {
	return &Registry{m: hashmap.New[uint16, CmdExt]()}
}

// Register adds exts; an opcode may be registered only once.
func (r *Registry) Register(exts ...CmdExt) error {
	for _, e := range exts {
		if e.Func == nil {
			return fmt.Errorf("command extension %s has no handler", OpcodeString(e.Opcode))
		}
		if !r.m.Insert(e.Opcode, e) {
			return fmt.Errorf("command extension %s already registered", OpcodeString(e.Opcode))
		}
	}
	return nil
}

func (r *Registry) Lookup(op uint16) (CmdExt, bool) {
	return r.m.Get(op)
}

func (r *Registry) Len() int {
	return r.m.Len()
}
