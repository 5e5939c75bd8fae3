package hci

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadLen(t *testing.T) {
	require.Equal(t, 1, PayloadLen(PktTypeCommand, []byte{0x00, 0xfe, 0x01}))
	require.Equal(t, 0x0123, PayloadLen(PktTypeACLData, []byte{0x40, 0x20, 0x23, 0x01}))

	// the two RFU bits on top of the ISO length are not part of it
	require.Equal(t, 0x0010, PayloadLen(PktTypeISOData, []byte{0x60, 0x00, 0x10, 0xc0}))
	require.Equal(t, 7, PayloadLen(PktTypeEvent, []byte{0x0e, 0x07}))
}

func TestKindHostToController(t *testing.T) {
	for k, ok := range map[Kind]bool{
		PktTypeCommand: true,
		PktTypeACLData: true,
		PktTypeISOData: true,
		PktTypeSCOData: false,
		PktTypeEvent:   false,
		0x00:           false,
		0x42:           false,
	} {
		assert.Equal(t, ok, k.HostToController(), "%v", k)
	}
}

func TestPoolExhaustionAndRelease(t *testing.T) {
	p, err := NewPool(PoolConfig{
		Command: BufferConfig{Size: 16, Count: 1},
		ACL:     BufferConfig{Size: 16, Count: 2},
		ISO:     BufferConfig{Size: 16, Count: 0},
	})
	require.NoError(t, err)

	b := p.Get(PktTypeCommand)
	require.NotNil(t, b)
	require.Equal(t, 1, b.Len())
	require.Nil(t, p.Get(PktTypeCommand))

	require.True(t, b.Append([]byte{0x03, 0x0c, 0x00}))
	pkt := b.Packet()
	require.Equal(t, PktTypeCommand, pkt.Kind())
	require.Equal(t, uint16(0x0c03), pkt.Opcode())

	pkt.Release()
	pkt.Release()
	require.True(t, pkt.Released())
	require.Equal(t, 1, p.Available(PktTypeCommand))

	// unbounded kinds always allocate
	for i := 0; i < 10; i++ {
		require.NotNil(t, p.Get(PktTypeISOData))
	}
	require.Equal(t, -1, p.Available(PktTypeISOData))
	require.Nil(t, p.Get(PktTypeEvent))
}

func TestBufferTailroom(t *testing.T) {
	p, err := NewPool(PoolConfig{
		Command: BufferConfig{Size: 8, Count: 1},
		ACL:     BufferConfig{Size: 8, Count: 1},
		ISO:     BufferConfig{Size: 8, Count: 1},
	})
	require.NoError(t, err)

	b := p.Get(PktTypeACLData)
	require.Equal(t, 7, b.Tailroom())
	require.False(t, b.Append(make([]byte, 8)))

	n := copy(b.Tail(), []byte{1, 2, 3})
	b.Extend(n)
	require.Equal(t, 4, b.Len())
	require.Equal(t, 4, b.Tailroom())

	b.Free()
	require.Equal(t, 1, p.Available(PktTypeACLData))
}

func TestNewPoolRejectsTinyBuffers(t *testing.T) {
	cfg := DefaultPoolConfig()
	cfg.ISO.Size = 2
	_, err := NewPool(cfg)
	require.Error(t, err)
}

func TestCommandComplete(t *testing.T) {
	p := CommandComplete(VendorOpcode(0x200), []byte{0x00, 0x78, 0x56, 0x34, 0x12})
	require.Equal(t, []byte{0x04, 0x0e, 0x08, 0x01, 0x00, 0xfe, 0x00, 0x78, 0x56, 0x34, 0x12}, p.Bytes())

	require.Equal(t, []byte{0x04, 0x0e, 0x03, 0x01, 0x00, 0x00}, NOPComplete().Bytes())
}

func TestDebugEvent(t *testing.T) {
	b := DebugEvent("subsys/bluetooth/ctlr.c", 0x01020304)
	exp := []byte{0x04, 0xff, 1 + 6 + 1 + 4, 0xaa, 'c', 't', 'l', 'r', '.', 'c', 0x00, 0x04, 0x03, 0x02, 0x01}
	require.Equal(t, exp, b)

	b = DebugEvent("", 7)
	require.Equal(t, []byte{0x04, 0xff, 5, 0xaa, 7, 0, 0, 0}, b)
}

func TestOpcode(t *testing.T) {
	op := VendorOpcode(0x200)
	require.Equal(t, uint16(0xfe00), op)
	require.Equal(t, uint16(OGFVendor), OGF(op))
	require.Equal(t, uint16(0x200), OCF(op))
	require.Equal(t, "(0x3f|0x0200)", OpcodeString(op))

	p, err := VendorCommand(0x200, []byte{0x01})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x00, 0xfe, 0x01, 0x01}, p.Bytes())
	require.Equal(t, []byte{0x01}, p.Payload())

	_, err = VendorCommand(0x200, make([]byte, 256))
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	f := func(*Packet) uint8 { return StatusExtHandled }

	require.NoError(t, r.Register(CmdExt{Opcode: 0xfe00, MinParamLen: 1, Func: f}))
	require.Error(t, r.Register(CmdExt{Opcode: 0xfe00, Func: f}))
	require.Error(t, r.Register(CmdExt{Opcode: 0xfe01}))

	e, ok := r.Lookup(0xfe00)
	require.True(t, ok)
	require.Equal(t, 1, e.MinParamLen)

	_, ok = r.Lookup(0x0c03)
	require.False(t, ok)
	require.Equal(t, 1, r.Len())
}

func TestClassify(t *testing.T) {
	require.Equal(t, Forwarded, Classify(nil))
	require.Equal(t, HandledLocally, Classify(ErrExtHandled))
	require.Equal(t, HandledLocally, Classify(errors.Wrap(ErrExtHandled, "raw")))
	require.Equal(t, Failed, Classify(ErrCommand(0x0c)))
	require.Equal(t, "Command Disallowed", ErrCommand(0x0c).Error())
	require.Equal(t, "hci status 0x42", ErrCommand(0x42).Error())
}
