package parser

import (
	"bytes"
	"testing"
)

type testISO struct {
	b []byte
}

// add builds an ISO packet for handle 0x0060 with the given flags and load.
func (t *testISO) add(pb byte, ts bool, load []byte) {
	hf := uint16(0x0060) | uint16(pb)<<12
	if ts {
		hf |= 1 << 14
	}
	l := len(load)
	t.b = append(t.b, h4ISO, byte(hf), byte(hf>>8), byte(l), byte(l>>8))
	t.b = append(t.b, load...)
}

func TestISODataWithTimestamp(t *testing.T) {
	p := testISO{}
	p.add(PBComplete, true, []byte{
		0x78, 0x56, 0x34, 0x12, // sdu sync reference
		0x2a, 0x00, // sequence
		0x03, 0x00, // sdu length
		0xab, 0xcd, 0xef,
	})

	d, err := ISOData(p.b)
	if err != nil {
		t.Fatal(err)
	}
	if d.Handle != 0x60 || d.PBFlag != PBComplete || !d.HasTimestamp {
		t.Fatalf("bad header %+v", d)
	}
	if d.Timestamp != 0x12345678 {
		t.Fatalf("timestamp %x", d.Timestamp)
	}
	if !d.HasSDUHeader || d.Sequence != 42 || d.SDULength != 3 {
		t.Fatalf("bad sdu header %+v", d)
	}
	if !bytes.Equal(d.SDU, []byte{0xab, 0xcd, 0xef}) {
		t.Fatalf("sdu %x", d.SDU)
	}

	// the first sdu byte sits at a fixed offset of the wire packet
	if p.b[13] != d.SDU[0] {
		t.Fatalf("sdu offset moved")
	}
}

func TestISODataContinuation(t *testing.T) {
	p := testISO{}
	p.add(PBContinuation, false, []byte{1, 2, 3})

	d, err := ISOData(p.b)
	if err != nil {
		t.Fatal(err)
	}
	if d.HasTimestamp || d.HasSDUHeader {
		t.Fatalf("unexpected fields %+v", d)
	}
	if !bytes.Equal(d.SDU, []byte{1, 2, 3}) {
		t.Fatalf("sdu %x", d.SDU)
	}
}

func TestISODataBad(t *testing.T) {
	short := testISO{}
	short.add(PBComplete, true, []byte{1, 2, 3})

	lenMismatch := testISO{}
	lenMismatch.add(PBContinuation, false, []byte{1, 2, 3})
	lenMismatch.b = lenMismatch.b[:len(lenMismatch.b)-1]

	noSDUHdr := testISO{}
	noSDUHdr.add(PBFirst, false, []byte{1, 2})

	for name, b := range map[string][]byte{
		"nil":          nil,
		"event":        {0x04, 0x0e, 0x00},
		"short header": {0x05, 0x60, 0x00},
		"short ts":     short.b,
		"length":       lenMismatch.b,
		"sdu header":   noSDUHdr.b,
	} {
		if _, err := ISOData(b); err == nil {
			t.Errorf("%v: no decode error", name)
		}
	}

	if _, err := ISOData(nil); err != EmptyOrNilPacket {
		t.Errorf("nil: %v", err)
	}
}

func txSyncEvent(status byte, rp ...byte) []byte {
	b := []byte{h4Evt, evtCommandComplete, byte(4 + len(rp)), 0x01, 0x61, 0x20, status}
	return append(b, rp...)
}

func TestISOTXSync(t *testing.T) {
	b := txSyncEvent(0x00,
		0x60, 0x00, // handle
		0x34, 0x12, // sequence
		0x44, 0x33, 0x22, 0x11, // tx timestamp
		0x03, 0x02, 0x01, // offset
	)

	op, ok := CommandCompleteOpcode(b)
	if !ok || op != opLEReadISOTXSync {
		t.Fatalf("opcode %x %v", op, ok)
	}

	s, err := ISOTXSync(b)
	if err != nil {
		t.Fatal(err)
	}
	exp := TXSync{Handle: 0x60, Sequence: 0x1234, Timestamp: 0x11223344, Offset: 0x010203}
	if *s != exp {
		t.Fatalf("got %+v want %+v", *s, exp)
	}
}

func TestISOTXSyncFailedCommand(t *testing.T) {
	s, err := ISOTXSync(txSyncEvent(0x02))
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != 0x02 || s.Timestamp != 0 {
		t.Fatalf("got %+v", *s)
	}
}

func TestISOTXSyncBad(t *testing.T) {
	other := txSyncEvent(0x00, make([]byte, 11)...)
	other[4] = 0x03
	other[5] = 0x0c

	for name, b := range map[string][]byte{
		"status event": {0x04, 0x0f, 0x04, 0x00, 0x01, 0x61, 0x20},
		"other opcode": other,
		"short":        txSyncEvent(0x00, 0x60, 0x00, 0x34),
		"no status":    txSyncEvent(0x00)[:6],
	} {
		if _, err := ISOTXSync(b); err == nil {
			t.Errorf("%v: no decode error", name)
		}
	}
}
