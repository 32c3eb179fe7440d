package modbus

import (
	"testing"
	"time"
)

// mapView is a minimal RegisterView backed by a plain map, for exercising
// ListenForPacket without a real device register map.
type mapView struct {
	regs     map[int]int
	readOnly map[int]bool
}

func (v *mapView) Read(reg int) (int, bool) {
	val, ok := v.regs[reg]
	return val, ok
}

func (v *mapView) Write(reg int, value int) bool {
	if v.readOnly[reg] {
		return false
	}
	v.regs[reg] = value
	return true
}

func TestListenForPacketServesReadHolding(t *testing.T) {
	view := &mapView{regs: map[int]int{5: 111, 6: 222}}
	req := buildFrame(0x01, pdu{function: fnReadHolding, data: func() []byte {
		b := &dataBuilder{}
		b.words(5, 2)
		return b.payload()
	}()})
	wire := &fakeWire{reply: req}
	link := newTestLink(wire)

	readRegs, _, err := link.ListenForPacket(0x01, view, time.Second, nil)
	if err != nil {
		t.Fatalf("ListenForPacket() error: %v", err)
	}
	if len(readRegs) != 2 || readRegs[0] != 5 || readRegs[1] != 6 {
		t.Fatalf("ListenForPacket() readRegs = %v, want [5 6]", readRegs)
	}
	if len(wire.sent) != 1 {
		t.Fatalf("ListenForPacket() sent %v frames, want 1 reply", len(wire.sent))
	}
	_, replyPDU, err := parseFrame(wire.sent[0])
	if err != nil {
		t.Fatalf("parseFrame(reply) error: %v", err)
	}
	if replyPDU.function != fnReadHolding {
		t.Fatalf("reply function = 0x%02x, want 0x%02x", replyPDU.function, fnReadHolding)
	}
}

func TestListenForPacketRejectsUnknownRegister(t *testing.T) {
	view := &mapView{regs: map[int]int{5: 111}}
	req := buildFrame(0x01, pdu{function: fnReadHolding, data: func() []byte {
		b := &dataBuilder{}
		b.words(999, 1)
		return b.payload()
	}()})
	wire := &fakeWire{reply: req}
	link := newTestLink(wire)

	if _, _, err := link.ListenForPacket(0x01, view, time.Second, nil); err != nil {
		t.Fatalf("ListenForPacket() error: %v", err)
	}
	_, replyPDU, _ := parseFrame(wire.sent[0])
	if replyPDU.function != fnReadHolding|0x80 || replyPDU.data[0] != 0x02 {
		t.Fatalf("reply = %+v, want illegal-address exception", replyPDU)
	}
}

func TestListenForPacketValidatorRejectsWrite(t *testing.T) {
	view := &mapView{regs: map[int]int{1: 0, 2: 0}}
	req := buildFrame(0x01, pdu{function: fnWriteMultiple, data: func() []byte {
		b := &dataBuilder{}
		b.words(1, 2)
		b.byte(4)
		b.words(7, 7)
		return b.payload()
	}()})
	wire := &fakeWire{reply: req}
	link := newTestLink(wire)

	rejectAll := func(written map[int]int) bool { return false }
	_, written, err := link.ListenForPacket(0x01, view, time.Second, rejectAll)
	if err != nil {
		t.Fatalf("ListenForPacket() error: %v", err)
	}
	if written != nil {
		t.Fatalf("ListenForPacket() written = %v, want nil on validator rejection", written)
	}
	_, replyPDU, _ := parseFrame(wire.sent[0])
	if replyPDU.function != fnWriteMultiple|0x80 || replyPDU.data[0] != 0x03 {
		t.Fatalf("reply = %+v, want illegal-value exception", replyPDU)
	}
}

func TestListenForPacketIgnoresOtherUnitAddress(t *testing.T) {
	view := &mapView{regs: map[int]int{5: 1}}
	req := buildFrame(0x09, pdu{function: fnReadHolding, data: func() []byte {
		b := &dataBuilder{}
		b.words(5, 1)
		return b.payload()
	}()})
	wire := &fakeWire{reply: req}
	link := newTestLink(wire)
	link.timeout = 20 * time.Millisecond

	readRegs, written, err := link.ListenForPacket(0x01, view, 20*time.Millisecond, nil)
	if err != nil || readRegs != nil || written != nil {
		t.Fatalf("ListenForPacket() = (%v, %v, %v), want all nil for foreign unit address", readRegs, written, err)
	}
}
