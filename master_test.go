package modbus

import (
	"sync"
	"testing"
	"time"
)

// fakeWire is an in-memory wireConn that answers every write with a
// preprogrammed reply frame, letting master_test exercise Link.transact
// without a real socket or serial port.
type fakeWire struct {
	mu      sync.Mutex
	replies [][]byte
	sent    [][]byte
	reply   []byte
	pos     int
}

func (w *fakeWire) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	w.sent = append(w.sent, cp)
	if len(w.replies) > 0 {
		w.reply, w.replies = w.replies[0], w.replies[1:]
		w.pos = 0
	}
	return len(p), nil
}

func (w *fakeWire) Close() error { return nil }

func (w *fakeWire) readChunk(budget time.Duration, buf []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pos >= len(w.reply) {
		return 0, nil
	}
	n := copy(buf, w.reply[w.pos:])
	w.pos += n
	return n, nil
}

func newTestLink(conn wireConn) *Link {
	return &Link{conn: conn, silence: 0, timeout: time.Second}
}

func TestReadRegistersSuccess(t *testing.T) {
	b := &dataBuilder{}
	b.byte(4)
	b.words(0x1234, 0x5678)
	reply := buildFrame(0x05, pdu{function: fnReadHolding, data: b.payload()})
	link := newTestLink(&fakeWire{replies: [][]byte{reply}})

	values, err := link.ReadRegisters(0x05, 10, 2)
	if err != nil {
		t.Fatalf("ReadRegisters() error: %v", err)
	}
	if len(values) != 2 || values[0] != 0x1234 || values[1] != 0x5678 {
		t.Fatalf("ReadRegisters() = %v, want [4660 22136]", values)
	}
}

func TestReadRegistersException(t *testing.T) {
	e := &Error{Kind: KindException, Code: 0x02}
	reply := buildFrame(0x05, e.asPDU(fnReadHolding))
	link := newTestLink(&fakeWire{replies: [][]byte{reply}})

	_, err := link.ReadRegisters(0x05, 10, 2)
	merr, ok := err.(*Error)
	if !ok || merr.Kind != KindException || merr.Code != 0x02 {
		t.Fatalf("ReadRegisters() error = %v, want exception 0x02", err)
	}
}

func TestReadRegistersAddressMismatch(t *testing.T) {
	b := &dataBuilder{}
	b.byte(2)
	b.word(1)
	reply := buildFrame(0x06, pdu{function: fnReadHolding, data: b.payload()})
	link := newTestLink(&fakeWire{replies: [][]byte{reply}})

	_, err := link.ReadRegisters(0x05, 10, 1)
	merr, ok := err.(*Error)
	if !ok || merr.Kind != KindAddressMismatch {
		t.Fatalf("ReadRegisters() error = %v, want AddressMismatch", err)
	}
}

func TestWriteRegisterSuccess(t *testing.T) {
	b := &dataBuilder{}
	b.words(20, 99)
	reply := buildFrame(0x07, pdu{function: fnWriteSingle, data: b.payload()})
	link := newTestLink(&fakeWire{replies: [][]byte{reply}})

	if err := link.WriteRegister(0x07, 20, 99); err != nil {
		t.Fatalf("WriteRegister() error: %v", err)
	}
}

func TestWriteRegisterEchoMismatch(t *testing.T) {
	b := &dataBuilder{}
	b.words(20, 100)
	reply := buildFrame(0x07, pdu{function: fnWriteSingle, data: b.payload()})
	link := newTestLink(&fakeWire{replies: [][]byte{reply}})

	err := link.WriteRegister(0x07, 20, 99)
	merr, ok := err.(*Error)
	if !ok || merr.Kind != KindMalformed {
		t.Fatalf("WriteRegister() error = %v, want Malformed echo mismatch", err)
	}
}

func TestWriteMultipleRegistersSuccess(t *testing.T) {
	b := &dataBuilder{}
	b.words(100, 3)
	reply := buildFrame(0x08, pdu{function: fnWriteMultiple, data: b.payload()})
	link := newTestLink(&fakeWire{replies: [][]byte{reply}})

	if err := link.WriteMultipleRegisters(0x08, 100, []int{1, 2, 3}); err != nil {
		t.Fatalf("WriteMultipleRegisters() error: %v", err)
	}
}

func TestWriteMultipleRegistersRejectsOutOfRangeCount(t *testing.T) {
	link := newTestLink(&fakeWire{})
	if err := link.WriteMultipleRegisters(0x08, 100, nil); err == nil {
		t.Fatalf("WriteMultipleRegisters() accepted zero registers")
	}
}

func TestReadRegistersNoReplyTimesOut(t *testing.T) {
	link := newTestLink(&fakeWire{})
	link.timeout = 30 * time.Millisecond
	link.dial = func() (wireConn, error) { return &fakeWire{}, nil }

	_, err := link.ReadRegisters(0x05, 10, 1)
	merr, ok := err.(*Error)
	if !ok || merr.Kind != KindNoReply {
		t.Fatalf("ReadRegisters() error = %v, want NoReply", err)
	}
}
