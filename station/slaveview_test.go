package station

import "testing"

func newTestStation() *Station {
	return &Station{
		AntennaMap:    make(map[int]AntennaBinding),
		pending:       make(map[int]int),
		PDoCToAddress: make(map[int]int),
		Log:           func(string, ...interface{}) {},
	}
}

func TestAntennaMapWriteStagesThenValidatorCommits(t *testing.T) {
	s := newTestStation()
	s.Write(1, 5*256+3) // antenna 1 -> smartbox 5 port 3
	s.Write(2, 6*256+1) // antenna 2 -> smartbox 6 port 1

	if !s.AntennaMapValidator(map[int]int{1: 5*256 + 3, 2: 6*256 + 1}) {
		t.Fatal("validator should accept a collision-free batch")
	}
	if b := s.AntennaMap[1]; b.SmartboxAddr != 5 || b.PortNumber != 3 {
		t.Errorf("AntennaMap[1] = %+v, want smartbox 5 port 3", b)
	}
	if b := s.AntennaMap[2]; b.SmartboxAddr != 6 || b.PortNumber != 1 {
		t.Errorf("AntennaMap[2] = %+v, want smartbox 6 port 1", b)
	}
	if len(s.pending) != 0 {
		t.Errorf("pending should be cleared after commit, got %v", s.pending)
	}
}

func TestAntennaMapValidatorRejectsDuplicateNonZeroValues(t *testing.T) {
	s := newTestStation()
	s.AntennaMap[1] = AntennaBinding{SmartboxAddr: 9, PortNumber: 9}
	s.Write(1, 5*256+3)
	s.Write(2, 5*256+3) // same smartbox/port claimed twice

	if s.AntennaMapValidator(map[int]int{1: 5*256 + 3, 2: 5*256 + 3}) {
		t.Fatal("validator should reject a batch with a duplicate non-zero value")
	}
	if b := s.AntennaMap[1]; b.SmartboxAddr != 9 || b.PortNumber != 9 {
		t.Errorf("AntennaMap[1] should be left unchanged on rejection, got %+v", b)
	}
	if _, ok := s.AntennaMap[2]; ok {
		t.Errorf("AntennaMap[2] should not have been committed on rejection")
	}
	if len(s.pending) != 0 {
		t.Errorf("pending should be discarded on rejection, got %v", s.pending)
	}
}

func TestAntennaMapValidatorIgnoresZeroValues(t *testing.T) {
	s := newTestStation()
	s.Write(1, 0)
	s.Write(2, 0)
	if !s.AntennaMapValidator(map[int]int{1: 0, 2: 0}) {
		t.Fatal("two unmapped (zero) registers are never a collision")
	}
}

func TestReadAntennaMapUnboundReturnsZero(t *testing.T) {
	s := newTestStation()
	v, ok := s.Read(42)
	if !ok || v != 0 {
		t.Errorf("Read(42) = (%v, %v), want (0, true) for an unbound antenna", v, ok)
	}
}

func TestReadPDoCMapRange(t *testing.T) {
	s := newTestStation()
	s.PDoCToAddress[5] = 12
	v, ok := s.Read(1205)
	if !ok || v != 12 {
		t.Errorf("Read(1205) = (%v, %v), want (12, true)", v, ok)
	}
	v, ok = s.Read(1206)
	if !ok || v != 0 {
		t.Errorf("Read(1206) = (%v, %v), want (0, true) for an unbound PDoC port", v, ok)
	}
}

func TestWriteANTNUMResetsLogNum(t *testing.T) {
	s := newTestStation()
	s.LogNum = 7
	s.DesiredAntenna = 1
	if !s.Write(regANTNUM, 2) {
		t.Fatal("writing ANTNUM should succeed")
	}
	if s.LogNum != 0 {
		t.Errorf("LogNum = %d, want 0 after ANTNUM changed", s.LogNum)
	}
	if s.DesiredAntenna != 2 {
		t.Errorf("DesiredAntenna = %d, want 2", s.DesiredAntenna)
	}
}

func TestWriteOutOfRangeRegisterRejected(t *testing.T) {
	s := newTestStation()
	if s.Write(9999, 1) {
		t.Fatal("writing an unrecognised register should be rejected")
	}
}

func TestEncodeDecodeMessageTextRoundTrip(t *testing.T) {
	words := encodeMessageText("hello", 1614319283)
	got := decodeMessageText(words)
	if got != "hello" {
		t.Errorf("decodeMessageText = %q, want %q", got, "hello")
	}
	gotTime := uint32(words[messageTextWords])<<16 | uint32(words[messageTextWords+1])
	if gotTime != 1614319283 {
		t.Errorf("decoded timestamp = %d, want 1614319283", gotTime)
	}
}
