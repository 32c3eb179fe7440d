package device

import (
	"testing"

	"github.com/andreww5au/pasd-station/port"
)

func TestSMARTboxPortStatusAndCurrentFromSnapshot(t *testing.T) {
	s := NewSMARTbox(nil, 5, nil)
	s.latched = true
	s.rev = Revision{Poll: NewMap(smartboxPollFields1())}
	word := port.Encode(port.WriteIntent{TechOverride: port.True}, false)
	s.Snapshot = map[string]interface{}{
		portFieldName("P", 3, "STATE"):   int(word),
		portFieldName("P", 3, "CURRENT"): 250.0,
	}

	st, ok := s.PortStatus(3)
	if !ok || st.TechOverride != port.True {
		t.Errorf("PortStatus(3) = %+v, ok=%v, want TechOverride=True", st, ok)
	}
	cur, ok := s.PortCurrent(3)
	if !ok || cur != 250.0 {
		t.Errorf("PortCurrent(3) = %v, ok=%v, want 250.0, true", cur, ok)
	}
}

func TestSMARTboxSmoothedFieldNamesIncludePSUTemp(t *testing.T) {
	s := NewSMARTbox(nil, 5, nil)
	s.latched = true
	s.rev = Revision{Poll: NewMap(smartboxPollFields1())}
	s.Snapshot = map[string]interface{}{"SYS_PSUTEMP": 40.0}
	s.smoothed["SYS_PSUTEMP"] = 20.0

	names := smoothedFieldNames(s.rev.Poll)
	found := false
	for _, n := range names {
		if n == "SYS_PSUTEMP" {
			found = true
		}
	}
	if !found {
		t.Fatal("SYS_PSUTEMP should be in the smoothed register set")
	}
}

func TestSmoothedRegistersCoversExpectedRanges(t *testing.T) {
	regs := smoothedRegisters()
	want := map[int]bool{17: true, 19: true, 24: true, 35: true, 48: true, 59: true}
	got := map[int]bool{}
	for _, r := range regs {
		got[r] = true
	}
	for r := range want {
		if !got[r] {
			t.Errorf("smoothedRegisters() missing expected register %d", r)
		}
	}
	if got[20] {
		t.Error("smoothedRegisters() should not include register 20 (outside 17..19 rail block)")
	}
}
