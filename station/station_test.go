package station

import "testing"

func TestNewStationInitialisesMaps(t *testing.T) {
	s := New(nil, "fieldtest-1", 31, nil, nil, nil)
	if s.FNDH == nil {
		t.Fatal("New should construct an FNDH")
	}
	if s.PDoCToAddress == nil || s.AddressToPDoC == nil || s.AntennaMap == nil {
		t.Fatal("New should initialise the binding maps")
	}
	if !s.DesiredActive {
		t.Error("a freshly constructed station should default to DesiredActive")
	}
}

func TestSmartboxCachesByAddress(t *testing.T) {
	s := New(nil, "fieldtest-1", 31, nil, nil, nil)
	a := s.smartbox(5)
	b := s.smartbox(5)
	if a != b {
		t.Error("smartbox(addr) should return the same cached instance on repeated calls")
	}
	if len(s.SMARTboxes) != 1 {
		t.Errorf("len(SMARTboxes) = %d, want 1", len(s.SMARTboxes))
	}
}
