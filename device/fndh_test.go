package device

import (
	"testing"

	"github.com/andreww5au/pasd-station/port"
)

func TestFNDHPortStatusDecodesFromSnapshot(t *testing.T) {
	f := NewFNDH(nil, 31, nil)
	f.latched = true
	f.rev = Revision{Poll: NewMap(fndhPollFields1())}
	word := port.Encode(port.WriteIntent{DesireOnline: port.True}, true)
	f.Snapshot = map[string]interface{}{fndhPortFieldName(7): int(word)}

	st, ok := f.PortStatus(7)
	if !ok {
		t.Fatal("PortStatus(7) ok = false, want true")
	}
	if !st.PowerState {
		t.Error("PortStatus(7).PowerState = false, want true")
	}
}

func TestFNDHPortStatusMissingBeforePoll(t *testing.T) {
	f := NewFNDH(nil, 31, nil)
	if _, ok := f.PortStatus(1); ok {
		t.Error("PortStatus before any poll should report ok=false")
	}
}
