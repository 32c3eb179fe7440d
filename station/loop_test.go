package station

import (
	"testing"

	"github.com/andreww5au/pasd-station/port"
)

type fakePortReader map[int]port.Status

func (f fakePortReader) PortStatus(p int) (port.Status, bool) {
	st, ok := f[p]
	return st, ok
}

func TestDiffPortsDetectsOnlineChange(t *testing.T) {
	desired := map[int]port.WriteIntent{
		1: {DesireOnline: port.True, DesireOffline: port.False},
		2: {DesireOnline: port.True, DesireOffline: port.False},
	}
	current := fakePortReader{
		1: {DesireOnline: port.False, DesireOffline: port.True},
		2: {DesireOnline: port.True, DesireOffline: port.False},
	}
	changed := diffPorts(desired, current, 2)
	if len(changed) != 1 {
		t.Fatalf("changed = %v, want exactly port 1", changed)
	}
	if _, ok := changed[1]; !ok {
		t.Errorf("expected port 1 to be flagged changed")
	}
}

func TestDiffPortsIdempotentWhenAlreadyApplied(t *testing.T) {
	desired := map[int]port.WriteIntent{
		1: {DesireOnline: port.True, DesireOffline: port.False},
	}
	current := fakePortReader{
		1: {DesireOnline: port.True, DesireOffline: port.False},
	}
	if changed := diffPorts(desired, current, 1); changed != nil {
		t.Errorf("diffPorts should report no changes once desired state is already applied, got %v", changed)
	}
}

func TestDiffPortsSkipsUnknownPorts(t *testing.T) {
	desired := map[int]port.WriteIntent{
		1: {DesireOnline: port.True},
	}
	current := fakePortReader{} // port 1 never polled yet
	if changed := diffPorts(desired, current, 1); changed != nil {
		t.Errorf("diffPorts should skip ports with no current status, got %v", changed)
	}
}

func TestWantsChangeBreakerResetRequested(t *testing.T) {
	want := port.WriteIntent{WriteBreaker: true}
	cur := port.Status{BreakerTripped: true}
	if !wantsChange(want, cur) {
		t.Error("a breaker-reset request against a tripped breaker should count as a change")
	}
}

func TestWantsChangeBreakerResetUnconditional(t *testing.T) {
	want := port.WriteIntent{WriteBreaker: true}
	cur := port.Status{BreakerTripped: false}
	if !wantsChange(want, cur) {
		t.Error("a breaker-reset request should be written regardless of the port's currently-known tripped state")
	}
}

func TestWantsChangeUnsetFieldsNeverForceAChange(t *testing.T) {
	want := port.WriteIntent{}
	cur := port.Status{DesireOnline: port.True, DesireOffline: port.False, BreakerTripped: true}
	if wantsChange(want, cur) {
		t.Error("an all-Unset intent should never be reported as a change")
	}
}

func TestBoolMetric(t *testing.T) {
	if boolMetric(true) != 1 {
		t.Error("boolMetric(true) should be 1")
	}
	if boolMetric(false) != 0 {
		t.Error("boolMetric(false) should be 0")
	}
}
