package device

// SMARTbox: a 12-port FEM power box.

import (
	"fmt"

	modbus "github.com/andreww5au/pasd-station"
	"github.com/andreww5au/pasd-station/port"
)

const (
	NumFEMPorts = 12

	smartboxRegPortStateBase   = 36
	smartboxRegPortCurrentBase = 48
	smartboxRegStatus          = 22

	// filterCutoffHz is the low-pass cutoff (2 second smoothing) of the
	// host-side filter PollData applies to a fixed set of sensor registers.
	// No smoothing constant is written to the device on configure.
	filterCutoffHz = 0.5
)

func smartboxPollFields1() []Field {
	fields := []Field{
		{Name: "SYS_MBRV", Reg: 1, Count: 1, Kind: KindU16},
		{Name: "SYS_PCBREV", Reg: 2, Count: 1, Kind: KindU16},
		{Name: "SYS_CPUID", Reg: 3, Count: 2, Kind: KindU32},
		{Name: "SYS_CHIPID", Reg: 5, Count: 8, Kind: KindChipID},
		{Name: "SYS_FIRMVER", Reg: 13, Count: 1, Kind: KindU16},
		{Name: "SYS_UPTIME", Reg: 14, Count: 2, Kind: KindU32},
		{Name: "SYS_ADDRESS", Reg: 16, Count: 1, Kind: KindU16},
		{Name: "SYS_48V_V", Reg: 17, Count: 1, Kind: KindI16Scaled, Scale: ScaleVolts},
		{Name: "SYS_PSU_V", Reg: 18, Count: 1, Kind: KindI16Scaled, Scale: ScaleVolts},
		{Name: "SYS_PSUTEMP", Reg: 19, Count: 1, Kind: KindI16Scaled, Scale: ScaleTemp},
		{Name: "SYS_PCBTEMP", Reg: 20, Count: 1, Kind: KindI16Scaled, Scale: ScaleTemp},
		{Name: "SYS_OUTTEMP", Reg: 21, Count: 1, Kind: KindI16Scaled, Scale: ScaleTemp},
		{Name: "SYS_STATUS", Reg: smartboxRegStatus, Count: 1, Kind: KindU16},
		{Name: "SYS_LIGHTS", Reg: 23, Count: 1, Kind: KindU16},
	}
	for i := 1; i <= 12; i++ {
		fields = append(fields, Field{Name: fmt.Sprintf("SYS_SENSE%02d", i), Reg: 23 + i, Count: 1, Kind: KindI16Scaled, Scale: ScaleTemp})
	}
	for p := 1; p <= NumFEMPorts; p++ {
		fields = append(fields, Field{Name: portFieldName("P", p, "STATE"), Reg: smartboxRegPortStateBase + p - 1, Count: 1, Kind: KindPortState})
	}
	for p := 1; p <= NumFEMPorts; p++ {
		fields = append(fields, Field{Name: portFieldName("P", p, "CURRENT"), Reg: smartboxRegPortCurrentBase + p - 1, Count: 1, Kind: KindI16Scaled, Scale: ScaleFEMCurrent})
	}
	return fields
}

func smartboxConfFields1() []Field {
	fields := []Field{
		{Name: "SYS_48V_V_TH", Reg: 1001, Count: 4, Kind: KindU16},
		{Name: "SYS_PSU_V_TH", Reg: 1005, Count: 4, Kind: KindU16},
		{Name: "SYS_PSUTEMP_TH", Reg: 1009, Count: 4, Kind: KindU16},
		{Name: "SYS_PCBTEMP_TH", Reg: 1013, Count: 4, Kind: KindU16},
		{Name: "SYS_OUTTEMP_TH", Reg: 1017, Count: 4, Kind: KindU16},
	}
	for i := 1; i <= 12; i++ {
		fields = append(fields, Field{Name: fmt.Sprintf("SYS_SENSE%02d_TH", i), Reg: 1021 + (i-1)*4, Count: 4, Kind: KindU16})
	}
	for p := 1; p <= NumFEMPorts; p++ {
		fields = append(fields, Field{Name: portFieldName("P", p, "CURRENT_TH"), Reg: 1069 + p - 1, Count: 1, Kind: KindU16})
	}
	return fields
}

// smoothedRegisters lists every POLL register whose decoded value PollData
// passes through the low-pass filter: the three voltage/temp rails, the 12
// sensor slots, and the 12 port current registers.
func smoothedRegisters() []int {
	regs := []int{}
	for r := 17; r < 20; r++ {
		regs = append(regs, r)
	}
	for r := 24; r < 36; r++ {
		regs = append(regs, r)
	}
	for r := 48; r < 60; r++ {
		regs = append(regs, r)
	}
	return regs
}

// SMARTbox is a downstream 12-port box powering antenna front-end modules.
type SMARTbox struct {
	*Base
	PDoCNumber int

	smoothed map[string]float64
}

// NewSMARTbox constructs a SMARTbox at the given Modbus address.
func NewSMARTbox(link *modbus.Link, address byte, log Logger) *SMARTbox {
	revisions := map[int]Revision{
		1: {Poll: NewMap(smartboxPollFields1()), Conf: NewMap(smartboxConfFields1())},
	}
	return &SMARTbox{Base: NewBase(link, address, "smartbox", revisions, log), smoothed: map[string]float64{}}
}

// PollData reads the POLL block as Base.PollData does, then applies a
// single-pole low-pass filter (cutoff filterCutoffHz) to the sensor fields
// named in smoothedRegisters, smoothing across successive polls the same
// way the reference driver's SMOOTHED_REGLIST handling does, rather than
// exposing the raw per-poll jitter.
func (s *SMARTbox) PollData() error {
	if err := s.Base.PollData(); err != nil {
		return err
	}
	alpha := 2 * 3.14159265 * filterCutoffHz / (2*3.14159265*filterCutoffHz + 1)
	for _, name := range smoothedFieldNames(s.rev.Poll) {
		raw, ok := s.Snapshot[name].(float64)
		if !ok {
			continue
		}
		prev, seen := s.smoothed[name]
		if !seen {
			prev = raw
		}
		next := prev + alpha*(raw-prev)
		s.smoothed[name] = next
		s.Snapshot[name] = next
	}
	return nil
}

// smoothedFieldNames maps smoothedRegisters' register numbers to this map's field names.
func smoothedFieldNames(m *Map) []string {
	set := map[int]bool{}
	for _, r := range smoothedRegisters() {
		set[r] = true
	}
	names := []string{}
	for _, f := range m.Fields {
		if set[f.Reg] {
			names = append(names, f.Name)
		}
	}
	return names
}

// PortStatus returns the decoded status of FEM port p (1..12) from the most recent poll.
func (s *SMARTbox) PortStatus(p int) (port.Status, bool) {
	if s.Snapshot == nil {
		return port.Status{}, false
	}
	raw, ok := s.Snapshot[portFieldName("P", p, "STATE")].(int)
	if !ok {
		return port.Status{}, false
	}
	return port.Decode(uint16(raw)), true
}

// PortCurrent returns the scaled current draw (mA) of FEM port p from the most recent poll.
func (s *SMARTbox) PortCurrent(p int) (float64, bool) {
	if s.Snapshot == nil {
		return 0, false
	}
	v, ok := s.Snapshot[portFieldName("P", p, "CURRENT")].(float64)
	return v, ok
}

// Configure applies thresholds and port configuration, then clears
// UNINITIALISED. The sensor smoothing filter is reset so the next poll
// re-seeds from a fresh raw reading rather than blending with
// pre-configure history.
func (s *SMARTbox) Configure(thresholds []ConfWrite, portWrites map[int]port.WriteIntent) error {
	s.smoothed = map[string]float64{}
	return s.Base.Configure(thresholds, smartboxRegPortStateBase, portWrites, smartboxRegStatus)
}
