package device

// FNDH (Field Node Distribution Hub): 48V power and communications
// concentrator for 28 downstream PDoC ports, each port's state packed as a
// single combined bitfield register rather than a separate turn-on/health pair.

import (
	modbus "github.com/andreww5au/pasd-station"
	"github.com/andreww5au/pasd-station/port"
)

const (
	NumPDoCPorts = 28

	fndhRegPortBase = 25 // P01_STATE
	fndhRegStatus   = 23
)

// fndhPollFields1 is the mbrv=1 POLL register map.
func fndhPollFields1() []Field {
	fields := []Field{
		{Name: "SYS_MBRV", Reg: 1, Count: 1, Kind: KindU16, Doc: "Modbus register map revision"},
		{Name: "SYS_PCBREV", Reg: 2, Count: 1, Kind: KindU16, Doc: "PCB revision number"},
		{Name: "SYS_CPUID", Reg: 3, Count: 2, Kind: KindU32, Doc: "Microcontroller device ID"},
		{Name: "SYS_CHIPID", Reg: 5, Count: 8, Kind: KindChipID, Doc: "Chip unique device ID"},
		{Name: "SYS_FIRMVER", Reg: 13, Count: 1, Kind: KindU16, Doc: "Firmware version"},
		{Name: "SYS_UPTIME", Reg: 14, Count: 1, Kind: KindU16, Doc: "Uptime in seconds"},
		{Name: "SYS_ADDRESS", Reg: 15, Count: 1, Kind: KindU16, Doc: "Modbus station ID"},
		{Name: "SYS_48V1_V", Reg: 16, Count: 1, Kind: KindI16Scaled, Scale: ScaleVolts, Doc: "Incoming 48VDC rail 1 voltage"},
		{Name: "SYS_48V2_V", Reg: 17, Count: 1, Kind: KindI16Scaled, Scale: ScaleVolts, Doc: "Incoming 48VDC rail 2 voltage"},
		{Name: "SYS_48V_I", Reg: 18, Count: 1, Kind: KindI16Scaled, Scale: ScaleBusCurrent, Doc: "Total 48V bus current"},
		{Name: "SYS_PSUTEMP", Reg: 19, Count: 1, Kind: KindI16Scaled, Scale: ScaleTemp, Doc: "PSU temperature"},
		{Name: "SYS_PCBTEMP", Reg: 20, Count: 1, Kind: KindI16Scaled, Scale: ScaleTemp, Doc: "PCB temperature"},
		{Name: "SYS_OUTTEMP", Reg: 21, Count: 1, Kind: KindI16Scaled, Scale: ScaleTemp, Doc: "Outside temperature"},
		{Name: "SYS_HUMIDITY", Reg: 22, Count: 1, Kind: KindI16Scaled, Scale: ScaleHumidity, Doc: "Outside humidity"},
		{Name: "SYS_STATUS", Reg: fndhRegStatus, Count: 1, Kind: KindU16, Doc: "System status code"},
		{Name: "SYS_LIGHTS", Reg: 24, Count: 1, Kind: KindU16, Doc: "LED state codes"},
	}
	for p := 1; p <= NumPDoCPorts; p++ {
		fields = append(fields, Field{
			Name:  fndhPortFieldName(p),
			Reg:   fndhRegPortBase + p - 1,
			Count: 1,
			Kind:  KindPortState,
			Doc:   "PDoC port status/command bitfield",
		})
	}
	return fields
}

func fndhPortFieldName(p int) string {
	return portFieldName("P", p, "STATE")
}

func fndhConfFields1() []Field {
	return []Field{
		{Name: "SYS_48V1_V_TH_HIGH", Reg: 100, Count: 1, Kind: KindU16, Doc: "48V rail 1 alarm-high threshold"},
		{Name: "SYS_48V1_V_TH_WARNHIGH", Reg: 101, Count: 1, Kind: KindU16},
		{Name: "SYS_48V1_V_TH_WARNLOW", Reg: 102, Count: 1, Kind: KindU16},
		{Name: "SYS_48V1_V_TH_LOW", Reg: 103, Count: 1, Kind: KindU16},
	}
}

// FNDH is the station's Field Node Distribution Hub.
type FNDH struct {
	*Base
}

// NewFNDH constructs an FNDH at the given Modbus address.
func NewFNDH(link *modbus.Link, address byte, log Logger) *FNDH {
	revisions := map[int]Revision{
		1: {Poll: NewMap(fndhPollFields1()), Conf: NewMap(fndhConfFields1())},
	}
	return &FNDH{Base: NewBase(link, address, "fndh", revisions, log)}
}

// PortStatus returns the decoded status of PDoC port p (1..28) from the most
// recent poll.
func (f *FNDH) PortStatus(p int) (port.Status, bool) {
	if f.Snapshot == nil {
		return port.Status{}, false
	}
	raw, ok := f.Snapshot[fndhPortFieldName(p)].(int)
	if !ok {
		return port.Status{}, false
	}
	return port.Decode(uint16(raw)), true
}

// ConfigureAllOff writes every PDoC port's configuration with
// desire_enabled_* off, then clears UNINITIALISED - used before PDoC
// discovery so no box draws power unexpectedly.
func (f *FNDH) ConfigureAllOff(allOff map[int]port.WriteIntent) error {
	return f.Base.Configure(nil, fndhRegPortBase, allOff, fndhRegStatus)
}

// ConfigureFinal applies the persisted per-port desired state.
func (f *FNDH) ConfigureFinal(desired map[int]port.WriteIntent) error {
	return f.Base.Configure(nil, fndhRegPortBase, desired, fndhRegStatus)
}

// ConfigurePort applies intent to a single PDoC port, used by startup's
// one-port-at-a-time power-up sequencing.
func (f *FNDH) ConfigurePort(p int, intent port.WriteIntent) error {
	return f.Base.Configure(nil, fndhRegPortBase, map[int]port.WriteIntent{p: intent}, fndhRegStatus)
}
