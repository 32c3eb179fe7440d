package device

// FNCC (Field Node Communications Controller): the microcontroller inside
// the FNDH that bridges the shared SMARTbox serial bus, read-only from the
// orchestrator's point of view beyond its comms lock.

import (
	modbus "github.com/andreww5au/pasd-station"
)

// FNCCStatus mirrors fncc.py's STATUS_CODES, distinct from the shared
// device.StatusCode used by FNDH/SMARTbox - the FNCC has its own small set
// of bus-health states rather than the common OK/WARNING/ALARM ladder.
type FNCCStatus int

const (
	FNCCStatusUnknown             FNCCStatus = -1
	FNCCStatusOK                  FNCCStatus = 0
	FNCCStatusReset               FNCCStatus = 1
	FNCCStatusModbusFrameError    FNCCStatus = 2
	FNCCStatusModbusStuck         FNCCStatus = 3
	FNCCStatusModbusFrameErrStuck FNCCStatus = 4
)

func (s FNCCStatus) String() string {
	switch s {
	case FNCCStatusOK:
		return "OK"
	case FNCCStatusReset:
		return "RESET"
	case FNCCStatusModbusFrameError:
		return "MODBUS_FRAME_ERROR"
	case FNCCStatusModbusStuck:
		return "MODBUS_STUCK"
	case FNCCStatusModbusFrameErrStuck:
		return "MODBUS_FRAME_ERROR_STUCK"
	default:
		return "UNKNOWN"
	}
}

const fnccRegStatus = 17

func fnccPollFields1() []Field {
	return []Field{
		{Name: "SYS_MBRV", Reg: 1, Count: 1, Kind: KindU16},
		{Name: "SYS_PCBREV", Reg: 2, Count: 1, Kind: KindU16},
		{Name: "SYS_CPUID", Reg: 3, Count: 2, Kind: KindU32},
		{Name: "SYS_CHIPID", Reg: 5, Count: 8, Kind: KindChipID},
		{Name: "SYS_FIRMVER", Reg: 13, Count: 1, Kind: KindU16},
		{Name: "SYS_UPTIME", Reg: 14, Count: 2, Kind: KindU32},
		{Name: "SYS_ADDRESS", Reg: 16, Count: 1, Kind: KindU16},
		{Name: "SYS_STATUS", Reg: fnccRegStatus, Count: 1, Kind: KindU16},
		{Name: "FIELD_NODE_NUMBER", Reg: 18, Count: 1, Kind: KindU16},
	}
}

func fnccConfFields1() []Field {
	return []Field{
		{Name: "COMMS_LOCK", Reg: 18, Count: 1, Kind: KindU16},
	}
}

// FNCC is the FNDH's internal comms-bridge microcontroller.
type FNCC struct {
	*Base

	// FieldNodeNumber mirrors the FNDH's 4-digit front-panel switch value.
	FieldNodeNumber int
	// BusStatus is the decoded SYS_STATUS as an FNCC-specific code, since
	// the FNCC's status ladder is not the common device.StatusCode one.
	BusStatus FNCCStatus
}

// NewFNCC constructs an FNCC at the given Modbus address.
func NewFNCC(link *modbus.Link, address byte, log Logger) *FNCC {
	revisions := map[int]Revision{
		1: {Poll: NewMap(fnccPollFields1()), Conf: NewMap(fnccConfFields1())},
		3: {Poll: NewMap(fnccPollFields1()), Conf: NewMap(fnccConfFields1())},
	}
	return &FNCC{Base: NewBase(link, address, "fncc", revisions, log)}
}

// PollData reads the FNCC's registers and additionally decodes the
// FNCC-specific bus status and field-node-number fields that Base's common
// field set does not know about.
func (f *FNCC) PollData() error {
	if err := f.Base.PollData(); err != nil {
		return err
	}
	if v, ok := f.Snapshot["SYS_STATUS"].(int); ok {
		f.BusStatus = FNCCStatus(v)
	}
	if v, ok := f.Snapshot["FIELD_NODE_NUMBER"].(int); ok {
		f.FieldNodeNumber = v
	}
	return nil
}

// SetCommsLock writes the shared SMARTbox bus comms lock register.
func (f *FNCC) SetCommsLock(locked bool) error {
	value := 0
	if locked {
		value = 1
	}
	return f.Base.Configure([]ConfWrite{{Field: "COMMS_LOCK", Value: value}}, 0, nil, fnccRegStatus)
}
