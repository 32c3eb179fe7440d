// Package device implements the abstract Modbus device shared by FNDH,
// SMARTbox, FNCC and the weather-station variant: an address, a
// register-map revision latched from the first successful poll, and the
// common poll/configure/reset operations built on the modbus package's
// master operations.
package device

import (
	"fmt"
	"time"

	modbus "github.com/andreww5au/pasd-station"
	"github.com/andreww5au/pasd-station/command"
	"github.com/andreww5au/pasd-station/port"
)

// MBRVRegister is the fixed register carrying the map-revision number,
// constant across every revision of every device type.
const MBRVRegister = 1

// Revision pairs a device's POLL (live telemetry) and CONF (thresholds,
// port config) register maps for one value of SYS_MBRV.
type Revision struct {
	Poll *Map
	Conf *Map
}

// Logger is the narrow logging surface threaded through device operations.
type Logger func(format string, args ...interface{})

// Base holds the fields and operations common to every concrete device type.
type Base struct {
	Link    *modbus.Link
	Address byte
	Name    string
	Log     Logger

	revisions map[int]Revision
	rev       Revision
	latched   bool
	mbrv      int

	PCBRev          int
	CPUID           string
	ChipID          string
	FirmwareVersion int
	Uptime          int
	LastRead        time.Time
	Status          StatusCode
	Indicator       Indicator

	// Snapshot is the full decoded POLL block from the most recent
	// successful PollData call, keyed by register-map field name.
	Snapshot map[string]interface{}
}

// NewBase constructs a device with the given address and the set of
// register-map revisions it understands, keyed by mbrv value.
func NewBase(link *modbus.Link, address byte, name string, revisions map[int]Revision, log Logger) *Base {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	return &Base{Link: link, Address: address, Name: name, revisions: revisions, Log: log, Status: StatusUnknown}
}

func (b *Base) logf(format string, args ...interface{}) {
	b.Log(fmt.Sprintf("%s@%d: ", b.Name, b.Address)+format, args...)
}

// MapUnknownError reports an mbrv value this Base has no compiled-in map for.
type MapUnknownError struct {
	MBRV int
}

func (e *MapUnknownError) Error() string {
	return fmt.Sprintf("device.MapUnknown: register map revision %d not recognised", e.MBRV)
}

// MapChangedError reports a later poll implying a different mbrv than the
// one latched on first contact - this is rejected rather than silently
// re-latched.
type MapChangedError struct {
	Latched, Seen int
}

func (e *MapChangedError) Error() string {
	return fmt.Sprintf("device.MapUnknown: register map revision changed from %d to %d after latching", e.Latched, e.Seen)
}

// PollData reads the entire POLL block in one transaction, decodes every
// field via the current register map, and updates LastRead. On the first
// successful poll it latches mbrv and adopts that revision's maps; mbrv is
// thereafter immutable.
func (b *Base) PollData() error {
	if !b.latched {
		raw, err := b.Link.ReadRegisters(b.Address, MBRVRegister, 1)
		if err != nil {
			return err
		}
		mbrv := raw[0]
		rev, ok := b.revisions[mbrv]
		if !ok {
			return &MapUnknownError{MBRV: mbrv}
		}
		b.mbrv = mbrv
		b.rev = rev
	}

	first, last := b.rev.Poll.Span()
	words, err := b.Link.ReadRegisters(b.Address, first, last-first+1)
	if err != nil {
		return err
	}
	decoded, err := b.rev.Poll.Decode(first, words)
	if err != nil {
		return err
	}
	if gotMbrv, ok := decoded["SYS_MBRV"].(int); ok {
		if b.latched && gotMbrv != b.mbrv {
			return &MapChangedError{Latched: b.mbrv, Seen: gotMbrv}
		}
		b.mbrv = gotMbrv
	}
	b.latched = true
	b.applyCommonFields(decoded)
	b.Snapshot = decoded
	b.LastRead = time.Now()
	return nil
}

func (b *Base) applyCommonFields(decoded map[string]interface{}) {
	if v, ok := decoded["SYS_PCBREV"].(int); ok {
		b.PCBRev = v
	}
	if v, ok := decoded["SYS_CPUID"].(int); ok {
		b.CPUID = fmt.Sprintf("%08X", uint32(v))
	}
	if v, ok := decoded["SYS_CHIPID"].(string); ok {
		b.ChipID = v
	}
	if v, ok := decoded["SYS_FIRMVER"].(int); ok {
		b.FirmwareVersion = v
	}
	if v, ok := decoded["SYS_UPTIME"].(int); ok {
		b.Uptime = v
	}
	if v, ok := decoded["SYS_STATUS"].(int); ok {
		b.Status = DecodeStatus(v)
	}
	if v, ok := decoded["SYS_LIGHTS"].(int); ok {
		b.Indicator = DecodeIndicator(v)
	}
}

// ReadUptime does a short read of the first 16 registers for a quick
// liveness check, returning the uptime in seconds and the implied boot time.
func (b *Base) ReadUptime() (uptimeSeconds int, bootTime time.Time, err error) {
	words, err := b.Link.ReadRegisters(b.Address, MBRVRegister, 16)
	if err != nil {
		return 0, time.Time{}, err
	}
	uptimeSeconds = words[13] // SYS_UPTIME starts at register 14, 1-indexed from MBRVRegister
	for _, rev := range b.revisions {
		if f, ok := rev.Poll.Field("SYS_UPTIME"); ok && f.Count == 2 {
			uptimeSeconds = words[13]<<16 | words[14] // two registers, high half first
			break
		}
	}
	now := time.Now()
	bootTime = now.Add(-time.Duration(uptimeSeconds) * time.Second)
	return uptimeSeconds, bootTime, nil
}

// ConfWrite is one field-to-value write destined for the CONF block.
type ConfWrite struct {
	Field string
	Value int
}

// Configure writes the CONF block (thresholds), then port configuration,
// then writes 1 to SYS_STATUS to leave UNINITIALISED. Each step must
// succeed in order.
func (b *Base) Configure(confWrites []ConfWrite, portBaseReg int, portWrites map[int]port.WriteIntent, statusReg int) error {
	if !b.latched {
		return fmt.Errorf("Configure: device has not been polled yet, register map unknown")
	}
	for _, w := range confWrites {
		field, ok := b.rev.Conf.Field(w.Field)
		if !ok {
			return fmt.Errorf("Configure: field %s not present in CONF map for mbrv %d", w.Field, b.mbrv)
		}
		if err := b.Link.WriteRegister(b.Address, field.Reg, w.Value); err != nil {
			return fmt.Errorf("Configure: writing %s: %w", w.Field, err)
		}
	}
	if len(portWrites) > 0 {
		if err := b.writePortBlock(portBaseReg, portWrites); err != nil {
			return err
		}
	}
	if err := b.Link.WriteRegister(b.Address, statusReg, 1); err != nil {
		return fmt.Errorf("Configure: clearing UNINITIALISED: %w", err)
	}
	return nil
}

// writePortBlock encodes and writes a contiguous run of per-port status
// words starting at portBaseReg, one write-multiple-registers transaction
// per call.
func (b *Base) writePortBlock(portBaseReg int, portWrites map[int]port.WriteIntent) error {
	minPort, maxPort := -1, -1
	for p := range portWrites {
		if minPort == -1 || p < minPort {
			minPort = p
		}
		if p > maxPort {
			maxPort = p
		}
	}
	values := make([]int, maxPort-minPort+1)
	for p := minPort; p <= maxPort; p++ {
		powerState := false
		if cur, ok := b.portStatus(portBaseReg, p); ok {
			powerState = cur.PowerState
		}
		intent := portWrites[p]
		values[p-minPort] = int(port.Encode(intent, powerState))
	}
	regnum := portBaseReg + (minPort - 1)
	return b.Link.WriteMultipleRegisters(b.Address, regnum, values)
}

// portStatus decodes port p's status word from the most recent Snapshot, if available.
func (b *Base) portStatus(portBaseReg, p int) (port.Status, bool) {
	if b.Snapshot == nil {
		return port.Status{}, false
	}
	reg := portBaseReg + p - 1
	for _, f := range b.rev.Poll.Fields {
		if f.Reg == reg && f.Kind == KindPortState {
			if raw, ok := b.Snapshot[f.Name].(int); ok {
				return port.Decode(uint16(raw)), true
			}
		}
	}
	return port.Status{}, false
}

// Reset issues the command-envelope RESET command.
func (b *Base) Reset() error {
	return command.Reset(b.Link, b.Address)
}

// GetSample starts a rapid-sampling run over reglist and blocks, polling
// SAMPLE_COUNT once a second, until the run completes (SAMPLE_COUNT reaches
// SAMPLE_SIZE / len(reglist)), then reads it back. See
// command.StartSample/ReadSamples for the wire-level detail.
func (b *Base) GetSample(intervalMs uint32, reglist []int) (map[int][]int, error) {
	if err := command.StartSample(b.Link, b.Address, intervalMs, reglist); err != nil {
		return nil, err
	}
	size, err := command.SampleSize(b.Link, b.Address)
	for err == nil && len(reglist) > 0 {
		var count int
		if count, err = command.SampleCount(b.Link, b.Address); err != nil || count >= size/len(reglist) {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, err
	}
	return command.ReadSamples(b.Link, b.Address, reglist)
}
