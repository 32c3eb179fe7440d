// Package store defines the external persisted-state contract: row shapes
// and a Store interface for reading desired state and upserting observed
// state. No concrete backing implementation ships in this module - callers
// supply their own Store (SQL, in-memory, etc).
package store

import (
	"time"

	"github.com/andreww5au/pasd-station/port"
)

// StationRow is the one-per-station summary row.
type StationRow struct {
	StationID       string
	Active          bool
	DesiredActive   bool
	Status          string
	StatusTimestamp time.Time
}

// FNDHStateRow carries every telemetry field polled from the FNDH.
type FNDHStateRow struct {
	PCBRevision     int
	CPUID           string
	ChipID          string
	FirmwareVersion int
	Uptime          int
	Rail1Volts      float64
	Rail2Volts      float64
	BusCurrent      float64
	PSUTemp         float64
	PCBTemp         float64
	OutsideTemp     float64
	Humidity        float64
	Status          string
	StatusTimestamp time.Time
}

// FNDHPortRow is one of the 28 per-station PDoC port rows.
type FNDHPortRow struct {
	PDoCNumber           int
	SmartboxNumber       *int
	SystemOnline         *bool
	LocallyForcedOn      *bool
	LocallyForcedOff     *bool
	PowerState           *bool
	PowerSense           *bool
	DesireEnabledOnline  port.TriState
	DesireEnabledOffline port.TriState
	StatusTimestamp      time.Time
}

// SMARTboxStateRow carries every telemetry field polled from one SMARTbox.
type SMARTboxStateRow struct {
	PDoCNumber      int
	PCBRevision     int
	CPUID           string
	ChipID          string
	FirmwareVersion int
	Uptime          int
	Rail48VVolts    float64
	PSUVolts        float64
	PSUTemp         float64
	PCBTemp         float64
	OutsideTemp     float64
	Status          string
	StatusTimestamp time.Time
}

// SMARTboxPortRow is one of the 288 (24 boxes x 12 ports) per-station FEM port rows.
type SMARTboxPortRow struct {
	SmartboxNumber       int
	PortNumber           int
	CurrentDraw          float64
	CurrentDrawTimestamp time.Time
	BreakerTripped       bool
	ResetBreaker         bool // desired, one-shot
	DesireEnabledOnline  port.TriState
	DesireEnabledOffline port.TriState
}

// AntennaPortMapRow is one time-bounded antenna-to-port binding.
type AntennaPortMapRow struct {
	StationID      string
	AntennaNumber  int
	SmartboxNumber int
	PortNumber     int
	BeginTime      time.Time
	EndTime        *time.Time
}

// Store is the persisted-state contract the orchestrator reads desired
// state from and upserts observed state into. On startup the core ensures
// exactly one row exists for each expected entity - deleting duplicates,
// inserting if missing - which is the concrete Store implementation's
// responsibility, not this interface's.
type Store interface {
	GetStation(stationID string) (StationRow, error)
	UpsertStation(row StationRow) error

	GetFNDHState(stationID string) (FNDHStateRow, error)
	UpsertFNDHState(stationID string, row FNDHStateRow) error

	GetFNDHPorts(stationID string) (map[int]FNDHPortRow, error)
	UpsertFNDHPort(stationID string, row FNDHPortRow) error

	GetSMARTboxState(stationID string, address int) (SMARTboxStateRow, error)
	UpsertSMARTboxState(stationID string, address int, row SMARTboxStateRow) error

	GetSMARTboxPorts(stationID string, address int) (map[int]SMARTboxPortRow, error)
	UpsertSMARTboxPort(stationID string, address int, row SMARTboxPortRow) error

	GetAntennaPortMap(stationID string) ([]AntennaPortMapRow, error)
	UpsertAntennaPortMap(stationID string, row AntennaPortMapRow) error
}
