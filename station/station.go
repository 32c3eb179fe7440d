// Package station implements the control-building-side supervisor for one
// antenna station: FNDH power sequencing, PDoC-to-SMARTbox discovery by
// boot-time uptime correlation, the steady-state poll/reconcile loop, and
// the slave-mode register view served to hand-held technician devices.
package station

import (
	"fmt"
	"time"

	modbus "github.com/andreww5au/pasd-station"
	"github.com/andreww5au/pasd-station/device"
	"github.com/andreww5au/pasd-station/metrics"
	"github.com/andreww5au/pasd-station/store"
)

const (
	// NumPDoCPorts is the FNDH's fixed PDoC port count.
	NumPDoCPorts = device.NumPDoCPorts
	// MaxSMARTboxAddress bounds the Modbus addresses probed during PDoC discovery.
	MaxSMARTboxAddress = 30

	// PortOnSettleTime is how long startup waits between turning on
	// successive PDoC ports.
	PortOnSettleTime = 10 * time.Second
	// PowerOnStabiliseTime is how long startup waits after configure_all_off
	// before beginning the port-by-port power-up.
	PowerOnStabiliseTime = 5 * time.Second
	// BootCorrelationWindow is the maximum boot-time delta accepted when
	// binding a SMARTbox address to the PDoC port that powered it on.
	BootCorrelationWindow = 10 * time.Second

	// FNCCAddress is the fixed Modbus address of the FNDH's internal comms
	// microcontroller.
	FNCCAddress = 100

	// StartupRetryInterval and ShutdownRetryInterval gate re-attempts of
	// startup/shutdown in the steady-state loop.
	StartupRetryInterval  = 600 * time.Second
	ShutdownRetryInterval = 600 * time.Second

	// LoopCadence is the steady-state loop's target iteration interval.
	LoopCadence = 15 * time.Second
)

// Logger is the narrow logging surface threaded through station operations.
type Logger func(format string, args ...interface{})

// Station owns one Connection, one FNDH, and a set of SMARTboxes keyed by
// Modbus address. An optional Weather device shares the bus.
type Station struct {
	ID   string
	Link *modbus.Link
	Log  Logger

	// ListenAddress is the Modbus address the station answers on when
	// serving slave-mode requests from a hand-held technician device;
	// broadcast (address 0) is also always served.
	ListenAddress byte

	FNDH       *device.FNDH
	FNCC       *device.FNCC
	SMARTboxes map[int]*device.SMARTbox
	Weather    *device.Weather

	Store   store.Store
	Metrics metrics.Sink

	// PDoCToAddress and AddressToPDoC are the boot-time-correlated PDoC <->
	// SMARTbox-address bindings established by Startup.
	PDoCToAddress map[int]int
	AddressToPDoC map[int]int

	Active        bool
	DesiredActive bool
	WantsExit     bool

	lastStartupAttempt  time.Time
	lastShutdownAttempt time.Time

	// AntennaMap binds antenna number (1..256) to the SMARTbox/port currently
	// wired to it - the slave-mode register view's register 1-256 block.
	AntennaMap     map[int]AntennaBinding
	pending        map[int]int
	messageWritten bool

	// DesiredAntenna, ChipID, LogNum and Message back the ANTNUM/CHIPID/
	// LOGNUM/MESSAGE log-query registers served in slave mode.
	DesiredAntenna int
	ChipID         [8]int
	LogNum         int
	Message        []int

	// LogLookup, when set, is consulted to answer a log-entry query: given
	// the requested log number, antenna and chip ID, it returns the text to
	// place in the MESSAGE registers and the unix timestamp to append.
	LogLookup func(logNum, antenna int, chipID string) (text string, unixTime int)
	// LogSave, when set, is called when a technician device writes a new MESSAGE block.
	LogSave func(logNum, antenna int, chipID string, text string)
}

// AntennaBinding is one antenna's current SMARTbox address and port number.
type AntennaBinding struct {
	SmartboxAddr int
	PortNumber   int
}

// New constructs a Station. fndhAddress is usually 31 per the reference deployment.
func New(link *modbus.Link, id string, fndhAddress byte, st store.Store, sink metrics.Sink, log Logger) *Station {
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	return &Station{
		ID:            id,
		Link:          link,
		Log:           log,
		FNDH:          device.NewFNDH(link, fndhAddress, device.Logger(log)),
		FNCC:          device.NewFNCC(link, FNCCAddress, device.Logger(log)),
		SMARTboxes:    make(map[int]*device.SMARTbox),
		Store:         st,
		Metrics:       sink,
		PDoCToAddress: make(map[int]int),
		AddressToPDoC: make(map[int]int),
		AntennaMap:    make(map[int]AntennaBinding),
		pending:       make(map[int]int),
		DesiredActive: true,
	}
}

func (s *Station) logf(format string, args ...interface{}) {
	s.Log(fmt.Sprintf("station %s: ", s.ID)+format, args...)
}

// smartbox returns the SMARTbox at address addr, creating and caching one
// (with no PDoC binding yet) if this is the first time it has been seen.
func (s *Station) smartbox(addr int) *device.SMARTbox {
	if smb, ok := s.SMARTboxes[addr]; ok {
		return smb
	}
	smb := device.NewSMARTbox(s.Link, byte(addr), device.Logger(s.Log))
	s.SMARTboxes[addr] = smb
	return smb
}
