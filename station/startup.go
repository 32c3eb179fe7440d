package station

// Startup sequencing and PDoC-to-SMARTbox-address discovery: every PDoC
// port is powered on one at a time with a settle delay, every SMARTbox
// address is then probed for its uptime, and each address is bound to
// whichever port's power-on time it booted closest after - the only
// correlation available, since PDoC ports and SMARTbox Modbus addresses
// are independently numbered.

import (
	"fmt"
	"sort"
	"time"

	"github.com/andreww5au/pasd-station/port"
)

// Startup powers up every PDoC port in turn, probes every possible SMARTbox
// address for its boot time, binds each discovered address to the PDoC port
// that most plausibly powered it on, and finally writes the persisted
// desired port configuration.
func (s *Station) Startup(desiredPorts map[int]port.WriteIntent) error {
	s.logf("startup: polling FNDH")
	if err := s.FNDH.PollData(); err != nil {
		return fmt.Errorf("startup: polling FNDH: %w", err)
	}

	allOff := make(map[int]port.WriteIntent, NumPDoCPorts)
	for p := 1; p <= NumPDoCPorts; p++ {
		allOff[p] = port.WriteIntent{DesireOnline: port.False, DesireOffline: port.True}
	}
	s.logf("startup: configuring all PDoC ports off")
	if err := s.FNDH.ConfigureAllOff(allOff); err != nil {
		return fmt.Errorf("startup: configure_all_off: %w", err)
	}
	time.Sleep(PowerOnStabiliseTime)

	portOnTime := make(map[int]time.Time, NumPDoCPorts)
	for p := 1; p <= NumPDoCPorts; p++ {
		s.logf("startup: powering on PDoC port %d", p)
		intent := port.WriteIntent{DesireOnline: port.True, DesireOffline: port.False}
		if err := s.FNDH.ConfigurePort(p, intent); err != nil {
			s.logf("startup: powering on PDoC port %d: %v", p, err)
			continue
		}
		portOnTime[p] = time.Now()
		time.Sleep(PortOnSettleTime)
	}

	addressBootTime := make(map[int]time.Time)
	for addr := 1; addr < MaxSMARTboxAddress; addr++ {
		smb := s.smartbox(addr)
		uptime, boot, err := smb.ReadUptime()
		if err != nil {
			continue
		}
		_ = uptime
		addressBootTime[addr] = boot
	}

	s.PDoCToAddress = make(map[int]int, NumPDoCPorts)
	s.AddressToPDoC = make(map[int]int, len(addressBootTime))
	for p := 1; p <= NumPDoCPorts; p++ {
		onAt, ok := portOnTime[p]
		if !ok {
			continue
		}
		type candidate struct {
			addr  int
			delta time.Duration
		}
		var candidates []candidate
		for addr, boot := range addressBootTime {
			if boot.After(onAt) {
				candidates = append(candidates, candidate{addr, boot.Sub(onAt)})
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].delta < candidates[j].delta })
		if len(candidates) > 0 && candidates[0].delta < BootCorrelationWindow {
			addr := candidates[0].addr
			s.PDoCToAddress[p] = addr
			s.AddressToPDoC[addr] = p
			smb := s.smartbox(addr)
			smb.PDoCNumber = p
			s.logf("startup: bound PDoC port %d to SMARTbox address %d (boot delay %v)", p, addr, candidates[0].delta)
		}
	}

	s.logf("startup: configuring final PDoC port state")
	if err := s.FNDH.ConfigureFinal(desiredPorts); err != nil {
		return fmt.Errorf("startup: configure_final: %w", err)
	}
	s.Active = true
	s.lastStartupAttempt = time.Now()
	return nil
}
