package station

// Steady-state poll/reconcile loop: poll the FNDH first and re-run startup
// if it reports UNINITIALISED, then poll every known SMARTbox in ascending
// address order and re-configure any that report UNINITIALISED, emit
// metrics, upsert store state, and reconcile desired port configuration
// against the last-seen state.

import (
	"fmt"
	"sort"
	"time"

	"github.com/andreww5au/pasd-station/device"
	"github.com/andreww5au/pasd-station/metrics"
	"github.com/andreww5au/pasd-station/port"
	"github.com/andreww5au/pasd-station/store"
)

// DesiredPorts is the caller-supplied source of truth for per-port desired
// online/offline state, read fresh each loop iteration from the store.
type DesiredPorts struct {
	FNDH       map[int]port.WriteIntent
	SMARTboxes map[int]map[int]port.WriteIntent // keyed by SMARTbox address
}

// PollOnce runs one iteration of the steady-state loop: poll, emit metrics,
// upsert store rows, reconcile desired port state, and handle the
// desired_active startup/shutdown gate. Returns an error when the FNDH
// itself is unreachable, or when a startup or shutdown run by this
// iteration fails - the caller's outer loop should then wait and retry.
// SMARTbox, FNCC, weather, metrics, store and reconcile failures are only
// logged.
func (s *Station) PollOnce(desired DesiredPorts) error {
	if err := s.FNDH.PollData(); err != nil {
		return fmt.Errorf("PollOnce: FNDH unreachable: %w", err)
	}
	if s.FNDH.Status == device.StatusUninitialised {
		s.logf("PollOnce: FNDH reports UNINITIALISED, re-running startup")
		if err := s.Startup(desired.FNDH); err != nil {
			return fmt.Errorf("PollOnce: re-startup after FNDH UNINITIALISED: %w", err)
		}
	}
	if s.FNCC != nil {
		if err := s.FNCC.PollData(); err != nil {
			s.logf("PollOnce: FNCC poll failed: %v", err)
		}
	}

	addrs := make([]int, 0, len(s.SMARTboxes))
	for addr := range s.SMARTboxes {
		addrs = append(addrs, addr)
	}
	sort.Ints(addrs)

	batch := metrics.Batch{}
	now := time.Now()
	s.emitFNDHMetrics(batch, now)

	for _, addr := range addrs {
		smb := s.SMARTboxes[addr]
		if err := smb.PollData(); err != nil {
			if s.FNCC != nil && (s.FNCC.BusStatus == device.FNCCStatusModbusStuck || s.FNCC.BusStatus == device.FNCCStatusModbusFrameErrStuck) {
				s.logf("PollOnce: SMARTbox %d poll failed: %v (FNCC reports shared bus stuck, not a single dead box)", addr, err)
			} else {
				s.logf("PollOnce: SMARTbox %d poll failed: %v", addr, err)
			}
			continue
		}
		if smb.Status == device.StatusUninitialised {
			if err := smb.Configure(nil, desired.SMARTboxes[addr]); err != nil {
				s.logf("PollOnce: SMARTbox %d re-configure failed: %v", addr, err)
			}
		}
		s.emitSMARTboxMetrics(batch, addr, now)
	}

	if s.Weather != nil {
		if err := s.Weather.PollData(); err != nil {
			s.logf("PollOnce: weather station poll failed: %v", err)
		}
	}

	if s.Metrics != nil && len(batch) > 0 {
		if err := s.Metrics.Emit(batch); err != nil {
			s.logf("PollOnce: metrics emit failed: %v", err)
		}
	}
	if s.Store != nil {
		s.upsertStore(now)
	}

	if err := s.reconcile(desired); err != nil {
		s.logf("PollOnce: reconcile failed: %v", err)
	}

	return s.reconcileActiveState(desired)
}

// reconcile issues one write-multiple-registers call per device whose
// desired port set differs from its last-seen state.
func (s *Station) reconcile(desired DesiredPorts) error {
	if changed := diffPorts(desired.FNDH, s.FNDH, NumPDoCPorts); changed != nil {
		if err := s.FNDH.ConfigureFinal(changed); err != nil {
			return fmt.Errorf("reconcile: FNDH: %w", err)
		}
	}
	for addr, smb := range s.SMARTboxes {
		if changed := diffPorts(desired.SMARTboxes[addr], smb, device.NumFEMPorts); changed != nil {
			if err := smb.Configure(nil, changed); err != nil {
				return fmt.Errorf("reconcile: SMARTbox %d: %w", addr, err)
			}
		}
	}
	return nil
}

type portStatusReader interface {
	PortStatus(p int) (port.Status, bool)
}

// diffPorts returns only the entries of desired whose online/offline
// intent differs from the device's currently-known port status or that
// request a breaker reset, or nil if there are none.
func diffPorts(desired map[int]port.WriteIntent, dev portStatusReader, numPorts int) map[int]port.WriteIntent {
	var changed map[int]port.WriteIntent
	for p := 1; p <= numPorts; p++ {
		want, ok := desired[p]
		if !ok {
			continue
		}
		cur, ok := dev.PortStatus(p)
		if !ok {
			continue
		}
		if wantsChange(want, cur) {
			if changed == nil {
				changed = make(map[int]port.WriteIntent)
			}
			changed[p] = want
		}
	}
	return changed
}

func wantsChange(want port.WriteIntent, cur port.Status) bool {
	if want.DesireOnline != port.Unset && want.DesireOnline != cur.DesireOnline {
		return true
	}
	if want.DesireOffline != port.Unset && want.DesireOffline != cur.DesireOffline {
		return true
	}
	if want.WriteBreaker {
		return true
	}
	return false
}

// reconcileActiveState applies the desired_active startup/shutdown gate.
func (s *Station) reconcileActiveState(desired DesiredPorts) error {
	now := time.Now()
	if s.DesiredActive && !s.Active {
		if now.Sub(s.lastStartupAttempt) >= StartupRetryInterval {
			s.lastStartupAttempt = now
			return s.Startup(desired.FNDH)
		}
	}
	if !s.DesiredActive && s.Active {
		if now.Sub(s.lastShutdownAttempt) >= ShutdownRetryInterval {
			s.lastShutdownAttempt = now
			return s.shutdown()
		}
	}
	return nil
}

// shutdown powers every PDoC port off.
func (s *Station) shutdown() error {
	allOff := make(map[int]port.WriteIntent, NumPDoCPorts)
	for p := 1; p <= NumPDoCPorts; p++ {
		allOff[p] = port.WriteIntent{DesireOnline: port.False, DesireOffline: port.True}
	}
	if err := s.FNDH.ConfigureFinal(allOff); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.Active = false
	return nil
}

func (s *Station) emitFNDHMetrics(batch metrics.Batch, now time.Time) {
	b := s.FNDH
	add := func(field string, value float64) {
		batch[metrics.Path("pasd", s.ID, "fndh", field)] = metrics.Sample{Timestamp: now, Value: value}
	}
	add("uptime", float64(b.Uptime))
	add("statuscode", float64(b.Status))
	for p := 1; p <= NumPDoCPorts; p++ {
		if st, ok := b.PortStatus(p); ok {
			add(fmt.Sprintf("port%02d.online", p), boolMetric(st.SystemOnline))
			add(fmt.Sprintf("port%02d.powerstate", p), boolMetric(st.PowerState))
		}
	}
}

func (s *Station) emitSMARTboxMetrics(batch metrics.Batch, addr int, now time.Time) {
	smb := s.SMARTboxes[addr]
	prefix := fmt.Sprintf("sb%02d", addr)
	add := func(field string, value float64) {
		batch[metrics.Path("pasd", s.ID, prefix, field)] = metrics.Sample{Timestamp: now, Value: value}
	}
	add("uptime", float64(smb.Uptime))
	add("statuscode", float64(smb.Status))
	for p := 1; p <= device.NumFEMPorts; p++ {
		if cur, ok := smb.PortCurrent(p); ok {
			add(fmt.Sprintf("port%02d.current", p), cur)
		}
	}
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (s *Station) upsertStore(now time.Time) {
	if err := s.Store.UpsertFNDHState(s.ID, store.FNDHStateRow{
		PCBRevision:     s.FNDH.PCBRev,
		CPUID:           s.FNDH.CPUID,
		ChipID:          s.FNDH.ChipID,
		FirmwareVersion: s.FNDH.FirmwareVersion,
		Uptime:          s.FNDH.Uptime,
		Status:          s.FNDH.Status.String(),
		StatusTimestamp: now,
	}); err != nil {
		s.logf("upsertStore: FNDH state: %v", err)
	}

	for p := 1; p <= NumPDoCPorts; p++ {
		st, ok := s.FNDH.PortStatus(p)
		if !ok {
			continue
		}
		online, power := st.SystemOnline, st.PowerState
		forcedOn := st.TechOverride == port.True
		forcedOff := st.TechOverride == port.False
		row := store.FNDHPortRow{
			PDoCNumber:           p,
			SystemOnline:         &online,
			LocallyForcedOn:      &forcedOn,
			LocallyForcedOff:     &forcedOff,
			PowerState:           &power,
			DesireEnabledOnline:  st.DesireOnline,
			DesireEnabledOffline: st.DesireOffline,
			StatusTimestamp:      now,
		}
		if addr, bound := s.PDoCToAddress[p]; bound {
			row.SmartboxNumber = &addr
		}
		if err := s.Store.UpsertFNDHPort(s.ID, row); err != nil {
			s.logf("upsertStore: FNDH port %d: %v", p, err)
		}
	}

	for addr, smb := range s.SMARTboxes {
		if err := s.Store.UpsertSMARTboxState(s.ID, addr, store.SMARTboxStateRow{
			PDoCNumber:      smb.PDoCNumber,
			PCBRevision:     smb.PCBRev,
			CPUID:           smb.CPUID,
			ChipID:          smb.ChipID,
			FirmwareVersion: smb.FirmwareVersion,
			Uptime:          smb.Uptime,
			Status:          smb.Status.String(),
			StatusTimestamp: now,
		}); err != nil {
			s.logf("upsertStore: SMARTbox %d state: %v", addr, err)
		}

		for p := 1; p <= device.NumFEMPorts; p++ {
			st, ok := smb.PortStatus(p)
			if !ok {
				continue
			}
			cur, _ := smb.PortCurrent(p)
			row := store.SMARTboxPortRow{
				SmartboxNumber:       addr,
				PortNumber:           p,
				CurrentDraw:          cur,
				CurrentDrawTimestamp: now,
				BreakerTripped:       st.BreakerTripped,
				DesireEnabledOnline:  st.DesireOnline,
				DesireEnabledOffline: st.DesireOffline,
			}
			if err := s.Store.UpsertSMARTboxPort(s.ID, addr, row); err != nil {
				s.logf("upsertStore: SMARTbox %d port %d: %v", addr, p, err)
			}
		}
	}

	for antenna, binding := range s.AntennaMap {
		row := store.AntennaPortMapRow{
			StationID:      s.ID,
			AntennaNumber:  antenna,
			SmartboxNumber: binding.SmartboxAddr,
			PortNumber:     binding.PortNumber,
			BeginTime:      now,
		}
		if err := s.Store.UpsertAntennaPortMap(s.ID, row); err != nil {
			s.logf("upsertStore: antenna %d port map: %v", antenna, err)
		}
	}
}

// Run drives PollOnce on LoopCadence until ctxDone is closed, reconnecting
// with a 10 s wait whenever the FNDH is unreachable.
func (s *Station) Run(desired func() DesiredPorts, ctxDone <-chan struct{}) {
	for {
		select {
		case <-ctxDone:
			return
		default:
		}
		if err := s.PollOnce(desired()); err != nil {
			s.logf("Run: %v, waiting to reconnect", err)
			select {
			case <-ctxDone:
				return
			case <-time.After(10 * time.Second):
			}
			continue
		}
		select {
		case <-ctxDone:
			return
		case <-time.After(LoopCadence):
		}
	}
}
