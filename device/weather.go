package device

// Weather is a modified SMARTbox carrying seven general-purpose sensor
// channels instead of FEM ports.

import (
	"fmt"

	modbus "github.com/andreww5au/pasd-station"
)

const (
	mmPerRainCount  = 0.2794
	kphPerCountPerS = 2.400
	maxHistorySecs  = 3600
)

// SensorMode selects how a weather-station sensor channel's COUNT_N/PERIOD_N
// registers behave, per weather.py's Sensor mode values.
type SensorMode int

const (
	SensorModeRaw         SensorMode = 0
	SensorModeRisingEdge  SensorMode = 1
	SensorModeFallingEdge SensorMode = 2
	SensorModeBothEdges   SensorMode = 3
	SensorModeStabilised  SensorMode = 4
)

// countPeriod is one (count, period) measurement retained in a sensor's
// rolling history, used to average edge-counting sensors over time.
type countPeriod struct {
	count, periodDeciseconds int
}

// Sensor is one of the weather station's seven multi-purpose analog inputs.
type Sensor struct {
	ID                               int
	Mode                             SensorMode
	RisingEdge, FallingEdge          int
	HoldTimeMillis                   int
	Sample, Count, PeriodDeciseconds int

	history []countPeriod
}

func defaultWeatherSensors() map[int]*Sensor {
	return map[int]*Sensor{
		1: {ID: 1, Mode: SensorModeFallingEdge, RisingEdge: 3800, FallingEdge: 800, HoldTimeMillis: 100},
		2: {ID: 2, Mode: SensorModeRisingEdge, RisingEdge: 3800, FallingEdge: 800, HoldTimeMillis: 20},
		3: {ID: 3, Mode: SensorModeStabilised, RisingEdge: 10, FallingEdge: 0, HoldTimeMillis: 100},
		4: {ID: 4, Mode: SensorModeRaw},
		5: {ID: 5, Mode: SensorModeRaw},
		6: {ID: 6, Mode: SensorModeRaw},
		7: {ID: 7, Mode: SensorModeRaw},
	}
}

// pushHistory records the current count/period pair, trimming the oldest
// entries once the accumulated period exceeds maxHistorySecs (weather.py's
// push_new, used for higher-precision averaging of edge-counting sensors).
func (s *Sensor) pushHistory() {
	if s.Mode != SensorModeRisingEdge && s.Mode != SensorModeFallingEdge && s.Mode != SensorModeBothEdges {
		return
	}
	s.history = append(s.history, countPeriod{count: s.Count, periodDeciseconds: s.PeriodDeciseconds})
	total := 0
	for _, h := range s.history {
		total += h.periodDeciseconds
	}
	for float64(total)*0.1 >= maxHistorySecs && len(s.history) > 1 {
		total -= s.history[0].periodDeciseconds
		s.history = s.history[1:]
	}
}

// value returns the raw or stabilised reading for modes 0 and 4.
func (s *Sensor) value() (int, bool) {
	switch s.Mode {
	case SensorModeRaw:
		return s.Sample, true
	case SensorModeStabilised:
		return s.Count, true
	default:
		return 0, false
	}
}

// rate returns edges per second for an edge-counting sensor.
func (s *Sensor) rate() (float64, bool) {
	switch s.Mode {
	case SensorModeRisingEdge, SensorModeFallingEdge, SensorModeBothEdges:
		if s.PeriodDeciseconds == 0 {
			return 0, true
		}
		return 10.0 * float64(s.Count) / float64(s.PeriodDeciseconds), true
	default:
		return 0, false
	}
}

// avgData sums the retained history into a total count and total seconds.
func (s *Sensor) avgData() (totalCount int, totalSeconds float64, ok bool) {
	switch s.Mode {
	case SensorModeRisingEdge, SensorModeFallingEdge, SensorModeBothEdges:
		periodTenths := 0
		for _, h := range s.history {
			totalCount += h.count
			periodTenths += h.periodDeciseconds
		}
		return totalCount, float64(periodTenths) / 10.0, true
	default:
		return 0, 0, false
	}
}

// configRegisters returns the four-word COUNT_N_CONF block for this sensor.
func (s *Sensor) configRegisters() []int {
	return []int{int(s.Mode), s.RisingEdge, s.FallingEdge, s.HoldTimeMillis}
}

// windDirBoundaries is WIND_DIRS: ADC boundary -> compass bearing, in
// ascending-boundary order; the first boundary whose value exceeds the raw
// reading gives the bearing.
var windDirBoundaries = []struct {
	boundary int
	bearing  float64
	valid    bool
}{
	{500, 0, false},
	{789, 112.5, true},
	{912, 67.5, true},
	{1088, 90.0, true},
	{1431, 157.5, true},
	{1817, 135.0, true},
	{2107, 202.5, true},
	{2472, 180.0, true},
	{2823, 22.5, true},
	{3120, 45.0, true},
	{3358, 247.5, true},
	{3477, 225.0, true},
	{3641, 337.5, true},
	{3761, 0.0, true},
	{3848, 292.5, true},
	{3942, 315.0, true},
	{4041, 270.0, true},
	{4095, 0, false},
}

// tempTable1/tempTable2 are TEMPS1/TEMPS2: a piecewise-linear decode of the
// weather station's thermistor ADC reading into degrees C x 100.
var tempTable1 = []int{20000, 12068, 9470, 8004, 6957, 6120, 5406, 4765, 4168, 3592, 3020, 2430, 1798, 1083, 201, -20000}
var tempTable2 = []int{0, 2598, 1466, 1047, 837, 714, 641, 597, 576, 572, 590, 632, 715, 882, 1294, 0}

func weatherPollFields1() []Field {
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
		{Name: "SYS_STATUS", Reg: 22, Count: 1, Kind: KindU16},
		{Name: "SYS_LIGHTS", Reg: 23, Count: 1, Kind: KindU16},
	}
	for n := 1; n <= 7; n++ {
		fields = append(fields, Field{Name: weatherSampleName(n), Reg: 23 + n, Count: 1, Kind: KindU16})
	}
	for n := 1; n <= 7; n++ {
		fields = append(fields, Field{Name: weatherCountName(n), Reg: 30 + n, Count: 1, Kind: KindU16})
	}
	for n := 1; n <= 7; n++ {
		fields = append(fields, Field{Name: weatherPeriodName(n), Reg: 37 + n, Count: 1, Kind: KindU16})
	}
	return fields
}

func weatherConfFields1() []Field {
	fields := make([]Field, 0, 7)
	for n := 1; n <= 7; n++ {
		fields = append(fields, Field{Name: weatherSensorConfName(n), Reg: 1001 + (n-1)*4, Count: 4, Kind: KindU16})
	}
	return fields
}

func weatherSampleName(n int) string     { return sensorFieldName("SAMPLE", n) }
func weatherCountName(n int) string      { return sensorFieldName("COUNT", n) }
func weatherPeriodName(n int) string     { return sensorFieldName("PERIOD", n) }
func weatherSensorConfName(n int) string { return fmt.Sprintf("SENSOR_%d_CONF", n) }

// Weather is a weather-station variant of the SMARTbox hardware.
type Weather struct {
	*Base
	Sensors map[int]*Sensor
}

// NewWeather constructs a weather-station device at the given Modbus address.
func NewWeather(link *modbus.Link, address byte, log Logger) *Weather {
	revisions := map[int]Revision{
		1: {Poll: NewMap(weatherPollFields1()), Conf: NewMap(weatherConfFields1())},
	}
	return &Weather{Base: NewBase(link, address, "weather", revisions, log), Sensors: defaultWeatherSensors()}
}

// PollData reads the POLL block and updates each sensor's sample/count/period
// from the decoded snapshot, pushing edge-counting sensors' history.
func (w *Weather) PollData() error {
	if err := w.Base.PollData(); err != nil {
		return err
	}
	for n := 1; n <= 7; n++ {
		s := w.Sensors[n]
		if v, ok := w.Snapshot[weatherSampleName(n)].(int); ok {
			s.Sample = v
		}
		if v, ok := w.Snapshot[weatherCountName(n)].(int); ok {
			s.Count = v
		}
		if v, ok := w.Snapshot[weatherPeriodName(n)].(int); ok {
			s.PeriodDeciseconds = v
			s.pushHistory()
		}
	}
	return nil
}

// WindDirection returns the compass bearing in degrees E of N from sensor 3,
// or false if the reading is out of the valid (non-open/non-shorted) range.
func (w *Weather) WindDirection() (float64, bool) {
	v, ok := w.Sensors[3].value()
	if !ok {
		return 0, false
	}
	for _, b := range windDirBoundaries {
		if v < b.boundary {
			return b.bearing, b.valid
		}
	}
	return 0, false
}

// RainAvg returns a rolling rainfall average in mm/hour from sensor 1.
func (w *Weather) RainAvg() (float64, bool) {
	count, seconds, ok := w.Sensors[1].avgData()
	if !ok || seconds == 0 {
		return 0, false
	}
	return 3600 * mmPerRainCount * float64(count) / seconds, true
}

// WindSpeed returns the most recent wind speed in km/h from sensor 2.
func (w *Weather) WindSpeed() (float64, bool) {
	cps, ok := w.Sensors[2].rate()
	if !ok {
		return 0, false
	}
	return kphPerCountPerS * cps, true
}

// Temperature decodes the air temperature in degrees C from sensor 4's raw
// ADC value, via the two-table piecewise-linear interpolation.
func (w *Weather) Temperature() (float64, bool) {
	v, ok := w.Sensors[4].value()
	if !ok {
		return 0, false
	}
	idx := (v & 0x0f00) >> 8
	if idx >= len(tempTable1) {
		return 0, false
	}
	delta := (tempTable2[idx]*(v&0x00ff) + 0x80) >> 8
	return float64(tempTable1[idx]-delta) / 100.0, true
}

// Light returns the ambient light level in Lux from sensor 5's raw ADC value.
func (w *Weather) Light() (float64, bool) {
	v, ok := w.Sensors[5].value()
	if !ok {
		return 0, false
	}
	return 114400.0 - (float64(v) / 4095.0 * 114400.0), true
}

// Configure writes each sensor's mode/threshold block, then clears
// UNINITIALISED. Each CONF field is a 4-word block, so these go out as
// direct WriteMultipleRegisters calls rather than through Base.Configure's
// one-scalar-per-field ConfWrite model.
func (w *Weather) Configure() error {
	for n := 1; n <= 7; n++ {
		field, ok := w.rev.Conf.Field(weatherSensorConfName(n))
		if !ok {
			continue
		}
		if err := w.Link.WriteMultipleRegisters(w.Address, field.Reg, w.Sensors[n].configRegisters()); err != nil {
			return fmt.Errorf("Configure: writing %s: %w", weatherSensorConfName(n), err)
		}
	}
	return w.Base.Configure(nil, 0, nil, 22)
}

func sensorFieldName(prefix string, n int) string {
	return fmt.Sprintf("%s_%d", prefix, n)
}
