package port

// Threshold block encoding for analog sensors and per-port current trips.

// Threshold is the four-word alarm/warning envelope for one analog sensor,
// in the sensor's native raw register units.
type Threshold struct {
	AlarmHigh   int
	WarningHigh int
	WarningLow  int
	AlarmLow    int
}

// Words renders the threshold as the four registers written to hardware, in
// wire order (alarm-high, warning-high, warning-low, alarm-low).
func (t Threshold) Words() [4]int {
	return [4]int{t.AlarmHigh, t.WarningHigh, t.WarningLow, t.AlarmLow}
}

// DecodeThreshold reads a Threshold back out of four registers in wire order.
func DecodeThreshold(words [4]int) Threshold {
	return Threshold{
		AlarmHigh:   words[0],
		WarningHigh: words[1],
		WarningLow:  words[2],
		AlarmLow:    words[3],
	}
}

// CurrentTrip is the single-word current trip threshold for one FEM port.
type CurrentTrip struct {
	TripMilliamps int
}
