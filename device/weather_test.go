package device

import "testing"

func TestWindDirectionLooksUpBoundary(t *testing.T) {
	w := NewWeather(nil, 32, nil)
	w.Sensors[3].Mode = SensorModeStabilised
	w.Sensors[3].Count = 1000 // falls in the (912,1088) bucket -> 90.0 degrees

	got, ok := w.WindDirection()
	if !ok {
		t.Fatal("WindDirection ok = false, want true")
	}
	if got != 90.0 {
		t.Errorf("WindDirection() = %v, want 90.0", got)
	}
}

func TestWindDirectionOutOfRangeIsInvalid(t *testing.T) {
	w := NewWeather(nil, 32, nil)
	w.Sensors[3].Count = 100 // below the first boundary, marked invalid

	if _, ok := w.WindDirection(); ok {
		t.Error("WindDirection() should be invalid for a reading below the first boundary")
	}
}

func TestRainAvgUsesHistory(t *testing.T) {
	w := NewWeather(nil, 32, nil)
	w.Sensors[1].Mode = SensorModeFallingEdge
	w.Sensors[1].Count = 10
	w.Sensors[1].PeriodDeciseconds = 36000 // 3600 seconds, one hour
	w.Sensors[1].pushHistory()

	got, ok := w.RainAvg()
	if !ok {
		t.Fatal("RainAvg ok = false, want true")
	}
	want := mmPerRainCount * 10
	if got < want-1e-6 || got > want+1e-6 {
		t.Errorf("RainAvg() = %v, want %v", got, want)
	}
}

func TestWindSpeedConvertsCountsPerSecond(t *testing.T) {
	w := NewWeather(nil, 32, nil)
	w.Sensors[2].Mode = SensorModeRisingEdge
	w.Sensors[2].Count = 10
	w.Sensors[2].PeriodDeciseconds = 100 // 10 seconds -> 1 count/sec

	got, ok := w.WindSpeed()
	if !ok {
		t.Fatal("WindSpeed ok = false, want true")
	}
	if got != kphPerCountPerS {
		t.Errorf("WindSpeed() = %v, want %v", got, kphPerCountPerS)
	}
}

func TestLightInverseScale(t *testing.T) {
	w := NewWeather(nil, 32, nil)
	w.Sensors[5].Sample = 0

	got, ok := w.Light()
	if !ok || got != 114400.0 {
		t.Errorf("Light() = %v, ok=%v, want 114400.0, true", got, ok)
	}
}

func TestSensorPushHistoryIgnoresRawModes(t *testing.T) {
	w := NewWeather(nil, 32, nil)
	w.Sensors[4].Count = 5
	w.Sensors[4].PeriodDeciseconds = 10
	w.Sensors[4].pushHistory()
	if len(w.Sensors[4].history) != 0 {
		t.Error("pushHistory should not record history for a raw-mode sensor")
	}
}
