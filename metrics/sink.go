// Package metrics defines the telemetry sink interface the station
// orchestrator emits polled field values to: a flat batch of dotted-path
// samples, not a concrete time-series backend. No concrete Sink ships in
// this module - callers supply their own.
package metrics

import "time"

// Sample is one telemetry reading: when it was taken, and its value.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Batch maps a dotted metric path (e.g. "pasd.fieldtest.sb02.port07.current")
// to its most recent sample.
type Batch map[string]Sample

// Sink accepts a batch of samples collected during one poll cycle. A
// failure is logged by the caller and retried next cycle; Emit should not
// block indefinitely.
type Sink interface {
	Emit(batch Batch) error
}

// Path builds a metric path from its hierarchy components, joined with ".",
// e.g. "pasd.fieldtest.sb02.port07.current".
func Path(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "." + p
	}
	return out
}
