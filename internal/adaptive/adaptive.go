// Package adaptive implements the moving-average speed tracker that
// keeps the receiver's acceptance windows in step with the operator's
// actual sending speed instead of a fixed WPM knob. See spec §4.8.
package adaptive

import "github.com/n7cw/cwkeyer/internal/timing"

// window is a length-4 moving average kept as (ring, cursor,
// running_sum): each update evicts the cell the cursor is about to
// overwrite, adjusts running_sum by the delta, and advances the cursor
// mod 4. Average is always running_sum/4; Seed fills all four cells so
// the average never starts biased toward zero.
type window struct {
	ring       [4]float64
	cursor     int
	runningSum float64
}

func (w *window) seed(v float64) {
	for i := range w.ring {
		w.ring[i] = v
	}
	w.runningSum = v * 4
	w.cursor = 0
}

func (w *window) add(v float64) {
	evicted := w.ring[w.cursor]
	w.runningSum += v - evicted
	w.ring[w.cursor] = v
	w.cursor = (w.cursor + 1) % 4
}

func (w *window) average() float64 {
	return w.runningSum / 4
}

// Tracker maintains the dot and dash moving averages and keeps a
// timing.Receiver's AdaptiveThresholdUS in sync with them.
type Tracker struct {
	receiver *timing.Receiver
	dot      window
	dash     window
	enabled  bool
}

// New builds a Tracker bound to the given receiver timing set. The
// tracker is inactive until Enable is called.
func New(r *timing.Receiver) *Tracker {
	return &Tracker{receiver: r}
}

// Enable seeds both moving averages from the receiver's current
// dot/dash ideal lengths, so the initial estimate matches the
// currently configured speed rather than being biased by stale
// samples, then switches the receiver into adaptive mode.
func (t *Tracker) Enable() error {
	t.dot.seed(float64(t.receiver.Dot.Ideal))
	t.dash.seed(float64(t.receiver.Dash.Ideal))
	t.enabled = true
	t.receiver.SetAdaptive(true)
	return t.resync()
}

// Disable switches the receiver back to fixed-speed mode. The moving
// averages are left as-is in case the caller re-enables later.
func (t *Tracker) Disable() error {
	t.enabled = false
	t.receiver.SetAdaptive(false)
	return t.receiver.Sync()
}

// Enabled reports whether the tracker is currently driving the
// receiver's adaptive threshold.
func (t *Tracker) Enabled() bool {
	return t.enabled
}

// RecordDot folds a classified dot's observed duration into the dot
// moving average and recomputes the adaptive threshold.
func (t *Tracker) RecordDot(observedUS int) error {
	t.dot.add(float64(observedUS))
	return t.recompute()
}

// RecordDash folds a classified dash's observed duration into the
// dash moving average and recomputes the adaptive threshold.
func (t *Tracker) RecordDash(observedUS int) error {
	t.dash.add(float64(observedUS))
	return t.recompute()
}

// DotAverageUS returns the current dot moving average in microseconds.
func (t *Tracker) DotAverageUS() float64 {
	return t.dot.average()
}

// DashAverageUS returns the current dash moving average in microseconds.
func (t *Tracker) DashAverageUS() float64 {
	return t.dash.average()
}

// recompute derives adaptive_threshold = (avg_dash-avg_dot)/2 + avg_dot,
// pushes it into the receiver and marks it dirty so the next timing
// query resyncs.
func (t *Tracker) recompute() error {
	if !t.enabled {
		return nil
	}
	threshold := (t.dash.average()-t.dot.average())/2 + t.dot.average()
	t.receiver.SetAdaptiveThreshold(round(threshold))
	return t.resync()
}

// resync calls Receiver.Sync, then, if the recomputed speed needed
// clamping to [SpeedMinWPM, SpeedMaxWPM], syncs a second time. The
// first sync already derives the acceptance windows and delay fields
// from the clamped speed; Sync is idempotent, so the second call
// recomputes the same values.
func (t *Tracker) resync() error {
	if err := t.receiver.Sync(); err != nil {
		return err
	}
	if t.receiver.SpeedWPM == timing.SpeedMinWPM || t.receiver.SpeedWPM == timing.SpeedMaxWPM {
		return t.receiver.Sync()
	}
	return nil
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
