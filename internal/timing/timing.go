// Package timing derives the low-level microsecond timing parameters
// shared by the generator and the receiver from the user-visible knobs:
// speed, tolerance, gap and weighting. See spec §4.1.
package timing

import "errors"

// DotCalibration is the number of microseconds per dot at 1 WPM, from
// the PARIS calibration word (50 dot-units per minute at 1 WPM).
const DotCalibration = 1_200_000

// Numeric ranges for the user-visible knobs (spec §6).
const (
	SpeedMinWPM = 4
	SpeedMaxWPM = 60

	FrequencyMinHz = 0
	FrequencyMaxHz = 4000

	VolumeMinPercent = 0
	VolumeMaxPercent = 100

	GapMin = 0
	GapMax = 60

	TolerancePercentMin = 0
	TolerancePercentMax = 90

	WeightingMin = 20
	WeightingMax = 80

	NoiseSpikeThresholdMinUS = 0
	NoiseSpikeThresholdMaxUS = 20000
)

var (
	// ErrSpeedRange indicates speed_wpm is outside [SpeedMinWPM, SpeedMaxWPM].
	ErrSpeedRange = errors.New("timing: speed_wpm out of range")
	// ErrToleranceRange indicates tolerance_percent is outside [0, 90].
	ErrToleranceRange = errors.New("timing: tolerance_percent out of range")
	// ErrGapRange indicates gap is outside [0, 60].
	ErrGapRange = errors.New("timing: gap out of range")
	// ErrWeightingRange indicates weighting is outside [20, 80].
	ErrWeightingRange = errors.New("timing: weighting out of range")
)

// unitLength returns u = DOT_CALIBRATION / speedWPM, the ideal dot
// length in microseconds for the given speed.
func unitLength(speedWPM float64) float64 {
	return DotCalibration / speedWPM
}

// Window is an ideal value plus its acceptance bounds, all in microseconds.
type Window struct {
	Ideal int
	Min   int
	Max   int
}

// Contains reports whether us microseconds falls within [Min, Max].
func (w Window) Contains(us int) bool {
	return us >= w.Min && us <= w.Max
}

// Generator holds the derived timings the sample synthesiser consumes:
// dot/dash ideal lengths, inter-element/character/word gaps, and the
// Farnsworth additional/adjustment spacing. Recomputed by Sync whenever
// SpeedWPM, Gap or Weighting change.
type Generator struct {
	SpeedWPM float64
	Gap      int
	Weighting float64

	DotIdealUS        int
	DashIdealUS       int
	EOEDelayUS        int // inter-mark (inter-element) space
	EOCDelayUS        int // inter-character space
	EOWDelayUS        int // inter-word space
	AdditionalDelayUS int
	AdjustmentDelayUS int

	inSync bool
}

// NewGenerator builds a Generator timing set at the given speed, gap and
// weighting (50 = unweighted), synced immediately.
func NewGenerator(speedWPM float64, gap int, weighting float64) (*Generator, error) {
	g := &Generator{SpeedWPM: speedWPM, Gap: gap, Weighting: weighting}
	if err := g.Sync(); err != nil {
		return nil, err
	}
	return g, nil
}

// Sync recomputes all derived fields from SpeedWPM/Gap/Weighting.
// Idempotent: calling it twice in a row with unchanged knobs produces the
// same derived fields (spec P3).
func (g *Generator) Sync() error {
	if g.SpeedWPM < SpeedMinWPM || g.SpeedWPM > SpeedMaxWPM {
		return ErrSpeedRange
	}
	if g.Gap < GapMin || g.Gap > GapMax {
		return ErrGapRange
	}
	if g.Weighting < WeightingMin || g.Weighting > WeightingMax {
		return ErrWeightingRange
	}

	u := unitLength(g.SpeedWPM)

	dot := u
	dash := 3 * u
	if g.Weighting != 50 {
		// Weighting redistributes dot/dash duration symmetrically about
		// their nominal 1:3 ratio while keeping dot+dash constant.
		dot = u * g.Weighting / 50
		dash = 4*u - dot
	}

	g.DotIdealUS = round(dot)
	g.DashIdealUS = round(dash)
	g.EOEDelayUS = round(u)
	g.EOCDelayUS = round(3 * u)
	g.EOWDelayUS = round(7 * u)
	g.AdditionalDelayUS = round(float64(g.Gap) * u)
	g.AdjustmentDelayUS = round(7 * float64(g.AdditionalDelayUS) / 3)

	g.inSync = true
	return nil
}

// InSync reports whether the derived fields currently reflect the
// essential knobs (spec invariant I4).
func (g *Generator) InSync() bool { return g.inSync }

// SetSpeed validates and sets SpeedWPM, marking the generator out of
// sync. Callers must call Sync before consuming derived fields again.
func (g *Generator) SetSpeed(speedWPM float64) error {
	if speedWPM < SpeedMinWPM || speedWPM > SpeedMaxWPM {
		return ErrSpeedRange
	}
	g.SpeedWPM = speedWPM
	g.inSync = false
	return nil
}

// SetGap validates and sets Gap, marking the generator out of sync.
func (g *Generator) SetGap(gap int) error {
	if gap < GapMin || gap > GapMax {
		return ErrGapRange
	}
	g.Gap = gap
	g.inSync = false
	return nil
}

// SetWeighting validates and sets Weighting, marking the generator out of sync.
func (g *Generator) SetWeighting(weighting float64) error {
	if weighting < WeightingMin || weighting > WeightingMax {
		return ErrWeightingRange
	}
	g.Weighting = weighting
	g.inSync = false
	return nil
}

// Receiver holds the derived acceptance windows the receiver FSM
// consumes for classifying marks and spaces, in either fixed-speed or
// adaptive mode (spec §4.1).
type Receiver struct {
	SpeedWPM         float64
	TolerancePercent float64
	Gap              int
	IsAdaptive       bool

	// AdaptiveThresholdUS is "2 dot-lengths at current speed" in fixed
	// mode, or the caller-maintained estimate (from the adaptive speed
	// tracker, C8) in adaptive mode.
	AdaptiveThresholdUS int

	Dot  Window
	Dash Window
	EOM  Window // inter-mark (inter-element) space
	EOC  Window // inter-character space

	AdditionalDelayUS int
	AdjustmentDelayUS int

	inSync bool
}

const adaptiveEOCCeilingDots = 5 // EOC.Max = 5*dotIdeal in adaptive mode

// NewReceiver builds a Receiver timing set, synced immediately.
func NewReceiver(speedWPM, tolerancePercent float64, adaptive bool) (*Receiver, error) {
	r := &Receiver{SpeedWPM: speedWPM, TolerancePercent: tolerancePercent, IsAdaptive: adaptive}
	if err := r.Sync(); err != nil {
		return nil, err
	}
	return r, nil
}

// Sync recomputes all derived fields. In adaptive mode it first derives
// SpeedWPM from AdaptiveThresholdUS (spec: speed = DOT_CALIBRATION /
// (adaptive_threshold_us / 2)); in fixed mode it derives
// AdaptiveThresholdUS from SpeedWPM (2 * dot_ideal).
func (r *Receiver) Sync() error {
	if r.TolerancePercent < TolerancePercentMin || r.TolerancePercent > TolerancePercentMax {
		return ErrToleranceRange
	}

	if r.IsAdaptive {
		if r.AdaptiveThresholdUS <= 0 {
			// Not yet seeded: fall back to the configured speed until the
			// adaptive tracker produces its first estimate.
			r.AdaptiveThresholdUS = round(2 * unitLength(r.SpeedWPM))
		}
		r.SpeedWPM = DotCalibration / (float64(r.AdaptiveThresholdUS) / 2)
		if r.SpeedWPM < SpeedMinWPM {
			r.SpeedWPM = SpeedMinWPM
		} else if r.SpeedWPM > SpeedMaxWPM {
			r.SpeedWPM = SpeedMaxWPM
		}
	} else {
		if r.SpeedWPM < SpeedMinWPM || r.SpeedWPM > SpeedMaxWPM {
			return ErrSpeedRange
		}
		r.AdaptiveThresholdUS = round(2 * unitLength(r.SpeedWPM))
	}

	u := unitLength(r.SpeedWPM)
	dotIdeal := round(u)
	dashIdeal := round(3 * u)
	eomIdeal := round(u)
	eocIdeal := round(3 * u)

	r.AdditionalDelayUS = round(float64(r.Gap) * u)
	r.AdjustmentDelayUS = round(7 * float64(r.AdditionalDelayUS) / 3)

	if r.IsAdaptive {
		r.Dot = Window{Ideal: dotIdeal, Min: 0, Max: 2 * dotIdeal}
		r.Dash = Window{Ideal: dashIdeal, Min: r.Dot.Max, Max: 1 << 30}
		r.EOM = Window{Ideal: eomIdeal, Min: r.Dot.Min, Max: r.Dot.Max}
		r.EOC = Window{Ideal: eocIdeal, Min: r.EOM.Max, Max: adaptiveEOCCeilingDots * dotIdeal}
	} else {
		width := round(float64(dotIdeal) * r.TolerancePercent / 100)
		r.Dot = Window{Ideal: dotIdeal, Min: maxInt(0, dotIdeal-width), Max: dotIdeal + width}
		r.Dash = Window{Ideal: dashIdeal, Min: maxInt(0, dashIdeal-width), Max: dashIdeal + width}
		r.EOM = Window{Ideal: eomIdeal, Min: r.Dot.Min, Max: r.Dot.Max}

		// Fixed-speed eoc acceptance extends past dash_max by the
		// Farnsworth additional+adjustment delay, per spec §4.1.
		eocMax := r.Dash.Max + r.AdditionalDelayUS + r.AdjustmentDelayUS
		r.EOC = Window{Ideal: eocIdeal, Min: r.Dash.Min, Max: eocMax}
	}

	r.inSync = true
	return nil
}

// InSync reports whether derived fields reflect the essential knobs.
func (r *Receiver) InSync() bool { return r.inSync }

// SetSpeed validates and sets SpeedWPM. It only validates the range: it
// does not check IsAdaptive, and nothing in this module rejects a speed
// change while adaptive mode is on (in adaptive mode the next Sync
// recomputes SpeedWPM from AdaptiveThresholdUS).
func (r *Receiver) SetSpeed(speedWPM float64) error {
	if speedWPM < SpeedMinWPM || speedWPM > SpeedMaxWPM {
		return ErrSpeedRange
	}
	r.SpeedWPM = speedWPM
	r.inSync = false
	return nil
}

// SetTolerance validates and sets TolerancePercent.
func (r *Receiver) SetTolerance(tolerancePercent float64) error {
	if tolerancePercent < TolerancePercentMin || tolerancePercent > TolerancePercentMax {
		return ErrToleranceRange
	}
	r.TolerancePercent = tolerancePercent
	r.inSync = false
	return nil
}

// SetAdaptiveThreshold sets the adaptive threshold (from the adaptive
// speed tracker, C8) and marks the receiver out of sync. Only
// meaningful when IsAdaptive is true.
func (r *Receiver) SetAdaptiveThreshold(us int) {
	r.AdaptiveThresholdUS = us
	r.inSync = false
}

// SetAdaptive toggles adaptive mode and marks the receiver out of sync.
func (r *Receiver) SetAdaptive(adaptive bool) {
	r.IsAdaptive = adaptive
	r.inSync = false
}

// SetGap validates and sets Gap, marking the receiver out of sync.
func (r *Receiver) SetGap(gap int) error {
	if gap < GapMin || gap > GapMax {
		return ErrGapRange
	}
	r.Gap = gap
	r.inSync = false
	return nil
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
