// Package tone defines the value type carried on the tone queue between
// a caller and the generator's synthesis worker.
package tone

// SlopeMode selects which amplitude envelopes bracket a tone.
type SlopeMode int

const (
	// SlopeNone applies no envelope; the tone starts and ends at full amplitude.
	SlopeNone SlopeMode = iota
	// SlopeRisingOnly ramps amplitude up at the start only.
	SlopeRisingOnly
	// SlopeFallingOnly ramps amplitude down at the end only.
	SlopeFallingOnly
	// SlopeBoth ramps up at the start and down at the end.
	SlopeBoth
)

// Kind distinguishes an ordinary timed tone from a held ("forever") tone.
type Kind int

const (
	// KindTone is a normal tone with a definite duration.
	KindTone Kind = iota
	// KindHold is held indefinitely until superseded by the next enqueued tone.
	// This replaces the legacy FOREVER negative-duration sentinel (see DESIGN.md).
	KindHold
)

// Tone is an immutable descriptor for one segment of synthesized audio:
// a frequency, a duration, and the envelope shape at its edges. A zero
// FrequencyHz means silence (a rest).
type Tone struct {
	Kind        Kind
	FrequencyHz int32
	DurationUS  int32
	Slope       SlopeMode
}

// New returns a tone of the given frequency, duration and slope.
func New(frequencyHz int32, durationUS int32, slope SlopeMode) Tone {
	return Tone{Kind: KindTone, FrequencyHz: frequencyHz, DurationUS: durationUS, Slope: slope}
}

// Rest returns a silent tone of the given duration.
func Rest(durationUS int32, slope SlopeMode) Tone {
	return Tone{Kind: KindTone, FrequencyHz: 0, DurationUS: durationUS, Slope: slope}
}

// Hold returns a tone held at frequencyHz until a subsequent tone is
// enqueued and supersedes it (see tonequeue's forever-tone semantics).
func Hold(frequencyHz int32) Tone {
	return Tone{Kind: KindHold, FrequencyHz: frequencyHz, Slope: SlopeRisingOnly}
}

// IsSilent reports whether the tone is a rest (frequency zero).
func (t Tone) IsSilent() bool {
	return t.FrequencyHz == 0
}

// IsHold reports whether the tone is a held/forever tone.
func (t Tone) IsHold() bool {
	return t.Kind == KindHold
}

// SampleCount returns the number of samples this tone occupies at the
// given sample rate. Conversion happens here, at synthesis time, not at
// construction, per spec. Held tones have no duration, so it returns 0
// for them.
func (t Tone) SampleCount(sampleRateHz int) int {
	if t.DurationUS <= 0 {
		return 0
	}
	return int(int64(t.DurationUS) * int64(sampleRateHz) / 1_000_000)
}
