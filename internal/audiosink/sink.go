// Package audiosink defines the pluggable audio output contract (spec
// §4.4) and the Null/Console back-ends. The real-hardware backend lives
// in malgo.go, grounded on the teacher's internal/audio capture code but
// mirrored to playback.
package audiosink

import "errors"

// ErrNotOpen is returned by Write/Close when the sink has not been opened.
var ErrNotOpen = errors.New("audiosink: not open")

// ErrAlreadyOpen is returned by Open when called on an already-open sink.
var ErrAlreadyOpen = errors.New("audiosink: already open")

// Kind selects an audio-sink back-end implementation.
type Kind string

const (
	KindNull    Kind = "null"
	KindConsole Kind = "console"
	KindMalgo   Kind = "malgo"
)

// preferredSampleRates is the probe order used by backends that support
// more than one rate (spec §4.4: "probed from a preference list").
var preferredSampleRates = []int{48000, 44100, 22050, 11025, 8000}

// Sink is the capability every audio back-end exposes: open, write
// exactly BufferNSamples() samples at a time, close. Implementations
// outside this package (or the malgo one here) are free to add their
// own construction parameters; Sink is what the generator depends on.
type Sink interface {
	// Open selects a supported sample rate for deviceName, fixes the
	// sink's preferred buffer size, and establishes exclusive write
	// access. Returns the sample rate actually selected.
	Open(deviceName string) (sampleRateHz int, err error)
	// Write blocks until exactly BufferNSamples() samples have been
	// consumed by the sink (one buffer per call, spec §4.4).
	Write(samples []int16) error
	// Close releases the sink.
	Close() error
	// BufferNSamples returns the fixed number of samples Write expects.
	BufferNSamples() int
}

// IsAvailable reports whether a sink of the given kind can plausibly be
// opened on this system (static predicate, spec §4.4). Null and Console
// are always available; Malgo availability depends on the host's audio
// subsystem and is probed lazily by IsMalgoAvailable.
func IsAvailable(kind Kind, deviceName string) bool {
	switch kind {
	case KindNull, KindConsole:
		return true
	case KindMalgo:
		return IsMalgoAvailable(deviceName)
	default:
		return false
	}
}

// New constructs a Sink of the given kind. bufferNSamples is the
// preferred buffer size in samples; sampleRateHz is used only by Null
// and Console, which don't probe real hardware.
func New(kind Kind, sampleRateHz, bufferNSamples int) (Sink, error) {
	switch kind {
	case KindNull:
		return NewNull(sampleRateHz, bufferNSamples), nil
	case KindConsole:
		return NewConsole(sampleRateHz, bufferNSamples), nil
	case KindMalgo:
		return NewMalgo(bufferNSamples), nil
	default:
		return nil, errors.New("audiosink: unknown sink kind " + string(kind))
	}
}
