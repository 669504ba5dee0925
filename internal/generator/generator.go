// Package generator implements the background sample-synthesis worker
// (spec §4.5): it dequeues tone.Tone descriptors from a tonequeue.Queue,
// synthesises amplitude-enveloped sine wave PCM, and writes fixed-size
// buffers to an audiosink.Sink.
package generator

import (
	"errors"
	"math"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/n7cw/cwkeyer/internal/audiosink"
	"github.com/n7cw/cwkeyer/internal/metrics"
	"github.com/n7cw/cwkeyer/internal/recovery"
	"github.com/n7cw/cwkeyer/internal/tone"
	"github.com/n7cw/cwkeyer/internal/tonequeue"
)

var (
	// ErrAlreadyRunning is returned by Start when the worker is already running.
	ErrAlreadyRunning = errors.New("generator: already running")
	// ErrNotRunning is returned by Stop when the worker is not running.
	ErrNotRunning = errors.New("generator: not running")
	// ErrInvalidVolume indicates volume_percent is outside [0, 100].
	ErrInvalidVolume = errors.New("generator: volume_percent out of range")
)

// SinkError wraps an error returned by the audio sink (spec §7's
// SinkError(_) variant).
type SinkError struct{ Err error }

func (e *SinkError) Error() string { return "generator: sink error: " + e.Err.Error() }
func (e *SinkError) Unwrap() error { return e.Err }

// IdlePolicy selects what the worker does when the queue is empty and
// Idle: pad with silence (appropriate for period-polled sinks like
// ALSA/OSS) or block waiting for the next tone (appropriate for sinks
// like PulseAudio that tolerate the worker not calling Write on a fixed
// cadence). Spec §4.5 step 4 leaves this to the implementer.
type IdlePolicy int

const (
	IdleBlock IdlePolicy = iota
	IdleSilentPad
)

// Config configures a Generator. SlopeLengthUS and SlopeShape describe
// the envelope applied at tone edges (spec §3's "Slope configuration").
type Config struct {
	VolumePercent int
	SlopeLengthUS int
	Shape         SlopeShape
	Idle          IdlePolicy
	Device        string
}

// Generator owns one tone queue and drives one sink from one worker
// goroutine (spec invariant I6: the worker is the sole writer to the
// sink between Open and Close).
type Generator struct {
	id     string
	config Config
	sink   audiosink.Sink
	queue  *tonequeue.Queue

	sampleRateHz   int
	bufferNSamples int
	amplitudePeak  float64

	slopeTable    []float64
	slopeNSamples int

	metrics *metrics.Metrics

	running       atomic.Bool
	stopRequested atomic.Bool
	wg            sync.WaitGroup

	logger *log.Logger
}

// New constructs a Generator bound to the given sink and tone queue. The
// sink is not opened until Start.
func New(sink audiosink.Sink, queue *tonequeue.Queue, cfg Config) (*Generator, error) {
	if cfg.VolumePercent < 0 || cfg.VolumePercent > 100 {
		return nil, ErrInvalidVolume
	}
	return &Generator{
		id:     uuid.NewString(),
		config: cfg,
		sink:   sink,
		queue:  queue,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "generator"}),
	}, nil
}

// ID returns the generator's unique instance identifier, used to
// distinguish multiple generators in structured log output.
func (g *Generator) ID() string { return g.id }

// SetMetrics attaches a Prometheus metrics sink. Passing nil detaches it.
func (g *Generator) SetMetrics(m *metrics.Metrics) { g.metrics = m }

// Start opens the sink, precomputes the envelope table, and spawns the
// worker goroutine (spec §4.5's Start sequence).
func (g *Generator) Start() error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	sampleRateHz, err := g.sink.Open(g.config.Device)
	if err != nil {
		g.running.Store(false)
		return &SinkError{Err: err}
	}
	g.sampleRateHz = sampleRateHz
	g.bufferNSamples = g.sink.BufferNSamples()
	g.amplitudePeak = float64(g.config.VolumePercent) * (1 << 15) / 100

	g.slopeNSamples = int(int64(g.config.SlopeLengthUS) * int64(sampleRateHz) / 1_000_000)
	g.slopeTable = buildSlopeTable(g.config.Shape, g.slopeNSamples)

	g.stopRequested.Store(false)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer recovery.HandlePanicFunc(func() {
			g.logger.Error("worker panicked, generator stopping", "generator_id", g.id)
		})
		g.run()
	}()

	return nil
}

// Stop requests the worker to finish its current buffer and return,
// joins it, and closes the sink (spec §4.5's Stop / §5's cooperative
// cancellation — the worker checks stopRequested between tones and
// between sub-buffer fills, never mid sink.Write).
func (g *Generator) Stop() error {
	if !g.running.CompareAndSwap(true, false) {
		return ErrNotRunning
	}
	g.stopRequested.Store(true)
	g.queue.Close() // wakes a blocked DequeueWait; the worker exits after its current sub-buffer, even mid-tone
	g.wg.Wait()
	return g.sink.Close()
}

// SampleRateHz returns the rate negotiated with the sink at Start.
func (g *Generator) SampleRateHz() int { return g.sampleRateHz }

// Enqueue places a tone on the generator's queue, blocking while full.
func (g *Generator) Enqueue(t tone.Tone) { g.queue.Enqueue(t) }

// WaitForDrained blocks until the queue is empty and the in-flight tone
// has finished synthesising (spec P5).
func (g *Generator) WaitForDrained() { g.queue.WaitForDrained() }

// run is the worker's main loop (spec §4.5): pull a tone, synthesize it
// into the PCM buffer sub-buffer-at-a-time (tone boundaries need not
// align with sink buffer boundaries), flush whenever the buffer fills,
// and move to the next tone once its sample count is exhausted.
func (g *Generator) run() {
	buf := make([]int16, g.bufferNSamples)
	pos := 0
	var phase float64
	var lastFrequencyHz int32

	var t tone.Tone
	haveTone := false
	sampleIdx := 0
	nSamples := 0

	for !g.stopRequested.Load() {
		if !haveTone {
			var result tonequeue.DequeueResult
			if g.config.Idle == IdleSilentPad {
				result = g.queue.Dequeue()
			} else {
				result = g.queue.DequeueWait()
			}
			if result.Idle {
				pos = g.fillSilence(buf, pos)
				continue
			}

			t = result.Tone
			nSamples = t.SampleCount(g.sampleRateHz)
			sampleIdx = 0
			haveTone = true
			if t.FrequencyHz != lastFrequencyHz {
				// Phase continuity is preserved only across tones of the
				// same frequency (spec §4.5); a frequency change simply
				// starts a new beat, with clicks suppressed by the
				// adjoining slopes instead.
				phase = 0
				lastFrequencyHz = t.FrequencyHz
			}
		}

		if t.IsHold() {
			room := g.bufferNSamples - pos
			for i := 0; i < room; i++ {
				g.writeSample(buf, pos+i, t, sampleIdx+i, nSamples, true, &phase)
			}
			pos += room
			sampleIdx += room

			if err := g.sink.Write(buf); err != nil {
				g.logger.Error("sink write failed", "generator_id", g.id, "err", err)
				return
			}
			g.metrics.AddSamplesWritten(len(buf))
			pos = 0

			// Re-check whether the held tone has been superseded before
			// continuing to fill indefinitely.
			peek := g.queue.Dequeue()
			if !peek.Again {
				g.queue.MarkCurrentDone()
				haveTone = false
				if !peek.Idle {
					t = peek.Tone
					nSamples = t.SampleCount(g.sampleRateHz)
					sampleIdx = 0
					haveTone = true
					if t.FrequencyHz != lastFrequencyHz {
						phase = 0
						lastFrequencyHz = t.FrequencyHz
					}
				}
			}
			continue
		}

		room := g.bufferNSamples - pos
		remaining := nSamples - sampleIdx
		n := room
		if remaining < n {
			n = remaining
		}

		for i := 0; i < n; i++ {
			g.writeSample(buf, pos+i, t, sampleIdx+i, nSamples, false, &phase)
		}
		pos += n
		sampleIdx += n

		if pos == g.bufferNSamples {
			if err := g.sink.Write(buf); err != nil {
				g.logger.Error("sink write failed", "generator_id", g.id, "err", err)
				return
			}
			g.metrics.AddSamplesWritten(len(buf))
			pos = 0
		}

		if sampleIdx == nSamples {
			g.queue.MarkCurrentDone()
			haveTone = false
		}
	}
}

// writeSample renders one sample of tone t at its position idx (of n
// total) into buf[pos], advancing phase.
func (g *Generator) writeSample(buf []int16, pos int, t tone.Tone, idx, n int, holding bool, phase *float64) {
	amp := g.envelopeAmplitude(t, idx, n, holding)
	buf[pos] = int16(math.Round(amp * math.Sin(*phase)))
	*phase += 2 * math.Pi * float64(t.FrequencyHz) / float64(g.sampleRateHz)
	if *phase >= 2*math.Pi {
		*phase -= 2 * math.Pi
	}
}

// fillSilence writes amplitude-zero samples into buf starting at
// subStart, flushing to the sink whenever the buffer fills, and returns
// the new subStart. Used by the silent-padding idle policy to keep
// period-polled sinks fed without an enqueued tone.
func (g *Generator) fillSilence(buf []int16, subStart int) int {
	for i := subStart; i < g.bufferNSamples; i++ {
		buf[i] = 0
	}
	if err := g.sink.Write(buf); err != nil {
		g.logger.Error("silent pad write failed", "generator_id", g.id, "err", err)
		return 0
	}
	g.metrics.AddSamplesWritten(len(buf))
	return 0
}

// envelopeAmplitude computes the amplitude at sample index i within a
// tone of n total samples, per spec §4.5's envelope rule: rising slope
// near the start, falling slope near the end, full amplitude in the
// middle, zero for a rest. Held tones are always past their rising
// slope (rendered once at tone start) and never enter a falling slope
// since their end isn't known in advance.
func (g *Generator) envelopeAmplitude(t tone.Tone, i, n int, holding bool) float64 {
	if t.IsSilent() {
		return 0
	}
	peak := g.amplitudePeak
	rising := t.Slope == tone.SlopeRisingOnly || t.Slope == tone.SlopeBoth
	falling := t.Slope == tone.SlopeFallingOnly || t.Slope == tone.SlopeBoth

	if rising && i < g.slopeNSamples && g.slopeNSamples > 0 {
		return peak * g.slopeTable[i]
	}
	if !holding && falling && n-g.slopeNSamples <= i && g.slopeNSamples > 0 {
		idx := n - 1 - i
		if idx >= 0 && idx < len(g.slopeTable) {
			return peak * g.slopeTable[idx]
		}
	}
	return peak
}
