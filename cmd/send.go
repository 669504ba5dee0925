// cmd/send.go
package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/n7cw/cwkeyer/internal/audiosink"
	"github.com/n7cw/cwkeyer/internal/config"
	"github.com/n7cw/cwkeyer/internal/generator"
	"github.com/n7cw/cwkeyer/internal/metrics"
	"github.com/n7cw/cwkeyer/internal/morsetable"
	"github.com/n7cw/cwkeyer/internal/timing"
	"github.com/n7cw/cwkeyer/internal/tone"
	"github.com/n7cw/cwkeyer/internal/tonequeue"
)

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send text as synthesized Morse code",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func runSend(_ *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tgen, err := timing.NewGenerator(settings.SpeedWPM, settings.Gap, settings.Weighting)
	if err != nil {
		return fmt.Errorf("init timing: %w", err)
	}

	queue, err := tonequeue.New(settings.QueueCapacity)
	if err != nil {
		return fmt.Errorf("init tone queue: %w", err)
	}

	sink, err := newSink(audiosink.Kind(settings.Sink), settings.DeviceIndex)
	if err != nil {
		return fmt.Errorf("init sink: %w", err)
	}

	const slopeLengthUS = 5000 // standard 5ms rise/fall, avoids key clicks

	gen, err := generator.New(sink, queue, generator.Config{
		VolumePercent: settings.VolumePercent,
		SlopeLengthUS: slopeLengthUS,
		Shape:         generator.SlopeRaisedCosine,
		Idle:          generator.IdleSilentPad,
	})
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}
	m := metrics.New(prometheus.NewRegistry())
	gen.SetMetrics(m)
	queue.SetMetrics(m)

	if settings.Debug {
		fmt.Printf("sending at %v WPM, %dHz, via %s sink\n", settings.SpeedWPM, settings.ToneFrequencyHz, settings.Sink)
	}

	if err := gen.Start(); err != nil {
		return fmt.Errorf("start generator: %w", err)
	}

	enqueueText(queue, tgen, args[0], int32(settings.ToneFrequencyHz))

	queue.WaitForDrained()
	return gen.Stop()
}

func newSink(kind audiosink.Kind, deviceIndex int) (audiosink.Sink, error) {
	const bufferNSamples = 1024
	switch kind {
	case audiosink.KindConsole:
		return audiosink.NewConsole(48000, bufferNSamples), nil
	case audiosink.KindMalgo:
		return audiosink.NewMalgo(bufferNSamples).WithDeviceIndex(deviceIndex), nil
	default:
		return audiosink.NewNull(48000, bufferNSamples), nil
	}
}

// enqueueText walks the encoded representation of text, enqueuing one
// tone per element with the inter-element/character/word gaps timing
// prescribes, character and word gaps stretched by the Farnsworth
// additional/adjustment delays. It plays the part of a
// straight-key-equivalent helper directly driving the queue, rather
// than a physical key (spec §4.10).
func enqueueText(queue *tonequeue.Queue, tgen *timing.Generator, text string, freqHz int32) {
	reprs := morsetable.EncodeText(text)
	for i, repr := range reprs {
		if repr == "" {
			queue.Enqueue(tone.Rest(int32(tgen.EOWDelayUS+tgen.AdjustmentDelayUS), tone.SlopeNone))
			continue
		}

		for j, sym := range repr {
			durationUS := int32(tgen.DotIdealUS)
			if sym == '-' {
				durationUS = int32(tgen.DashIdealUS)
			}
			queue.Enqueue(tone.New(freqHz, durationUS, tone.SlopeBoth))
			if j < len(repr)-1 {
				queue.Enqueue(tone.Rest(int32(tgen.EOEDelayUS), tone.SlopeNone))
			}
		}

		if i < len(reprs)-1 && reprs[i+1] != "" {
			queue.Enqueue(tone.Rest(int32(tgen.EOCDelayUS+tgen.AdditionalDelayUS), tone.SlopeNone))
		}
	}
}
