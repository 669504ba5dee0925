// cmd/key.go
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/n7cw/cwkeyer/internal/audiosink"
	"github.com/n7cw/cwkeyer/internal/config"
	"github.com/n7cw/cwkeyer/internal/generator"
	"github.com/n7cw/cwkeyer/internal/key"
	"github.com/n7cw/cwkeyer/internal/metrics"
	"github.com/n7cw/cwkeyer/internal/timing"
	"github.com/n7cw/cwkeyer/internal/tonequeue"
)

var paddleMode bool

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Drive a straight key or iambic paddle from stdin events",
	Long: `Reads one event per line from stdin and keys tones onto the
generator: "down"/"up" for a straight key (the default), or
"dot-down"/"dot-up"/"dash-down"/"dash-up" for an iambic paddle
(--paddle). One cheap way to exercise the key abstraction without
real hardware contacts.`,
	RunE: runKey,
}

func init() {
	keyCmd.Flags().BoolVar(&paddleMode, "paddle", false, "drive an iambic paddle instead of a straight key")
}

func runKey(_ *cobra.Command, _ []string) error {
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

	const slopeLengthUS = 5000

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

	if err := gen.Start(); err != nil {
		return fmt.Errorf("start generator: %w", err)
	}

	freqHz := int32(settings.ToneFrequencyHz)
	if paddleMode {
		paddle := key.NewIambicPaddle(queue, tgen, freqHz)
		paddle.Start()
		err = driveIambicPaddle(os.Stdin, paddle)
		paddle.Stop()
	} else {
		straight := key.NewStraightKey(queue, freqHz)
		err = driveStraightKey(os.Stdin, straight)
	}
	if err != nil {
		_ = gen.Stop()
		return err
	}

	queue.WaitForDrained()
	return gen.Stop()
}

func driveStraightKey(in io.Reader, k *key.StraightKey) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "down":
			k.Notify(key.Closed)
		case "up":
			k.Notify(key.Open)
		}
	}
	for k.IsBusy() {
		time.Sleep(time.Millisecond)
	}
	return scanner.Err()
}

func driveIambicPaddle(in io.Reader, p *key.IambicPaddle) error {
	var dotDown, dashDown bool
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "dot-down":
			dotDown = true
		case "dot-up":
			dotDown = false
		case "dash-down":
			dashDown = true
		case "dash-up":
			dashDown = false
		default:
			continue
		}
		p.Notify(dotDown, dashDown)
	}
	if dotDown || dashDown {
		p.Notify(false, false)
	}
	return scanner.Err()
}
