package audiosink

import (
	"fmt"
	"io"
	"os"
)

// Console is a stand-in for unixcw's console-beeper back-end: rather
// than toggling a system beep, it writes a one-line peak-amplitude meter
// per buffer to its Writer (stderr by default). It does not play audio.
type Console struct {
	sampleRateHz   int
	bufferNSamples int
	open           bool

	Writer io.Writer
}

// NewConsole constructs a Console sink; Writer defaults to os.Stderr.
func NewConsole(sampleRateHz, bufferNSamples int) *Console {
	return &Console{sampleRateHz: sampleRateHz, bufferNSamples: bufferNSamples, Writer: os.Stderr}
}

func (c *Console) Open(_ string) (int, error) {
	if c.open {
		return 0, ErrAlreadyOpen
	}
	c.open = true
	return c.sampleRateHz, nil
}

func (c *Console) Write(samples []int16) error {
	if !c.open {
		return ErrNotOpen
	}
	var peak int16
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	const meterWidth = 40
	bars := int(int32(peak) * meterWidth / 32767)
	fmt.Fprintf(c.Writer, "\r[%-*s] %6d", meterWidth, barString(bars), peak)
	return nil
}

func barString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '#'
	}
	return string(b)
}

func (c *Console) Close() error {
	if c.open {
		fmt.Fprintln(c.Writer)
	}
	c.open = false
	return nil
}

func (c *Console) BufferNSamples() int { return c.bufferNSamples }
