package audiosink

// Null discards samples. It never fails and is used in tests and
// headless environments where no real audio device is available.
type Null struct {
	sampleRateHz   int
	bufferNSamples int
	open           bool

	// WrittenSamples accumulates every sample count passed to Write, for
	// tests asserting drain/duration properties (spec P5).
	WrittenSamples int
}

// NewNull constructs a Null sink fixed at the given sample rate and
// buffer size (Null does not probe hardware, so both are exact).
func NewNull(sampleRateHz, bufferNSamples int) *Null {
	return &Null{sampleRateHz: sampleRateHz, bufferNSamples: bufferNSamples}
}

func (n *Null) Open(_ string) (int, error) {
	if n.open {
		return 0, ErrAlreadyOpen
	}
	n.open = true
	return n.sampleRateHz, nil
}

func (n *Null) Write(samples []int16) error {
	if !n.open {
		return ErrNotOpen
	}
	n.WrittenSamples += len(samples)
	return nil
}

func (n *Null) Close() error {
	n.open = false
	return nil
}

func (n *Null) BufferNSamples() int { return n.bufferNSamples }
