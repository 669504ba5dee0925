package audiosink

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gen2brain/malgo"
)

var (
	errMalgoNotInitialized = errors.New("audiosink: malgo context not initialized")
	errMalgoAlreadyOpen    = errors.New("audiosink: malgo sink already open")
)

// Malgo plays PCM through the host audio system via
// github.com/gen2brain/malgo. Mirrors the teacher's
// internal/audio.Capture lifecycle (context/device init, atomic running
// flag, mutex-guarded device handle) but for a Playback device instead
// of a Capture device.
type Malgo struct {
	bufferNSamples int
	deviceIndex    int

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	running atomic.Bool

	// feed is read by the malgo playback callback; one buffer is pulled
	// per callback invocation. Write pushes exactly one buffer and blocks
	// until the callback has consumed it.
	feed     chan []int16
	consumed chan struct{}
}

// NewMalgo constructs a Malgo sink. deviceIndex -1 selects the system
// default playback device, matching the teacher's DeviceIndex convention.
func NewMalgo(bufferNSamples int) *Malgo {
	return &Malgo{bufferNSamples: bufferNSamples, deviceIndex: -1}
}

// WithDeviceIndex sets which playback device Open selects.
func (m *Malgo) WithDeviceIndex(index int) *Malgo {
	m.deviceIndex = index
	return m
}

// IsMalgoAvailable probes whether a malgo context can be initialized and
// at least one playback device is present (spec §4.4's is_available predicate).
func IsMalgoAvailable(_ string) bool {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return false
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()
	devices, err := ctx.Devices(malgo.Playback)
	return err == nil && len(devices) > 0
}

func (m *Malgo) Open(_ string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return 0, errMalgoAlreadyOpen
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return 0, fmt.Errorf("audiosink: init malgo context: %w", err)
	}
	m.ctx = ctx

	var deviceID unsafe.Pointer
	if m.deviceIndex >= 0 {
		devices, err := ctx.Devices(malgo.Playback)
		if err != nil {
			m.closeContextLocked()
			return 0, fmt.Errorf("audiosink: enumerate playback devices: %w", err)
		}
		if m.deviceIndex >= len(devices) {
			m.closeContextLocked()
			return 0, fmt.Errorf("audiosink: device index %d out of range (have %d)", m.deviceIndex, len(devices))
		}
		deviceID = devices[m.deviceIndex].ID.Pointer()
	}

	sampleRateHz := m.probeSampleRate()

	deviceConfig := malgo.DeviceConfig{
		DeviceType:         malgo.Playback,
		SampleRate:         uint32(sampleRateHz),
		PeriodSizeInFrames: uint32(m.bufferNSamples),
		Playback: malgo.SubConfig{
			Format:   malgo.FormatS16,
			Channels: 1,
		},
	}
	if deviceID != nil {
		deviceConfig.Playback.DeviceID = deviceID
	}

	m.feed = make(chan []int16)
	m.consumed = make(chan struct{})

	onSendFrames := func(outputSamples, _ []byte, frameCount uint32) {
		buf := <-m.feed
		n := int(frameCount)
		if n > len(buf) {
			n = len(buf)
		}
		for i := 0; i < n; i++ {
			v := buf[i]
			outputSamples[2*i] = byte(v)
			outputSamples[2*i+1] = byte(v >> 8)
		}
		m.consumed <- struct{}{}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSendFrames})
	if err != nil {
		m.closeContextLocked()
		return 0, fmt.Errorf("audiosink: init playback device: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.device = nil
		m.closeContextLocked()
		return 0, fmt.Errorf("audiosink: start playback device: %w", err)
	}

	m.running.Store(true)
	return sampleRateHz, nil
}

// probeSampleRate picks the first rate from the preference list; a real
// device negotiation would query supported formats, but malgo resamples
// internally so any of the preferred rates is accepted.
func (m *Malgo) probeSampleRate() int {
	return preferredSampleRates[0]
}

func (m *Malgo) Write(samples []int16) error {
	if !m.running.Load() {
		return ErrNotOpen
	}
	m.feed <- samples
	<-m.consumed
	return nil
}

func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running.CompareAndSwap(true, false) {
		if m.device != nil {
			_ = m.device.Stop()
			m.device.Uninit()
			m.device = nil
		}
	}
	m.closeContextLocked()
	return nil
}

func (m *Malgo) closeContextLocked() {
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
}

func (m *Malgo) BufferNSamples() int { return m.bufferNSamples }
