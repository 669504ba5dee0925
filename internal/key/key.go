// Package key implements the two logical Morse key shapes (spec §4.6):
// a straight key and an iambic paddle, both of which turn key-down/
// key-up notifications into tone.Tone values enqueued on a
// tonequeue.Queue for the generator to synthesize.
package key

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/n7cw/cwkeyer/internal/recovery"
	"github.com/n7cw/cwkeyer/internal/timing"
	"github.com/n7cw/cwkeyer/internal/tone"
	"github.com/n7cw/cwkeyer/internal/tonequeue"
)

// State is the physical position of a straight key.
type State int

const (
	Open State = iota
	Closed
)

// StraightKey turns key-down/key-up notifications into a held tone
// that starts on Closed and is evicted on Open (spec §4.6, §4.3's
// forever-tone semantics).
type StraightKey struct {
	mu          sync.Mutex
	state       State
	frequencyHz int32
	queue       *tonequeue.Queue
}

// NewStraightKey builds a straight key that keys the given frequency
// onto queue.
func NewStraightKey(queue *tonequeue.Queue, frequencyHz int32) *StraightKey {
	return &StraightKey{state: Open, frequencyHz: frequencyHz, queue: queue}
}

// Notify reports a transition of the physical key. On Closed it
// enqueues a held tone; on Open it enqueues a zero-duration tone that
// evicts the held tone (spec §4.3). Repeated notifications of the
// current state are ignored.
func (k *StraightKey) Notify(state State) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if state == k.state {
		return
	}
	k.state = state
	if state == Closed {
		k.queue.Enqueue(tone.Hold(k.frequencyHz))
	} else {
		k.queue.Enqueue(tone.New(k.frequencyHz, 0, tone.SlopeNone))
	}
}

// State returns the last-notified key position.
func (k *StraightKey) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// IsBusy reports whether the generator still has tones queued for
// this key (spec §4.6: "is busy" ≡ queue non-empty).
func (k *StraightKey) IsBusy() bool {
	return k.queue.Len() > 0
}

// IambicPaddle implements Mode-B iambic keying (spec §4.6): while
// either paddle is held it alternates dot/dash/inter-element-space
// tones, and if both paddles were held at any point during an element
// that is releasing to neither, it completes the squeeze by sending
// one more, opposite, element before falling idle.
type IambicPaddle struct {
	id          string
	frequencyHz int32
	gen         *timing.Generator
	queue       *tonequeue.Queue
	slope       tone.SlopeMode

	mu       sync.Mutex
	cond     *sync.Cond
	dotDown  bool
	dashDown bool

	elementCond *sync.Cond
	elementSeq  uint64

	running       atomic.Bool
	stopRequested atomic.Bool
	wg            sync.WaitGroup

	logger *log.Logger
}

// NewIambicPaddle builds a paddle that keys frequencyHz onto queue,
// deriving dot/dash/inter-element durations from gen (the shared
// timing engine, spec §4.1).
func NewIambicPaddle(queue *tonequeue.Queue, gen *timing.Generator, frequencyHz int32) *IambicPaddle {
	p := &IambicPaddle{
		id:          uuid.NewString(),
		frequencyHz: frequencyHz,
		gen:         gen,
		queue:       queue,
		slope:       tone.SlopeBoth,
		logger:      log.NewWithOptions(os.Stderr, log.Options{Prefix: "iambic"}),
	}
	p.cond = sync.NewCond(&p.mu)
	p.elementCond = sync.NewCond(&p.mu)
	return p
}

// Start spawns the paddle's sub-FSM goroutine.
func (p *IambicPaddle) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.stopRequested.Store(false)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer recovery.HandlePanicFunc(func() {
			p.logger.Error("paddle worker panicked, stopping", "paddle_id", p.id)
		})
		p.run()
	}()
}

// Stop requests the sub-FSM goroutine to exit and joins it.
func (p *IambicPaddle) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.stopRequested.Store(true)
	p.mu.Lock()
	p.cond.Broadcast()
	p.elementCond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// Notify reports the current physical position of both paddles.
func (p *IambicPaddle) Notify(dotPaddleDown, dashPaddleDown bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dotDown = dotPaddleDown
	p.dashDown = dashPaddleDown
	p.cond.Broadcast()
}

// WaitForElement blocks until at least one more dot or dash element
// has been emitted since the call was made.
func (p *IambicPaddle) WaitForElement() {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := p.elementSeq
	for p.elementSeq == start && p.running.Load() {
		p.elementCond.Wait()
	}
}

func (p *IambicPaddle) snapshot() (dotDown, dashDown bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dotDown, p.dashDown
}

func (p *IambicPaddle) run() {
	lastWasDash := false
	for !p.stopRequested.Load() {
		p.mu.Lock()
		for !p.dotDown && !p.dashDown && !p.stopRequested.Load() {
			p.cond.Wait()
		}
		if p.stopRequested.Load() {
			p.mu.Unlock()
			return
		}
		dotDown, dashDown := p.dotDown, p.dashDown
		p.mu.Unlock()

		isDash := dashDown
		if dotDown && dashDown {
			isDash = !lastWasDash
		}

		sawBoth := p.playElement(isDash)
		lastWasDash = isDash
		p.markElementEmitted()

		dotNow, dashNow := p.snapshot()
		if !dotNow && !dashNow && sawBoth {
			p.playElement(!isDash)
			lastWasDash = !isDash
			p.markElementEmitted()
		}
	}
}

func (p *IambicPaddle) markElementEmitted() {
	p.mu.Lock()
	p.elementSeq++
	p.elementCond.Broadcast()
	p.mu.Unlock()
}

// playElement enqueues one dot or dash followed by its inter-element
// space, and reports whether both paddles were observed held at any
// point while it was playing out (Mode-B squeeze memory, spec §4.6).
func (p *IambicPaddle) playElement(isDash bool) bool {
	durationUS := p.gen.DotIdealUS
	if isDash {
		durationUS = p.gen.DashIdealUS
	}
	p.queue.Enqueue(tone.New(p.frequencyHz, int32(durationUS), p.slope))
	p.queue.Enqueue(tone.Rest(int32(p.gen.EOEDelayUS), tone.SlopeNone))

	total := time.Duration(durationUS+p.gen.EOEDelayUS) * time.Microsecond
	const pollInterval = time.Millisecond
	sawBoth := false
	for elapsed := time.Duration(0); elapsed < total; elapsed += pollInterval {
		dotDown, dashDown := p.snapshot()
		if dotDown && dashDown {
			sawBoth = true
		}
		step := pollInterval
		if remaining := total - elapsed; remaining < step {
			step = remaining
		}
		time.Sleep(step)
	}
	return sawBoth
}
