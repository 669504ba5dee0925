// Package receiver implements the mark/space state machine that turns
// timestamped key-down/key-up events into classified dots and dashes,
// assembles them into a representation, and detects character and
// word boundaries (spec §4.7).
package receiver

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/n7cw/cwkeyer/internal/adaptive"
	"github.com/n7cw/cwkeyer/internal/morsetable"
	"github.com/n7cw/cwkeyer/internal/timing"
)

// RepCapacity is the fixed capacity of the representation buffer.
const RepCapacity = 256

// statBufferCapacity is the fixed capacity of the circular statistics buffer.
const statBufferCapacity = 256

var (
	// ErrRange indicates an operation was called in an FSM state where
	// it is never legal (e.g. mark_begin while a mark is in progress).
	ErrRange = errors.New("receiver: operation out of range for current state")
	// ErrInvalid indicates a non-monotonic timestamp.
	ErrInvalid = errors.New("receiver: timestamp is not monotonically non-decreasing")
	// ErrState indicates an operation was called in the wrong FSM state.
	ErrState = errors.New("receiver: illegal state transition")
	// ErrTryAgain is a transient condition: noise-spike rejection, or a
	// character that is still assembling.
	ErrTryAgain = errors.New("receiver: try again")
	// ErrNotFound indicates a mark or representation could not be classified.
	ErrNotFound = errors.New("receiver: not found")
	// ErrNoMemory indicates the representation buffer overflowed.
	ErrNoMemory = errors.New("receiver: representation buffer full")
)

// Timestamp is a (seconds, microseconds) pair, matching the spec's
// wire shape for receiver input so a serialized timestamp round-trips
// exactly and non-monotonic checks are plain integer comparison
// rather than relying on time.Time's monotonic-reading semantics.
type Timestamp struct {
	Sec  int64
	USec int64
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	now := time.Now()
	return Timestamp{Sec: now.Unix(), USec: int64(now.Nanosecond()) / 1000}
}

// Sub returns t-u in microseconds.
func (t Timestamp) Sub(u Timestamp) int64 {
	return (t.Sec-u.Sec)*1_000_000 + (t.USec - u.USec)
}

// Before reports whether t is strictly earlier than u.
func (t Timestamp) Before(u Timestamp) bool {
	return t.Sub(u) < 0
}

// State is one of the receiver FSM's seven states (spec §4.7).
type State int

const (
	Idle State = iota
	Mark
	Space
	EocGap
	EowGap
	EocGapErr
	EowGapErr
)

// StatType classifies one entry of the circular statistics buffer.
type StatType int

const (
	StatNone StatType = iota
	StatDot
	StatDash
	StatInterMarkSpace
	StatInterCharSpace
)

type statSample struct {
	kind    StatType
	deltaUS float64
}

// Receiver is the mark/space classifier. Not safe for concurrent use
// from more than one goroutine without external synchronisation beyond
// what its own mutex provides for simple getters; the FSM-mutating
// operations (MarkBegin, MarkEnd, AddMark, PollRepresentation,
// PollCharacter, ResetState) are meant to be called from one caller in
// sequence, as the spec assumes a single-threaded receiver instance.
type Receiver struct {
	mu sync.Mutex

	timing   *timing.Receiver
	adaptive *adaptive.Tracker // nil if adaptive mode is never used

	noiseSpikeThresholdUS int64

	state State

	repr   []byte
	cursor int

	markStart, markEnd Timestamp
	haveLastTS         bool
	lastTS             Timestamp

	isPendingInterWordSpace bool

	stats      [statBufferCapacity]statSample
	statCursor int
	statLen    int
}

// New builds a Receiver driven by the given timing parameter set and
// noise-spike threshold (microseconds; 0 disables noise-spike
// rejection). tracker may be nil if adaptive mode is never enabled.
func New(timingReceiver *timing.Receiver, noiseSpikeThresholdUS int, tracker *adaptive.Tracker) *Receiver {
	return &Receiver{
		timing:                timingReceiver,
		adaptive:              tracker,
		noiseSpikeThresholdUS: int64(noiseSpikeThresholdUS),
		state:                 Idle,
		repr:                  make([]byte, 0, RepCapacity),
	}
}

// State returns the receiver's current FSM state.
func (r *Receiver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// checkMonotonicLocked validates ts against the last-seen timestamp
// without mutating it; the caller updates lastTS only after the
// operation it guards has otherwise succeeded.
func (r *Receiver) checkMonotonicLocked(ts Timestamp) error {
	if r.haveLastTS && ts.Before(r.lastTS) {
		return ErrInvalid
	}
	return nil
}

func (r *Receiver) acceptTimestampLocked(ts Timestamp) {
	r.lastTS = ts
	r.haveLastTS = true
}

// MarkBegin records the start of a mark. Legal in Idle or Space; also
// accepted immediately after a character boundary whose trailing space
// has not yet been polled (isPendingInterWordSpace), in which case the
// receiver first resets state as if the caller had polled out a word
// gap (spec §4.7, and the Open Question resolution in DESIGN.md).
func (r *Receiver) MarkBegin(ts Timestamp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkMonotonicLocked(ts); err != nil {
		return err
	}

	if r.isPendingInterWordSpace {
		r.resetStateLocked()
	}

	if r.state != Idle && r.state != Space {
		return ErrRange
	}

	if r.state == Space {
		interMarkLen := ts.Sub(r.markEnd)
		r.appendStatLocked(StatInterMarkSpace, float64(interMarkLen)-float64(r.timing.EOM.Ideal))
	}

	r.markStart = ts
	r.state = Mark
	r.acceptTimestampLocked(ts)
	return nil
}

// MarkEnd ends the in-progress mark, classifies it as a dot or dash
// (or rejects it), and appends the symbol to the representation
// buffer (spec §4.7).
func (r *Receiver) MarkEnd(ts Timestamp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Mark {
		return ErrState
	}
	if err := r.checkMonotonicLocked(ts); err != nil {
		return err
	}

	markLen := ts.Sub(r.markStart)

	if r.noiseSpikeThresholdUS > 0 && markLen <= r.noiseSpikeThresholdUS {
		// Revert to whichever state preceded Mark; the representation
		// cursor tells us which, since Space is only reachable once at
		// least one symbol has been appended.
		if r.cursor == 0 {
			r.state = Idle
		} else {
			r.state = Space
		}
		return ErrTryAgain
	}

	symbol, classifyErr := r.identifyMarkLocked(markLen)
	if classifyErr != nil {
		return classifyErr
	}

	return r.appendSymbolLocked(symbol, markLen, ts)
}

// identifyMarkLocked classifies a mark duration as a dot or dash, or
// transitions to an error-gap state and returns ErrNotFound if it
// cannot be classified at all (only possible in fixed-speed mode,
// since adaptive windows span [0, dot_max] and [dot_max, +Inf)).
func (r *Receiver) identifyMarkLocked(markLenUS int64) (byte, error) {
	tr := r.timing
	switch {
	case markLenUS >= int64(tr.Dot.Min) && markLenUS <= int64(tr.Dot.Max):
		return '.', nil
	case markLenUS >= int64(tr.Dash.Min) && markLenUS <= int64(tr.Dash.Max):
		return '-', nil
	default:
		if markLenUS <= int64(tr.EOC.Max) {
			r.state = EocGapErr
		} else {
			r.state = EowGapErr
		}
		return 0, ErrNotFound
	}
}

// appendSymbolLocked appends symbol to the representation buffer,
// updates the adaptive tracker (before statistics, per spec §4.7 so
// the ideal the delta is measured against lags the observation by only
// one tick), records the classification statistic, and transitions to
// Space.
func (r *Receiver) appendSymbolLocked(symbol byte, markLenUS int64, ts Timestamp) error {
	if r.timing.IsAdaptive && r.adaptive != nil {
		if symbol == '.' {
			r.adaptive.RecordDot(int(markLenUS))
		} else {
			r.adaptive.RecordDash(int(markLenUS))
		}
	}

	statKind, idealUS := StatDot, r.timing.Dot.Ideal
	if symbol == '-' {
		statKind, idealUS = StatDash, r.timing.Dash.Ideal
	}
	r.appendStatLocked(statKind, float64(markLenUS)-float64(idealUS))

	r.repr = append(r.repr, symbol)
	r.cursor++
	r.markEnd = ts
	r.state = Space
	r.acceptTimestampLocked(ts)

	if r.cursor >= RepCapacity-1 {
		r.state = EocGapErr
		return ErrNoMemory
	}
	return nil
}

// AddMark is a shortcut for callers that already know the classified
// symbol: legal in Idle or Space, records mark_end and appends the
// symbol directly, bypassing identifyMark (spec §4.7).
func (r *Receiver) AddMark(ts Timestamp, symbol byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if symbol != '.' && symbol != '-' {
		return ErrInvalid
	}
	if r.state != Idle && r.state != Space {
		return ErrRange
	}
	if err := r.checkMonotonicLocked(ts); err != nil {
		return err
	}

	r.repr = append(r.repr, symbol)
	r.cursor++
	r.markEnd = ts
	r.state = Space
	r.acceptTimestampLocked(ts)

	if r.cursor >= RepCapacity-1 {
		r.state = EocGapErr
		return ErrNoMemory
	}
	return nil
}

// PollRepresentation non-blockingly reports the representation
// assembled so far, whether a word boundary has been detected, and any
// error (spec §4.7). A nil ts means "use the current time".
func (r *Receiver) PollRepresentation(ts *Timestamp) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pollRepresentationLocked(ts)
}

func (r *Receiver) pollRepresentationLocked(ts *Timestamp) (string, bool, error) {
	switch r.state {
	case EowGap, EowGapErr:
		return string(r.repr), true, nil
	case Idle, Mark:
		return "", false, ErrRange
	case Space, EocGap, EocGapErr:
		now := r.resolveTimestamp(ts)
		spaceLen := now.Sub(r.markEnd)
		eoc := r.timing.EOC
		switch {
		case spaceLen >= int64(eoc.Min) && spaceLen <= int64(eoc.Max):
			if r.state == Space {
				r.appendStatLocked(StatInterCharSpace, float64(spaceLen)-float64(eoc.Ideal))
				r.state = EocGap
			}
			return string(r.repr), false, nil
		case spaceLen > int64(eoc.Max):
			if r.state == EocGapErr {
				r.state = EowGapErr
			} else {
				r.state = EowGap
			}
			return string(r.repr), true, nil
		default:
			return "", false, ErrTryAgain
		}
	default:
		return "", false, ErrRange
	}
}

func (r *Receiver) resolveTimestamp(ts *Timestamp) Timestamp {
	if ts != nil {
		return *ts
	}
	return Now()
}

// PollCharacter wraps PollRepresentation and looks up the assembled
// representation in the Morse table. On success, if the boundary found
// was not a word gap, it sets isPendingInterWordSpace so the next
// MarkBegin can detect and absorb a deferred word gap (spec §4.7, §9
// open question).
func (r *Receiver) PollCharacter(ts *Timestamp) (rune, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	repr, isEOW, err := r.pollRepresentationLocked(ts)
	if err != nil {
		return 0, isEOW, err
	}

	ch, ok := morsetable.Lookup(repr)
	if !ok {
		return 0, isEOW, ErrNotFound
	}
	if !isEOW {
		r.isPendingInterWordSpace = true
	}
	return ch, isEOW, nil
}

// ResetState clears the representation buffer, cursor and pending-
// word-space flag and transitions to Idle. It does not touch timing
// parameters or the statistics buffer (spec §4.7).
func (r *Receiver) ResetState() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetStateLocked()
}

func (r *Receiver) resetStateLocked() {
	r.repr = r.repr[:0]
	r.cursor = 0
	r.isPendingInterWordSpace = false
	r.state = Idle
}

func (r *Receiver) appendStatLocked(kind StatType, deltaUS float64) {
	r.stats[r.statCursor] = statSample{kind: kind, deltaUS: deltaUS}
	r.statCursor = (r.statCursor + 1) % statBufferCapacity
	if r.statLen < statBufferCapacity {
		r.statLen++
	}
}

// GetStats returns the population standard deviation of the recorded
// deltas of the given class, or 0 if none have been recorded.
func (r *Receiver) GetStats(kind StatType) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sum float64
	var n int
	for i := 0; i < r.statLen; i++ {
		s := r.stats[i]
		if s.kind == kind {
			sum += s.deltaUS
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)

	var variance float64
	for i := 0; i < r.statLen; i++ {
		s := r.stats[i]
		if s.kind == kind {
			d := s.deltaUS - mean
			variance += d * d
		}
	}
	variance /= float64(n)
	return math.Sqrt(variance)
}
