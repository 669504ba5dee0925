// Package tonequeue implements the bounded tone FIFO that is the
// synchronization point between caller goroutines and the generator's
// synthesis worker (spec §4.3, §5).
package tonequeue

import (
	"errors"
	"sync"

	"github.com/n7cw/cwkeyer/internal/metrics"
	"github.com/n7cw/cwkeyer/internal/tone"
)

// DefaultCapacity is the default tone queue capacity (spec §6).
const DefaultCapacity = 4096

var (
	// ErrQueueFull is returned by a non-blocking Enqueue when the queue is at capacity.
	ErrQueueFull = errors.New("tonequeue: queue full")
	// ErrInvalidCapacity indicates a non-positive capacity was requested.
	ErrInvalidCapacity = errors.New("tonequeue: capacity must be positive")
)

// State reflects whether the generator worker is actively producing
// samples for a tone (Busy) or has drained the queue (Idle).
type State int

const (
	Idle State = iota
	Busy
)

// LowWaterFunc is invoked at most once per low-to-high-to-low
// transition of the queue length, on the generator worker goroutine. It
// must be non-blocking and must not call back into Enqueue on the same
// queue (spec §4.3).
type LowWaterFunc func(data any)

// Queue is a fixed-capacity ring buffer of tone.Tone, guarded by one
// mutex and three condition variables, matching spec §5's concurrency
// model exactly: dataAvail (consumer waiting for an item), spaceAvail
// (producer waiting for room), drained (waiters for queue-empty-and-
// current-tone-finished).
type Queue struct {
	mu sync.Mutex

	buf      []tone.Tone
	head     int
	tail     int
	len      int
	capacity int

	state State

	lowWater     int
	lowWaterFunc LowWaterFunc
	lowWaterData any
	wasAboveLow  bool

	currentToneDone bool // true once the in-flight tone has finished playing
	closed          bool // true once Close has been called; wakes blocked DequeueWait callers

	dataAvail  *sync.Cond
	spaceAvail *sync.Cond
	drained    *sync.Cond

	metrics *metrics.Metrics
}

// New creates a tone queue with the given capacity (spec default 4096,
// configurable only at construction time, per spec §6).
func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	q := &Queue{
		buf:             make([]tone.Tone, capacity),
		capacity:        capacity,
		state:           Idle,
		currentToneDone: true,
	}
	q.dataAvail = sync.NewCond(&q.mu)
	q.spaceAvail = sync.NewCond(&q.mu)
	q.drained = sync.NewCond(&q.mu)
	return q, nil
}

// Len returns the current number of queued tones.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len
}

// Capacity returns the fixed capacity of the queue.
func (q *Queue) Capacity() int { return q.capacity }

// SetMetrics attaches a Prometheus metrics sink. Passing nil detaches it.
func (q *Queue) SetMetrics(m *metrics.Metrics) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.metrics = m
}

// State returns the queue's Idle/Busy state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// RegisterLowWaterCallback installs the single low-water callback slot,
// replacing any prior registration (spec §4.3).
func (q *Queue) RegisterLowWaterCallback(fn LowWaterFunc, data any, level int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lowWaterFunc = fn
	q.lowWaterData = data
	q.lowWater = level
	q.wasAboveLow = q.len > level
}

// Enqueue appends tone t at the tail, blocking while the queue is full.
// A held ("forever") tone at the head that is the only queued tone is
// immediately evicted to make room for the next real tone (spec §4.3
// forever semantics): this is the one case where Enqueue does not
// strictly wait for space.
func (q *Queue) Enqueue(t tone.Tone) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueueLocked(t, true)
}

// TryEnqueue appends tone t without blocking, failing with ErrQueueFull
// if there is no room (and no held tone to evict).
func (q *Queue) TryEnqueue(t tone.Tone) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.len >= q.capacity && !q.headIsHoldLocked() {
		return ErrQueueFull
	}
	q.enqueueLocked(t, false)
	return nil
}

func (q *Queue) headIsHoldLocked() bool {
	return q.len > 0 && q.buf[q.head].IsHold()
}

func (q *Queue) enqueueLocked(t tone.Tone, blocking bool) {
	// A held tone occupying the only slot is evicted in favor of the new
	// tone the instant something is enqueued behind it (spec §4.3).
	if q.headIsHoldLocked() && q.len == 1 {
		q.len = 0
		q.tail = q.head
	}

	for q.len >= q.capacity {
		if !blocking {
			return
		}
		q.spaceAvail.Wait()
	}

	q.buf[q.tail] = t
	q.tail = (q.tail + 1) % q.capacity
	q.len++
	q.state = Busy
	q.currentToneDone = false

	q.metrics.IncTonesEnqueued()
	q.metrics.SetQueueDepth(q.len)
	q.metrics.SetBusy(true)

	q.dataAvail.Signal()
}

// DequeueResult is returned by Dequeue.
type DequeueResult struct {
	Tone  tone.Tone
	Idle  bool // true if the queue was empty and is now Idle; Tone is zero
	Again bool // true if the head is a held tone: same Tone returned without removal
}

// Dequeue returns immediately: if the queue is empty it reports Idle
// (spec §4.3's non-blocking "generator idle" path, used for silent-
// padding sinks); otherwise it removes and returns the head tone. A held
// tone at the head is returned repeatedly without being removed (spec
// §4.3 forever semantics). Crossing the low-water mark fires the
// registered callback before this call returns.
func (q *Queue) Dequeue() DequeueResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.len == 0 {
		q.state = Idle
		q.currentToneDone = true
		q.metrics.SetBusy(false)
		q.drained.Broadcast()
		return DequeueResult{Idle: true}
	}
	return q.dequeueHeadLocked()
}

// DequeueWait blocks until a tone is available (spec §5's "worker
// dequeue blocks on data available unless silent-padding mode is
// active"), then behaves like Dequeue's non-empty path. It reports Idle
// only if the queue is Closed while no tone is available, so a blocked
// worker can be woken during shutdown.
func (q *Queue) DequeueWait() DequeueResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.len == 0 && !q.closed {
		q.dataAvail.Wait()
	}
	if q.len == 0 {
		return DequeueResult{Idle: true}
	}
	return q.dequeueHeadLocked()
}

// Close marks the queue closed and wakes any DequeueWait callers blocked
// with no tone available, so a generator worker in IdleBlock mode can
// unwind during Stop instead of waiting forever.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.dataAvail.Broadcast()
}

func (q *Queue) dequeueHeadLocked() DequeueResult {
	head := q.buf[q.head]
	if head.IsHold() {
		return DequeueResult{Tone: head, Again: true}
	}

	q.head = (q.head + 1) % q.capacity
	q.len--
	q.spaceAvail.Signal()
	q.metrics.SetQueueDepth(q.len)

	q.checkLowWaterLocked()

	if q.len == 0 {
		// The dequeued tone is now synthesising; the queue only becomes
		// Idle once the generator marks it finished via MarkCurrentDone.
		q.state = Busy
	}

	return DequeueResult{Tone: head}
}

// MarkCurrentDone signals that the tone most recently returned by
// Dequeue has finished playing. When the queue is also empty this
// transitions the queue to Idle and wakes WaitForDrained callers (spec
// §4.3's Idle transition / §5's "wait_for_drained returns only after the
// last-enqueued tone has been fully written").
func (q *Queue) MarkCurrentDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.currentToneDone = true
	if q.len == 0 {
		q.state = Idle
		q.metrics.SetBusy(false)
		q.drained.Broadcast()
	}
}

func (q *Queue) checkLowWaterLocked() {
	aboveLow := q.len > q.lowWater
	if q.wasAboveLow && !aboveLow {
		q.metrics.IncLowWaterCrossed()
		if q.lowWaterFunc != nil {
			q.lowWaterFunc(q.lowWaterData)
		}
	}
	q.wasAboveLow = aboveLow
}

// Flush drops all pending tones and wakes any Enqueue waiters. It does
// not interrupt a tone currently being synthesised (spec §5).
func (q *Queue) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.head = 0
	q.tail = 0
	q.len = 0
	q.spaceAvail.Broadcast()
}

// WaitForLevel blocks until the queue length is at most n.
func (q *Queue) WaitForLevel(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.len > n {
		q.spaceAvail.Wait()
	}
}

// WaitForDrained blocks until the queue is empty and the currently
// synthesising tone (if any) has finished.
func (q *Queue) WaitForDrained() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.len > 0 || !q.currentToneDone {
		q.drained.Wait()
	}
}
