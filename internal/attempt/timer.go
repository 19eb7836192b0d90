package attempt

import (
	"context"
	"sync"
	"time"
)

// TimerState is the lifecycle of a countdown.
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerActive
	TimerExpired
	TimerCancelled
)

func (s TimerState) String() string {
	switch s {
	case TimerActive:
		return "active"
	case TimerExpired:
		return "expired"
	case TimerCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

const tickInterval = time.Second

// Timer counts down one second per tick and persists every new value. It
// never trusts wall-clock deltas: a suspended process or a changed system
// clock cannot buy extra time, and skipped ticks only delay expiry.
type Timer struct {
	store     *StateStore
	sessionID string
	total     int
	clock     Clock

	onExpire func()
	onTick   func(remaining int)

	mu        sync.Mutex
	state     TimerState
	remaining int
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewTimer(store *StateStore, sessionID string, totalSeconds int, clock Clock) *Timer {
	if clock == nil {
		clock = realClock{}
	}
	return &Timer{
		store:     store,
		sessionID: sessionID,
		total:     totalSeconds,
		clock:     clock,
		remaining: totalSeconds,
		stop:      make(chan struct{}),
	}
}

// OnExpire registers the callback fired once when the countdown reaches zero.
// It must be set before Start.
func (t *Timer) OnExpire(fn func()) { t.onExpire = fn }

// OnTick registers a callback receiving every new remaining value.
// It must be set before Start.
func (t *Timer) OnTick(fn func(remaining int)) { t.onTick = fn }

// Start resumes from the persisted remaining value, or seeds from the total
// duration when nothing is stored. Calling Start twice is a no-op.
func (t *Timer) Start(ctx context.Context) {
	t.mu.Lock()
	if t.state != TimerIdle {
		t.mu.Unlock()
		return
	}
	remaining, ok := t.store.TimeRemaining(ctx, t.sessionID)
	if !ok {
		remaining = t.total
	}
	t.remaining = clamp(remaining, 0, t.total)
	t.state = TimerActive
	t.store.SaveTimeRemaining(ctx, t.sessionID, t.remaining)
	expired := t.remaining == 0
	t.mu.Unlock()

	go t.run(expired)
}

// Cancel stops ticking without firing the expiry callback.
func (t *Timer) Cancel() {
	t.mu.Lock()
	if t.state == TimerActive || t.state == TimerIdle {
		t.state = TimerCancelled
	}
	t.mu.Unlock()
	t.stopOnce.Do(func() { close(t.stop) })
}

// Remaining returns the seconds left.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Elapsed is the scored time spent: total duration minus remaining.
func (t *Timer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total - t.remaining
}

// State returns the current lifecycle state.
func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) run(expiredOnStart bool) {
	if expiredOnStart {
		t.expire()
		return
	}
	ticker := t.clock.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C():
			if done := t.tick(); done {
				return
			}
		}
	}
}

// tick applies one decrement. It reports true once the timer stopped.
func (t *Timer) tick() bool {
	t.mu.Lock()
	if t.state != TimerActive {
		t.mu.Unlock()
		return true
	}
	t.remaining = clamp(t.remaining-1, 0, t.total)
	remaining := t.remaining
	// Persisting under the lock means no write can land after Cancel returns.
	t.store.SaveTimeRemaining(context.Background(), t.sessionID, remaining)
	t.mu.Unlock()

	if t.onTick != nil {
		t.onTick(remaining)
	}
	if remaining == 0 {
		t.expire()
		return true
	}
	return false
}

func (t *Timer) expire() {
	t.mu.Lock()
	if t.state != TimerActive {
		t.mu.Unlock()
		return
	}
	t.state = TimerExpired
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire()
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
