package attempt_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/domain"
)

type mapBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet bool
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string][]byte)}
}

func (b *mapBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *mapBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSet {
		return errors.New("backend unavailable")
	}
	b.data[key] = append([]byte(nil), value...)
	return nil
}

func (b *mapBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.data, k)
	}
	return nil
}

func (b *mapBackend) put(key, value string) {
	b.mu.Lock()
	b.data[key] = []byte(value)
	b.mu.Unlock()
}

func (b *mapBackend) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.data))
	for k := range b.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fakeTicker struct {
	ch       chan time.Time
	stopped  chan struct{}
	stopOnce sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopOnce.Do(func() { close(t.stopped) }) }

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) attempt.Ticker {
	t := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) latest(t *testing.T) *fakeTicker {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		n := len(c.tickers)
		var ticker *fakeTicker
		if n > 0 {
			ticker = c.tickers[n-1]
		}
		c.mu.Unlock()
		if ticker != nil {
			return ticker
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timer never created a ticker")
	return nil
}

// Tick delivers n ticks; each send returns once the timer goroutine took it.
// It stops early when the ticker was stopped.
func (c *fakeClock) Tick(t *testing.T, n int) {
	t.Helper()
	ticker := c.latest(t)
	for i := 0; i < n; i++ {
		c.mu.Lock()
		c.now = c.now.Add(time.Second)
		now := c.now
		c.mu.Unlock()
		select {
		case ticker.ch <- now:
		case <-ticker.stopped:
			return
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d was not consumed", i+1)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fiveQuestionQuiz() domain.Quiz {
	opts := func(ids ...string) []domain.Option {
		out := make([]domain.Option, len(ids))
		for i, id := range ids {
			out[i] = domain.Option{ID: id, Text: "Option " + id}
		}
		return out
	}
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Basics",
		Questions: []domain.Question{
			{ID: "q1", Type: domain.QuestionSingleChoice, Prompt: "2+2?", Options: opts("a", "b", "c", "d"), Marks: 1},
			{ID: "q2", Type: domain.QuestionTrueFalse, Prompt: "Go has generics", Options: opts("t", "f"), Marks: 1},
			{ID: "q3", Type: domain.QuestionMultipleChoice, Prompt: "Pick primes", Options: opts("a", "b", "c", "d"), Marks: 2},
			{ID: "q4", Type: domain.QuestionSingleChoice, Prompt: "Capital of France", Options: opts("a", "b", "c"), Marks: 1, NegativeMarks: 0.25},
			{ID: "q5", Type: domain.QuestionMultipleChoice, Prompt: "Pick even", Options: opts("a", "b", "c"), Marks: 2},
		},
		Settings: domain.Settings{TotalDuration: 10},
	}
}

type recordingSubmitter struct {
	mu    sync.Mutex
	calls []domain.Submission
	err   error
	gate  chan struct{}
}

func (r *recordingSubmitter) Submit(ctx context.Context, sub domain.Submission) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sub)
	return r.err
}

func (r *recordingSubmitter) setErr(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *recordingSubmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingSubmitter) last() domain.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}
