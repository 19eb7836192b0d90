package attempt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"quiz-attempt-service/internal/domain"
)

// Status is the coordinator state of a session.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusReviewing  Status = "reviewing"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
)

// SubmitFunc performs the network write and scoring for a finished attempt.
type SubmitFunc func(ctx context.Context, submission domain.Submission) error

// SubmitError reports a rejected submit call. The session stays claimed;
// Retry resends the same payload.
type SubmitError struct {
	SessionID string
	Err       error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("%v for %s: %v", domain.ErrSubmitFailed, e.SessionID, e.Err)
}

func (e *SubmitError) Unwrap() []error {
	return []error{domain.ErrSubmitFailed, e.Err}
}

// Options carries the collaborators of a session.
type Options struct {
	Store       *StateStore
	Interceptor NavigationInterceptor
	Clock       Clock
	// Rand seeds the sequencer; nil uses a time-seeded source.
	Rand *rand.Rand
	// SubmitTimeout bounds each submit call when positive.
	SubmitTimeout time.Duration
	// OnSubmitted is called once the submission succeeded and state was cleared.
	OnSubmitted func(sessionID string)
}

// Session runs one student through one timed quiz attempt and guarantees the
// submit callback completes at most once.
type Session struct {
	id          string
	quiz        domain.Quiz
	questions   []domain.Question
	optionOrder map[string][]string
	startedAt   time.Time

	submit        SubmitFunc
	submitTimeout time.Duration
	onSubmitted   func(string)

	store   *StateStore
	timer   *Timer
	tracker *Tracker
	guard   *Guard

	claimed atomic.Bool

	mu          sync.Mutex
	status      Status
	index       int
	closed      bool
	payload     *domain.Submission
	submitErr   error
	subscribers map[chan View]struct{}
}

// Start opens or resumes the session identified by sessionID. Persisted order,
// responses and remaining time are restored; anything missing or corrupt is
// created fresh and persisted.
func Start(ctx context.Context, sessionID string, quiz domain.Quiz, submit SubmitFunc, opts Options) (*Session, error) {
	if sessionID == "" {
		return nil, errors.New("attempt: empty session id")
	}
	if submit == nil {
		return nil, errors.New("attempt: submit callback is required")
	}
	if opts.Store == nil {
		return nil, errors.New("attempt: state store is required")
	}
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}

	sequencer := NewSequencer(opts.Store)
	if opts.Rand != nil {
		sequencer = NewSequencerWithRand(opts.Store, opts.Rand)
	}
	order := sequencer.BuildOrder(ctx, quiz, sessionID)
	optionOrder := sequencer.BuildOptionOrder(ctx, quiz, sessionID)
	questions := arrange(quiz, order, optionOrder)

	restored := opts.Store.Load(ctx, sessionID)
	// A resume restarts the lifetime of every field, including the orders
	// that are only written when the session is created.
	opts.Store.Touch(ctx, sessionID)
	startedAt := time.UnixMilli(restored.StartTimeEpochMs)
	if restored.StartTimeEpochMs == 0 {
		startedAt = clock.Now()
		opts.Store.Save(ctx, sessionID, State{StartTimeEpochMs: startedAt.UnixMilli()})
	}

	s := &Session{
		id:            sessionID,
		quiz:          quiz,
		questions:     questions,
		optionOrder:   optionOrder,
		startedAt:     startedAt,
		submit:        submit,
		submitTimeout: opts.SubmitTimeout,
		onSubmitted:   opts.OnSubmitted,
		store:         opts.Store,
		tracker:       NewTracker(ctx, opts.Store, sessionID, questions, restored.Responses),
		timer:         NewTimer(opts.Store, sessionID, quiz.Settings.TotalSeconds(), clock),
		guard:         NewGuard(opts.Interceptor),
		status:        StatusInProgress,
		subscribers:   make(map[chan View]struct{}),
	}
	s.timer.OnTick(func(int) { s.broadcast() })
	s.timer.OnExpire(s.handleExpiry)
	s.guard.OnDialog(s.broadcast)

	s.guard.Arm()
	s.timer.Start(ctx)
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// QuizID returns the id of the quiz being attempted.
func (s *Session) QuizID() string { return s.quiz.ID }

// StartedAt is when the session was first opened.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Questions returns the questions in display order.
func (s *Session) Questions() []domain.Question { return s.questions }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Counts returns answered, marked and unanswered totals.
func (s *Session) Counts() Counts {
	return s.tracker.Counts()
}

// Responses returns a snapshot of the responses in display order.
func (s *Session) Responses() []domain.Response {
	return s.tracker.Snapshot()
}

// TimeRemainingSeconds returns the seconds left on the countdown.
func (s *Session) TimeRemainingSeconds() int {
	return s.timer.Remaining()
}

// TimeRemaining returns the countdown formatted as MM:SS.
func (s *Session) TimeRemaining() string {
	return FormatRemaining(s.timer.Remaining())
}

// SubmitErr returns the last submit failure, if the session is waiting for a retry.
func (s *Session) SubmitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitErr
}

// Next moves to the following question; it stays put on the last one.
func (s *Session) Next() error {
	return s.navigate(func(i int) int {
		if i < len(s.questions)-1 {
			return i + 1
		}
		return i
	})
}

// Previous moves to the preceding question; it stays put on the first one.
func (s *Session) Previous() error {
	return s.navigate(func(i int) int {
		if i > 0 {
			return i - 1
		}
		return i
	})
}

// JumpTo moves to the question at index.
func (s *Session) JumpTo(index int) error {
	if index < 0 || index >= len(s.questions) {
		return domain.ErrQuestionIndexOutOfRange
	}
	return s.navigate(func(int) int { return index })
}

func (s *Session) navigate(move func(int) int) error {
	s.mu.Lock()
	if err := s.acceptingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.index = move(s.index)
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// SelectOption applies optionID to the current question.
func (s *Session) SelectOption(ctx context.Context, optionID string) error {
	return s.mutate(func(index int) error {
		return s.tracker.Select(ctx, index, optionID)
	})
}

// ToggleReview flips the marked-for-review flag of the current question.
func (s *Session) ToggleReview(ctx context.Context) error {
	return s.mutate(func(index int) error {
		return s.tracker.ToggleReview(ctx, index)
	})
}

// mutate runs fn under the session lock so no change can slip in between the
// submission claim and the response snapshot.
func (s *Session) mutate(fn func(index int) error) error {
	s.mu.Lock()
	if err := s.acceptingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	err := fn(s.index)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.broadcast()
	return nil
}

func (s *Session) acceptingLocked() error {
	if s.timer.State() == TimerExpired {
		return domain.ErrTimeExpired
	}
	if s.closed || s.status != StatusInProgress {
		return domain.ErrSessionNotActive
	}
	return nil
}

// RequestSubmit is the manual submit trigger. With review enabled it opens the
// review pass; otherwise it submits. Repeated calls are no-ops.
func (s *Session) RequestSubmit(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusInProgress || s.closed || s.claimed.Load() {
		s.mu.Unlock()
		return nil
	}
	if s.quiz.Settings.AllowReview {
		s.status = StatusReviewing
		s.mu.Unlock()
		s.broadcast()
		return nil
	}
	s.mu.Unlock()
	return s.submitOnce(ctx)
}

// ConfirmSubmit submits from the review pass.
func (s *Session) ConfirmSubmit(ctx context.Context) error {
	s.mu.Lock()
	if s.claimed.Load() {
		s.mu.Unlock()
		return nil
	}
	if s.status != StatusReviewing {
		s.mu.Unlock()
		return domain.ErrNotReviewing
	}
	s.mu.Unlock()
	return s.submitOnce(ctx)
}

// CancelReview returns from the review pass to answering questions.
func (s *Session) CancelReview() error {
	s.mu.Lock()
	if s.status != StatusReviewing || s.claimed.Load() {
		s.mu.Unlock()
		return domain.ErrNotReviewing
	}
	s.status = StatusInProgress
	s.mu.Unlock()
	s.broadcast()
	return nil
}

// Retry resends the payload captured when the submission was claimed.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusSubmitting || s.submitErr == nil || s.payload == nil {
		s.mu.Unlock()
		return domain.ErrNothingToRetry
	}
	payload := *s.payload
	s.submitErr = nil
	s.mu.Unlock()
	s.broadcast()
	return s.deliver(ctx, payload)
}

// AttemptExit reports an exit attempt from a host without its own
// interceptor, such as a remote client.
func (s *Session) AttemptExit(kind ExitKind) Decision {
	return s.guard.HandleExit(kind)
}

// ResolveExit answers the in-app exit dialog.
func (s *Session) ResolveExit(choice Choice) Decision {
	return s.guard.Resolve(choice)
}

// Close detaches the session from its host: the tick stops and the guard is
// disarmed, but persisted state stays so the session can be resumed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = map[chan View]struct{}{}
	s.mu.Unlock()

	s.timer.Cancel()
	s.guard.Disarm()
}

func (s *Session) handleExpiry() {
	if err := s.submitOnce(context.Background()); err != nil {
		log.Printf("attempt %s: submit after expiry: %v", s.id, err)
	}
}

// submitOnce claims the terminal transition. Only the caller that wins the
// compare-and-swap builds the payload and calls submit.
func (s *Session) submitOnce(ctx context.Context) error {
	s.mu.Lock()
	if !s.claimed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	s.timer.Cancel()
	payload := domain.Submission{
		Responses:        s.tracker.Snapshot(),
		TimeSpentSeconds: s.timer.Elapsed(),
	}
	s.status = StatusSubmitting
	s.payload = &payload
	s.mu.Unlock()
	s.broadcast()

	return s.deliver(ctx, payload)
}

func (s *Session) deliver(ctx context.Context, payload domain.Submission) error {
	callCtx := ctx
	if s.submitTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.submitTimeout)
		defer cancel()
	}

	if err := s.submit(callCtx, cloneSubmission(payload)); err != nil {
		serr := &SubmitError{SessionID: s.id, Err: err}
		s.mu.Lock()
		s.submitErr = serr
		s.mu.Unlock()
		s.broadcast()
		return serr
	}

	s.store.Clear(context.WithoutCancel(ctx), s.id)
	s.mu.Lock()
	s.status = StatusSubmitted
	s.mu.Unlock()
	s.guard.Disarm()
	s.broadcast()

	if s.onSubmitted != nil {
		s.onSubmitted(s.id)
	}
	return nil
}

func cloneSubmission(in domain.Submission) domain.Submission {
	out := domain.Submission{
		Responses:        make([]domain.Response, len(in.Responses)),
		TimeSpentSeconds: in.TimeSpentSeconds,
	}
	for i, r := range in.Responses {
		out.Responses[i] = r.Clone()
	}
	return out
}

// arrange returns the quiz questions in display order with options reordered
// when an option order is present.
func arrange(quiz domain.Quiz, order []string, optionOrder map[string][]string) []domain.Question {
	out := make([]domain.Question, 0, len(order))
	for _, id := range order {
		question, ok := quiz.Question(id)
		if !ok {
			continue
		}
		if ids, ok := optionOrder[id]; ok {
			byID := make(map[string]domain.Option, len(question.Options))
			for _, opt := range question.Options {
				byID[opt.ID] = opt
			}
			options := make([]domain.Option, 0, len(ids))
			for _, optID := range ids {
				options = append(options, byID[optID])
			}
			question.Options = options
		}
		out = append(out, question)
	}
	return out
}
