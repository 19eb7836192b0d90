package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/domain"
)

// SessionRepository tracks running attempt engines (in-memory registry).
type SessionRepository interface {
	Acquire(id string, start func() (*attempt.Session, error)) (*attempt.Session, error)
	Get(id string) (*attempt.Session, bool)
	Release(id string)
	Remove(id string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SubmissionSink hands finished attempts to the grader. Saving the same
// session twice must be a no-op.
type SubmissionSink interface {
	SaveSubmission(ctx context.Context, record domain.SubmissionRecord) error
	CountSubmissions(ctx context.Context, quizID, studentID string) (int, error)
}

// Options tunes the engines started by the service.
type Options struct {
	SubmitTimeout time.Duration
	// Clock drives engine countdowns; nil uses wall time.
	Clock attempt.Clock
}

// AttemptService contains the attempt use cases shared by every transport.
type AttemptService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	state    *attempt.StateStore
	sink     SubmissionSink
	opts     Options
	now      func() time.Time
}

func NewAttemptService(sessions SessionRepository, quizzes QuizRepository, state *attempt.StateStore, sink SubmissionSink, opts Options) *AttemptService {
	return &AttemptService{
		sessions: sessions,
		quizzes:  quizzes,
		state:    state,
		sink:     sink,
		opts:     opts,
		now:      time.Now,
	}
}

// SessionID derives the session id of one numbered attempt by a student at a
// quiz. Attempts are numbered from 1.
func SessionID(quizID, studentID string, attempt int) string {
	return fmt.Sprintf("%s:%s:%d", quizID, studentID, attempt)
}

// Open attaches to the running engine of the student's current attempt or
// starts one, resuming persisted state. The current attempt is the one after
// the last submitted attempt. Opening is refused once the quiz attempt limit
// is used up. Each successful Open must be paired with Release.
// The interceptor is only bound when this call starts the engine.
func (s *AttemptService) Open(ctx context.Context, quizID, studentID string, interceptor attempt.NavigationInterceptor) (*attempt.Session, error) {
	if quizID == "" || studentID == "" {
		return nil, fmt.Errorf("open attempt: quiz and student ids are required")
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	used, err := s.sink.CountSubmissions(ctx, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("open attempt: %w", err)
	}
	if limitReached(quiz, used) {
		return nil, fmt.Errorf("%w: %d of %d used", domain.ErrAttemptLimitReached, used, quiz.Settings.AttemptLimit)
	}
	number := used + 1
	id := SessionID(quizID, studentID, number)

	return s.sessions.Acquire(id, func() (*attempt.Session, error) {
		return attempt.Start(ctx, id, quiz, s.submitFunc(quizID, studentID, number, id), attempt.Options{
			Store:         s.state,
			Interceptor:   interceptor,
			Clock:         s.opts.Clock,
			SubmitTimeout: s.opts.SubmitTimeout,
			OnSubmitted:   s.sessions.Remove,
		})
	})
}

// Release detaches one holder from the engine returned by Open. The last
// holder closes it; persisted state stays so the student can resume.
func (s *AttemptService) Release(session *attempt.Session) {
	s.sessions.Release(session.ID())
}

// Summary describes a student's standing on a quiz without starting an engine.
type Summary struct {
	SessionID            string `json:"sessionId"`
	Attempt              int    `json:"attempt"`
	AttemptsUsed         int    `json:"attemptsUsed"`
	AttemptLimit         int    `json:"attemptLimit"`
	LimitReached         bool   `json:"limitReached"`
	Live                 bool   `json:"live"`
	Resumable            bool   `json:"resumable"`
	TimeRemainingSeconds *int   `json:"timeRemainingSeconds,omitempty"`
	Answered             int    `json:"answered"`
}

// Summarize reports the current attempt of a student and its persisted
// progress. Once the limit is used up no attempt is current and SessionID is
// empty.
func (s *AttemptService) Summarize(ctx context.Context, quizID, studentID string) (Summary, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return Summary{}, err
	}
	used, err := s.sink.CountSubmissions(ctx, quizID, studentID)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize attempt: %w", err)
	}
	summary := Summary{AttemptsUsed: used, AttemptLimit: quiz.Settings.AttemptLimit}
	if limitReached(quiz, used) {
		summary.LimitReached = true
		return summary, nil
	}
	summary.Attempt = used + 1
	summary.SessionID = SessionID(quizID, studentID, summary.Attempt)

	if session, ok := s.sessions.Get(summary.SessionID); ok {
		summary.Live = true
		summary.Resumable = session.Status() != attempt.StatusSubmitted
		remaining := session.TimeRemainingSeconds()
		summary.TimeRemainingSeconds = &remaining
		summary.Answered = session.Counts().Answered
		return summary, nil
	}

	state := s.state.Load(ctx, summary.SessionID)
	summary.Resumable = !state.Empty()
	summary.TimeRemainingSeconds = state.TimeRemainingSeconds
	for _, r := range state.Responses {
		if r.Answered() {
			summary.Answered++
		}
	}
	return summary, nil
}

func limitReached(quiz domain.Quiz, used int) bool {
	limit := quiz.Settings.AttemptLimit
	return limit > 0 && used >= limit
}

func (s *AttemptService) submitFunc(quizID, studentID string, number int, sessionID string) attempt.SubmitFunc {
	return func(ctx context.Context, submission domain.Submission) error {
		record := domain.SubmissionRecord{
			ID:            uuid.NewString(),
			SessionID:     sessionID,
			QuizID:        quizID,
			StudentID:     studentID,
			AttemptNumber: number,
			Submission:    submission,
			SubmittedAt:   s.now().UTC(),
		}
		if err := s.sink.SaveSubmission(ctx, record); err != nil {
			return err
		}
		log.Printf("attempt %s submitted: %d responses, %ds spent", sessionID, len(submission.Responses), submission.TimeSpentSeconds)
		return nil
	}
}
