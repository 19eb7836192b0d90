package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no attempt session exists for an id.
	ErrSessionNotFound = errors.New("attempt session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz wraps definition validation failures.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrQuestionIndexOutOfRange indicates navigation or mutation outside the question list.
	ErrQuestionIndexOutOfRange = errors.New("question index out of range")
	// ErrOptionNotFound indicates a selected option ID is not part of the question.
	ErrOptionNotFound = errors.New("option not found")
	// ErrSessionNotActive is returned for changes attempted outside the in-progress state.
	ErrSessionNotActive = errors.New("attempt is not accepting changes")
	// ErrTimeExpired is returned for changes attempted after the countdown reached zero.
	ErrTimeExpired = errors.New("time expired")
	// ErrNotReviewing is returned when confirming or cancelling without an open review.
	ErrNotReviewing = errors.New("attempt is not under review")
	// ErrSubmitFailed marks a rejected submit call; the attempt may be retried.
	ErrSubmitFailed = errors.New("submission failed")
	// ErrAttemptLimitReached is returned when opening a quiz whose attempt limit is used up.
	ErrAttemptLimitReached = errors.New("attempt limit reached")
	// ErrNothingToRetry is returned when no failed submission is pending.
	ErrNothingToRetry = errors.New("no failed submission to retry")
)
