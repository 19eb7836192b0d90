package domain

import "fmt"

// Validate checks the invariants the attempt engine relies on.
func (q Quiz) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidQuiz)
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz %s has no questions", ErrInvalidQuiz, q.ID)
	}
	if q.Settings.TotalDuration <= 0 {
		return fmt.Errorf("%w: quiz %s total duration must be positive", ErrInvalidQuiz, q.ID)
	}
	if q.Settings.AttemptLimit < 0 {
		return fmt.Errorf("%w: quiz %s attempt limit must not be negative", ErrInvalidQuiz, q.ID)
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if question.ID == "" {
			return fmt.Errorf("%w: question without id", ErrInvalidQuiz)
		}
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("%w: duplicate question %s", ErrInvalidQuiz, question.ID)
		}
		seen[question.ID] = struct{}{}
		if err := question.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (q Question) validate() error {
	if !q.Type.Valid() {
		return fmt.Errorf("%w: question %s has unknown type %q", ErrInvalidQuiz, q.ID, q.Type)
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("%w: question %s has no options", ErrInvalidQuiz, q.ID)
	}
	if q.Type == QuestionTrueFalse && len(q.Options) != 2 {
		return fmt.Errorf("%w: true-false question %s needs exactly 2 options", ErrInvalidQuiz, q.ID)
	}
	if q.Marks <= 0 {
		return fmt.Errorf("%w: question %s marks must be positive", ErrInvalidQuiz, q.ID)
	}
	if q.NegativeMarks < 0 {
		return fmt.Errorf("%w: question %s has negative penalty", ErrInvalidQuiz, q.ID)
	}
	options := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if opt.ID == "" {
			return fmt.Errorf("%w: question %s has an option without id", ErrInvalidQuiz, q.ID)
		}
		if _, dup := options[opt.ID]; dup {
			return fmt.Errorf("%w: question %s repeats option %s", ErrInvalidQuiz, q.ID, opt.ID)
		}
		options[opt.ID] = struct{}{}
	}
	return nil
}
