package domain

import "time"

// QuestionType selects how option selection behaves for a question.
type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single-choice"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTrueFalse      QuestionType = "true-false"
)

// Exclusive reports whether selecting an option replaces the current selection.
func (t QuestionType) Exclusive() bool {
	return t == QuestionSingleChoice || t == QuestionTrueFalse
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultipleChoice, QuestionTrueFalse:
		return true
	}
	return false
}

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// Question models a single assessment item.
type Question struct {
	ID            string       `json:"id" yaml:"id"`
	Type          QuestionType `json:"type" yaml:"type"`
	Prompt        string       `json:"questionText" yaml:"prompt"`
	Options       []Option     `json:"options" yaml:"options"`
	Marks         float64      `json:"marks" yaml:"marks"`
	NegativeMarks float64      `json:"negativeMarks" yaml:"negativeMarks"`
}

// HasOption reports whether optionID belongs to the question.
func (q Question) HasOption(optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// Settings controls timing, ordering and the review pass of an attempt.
type Settings struct {
	TotalDuration    int  `json:"totalDuration" yaml:"totalDuration"` // minutes
	ShuffleQuestions bool `json:"shuffleQuestions" yaml:"shuffleQuestions"`
	ShuffleOptions   bool `json:"shuffleOptions" yaml:"shuffleOptions"`
	AllowReview      bool `json:"allowReview" yaml:"allowReview"`
	AttemptLimit     int  `json:"attemptLimit" yaml:"attemptLimit"` // submitted attempts per student, 0 = unlimited
}

// TotalSeconds is the full attempt length in seconds.
func (s Settings) TotalSeconds() int {
	return s.TotalDuration * 60
}

// Quiz is the read-only definition an attempt runs against.
type Quiz struct {
	ID        string     `json:"id" yaml:"id"`
	Title     string     `json:"title,omitempty" yaml:"title"`
	Questions []Question `json:"questions" yaml:"questions"`
	Settings  Settings   `json:"settings" yaml:"settings"`
}

// Question returns the question with the given id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// QuestionIDs lists question ids in declaration order.
func (q Quiz) QuestionIDs() []string {
	ids := make([]string, len(q.Questions))
	for i, question := range q.Questions {
		ids[i] = question.ID
	}
	return ids
}

// Response is a student's answer state for one question.
type Response struct {
	QuestionID        string   `json:"questionId"`
	SelectedOptionIDs []string `json:"selectedOptionIds"`
	MarkedForReview   bool     `json:"markedForReview"`
}

// Answered reports whether at least one option is selected.
func (r Response) Answered() bool {
	return len(r.SelectedOptionIDs) > 0
}

// Clone returns a copy that shares no memory with r.
func (r Response) Clone() Response {
	out := r
	out.SelectedOptionIDs = append(make([]string, 0, len(r.SelectedOptionIDs)), r.SelectedOptionIDs...)
	return out
}

// Submission is the payload handed to the external submit collaborator.
type Submission struct {
	Responses        []Response `json:"responses"`
	TimeSpentSeconds int        `json:"timeSpentSeconds"`
}

// SubmissionRecord is a terminal submission as stored by a sink.
type SubmissionRecord struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"sessionId"`
	QuizID        string     `json:"quizId"`
	StudentID     string     `json:"studentId"`
	AttemptNumber int        `json:"attemptNumber"`
	Submission    Submission `json:"submission"`
	SubmittedAt   time.Time  `json:"submittedAt"`
}
