package attempt

import (
	"fmt"
	"strconv"

	"quiz-attempt-service/internal/domain"
)

// lowTimeThreshold marks the countdown as urgent.
const lowTimeThreshold = 300

const subscriberBuffer = 8

// OptionView is an option as rendered, in display order.
type OptionView struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

// QuestionView is the current question as rendered.
type QuestionView struct {
	ID              string              `json:"id"`
	Type            domain.QuestionType `json:"type"`
	Prompt          string              `json:"questionText"`
	Marks           float64             `json:"marks"`
	NegativeMarks   float64             `json:"negativeMarks"`
	Options         []OptionView        `json:"options"`
	MarkedForReview bool                `json:"markedForReview"`
}

// PaletteEntry is one cell of the question palette.
type PaletteEntry struct {
	Index      int    `json:"index"`
	QuestionID string `json:"questionId"`
	Answered   bool   `json:"answered"`
	Marked     bool   `json:"marked"`
	Current    bool   `json:"current"`
}

// View is a render-ready snapshot of a session.
type View struct {
	SessionID            string         `json:"sessionId"`
	QuizID               string         `json:"quizId"`
	Title                string         `json:"title"`
	Status               Status         `json:"status"`
	CurrentIndex         int            `json:"currentIndex"`
	TotalQuestions       int            `json:"totalQuestions"`
	Question             *QuestionView  `json:"question,omitempty"`
	Counts               Counts         `json:"counts"`
	TimeRemainingSeconds int            `json:"timeRemainingSeconds"`
	TimeRemaining        string         `json:"timeRemaining"`
	LowTime              bool           `json:"lowTime"`
	Palette              []PaletteEntry `json:"palette"`
	SubmitError          string         `json:"submitError,omitempty"`
	ExitDialog           bool           `json:"exitDialog"`
	GuardArmed           bool           `json:"guardArmed"`
}

// FormatRemaining renders seconds as zero-padded MM:SS. Minutes are not
// wrapped into hours.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// OptionLabel returns the letter shown next to the option at index: A, B, C...
func OptionLabel(index int) string {
	if index >= 0 && index < 26 {
		return string(rune('A' + index))
	}
	return strconv.Itoa(index + 1)
}

// View returns the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe returns a channel that receives a snapshot after every change.
// Slow readers only see the latest snapshot. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.viewLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subscribers) == 0 {
		return
	}
	v := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (s *Session) viewLocked() View {
	responses := s.tracker.Snapshot()
	remaining := s.timer.Remaining()

	v := View{
		SessionID:            s.id,
		QuizID:               s.quiz.ID,
		Title:                s.quiz.Title,
		Status:               s.status,
		CurrentIndex:         s.index,
		TotalQuestions:       len(s.questions),
		Counts:               s.tracker.Counts(),
		TimeRemainingSeconds: remaining,
		TimeRemaining:        FormatRemaining(remaining),
		LowTime:              remaining < lowTimeThreshold,
		Palette:              make([]PaletteEntry, len(responses)),
		ExitDialog:           s.guard.DialogOpen(),
		GuardArmed:           s.guard.Armed(),
	}
	if s.submitErr != nil {
		v.SubmitError = s.submitErr.Error()
	}
	for i, r := range responses {
		v.Palette[i] = PaletteEntry{
			Index:      i,
			QuestionID: r.QuestionID,
			Answered:   r.Answered(),
			Marked:     r.MarkedForReview,
			Current:    i == s.index,
		}
	}

	if s.index < len(s.questions) {
		q := s.questions[s.index]
		current := responses[s.index]
		selected := make(map[string]struct{}, len(current.SelectedOptionIDs))
		for _, id := range current.SelectedOptionIDs {
			selected[id] = struct{}{}
		}
		qv := &QuestionView{
			ID:              q.ID,
			Type:            q.Type,
			Prompt:          q.Prompt,
			Marks:           q.Marks,
			NegativeMarks:   q.NegativeMarks,
			Options:         make([]OptionView, len(q.Options)),
			MarkedForReview: current.MarkedForReview,
		}
		for i, opt := range q.Options {
			_, on := selected[opt.ID]
			qv.Options[i] = OptionView{ID: opt.ID, Label: OptionLabel(i), Text: opt.Text, Selected: on}
		}
		v.Question = qv
	}
	return v
}
