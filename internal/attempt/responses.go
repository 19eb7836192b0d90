package attempt

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// Counts aggregates response progress for the review pass and the header.
type Counts struct {
	Answered   int `json:"answered"`
	Marked     int `json:"marked"`
	Unanswered int `json:"unanswered"`
}

// Tracker holds the responses of a session, index-aligned with the question
// order, and writes the full array through to the store on every change.
type Tracker struct {
	store     *StateStore
	sessionID string
	questions []domain.Question

	mu        sync.Mutex
	responses []domain.Response
}

// NewTracker binds questions (already in display order) to restored responses.
// Restored responses that do not line up with the questions are replaced by a
// fresh empty set, which is persisted immediately.
func NewTracker(ctx context.Context, store *StateStore, sessionID string, questions []domain.Question, restored []domain.Response) *Tracker {
	t := &Tracker{store: store, sessionID: sessionID, questions: questions}
	if aligned(questions, restored) {
		t.responses = restored
		for i := range t.responses {
			t.responses[i].SelectedOptionIDs = normalizeSelection(questions[i], t.responses[i].SelectedOptionIDs)
		}
		return t
	}
	t.responses = make([]domain.Response, len(questions))
	for i, q := range questions {
		t.responses[i] = domain.Response{QuestionID: q.ID, SelectedOptionIDs: []string{}}
	}
	store.SaveResponses(ctx, sessionID, t.responses)
	return t
}

// Select applies an option choice to the question at index. Single-choice and
// true-false questions replace the selection; multiple-choice toggles it.
func (t *Tracker) Select(ctx context.Context, index int, optionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.questions) {
		return domain.ErrQuestionIndexOutOfRange
	}
	question := t.questions[index]
	if !question.HasOption(optionID) {
		return domain.ErrOptionNotFound
	}

	current := t.responses[index].SelectedOptionIDs
	var next []string
	if question.Type.Exclusive() {
		next = []string{optionID}
	} else {
		next = toggle(current, optionID)
	}
	t.responses[index].SelectedOptionIDs = next
	t.persistLocked(ctx)
	return nil
}

// ToggleReview flips the marked-for-review flag of the question at index.
func (t *Tracker) ToggleReview(ctx context.Context, index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index < 0 || index >= len(t.questions) {
		return domain.ErrQuestionIndexOutOfRange
	}
	t.responses[index].MarkedForReview = !t.responses[index].MarkedForReview
	t.persistLocked(ctx)
	return nil
}

// Snapshot returns a deep copy of the responses in display order.
func (t *Tracker) Snapshot() []domain.Response {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Response, len(t.responses))
	for i, r := range t.responses {
		out[i] = r.Clone()
	}
	return out
}

// Response returns a copy of the response at index.
func (t *Tracker) Response(index int) (domain.Response, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.responses) {
		return domain.Response{}, false
	}
	return t.responses[index].Clone(), true
}

// Counts returns answered, marked and unanswered totals.
func (t *Tracker) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	var c Counts
	for _, r := range t.responses {
		if r.Answered() {
			c.Answered++
		}
		if r.MarkedForReview {
			c.Marked++
		}
	}
	c.Unanswered = len(t.responses) - c.Answered
	return c
}

// Len is the number of tracked questions.
func (t *Tracker) Len() int {
	return len(t.questions)
}

func (t *Tracker) persistLocked(ctx context.Context) {
	t.store.SaveResponses(ctx, t.sessionID, t.responses)
}

func toggle(current []string, optionID string) []string {
	next := make([]string, 0, len(current)+1)
	removed := false
	for _, id := range current {
		if id == optionID {
			removed = true
			continue
		}
		next = append(next, id)
	}
	if !removed {
		next = append(next, optionID)
	}
	return next
}

// aligned reports whether restored responses belong to questions position by position.
func aligned(questions []domain.Question, restored []domain.Response) bool {
	if len(restored) != len(questions) {
		return false
	}
	for i, q := range questions {
		if restored[i].QuestionID != q.ID {
			return false
		}
	}
	return true
}

// normalizeSelection drops unknown or repeated ids and enforces the
// single-selection rule, so a tampered stored value cannot break the set
// semantics of a response.
func normalizeSelection(q domain.Question, selected []string) []string {
	out := make([]string, 0, len(selected))
	seen := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		if _, dup := seen[id]; dup || !q.HasOption(id) {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if q.Type.Exclusive() && len(out) > 1 {
		out = out[len(out)-1:]
	}
	return out
}
