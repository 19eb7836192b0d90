package attempt

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// Sequencer computes the question and option order of a session once and
// reuses the persisted order on every later call for the same session id.
// Reshuffling on reload would let a student re-roll a question into an easier
// position.
type Sequencer struct {
	store *StateStore
	mu    sync.Mutex
	rnd   *rand.Rand
}

func NewSequencer(store *StateStore) *Sequencer {
	return NewSequencerWithRand(store, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewSequencerWithRand is used by tests for deterministic permutations.
func NewSequencerWithRand(store *StateStore, rnd *rand.Rand) *Sequencer {
	return &Sequencer{store: store, rnd: rnd}
}

// BuildOrder returns the display order of question ids for a session.
func (s *Sequencer) BuildOrder(ctx context.Context, quiz domain.Quiz, sessionID string) []string {
	ids := quiz.QuestionIDs()
	if stored, ok := s.store.QuestionOrder(ctx, sessionID); ok {
		if isPermutation(stored, ids) {
			return stored
		}
		log.Printf("sequencer: stored question order for %s no longer matches quiz %s, rebuilding", sessionID, quiz.ID)
	}

	order := ids
	if quiz.Settings.ShuffleQuestions {
		order = s.shuffled(ids)
	}
	s.store.Save(ctx, sessionID, State{QuestionOrder: order})
	return order
}

// BuildOptionOrder returns the per-question option order for a session, or nil
// when options are shown in declaration order.
func (s *Sequencer) BuildOptionOrder(ctx context.Context, quiz domain.Quiz, sessionID string) map[string][]string {
	if !quiz.Settings.ShuffleOptions {
		return nil
	}
	stored, _ := s.store.OptionOrder(ctx, sessionID)

	out := make(map[string][]string, len(quiz.Questions))
	changed := len(stored) != len(quiz.Questions)
	for _, question := range quiz.Questions {
		ids := optionIDs(question)
		if prev, ok := stored[question.ID]; ok && isPermutation(prev, ids) {
			out[question.ID] = prev
			continue
		}
		out[question.ID] = s.shuffled(ids)
		changed = true
	}
	if changed {
		s.store.Save(ctx, sessionID, State{OptionOrder: out})
	}
	return out
}

func (s *Sequencer) shuffled(ids []string) []string {
	out := append(make([]string, 0, len(ids)), ids...)
	s.mu.Lock()
	s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	s.mu.Unlock()
	return out
}

func optionIDs(q domain.Question) []string {
	ids := make([]string, len(q.Options))
	for i, opt := range q.Options {
		ids[i] = opt.ID
	}
	return ids
}

// isPermutation reports whether a holds exactly the ids of b in any order.
func isPermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(b))
	for _, id := range b {
		seen[id]++
	}
	for _, id := range a {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}
