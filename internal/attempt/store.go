package attempt

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// Backend is the durable key-value store session state is written to
// (in-memory, Redis, SQLite).
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// Refresher is implemented by backends whose keys expire. Touch restarts the
// lifetime of every existing key given.
type Refresher interface {
	Touch(ctx context.Context, keys ...string) error
}

const (
	fieldTimeRemaining = "timeRemaining"
	fieldStartTime     = "startTime"
	fieldResponses     = "responses"
	fieldQuestionOrder = "questionOrder"
	fieldOptionOrder   = "optionOrder"
)

var allFields = []string{fieldTimeRemaining, fieldStartTime, fieldResponses, fieldQuestionOrder, fieldOptionOrder}

const defaultStoreTimeout = 2 * time.Second

// touchInterval throttles lifetime refreshes caused by ordinary writes.
const touchInterval = time.Minute

// State is the persisted aggregate of one session. Nil slices and maps, a zero
// StartTimeEpochMs and a nil TimeRemainingSeconds mean the field is absent; in
// a Save call they mean "leave untouched".
type State struct {
	QuestionOrder        []string
	OptionOrder          map[string][]string
	Responses            []domain.Response
	StartTimeEpochMs     int64
	TimeRemainingSeconds *int
}

// Empty reports whether no field was restored.
func (s State) Empty() bool {
	return s.QuestionOrder == nil && s.OptionOrder == nil && s.Responses == nil &&
		s.StartTimeEpochMs == 0 && s.TimeRemainingSeconds == nil
}

// StateStore persists session state one key per field so a bad write to one
// field never invalidates the others. Writes are best-effort: failures are
// logged and the session carries on with reduced durability.
//
// On expiring backends the keys of a session share one lifetime: a write to
// any field also refreshes its siblings, so the order fields written once at
// creation never expire ahead of the responses.
type StateStore struct {
	backend Backend
	timeout time.Duration

	mu      sync.Mutex
	touched map[string]time.Time
}

func NewStateStore(backend Backend) *StateStore {
	return NewStateStoreWithTimeout(backend, defaultStoreTimeout)
}

// NewStateStoreWithTimeout bounds every backend call by timeout.
func NewStateStoreWithTimeout(backend Backend, timeout time.Duration) *StateStore {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return &StateStore{backend: backend, timeout: timeout, touched: make(map[string]time.Time)}
}

// Load restores every decodable field. Corrupt fields are dropped and logged.
func (s *StateStore) Load(ctx context.Context, sessionID string) State {
	var state State
	state.QuestionOrder, _ = s.QuestionOrder(ctx, sessionID)
	state.OptionOrder, _ = s.OptionOrder(ctx, sessionID)
	state.Responses, _ = loadField[[]domain.Response](ctx, s, sessionID, fieldResponses)
	state.StartTimeEpochMs, _ = loadField[int64](ctx, s, sessionID, fieldStartTime)
	if remaining, ok := s.TimeRemaining(ctx, sessionID); ok {
		state.TimeRemainingSeconds = &remaining
	}
	if state.Responses != nil && state.QuestionOrder != nil && len(state.Responses) != len(state.QuestionOrder) {
		log.Printf("state store: %s responses do not match question order (%d != %d), discarding",
			sessionID, len(state.Responses), len(state.QuestionOrder))
		state.Responses = nil
	}
	return state
}

// Save writes each present field of patch under its own key.
func (s *StateStore) Save(ctx context.Context, sessionID string, patch State) {
	if patch.QuestionOrder != nil {
		s.saveField(ctx, sessionID, fieldQuestionOrder, patch.QuestionOrder)
	}
	if patch.OptionOrder != nil {
		s.saveField(ctx, sessionID, fieldOptionOrder, patch.OptionOrder)
	}
	if patch.Responses != nil {
		s.saveField(ctx, sessionID, fieldResponses, patch.Responses)
	}
	if patch.StartTimeEpochMs != 0 {
		s.saveField(ctx, sessionID, fieldStartTime, patch.StartTimeEpochMs)
	}
	if patch.TimeRemainingSeconds != nil {
		s.saveField(ctx, sessionID, fieldTimeRemaining, *patch.TimeRemainingSeconds)
	}
}

// SaveTimeRemaining persists the countdown value alone.
func (s *StateStore) SaveTimeRemaining(ctx context.Context, sessionID string, seconds int) {
	s.saveField(ctx, sessionID, fieldTimeRemaining, seconds)
}

// SaveResponses persists the full responses array.
func (s *StateStore) SaveResponses(ctx context.Context, sessionID string, responses []domain.Response) {
	if responses == nil {
		responses = []domain.Response{}
	}
	s.saveField(ctx, sessionID, fieldResponses, responses)
}

// Clear removes all keys of a session.
func (s *StateStore) Clear(ctx context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.touched, sessionID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.backend.Delete(ctx, sessionKeys(sessionID)...); err != nil {
		log.Printf("state store: clear %s: %v", sessionID, err)
	}
}

// Touch restarts the lifetime of every key of a session. It is a no-op on
// backends that never expire keys.
func (s *StateStore) Touch(ctx context.Context, sessionID string) {
	s.refresh(ctx, sessionID, true)
}

func (s *StateStore) refresh(ctx context.Context, sessionID string, force bool) {
	refresher, ok := s.backend.(Refresher)
	if !ok {
		return
	}
	now := time.Now()
	s.mu.Lock()
	last, seen := s.touched[sessionID]
	if !force && seen && now.Sub(last) < touchInterval {
		s.mu.Unlock()
		return
	}
	s.touched[sessionID] = now
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := refresher.Touch(ctx, sessionKeys(sessionID)...); err != nil {
		log.Printf("state store: refresh %s: %v", sessionID, err)
	}
}

// QuestionOrder returns the persisted question order, if any.
func (s *StateStore) QuestionOrder(ctx context.Context, sessionID string) ([]string, bool) {
	order, ok := loadField[[]string](ctx, s, sessionID, fieldQuestionOrder)
	return order, ok && order != nil
}

// OptionOrder returns the persisted per-question option orders, if any.
func (s *StateStore) OptionOrder(ctx context.Context, sessionID string) (map[string][]string, bool) {
	order, ok := loadField[map[string][]string](ctx, s, sessionID, fieldOptionOrder)
	return order, ok && order != nil
}

// TimeRemaining returns the persisted countdown value, if any.
func (s *StateStore) TimeRemaining(ctx context.Context, sessionID string) (int, bool) {
	return loadField[int](ctx, s, sessionID, fieldTimeRemaining)
}

// loadField decodes into a fresh value so a failed decode never leaks a
// partially filled field to the caller.
func loadField[T any](ctx context.Context, s *StateStore, sessionID, field string) (T, bool) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, ok, err := s.backend.Get(ctx, stateKey(sessionID, field))
	if err != nil {
		log.Printf("state store: load %s/%s: %v", sessionID, field, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		log.Printf("state store: %s/%s is corrupt, discarding: %v", sessionID, field, err)
		return zero, false
	}
	return value, true
}

func (s *StateStore) saveField(ctx context.Context, sessionID, field string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("state store: encode %s/%s: %v", sessionID, field, err)
		return
	}
	setCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.backend.Set(setCtx, stateKey(sessionID, field), data); err != nil {
		log.Printf("state store: save %s/%s: %v", sessionID, field, err)
		return
	}
	s.refresh(ctx, sessionID, false)
}

func sessionKeys(sessionID string) []string {
	keys := make([]string, 0, len(allFields))
	for _, field := range allFields {
		keys = append(keys, stateKey(sessionID, field))
	}
	return keys
}

func stateKey(sessionID, field string) string {
	return "attempt:" + sessionID + ":" + field
}
