package memory

import (
	"context"
	"errors"
	"testing"

	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/domain"
)

func startSample(t *testing.T, backend *StateBackend) func() (*attempt.Session, error) {
	t.Helper()
	return func() (*attempt.Session, error) {
		return attempt.Start(context.Background(), "sample:u1", SampleQuizzes()["sample"],
			func(context.Context, domain.Submission) error { return nil },
			attempt.Options{Store: attempt.NewStateStore(backend)})
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	backend := NewStateBackend()
	store := NewSessionStore()

	first, err := store.Acquire("sample:u1", startSample(t, backend))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	second, err := store.Acquire("sample:u1", func() (*attempt.Session, error) {
		t.Fatalf("running session must be reused")
		return nil, nil
	})
	if err != nil || second != first {
		t.Fatalf("expected the same engine, got %v", err)
	}

	store.Release("sample:u1")
	if _, ok := store.Get("sample:u1"); !ok {
		t.Fatalf("session should stay while a holder remains")
	}
	store.Release("sample:u1")
	if _, ok := store.Get("sample:u1"); ok {
		t.Fatalf("expected session removed after last release")
	}
	if err := first.Next(); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("released engine should be closed, got %v", err)
	}
	if backend.Len() == 0 {
		t.Fatalf("closing must keep persisted state")
	}
}

func TestSessionStoreStartFailure(t *testing.T) {
	store := NewSessionStore()
	boom := errors.New("boom")
	if _, err := store.Acquire("x", func() (*attempt.Session, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("failed start must not register a session")
	}
}

func TestSessionStoreRemove(t *testing.T) {
	store := NewSessionStore()
	if _, err := store.Acquire("sample:u1", startSample(t, NewStateBackend())); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	store.Remove("sample:u1")
	store.Release("sample:u1")
	if store.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", store.Len())
	}
}
