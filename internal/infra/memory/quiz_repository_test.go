package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(SampleQuizzes())}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "sample"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	if _, err := repo.GetQuiz(context.Background(), "sample"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	now := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(SampleQuizzes())}
	repo := NewQuizRepositoryWithClock(loader, time.Minute, func() time.Time { return now })

	_, _ = repo.GetQuiz(context.Background(), "sample")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "sample")
	if loader.count() != 2 {
		t.Fatalf("expected reload after ttl, got %d calls", loader.count())
	}

	repo.Invalidate("sample")
	_, _ = repo.GetQuiz(context.Background(), "sample")
	if loader.count() != 3 {
		t.Fatalf("expected reload after invalidate, got %d calls", loader.count())
	}
}

func TestQuizRepositoryRejectsInvalidDefinitions(t *testing.T) {
	broken := SampleQuizzes()["sample"]
	broken.Settings.TotalDuration = 0
	repo := NewQuizRepository(NewStaticQuizLoader(map[string]domain.Quiz{"sample": broken}), time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "sample"); !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected invalid quiz, got %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
