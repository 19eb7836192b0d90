package attempt_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/domain"
)

func TestTrackerSelectionRules(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewStateStore(newMapBackend())
	questions := fiveQuestionQuiz().Questions
	tracker := attempt.NewTracker(ctx, store, "s1", questions, nil)

	if err := tracker.Select(ctx, 0, "a"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if err := tracker.Select(ctx, 0, "b"); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if r, _ := tracker.Response(0); !reflect.DeepEqual(r.SelectedOptionIDs, []string{"b"}) {
		t.Fatalf("single-choice should replace, got %v", r.SelectedOptionIDs)
	}

	_ = tracker.Select(ctx, 1, "t")
	_ = tracker.Select(ctx, 1, "f")
	if r, _ := tracker.Response(1); !reflect.DeepEqual(r.SelectedOptionIDs, []string{"f"}) {
		t.Fatalf("true-false should replace, got %v", r.SelectedOptionIDs)
	}

	_ = tracker.Select(ctx, 2, "a")
	_ = tracker.Select(ctx, 2, "c")
	_ = tracker.Select(ctx, 2, "a")
	if r, _ := tracker.Response(2); !reflect.DeepEqual(r.SelectedOptionIDs, []string{"c"}) {
		t.Fatalf("multiple-choice should toggle, got %v", r.SelectedOptionIDs)
	}

	persisted := store.Load(ctx, "s1").Responses
	if len(persisted) != len(questions) || !reflect.DeepEqual(persisted[2].SelectedOptionIDs, []string{"c"}) {
		t.Fatalf("responses should be written through, got %+v", persisted)
	}
}

func TestTrackerRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	tracker := attempt.NewTracker(ctx, attempt.NewStateStore(newMapBackend()), "s1", fiveQuestionQuiz().Questions, nil)

	if err := tracker.Select(ctx, 9, "a"); !errors.Is(err, domain.ErrQuestionIndexOutOfRange) {
		t.Fatalf("expected index error, got %v", err)
	}
	if err := tracker.Select(ctx, 0, "zz"); !errors.Is(err, domain.ErrOptionNotFound) {
		t.Fatalf("expected option error, got %v", err)
	}
	if err := tracker.ToggleReview(ctx, -1); !errors.Is(err, domain.ErrQuestionIndexOutOfRange) {
		t.Fatalf("expected index error, got %v", err)
	}
	if tracker.Counts().Answered != 0 {
		t.Fatalf("rejected input must not change responses")
	}
}

func TestTrackerCountsAndReview(t *testing.T) {
	ctx := context.Background()
	tracker := attempt.NewTracker(ctx, attempt.NewStateStore(newMapBackend()), "s1", fiveQuestionQuiz().Questions, nil)

	_ = tracker.Select(ctx, 0, "a")
	_ = tracker.Select(ctx, 3, "b")
	_ = tracker.ToggleReview(ctx, 3)
	_ = tracker.ToggleReview(ctx, 4)
	_ = tracker.ToggleReview(ctx, 4)
	_ = tracker.ToggleReview(ctx, 1)

	want := attempt.Counts{Answered: 2, Marked: 2, Unanswered: 3}
	if got := tracker.Counts(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestTrackerRestoresAlignedResponses(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewStateStore(newMapBackend())
	questions := fiveQuestionQuiz().Questions[:2]
	restored := []domain.Response{
		{QuestionID: "q1", SelectedOptionIDs: []string{"a", "b", "nope"}, MarkedForReview: true},
		{QuestionID: "q2", SelectedOptionIDs: []string{}},
	}

	tracker := attempt.NewTracker(ctx, store, "s1", questions, restored)
	r, _ := tracker.Response(0)
	if !reflect.DeepEqual(r.SelectedOptionIDs, []string{"b"}) || !r.MarkedForReview {
		t.Fatalf("expected normalized restore, got %+v", r)
	}
}

func TestTrackerReplacesMisalignedResponses(t *testing.T) {
	ctx := context.Background()
	store := attempt.NewStateStore(newMapBackend())
	questions := fiveQuestionQuiz().Questions[:2]
	restored := []domain.Response{
		{QuestionID: "q2", SelectedOptionIDs: []string{"t"}},
		{QuestionID: "q1", SelectedOptionIDs: []string{"a"}},
	}

	tracker := attempt.NewTracker(ctx, store, "s1", questions, restored)
	snap := tracker.Snapshot()
	if snap[0].QuestionID != "q1" || snap[0].Answered() || snap[1].Answered() {
		t.Fatalf("expected fresh responses, got %+v", snap)
	}
	if len(store.Load(ctx, "s1").Responses) != 2 {
		t.Fatalf("fresh responses should be persisted")
	}
}

func TestTrackerSnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	tracker := attempt.NewTracker(ctx, attempt.NewStateStore(newMapBackend()), "s1", fiveQuestionQuiz().Questions, nil)
	_ = tracker.Select(ctx, 2, "a")

	snap := tracker.Snapshot()
	snap[2].SelectedOptionIDs[0] = "mutated"
	if r, _ := tracker.Response(2); r.SelectedOptionIDs[0] != "a" {
		t.Fatalf("snapshot must not alias tracker state")
	}
}
