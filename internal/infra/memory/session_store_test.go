package memory

import (
	"context"
	"testing"
	"time"

	"learn-quiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)

	if _, ok, _ := store.LoadSitting(ctx, "visitor", "quiz-1"); ok {
		t.Fatalf("expected no sitting before save")
	}
	if err := store.SaveSitting(ctx, "visitor", domain.AnonSitting{QuizSlug: "quiz-1", Remaining: []int64{1, 2}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	sitting, ok, err := store.LoadSitting(ctx, "visitor", "quiz-1")
	if err != nil || !ok {
		t.Fatalf("expected sitting present, ok=%v err=%v", ok, err)
	}
	if len(sitting.Remaining) != 2 {
		t.Fatalf("expected 2 remaining, got %v", sitting.Remaining)
	}

	if err := store.DeleteSitting(ctx, "visitor", "quiz-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.LoadSitting(ctx, "visitor", "quiz-1"); ok {
		t.Fatalf("expected sitting removed")
	}
}

func TestSessionStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewSessionStoreWithClock(72*time.Hour, func() time.Time { return now })

	_ = store.SaveSitting(ctx, "visitor", domain.AnonSitting{QuizSlug: "quiz-1", Remaining: []int64{1}})
	_ = store.SaveTally(ctx, "visitor", domain.AnonTally{Score: 1, Possible: 1})

	now = now.Add(71 * time.Hour)
	if _, ok, _ := store.LoadSitting(ctx, "visitor", "quiz-1"); !ok {
		t.Fatalf("expected sitting inside the expiry window")
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := store.LoadSitting(ctx, "visitor", "quiz-1"); ok {
		t.Fatalf("expected sitting expired")
	}
	tally, _ := store.LoadTally(ctx, "visitor")
	if tally != (domain.AnonTally{}) {
		t.Fatalf("expected tally reset after expiry, got %+v", tally)
	}
}
