package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"learn-quiz-service/internal/domain"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, 72*time.Hour)

	sitting := domain.AnonSitting{QuizSlug: "quiz-1", Remaining: []int64{3, 1, 2}, Score: 1}
	if err := store.SaveSitting(ctx, "visitor", sitting); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:session:visitor") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:session:visitor"); ttl != 72*time.Hour {
		t.Fatalf("expected 72h ttl, got %v", ttl)
	}

	loaded, ok, err := store.LoadSitting(ctx, "visitor", "quiz-1")
	if err != nil || !ok {
		t.Fatalf("expected sitting, ok=%v err=%v", ok, err)
	}
	if len(loaded.Remaining) != 3 || loaded.Remaining[0] != 3 || loaded.Score != 1 {
		t.Fatalf("unexpected sitting %+v", loaded)
	}

	if err := store.DeleteSitting(ctx, "visitor", "quiz-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.LoadSitting(ctx, "visitor", "quiz-1"); ok {
		t.Fatalf("expected sitting removed")
	}
}

func TestSessionStoreTallyExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)

	if err := store.SaveTally(ctx, "visitor", domain.AnonTally{Score: 2, Possible: 3}); err != nil {
		t.Fatalf("save tally: %v", err)
	}
	tally, err := store.LoadTally(ctx, "visitor")
	if err != nil || tally.Possible != 3 {
		t.Fatalf("unexpected tally %+v err=%v", tally, err)
	}

	mr.FastForward(2 * time.Hour)
	tally, err = store.LoadTally(ctx, "visitor")
	if err != nil {
		t.Fatalf("load tally: %v", err)
	}
	if tally != (domain.AnonTally{}) {
		t.Fatalf("expected expired tally, got %+v", tally)
	}
}
