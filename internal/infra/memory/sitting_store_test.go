package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"learn-quiz-service/internal/domain"
)

func newSitting(user, quiz string) domain.Sitting {
	return domain.Sitting{
		UserID:      user,
		Username:    user,
		QuizSlug:    quiz,
		QuizTitle:   "Title " + quiz,
		Remaining:   []int64{1, 2},
		UserAnswers: map[int64]string{},
		StartedAt:   time.Now(),
	}
}

func TestSittingStoreRefusesSecondIncomplete(t *testing.T) {
	ctx := context.Background()
	store := NewSittingStore()

	first := newSitting("u1", "q")
	require.NoError(t, store.Create(ctx, &first))
	second := newSitting("u1", "q")
	assert.ErrorIs(t, store.Create(ctx, &second), domain.ErrDuplicateSitting)

	other := newSitting("u2", "q")
	require.NoError(t, store.Create(ctx, &other))
}

func TestSittingStoreOptimisticSave(t *testing.T) {
	ctx := context.Background()
	store := NewSittingStore()
	sitting := newSitting("u1", "q")
	require.NoError(t, store.Create(ctx, &sitting))

	a, err := store.FindIncomplete(ctx, "u1", "q")
	require.NoError(t, err)
	b, err := store.FindIncomplete(ctx, "u1", "q")
	require.NoError(t, err)

	a.Advance()
	require.NoError(t, store.Save(ctx, &a))
	b.Advance()
	assert.ErrorIs(t, store.Save(ctx, &b), domain.ErrConcurrentUpdate)

	stored, err := store.Get(ctx, sitting.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, stored.Remaining)
}

func TestSittingStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewSittingStore()
	sitting := newSitting("u1", "q")
	require.NoError(t, store.Create(ctx, &sitting))

	loaded, err := store.Get(ctx, sitting.ID)
	require.NoError(t, err)
	loaded.Remaining[0] = 99
	loaded.UserAnswers[1] = "x"

	again, err := store.Get(ctx, sitting.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, again.Remaining)
	assert.Empty(t, again.UserAnswers)
}

func TestSittingStoreListCompletedFilters(t *testing.T) {
	ctx := context.Background()
	store := NewSittingStore()

	for _, user := range []string{"alice", "bob"} {
		s := newSitting(user, "algebra")
		s.QuizTitle = "Algebra Basics"
		s.MarkComplete(time.Now())
		require.NoError(t, store.Create(ctx, &s))
	}
	open := newSitting("carol", "algebra")
	require.NoError(t, store.Create(ctx, &open))

	all, err := store.ListCompleted(ctx, domain.SittingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byTitle, err := store.ListCompleted(ctx, domain.SittingFilter{QuizTitle: "BASICS"})
	require.NoError(t, err)
	assert.Len(t, byTitle, 2)

	byUser, err := store.ListCompleted(ctx, domain.SittingFilter{Username: "ali"})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "alice", byUser[0].Username)

	count, err := store.CountCompleted(ctx, "bob", "algebra")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
