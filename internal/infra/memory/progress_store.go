package memory

import (
	"context"
	"sync"

	"learn-quiz-service/internal/domain"
)

// ProgressStore keeps one progress ledger per user in memory.
type ProgressStore struct {
	mu     sync.RWMutex
	ledger map[string]map[string]domain.CourseScore
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{ledger: make(map[string]map[string]domain.CourseScore)}
}

func (s *ProgressStore) GetProgress(_ context.Context, userID string) (domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	progress := domain.NewProgress(userID)
	for course, score := range s.ledger[userID] {
		progress.Scores[course] = score
	}
	return progress, nil
}

func (s *ProgressStore) SaveProgress(_ context.Context, progress domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scores := make(map[string]domain.CourseScore, len(progress.Scores))
	for course, score := range progress.Scores {
		scores[course] = score
	}
	s.ledger[progress.UserID] = scores
	return nil
}
