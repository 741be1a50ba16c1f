package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"learn-quiz-service/internal/domain"
)

// SittingStore is an in-memory implementation of app.SittingRepository.
// Stored sittings are deep copies so callers never share slices or maps with the store.
type SittingStore struct {
	mu       sync.RWMutex
	nextID   int64
	sittings map[int64]domain.Sitting
}

func NewSittingStore() *SittingStore {
	return &SittingStore{
		sittings: make(map[int64]domain.Sitting),
	}
}

// FindIncomplete returns the lowest-ID incomplete sitting for the pair.
func (s *SittingStore) FindIncomplete(_ context.Context, userID, quizSlug string) (domain.Sitting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.Sitting
	for _, sitting := range s.sittings {
		if sitting.UserID != userID || sitting.QuizSlug != quizSlug || sitting.Complete {
			continue
		}
		if found == nil || sitting.ID < found.ID {
			candidate := sitting
			found = &candidate
		}
	}
	if found == nil {
		return domain.Sitting{}, domain.ErrSittingNotFound
	}
	return cloneSitting(*found), nil
}

func (s *SittingStore) CountCompleted(_ context.Context, userID, quizSlug string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.CountBy(lo.Values(s.sittings), func(sitting domain.Sitting) bool {
		return sitting.UserID == userID && sitting.QuizSlug == quizSlug && sitting.Complete
	}), nil
}

func (s *SittingStore) Create(_ context.Context, sitting *domain.Sitting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !sitting.Complete {
		for _, existing := range s.sittings {
			if existing.UserID == sitting.UserID && existing.QuizSlug == sitting.QuizSlug && !existing.Complete {
				return domain.ErrDuplicateSitting
			}
		}
	}
	s.nextID++
	sitting.ID = s.nextID
	sitting.Version = 1
	s.sittings[sitting.ID] = cloneSitting(*sitting)
	return nil
}

func (s *SittingStore) Save(_ context.Context, sitting *domain.Sitting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.sittings[sitting.ID]
	if !ok {
		return domain.ErrSittingNotFound
	}
	if existing.Version != sitting.Version {
		return domain.ErrConcurrentUpdate
	}
	sitting.Version++
	s.sittings[sitting.ID] = cloneSitting(*sitting)
	return nil
}

func (s *SittingStore) Get(_ context.Context, id int64) (domain.Sitting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sitting, ok := s.sittings[id]
	if !ok {
		return domain.Sitting{}, domain.ErrSittingNotFound
	}
	return cloneSitting(sitting), nil
}

func (s *SittingStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sittings, id)
	return nil
}

func (s *SittingStore) ListCompleted(_ context.Context, filter domain.SittingFilter) ([]domain.Sitting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := lo.Filter(lo.Values(s.sittings), func(sitting domain.Sitting, _ int) bool {
		return sitting.Complete && matchesFilter(sitting, filter)
	})
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return lo.Map(matches, func(sitting domain.Sitting, _ int) domain.Sitting { return cloneSitting(sitting) }), nil
}

func matchesFilter(sitting domain.Sitting, filter domain.SittingFilter) bool {
	if filter.UserID != "" && sitting.UserID != filter.UserID {
		return false
	}
	if filter.QuizTitle != "" && !containsFold(sitting.QuizTitle, filter.QuizTitle) {
		return false
	}
	if filter.Username != "" && !containsFold(sitting.Username, filter.Username) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func cloneSitting(s domain.Sitting) domain.Sitting {
	s.Remaining = append([]int64{}, s.Remaining...)
	s.Incorrect = append([]int64{}, s.Incorrect...)
	answers := make(map[int64]string, len(s.UserAnswers))
	for k, v := range s.UserAnswers {
		answers[k] = v
	}
	s.UserAnswers = answers
	if s.CompletedAt != nil {
		completed := *s.CompletedAt
		s.CompletedAt = &completed
	}
	return s
}
