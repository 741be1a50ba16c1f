package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"learn-quiz-service/internal/domain"
)

type progressModel struct {
	bun.BaseModel `bun:"table:progress,alias:p"`

	UserID    string                     `bun:"user_id,pk"`
	Scores    map[string]json.RawMessage `bun:"scores,type:jsonb,notnull"`
	UpdatedAt time.Time                  `bun:"updated_at,notnull"`
}

// ProgressStore keeps one JSONB ledger row per user.
type ProgressStore struct {
	db *bun.DB
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func (s *ProgressStore) GetProgress(ctx context.Context, userID string) (domain.Progress, error) {
	var m progressModel
	err := s.db.NewSelect().Model(&m).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewProgress(userID), nil
	}
	if err != nil {
		return domain.Progress{}, fmt.Errorf("get progress: %w", err)
	}
	progress := domain.NewProgress(userID)
	progress.Scores = decodeLedger(m.Scores)
	return progress, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, progress domain.Progress) error {
	scores, err := encodeLedger(progress.Scores)
	if err != nil {
		return err
	}
	m := &progressModel{UserID: progress.UserID, Scores: scores, UpdatedAt: time.Now()}
	_, err = s.db.NewInsert().
		Model(m).
		On("CONFLICT (user_id) DO UPDATE").
		Set("scores = EXCLUDED.scores").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// decodeLedger reads each course entry on its own; an unreadable entry counts as zero.
func decodeLedger(raw map[string]json.RawMessage) map[string]domain.CourseScore {
	scores := make(map[string]domain.CourseScore, len(raw))
	for course, entry := range raw {
		var score domain.CourseScore
		if err := json.Unmarshal(entry, &score); err != nil || score.Correct < 0 || score.Attempted < 0 {
			score = domain.CourseScore{}
		}
		scores[course] = score
	}
	return scores
}

func encodeLedger(scores map[string]domain.CourseScore) (map[string]json.RawMessage, error) {
	raw := make(map[string]json.RawMessage, len(scores))
	for course, score := range scores {
		entry, err := json.Marshal(score)
		if err != nil {
			return nil, err
		}
		raw[course] = entry
	}
	return raw, nil
}
