package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"learn-quiz-service/internal/domain"
)

type sittingModel struct {
	bun.BaseModel `bun:"table:sittings,alias:s"`

	ID          int64            `bun:"id,pk,autoincrement"`
	UserID      string           `bun:"user_id,notnull"`
	Username    string           `bun:"username,notnull"`
	QuizSlug    string           `bun:"quiz_slug,notnull"`
	QuizTitle   string           `bun:"quiz_title,notnull"`
	Remaining   []int64          `bun:"remaining,type:jsonb,notnull"`
	Incorrect   []int64          `bun:"incorrect,type:jsonb,notnull"`
	Score       int              `bun:"score,notnull"`
	Complete    bool             `bun:"complete,notnull"`
	UserAnswers map[int64]string `bun:"user_answers,type:jsonb,notnull"`
	Version     int              `bun:"version,notnull"`
	StartedAt   time.Time        `bun:"started_at,notnull"`
	CompletedAt *time.Time       `bun:"completed_at"`
}

func toSittingModel(s domain.Sitting) *sittingModel {
	return &sittingModel{
		ID:          s.ID,
		UserID:      s.UserID,
		Username:    s.Username,
		QuizSlug:    s.QuizSlug,
		QuizTitle:   s.QuizTitle,
		Remaining:   append([]int64{}, s.Remaining...),
		Incorrect:   append([]int64{}, s.Incorrect...),
		Score:       s.Score,
		Complete:    s.Complete,
		UserAnswers: lo.Assign(map[int64]string{}, s.UserAnswers),
		Version:     s.Version,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
	}
}

func (m *sittingModel) toDomain() domain.Sitting {
	answers := m.UserAnswers
	if answers == nil {
		answers = map[int64]string{}
	}
	return domain.Sitting{
		ID:          m.ID,
		UserID:      m.UserID,
		Username:    m.Username,
		QuizSlug:    m.QuizSlug,
		QuizTitle:   m.QuizTitle,
		Remaining:   append([]int64{}, m.Remaining...),
		Incorrect:   append([]int64{}, m.Incorrect...),
		Score:       m.Score,
		Complete:    m.Complete,
		UserAnswers: answers,
		Version:     m.Version,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}

// SittingStore persists sittings with bun. The partial unique index on
// (user_id, quiz_slug) WHERE NOT complete backs the one-open-sitting rule.
type SittingStore struct {
	db *bun.DB
}

func NewSittingStore(db *bun.DB) *SittingStore {
	return &SittingStore{db: db}
}

func (s *SittingStore) FindIncomplete(ctx context.Context, userID, quizSlug string) (domain.Sitting, error) {
	var m sittingModel
	err := s.db.NewSelect().
		Model(&m).
		Where("user_id = ?", userID).
		Where("quiz_slug = ?", quizSlug).
		Where("NOT complete").
		OrderExpr("id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sitting{}, domain.ErrSittingNotFound
	}
	if err != nil {
		return domain.Sitting{}, fmt.Errorf("find sitting: %w", err)
	}
	return m.toDomain(), nil
}

func (s *SittingStore) CountCompleted(ctx context.Context, userID, quizSlug string) (int, error) {
	return s.db.NewSelect().
		Model((*sittingModel)(nil)).
		Where("user_id = ?", userID).
		Where("quiz_slug = ?", quizSlug).
		Where("complete").
		Count(ctx)
}

func (s *SittingStore) Create(ctx context.Context, sitting *domain.Sitting) error {
	m := toSittingModel(*sitting)
	m.ID = 0
	m.Version = 1
	_, err := s.db.NewInsert().Model(m).Returning("id").Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSitting
	}
	if err != nil {
		return fmt.Errorf("create sitting: %w", err)
	}
	sitting.ID = m.ID
	sitting.Version = m.Version
	return nil
}

// Save writes the sitting only if the stored version still matches.
func (s *SittingStore) Save(ctx context.Context, sitting *domain.Sitting) error {
	m := toSittingModel(*sitting)
	m.Version = sitting.Version + 1
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Where("version = ?", sitting.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save sitting: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		exists, err := s.db.NewSelect().Model((*sittingModel)(nil)).Where("id = ?", sitting.ID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("save sitting: %w", err)
		}
		if !exists {
			return domain.ErrSittingNotFound
		}
		return domain.ErrConcurrentUpdate
	}
	sitting.Version = m.Version
	return nil
}

func (s *SittingStore) Get(ctx context.Context, id int64) (domain.Sitting, error) {
	var m sittingModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sitting{}, domain.ErrSittingNotFound
	}
	if err != nil {
		return domain.Sitting{}, fmt.Errorf("get sitting: %w", err)
	}
	return m.toDomain(), nil
}

func (s *SittingStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*sittingModel)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *SittingStore) ListCompleted(ctx context.Context, filter domain.SittingFilter) ([]domain.Sitting, error) {
	var models []sittingModel
	q := s.db.NewSelect().Model(&models).Where("complete").OrderExpr("id ASC")
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.QuizTitle != "" {
		q = q.Where("quiz_title ILIKE ?", likePattern(filter.QuizTitle))
	}
	if filter.Username != "" {
		q = q.Where("username ILIKE ?", likePattern(filter.Username))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list sittings: %w", err)
	}
	return lo.Map(models, func(m sittingModel, _ int) domain.Sitting { return m.toDomain() }), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a case-insensitive substring pattern with wildcards escaped.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
