package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"learn-quiz-service/internal/domain"
	"learn-quiz-service/internal/metrics"
)

// MarkedSitting is a completed sitting as a grader sees it.
type MarkedSitting struct {
	Sitting  domain.Sitting      `json:"sitting"`
	MaxScore int                 `json:"maxScore"`
	Percent  int                 `json:"percent"`
	Passed   bool                `json:"passed"`
	Review   []domain.ReviewItem `json:"review"`
}

// MarkingService backs the grading workflow over retained exam papers.
type MarkingService struct {
	quizzes  QuizRepository
	sittings SittingRepository
	log      *zap.Logger
}

func NewMarkingService(quizzes QuizRepository, sittings SittingRepository, log *zap.Logger) *MarkingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MarkingService{quizzes: quizzes, sittings: sittings, log: log}
}

// List returns completed sittings matching the filter.
func (m *MarkingService) List(ctx context.Context, visitor domain.Visitor, filter domain.SittingFilter) ([]domain.Sitting, error) {
	if !visitor.Grader {
		return nil, domain.ErrForbidden
	}
	return m.sittings.ListCompleted(ctx, filter)
}

// Detail returns one completed sitting with its per-question breakdown.
func (m *MarkingService) Detail(ctx context.Context, visitor domain.Visitor, id int64) (MarkedSitting, error) {
	if !visitor.Grader {
		return MarkedSitting{}, domain.ErrForbidden
	}
	sitting, err := m.sittings.Get(ctx, id)
	if err != nil {
		return MarkedSitting{}, err
	}
	if !sitting.Complete {
		return MarkedSitting{}, domain.ErrSittingNotComplete
	}
	return m.mark(ctx, sitting)
}

// Toggle flips the correctness of one question on a completed sitting and
// persists the adjusted score.
func (m *MarkingService) Toggle(ctx context.Context, visitor domain.Visitor, id, questionID int64) (MarkedSitting, error) {
	if !visitor.Grader {
		return MarkedSitting{}, domain.ErrForbidden
	}
	sitting, err := m.sittings.Get(ctx, id)
	if err != nil {
		return MarkedSitting{}, err
	}
	if !sitting.Complete {
		return MarkedSitting{}, domain.ErrSittingNotComplete
	}
	quiz, err := m.quizzes.GetQuiz(ctx, sitting.QuizSlug)
	if err != nil {
		return MarkedSitting{}, err
	}
	if _, ok := quiz.Question(questionID); !ok {
		return MarkedSitting{}, fmt.Errorf("%w: %d in quiz %s", domain.ErrQuestionNotFound, questionID, quiz.Slug)
	}

	sitting.ToggleIncorrect(questionID)
	if err := m.sittings.Save(ctx, &sitting); err != nil {
		return MarkedSitting{}, fmt.Errorf("save sitting %d: %w", sitting.ID, err)
	}
	metrics.GradingTogglesTotal.Inc()
	m.log.Info("question toggled",
		zap.Int64("sitting_id", sitting.ID),
		zap.Int64("question_id", questionID),
		zap.Bool("incorrect", sitting.IsIncorrect(questionID)),
		zap.Int("score", sitting.Score),
		zap.String("grader", visitor.UserID),
	)
	return markedFromQuiz(quiz, sitting), nil
}

func (m *MarkingService) mark(ctx context.Context, sitting domain.Sitting) (MarkedSitting, error) {
	quiz, err := m.quizzes.GetQuiz(ctx, sitting.QuizSlug)
	if err != nil {
		return MarkedSitting{}, err
	}
	return markedFromQuiz(quiz, sitting), nil
}

func markedFromQuiz(quiz domain.Quiz, sitting domain.Sitting) MarkedSitting {
	return MarkedSitting{
		Sitting:  sitting,
		MaxScore: quiz.MaxScore(),
		Percent:  sitting.PercentCorrect(quiz.MaxScore()),
		Passed:   sitting.Passed(quiz),
		Review:   ReviewSitting(quiz, sitting),
	}
}
