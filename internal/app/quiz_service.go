package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"learn-quiz-service/internal/domain"
	"learn-quiz-service/internal/metrics"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, slug string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
}

// SittingRepository persists signed-in sittings. Implementations must refuse a
// second incomplete sitting for the same user and quiz with
// domain.ErrDuplicateSitting, and must reject a Save whose Version is stale
// with domain.ErrConcurrentUpdate.
type SittingRepository interface {
	FindIncomplete(ctx context.Context, userID, quizSlug string) (domain.Sitting, error)
	CountCompleted(ctx context.Context, userID, quizSlug string) (int, error)
	Create(ctx context.Context, sitting *domain.Sitting) error
	Save(ctx context.Context, sitting *domain.Sitting) error
	Get(ctx context.Context, id int64) (domain.Sitting, error)
	Delete(ctx context.Context, id int64) error
	ListCompleted(ctx context.Context, filter domain.SittingFilter) ([]domain.Sitting, error)
}

// ProgressRepository persists one progress ledger per user. GetProgress
// returns an empty ledger for users that have none yet.
type ProgressRepository interface {
	GetProgress(ctx context.Context, userID string) (domain.Progress, error)
	SaveProgress(ctx context.Context, progress domain.Progress) error
}

// AnonSessionStore holds anonymous attempt state keyed by the visitor's
// session key. Entries expire with the session.
type AnonSessionStore interface {
	LoadSitting(ctx context.Context, sessionKey, quizSlug string) (domain.AnonSitting, bool, error)
	SaveSitting(ctx context.Context, sessionKey string, sitting domain.AnonSitting) error
	DeleteSitting(ctx context.Context, sessionKey, quizSlug string) error
	LoadTally(ctx context.Context, sessionKey string) (domain.AnonTally, error)
	SaveTally(ctx context.Context, sessionKey string, tally domain.AnonTally) error
}

// Option customises a QuizService.
type Option func(*QuizService)

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *QuizService) { s.log = log }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithRand is used by tests for a deterministic question order.
func WithRand(rnd *rand.Rand) Option {
	return func(s *QuizService) { s.rnd = rnd }
}

// QuizService contains the quiz taking use cases for signed-in and anonymous visitors.
type QuizService struct {
	quizzes  QuizRepository
	sittings SittingRepository
	progress ProgressRepository
	anon     AnonSessionStore
	log      *zap.Logger
	now      func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizService(quizzes QuizRepository, sittings SittingRepository, progress ProgressRepository, anon AnonSessionStore, opts ...Option) *QuizService {
	s := &QuizService{
		quizzes:  quizzes,
		sittings: sittings,
		progress: progress,
		anon:     anon,
		log:      zap.NewNop(),
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListQuizzes returns the catalog, optionally narrowed to one course.
func (s *QuizService) ListQuizzes(ctx context.Context, course string) ([]domain.Quiz, error) {
	quizzes, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	if course == "" {
		return quizzes, nil
	}
	course = domain.NormalizeCourse(course)
	return lo.Filter(quizzes, func(q domain.Quiz, _ int) bool { return q.Course == course }), nil
}

// Quiz returns one quiz by slug.
func (s *QuizService) Quiz(ctx context.Context, slug string) (domain.Quiz, error) {
	return s.quizzes.GetQuiz(ctx, slug)
}

// Courses lists every course referenced by the catalog, sorted.
func (s *QuizService) Courses(ctx context.Context) ([]string, error) {
	return catalogCourses(ctx, s.quizzes)
}

// Take resumes the visitor's attempt at a quiz, creating one if needed, and
// returns the question to answer next. An attempt with no question left is
// finished on the spot and the step carries its result.
func (s *QuizService) Take(ctx context.Context, visitor domain.Visitor, slug string) (domain.Step, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, slug)
	if err != nil {
		return domain.Step{}, err
	}
	if !visitor.SignedIn() {
		sitting, err := s.anonSitting(ctx, visitor, quiz)
		if err != nil {
			return domain.Step{}, err
		}
		step, err := anonStep(quiz, sitting)
		if err != nil {
			return domain.Step{}, err
		}
		if _, more := sitting.NextQuestion(); !more {
			result, err := s.finishAnon(ctx, visitor, quiz, sitting)
			if err != nil {
				return domain.Step{}, err
			}
			if tally, err := s.anon.LoadTally(ctx, visitor.SessionKey); err == nil {
				result.SessionScore = tally.Score
				result.SessionPossible = tally.Possible
			}
			step.Result = &result
		}
		return step, nil
	}

	sitting, err := s.userSitting(ctx, visitor, quiz)
	if err != nil {
		return domain.Step{}, err
	}
	step, err := sittingStep(quiz, sitting)
	if err != nil {
		return domain.Step{}, err
	}
	if _, more := sitting.NextQuestion(); !more {
		result, err := s.finishSitting(ctx, quiz, &sitting)
		if err != nil {
			return domain.Step{}, err
		}
		step.Result = &result
	}
	return step, nil
}

// Answer grades the submission against the current question, advances the
// attempt and finishes it when no question remains. Answering an attempt that
// is already exhausted only finishes it.
func (s *QuizService) Answer(ctx context.Context, visitor domain.Visitor, slug string, submission domain.AnswerSubmission) (domain.AnswerOutcome, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, slug)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	if !visitor.SignedIn() {
		return s.answerAnon(ctx, visitor, quiz, submission)
	}
	return s.answerUser(ctx, visitor, quiz, submission)
}

// userSitting applies the get-or-create policy for signed-in users.
func (s *QuizService) userSitting(ctx context.Context, visitor domain.Visitor, quiz domain.Quiz) (domain.Sitting, error) {
	if quiz.SingleAttempt {
		completed, err := s.sittings.CountCompleted(ctx, visitor.UserID, quiz.Slug)
		if err != nil {
			return domain.Sitting{}, err
		}
		if completed > 0 {
			metrics.AttemptsRefusedTotal.WithLabelValues("already_attempted").Inc()
			return domain.Sitting{}, domain.ErrAlreadyAttempted
		}
	}

	sitting, err := s.sittings.FindIncomplete(ctx, visitor.UserID, quiz.Slug)
	if err == nil {
		return sitting, nil
	}
	if !errors.Is(err, domain.ErrSittingNotFound) {
		return domain.Sitting{}, err
	}

	s.mu.Lock()
	sitting = domain.NewSitting(visitor.UserID, visitor.Username, quiz, s.rnd, s.now())
	s.mu.Unlock()

	if err := s.sittings.Create(ctx, &sitting); err != nil {
		if errors.Is(err, domain.ErrDuplicateSitting) {
			// Another request created it first; resume that one.
			return s.sittings.FindIncomplete(ctx, visitor.UserID, quiz.Slug)
		}
		return domain.Sitting{}, err
	}
	metrics.SittingsStartedTotal.WithLabelValues(metrics.FlowUser).Inc()
	s.log.Info("sitting started",
		zap.Int64("sitting_id", sitting.ID),
		zap.String("user_id", visitor.UserID),
		zap.String("quiz", quiz.Slug),
		zap.Int("questions", len(sitting.Remaining)),
	)
	return sitting, nil
}

func (s *QuizService) answerUser(ctx context.Context, visitor domain.Visitor, quiz domain.Quiz, submission domain.AnswerSubmission) (domain.AnswerOutcome, error) {
	sitting, err := s.userSitting(ctx, visitor, quiz)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	head, ok := sitting.NextQuestion()
	if !ok {
		result, err := s.finishSitting(ctx, quiz, &sitting)
		if err != nil {
			return domain.AnswerOutcome{}, err
		}
		return domain.AnswerOutcome{Result: &result}, nil
	}
	question, err := currentQuestion(quiz, head, submission)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}

	correct := sitting.RecordAnswer(question, submission.Guess)
	sitting.Advance()
	metrics.AnswersTotal.WithLabelValues(metrics.FlowUser, metrics.Outcome(correct)).Inc()

	outcome := domain.AnswerOutcome{Correct: correct, Feedback: feedback(quiz, question, submission.Guess, correct)}

	if _, more := sitting.NextQuestion(); more {
		if err := s.sittings.Save(ctx, &sitting); err != nil {
			return domain.AnswerOutcome{}, fmt.Errorf("save sitting %d: %w", sitting.ID, err)
		}
		step, err := sittingStep(quiz, sitting)
		if err != nil {
			return domain.AnswerOutcome{}, err
		}
		outcome.Next = &step
	} else {
		result, err := s.finishSitting(ctx, quiz, &sitting)
		if err != nil {
			return domain.AnswerOutcome{}, err
		}
		outcome.Result = &result
	}

	// The answer is committed with the sitting; a ledger failure must not
	// hide the outcome from the taker.
	if err := s.recordProgress(ctx, visitor.UserID, question.Course, correct); err != nil {
		s.log.Error("progress not recorded",
			zap.String("user_id", visitor.UserID),
			zap.String("course", question.Course),
			zap.Error(err),
		)
	}
	return outcome, nil
}

// finishSitting marks the sitting complete and builds the result. Sittings of
// quizzes that are not exam papers are deleted once the result is built.
func (s *QuizService) finishSitting(ctx context.Context, quiz domain.Quiz, sitting *domain.Sitting) (domain.Result, error) {
	passed := sitting.Passed(quiz)
	result := domain.Result{
		QuizSlug: quiz.Slug,
		Score:    sitting.Score,
		MaxScore: quiz.MaxScore(),
		Percent:  sitting.PercentCorrect(quiz.MaxScore()),
		Passed:   passed,
		Message:  quiz.ResultMessage(passed),
		Retained: quiz.ExamPaper,
	}
	if quiz.AnswersAtEnd {
		result.Review = ReviewSitting(quiz, *sitting)
	}

	sitting.MarkComplete(s.now())
	if err := s.sittings.Save(ctx, sitting); err != nil {
		return domain.Result{}, fmt.Errorf("complete sitting %d: %w", sitting.ID, err)
	}
	if quiz.ExamPaper {
		result.SittingID = sitting.ID
	} else if err := s.sittings.Delete(ctx, sitting.ID); err != nil {
		return domain.Result{}, fmt.Errorf("delete sitting %d: %w", sitting.ID, err)
	}

	metrics.SittingsCompletedTotal.WithLabelValues(metrics.FlowUser, metrics.Result(passed)).Inc()
	s.log.Info("sitting completed",
		zap.Int64("sitting_id", sitting.ID),
		zap.String("user_id", sitting.UserID),
		zap.String("quiz", quiz.Slug),
		zap.Int("score", result.Score),
		zap.Int("percent", result.Percent),
		zap.Bool("passed", passed),
		zap.Bool("retained", quiz.ExamPaper),
	)
	return result, nil
}

func (s *QuizService) recordProgress(ctx context.Context, userID, course string, correct bool) error {
	progress, err := s.progress.GetProgress(ctx, userID)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	if err := progress.Update(course, lo.Ternary(correct, 1, 0), 1); err != nil {
		return err
	}
	if err := s.progress.SaveProgress(ctx, progress); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// currentQuestion resolves the head of an attempt and checks the submission targets it.
func currentQuestion(quiz domain.Quiz, head int64, submission domain.AnswerSubmission) (domain.Question, error) {
	if submission.QuestionID != 0 && submission.QuestionID != head {
		return domain.Question{}, fmt.Errorf("%w: got %d, expected %d", domain.ErrStaleQuestion, submission.QuestionID, head)
	}
	question, ok := quiz.Question(head)
	if !ok {
		return domain.Question{}, fmt.Errorf("%w: %d in quiz %s", domain.ErrQuestionNotFound, head, quiz.Slug)
	}
	return question, nil
}

// feedback is nil for quizzes that hold answers back until the end.
func feedback(quiz domain.Quiz, question domain.Question, guess string, correct bool) *domain.Feedback {
	if quiz.AnswersAtEnd {
		return nil
	}
	return &domain.Feedback{
		QuestionID:  question.ID,
		Guess:       guess,
		Correct:     correct,
		Explanation: question.Explanation,
		Answers:     question.Answers(),
	}
}

func sittingStep(quiz domain.Quiz, sitting domain.Sitting) (domain.Step, error) {
	step := domain.Step{
		QuizSlug:  quiz.Slug,
		SittingID: sitting.ID,
		Remaining: len(sitting.Remaining),
		Answered:  quiz.MaxScore() - len(sitting.Remaining),
		Score:     sitting.Score,
	}
	return withQuestion(step, quiz, sitting.NextQuestion)
}

func anonStep(quiz domain.Quiz, sitting domain.AnonSitting) (domain.Step, error) {
	step := domain.Step{
		QuizSlug:  quiz.Slug,
		Remaining: len(sitting.Remaining),
		Answered:  quiz.MaxScore() - len(sitting.Remaining),
		Score:     sitting.Score,
	}
	return withQuestion(step, quiz, sitting.NextQuestion)
}

func withQuestion(step domain.Step, quiz domain.Quiz, next func() (int64, bool)) (domain.Step, error) {
	head, ok := next()
	if !ok {
		return step, nil
	}
	question, ok := quiz.Question(head)
	if !ok {
		return domain.Step{}, fmt.Errorf("%w: %d in quiz %s", domain.ErrQuestionNotFound, head, quiz.Slug)
	}
	view := domain.NewQuestionView(question)
	step.Question = &view
	return step, nil
}

// ReviewSitting pairs every quiz question with the taker's answer.
func ReviewSitting(quiz domain.Quiz, sitting domain.Sitting) []domain.ReviewItem {
	items := make([]domain.ReviewItem, 0, len(quiz.Questions))
	for _, question := range quiz.Questions {
		guess := sitting.UserAnswers[question.ID]
		items = append(items, domain.ReviewItem{
			Question:    question,
			Guess:       guess,
			GuessText:   question.AnswerToString(guess),
			Incorrect:   sitting.IsIncorrect(question.ID),
			Explanation: question.Explanation,
		})
	}
	return items
}

func catalogCourses(ctx context.Context, quizzes QuizRepository) ([]string, error) {
	all, err := quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	courses := lo.Uniq(lo.FlatMap(all, func(q domain.Quiz, _ int) []string { return q.Courses() }))
	sort.Strings(courses)
	return courses, nil
}
