package app

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"learn-quiz-service/internal/domain"
	"learn-quiz-service/internal/metrics"
)

// anonSitting loads or starts session-scoped state for a visitor without an
// account. Single-attempt quizzes cannot be enforced without identity, so
// they are refused outright.
func (s *QuizService) anonSitting(ctx context.Context, visitor domain.Visitor, quiz domain.Quiz) (domain.AnonSitting, error) {
	if quiz.SingleAttempt {
		metrics.AttemptsRefusedTotal.WithLabelValues("anonymous_single_attempt").Inc()
		return domain.AnonSitting{}, domain.ErrAnonymousSingleAttempt
	}
	if visitor.SessionKey == "" {
		return domain.AnonSitting{}, fmt.Errorf("%w: missing session key", domain.ErrUnauthenticated)
	}

	sitting, found, err := s.anon.LoadSitting(ctx, visitor.SessionKey, quiz.Slug)
	if err != nil {
		return domain.AnonSitting{}, fmt.Errorf("load anonymous sitting: %w", err)
	}
	if found {
		return sitting, nil
	}

	s.mu.Lock()
	sitting = domain.NewAnonSitting(quiz, s.rnd)
	s.mu.Unlock()

	if err := s.anon.SaveSitting(ctx, visitor.SessionKey, sitting); err != nil {
		return domain.AnonSitting{}, fmt.Errorf("save anonymous sitting: %w", err)
	}
	metrics.SittingsStartedTotal.WithLabelValues(metrics.FlowAnonymous).Inc()
	s.log.Debug("anonymous sitting started", zap.String("quiz", quiz.Slug), zap.Int("questions", len(sitting.Remaining)))
	return sitting, nil
}

func (s *QuizService) answerAnon(ctx context.Context, visitor domain.Visitor, quiz domain.Quiz, submission domain.AnswerSubmission) (domain.AnswerOutcome, error) {
	sitting, err := s.anonSitting(ctx, visitor, quiz)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	head, ok := sitting.NextQuestion()
	if !ok {
		result, err := s.finishAnon(ctx, visitor, quiz, sitting)
		if err != nil {
			return domain.AnswerOutcome{}, err
		}
		return domain.AnswerOutcome{Result: &result}, nil
	}
	question, err := currentQuestion(quiz, head, submission)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}

	correct := question.CheckIfCorrect(submission.Guess)
	if correct {
		sitting.Score++
	}
	sitting.Advance()

	outcome := domain.AnswerOutcome{Correct: correct, Feedback: feedback(quiz, question, submission.Guess, correct)}

	// The sitting is written first so a failed write leaves the tally untouched
	// for the retry.
	if _, more := sitting.NextQuestion(); more {
		if err := s.anon.SaveSitting(ctx, visitor.SessionKey, sitting); err != nil {
			return domain.AnswerOutcome{}, fmt.Errorf("save anonymous sitting: %w", err)
		}
		metrics.AnswersTotal.WithLabelValues(metrics.FlowAnonymous, metrics.Outcome(correct)).Inc()
		s.countAnswer(ctx, visitor, correct)
		step, err := anonStep(quiz, sitting)
		if err != nil {
			return domain.AnswerOutcome{}, err
		}
		outcome.Next = &step
		return outcome, nil
	}

	result, err := s.finishAnon(ctx, visitor, quiz, sitting)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	metrics.AnswersTotal.WithLabelValues(metrics.FlowAnonymous, metrics.Outcome(correct)).Inc()
	tally := s.countAnswer(ctx, visitor, correct)
	result.SessionScore = tally.Score
	result.SessionPossible = tally.Possible
	outcome.Result = &result
	return outcome, nil
}

// finishAnon clears the visitor's state for quiz and builds the result.
// Anonymous attempts are never retained.
func (s *QuizService) finishAnon(ctx context.Context, visitor domain.Visitor, quiz domain.Quiz, sitting domain.AnonSitting) (domain.Result, error) {
	if err := s.anon.DeleteSitting(ctx, visitor.SessionKey, quiz.Slug); err != nil {
		return domain.Result{}, fmt.Errorf("delete anonymous sitting: %w", err)
	}

	percent := domain.Percent(sitting.Score, quiz.MaxScore())
	passed := percent >= quiz.PassMark
	result := domain.Result{
		QuizSlug: quiz.Slug,
		Score:    sitting.Score,
		MaxScore: quiz.MaxScore(),
		Percent:  percent,
		Passed:   passed,
		Message:  quiz.ResultMessage(passed),
	}
	if quiz.AnswersAtEnd {
		result.Review = lo.Map(quiz.Questions, func(q domain.Question, _ int) domain.ReviewItem {
			return domain.ReviewItem{Question: q, Explanation: q.Explanation}
		})
	}
	metrics.SittingsCompletedTotal.WithLabelValues(metrics.FlowAnonymous, metrics.Result(passed)).Inc()
	return result, nil
}

// countAnswer adds one answer to the visitor's running tally. The answer is
// already committed, so tally failures are logged rather than returned.
func (s *QuizService) countAnswer(ctx context.Context, visitor domain.Visitor, correct bool) domain.AnonTally {
	tally, err := s.anon.LoadTally(ctx, visitor.SessionKey)
	if err != nil {
		s.log.Warn("session tally unavailable", zap.String("quiz_session", visitor.SessionKey), zap.Error(err))
		return domain.AnonTally{}
	}
	tally.Add(lo.Ternary(correct, 1, 0), 1)
	if err := s.anon.SaveTally(ctx, visitor.SessionKey, tally); err != nil {
		s.log.Warn("session tally not saved", zap.String("quiz_session", visitor.SessionKey), zap.Error(err))
	}
	return tally
}

// SessionTally returns the anonymous visitor's running score across quizzes.
func (s *QuizService) SessionTally(ctx context.Context, visitor domain.Visitor) (domain.AnonTally, error) {
	if visitor.SessionKey == "" {
		return domain.AnonTally{}, nil
	}
	return s.anon.LoadTally(ctx, visitor.SessionKey)
}
