package app

import (
	"context"

	"github.com/samber/lo"
	"learn-quiz-service/internal/domain"
)

// ProgressService reports a signed-in user's lifetime scores.
type ProgressService struct {
	quizzes  QuizRepository
	progress ProgressRepository
	sittings SittingRepository
}

func NewProgressService(quizzes QuizRepository, progress ProgressRepository, sittings SittingRepository) *ProgressService {
	return &ProgressService{quizzes: quizzes, progress: progress, sittings: sittings}
}

// CourseScore returns the user's score for one course. Courses the catalog
// does not know report domain.ErrCourseNotFound.
func (p *ProgressService) CourseScore(ctx context.Context, visitor domain.Visitor, course string) (domain.CourseReport, error) {
	if !visitor.SignedIn() {
		return domain.CourseReport{}, domain.ErrUnauthenticated
	}
	course = domain.NormalizeCourse(course)
	courses, err := catalogCourses(ctx, p.quizzes)
	if err != nil {
		return domain.CourseReport{}, err
	}
	if !lo.Contains(courses, course) {
		return domain.CourseReport{}, domain.ErrCourseNotFound
	}
	progress, err := p.progress.GetProgress(ctx, visitor.UserID)
	if err != nil {
		return domain.CourseReport{}, err
	}
	return courseReport(course, progress.Score(course)), nil
}

// Report lists every catalog course, untouched ones at zero, and the user's
// completed exam papers.
func (p *ProgressService) Report(ctx context.Context, visitor domain.Visitor) (domain.ProgressReport, error) {
	if !visitor.SignedIn() {
		return domain.ProgressReport{}, domain.ErrUnauthenticated
	}
	courses, err := catalogCourses(ctx, p.quizzes)
	if err != nil {
		return domain.ProgressReport{}, err
	}
	progress, err := p.progress.GetProgress(ctx, visitor.UserID)
	if err != nil {
		return domain.ProgressReport{}, err
	}
	exams, err := p.sittings.ListCompleted(ctx, domain.SittingFilter{UserID: visitor.UserID})
	if err != nil {
		return domain.ProgressReport{}, err
	}
	reports := lo.Map(courses, func(course string, _ int) domain.CourseReport {
		return courseReport(course, progress.Score(course))
	})
	return domain.ProgressReport{UserID: visitor.UserID, Courses: reports, Exams: exams}, nil
}

func courseReport(course string, score domain.CourseScore) domain.CourseReport {
	return domain.CourseReport{
		Course:    course,
		Correct:   score.Correct,
		Attempted: score.Attempted,
		Percent:   score.Percent(),
	}
}
