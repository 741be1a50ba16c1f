package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeCourse turns a course name into its canonical form: whitespace runs
// become dashes and the result is lowercased.
func NormalizeCourse(name string) string {
	return strings.ToLower(whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "-"))
}

// NormalizeSlug lowercases a slug, replaces whitespace with dashes and drops
// everything that is not a letter, digit or dash.
func NormalizeSlug(slug string) string {
	slug = NormalizeCourse(slug)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return -1
	}, slug)
}

// Quiz is an ordered question set with its sitting policies.
type Quiz struct {
	Slug          string     `json:"slug" yaml:"slug"`
	Title         string     `json:"title" yaml:"title"`
	Description   string     `json:"description,omitempty" yaml:"description"`
	Course        string     `json:"course" yaml:"course"`
	RandomOrder   bool       `json:"randomOrder" yaml:"random_order"`
	AnswersAtEnd  bool       `json:"answersAtEnd" yaml:"answers_at_end"`
	ExamPaper     bool       `json:"examPaper" yaml:"exam_paper"`
	SingleAttempt bool       `json:"singleAttempt" yaml:"single_attempt"`
	PassMark      int        `json:"passMark" yaml:"pass_mark"`
	SuccessText   string     `json:"successText,omitempty" yaml:"success_text"`
	FailText      string     `json:"failText,omitempty" yaml:"fail_text"`
	Questions     []Question `json:"questions" yaml:"questions"`
}

// Normalize applies the save-time rewrites: canonical slug and course, and
// single-attempt quizzes always keep their sittings as exam papers.
func (q *Quiz) Normalize() {
	q.Slug = NormalizeSlug(q.Slug)
	q.Course = NormalizeCourse(q.Course)
	if q.SingleAttempt {
		q.ExamPaper = true
	}
	for i := range q.Questions {
		q.Questions[i].Course = NormalizeCourse(q.Questions[i].Course)
		if q.Questions[i].Course == "" {
			q.Questions[i].Course = q.Course
		}
	}
}

// Validate rejects definitions that cannot be saved.
func (q Quiz) Validate() error {
	if q.PassMark > 100 {
		return fmt.Errorf("%w: %d is above 100", ErrInvalidPassMark, q.PassMark)
	}
	if q.PassMark < 0 {
		return fmt.Errorf("%w: %d is below 0", ErrInvalidPassMark, q.PassMark)
	}
	if q.Slug == "" {
		return fmt.Errorf("%w: slug is required", ErrInvalidQuiz)
	}
	if q.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidQuiz)
	}
	seen := make(map[int64]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %d", ErrInvalidQuiz, question.ID)
		}
		seen[question.ID] = struct{}{}
	}
	return nil
}

// MaxScore is the number of questions, one point each.
func (q Quiz) MaxScore() int {
	return len(q.Questions)
}

// QuestionIDs returns the question IDs in definition order.
func (q Quiz) QuestionIDs() []int64 {
	ids := make([]int64, 0, len(q.Questions))
	for _, question := range q.Questions {
		ids = append(ids, question.ID)
	}
	return ids
}

// Question looks up a question by ID.
func (q Quiz) Question(id int64) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// ResultMessage picks the success or fail text.
func (q Quiz) ResultMessage(passed bool) string {
	if passed {
		return q.SuccessText
	}
	return q.FailText
}

// Courses returns the distinct courses referenced by the quiz and its questions.
func (q Quiz) Courses() []string {
	courses := append([]string{q.Course}, lo.Map(q.Questions, func(question Question, _ int) string {
		return question.Course
	})...)
	return lo.Uniq(lo.Compact(courses))
}
