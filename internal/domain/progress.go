package domain

import "fmt"

// CourseScore is a correct/attempted pair for one course.
type CourseScore struct {
	Correct   int `json:"correct"`
	Attempted int `json:"attempted"`
}

// Percent is the rounded success rate, 0 when nothing was attempted.
func (c CourseScore) Percent() int {
	return Percent(c.Correct, c.Attempted)
}

// Progress is a signed-in user's lifetime score ledger keyed by course.
type Progress struct {
	UserID string                 `json:"userId"`
	Scores map[string]CourseScore `json:"scores"`
}

func NewProgress(userID string) Progress {
	return Progress{UserID: userID, Scores: map[string]CourseScore{}}
}

// Update adds the deltas to the course entry, creating it at zero first.
func (p *Progress) Update(course string, correct, attempted int) error {
	if correct < 0 || attempted < 0 {
		return fmt.Errorf("%w: %d/%d", ErrInvalidScore, correct, attempted)
	}
	if p.Scores == nil {
		p.Scores = map[string]CourseScore{}
	}
	entry := p.Scores[course]
	entry.Correct += correct
	entry.Attempted += attempted
	p.Scores[course] = entry
	return nil
}

// Score returns the entry for course, zero when absent.
func (p Progress) Score(course string) CourseScore {
	return p.Scores[course]
}

func (p Progress) PercentFor(course string) int {
	return p.Score(course).Percent()
}
