package domain

import (
	"math"
	"math/rand"
	"time"

	"github.com/samber/lo"
)

// SittingState is the lifecycle position of a sitting.
type SittingState string

const (
	StateInProgress SittingState = "in_progress"
	StateCompleted  SittingState = "completed"
)

// Sitting tracks one signed-in user's attempt at one quiz.
//
// Remaining only ever shrinks from the front and is never reordered after
// creation. Complete only moves from false to true. Version is bumped by the
// store on every save and guards against lost updates.
type Sitting struct {
	ID          int64            `json:"id"`
	UserID      string           `json:"userId"`
	Username    string           `json:"username"`
	QuizSlug    string           `json:"quizSlug"`
	QuizTitle   string           `json:"quizTitle"`
	Remaining   []int64          `json:"remaining"`
	Incorrect   []int64          `json:"incorrect"`
	Score       int              `json:"score"`
	Complete    bool             `json:"complete"`
	UserAnswers map[int64]string `json:"userAnswers"`
	Version     int              `json:"version"`
	StartedAt   time.Time        `json:"startedAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// NewSitting builds a fresh sitting over the full question set. The order is
// shuffled with rnd when the quiz asks for random order.
func NewSitting(userID, username string, quiz Quiz, rnd *rand.Rand, now time.Time) Sitting {
	ids := quiz.QuestionIDs()
	if quiz.RandomOrder {
		Shuffle(ids, rnd)
	}
	return Sitting{
		UserID:      userID,
		Username:    username,
		QuizSlug:    quiz.Slug,
		QuizTitle:   quiz.Title,
		Remaining:   ids,
		Incorrect:   []int64{},
		UserAnswers: map[int64]string{},
		StartedAt:   now,
	}
}

// Shuffle permutes ids in place.
func Shuffle(ids []int64, rnd *rand.Rand) {
	shuffle := rand.Shuffle
	if rnd != nil {
		shuffle = rnd.Shuffle
	}
	shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// State reports where the sitting is in its lifecycle.
func (s *Sitting) State() SittingState {
	if s.Complete {
		return StateCompleted
	}
	return StateInProgress
}

// NextQuestion returns the head of the remaining sequence without consuming it.
func (s *Sitting) NextQuestion() (int64, bool) {
	if len(s.Remaining) == 0 {
		return 0, false
	}
	return s.Remaining[0], true
}

// Advance consumes exactly one question. It is a no-op on an empty sequence.
func (s *Sitting) Advance() {
	if len(s.Remaining) == 0 {
		return
	}
	s.Remaining = s.Remaining[1:]
}

// RecordAnswer grades guess against q, adjusts the score and stores the guess.
// It reports whether the guess was correct.
func (s *Sitting) RecordAnswer(q Question, guess string) bool {
	correct := q.CheckIfCorrect(guess)
	if correct {
		s.Score++
	} else {
		s.addIncorrect(q.ID)
	}
	if s.UserAnswers == nil {
		s.UserAnswers = map[int64]string{}
	}
	s.UserAnswers[q.ID] = guess
	return correct
}

// ToggleIncorrect flips a question's correctness during grading.
func (s *Sitting) ToggleIncorrect(questionID int64) {
	if s.removeIncorrect(questionID) {
		s.Score++
		return
	}
	s.addIncorrect(questionID)
}

// IsIncorrect reports whether the question is in the incorrect set.
func (s *Sitting) IsIncorrect(questionID int64) bool {
	return lo.Contains(s.Incorrect, questionID)
}

// addIncorrect inserts into the incorrect set. A completed sitting loses a
// point for every question newly marked incorrect.
func (s *Sitting) addIncorrect(questionID int64) {
	if s.IsIncorrect(questionID) {
		return
	}
	s.Incorrect = append(s.Incorrect, questionID)
	if s.Complete {
		s.Score--
	}
}

func (s *Sitting) removeIncorrect(questionID int64) bool {
	for i, id := range s.Incorrect {
		if id == questionID {
			s.Incorrect = append(s.Incorrect[:i:i], s.Incorrect[i+1:]...)
			return true
		}
	}
	return false
}

// PercentCorrect is the rounded score percentage of total, clamped to [0, 100].
func (s *Sitting) PercentCorrect(total int) int {
	return Percent(s.Score, total)
}

// Passed compares the percentage against the quiz pass mark.
func (s *Sitting) Passed(quiz Quiz) bool {
	return s.PercentCorrect(quiz.MaxScore()) >= quiz.PassMark
}

// MarkComplete is the one-way transition to completed.
func (s *Sitting) MarkComplete(now time.Time) {
	if s.Complete {
		return
	}
	s.Complete = true
	s.CompletedAt = &now
}

// Percent returns round(part/total*100) clamped to [0, 100]; 0 when total is 0.
func Percent(part, total int) int {
	if total < 1 {
		return 0
	}
	if part > total {
		return 100
	}
	pct := int(math.Round(float64(part) / float64(total) * 100))
	if pct < 0 {
		return 0
	}
	return pct
}

// AnonSitting is the session-scoped state of an anonymous attempt. It has no
// identity, no incorrect set and no grading.
type AnonSitting struct {
	QuizSlug  string  `json:"quizSlug"`
	Remaining []int64 `json:"remaining"`
	Score     int     `json:"score"`
}

// NewAnonSitting mirrors NewSitting for visitors without an account.
func NewAnonSitting(quiz Quiz, rnd *rand.Rand) AnonSitting {
	ids := quiz.QuestionIDs()
	if quiz.RandomOrder {
		Shuffle(ids, rnd)
	}
	return AnonSitting{QuizSlug: quiz.Slug, Remaining: ids}
}

func (a *AnonSitting) NextQuestion() (int64, bool) {
	if len(a.Remaining) == 0 {
		return 0, false
	}
	return a.Remaining[0], true
}

func (a *AnonSitting) Advance() {
	if len(a.Remaining) == 0 {
		return
	}
	a.Remaining = a.Remaining[1:]
}

// AnonTally is a visitor's running score across every quiz taken in the session.
type AnonTally struct {
	Score    int `json:"score"`
	Possible int `json:"possible"`
}

// Add accumulates a graded answer; nothing changes unless possible is positive.
func (t *AnonTally) Add(score, possible int) {
	if possible <= 0 {
		return
	}
	t.Score += score
	t.Possible += possible
}
