package domain

// Visitor identifies who is taking or grading a quiz. A visitor without a
// UserID is anonymous and is tracked by SessionKey only.
type Visitor struct {
	UserID     string
	Username   string
	SessionKey string
	Grader     bool
}

// SignedIn reports whether the visitor has an account.
func (v Visitor) SignedIn() bool {
	return v.UserID != ""
}

// AnswerSubmission models a guess for the current question. QuestionID is
// optional; when set it must match the question being asked.
type AnswerSubmission struct {
	QuestionID int64  `json:"questionId"`
	Guess      string `json:"guess"`
}

// QuestionView is a question as shown to a taker, without correctness data.
type QuestionView struct {
	ID      int64        `json:"id"`
	Kind    QuestionKind `json:"kind"`
	Content string       `json:"content"`
	Course  string       `json:"course,omitempty"`
	Choices []Choice     `json:"choices,omitempty"`
}

// NewQuestionView strips grading data from q.
func NewQuestionView(q Question) QuestionView {
	return QuestionView{
		ID:      q.ID,
		Kind:    q.Kind(),
		Content: q.Content,
		Course:  q.Course,
		Choices: q.Choices(),
	}
}

// Step is the current position of an attempt.
type Step struct {
	QuizSlug  string        `json:"quizSlug"`
	SittingID int64         `json:"sittingId,omitempty"`
	Question  *QuestionView `json:"question,omitempty"`
	Answered  int           `json:"answered"`
	Remaining int           `json:"remaining"`
	Score     int           `json:"score"`
	// Result is set when the attempt had no question left and was finished.
	Result    *Result       `json:"result,omitempty"`
}

// Feedback describes the previous answer when a quiz shows answers as it goes.
type Feedback struct {
	QuestionID  int64    `json:"questionId"`
	Guess       string   `json:"guess"`
	Correct     bool     `json:"correct"`
	Explanation string   `json:"explanation,omitempty"`
	Answers     []Answer `json:"answers,omitempty"`
}

// ReviewItem is one question of a finished attempt with what the taker answered.
type ReviewItem struct {
	Question    Question `json:"question"`
	Guess       string   `json:"guess,omitempty"`
	GuessText   string   `json:"guessText,omitempty"`
	Incorrect   bool     `json:"incorrect"`
	Explanation string   `json:"explanation,omitempty"`
}

// Result is the outcome of a finished attempt.
type Result struct {
	QuizSlug        string       `json:"quizSlug"`
	SittingID       int64        `json:"sittingId,omitempty"`
	Score           int          `json:"score"`
	MaxScore        int          `json:"maxScore"`
	Percent         int          `json:"percent"`
	Passed          bool         `json:"passed"`
	Message         string       `json:"message,omitempty"`
	Retained        bool         `json:"retained"`
	Review          []ReviewItem `json:"review,omitempty"`
	SessionScore    int          `json:"sessionScore,omitempty"`
	SessionPossible int          `json:"sessionPossible,omitempty"`
}

// AnswerOutcome is returned after every submitted answer. Exactly one of Next
// and Result is set.
type AnswerOutcome struct {
	Correct  bool      `json:"correct"`
	Feedback *Feedback `json:"feedback,omitempty"`
	Next     *Step     `json:"next,omitempty"`
	Result   *Result   `json:"result,omitempty"`
}

// SittingFilter narrows the grading list by case-insensitive substrings.
type SittingFilter struct {
	QuizTitle string
	Username  string
	UserID    string
}

// CourseReport is one line of a progress report.
type CourseReport struct {
	Course    string `json:"course"`
	Correct   int    `json:"correct"`
	Attempted int    `json:"attempted"`
	Percent   int    `json:"percent"`
}

// ProgressReport lists every catalog course with the user's scores and their retained exam papers.
type ProgressReport struct {
	UserID  string         `json:"userId"`
	Courses []CourseReport `json:"courses"`
	Exams   []Sitting      `json:"exams"`
}
