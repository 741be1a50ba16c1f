package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question ID is not part of the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrCourseNotFound is returned for score lookups on a course the catalog does not know.
	ErrCourseNotFound = errors.New("course does not exist")
	// ErrSittingNotFound is returned when no sitting matches the lookup.
	ErrSittingNotFound = errors.New("sitting not found")
	// ErrSittingNotComplete is returned when grading is attempted on an unfinished sitting.
	ErrSittingNotComplete = errors.New("sitting is not complete")
	// ErrDuplicateSitting is returned when a second incomplete sitting would be created for the same user and quiz.
	ErrDuplicateSitting = errors.New("incomplete sitting already exists")
	// ErrConcurrentUpdate is returned when a sitting was modified by another request since it was loaded.
	ErrConcurrentUpdate = errors.New("sitting was modified concurrently")
	// ErrStaleQuestion is returned when an answer names a question other than the current one.
	ErrStaleQuestion = errors.New("answer does not match the current question")

	// ErrAttemptRefused is the umbrella condition for attempts that policy does not allow.
	ErrAttemptRefused = errors.New("attempt refused")
	// ErrAlreadyAttempted refuses a repeat attempt on a single-attempt quiz.
	ErrAlreadyAttempted = fmt.Errorf("%w: quiz already attempted", ErrAttemptRefused)
	// ErrAnonymousSingleAttempt refuses anonymous visitors on single-attempt quizzes.
	ErrAnonymousSingleAttempt = fmt.Errorf("%w: single attempt quizzes require sign in", ErrAttemptRefused)

	// ErrInvalidPassMark is a validation failure for pass marks outside 0..100.
	ErrInvalidPassMark = errors.New("invalid pass mark")
	// ErrInvalidQuiz is a validation failure for malformed quiz definitions.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrInvalidScore is returned for negative progress deltas.
	ErrInvalidScore = errors.New("invalid score")

	// ErrUnauthenticated is returned when an operation needs a signed-in user.
	ErrUnauthenticated = errors.New("sign in required")
	// ErrForbidden is returned when the visitor lacks the grader permission.
	ErrForbidden = errors.New("permission denied")
)
