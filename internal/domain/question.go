package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// QuestionKind discriminates the question variants.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindTrueFalse      QuestionKind = "true_false"
	KindEssay          QuestionKind = "essay"
)

// Answer is a selectable answer shown to the taker after grading.
type Answer struct {
	ID      int64  `json:"id,omitempty" yaml:"id"`
	Content string `json:"content" yaml:"content"`
	Correct bool   `json:"correct" yaml:"correct"`
}

// Choice is a (value, label) pair a form offers for a question.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Variant is the closed set of question behaviours. Only MultipleChoice,
// TrueFalse and Essay implement it.
type Variant interface {
	Kind() QuestionKind
	CheckIfCorrect(guess string) bool
	Answers() []Answer
	Choices() []Choice
	AnswerToString(guess string) string
	variant()
}

// MultipleChoice grades a guess holding the ID of one of its answers.
type MultipleChoice struct {
	Options []Answer
}

func (MultipleChoice) Kind() QuestionKind { return KindMultipleChoice }
func (MultipleChoice) variant()           {}

func (m MultipleChoice) CheckIfCorrect(guess string) bool {
	answer, ok := m.lookup(guess)
	return ok && answer.Correct
}

func (m MultipleChoice) Answers() []Answer {
	out := make([]Answer, len(m.Options))
	copy(out, m.Options)
	return out
}

func (m MultipleChoice) Choices() []Choice {
	out := make([]Choice, 0, len(m.Options))
	for _, a := range m.Options {
		out = append(out, Choice{Value: strconv.FormatInt(a.ID, 10), Label: a.Content})
	}
	return out
}

func (m MultipleChoice) AnswerToString(guess string) string {
	if answer, ok := m.lookup(guess); ok {
		return answer.Content
	}
	return guess
}

func (m MultipleChoice) lookup(guess string) (Answer, bool) {
	id, err := strconv.ParseInt(guess, 10, 64)
	if err != nil {
		return Answer{}, false
	}
	for _, a := range m.Options {
		if a.ID == id {
			return a, true
		}
	}
	return Answer{}, false
}

// TrueFalse grades the literal guesses "True" and "False".
type TrueFalse struct {
	Correct bool
}

func (TrueFalse) Kind() QuestionKind { return KindTrueFalse }
func (TrueFalse) variant()           {}

func (t TrueFalse) CheckIfCorrect(guess string) bool {
	switch guess {
	case "True":
		return t.Correct
	case "False":
		return !t.Correct
	default:
		return false
	}
}

func (t TrueFalse) Answers() []Answer {
	return []Answer{
		{Content: "True", Correct: t.CheckIfCorrect("True")},
		{Content: "False", Correct: t.CheckIfCorrect("False")},
	}
}

func (TrueFalse) Choices() []Choice {
	return []Choice{{Value: "True", Label: "True"}, {Value: "False", Label: "False"}}
}

func (TrueFalse) AnswerToString(guess string) string { return guess }

// Essay is never auto-graded; every guess reports incorrect until a grader toggles it.
type Essay struct{}

func (Essay) Kind() QuestionKind                 { return KindEssay }
func (Essay) variant()                           {}
func (Essay) CheckIfCorrect(string) bool         { return false }
func (Essay) Answers() []Answer                  { return nil }
func (Essay) Choices() []Choice                  { return nil }
func (Essay) AnswerToString(guess string) string { return guess }

// Question is a catalog question with its variant-specific grading.
type Question struct {
	ID          int64
	Content     string
	Explanation string
	Course      string
	Variant     Variant
}

// Kind reports the variant kind, defaulting to essay for a question without a variant.
func (q Question) Kind() QuestionKind {
	if q.Variant == nil {
		return KindEssay
	}
	return q.Variant.Kind()
}

func (q Question) CheckIfCorrect(guess string) bool {
	if q.Variant == nil {
		return false
	}
	return q.Variant.CheckIfCorrect(guess)
}

func (q Question) Answers() []Answer {
	if q.Variant == nil {
		return nil
	}
	return q.Variant.Answers()
}

func (q Question) Choices() []Choice {
	if q.Variant == nil {
		return nil
	}
	return q.Variant.Choices()
}

func (q Question) AnswerToString(guess string) string {
	if q.Variant == nil {
		return guess
	}
	return q.Variant.AnswerToString(guess)
}

// questionDoc is the wire and storage form of a Question.
type questionDoc struct {
	ID          int64        `json:"id" yaml:"id"`
	Kind        QuestionKind `json:"kind" yaml:"kind"`
	Content     string       `json:"content" yaml:"content"`
	Explanation string       `json:"explanation,omitempty" yaml:"explanation"`
	Course      string       `json:"course,omitempty" yaml:"course"`
	Answers     []Answer     `json:"answers,omitempty" yaml:"answers"`
	Correct     *bool        `json:"correct,omitempty" yaml:"correct"`
}

func (q Question) toDoc() questionDoc {
	doc := questionDoc{
		ID:          q.ID,
		Kind:        q.Kind(),
		Content:     q.Content,
		Explanation: q.Explanation,
		Course:      q.Course,
	}
	switch v := q.Variant.(type) {
	case MultipleChoice:
		doc.Answers = v.Options
	case TrueFalse:
		correct := v.Correct
		doc.Correct = &correct
	}
	return doc
}

func (d questionDoc) toQuestion() (Question, error) {
	q := Question{
		ID:          d.ID,
		Content:     d.Content,
		Explanation: d.Explanation,
		Course:      NormalizeCourse(d.Course),
	}
	switch d.Kind {
	case KindMultipleChoice:
		q.Variant = MultipleChoice{Options: d.Answers}
	case KindTrueFalse:
		q.Variant = TrueFalse{Correct: d.Correct != nil && *d.Correct}
	case KindEssay, "":
		q.Variant = Essay{}
	default:
		return Question{}, fmt.Errorf("%w: unknown question kind %q", ErrInvalidQuiz, d.Kind)
	}
	return q, nil
}

func (q Question) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.toDoc())
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var doc questionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	decoded, err := doc.toQuestion()
	if err != nil {
		return err
	}
	*q = decoded
	return nil
}

func (q Question) MarshalYAML() (interface{}, error) {
	return q.toDoc(), nil
}

func (q *Question) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var doc questionDoc
	if err := unmarshal(&doc); err != nil {
		return err
	}
	decoded, err := doc.toQuestion()
	if err != nil {
		return err
	}
	*q = decoded
	return nil
}
