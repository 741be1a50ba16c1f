package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantsGrade(t *testing.T) {
	mc := Question{ID: 1, Variant: MultipleChoice{Options: []Answer{
		{ID: 4, Content: "four", Correct: true},
		{ID: 5, Content: "five"},
	}}}
	assert.True(t, mc.CheckIfCorrect("4"))
	assert.False(t, mc.CheckIfCorrect("5"))
	assert.False(t, mc.CheckIfCorrect("99"))
	assert.False(t, mc.CheckIfCorrect("four"))
	assert.Equal(t, "four", mc.AnswerToString("4"))
	assert.Equal(t, []Choice{{Value: "4", Label: "four"}, {Value: "5", Label: "five"}}, mc.Choices())

	tf := Question{ID: 2, Variant: TrueFalse{Correct: false}}
	assert.True(t, tf.CheckIfCorrect("False"))
	assert.False(t, tf.CheckIfCorrect("True"))
	assert.False(t, tf.CheckIfCorrect("false"))
	assert.Equal(t, []Answer{{Content: "True"}, {Content: "False", Correct: true}}, tf.Answers())

	essay := Question{ID: 3, Variant: Essay{}}
	assert.False(t, essay.CheckIfCorrect("a thoughtful answer"))
	assert.Nil(t, essay.Answers())
	assert.Nil(t, essay.Choices())
}

func TestQuestionJSONKeepsVariant(t *testing.T) {
	in := []Question{
		{ID: 1, Content: "mc", Course: "math", Variant: MultipleChoice{Options: []Answer{{ID: 1, Content: "a", Correct: true}}}},
		{ID: 2, Content: "tf", Variant: TrueFalse{Correct: true}},
		{ID: 3, Content: "essay", Variant: Essay{}},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out []Question
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestQuestionJSONRejectsUnknownKind(t *testing.T) {
	var q Question
	err := json.Unmarshal([]byte(`{"id":1,"kind":"matching"}`), &q)
	assert.ErrorIs(t, err, ErrInvalidQuiz)
}

func TestQuizNormalizeAndValidate(t *testing.T) {
	quiz := Quiz{
		Slug:          "My First  Quiz!",
		Title:         "First",
		Course:        "Intro Math",
		SingleAttempt: true,
		PassMark:      100,
		Questions:     []Question{{ID: 1, Variant: Essay{}}},
	}
	quiz.Normalize()
	assert.Equal(t, "my-first-quiz", quiz.Slug)
	assert.Equal(t, "intro-math", quiz.Course)
	assert.True(t, quiz.ExamPaper)
	assert.Equal(t, "intro-math", quiz.Questions[0].Course)
	require.NoError(t, quiz.Validate())

	quiz.PassMark = 101
	assert.ErrorIs(t, quiz.Validate(), ErrInvalidPassMark)

	quiz.PassMark = 50
	quiz.Questions = append(quiz.Questions, Question{ID: 1})
	assert.ErrorIs(t, quiz.Validate(), ErrInvalidQuiz)
}

func TestProgressAggregator(t *testing.T) {
	p := NewProgress("u1")
	require.NoError(t, p.Update("math", 1, 1))
	require.NoError(t, p.Update("math", 0, 1))
	assert.Equal(t, 50, p.PercentFor("math"))
	assert.Equal(t, CourseScore{Correct: 1, Attempted: 2}, p.Score("math"))
	assert.Equal(t, 0, p.PercentFor("history"))
	assert.ErrorIs(t, p.Update("math", -1, 1), ErrInvalidScore)
}
