package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizgate/internal/domain"
	"github.com/victornm/quizgate/internal/errors"
	"github.com/victornm/quizgate/internal/normalize"
)

func TestQuiz(t *testing.T) {
	tests := map[string]struct {
		payload string
		assert  func(t *testing.T, q domain.Quiz, err error)
	}{
		"wrapped payload with preferred field names": {
			payload: `{"quiz":{"_id":"abc","title":"Capitals","description":"Europe","questions":[
				{"text":"France?","options":["Rome","Paris"],"correctAnswer":"Paris"}
			]}}`,
			assert: func(t *testing.T, q domain.Quiz, err error) {
				require.NoError(t, err)
				assert.Equal(t, domain.Quiz{
					QuizID:      "abc",
					Title:       "Capitals",
					Description: "Europe",
					Questions: []domain.Question{
						{Text: "France?", Options: []string{"Rome", "Paris"}, CorrectAnswer: domain.TextAnswer("Paris")},
					},
				}, q)
			},
		},
		"bare payload with alternate field names": {
			payload: `{"title":"Maths","questions":[
				{"questionText":"2+2?","answerOptions":["3","4"],"correctAnswer":1}
			]}`,
			assert: func(t *testing.T, q domain.Quiz, err error) {
				require.NoError(t, err)
				assert.Equal(t, "q1", q.QuizID, "falls back to the requested id")
				assert.Equal(t, []domain.Question{
					{Text: "2+2?", Options: []string{"3", "4"}, CorrectAnswer: domain.IndexAnswer(1)},
				}, q.Questions)
			},
		},
		"preferred field wins over alternate": {
			payload: `{"questions":[{"text":"A","questionText":"B","options":["x"],"answerOptions":["y"]}]}`,
			assert: func(t *testing.T, q domain.Quiz, err error) {
				require.NoError(t, err)
				assert.Equal(t, "A", q.Questions[0].Text)
				assert.Equal(t, []string{"x"}, q.Questions[0].Options)
			},
		},
		"empty preferred text falls through to alternate": {
			payload: `{"questions":[{"text":"","questionText":"B"}]}`,
			assert: func(t *testing.T, q domain.Quiz, err error) {
				require.NoError(t, err)
				assert.Equal(t, "B", q.Questions[0].Text)
			},
		},
		"missing text and options default to empty": {
			payload: `{"questions":[{"correctAnswer":0}]}`,
			assert: func(t *testing.T, q domain.Quiz, err error) {
				require.NoError(t, err)
				require.Len(t, q.Questions, 1)
				assert.Equal(t, "", q.Questions[0].Text)
				assert.Equal(t, []string{}, q.Questions[0].Options)
				assert.False(t, q.Questions[0].Presentable())
			},
		},
		"correct answer type is preserved": {
			payload: `{"questions":[
				{"options":["a"],"correctAnswer":"1"},
				{"options":["a"],"correctAnswer":2.0},
				{"options":["a"],"correctAnswer":1.5},
				{"options":["a"],"correctAnswer":true},
				{"options":["a"]}
			]}`,
			assert: func(t *testing.T, q domain.Quiz, err error) {
				require.NoError(t, err)
				assert.Equal(t, domain.TextAnswer("1"), q.Questions[0].CorrectAnswer)
				assert.Equal(t, domain.IndexAnswer(2), q.Questions[1].CorrectAnswer)
				assert.Equal(t, domain.AnswerUnknown, q.Questions[2].CorrectAnswer.Kind())
				assert.Equal(t, domain.AnswerUnknown, q.Questions[3].CorrectAnswer.Kind())
				assert.Equal(t, domain.AnswerUnknown, q.Questions[4].CorrectAnswer.Kind())
			},
		},
		"null wrapper falls back to the bare payload": {
			payload: `{"quiz":null,"id":"xyz","questions":[]}`,
			assert: func(t *testing.T, q domain.Quiz, err error) {
				require.NoError(t, err)
				assert.Equal(t, "xyz", q.QuizID)
				assert.Empty(t, q.Questions)
			},
		},
		"non-string options are rendered as text": {
			payload: `{"questions":[{"text":"pick","options":[1,2.5,null]}]}`,
			assert: func(t *testing.T, q domain.Quiz, err error) {
				require.NoError(t, err)
				assert.Equal(t, []string{"1", "2.5", ""}, q.Questions[0].Options)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			q, err := normalize.Quiz([]byte(tt.payload), "q1")
			tt.assert(t, q, err)
		})
	}
}

func TestQuiz_Malformed(t *testing.T) {
	payloads := map[string]string{
		"missing questions":          `{"title":"x"}`,
		"wrapped missing questions":  `{"quiz":{"title":"x"}}`,
		"questions is an object":     `{"questions":{"a":1}}`,
		"questions is a string":      `{"questions":"[]"}`,
		"questions is null":          `{"questions":null}`,
		"payload is an array":        `[{"text":"a"}]`,
		"payload is not JSON":        `<html>`,
		"wrapped quiz is not object": `{"quiz":"abc","questions":[]}`,
		"question is not an object":  `{"questions":["what?"]}`,
	}

	for name, p := range payloads {
		p := p
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			q, err := normalize.Quiz([]byte(p), "q1")
			require.Error(t, err)
			assert.True(t, errors.HasReason(err, errors.ReasonMalformedQuizPayload), "got %v", err)
			assert.Equal(t, domain.Quiz{}, q, "no partial quiz")
		})
	}
}

func TestQuestion_FieldNameIndependence(t *testing.T) {
	cases := []struct {
		text    string
		options []any
	}{
		{"What is 2+2?", []any{"3", "4"}},
		{"Capital of France", []any{"Paris"}},
		{" spaced ", []any{"", " a "}},
	}

	for _, c := range cases {
		preferred, err := normalize.Question(map[string]any{"text": c.text, "options": c.options})
		require.NoError(t, err)
		alternate, err := normalize.Question(map[string]any{"questionText": c.text, "answerOptions": c.options})
		require.NoError(t, err)

		assert.Equal(t, preferred.Text, alternate.Text)
		assert.Equal(t, preferred.Options, alternate.Options)
	}
}

func TestAssignments(t *testing.T) {
	want := []domain.Assignment{
		{QuizID: "q1", Title: "Capitals", Description: "Europe", AssignedBy: "Ms Smith"},
		{QuizID: "q2", Title: "Maths", AssignedBy: "t@example.com"},
		{QuizID: "q3", Title: "History", AssignedBy: "Teacher"},
	}
	items := `[
		{"quiz":{"_id":"q1","title":"Capitals","description":"Europe"},"teacher":{"fullName":"Ms Smith","email":"s@example.com"}},
		{"quiz":{"_id":"q2","title":"Maths"},"teacher":{"email":"t@example.com"}},
		{"quiz":{"_id":"q3","title":"History"}},
		{"teacher":{"fullName":"orphan"}}
	]`

	bare, err := normalize.Assignments([]byte(items))
	require.NoError(t, err)
	assert.Equal(t, want, bare)

	wrapped, err := normalize.Assignments([]byte(`{"assignedQuizzes":` + items + `}`))
	require.NoError(t, err)
	assert.Equal(t, want, wrapped)

	_, err = normalize.Assignments([]byte(`{"assigned":[]}`))
	assert.Equal(t, errors.CodeDataLoss, errors.Convert(err).Code)
}
