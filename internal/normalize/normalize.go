// Package normalize maps the upstream quiz API's loosely shaped payloads into
// the canonical domain types.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"

	"github.com/victornm/quizgate/internal/domain"
	"github.com/victornm/quizgate/internal/errors"
)

type rawQuiz struct {
	ID          any `mapstructure:"_id"`
	AltID       any `mapstructure:"id"`
	Title       any `mapstructure:"title"`
	Description any `mapstructure:"description"`
}

// rawQuestion accepts both field-naming conventions the backend has used.
type rawQuestion struct {
	Text          any `mapstructure:"text"`
	QuestionText  any `mapstructure:"questionText"`
	Options       any `mapstructure:"options"`
	AnswerOptions any `mapstructure:"answerOptions"`
	CorrectAnswer any `mapstructure:"correctAnswer"`
}

// Quiz normalizes a quiz payload, bare or wrapped as {"quiz": {...}}.
// quizID is used when the payload carries no identifier of its own.
func Quiz(payload []byte, quizID string) (domain.Quiz, error) {
	v, err := Decode(payload)
	if err != nil {
		return domain.Quiz{}, errors.New(errors.CodeDataLoss,
			errors.WithReason(errors.ReasonMalformedQuizPayload),
			errors.WithMessagef("quiz %s: payload is not JSON", quizID),
			errors.WithCause(err),
		)
	}

	root, ok := v.(map[string]any)
	if !ok {
		return domain.Quiz{}, errors.MalformedQuizPayload("quiz %s: payload is not an object", quizID)
	}

	if wrapped := root["quiz"]; truthy(wrapped) {
		root, ok = wrapped.(map[string]any)
		if !ok {
			return domain.Quiz{}, errors.MalformedQuizPayload("quiz %s: wrapped quiz is not an object", quizID)
		}
	}

	rawQuestions, ok := root["questions"].([]any)
	if !ok {
		return domain.Quiz{}, errors.MalformedQuizPayload("quiz %s: missing questions array", quizID)
	}

	var meta rawQuiz
	if err := mapstructure.Decode(root, &meta); err != nil {
		return domain.Quiz{}, errors.New(errors.CodeDataLoss,
			errors.WithReason(errors.ReasonMalformedQuizPayload),
			errors.WithMessagef("quiz %s: decode metadata", quizID),
			errors.WithCause(err),
		)
	}

	q := domain.Quiz{
		QuizID:      firstText(quizID, meta.ID, meta.AltID),
		Title:       firstText("", meta.Title),
		Description: firstText("", meta.Description),
		Questions:   make([]domain.Question, 0, len(rawQuestions)),
	}

	for i, rq := range rawQuestions {
		m, ok := rq.(map[string]any)
		if !ok {
			return domain.Quiz{}, errors.MalformedQuizPayload("quiz %s: question %d is not an object", quizID, i)
		}

		question, err := Question(m)
		if err != nil {
			return domain.Quiz{}, errors.New(errors.CodeDataLoss,
				errors.WithReason(errors.ReasonMalformedQuizPayload),
				errors.WithMessagef("quiz %s: question %d", quizID, i),
				errors.WithCause(err),
			)
		}
		q.Questions = append(q.Questions, question)
	}

	return q, nil
}

// Question maps one raw question record. The preferred field wins over the
// alternate one; the correct answer keeps its original type.
func Question(m map[string]any) (domain.Question, error) {
	var rq rawQuestion
	if err := mapstructure.Decode(m, &rq); err != nil {
		return domain.Question{}, fmt.Errorf("decode question: %w", err)
	}

	return domain.Question{
		Text:          firstText("", rq.Text, rq.QuestionText),
		Options:       firstOptions(rq.Options, rq.AnswerOptions),
		CorrectAnswer: correctAnswer(rq.CorrectAnswer),
	}, nil
}

// Decode parses JSON keeping numbers as json.Number so integer indexes survive.
func Decode(payload []byte) (any, error) {
	d := json.NewDecoder(bytes.NewReader(payload))
	d.UseNumber()

	var v any
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Sequence returns v itself when it is an array, or the first array found
// under one of fields when v is an object.
func Sequence(v any, fields ...string) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case map[string]any:
		for _, f := range fields {
			if s, ok := t[f].([]any); ok {
				return s, true
			}
		}
	}
	return nil, false
}

func correctAnswer(v any) domain.CorrectAnswer {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return domain.IndexAnswer(int(i))
		}
		if f, err := t.Float64(); err == nil && f == math.Trunc(f) {
			return domain.IndexAnswer(int(f))
		}
		return domain.UnknownAnswer()
	case float64:
		if t == math.Trunc(t) {
			return domain.IndexAnswer(int(t))
		}
		return domain.UnknownAnswer()
	case int:
		return domain.IndexAnswer(t)
	case string:
		return domain.TextAnswer(t)
	default:
		return domain.UnknownAnswer()
	}
}

func firstOptions(candidates ...any) []string {
	for _, c := range candidates {
		s, ok := c.([]any)
		if !ok {
			continue
		}

		out := make([]string, 0, len(s))
		for _, o := range s {
			out = append(out, text(o))
		}
		return out
	}
	return []string{}
}

// firstText returns the first truthy candidate as text, or def.
func firstText(def string, candidates ...any) string {
	for _, c := range candidates {
		if truthy(c) {
			return text(c)
		}
	}
	return def
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// truthy treats absent, null, false, zero and empty strings as missing.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0 && !math.IsNaN(t)
	default:
		return true
	}
}
