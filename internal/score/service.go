package score

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/victornm/quizgate/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Compute scores an attempt. Every question counts equally; a slot missing
// from answers is treated as unanswered.
func Compute(q domain.Quiz, answers []domain.AnswerSlot) domain.ScoreResult {
	total := len(q.Questions)

	correct := 0
	for i, question := range q.Questions {
		slot := domain.Unanswered()
		if i < len(answers) {
			slot = answers[i]
		}

		if IsCorrect(question, slot) {
			correct++
		}
	}

	return domain.ScoreResult{
		Total:      total,
		Correct:    correct,
		Incorrect:  total - correct,
		Percentage: Percentage(correct, total),
	}
}

// IsCorrect applies the correctness rule for one question: an index
// descriptor must equal the chosen index, a text descriptor must equal the
// chosen option text ignoring case and surrounding whitespace.
func IsCorrect(q domain.Question, slot domain.AnswerSlot) bool {
	chosen, answered := slot.Option()

	switch a := q.CorrectAnswer; a.Kind() {
	case domain.AnswerIndex:
		return answered && chosen == a.Index()
	case domain.AnswerText:
		if !answered || chosen < 0 || chosen >= len(q.Options) {
			return false
		}
		return fold(q.Options[chosen]) == fold(a.Text())
	case domain.AnswerUnknown:
		return false
	default:
		return false
	}
}

// Percentage is correct/total*100, or zero for an empty quiz.
func Percentage(correct, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}

	return decimal.NewFromInt(int64(correct)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(total)), 4)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
