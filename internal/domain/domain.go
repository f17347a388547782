package domain

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// PassPercentage is the minimum percentage counted as a pass.
var PassPercentage = decimal.NewFromInt(50)

// SessionContext carries the caller's identity into every collaborator call.
// The core never reads credentials from anywhere else.
type SessionContext struct {
	Token string
	Email string
}

// Quiz is a normalized quiz, immutable once fetched for an attempt.
type Quiz struct {
	QuizID      string
	Title       string
	Description string
	Questions   []Question
}

type Question struct {
	Text          string
	Options       []string
	CorrectAnswer CorrectAnswer
}

// Presentable reports whether the question has at least one option to choose from.
func (q Question) Presentable() bool {
	return len(q.Options) > 0
}

type AnswerKind int

const (
	// AnswerUnknown is a descriptor of a shape the scoring rule does not recognize.
	AnswerUnknown AnswerKind = iota
	AnswerIndex
	AnswerText
)

func (k AnswerKind) String() string {
	switch k {
	case AnswerIndex:
		return "index"
	case AnswerText:
		return "text"
	default:
		return "unknown"
	}
}

// CorrectAnswer is either a zero-based option index or a literal option text.
type CorrectAnswer struct {
	kind  AnswerKind
	index int
	text  string
}

func IndexAnswer(i int) CorrectAnswer {
	return CorrectAnswer{kind: AnswerIndex, index: i}
}

func TextAnswer(s string) CorrectAnswer {
	return CorrectAnswer{kind: AnswerText, text: s}
}

func UnknownAnswer() CorrectAnswer {
	return CorrectAnswer{}
}

func (a CorrectAnswer) Kind() AnswerKind { return a.kind }

// Index returns the option index when Kind is AnswerIndex.
func (a CorrectAnswer) Index() int { return a.index }

// Text returns the option text when Kind is AnswerText.
func (a CorrectAnswer) Text() string { return a.text }

// AnswerSlot records which option, if any, was selected for one question.
type AnswerSlot struct {
	option   int
	answered bool
}

func Unanswered() AnswerSlot {
	return AnswerSlot{}
}

func Selected(option int) AnswerSlot {
	return AnswerSlot{option: option, answered: true}
}

func (s AnswerSlot) Answered() bool { return s.answered }

// Option returns the selected option index and whether one was selected.
func (s AnswerSlot) Option() (int, bool) { return s.option, s.answered }

// MarshalJSON encodes the slot as the option index or null.
func (s AnswerSlot) MarshalJSON() ([]byte, error) {
	if !s.answered {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(s.option)), nil
}

func (s *AnswerSlot) UnmarshalJSON(b []byte) error {
	var v *int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*s = Unanswered()
		return nil
	}
	*s = Selected(*v)
	return nil
}

// ScoreResult is the immutable outcome of a scored attempt.
type ScoreResult struct {
	Total      int
	Correct    int
	Incorrect  int
	Percentage decimal.Decimal
}

// Passed reports whether correct/total reaches PassPercentage. It compares the
// exact ratio, not the rounded Percentage.
func (r ScoreResult) Passed() bool {
	if r.Total <= 0 {
		return false
	}

	return decimal.NewFromInt(int64(r.Correct)).Mul(decimal.NewFromInt(100)).
		GreaterThanOrEqual(PassPercentage.Mul(decimal.NewFromInt(int64(r.Total))))
}

// Assignment is a quiz assigned to the current student.
type Assignment struct {
	QuizID      string
	Title       string
	Description string
	AssignedBy  string
}

// Viewpoint selects which results collection is being reported.
type Viewpoint int

const (
	ViewpointStudent Viewpoint = iota
	ViewpointTeacher
)

type RowStatus string

const (
	RowPending RowStatus = "Pending"
	RowPassed  RowStatus = "Passed"
	RowFailed  RowStatus = "Failed"
)

// ResultRow is one displayable line of a results listing.
type ResultRow struct {
	ResultID       string
	Label          string
	Status         RowStatus
	PercentageText string
}
