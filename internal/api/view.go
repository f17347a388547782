package api

import (
	"github.com/victornm/quizgate/internal/domain"
	"github.com/victornm/quizgate/internal/errors"
	"github.com/victornm/quizgate/internal/otp"
	"github.com/victornm/quizgate/internal/session"
)

type (
	AssignmentView struct {
		QuizID      string `json:"quizId"`
		Title       string `json:"title"`
		Description string `json:"description"`
		AssignedBy  string `json:"assignedBy"`
	}

	ResultRowView struct {
		ResultID   string `json:"resultId"`
		Label      string `json:"label"`
		Status     string `json:"status"`
		Percentage string `json:"percentage"`
	}

	AdmissionView struct {
		AdmissionID string        `json:"admissionId"`
		QuizID      string        `json:"quizId"`
		State       string        `json:"state"`
		Error       *errors.Error `json:"error,omitempty"`
	}

	AttemptView struct {
		AttemptID  string              `json:"attemptId"`
		QuizID     string              `json:"quizId"`
		Title      string              `json:"title"`
		Status     string              `json:"status"`
		Index      int                 `json:"index"`
		Total      int                 `json:"total"`
		Current    *QuestionView       `json:"current,omitempty"`
		Answers    []domain.AnswerSlot `json:"answers"`
		Result     *ScoreView          `json:"result,omitempty"`
		Error      *errors.Error       `json:"error,omitempty"`
		Submission *errors.Error       `json:"submissionError,omitempty"`
	}

	// QuestionView never carries the correct answer.
	QuestionView struct {
		Text        string   `json:"text"`
		Options     []string `json:"options"`
		Presentable bool     `json:"presentable"`
	}

	ScoreView struct {
		Total      int    `json:"total"`
		Correct    int    `json:"correct"`
		Incorrect  int    `json:"incorrect"`
		Percentage string `json:"percentage"`
		Passed     bool   `json:"passed"`
	}
)

func admissionView(id string, g *otp.Gate) AdmissionView {
	v := AdmissionView{
		AdmissionID: id,
		State:       g.State().String(),
	}
	if ch, ok := g.Challenge(); ok {
		v.QuizID = ch.QuizID
	}
	if err := g.Err(); err != nil {
		v.Error = errors.Convert(err)
	}

	return v
}

func attemptView(s *session.Session) AttemptView {
	q := s.Quiz()
	v := AttemptView{
		AttemptID: s.ID(),
		QuizID:    s.QuizID(),
		Title:     q.Title,
		Status:    s.Status().String(),
		Index:     s.Index(),
		Total:     len(q.Questions),
		Answers:   s.Answers(),
	}

	if cur, ok := s.Current(); ok {
		v.Current = &QuestionView{Text: cur.Text, Options: cur.Options, Presentable: cur.Presentable()}
	}
	if r, ok := s.Result(); ok {
		v.Result = &ScoreView{
			Total:      r.Total,
			Correct:    r.Correct,
			Incorrect:  r.Incorrect,
			Percentage: r.Percentage.StringFixed(1),
			Passed:     r.Passed(),
		}
	}
	if err := s.Err(); err != nil {
		v.Error = errors.Convert(err)
	}
	if err := s.SubmissionErr(); err != nil {
		v.Submission = errors.Convert(err)
	}

	return v
}
