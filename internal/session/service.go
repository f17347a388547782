package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/victornm/quizgate/internal/domain"
	"github.com/victornm/quizgate/internal/errors"
	"github.com/victornm/quizgate/internal/event"
	"github.com/victornm/quizgate/internal/normalize"
	"github.com/victornm/quizgate/internal/score"
	"github.com/victornm/quizgate/internal/telemetry"
)

type Status int

const (
	StatusLoading Status = iota
	StatusInProgress
	StatusSubmitting
	StatusCompleted
	// StatusCompletedSubmissionFailed is a completed attempt whose best-effort
	// remote submission failed. The local result is still final.
	StatusCompletedSubmissionFailed
	StatusFailed
)

var statusNames = map[Status]string{
	StatusLoading:                   "loading",
	StatusInProgress:                "in_progress",
	StatusSubmitting:                "submitting",
	StatusCompleted:                 "completed",
	StatusCompletedSubmissionFailed: "completed_with_submission_error",
	StatusFailed:                    "failed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

type QuizSource interface {
	FetchQuiz(ctx context.Context, sc domain.SessionContext, quizID string) ([]byte, error)
}

type Submitter interface {
	SubmitAnswers(ctx context.Context, sc domain.SessionContext, quizID string, answers []domain.AnswerSlot) error
}

// Admission is satisfied by a granted OTP gate.
type Admission interface {
	Admits(quizID, email string) bool
}

type Config struct {
	Quizzes   QuizSource
	Submitter Submitter
	// EventBus is optional; attempt.completed is published when set.
	EventBus *event.Bus
}

// Session is one student's attempt at a quiz. It owns its quiz snapshot and
// answer slots and must only be driven by a single flow at a time.
type Session struct {
	id     string
	quizID string
	email  string

	submitter Submitter
	eb        *event.Bus

	status    Status
	quiz      domain.Quiz
	index     int
	answers   []domain.AnswerSlot
	result    domain.ScoreResult
	err       error
	submitErr error
}

// Start constructs an attempt for quizID. The admission must be granted for
// the caller's quiz/email pair, otherwise no session is created. Loading
// happens before Start returns: a quiz that cannot be fetched or normalized
// leaves the session in StatusFailed.
func Start(ctx context.Context, c Config, sc domain.SessionContext, admission Admission, quizID string) (*Session, error) {
	if admission == nil || !admission.Admits(quizID, sc.Email) {
		return nil, errors.New(errors.CodePermissionDenied,
			errors.WithReason(errors.ReasonNotAdmitted),
			errors.WithMessagef("session: quiz %s requires a verified passcode", quizID),
		)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	s := &Session{
		id:        id.String(),
		quizID:    quizID,
		email:     sc.Email,
		submitter: c.Submitter,
		eb:        c.EventBus,
		status:    StatusLoading,
	}

	s.load(ctx, c.Quizzes, sc)
	return s, nil
}

func (s *Session) load(ctx context.Context, quizzes QuizSource, sc domain.SessionContext) {
	b, err := quizzes.FetchQuiz(ctx, sc, s.quizID)
	if err != nil {
		slog.ErrorContext(ctx, "session: fetch quiz failed", "quiz_id", s.quizID, "error", err)
		s.fail(errors.New(errors.CodeUnavailable,
			errors.WithReason(errors.ReasonQuizUnavailable),
			errors.WithMessagef("session: quiz %s could not be fetched", s.quizID),
			errors.WithCause(err),
		))
		return
	}

	q, err := normalize.Quiz(b, s.quizID)
	if err != nil {
		slog.ErrorContext(ctx, "session: normalize quiz failed", "quiz_id", s.quizID, "error", err)
		s.fail(err)
		return
	}

	s.quiz = q
	s.answers = make([]domain.AnswerSlot, len(q.Questions))
	s.status = StatusInProgress
}

func (s *Session) fail(err error) {
	s.status = StatusFailed
	s.err = err
	telemetry.ObserveAttempt(s.status.String())
}

// SelectOption records optionIndex as the answer for questionIndex,
// replacing any earlier selection. It does not move the cursor.
func (s *Session) SelectOption(questionIndex, optionIndex int) error {
	if s.status != StatusInProgress {
		return errors.InvalidState("session: cannot select an option in state %s", s.status)
	}
	if questionIndex < 0 || questionIndex >= len(s.quiz.Questions) {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("session: question %d out of range [0, %d)", questionIndex, len(s.quiz.Questions)))
	}
	if n := len(s.quiz.Questions[questionIndex].Options); optionIndex < 0 || optionIndex >= n {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("session: option %d out of range [0, %d) for question %d", optionIndex, n, questionIndex))
	}

	s.answers[questionIndex] = domain.Selected(optionIndex)
	return nil
}

// Advance moves to the next question. On the last question it scores the
// attempt and completes it; the remote submission is best effort and its
// failure never prevents completion.
func (s *Session) Advance(ctx context.Context, sc domain.SessionContext) error {
	if s.status != StatusInProgress {
		return errors.InvalidState("session: cannot advance in state %s", s.status)
	}

	if s.index < len(s.quiz.Questions)-1 {
		s.index++
		return nil
	}

	s.submit(ctx, sc)
	return nil
}

func (s *Session) submit(ctx context.Context, sc domain.SessionContext) {
	s.status = StatusSubmitting
	s.result = score.Compute(s.quiz, s.answers)

	if err := s.submitter.SubmitAnswers(ctx, sc, s.quizID, s.Answers()); err != nil {
		slog.WarnContext(ctx, "session: submit answers failed, result kept locally",
			"session_id", s.id,
			"quiz_id", s.quizID,
			"error", err,
		)
		s.submitErr = errors.New(errors.CodeUnavailable,
			errors.WithReason(errors.ReasonSubmissionFailed),
			errors.WithCause(err),
		)
		s.status = StatusCompletedSubmissionFailed
	} else {
		s.status = StatusCompleted
	}

	telemetry.ObserveAttempt(s.status.String())
	telemetry.ObservePercentage(s.result.Percentage.InexactFloat64())

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventAttemptCompleted{
			AttemptID:        s.id,
			QuizID:           s.quizID,
			QuizTitle:        s.quiz.Title,
			Email:            s.email,
			Result:           s.result,
			SubmissionFailed: s.submitErr != nil,
		})
	}
}

func (s *Session) ID() string     { return s.id }
func (s *Session) QuizID() string { return s.quizID }
func (s *Session) Email() string  { return s.email }
func (s *Session) Status() Status { return s.status }
func (s *Session) Index() int     { return s.index }

// Quiz returns the normalized quiz snapshot. It is empty for a failed session.
func (s *Session) Quiz() domain.Quiz { return s.quiz }

// Current returns the question under the cursor while the attempt is in progress.
func (s *Session) Current() (domain.Question, bool) {
	if s.status != StatusInProgress || s.index >= len(s.quiz.Questions) {
		return domain.Question{}, false
	}
	return s.quiz.Questions[s.index], true
}

// Answers returns a copy of the answer slots.
func (s *Session) Answers() []domain.AnswerSlot {
	out := make([]domain.AnswerSlot, len(s.answers))
	copy(out, s.answers)
	return out
}

// Completed reports whether the attempt reached a completed state.
func (s *Session) Completed() bool {
	return s.status == StatusCompleted || s.status == StatusCompletedSubmissionFailed
}

// Result returns the score once the attempt is completed.
func (s *Session) Result() (domain.ScoreResult, bool) {
	return s.result, s.Completed()
}

// Err returns the error that moved the session to StatusFailed.
func (s *Session) Err() error { return s.err }

// SubmissionErr returns the swallowed remote submission error, if any.
func (s *Session) SubmissionErr() error { return s.submitErr }
