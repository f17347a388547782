package domain

const (
	EventNameAdmissionGranted = "admission.granted"
	EventNameAttemptCompleted = "attempt.completed"
)

type EventAdmissionGranted struct {
	QuizID string
	Email  string
}

func (EventAdmissionGranted) Name() string { return EventNameAdmissionGranted }

// EventAttemptCompleted is published once an attempt reaches a completed state.
// SubmissionFailed is true when the best-effort remote submission did not go through.
type EventAttemptCompleted struct {
	AttemptID        string
	QuizID           string
	QuizTitle        string
	Email            string
	Result           ScoreResult
	SubmissionFailed bool
}

func (EventAttemptCompleted) Name() string { return EventNameAttemptCompleted }
