package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizgate/internal/domain"
)

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	AttemptCompleted struct {
		AttemptID        string `json:"attemptId"`
		QuizID           string `json:"quizId"`
		QuizTitle        string `json:"quizTitle"`
		Student          string `json:"student"`
		Total            int    `json:"total"`
		Correct          int    `json:"correct"`
		Percentage       string `json:"percentage"`
		Passed           bool   `json:"passed"`
		SubmissionFailed bool   `json:"submissionFailed"`
	}
)

// PublishAttemptCompleted notifies the student who took the attempt and
// anyone watching the quiz.
func (a *API) PublishAttemptCompleted(ctx context.Context, e domain.EventAttemptCompleted) error {
	data := AttemptCompleted{
		AttemptID:        e.AttemptID,
		QuizID:           e.QuizID,
		QuizTitle:        e.QuizTitle,
		Student:          e.Email,
		Total:            e.Result.Total,
		Correct:          e.Result.Correct,
		Percentage:       e.Result.Percentage.StringFixed(1),
		Passed:           e.Result.Passed(),
		SubmissionFailed: e.SubmissionFailed,
	}

	channels := []string{
		a.channel("user", e.Email),
		a.channel("quiz", e.QuizID),
	}

	var eg errgroup.Group
	for _, ch := range channels {
		ch := ch
		eg.Go(func() error {
			return a.publishNotification(ctx, ch, e.Name(), data)
		})
	}

	return eg.Wait()
}

func (a *API) channel(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", a.prefix, kind, id)
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}
