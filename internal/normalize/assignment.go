package normalize

import (
	"github.com/mitchellh/mapstructure"

	"github.com/victornm/quizgate/internal/domain"
	"github.com/victornm/quizgate/internal/errors"
)

const defaultAssigner = "Teacher"

type rawAssignment struct {
	Quiz *struct {
		ID          string `mapstructure:"_id"`
		Title       string `mapstructure:"title"`
		Description string `mapstructure:"description"`
	} `mapstructure:"quiz"`

	Teacher *struct {
		FullName string `mapstructure:"fullName"`
		Email    string `mapstructure:"email"`
	} `mapstructure:"teacher"`
}

// Assignments normalizes the assigned-quizzes listing, which is either a bare
// array or an object holding it under "assignedQuizzes". Items without a quiz
// are dropped since they cannot be started.
func Assignments(payload []byte) ([]domain.Assignment, error) {
	v, err := Decode(payload)
	if err != nil {
		return nil, errors.New(errors.CodeDataLoss,
			errors.WithMessagef("assigned quizzes: payload is not JSON"),
			errors.WithCause(err),
		)
	}

	items, ok := Sequence(v, "assignedQuizzes")
	if !ok {
		return nil, errors.New(errors.CodeDataLoss, errors.WithMessagef("assigned quizzes: missing list"))
	}

	out := make([]domain.Assignment, 0, len(items))
	for _, it := range items {
		var ra rawAssignment
		d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &ra,
		})
		if err != nil {
			return nil, errors.Internal(err)
		}
		if err := d.Decode(it); err != nil {
			return nil, errors.New(errors.CodeDataLoss,
				errors.WithMessagef("assigned quizzes: decode item"),
				errors.WithCause(err),
			)
		}

		if ra.Quiz == nil || ra.Quiz.ID == "" {
			continue
		}

		a := domain.Assignment{
			QuizID:      ra.Quiz.ID,
			Title:       ra.Quiz.Title,
			Description: ra.Quiz.Description,
			AssignedBy:  defaultAssigner,
		}
		if t := ra.Teacher; t != nil {
			switch {
			case t.FullName != "":
				a.AssignedBy = t.FullName
			case t.Email != "":
				a.AssignedBy = t.Email
			}
		}
		out = append(out, a)
	}

	return out, nil
}
