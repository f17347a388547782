package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"

	"github.com/victornm/quizgate/internal/domain"
	"github.com/victornm/quizgate/internal/errors"
	"github.com/victornm/quizgate/internal/normalize"
)

const (
	placeholderPercentage = "--"
	defaultQuizLabel      = "Quiz"
	defaultStudentLabel   = "Student"
)

// wrapperFields are the object keys a results listing may be wrapped under.
var wrapperFields = []string{"studentResults", "results"}

type ResultSource interface {
	QuizResults(ctx context.Context, sc domain.SessionContext, quizID string) ([]byte, error)
	MyResults(ctx context.Context, sc domain.SessionContext) ([]byte, error)
}

type Config struct {
	Results ResultSource
}

type Service struct {
	results ResultSource
}

func NewService(c Config) *Service {
	return &Service{
		results: c.Results,
	}
}

type ListResultsRequest struct {
	Viewpoint domain.Viewpoint
	// QuizID is required for the teacher viewpoint.
	QuizID string
}

// ListResults fetches a results collection for the requested viewpoint and
// projects it into display rows.
func (s *Service) ListResults(ctx context.Context, sc domain.SessionContext, req ListResultsRequest) ([]domain.ResultRow, error) {
	var (
		b   []byte
		err error
	)

	switch req.Viewpoint {
	case domain.ViewpointTeacher:
		if req.QuizID == "" {
			return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("report: quiz id is required for the teacher view"))
		}
		b, err = s.results.QuizResults(ctx, sc, req.QuizID)
	default:
		b, err = s.results.MyResults(ctx, sc)
	}
	if err != nil {
		slog.ErrorContext(ctx, "report: fetch results failed", "quiz_id", req.QuizID, "error", err)
		return nil, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("report: failed to load results"),
			errors.WithCause(err),
		)
	}

	return Rows(b, req.Viewpoint)
}

type rawResult struct {
	ID         any `mapstructure:"_id"`
	Percentage any `mapstructure:"percentage"`

	Quiz *struct {
		Title string `mapstructure:"title"`
	} `mapstructure:"quiz"`

	Student *struct {
		FullName string `mapstructure:"fullName"`
		Email    string `mapstructure:"email"`
	} `mapstructure:"student"`
}

// Rows projects a results payload into display rows. The payload may be a
// bare array or an object wrapping it; null yields no rows. Any record that
// cannot be projected fails the whole listing rather than shortening it.
func Rows(payload []byte, v domain.Viewpoint) ([]domain.ResultRow, error) {
	raw, err := normalize.Decode(payload)
	if err != nil {
		return nil, errors.New(errors.CodeDataLoss,
			errors.WithMessagef("report: results payload is not JSON"),
			errors.WithCause(err),
		)
	}
	if raw == nil {
		return []domain.ResultRow{}, nil
	}

	items, ok := normalize.Sequence(raw, wrapperFields...)
	if !ok {
		return nil, errors.New(errors.CodeDataLoss, errors.WithMessagef("report: results payload has no list"))
	}

	rows := make([]domain.ResultRow, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, errors.New(errors.CodeDataLoss,
				errors.WithMessagef("report: result %d is not an object", i),
			)
		}

		row, err := projectRow(m, v)
		if err != nil {
			return nil, errors.New(errors.CodeDataLoss,
				errors.WithMessagef("report: result %d", i),
				errors.WithCause(err),
			)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func projectRow(m map[string]any, v domain.Viewpoint) (domain.ResultRow, error) {
	var rr rawResult
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rr,
	})
	if err != nil {
		return domain.ResultRow{}, err
	}
	if err := d.Decode(m); err != nil {
		return domain.ResultRow{}, fmt.Errorf("decode result: %w", err)
	}

	row := domain.ResultRow{
		ResultID: idText(rr.ID),
		Label:    label(rr, v),
	}

	p, ok := percentage(rr.Percentage)
	row.Status = Status(p, ok)
	row.PercentageText = FormatPercentage(p, ok)

	return row, nil
}

func label(rr rawResult, v domain.Viewpoint) string {
	if v == domain.ViewpointTeacher {
		switch {
		case rr.Student != nil && rr.Student.FullName != "":
			return rr.Student.FullName
		case rr.Student != nil && rr.Student.Email != "":
			return rr.Student.Email
		default:
			return defaultStudentLabel
		}
	}

	if rr.Quiz != nil && rr.Quiz.Title != "" {
		return rr.Quiz.Title
	}
	return defaultQuizLabel
}

// Status derives the row status; a missing percentage means the attempt is
// not graded yet.
func Status(p decimal.Decimal, present bool) domain.RowStatus {
	switch {
	case !present:
		return domain.RowPending
	case p.GreaterThanOrEqual(domain.PassPercentage):
		return domain.RowPassed
	default:
		return domain.RowFailed
	}
}

// FormatPercentage renders one decimal place, or a placeholder when absent.
func FormatPercentage(p decimal.Decimal, present bool) string {
	if !present {
		return placeholderPercentage
	}
	return p.StringFixed(1) + "%"
}

func percentage(v any) (decimal.Decimal, bool) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = t
	case float64:
		return decimal.NewFromFloat(t), true
	default:
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func idText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
