package report_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizgate/internal/domain"
	qerrors "github.com/victornm/quizgate/internal/errors"
	"github.com/victornm/quizgate/internal/report"
)

func TestRows(t *testing.T) {
	tests := map[string]struct {
		payload   string
		viewpoint domain.Viewpoint
		assert    func(t *testing.T, rows []domain.ResultRow, err error)
	}{
		"student viewpoint wrapped under studentResults": {
			payload: `{"studentResults":[
				{"_id":"r1","quiz":{"title":"Capitals"},"percentage":80},
				{"_id":"r2","quiz":{"title":"Maths"},"percentage":49.95},
				{"_id":"r3","quiz":{"title":"History"}}
			]}`,
			viewpoint: domain.ViewpointStudent,
			assert: func(t *testing.T, rows []domain.ResultRow, err error) {
				require.NoError(t, err)
				require.Equal(t, []domain.ResultRow{
					{ResultID: "r1", Label: "Capitals", Status: domain.RowPassed, PercentageText: "80.0%"},
					{ResultID: "r2", Label: "Maths", Status: domain.RowFailed, PercentageText: "50.0%"},
					{ResultID: "r3", Label: "History", Status: domain.RowPending, PercentageText: "--"},
				}, rows)
			},
		},
		"student viewpoint bare array matches wrapped": {
			payload: `[
				{"_id":"r1","quiz":{"title":"Capitals"},"percentage":80},
				{"_id":"r2","quiz":{"title":"Maths"},"percentage":49.95},
				{"_id":"r3","quiz":{"title":"History"}}
			]`,
			viewpoint: domain.ViewpointStudent,
			assert: func(t *testing.T, rows []domain.ResultRow, err error) {
				require.NoError(t, err)
				require.Len(t, rows, 3)
				assert.Equal(t, "Capitals", rows[0].Label)
				assert.Equal(t, domain.RowPending, rows[2].Status)
			},
		},
		"student viewpoint falls back to a generic label": {
			payload:   `[{"_id":"r1","percentage":50}]`,
			viewpoint: domain.ViewpointStudent,
			assert: func(t *testing.T, rows []domain.ResultRow, err error) {
				require.NoError(t, err)
				assert.Equal(t, []domain.ResultRow{
					{ResultID: "r1", Label: "Quiz", Status: domain.RowPassed, PercentageText: "50.0%"},
				}, rows)
			},
		},
		"teacher viewpoint labels by respondent": {
			payload: `[
				{"_id":"r1","student":{"fullName":"Ada Lovelace","email":"ada@example.com"},"percentage":100},
				{"_id":"r2","student":{"email":"bob@example.com"},"percentage":"12.34"},
				{"_id":"r3","student":null,"percentage":null}
			]`,
			viewpoint: domain.ViewpointTeacher,
			assert: func(t *testing.T, rows []domain.ResultRow, err error) {
				require.NoError(t, err)
				assert.Equal(t, []domain.ResultRow{
					{ResultID: "r1", Label: "Ada Lovelace", Status: domain.RowPassed, PercentageText: "100.0%"},
					{ResultID: "r2", Label: "bob@example.com", Status: domain.RowFailed, PercentageText: "12.3%"},
					{ResultID: "r3", Label: "Student", Status: domain.RowPending, PercentageText: "--"},
				}, rows)
			},
		},
		"teacher viewpoint wrapped under results": {
			payload:   `{"results":[{"_id":"r1","student":{"fullName":"Ada"},"percentage":0}]}`,
			viewpoint: domain.ViewpointTeacher,
			assert: func(t *testing.T, rows []domain.ResultRow, err error) {
				require.NoError(t, err)
				assert.Equal(t, []domain.ResultRow{
					{ResultID: "r1", Label: "Ada", Status: domain.RowFailed, PercentageText: "0.0%"},
				}, rows)
			},
		},
		"null payload yields no rows": {
			payload:   `null`,
			viewpoint: domain.ViewpointTeacher,
			assert: func(t *testing.T, rows []domain.ResultRow, err error) {
				require.NoError(t, err)
				assert.Empty(t, rows)
			},
		},
		"non-object record is rejected": {
			payload:   `[{"_id":"r1","quiz":{"title":"Capitals"},"percentage":80},"r2",null]`,
			viewpoint: domain.ViewpointStudent,
			assert: func(t *testing.T, rows []domain.ResultRow, err error) {
				require.Error(t, err)
				assert.Equal(t, qerrors.CodeDataLoss, qerrors.Convert(err).Code)
				assert.Nil(t, rows, "no partial listing")
			},
		},
		"object without a list is rejected": {
			payload:   `{"message":"nope"}`,
			viewpoint: domain.ViewpointStudent,
			assert: func(t *testing.T, rows []domain.ResultRow, err error) {
				require.Error(t, err)
				assert.Equal(t, qerrors.CodeDataLoss, qerrors.Convert(err).Code)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rows, err := report.Rows([]byte(tt.payload), tt.viewpoint)
			tt.assert(t, rows, err)
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, domain.RowPending, report.Status(decimal.Zero, false))
	assert.Equal(t, domain.RowPassed, report.Status(decimal.NewFromInt(50), true))
	assert.Equal(t, domain.RowFailed, report.Status(decimal.RequireFromString("49.99"), true))
}

type fakeResults struct {
	quizID string
	mine   bool
	err    error
}

func (f *fakeResults) QuizResults(_ context.Context, _ domain.SessionContext, quizID string) ([]byte, error) {
	f.quizID = quizID
	return []byte(`[{"_id":"r1","student":{"email":"s@example.com"},"percentage":75}]`), f.err
}

func (f *fakeResults) MyResults(context.Context, domain.SessionContext) ([]byte, error) {
	f.mine = true
	return []byte(`{"studentResults":[{"_id":"r1","quiz":{"title":"Capitals"}}]}`), f.err
}

func TestService_ListResults(t *testing.T) {
	sc := domain.SessionContext{Token: "tok", Email: "t@example.com"}

	t.Run("teacher", func(t *testing.T) {
		src := &fakeResults{}
		s := report.NewService(report.Config{Results: src})

		rows, err := s.ListResults(context.Background(), sc, report.ListResultsRequest{Viewpoint: domain.ViewpointTeacher, QuizID: "q1"})
		require.NoError(t, err)
		assert.Equal(t, "q1", src.quizID)
		assert.Equal(t, []domain.ResultRow{{ResultID: "r1", Label: "s@example.com", Status: domain.RowPassed, PercentageText: "75.0%"}}, rows)
	})

	t.Run("teacher requires quiz id", func(t *testing.T) {
		s := report.NewService(report.Config{Results: &fakeResults{}})

		_, err := s.ListResults(context.Background(), sc, report.ListResultsRequest{Viewpoint: domain.ViewpointTeacher})
		assert.Equal(t, qerrors.CodeInvalidArgument, qerrors.Convert(err).Code)
	})

	t.Run("student", func(t *testing.T) {
		src := &fakeResults{}
		s := report.NewService(report.Config{Results: src})

		rows, err := s.ListResults(context.Background(), sc, report.ListResultsRequest{Viewpoint: domain.ViewpointStudent})
		require.NoError(t, err)
		assert.True(t, src.mine)
		assert.Equal(t, []domain.ResultRow{{ResultID: "r1", Label: "Capitals", Status: domain.RowPending, PercentageText: "--"}}, rows)
	})

	t.Run("upstream failure", func(t *testing.T) {
		s := report.NewService(report.Config{Results: &fakeResults{err: errors.New("boom")}})

		_, err := s.ListResults(context.Background(), sc, report.ListResultsRequest{})
		assert.Equal(t, qerrors.CodeUnavailable, qerrors.Convert(err).Code)
	})
}
