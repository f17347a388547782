package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code codes.Code

const (
	CodeInvalidArgument    = Code(codes.InvalidArgument)
	CodeNotFound           = Code(codes.NotFound)
	CodeAlreadyExists      = Code(codes.AlreadyExists)
	CodePermissionDenied   = Code(codes.PermissionDenied)
	CodeFailedPrecondition = Code(codes.FailedPrecondition)
	CodeUnavailable        = Code(codes.Unavailable)
	CodeDataLoss           = Code(codes.DataLoss)
	CodeInternal           = Code(codes.Internal)
	CodeUnauthenticated    = Code(codes.Unauthenticated)
)

var code2http = map[Code]int{
	CodeInvalidArgument:    http.StatusBadRequest,
	CodeNotFound:           http.StatusNotFound,
	CodeAlreadyExists:      http.StatusConflict,
	CodePermissionDenied:   http.StatusForbidden,
	CodeFailedPrecondition: http.StatusConflict,
	CodeUnavailable:        http.StatusServiceUnavailable,
	CodeDataLoss:           http.StatusBadGateway,
	CodeInternal:           http.StatusInternalServerError,
	CodeUnauthenticated:    http.StatusUnauthorized,
}

// Reason narrows a Code down to one of the attempt engine failure kinds.
type Reason string

const (
	ReasonMalformedQuizPayload   Reason = "MALFORMED_QUIZ_PAYLOAD"
	ReasonQuizUnavailable        Reason = "QUIZ_UNAVAILABLE"
	ReasonChallengeRequestFailed Reason = "CHALLENGE_REQUEST_FAILED"
	ReasonVerificationFailed     Reason = "VERIFICATION_FAILED"
	ReasonInvalidCode            Reason = "INVALID_CODE"
	ReasonSubmissionFailed       Reason = "SUBMISSION_FAILED"
	ReasonInvalidState           Reason = "INVALID_STATE"
	ReasonNotAdmitted            Reason = "NOT_ADMITTED"
)

type Error struct {
	Code    Code   `json:"code"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: codes.Code(code).String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
	if e.Reason != "" {
		s += fmt.Sprintf(", reason: %s", e.Reason)
	}
	if e.err != nil {
		s += fmt.Sprintf(", err: %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) GRPCStatus() *status.Status {
	return status.New(codes.Code(e.Code), e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// HasReason reports whether the first *Error in err's chain carries the reason r.
func HasReason(err error, r Reason) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Reason == r
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

// MalformedQuizPayload is returned when a quiz payload has no questions sequence.
func MalformedQuizPayload(format string, args ...any) *Error {
	return New(CodeDataLoss,
		WithReason(ReasonMalformedQuizPayload),
		WithMessagef(format, args...),
	)
}

// InvalidState is returned when an operation is called in a state that does not accept it.
func InvalidState(format string, args ...any) *Error {
	return New(CodeFailedPrecondition,
		WithReason(ReasonInvalidState),
		WithMessagef(format, args...),
	)
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}

func WithReason(r Reason) Option {
	return optionFunc(func(e *Error) {
		e.Reason = r
	})
}
