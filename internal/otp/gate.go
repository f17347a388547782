// Package otp implements the one-time-passcode admission gate that must be
// passed before a quiz attempt can start.
package otp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/victornm/quizgate/internal/domain"
	"github.com/victornm/quizgate/internal/errors"
	"github.com/victornm/quizgate/internal/event"
	"github.com/victornm/quizgate/internal/telemetry"
)

type State int

const (
	StateIdle State = iota
	StateRequesting
	StateAwaitingCode
	StateVerifying
	StateGranted
	StateDenied
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StateRequesting:   "requesting",
	StateAwaitingCode: "awaiting_code",
	StateVerifying:    "verifying",
	StateGranted:      "granted",
	StateDenied:       "denied",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Identity is the remote service that sends and verifies passcodes.
type Identity interface {
	SendOTP(ctx context.Context, sc domain.SessionContext, email string) error
	// VerifyOTP returns the raw response body of the verification call.
	VerifyOTP(ctx context.Context, sc domain.SessionContext, email, code string) ([]byte, error)
}

// Challenge is an issued passcode challenge for one quiz and one subject.
type Challenge struct {
	QuizID   string
	Email    string
	IssuedAt time.Time
}

// admits is the single place deciding whether a granted challenge covers a
// quiz/subject pair.
func (c Challenge) admits(quizID, email string) bool {
	return c.QuizID == quizID && c.Email == email
}

type Config struct {
	Identity Identity
	// EventBus is optional; admission.granted is published when set.
	EventBus *event.Bus
	Now      func() time.Time
}

// Gate is the admission state machine. A Gate is owned by a single flow and
// is not safe for concurrent use.
type Gate struct {
	identity Identity
	eb       *event.Bus
	now      func() time.Time

	state     State
	challenge *Challenge
	err       error
}

func NewGate(c Config) *Gate {
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &Gate{
		identity: c.Identity,
		eb:       c.EventBus,
		now:      now,
		state:    StateIdle,
	}
}

func (g *Gate) State() State { return g.state }

// Err returns the error of the last failed transition, if any.
func (g *Gate) Err() error { return g.err }

// Challenge returns the outstanding challenge, or false when none was issued.
func (g *Gate) Challenge() (Challenge, bool) {
	if g.challenge == nil {
		return Challenge{}, false
	}
	return *g.challenge, true
}

// Admits reports whether the gate is Granted for quizID and email.
func (g *Gate) Admits(quizID, email string) bool {
	return g.state == StateGranted && g.challenge != nil && g.challenge.admits(quizID, email)
}

// RequestChallenge asks the identity service to send a passcode to the
// caller's email. On failure the gate returns to Idle and the attempt flow
// must not continue.
func (g *Gate) RequestChallenge(ctx context.Context, sc domain.SessionContext, quizID string) error {
	if g.state != StateIdle && g.state != StateDenied {
		return errors.InvalidState("otp: cannot request a challenge in state %s", g.state)
	}
	if quizID == "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("otp: quiz id is required"))
	}
	if sc.Email == "" || sc.Token == "" {
		return errors.New(errors.CodeUnauthenticated, errors.WithMessagef("otp: missing auth details, login again"))
	}

	g.state = StateRequesting
	g.challenge = &Challenge{QuizID: quizID, Email: sc.Email}
	g.err = nil

	if err := g.identity.SendOTP(ctx, sc, sc.Email); err != nil {
		slog.ErrorContext(ctx, "otp: request challenge failed", "quiz_id", quizID, "error", err)
		telemetry.ObserveOTP(telemetry.OTPChallengeFailed)

		g.state = StateIdle
		g.challenge = nil
		g.err = errors.New(errors.CodeUnavailable,
			errors.WithReason(errors.ReasonChallengeRequestFailed),
			errors.WithMessagef("otp: failed to request a passcode, try again later"),
			errors.WithCause(err),
		)
		return g.err
	}

	g.challenge.IssuedAt = g.now()
	g.state = StateAwaitingCode
	telemetry.ObserveOTP(telemetry.OTPChallengeSent)

	return nil
}

// SubmitCode verifies a passcode against the outstanding challenge. It is
// accepted while awaiting a code, and again after a denial so the same
// challenge can be retried with a new code.
func (g *Gate) SubmitCode(ctx context.Context, sc domain.SessionContext, code string) error {
	if !g.acceptsCode() {
		return errors.InvalidState("otp: cannot submit a code in state %s", g.state)
	}
	if sc.Email != g.challenge.Email {
		return errors.New(errors.CodePermissionDenied,
			errors.WithReason(errors.ReasonNotAdmitted),
			errors.WithMessagef("otp: challenge was issued to another subject"),
		)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("otp: code is required"))
	}

	g.state = StateVerifying
	g.err = nil

	body, err := g.identity.VerifyOTP(ctx, sc, g.challenge.Email, code)
	if err != nil {
		slog.ErrorContext(ctx, "otp: verification failed", "quiz_id", g.challenge.QuizID, "error", err)
		telemetry.ObserveOTP(telemetry.OTPVerificationError)

		g.state = StateDenied
		g.err = errors.New(errors.CodeUnavailable,
			errors.WithReason(errors.ReasonVerificationFailed),
			errors.WithMessagef("otp: verification failed, try again"),
			errors.WithCause(err),
		)
		return g.err
	}

	if !acknowledged(body) {
		slog.InfoContext(ctx, "otp: invalid code", "quiz_id", g.challenge.QuizID)
		telemetry.ObserveOTP(telemetry.OTPInvalidCode)

		g.state = StateDenied
		g.err = errors.New(errors.CodePermissionDenied,
			errors.WithReason(errors.ReasonInvalidCode),
			errors.WithMessagef("otp: invalid code, try again"),
		)
		return g.err
	}

	g.state = StateGranted
	telemetry.ObserveOTP(telemetry.OTPGranted)

	if g.eb != nil {
		g.eb.Publish(ctx, domain.EventAdmissionGranted{
			QuizID: g.challenge.QuizID,
			Email:  g.challenge.Email,
		})
	}

	return nil
}

func (g *Gate) acceptsCode() bool {
	switch g.state {
	case StateAwaitingCode:
		return true
	case StateDenied:
		return g.challenge != nil
	default:
		return false
	}
}

// acknowledged accepts only an explicit {"success": true}.
func acknowledged(body []byte) bool {
	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}

	ok, _ := resp["success"].(bool)
	return ok
}
