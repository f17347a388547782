package api

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizgate/internal/domain"
	"github.com/victornm/quizgate/internal/errors"
	"github.com/victornm/quizgate/internal/event"
	"github.com/victornm/quizgate/internal/normalize"
	"github.com/victornm/quizgate/internal/otp"
	"github.com/victornm/quizgate/internal/registry"
	"github.com/victornm/quizgate/internal/report"
	"github.com/victornm/quizgate/internal/session"
	"github.com/victornm/quizgate/internal/upstream"
)

const headerEmail = "X-User-Email"

// Upstream is everything the BFF needs from the remote quiz API.
type Upstream interface {
	otp.Identity
	session.QuizSource
	session.Submitter
	Login(ctx context.Context, req upstream.LoginRequest) (string, error)
	AssignedQuizzes(ctx context.Context, sc domain.SessionContext) ([]byte, error)
}

type Config struct {
	Router   gin.IRouter
	EventBus *event.Bus
	Upstream Upstream
	Report   *report.Service
	Gates    *registry.Registry[*otp.Gate]
	Sessions *registry.Registry[*session.Session]
	// Redis is optional; attempt notifications are published when set.
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	eb       *event.Bus
	upstream Upstream
	report   *report.Service
	gates    *registry.Registry[*otp.Gate]
	sessions *registry.Registry[*session.Session]

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		eb:       c.EventBus,
		upstream: c.Upstream,
		report:   c.Report,
		gates:    c.Gates,
		sessions: c.Sessions,
		redis:    c.Redis,
		prefix:   c.PubsubPrefix,
	}

	v1 := c.Router.Group("/v1")
	v1.POST("/login", a.Login)

	authed := v1.Group("", requireSession)
	authed.GET("/quizzes/assigned", a.ListAssignedQuizzes)
	authed.GET("/quizzes/:id/results", a.ListQuizResults)
	authed.GET("/results/my", a.ListMyResults)

	authed.POST("/admissions", a.CreateAdmission)
	authed.GET("/admissions/:id", a.GetAdmission)
	authed.POST("/admissions/:id/code", a.SubmitCode)

	authed.POST("/attempts", a.StartAttempt)
	authed.GET("/attempts/:id", a.GetAttempt)
	authed.PUT("/attempts/:id/answers/:question", a.SelectOption)
	authed.POST("/attempts/:id/advance", a.Advance)

	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameAttemptCompleted, func(ctx context.Context, e event.Event) error {
			return a.PublishAttemptCompleted(ctx, e.(domain.EventAttemptCompleted))
		})
	}

	return a
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=student teacher"`
}

type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (a *API) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	email := strings.TrimSpace(req.Email)
	tok, err := a.upstream.Login(c.Request.Context(), upstream.LoginRequest{Email: email, Password: req.Password, Role: req.Role})
	if err != nil {
		writeError(c, loginError(c.Request.Context(), err))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: tok, Email: email})
}

// loginError reports rejected credentials as Unauthenticated and anything
// else as the upstream being unavailable.
func loginError(ctx context.Context, err error) error {
	var se *upstream.StatusError
	if stderrors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
		return errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("login failed"),
			errors.WithCause(err),
		)
	}

	slog.ErrorContext(ctx, "api: login upstream failed", "error", err)
	return errors.New(errors.CodeUnavailable,
		errors.WithMessagef("login is unavailable, try again later"),
		errors.WithCause(err),
	)
}

func (a *API) ListAssignedQuizzes(c *gin.Context) {
	sc := sessionContext(c)

	b, err := a.upstream.AssignedQuizzes(c.Request.Context(), sc)
	if err != nil {
		writeError(c, errors.New(errors.CodeUnavailable,
			errors.WithMessagef("failed to fetch assigned quizzes"),
			errors.WithCause(err),
		))
		return
	}

	as, err := normalize.Assignments(b)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]AssignmentView, 0, len(as))
	for _, item := range as {
		out = append(out, AssignmentView(item))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) ListQuizResults(c *gin.Context) {
	a.listResults(c, report.ListResultsRequest{Viewpoint: domain.ViewpointTeacher, QuizID: c.Param("id")})
}

func (a *API) ListMyResults(c *gin.Context) {
	a.listResults(c, report.ListResultsRequest{Viewpoint: domain.ViewpointStudent})
}

func (a *API) listResults(c *gin.Context, req report.ListResultsRequest) {
	rows, err := a.report.ListResults(c.Request.Context(), sessionContext(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]ResultRowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, ResultRowView{
			ResultID:   r.ResultID,
			Label:      r.Label,
			Status:     string(r.Status),
			Percentage: r.PercentageText,
		})
	}
	c.JSON(http.StatusOK, out)
}

type CreateAdmissionRequest struct {
	QuizID string `json:"quizId" binding:"required"`
}

// CreateAdmission opens a gate for a quiz and requests a passcode. A failed
// request leaves nothing behind; the client starts over.
func (a *API) CreateAdmission(c *gin.Context) {
	var req CreateAdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	sc := sessionContext(c)
	g := otp.NewGate(otp.Config{Identity: a.upstream, EventBus: a.eb})
	if err := g.RequestChallenge(c.Request.Context(), sc, req.QuizID); err != nil {
		writeError(c, err)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		writeError(c, errors.Internal(err))
		return
	}

	if err := a.gates.Put(id.String(), sc.Email, g); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, admissionView(id.String(), g))
}

func (a *API) GetAdmission(c *gin.Context) {
	id := c.Param("id")
	g, release, err := a.gates.Checkout(id, sessionContext(c).Email)
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()

	c.JSON(http.StatusOK, admissionView(id, g))
}

type SubmitCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func (a *API) SubmitCode(c *gin.Context) {
	var req SubmitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	id := c.Param("id")
	sc := sessionContext(c)
	g, release, err := a.gates.Checkout(id, sc.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()

	if err := g.SubmitCode(c.Request.Context(), sc, req.Code); err != nil {
		v := admissionView(id, g)
		e := errors.Convert(err)
		v.Error = e
		c.JSON(e.HTTPStatusCode(), v)
		return
	}

	c.JSON(http.StatusOK, admissionView(id, g))
}

type StartAttemptRequest struct {
	AdmissionID string `json:"admissionId" binding:"required"`
}

// StartAttempt builds an attempt from a granted admission. An attempt whose
// quiz could not be loaded is reported with its failure and not kept.
func (a *API) StartAttempt(c *gin.Context) {
	var req StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	sc := sessionContext(c)
	g, release, err := a.gates.Checkout(req.AdmissionID, sc.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()

	ch, _ := g.Challenge()
	s, err := session.Start(c.Request.Context(), session.Config{
		Quizzes:   a.upstream,
		Submitter: a.upstream,
		EventBus:  a.eb,
	}, sc, g, ch.QuizID)
	if err != nil {
		writeError(c, err)
		return
	}

	v := attemptView(s)
	if s.Status() == session.StatusFailed {
		c.JSON(v.Error.HTTPStatusCode(), v)
		return
	}

	if err := a.sessions.Put(s.ID(), sc.Email, s); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, v)
}

func (a *API) GetAttempt(c *gin.Context) {
	s, release, err := a.sessions.Checkout(c.Param("id"), sessionContext(c).Email)
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()

	c.JSON(http.StatusOK, attemptView(s))
}

type SelectOptionRequest struct {
	Option *int `json:"option" binding:"required"`
}

func (a *API) SelectOption(c *gin.Context) {
	var req SelectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}

	q, err := strconv.Atoi(c.Param("question"))
	if err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("question must be an integer")))
		return
	}

	s, release, err := a.sessions.Checkout(c.Param("id"), sessionContext(c).Email)
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()

	if err := s.SelectOption(q, *req.Option); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, attemptView(s))
}

func (a *API) Advance(c *gin.Context) {
	sc := sessionContext(c)
	s, release, err := a.sessions.Checkout(c.Param("id"), sc.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	defer release()

	if err := s.Advance(c.Request.Context(), sc); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, attemptView(s))
}

const keySessionContext = "quizgate.session_context"

// requireSession builds the caller's SessionContext from the bearer token and
// the subject email header.
func requireSession(c *gin.Context) {
	tok, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	email := strings.TrimSpace(c.GetHeader(headerEmail))
	if !ok || strings.TrimSpace(tok) == "" || email == "" {
		writeError(c, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("bearer token and %s header are required", headerEmail)))
		return
	}

	c.Set(keySessionContext, domain.SessionContext{Token: strings.TrimSpace(tok), Email: email})
	c.Next()
}

func sessionContext(c *gin.Context) domain.SessionContext {
	sc, _ := c.MustGet(keySessionContext).(domain.SessionContext)
	return sc
}

func invalidBody(err error) error {
	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("invalid request body: %v", err),
	)
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: internal error", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e})
}
