// Package upstream is the HTTP client for the remote quiz API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/victornm/quizgate/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

type Config struct {
	// BaseURL is the upstream root, such as http://localhost:5000.
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

type Client struct {
	base string
	http *http.Client
}

func New(c Config) *Client {
	h := c.HTTPClient
	if h == nil {
		t := c.Timeout
		if t <= 0 {
			t = defaultTimeout
		}
		h = &http.Client{Timeout: t}
	}

	return &Client{
		base: baseURL(c.BaseURL),
		http: h,
	}
}

// baseURL accepts the API root with or without the /api segment; every path
// the client builds already starts with /api.
func baseURL(s string) string {
	s = strings.TrimSuffix(s, "/")
	return strings.TrimSuffix(s, "/api")
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	b, err := c.do(ctx, domain.SessionContext{}, http.MethodPost, "/api/auth/login", req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return "", fmt.Errorf("upstream: decode login response: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("upstream: login response has no token")
	}

	return resp.Token, nil
}

// FetchQuiz returns the raw quiz payload.
func (c *Client) FetchQuiz(ctx context.Context, sc domain.SessionContext, quizID string) ([]byte, error) {
	return c.do(ctx, sc, http.MethodGet, "/api/quizzes/"+url.PathEscape(quizID), nil)
}

func (c *Client) SendOTP(ctx context.Context, sc domain.SessionContext, email string) error {
	_, err := c.do(ctx, sc, http.MethodPost, "/api/otp/send", map[string]string{"email": email})
	return err
}

// VerifyOTP returns the raw verification response body; interpreting it is
// left to the caller.
func (c *Client) VerifyOTP(ctx context.Context, sc domain.SessionContext, email, code string) ([]byte, error) {
	return c.do(ctx, sc, http.MethodPost, "/api/otp/verify", map[string]string{
		"email": email,
		"otp":   code,
	})
}

// SubmitAnswers posts the selected option indexes, null for unanswered slots.
func (c *Client) SubmitAnswers(ctx context.Context, sc domain.SessionContext, quizID string, answers []domain.AnswerSlot) error {
	body := struct {
		StudentAnswers []domain.AnswerSlot `json:"studentAnswers"`
	}{
		StudentAnswers: answers,
	}

	_, err := c.do(ctx, sc, http.MethodPost, "/api/quizzes/"+url.PathEscape(quizID)+"/submit", body)
	return err
}

// QuizResults returns the raw per-quiz roster of attempts.
func (c *Client) QuizResults(ctx context.Context, sc domain.SessionContext, quizID string) ([]byte, error) {
	return c.do(ctx, sc, http.MethodGet, "/api/quizzes/"+url.PathEscape(quizID)+"/results", nil)
}

// MyResults returns the raw attempt history of the calling student.
func (c *Client) MyResults(ctx context.Context, sc domain.SessionContext) ([]byte, error) {
	return c.do(ctx, sc, http.MethodGet, "/api/results/my", nil)
}

func (c *Client) AssignedQuizzes(ctx context.Context, sc domain.SessionContext) ([]byte, error) {
	return c.do(ctx, sc, http.MethodGet, "/api/quizzes/assigned", nil)
}

func (c *Client) do(ctx context.Context, sc domain.SessionContext, method, path string, body any) ([]byte, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("upstream: marshal %s %s: %w", method, path, err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return nil, fmt.Errorf("upstream: new request %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sc.Token != "" {
		req.Header.Set("Authorization", "Bearer "+sc.Token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("upstream: read %s %s: %w", method, path, err)
	}

	if res.StatusCode/100 != 2 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: res.StatusCode,
			Body:       string(b),
		}
	}

	return b, nil
}
