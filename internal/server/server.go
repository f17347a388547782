package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizgate/internal/api"
	"github.com/victornm/quizgate/internal/event"
	"github.com/victornm/quizgate/internal/otp"
	"github.com/victornm/quizgate/internal/registry"
	"github.com/victornm/quizgate/internal/report"
	"github.com/victornm/quizgate/internal/session"
	"github.com/victornm/quizgate/internal/telemetry"
	"github.com/victornm/quizgate/internal/upstream"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Upstream struct {
		BaseURL string
		Timeout time.Duration
	}

	Redis struct {
		// Pubsub is optional. Without addresses no notifications are published.
		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Registry struct {
		Capacity int
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		upstream *upstream.Client
		redis    struct {
			pubsub redis.UniversalClient
		}
	}

	service struct {
		report   *report.Service
		gates    *registry.Registry[*otp.Gate]
		sessions *registry.Registry[*session.Session]
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if s.c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream: base URL is required")
	}

	s.infra.upstream = upstream.New(upstream.Config{
		BaseURL: s.c.Upstream.BaseURL,
		Timeout: s.c.Upstream.Timeout,
	})

	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	if len(s.c.Redis.Pubsub.Addrs) == 0 {
		slog.Warn("server: redis pubsub not configured, notifications disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Pubsub.Addrs,
		Password: s.c.Redis.Pubsub.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	s.infra.redis.pubsub = r
	return nil
}

func (s *Server) initService() {
	s.service.report = report.NewService(report.Config{
		Results: s.infra.upstream,
	})

	s.service.gates = registry.New[*otp.Gate](s.c.Registry.Capacity)
	s.service.sessions = registry.New[*session.Session](s.c.Registry.Capacity)
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.GinLogger())

	c := api.Config{
		Router:       e,
		EventBus:     s.eb,
		Upstream:     s.infra.upstream,
		Report:       s.service.report,
		Gates:        s.service.gates,
		Sessions:     s.service.sessions,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	}
	// A nil client must not be stored in the interface.
	if s.infra.redis.pubsub != nil {
		c.Redis = s.infra.redis.pubsub
	}
	api.New(c)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if r := s.infra.redis.pubsub; r != nil {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
