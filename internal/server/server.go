// Package server exposes the drift radar over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/logging"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/observability"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/radar"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

// Mode header values tell the UI where a judgment came from.
const (
	ModeHeader       = "X-IDR-Mode"
	modeDemo         = "demo-cached"
	modeLive         = "live"
	modeEnsembleLive = "ensemble-live"
)

const shutdownGrace = 10 * time.Second

// VersionInfo is served by GET /api/version.
type VersionInfo struct {
	GitSHA      string `json:"git_sha"`
	BuildTime   string `json:"build_time"`
	Model       string `json:"model"`
	Provider    string `json:"provider"`
	ServiceName string `json:"service_name"`
}

// Options configures the HTTP surface.
type Options struct {
	Version   VersionInfo
	StaticDir string
	// RateLimit is requests per second across the analyze endpoints; zero
	// disables limiting.
	RateLimit float64
	RateBurst int
	Metrics   *observability.Metrics
}

// Server owns the gin engine.
type Server struct {
	svc     *radar.Service
	opts    Options
	engine  *gin.Engine
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds the router. Metrics may be nil.
func New(svc *radar.Service, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{svc: svc, opts: opts, logger: logging.New("server")}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Version.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.Version.ServiceName))
	}
	r.Use(s.requestLogger(), cors())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/version", s.handleVersion)
	api.GET("/demo", s.handleDemo)
	api.POST("/analyze", s.rateLimit(), s.handleAnalyze)
	api.POST("/analyze/ensemble", s.rateLimit(), s.handleEnsemble)
	api.POST("/feedback", s.handleFeedbackAdd)
	api.GET("/feedback", s.handleFeedbackList)

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
	s.mountStatic(r)

	s.engine = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Version)
}

func (s *Server) handleDemo(c *gin.Context) {
	j, err := s.svc.Demo()
	if err != nil {
		s.fail(c, "demo", err)
		return
	}
	s.record("demo", "")
	c.Header(ModeHeader, modeDemo)
	c.JSON(http.StatusOK, j)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req schema.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, "analyze", schema.NewError(schema.CodeInvalidRequest, err.Error(), err))
		return
	}
	c.Header(ModeHeader, modeLive)
	j, err := s.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		s.fail(c, "analyze", err)
		return
	}
	s.record("analyze", "")
	c.JSON(http.StatusOK, j)
}

func (s *Server) handleEnsemble(c *gin.Context) {
	var req schema.EnsembleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, "ensemble", schema.NewError(schema.CodeInvalidRequest, err.Error(), err))
		return
	}
	c.Header(ModeHeader, modeEnsembleLive)
	resp, err := s.svc.Ensemble(c.Request.Context(), req)
	if err != nil {
		s.fail(c, "ensemble", err)
		return
	}
	s.record("ensemble", "")
	c.JSON(http.StatusOK, resp)
}

type feedbackBody struct {
	AnalysisID string                 `json:"analysis_id"`
	Verdict    schema.FeedbackVerdict `json:"verdict"`
	Comment    string                 `json:"comment"`
}

func (s *Server) handleFeedbackAdd(c *gin.Context) {
	var body feedbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, "feedback", schema.NewError(schema.CodeInvalidRequest, err.Error(), err))
		return
	}
	_, err := s.svc.AddFeedback(schema.FeedbackEntry{
		AnalysisID: body.AnalysisID,
		Verdict:    body.Verdict,
		Comment:    body.Comment,
	})
	if err != nil {
		s.fail(c, "feedback", err)
		return
	}
	s.record("feedback", "")
	c.JSON(http.StatusOK, gin.H{"ok": true, "saved": true})
}

func (s *Server) handleFeedbackList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"feedback": s.svc.Feedback()})
}

func (s *Server) record(endpoint string, code schema.ErrorCode) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRequest(endpoint, code)
	}
}
