// Package radar wires the analyzer, the ensemble dispatcher, the consensus
// aggregator and the feedback store into the operations every front end
// (HTTP, MCP, CLI) exposes.
package radar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/consensus"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/drift"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/ensemble"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/logging"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/store"
)

// DemoAnalysisID is forced onto the cached demo judgment.
const DemoAnalysisID = "demo"

// Options tunes a Service.
type Options struct {
	// MinSuccesses is the number of successful runs an ensemble needs.
	MinSuccesses int
	// DemoPath is the cached sample judgment served by Demo.
	DemoPath string
}

// readiness is implemented by analyzers that can fail fast before any run,
// for example when no API key is configured.
type readiness interface {
	Ready() error
}

// Service runs analyses. It holds no per-request state.
type Service struct {
	analyzer   ensemble.Analyzer
	dispatcher *ensemble.Dispatcher
	store      *store.Store
	opts       Options
	newID      func() string
	logger     *slog.Logger
}

// New returns a Service. st may be nil when feedback is not needed.
func New(a ensemble.Analyzer, d *ensemble.Dispatcher, st *store.Store, opts Options) *Service {
	if opts.MinSuccesses < consensus.MinResults {
		opts.MinSuccesses = consensus.MinResults
	}
	return &Service{
		analyzer:   a,
		dispatcher: d,
		store:      st,
		opts:       opts,
		newID:      uuid.NewString,
		logger:     logging.New("radar"),
	}
}

func invalid(err error) error {
	return schema.NewError(schema.CodeInvalidRequest, err.Error(), err)
}

func (s *Service) ready() error {
	if r, ok := s.analyzer.(readiness); ok {
		return r.Ready()
	}
	return nil
}

// Analyze runs one live analysis under a fresh analysis id.
func (s *Service) Analyze(ctx context.Context, req schema.AnalyzeRequest) (*schema.Judgment, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	id := s.newID()
	s.logger.Info("live analyze", slog.String("analysis_id", id), slog.Int("signals", len(req.Signals)))

	j, err := s.analyzer.Analyze(ctx, req, id)
	if err != nil {
		return nil, fmt.Errorf("radar: analyze: %w", err)
	}
	if j == nil {
		return nil, schema.NewError(schema.CodeModelOutputInvalid, "analyzer returned no judgment", nil)
	}
	return j, nil
}

// Ensemble dispatches one run per mode and merges the successes into a
// consensus judgment. Partial failure is reported in the response meta; too
// few successes is an error carrying MODEL_TIMEOUT or MODEL_ENSEMBLE_FAILED.
func (s *Service) Ensemble(ctx context.Context, req schema.EnsembleRequest) (*schema.EnsembleResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	id := s.newID()
	modes := req.EffectiveModes()
	s.logger.Info("live ensemble", slog.String("analysis_id", id), slog.Any("modes", modes))

	res := s.dispatcher.Run(ctx, ensemble.RunRequest{
		AnalysisID: id,
		Modes:      modes,
		Signals:    req.Signals,
		Settings:   req.Settings,
		Feedback:   req.Feedback,
	})
	if err := res.Outcome(s.opts.MinSuccesses); err != nil {
		s.logger.Warn("ensemble insufficient",
			slog.String("analysis_id", id),
			slog.Int("successes", len(res.Successes)),
			slog.Int("failures", len(res.Failures)))
		return nil, err
	}

	cons, agreement, err := consensus.Compute(res.Judgments(), id)
	if err != nil {
		return nil, schema.NewError(schema.CodeEnsembleFailed, err.Error(), err)
	}

	return &schema.EnsembleResponse{
		AnalysisID: id,
		Analyses:   res.Judgments(),
		Consensus:  cons,
		Agreement:  agreement,
		Meta:       res.Meta(),
	}, nil
}

// Demo loads the cached sample judgment, forces its id to "demo" and passes
// it through the guardrails. Every failure is DEMO_UNAVAILABLE.
func (s *Service) Demo() (*schema.Judgment, error) {
	data, err := os.ReadFile(s.opts.DemoPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, schema.NewError(schema.CodeDemoUnavailable, "Demo result file is missing.", err)
		}
		return nil, schema.NewError(schema.CodeDemoUnavailable, "Demo result file is invalid or unreadable.", err)
	}
	var j schema.Judgment
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, schema.NewError(schema.CodeDemoUnavailable, "Demo result file is invalid or unreadable.", err)
	}
	j.AnalysisID = DemoAnalysisID
	if err := j.Validate(); err != nil {
		return nil, schema.NewError(schema.CodeDemoUnavailable, "Demo result did not match schema.", err)
	}
	out, err := drift.Postprocess(j)
	if err != nil {
		return nil, schema.NewError(schema.CodeDemoUnavailable, "Demo result did not match schema.", err)
	}
	return &out, nil
}

// AddFeedback validates and appends a feedback entry.
func (s *Service) AddFeedback(e schema.FeedbackEntry) (schema.FeedbackEntry, error) {
	if s.store == nil {
		return schema.FeedbackEntry{}, schema.NewError(schema.CodeInternal, "feedback store not configured", nil)
	}
	if err := e.Validate(); err != nil {
		return schema.FeedbackEntry{}, invalid(err)
	}
	saved, err := s.store.Append(e)
	if err != nil {
		return schema.FeedbackEntry{}, schema.NewError(schema.CodeInternal, "saving feedback failed", err)
	}
	s.logger.Info("feedback saved", slog.String("analysis_id", e.AnalysisID), slog.String("verdict", string(e.Verdict)))
	return saved, nil
}

// Feedback lists every stored entry.
func (s *Service) Feedback() []schema.FeedbackEntry {
	if s.store == nil {
		return []schema.FeedbackEntry{}
	}
	return s.store.List()
}
