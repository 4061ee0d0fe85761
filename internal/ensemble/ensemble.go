// Package ensemble runs the same drift analysis at several thinking levels in
// parallel and gathers the successes and failures under one deadline.
package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/logging"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

const (
	DefaultPerRunTimeout = 25 * time.Second
	DefaultTimeout       = 90 * time.Second
	DefaultMinSuccesses  = 2
)

// Analyzer performs one drift analysis. Implementations should honour ctx,
// but the dispatcher enforces its timeouts even when they do not.
type Analyzer interface {
	Analyze(ctx context.Context, req schema.AnalyzeRequest, runID string) (*schema.Judgment, error)
}

// Recorder receives per-run and per-ensemble outcomes. A nil Recorder is
// allowed.
type Recorder interface {
	RecordRun(mode string, code schema.ErrorCode)
	RecordEnsemble(d time.Duration, successes, failures int)
}

// RunRequest is one ensemble invocation.
type RunRequest struct {
	AnalysisID string
	Modes      []string
	Signals    []schema.Signal
	Settings   *schema.Settings
	Feedback   []schema.FeedbackEntry
}

// ModeResult is a successful run.
type ModeResult struct {
	Mode     string
	Judgment schema.Judgment
}

// Result holds the successes in completion order and one failure per failed
// or abandoned mode.
type Result struct {
	Modes      []string
	Successes  []ModeResult
	Failures   []schema.RunFailure
	DurationMS int64
}

// Judgments returns the successful judgments in completion order.
func (r *Result) Judgments() []schema.Judgment {
	out := make([]schema.Judgment, len(r.Successes))
	for i, s := range r.Successes {
		out[i] = s.Judgment
	}
	return out
}

// Partial reports whether any mode failed.
func (r *Result) Partial() bool { return len(r.Failures) > 0 }

// Outcome returns nil when at least minSuccesses runs succeeded. Otherwise it
// returns an *schema.Error whose code is MODEL_TIMEOUT if any failure timed
// out, else MODEL_ENSEMBLE_FAILED.
func (r *Result) Outcome(minSuccesses int) error {
	if len(r.Successes) >= minSuccesses {
		return nil
	}
	code := schema.CodeEnsembleFailed
	for _, f := range r.Failures {
		if f.Code == schema.CodeModelTimeout {
			code = schema.CodeModelTimeout
			break
		}
	}
	return schema.NewError(code,
		fmt.Sprintf("ensemble produced %d of %d required results", len(r.Successes), minSuccesses),
		schema.ErrInsufficientResults)
}

// Meta summarises the run for the response body.
func (r *Result) Meta() schema.EnsembleMeta {
	return schema.EnsembleMeta{
		Modes:      append([]string{}, r.Modes...),
		DurationMS: r.DurationMS,
		Partial:    r.Partial(),
		Errors:     append([]schema.RunFailure(nil), r.Failures...),
	}
}

// Dispatcher fans one request out to an Analyzer, once per mode.
type Dispatcher struct {
	Analyzer      Analyzer
	PerRunTimeout time.Duration
	Timeout       time.Duration
	Recorder      Recorder

	tracer trace.Tracer
	logger *slog.Logger
}

// New returns a Dispatcher with the default timeouts.
func New(a Analyzer, rec Recorder) *Dispatcher {
	return &Dispatcher{
		Analyzer:      a,
		PerRunTimeout: DefaultPerRunTimeout,
		Timeout:       DefaultTimeout,
		Recorder:      rec,
		tracer:        otel.Tracer("github.com/prabhakaran-jm/intent-drift-radar/internal/ensemble"),
		logger:        logging.New("ensemble"),
	}
}

// collector accumulates outcomes from concurrently finishing tasks. Once
// sealed, late arrivals are dropped.
type collector struct {
	mu        sync.Mutex
	sealed    bool
	finished  []bool
	successes []ModeResult
	failures  []schema.RunFailure
}

func (c *collector) success(i int, mode string, j schema.Judgment) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return false
	}
	c.finished[i] = true
	c.successes = append(c.successes, ModeResult{Mode: mode, Judgment: j})
	return true
}

func (c *collector) fail(i int, f schema.RunFailure) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return false
	}
	c.finished[i] = true
	c.failures = append(c.failures, f)
	return true
}

// abandon stops accepting outcomes and records a failure for every mode
// still outstanding. It returns the abandoned modes.
func (c *collector) abandon(modes []string, code schema.ErrorCode, msg string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	var abandoned []string
	for i, done := range c.finished {
		if done {
			continue
		}
		c.finished[i] = true
		c.failures = append(c.failures, schema.RunFailure{Mode: modes[i], Code: code, Message: msg})
		abandoned = append(abandoned, modes[i])
	}
	return abandoned
}

// Run dispatches one analysis per mode and waits until every task finished
// or the overall deadline passed. Run never fails: partial and total
// failure are reported in the Result, see Result.Outcome.
func (d *Dispatcher) Run(ctx context.Context, req RunRequest) *Result {
	start := time.Now()
	modes := req.Modes
	if len(modes) == 0 {
		modes = schema.DefaultModes
	}
	modes = append([]string{}, modes...)
	settings := schema.DefaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	ctx, span := d.tracerOrDefault().Start(ctx, "ensemble.run", trace.WithAttributes(
		attribute.String("analysis_id", req.AnalysisID),
		attribute.StringSlice("modes", modes),
	))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, orDefault(d.Timeout, DefaultTimeout))
	defer cancel()

	col := &collector{finished: make([]bool, len(modes))}
	done := make(chan struct{}, len(modes))

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(len(modes))
	for i, mode := range modes {
		g.Go(func() error {
			d.runMode(gctx, col, i, mode, req, settings)
			done <- struct{}{}
			return nil
		})
	}

	allDone := true
wait:
	for received := 0; received < len(modes); received++ {
		select {
		case <-done:
		case <-runCtx.Done():
			allDone = false
			break wait
		}
	}

	if allDone {
		_ = g.Wait()
	} else {
		f := deadlineFailure(runCtx.Err())
		for _, mode := range col.abandon(modes, f.Code, f.Message) {
			d.record(mode, f.Code)
			d.log().Warn("mode abandoned at ensemble deadline",
				slog.String("analysis_id", req.AnalysisID), slog.String("mode", mode))
		}
		cancel()
	}

	col.mu.Lock()
	res := &Result{
		Modes:      modes,
		Successes:  col.successes,
		Failures:   col.failures,
		DurationMS: time.Since(start).Milliseconds(),
	}
	col.sealed = true
	col.mu.Unlock()
	if d.Recorder != nil {
		d.Recorder.RecordEnsemble(time.Since(start), len(res.Successes), len(res.Failures))
	}
	span.SetAttributes(
		attribute.Int("successes", len(res.Successes)),
		attribute.Int("failures", len(res.Failures)),
	)
	d.log().Info("ensemble finished",
		slog.String("analysis_id", req.AnalysisID),
		slog.Int("successes", len(res.Successes)),
		slog.Int("failures", len(res.Failures)),
		slog.Int64("duration_ms", res.DurationMS))
	return res
}

// runMode performs one analysis under the per-run timeout. The analyzer runs
// in its own goroutine so a call that ignores ctx cannot hold the task past
// its timeout.
func (d *Dispatcher) runMode(ctx context.Context, col *collector, i int, mode string, req RunRequest, settings schema.Settings) {
	ctx, span := d.tracerOrDefault().Start(ctx, "ensemble.mode", trace.WithAttributes(attribute.String("mode", mode)))
	defer span.End()

	// Unknown modes keep their label but run at the default depth.
	level, _ := schema.ParseThinkingLevel(mode)
	settings.ThinkingLevel = level
	areq := schema.AnalyzeRequest{Signals: req.Signals, Settings: &settings, Feedback: req.Feedback}
	runID := req.AnalysisID + "-" + mode

	perRun := orDefault(d.PerRunTimeout, DefaultPerRunTimeout)
	runCtx, cancel := context.WithTimeout(ctx, perRun)
	defer cancel()

	type reply struct {
		j   *schema.Judgment
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		j, err := d.Analyzer.Analyze(runCtx, areq, runID)
		ch <- reply{j, err}
	}()

	var r reply
	select {
	case r = <-ch:
		if r.err == nil && r.j == nil {
			r.err = schema.NewError(schema.CodeModelOutputInvalid, "analyzer returned no judgment", nil)
		}
	case <-runCtx.Done():
	}

	switch {
	case r.err == nil && r.j != nil:
		if col.success(i, mode, *r.j) {
			d.record(mode, "")
		}
	case ctx.Err() != nil:
		// The whole ensemble ended; report it the way abandon does.
		f := deadlineFailure(ctx.Err())
		f.Mode = mode
		d.fail(span, col, i, runID, f, ctx.Err())
	case runCtx.Err() != nil:
		err := schema.NewError(schema.CodeModelTimeout, fmt.Sprintf("run timed out after %s", perRun), runCtx.Err())
		d.fail(span, col, i, runID, classify(mode, err), err)
	default:
		d.fail(span, col, i, runID, classify(mode, r.err), r.err)
	}
}

func (d *Dispatcher) fail(span trace.Span, col *collector, i int, runID string, f schema.RunFailure, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(f.Code))
	if col.fail(i, f) {
		d.record(f.Mode, f.Code)
		d.log().Warn("ensemble run failed",
			slog.String("run_id", runID), slog.String("code", string(f.Code)), slog.String("error", f.Message))
	}
}

// deadlineFailure describes a mode cut short because the ensemble context
// ended: MODEL_TIMEOUT at the deadline, MODEL_ENSEMBLE_FAILED on cancellation.
func deadlineFailure(err error) schema.RunFailure {
	if errors.Is(err, context.Canceled) {
		return schema.RunFailure{Code: schema.CodeEnsembleFailed, Message: "ensemble run cancelled"}
	}
	return schema.RunFailure{Code: schema.CodeModelTimeout, Message: "ensemble run timed out"}
}

// classify maps an analyzer error onto a per-run failure. Classified errors
// report their own message so the code is not repeated in it.
func classify(mode string, err error) schema.RunFailure {
	code := schema.CodeOf(err)
	switch code {
	case schema.CodeModelTimeout, schema.CodeModelOutputInvalid:
	default:
		code = schema.CodeEnsembleRunFailed
	}
	return schema.RunFailure{Mode: mode, Code: code, Message: failureMessage(err)}
}

func failureMessage(err error) string {
	var e *schema.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Code)
}

func (d *Dispatcher) record(mode string, code schema.ErrorCode) {
	if d.Recorder != nil {
		d.Recorder.RecordRun(mode, code)
	}
}

func (d *Dispatcher) tracerOrDefault() trace.Tracer {
	if d.tracer == nil {
		return otel.Tracer("github.com/prabhakaran-jm/intent-drift-radar/internal/ensemble")
	}
	return d.tracer
}

func (d *Dispatcher) log() *slog.Logger {
	if d.logger == nil {
		return logging.New("ensemble")
	}
	return d.logger
}

func orDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
