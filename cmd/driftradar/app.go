package main

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/config"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/ensemble"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/llm"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/logging"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/observability"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/radar"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/store"
)

// globalFlags override the loaded configuration.
type globalFlags struct {
	configFile string
	provider   string
	model      string
	dataDir    string
	logLevel   string
	logFormat  string
}

// app is the composition root shared by every subcommand.
type app struct {
	cfg     config.Config
	metrics *observability.Metrics
	svc     *radar.Service
	logger  *slog.Logger
}

// loadConfig applies defaults, file, environment and then flags.
func loadConfig(gf *globalFlags) (config.Config, error) {
	cfg, err := config.Load(gf.configFile)
	if err != nil {
		return config.Config{}, badInput("%v", err)
	}
	if gf.provider != "" {
		cfg.SetProvider(gf.provider)
	}
	if gf.model != "" {
		cfg.Model = gf.model
	}
	if gf.dataDir != "" {
		cfg.DataDir = gf.dataDir
	}
	if gf.logLevel != "" {
		cfg.LogLevel = gf.logLevel
	}
	if gf.logFormat != "" {
		cfg.LogFormat = gf.logFormat
	}
	cfg.GitSHA = firstNonEmpty(gitSHA, cfg.GitSHA)
	cfg.BuildTime = firstNonEmpty(buildTime, cfg.BuildTime)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, badInput("%v", err)
	}
	return cfg, nil
}

// newApp wires config, logging, metrics, the analyzer, the dispatcher and the
// feedback store.
func newApp(gf *globalFlags) (*app, error) {
	cfg, err := loadConfig(gf)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, badInput("%v", err)
	}
	logging.Init(level, cfg.LogFormat)
	logger := logging.New("driftradar")
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	metrics := observability.New(prometheus.NewRegistry())
	analyzer := llm.NewAnalyzer(llm.Options{
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		FallbackModels: cfg.FallbackModels,
		APIKey:         cfg.APIKey,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		Debug:          level <= slog.LevelDebug,
	}, metrics)

	dispatcher := ensemble.New(analyzer, metrics)
	dispatcher.PerRunTimeout = cfg.PerRunTimeout
	dispatcher.Timeout = cfg.EnsembleTimeout

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("driftradar: %w", err)
	}

	svc := radar.New(analyzer, dispatcher, st, radar.Options{
		MinSuccesses: cfg.MinSuccesses,
		DemoPath:     cfg.DemoPath,
	})
	return &app{cfg: cfg, metrics: metrics, svc: svc, logger: logger}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
