package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/render"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/timeline"
)

type analyzeFlags struct {
	signals       string
	ensemble      bool
	modes         []string
	thinkingLevel string
	format        string
	out           string
	failOnDrift   bool
}

func newAnalyzeCmd(gf *globalFlags) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a signals timeline once, or as an ensemble",
		Example: `  driftradar analyze --signals testdata/demo/signals.json
  driftradar analyze --signals timeline.json --ensemble --modes low,high --format markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(gf)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), a, f, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.signals, "signals", "", `signals file, JSON or a Markdown journal ("-" for stdin)`)
	fl.BoolVar(&f.ensemble, "ensemble", false, "run every mode in parallel and report the consensus")
	fl.StringSliceVar(&f.modes, "modes", nil, "ensemble modes (default low,medium,high)")
	fl.StringVar(&f.thinkingLevel, "thinking-level", "", "thinking level for a single run: low, medium or high")
	fl.StringVar(&f.format, "format", "json", "output format: json, markdown or text")
	fl.StringVar(&f.out, "out", "", "write output to this file instead of stdout")
	fl.BoolVar(&f.failOnDrift, "fail-on-drift", false, "exit 2 when drift is detected")
	return cmd
}

func runAnalyze(ctx context.Context, a *app, f analyzeFlags, stdin io.Reader, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.signals == "" {
		return badInput("--signals is required")
	}
	format, err := render.ParseFormat(f.format)
	if err != nil {
		return badInput("%v", err)
	}
	req, err := readSignals(f.signals, stdin)
	if err != nil {
		return err
	}
	if f.thinkingLevel != "" {
		level, ok := schema.ParseThinkingLevel(f.thinkingLevel)
		if !ok {
			return badInput("unknown --thinking-level %q", f.thinkingLevel)
		}
		s := req.EffectiveSettings()
		s.ThinkingLevel = level
		req.Settings = &s
	}

	var (
		out     string
		drifted bool
	)
	if f.ensemble {
		resp, err := a.svc.Ensemble(ctx, schema.EnsembleRequest{
			Signals:  req.Signals,
			Settings: req.Settings,
			Feedback: req.Feedback,
			Modes:    normalizeModes(f.modes),
		})
		if err != nil {
			return analysisExit(err)
		}
		drifted = resp.Consensus.DriftDetected
		out, err = render.Ensemble(resp, format)
		if err != nil {
			return err
		}
	} else {
		j, err := a.svc.Analyze(ctx, req)
		if err != nil {
			return analysisExit(err)
		}
		drifted = j.DriftDetected
		out, err = render.Judgment(j, format)
		if err != nil {
			return err
		}
	}

	if err := writeOutput(f.out, stdout, out); err != nil {
		return err
	}
	if f.failOnDrift && drifted {
		return exitWith(exitCodeDrift, fmt.Errorf("drift detected"))
	}
	return nil
}

func readSignals(path string, stdin io.Reader) (schema.AnalyzeRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return schema.AnalyzeRequest{}, badInput("read signals: %v", err)
	}
	req, err := timeline.Decode(data)
	if err != nil {
		return schema.AnalyzeRequest{}, badInput("%v", err)
	}
	return req, nil
}

func normalizeModes(modes []string) []string {
	var out []string
	for _, m := range modes {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			out = append(out, m)
		}
	}
	return out
}

func writeOutput(path string, stdout io.Writer, s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	if path == "" {
		_, err := io.WriteString(stdout, s)
		return err
	}
	if err := os.WriteFile(path, []byte(s), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
