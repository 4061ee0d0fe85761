package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time via ldflags.
var (
	version   = "dev"
	gitSHA    = ""
	buildTime = ""
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var gf globalFlags
	root := &cobra.Command{
		Use:           "driftradar",
		Short:         "Detect drift between a stated goal and recent behaviour",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&gf.configFile, "config", "", "YAML config file")
	pf.StringVar(&gf.provider, "provider", "", "LLM provider: google, anthropic or openai")
	pf.StringVar(&gf.model, "model", "", "model name (overrides config)")
	pf.StringVar(&gf.dataDir, "data-dir", "", "directory for the feedback store")
	pf.StringVar(&gf.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&gf.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newServeCmd(&gf),
		newAnalyzeCmd(&gf),
		newFeedbackCmd(&gf),
		newMCPCmd(&gf),
		newVersionCmd(&gf),
	)
	return root
}
