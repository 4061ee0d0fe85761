package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newVersionCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and model information",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(gf)
			if err != nil {
				return err
			}
			return printVersion(cmd.OutOrStdout(), cfg.Provider, cfg.Model, cfg.GitSHA, cfg.BuildTime)
		},
	}
}

func printVersion(w io.Writer, provider, model, sha, built string) error {
	_, err := fmt.Fprintf(w, "driftradar %s\ncommit: %s\nbuilt: %s\nprovider: %s\nmodel: %s\n",
		version, sha, built, provider, model)
	return err
}
