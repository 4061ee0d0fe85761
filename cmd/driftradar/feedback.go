package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/prabhakaran-jm/intent-drift-radar/internal/render"
	"github.com/prabhakaran-jm/intent-drift-radar/internal/schema"
)

func newFeedbackCmd(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record or list feedback on past analyses",
	}
	cmd.AddCommand(newFeedbackAddCmd(gf), newFeedbackListCmd(gf))
	return cmd
}

func newFeedbackAddCmd(gf *globalFlags) *cobra.Command {
	var entry schema.FeedbackEntry
	var verdict string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Confirm or reject an analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(gf)
			if err != nil {
				return err
			}
			entry.Verdict = schema.FeedbackVerdict(verdict)
			return runFeedbackAdd(a, entry, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&entry.AnalysisID, "analysis-id", "", "analysis id being rated")
	cmd.Flags().StringVar(&verdict, "verdict", "", "confirm or reject")
	cmd.Flags().StringVar(&entry.Comment, "comment", "", "optional comment")
	return cmd
}

func runFeedbackAdd(a *app, entry schema.FeedbackEntry, w io.Writer) error {
	saved, err := a.svc.AddFeedback(entry)
	if err != nil {
		if schema.CodeOf(err) == schema.CodeInvalidRequest {
			return exitWith(exitCodeBadInput, err)
		}
		return err
	}
	_, err = fmt.Fprintf(w, "saved %s %s at %s\n", saved.AnalysisID, saved.Verdict, saved.CreatedAt)
	return err
}

func newFeedbackListCmd(gf *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(gf)
			if err != nil {
				return err
			}
			return runFeedbackList(a, format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: json, markdown or text")
	return cmd
}

func runFeedbackList(a *app, format string, w io.Writer) error {
	f, err := render.ParseFormat(format)
	if err != nil {
		return badInput("%v", err)
	}
	out, err := render.Feedback(a.svc.Feedback(), f)
	if err != nil {
		return err
	}
	return writeOutput("", w, out)
}
