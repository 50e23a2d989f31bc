package main

import (
	"fmt"
	"io"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Jumpaku/go-formsnap"
	"github.com/Jumpaku/go-formsnap/restore"
	"github.com/Jumpaku/go-formsnap/schema"
)

const formEditURL = "https://docs.google.com/forms/d/%s/edit"

func newRestoreCmd() *cobra.Command {
	var (
		dryRun      bool
		target      string
		appendItems bool
		yes         bool
	)
	cmd := &cobra.Command{
		Use:   "restore <snapshot>",
		Short: "Rebuild a form from a snapshot",
		Long: `Rebuild a form from a snapshot.

Without --target a new form is created. With --target the existing form is
overwritten, or extended with --append. Items that cannot be restored are
reported and do not stop the run.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			ctx := cmd.Context()
			req := formsnap.RestoreRequest{Path: args[0], TargetFormID: target}
			if appendItems {
				req.Policy = string(restore.PolicyAppend)
			}

			if dryRun {
				app, err := e.newApp(ctx, false, false)
				if err != nil {
					return err
				}
				s, err := app.Inspect(ctx, req.Path)
				if err != nil {
					return err
				}
				printDryRun(e.out, s)
				return nil
			}

			if target != "" && !yes && !appendItems && e.cfg.Policy != string(restore.PolicyAppend) {
				ok, err := confirmOverwrite(target)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(e.out, styleWarning.Render("Restore cancelled."))
					return nil
				}
			}

			app, err := e.newApp(ctx, false, true)
			if err != nil {
				return err
			}
			report, err := app.Restore(ctx, req)
			if report.TargetFormID != "" {
				printReport(e.out, report)
			}
			return err
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&dryRun, "dry-run", false, "Print the snapshot contents without touching any form.")
	flags.StringVarP(&target, "target", "t", "", "Existing form to restore into.")
	flags.BoolVar(&appendItems, "append", false, "Add the items after the existing items of the target.")
	flags.BoolVarP(&yes, "yes", "y", false, "Do not ask before overwriting the target.")
	return cmd
}

func confirmOverwrite(formID string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("Replace the title, description and all items of form %s?", formID),
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	return ok, nil
}

func printDryRun(w io.Writer, s schema.Schema) {
	fmt.Fprintf(w, "Title: %s\n", styleTitle.Render(s.Title))
	fmt.Fprintf(w, "Items: %d\n", s.ItemCount)
	for _, line := range dryRunLines(s) {
		fmt.Fprintln(w, line)
	}
}

func dryRunLines(s schema.Schema) []string {
	lines := make([]string, 0, len(s.Items))
	for i, item := range s.Items {
		lines = append(lines, fmt.Sprintf("  %2d. [%-20s] %s", i+1, item.OriginalType(), item.Title))
	}
	return lines
}

func printReport(w io.Writer, r restore.Report) {
	verb := "Restored into"
	if r.Created {
		verb = "Created"
	}
	fmt.Fprintln(w, styleSuccess.Render(fmt.Sprintf("%s form %s", verb, r.TargetFormID)))
	fmt.Fprintln(w, styleMuted.Render("  "+fmt.Sprintf(formEditURL, r.TargetFormID)))
	fmt.Fprintf(w, "  Succeeded: %d  Failed: %d  Skipped: %d\n", len(r.Succeeded), len(r.Failed), len(r.Skipped))
	for _, f := range r.Failed {
		fmt.Fprintln(w, styleError.Render(fmt.Sprintf("  item %d %q: %v", f.Index+1, f.Title, f.Err)))
	}
	for _, warning := range r.Warnings {
		fmt.Fprintln(w, styleWarning.Render("  "+warning))
	}
	if r.Interrupted {
		fmt.Fprintln(w, styleWarning.Render("  Interrupted before all items were processed."))
	}
}
