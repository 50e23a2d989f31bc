package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Jumpaku/go-formsnap"
)

func newFetchCmd() *cobra.Command {
	var req formsnap.FetchRequest
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a form structure and save it as a snapshot",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			app, err := e.newApp(cmd.Context(), true, false)
			if err != nil {
				return err
			}

			formID := req.FormID
			if formID == "" {
				formID = e.cfg.FormID
			}
			spinner, _ := pterm.DefaultSpinner.
				WithWriter(e.out).
				WithRemoveWhenDone(true).
				Start("Fetching form " + formID + " ...")
			res, err := app.Fetch(cmd.Context(), req)
			if spinner != nil {
				_ = spinner.Stop()
			}
			if err != nil {
				return err
			}
			printFetchResult(e, res)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&req.FormID, "form-id", "f", "", "Form to fetch. Defaults to the configured form.")
	flags.StringVarP(&req.DateStamp, "date", "d", "", "Date stamp of the snapshot name as YYMMDD. Defaults to today.")
	flags.StringVarP(&req.Prefix, "prefix", "p", "", "Snapshot name prefix. Defaults to the configured prefix.")
	flags.StringVarP(&req.Output, "output", "o", "", "Write the snapshot to this path instead of the generated name.")
	return cmd
}

func printFetchResult(e *env, res formsnap.FetchResult) {
	fmt.Fprintln(e.out, styleSuccess.Render("Saved "+res.Path))
	fmt.Fprintf(e.out, "  Title: %s\n", styleTitle.Render(res.Schema.Title))
	fmt.Fprintf(e.out, "  Items: %d\n", res.Schema.ItemCount)
	fmt.Fprintf(e.out, "  Size:  %s\n", humanize.Bytes(uint64(res.Put.Size)))
	if res.Put.Unchanged {
		fmt.Fprintln(e.out, styleMuted.Render("  Unchanged since the previous snapshot of the same name."))
	}
}
