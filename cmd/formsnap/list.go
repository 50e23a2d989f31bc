package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Jumpaku/go-formsnap/schema"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the forms linked to the spreadsheet",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			app, err := e.newApp(cmd.Context(), true, false)
			if err != nil {
				return err
			}
			refs, err := app.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				fmt.Fprintln(e.out, styleWarning.Render("No linked forms found."))
				return nil
			}
			return pterm.DefaultTable.
				WithHasHeader().
				WithWriter(e.out).
				WithData(formRefRows(refs)).
				Render()
		},
	}
}

func formRefRows(refs []schema.FormRef) [][]string {
	rows := [][]string{{"Sheet", "Form ID", "URL"}}
	return append(rows, lo.Map(refs, func(r schema.FormRef, _ int) []string {
		return []string{r.SheetName, r.FormID, r.FormURL}
	})...)
}
