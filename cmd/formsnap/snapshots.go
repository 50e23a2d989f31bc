package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Jumpaku/go-formsnap/store"
)

func newSnapshotsCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List stored snapshots",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			app, err := e.newApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			entries, err := app.Snapshots(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(e.out, styleWarning.Render("No snapshots in "+e.cfg.OutputDir))
				return nil
			}
			return pterm.DefaultTable.
				WithHasHeader().
				WithWriter(e.out).
				WithData(snapshotRows(entries)).
				Render()
		},
	}
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Only list snapshots whose names start with prefix.")
	return cmd
}

func snapshotRows(entries []store.Entry) [][]string {
	rows := [][]string{{"Name", "Size", "Modified"}}
	return append(rows, lo.Map(entries, func(e store.Entry, _ int) []string {
		modified := ""
		if !e.ModTime.IsZero() {
			modified = humanize.Time(e.ModTime)
		}
		return []string{e.Name, humanize.Bytes(uint64(e.Size)), modified}
	})...)
}
