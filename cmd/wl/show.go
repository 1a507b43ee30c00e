package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger/internal/ledger"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <issue-key>",
		Short: "Show the full ledger entry for an issue",
		Long: `Show the full ledger entry for an issue as YAML (or JSON with --json),
together with the resume verdict computed against the artifact directories.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			e, ok := ws.Ledger.Get(args[0])
			if !ok {
				return fmt.Errorf("%s: %w", args[0], ledger.ErrNotFound)
			}
			view := newEntryView(ws.Ledger, e, ws.Checks())
			if a.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), view)
			}
			return outputYAML(cmd.OutOrStdout(), view)
		},
	}
}
