package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger"
	"github.com/steveyegge/workledger/internal/ledger"
)

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <issue-key>...",
		Short: "Forget ledger entries so the issues are processed from scratch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := a.confirm(
					fmt.Sprintf("Delete %d ledger entr%s?", len(args), plural(len(args), "y", "ies")),
					"The dispatcher will treat these issues as never seen.",
				)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
					return nil
				}
			}
			var deleted []string
			err := a.withLock(cmd.Context(), "wl delete", func(ws *workledger.Workspace) error {
				for _, key := range args {
					if !ws.Ledger.Delete(key) {
						return fmt.Errorf("%s: %w", key, ledger.ErrNotFound)
					}
					deleted = append(deleted, key)
				}
				return ws.Save(cmd.Context())
			})
			if err != nil {
				return err
			}
			a.log.Info("deleted ledger entries", "keys", deleted)
			if a.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), map[string]interface{}{"deleted": deleted})
			}
			for _, key := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
