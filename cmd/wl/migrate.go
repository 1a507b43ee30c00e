package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger/internal/lockfile"
	"github.com/steveyegge/workledger/internal/statedir"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move a legacy ledger file into the state directory",
		Long: `Move a ledger written by older versions (a ` + statedir.LegacyLedgerName + ` file next
to the state directory, or ledger.json at its root) to its current location.
The old file is kept with a ` + statedir.MigratedSuffix + ` suffix. Running it again is a no-op.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := statedir.Resolve(a.cfg)
			if err != nil {
				return err
			}
			lock, err := lockfile.AcquireWait(cmd.Context(), paths.Lock, "wl migrate", lockWait)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			m, err := statedir.MigrateLegacy(paths, a.log)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), map[string]interface{}{
					"migrated": m.Migrated,
					"from":     m.From,
					"to":       m.To,
				})
			}
			if !m.Migrated {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to migrate.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s -> %s\n", m.From, m.To)
			return nil
		},
	}
}
