package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger"
	"github.com/steveyegge/workledger/internal/ledger"
	"github.com/steveyegge/workledger/internal/timeparsing"
)

const (
	cycleVerify    = "verify"
	cycleReconcile = "reconcile"
)

func newSnoozeCmd(a *app) *cobra.Command {
	var (
		cycle string
		until string
	)
	cmd := &cobra.Command{
		Use:   "snooze <issue-key>",
		Short: "Push back the next verification or reconciliation attempt",
		Long: `Push back the next verification or reconciliation attempt for an issue.
Until the snooze expires the gate skips with reason "snoozed", even when the
report is missing or its content changed. Failure cooldowns are not touched.

--until accepts a compact duration (3d, 2w), a Go duration (1h30m, 45m30s),
an absolute time (2025-02-01, 2025-02-01T09:00), or natural language
("next monday", "in 3 hours"). The time must be in the future.`,
		Example: `  wl snooze KAN-12 --until 2d
  wl snooze KAN-7 --cycle reconcile --until "next monday"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			at, err := timeparsing.ParseFuture(until, a.now())
			if err != nil {
				if errors.Is(err, timeparsing.ErrNotFuture) {
					return fmt.Errorf("--until %q: %w", until, err)
				}
				return fmt.Errorf("--until %q: cannot parse time", until)
			}

			err = a.withLock(cmd.Context(), "wl snooze", func(ws *workledger.Workspace) error {
				var ok bool
				switch cycle {
				case cycleVerify:
					ok = ws.Ledger.SnoozeVerify(key, at)
				case cycleReconcile:
					ok = ws.Ledger.SnoozeReconcile(key, at)
				default:
					return fmt.Errorf("unknown --cycle %q (want %s or %s)", cycle, cycleVerify, cycleReconcile)
				}
				if !ok {
					return fmt.Errorf("%s: %w", key, ledger.ErrNotFound)
				}
				return ws.Save(cmd.Context())
			})
			if err != nil {
				return err
			}

			a.log.Info("snoozed", "issue", key, "cycle", cycle, "until", at.Format(time.RFC3339))
			if a.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), map[string]string{
					"issue_key": key,
					"cycle":     cycle,
					"until":     at.UTC().Format(time.RFC3339),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snoozed %s %s until %s\n", key, cycle, at.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&cycle, "cycle", cycleVerify, "Cycle to snooze: verify or reconcile")
	cmd.Flags().StringVar(&until, "until", "", "When the next attempt may run")
	_ = cmd.MarkFlagRequired("until")
	return cmd
}
