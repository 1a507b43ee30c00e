package main

import (
	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger/internal/ledger"
	"github.com/steveyegge/workledger/internal/ui"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "summary",
		Aliases: []string{"list", "ls"},
		Short:   "Show every ledger entry and its resume verdict",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			if a.jsonOutput {
				checks := ws.Checks()
				views := make([]entryView, 0, ws.Ledger.Len())
				for _, e := range ws.Ledger.Entries() {
					views = append(views, newEntryView(ws.Ledger, e, checks))
				}
				return outputJSON(cmd.OutOrStdout(), views)
			}
			return ui.ToPager(ui.RenderMarkdown(ws.Summary()), ui.PagerOptions{NoPager: a.noPager, Out: cmd.OutOrStdout()})
		},
	}
}

func newEntryView(l *ledger.Ledger, e *ledger.Entry, checks ledger.ResumeChecks) entryView {
	r := l.Classify(e, checks)
	return entryView{Entry: e, Resumable: r.Resumable, Rule: r.Rule}
}
