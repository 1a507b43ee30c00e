package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger/internal/ledger"
	"github.com/steveyegge/workledger/internal/ui"
)

func newResumableCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "resumable",
		Short: "List the entries the dispatcher will retry",
		Long: `List the entries the resumability classifier would hand back to the
dispatcher. With --all every entry is shown with the rule that decided it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := a.open()
			if err != nil {
				return err
			}
			checks := ws.Checks()
			var views []entryView
			for _, e := range ws.Ledger.Entries() {
				v := newEntryView(ws.Ledger, e, checks)
				if all || v.Resumable {
					views = append(views, v)
				}
			}
			if a.jsonOutput {
				if views == nil {
					views = []entryView{}
				}
				return outputJSON(cmd.OutOrStdout(), views)
			}
			return renderResumable(cmd.OutOrStdout(), views)
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Show every entry, not just resumable ones")
	return cmd
}

func renderResumable(w io.Writer, views []entryView) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, ui.RenderMuted("Nothing to resume."))
		return err
	}

	// Styled text goes in the last column only so tab alignment holds.
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ISSUE\tTYPE\tSTEP\tRESULT\tRULE")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.IssueKey,
			dash(string(v.IssueType)),
			dash(string(v.LastStep)),
			dash(string(v.LastStepResult)),
			ruleLabel(v),
		)
	}
	return tw.Flush()
}

func ruleLabel(v entryView) string {
	if v.Resumable {
		return ui.RenderAccent(string(v.Rule))
	}
	if v.Rule == ledger.RuleNonRetryable {
		return ui.RenderFail(string(v.Rule))
	}
	return ui.RenderMuted(string(v.Rule))
}
