package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger"
	_ "github.com/steveyegge/workledger/internal/jira" // registers the jira tracker
	"github.com/steveyegge/workledger/internal/manifest"
	"github.com/steveyegge/workledger/internal/tracker"
	"github.com/steveyegge/workledger/internal/types"
	"github.com/steveyegge/workledger/internal/ui"
)

// observation is what "wl observe" learned about one issue.
type observation struct {
	IssueKey           string          `json:"issue_key"`
	Summary            string          `json:"summary"`
	IssueType          types.IssueType `json:"issue_type"`
	Status             string          `json:"status"`
	Done               bool            `json:"done"`
	ParentKey          string          `json:"parent_key,omitempty"`
	Transitioned       bool            `json:"transitioned,omitempty"`
	AcceptanceCriteria []string        `json:"acceptance_criteria"`
	Decompose          *decomposeView  `json:"decompose,omitempty"`
	Reconcile          string          `json:"reconcile,omitempty"`
}

type decomposeView struct {
	ShouldAct bool                `json:"should_act"`
	Mode      types.DecomposeMode `json:"mode"`
}

type parentKeyer interface {
	ParentKey() string
}

func newObserveCmd(a *app) *cobra.Command {
	var (
		trackerName string
		transition  string
	)
	cmd := &cobra.Command{
		Use:   "observe <issue-key>",
		Short: "Fetch an issue from the tracker and record its status",
		Long: `Fetch an issue from the tracker, create its ledger entry if needed, and
record the status it is in. For aggregate issues (epics and ideas) the
decomposition and reconciliation verdicts are reported too; nothing is
decomposed.

With --transition the issue is first moved to the named status.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := args[0]

			tr, err := a.newTracker(trackerName, tracker.Settings{
				URL:     a.cfg.Jira.URL,
				User:    a.cfg.Jira.User,
				Token:   a.cfg.Jira.Token,
				Timeout: a.cfg.Jira.Timeout,
			})
			if err != nil {
				return err
			}

			var obs observation
			if transition != "" {
				moved, err := tr.TransitionIssue(ctx, key, transition)
				if err != nil {
					return err
				}
				if !moved {
					return fmt.Errorf("%s: no transition leads to %q", key, transition)
				}
				obs.Transitioned = true
			}

			issue, err := tr.GetIssue(ctx, key)
			if err != nil {
				return err
			}
			if issue == nil {
				return fmt.Errorf("%s: not found in %s", key, tr.Name())
			}
			obs.IssueKey = issue.Key()
			obs.Summary = issue.Summary()
			obs.IssueType = types.ParseIssueType(issue.IssueType())
			obs.Status = issue.StatusName()
			obs.Done = tracker.IsDone(issue)
			obs.AcceptanceCriteria = manifest.ExtractAcceptanceCriteria(issue.Description())
			if obs.AcceptanceCriteria == nil {
				obs.AcceptanceCriteria = []string{}
			}
			if p, ok := issue.(parentKeyer); ok {
				obs.ParentKey = p.ParentKey()
			}

			err = a.withLock(ctx, "wl observe", func(ws *workledger.Workspace) error {
				if _, err := ws.Ledger.Ensure(obs.IssueKey, obs.IssueType); err != nil {
					return err
				}
				ws.Ledger.Update(obs.IssueKey, func(e *workledger.Entry) {
					e.StatusLastObserved = obs.Status
					if obs.IssueType != "" {
						e.IssueType = obs.IssueType
					}
					if obs.ParentKey != "" {
						e.ParentKey = obs.ParentKey
					}
				})
				if obs.IssueType.IsAggregate() {
					d := ws.ShouldDecompose(ctx, obs.IssueKey, issue.Description(), false)
					obs.Decompose = &decomposeView{ShouldAct: d.ShouldAct, Mode: d.Mode}
					rd, _ := ws.ReconcileDecision(ctx, obs.IssueKey, issue.Description())
					obs.Reconcile = decisionLabel(rd)
				}
				return ws.Save(ctx)
			})
			if err != nil {
				return err
			}

			a.log.Debug("observed issue", "issue", obs.IssueKey, "status", obs.Status)
			if a.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), obs)
			}
			return renderObservation(cmd.OutOrStdout(), obs)
		},
	}
	cmd.Flags().StringVar(&trackerName, "tracker", "jira", "Tracker adapter to use")
	cmd.Flags().StringVar(&transition, "transition", "", "Move the issue to this status first")
	return cmd
}

func renderObservation(w io.Writer, obs observation) error {
	status := ui.RenderWarn(obs.Status)
	if obs.Done {
		status = ui.RenderAccent(obs.Status)
	}
	fmt.Fprintf(w, "%s %s\n", ui.RenderKey(obs.IssueKey), obs.Summary)
	fmt.Fprintf(w, "Type:   %s\n", dash(string(obs.IssueType)))
	fmt.Fprintf(w, "Status: %s\n", status)
	if obs.ParentKey != "" {
		fmt.Fprintf(w, "Parent: %s\n", obs.ParentKey)
	}
	if len(obs.AcceptanceCriteria) > 0 {
		fmt.Fprintf(w, "\n%s\n", ui.RenderCategory("Acceptance criteria"))
		for _, c := range obs.AcceptanceCriteria {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}
	if obs.Decompose != nil {
		verdict := "skip"
		if obs.Decompose.ShouldAct {
			verdict = "run"
		}
		fmt.Fprintf(w, "\nDecompose: %s (%s)\n", verdict, obs.Decompose.Mode)
	}
	if obs.Reconcile != "" {
		fmt.Fprintf(w, "Reconcile: %s\n", obs.Reconcile)
	}
	return nil
}

func decisionLabel(d workledger.Decision) string {
	if d.Attempt {
		return "attempt (" + d.Reason + ")"
	}
	return "skip (" + d.Reason + ")"
}
