package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/workledger/internal/git"
	"github.com/steveyegge/workledger/internal/tracker"
	"github.com/steveyegge/workledger/internal/ui"
)

// gateView is the read-only verdict set for one issue.
type gateView struct {
	IssueKey     string   `json:"issue_key"`
	ReportExists bool     `json:"report_exists"`
	ReportHash   string   `json:"report_hash,omitempty"`
	HeadSHA      string   `json:"head_sha,omitempty"`
	Verify       string   `json:"verify"`
	VerifyReason string   `json:"verify_reason"`
	Repair       string   `json:"repair"`
	AutoVerify   string   `json:"auto_verify"`
	ChangedFiles []string `json:"changed_files,omitempty"`
}

func newGateCmd(a *app) *cobra.Command {
	var (
		showFiles bool
		baseRef   string
	)
	cmd := &cobra.Command{
		Use:   "gate <issue-key>",
		Short: "Show what the verification gates would decide for an issue",
		Long: `Show what the verification, repair and auto-verify gates would decide for
an issue right now, using the report on disk and the HEAD commit of the
configured repository. Nothing is recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := args[0]
			ws, err := a.open()
			if err != nil {
				return err
			}

			var vcs tracker.VCS
			repo, err := git.Open(ctx, a.cfg.RepoDir)
			if err != nil {
				a.log.Warn("no repository, commit changes are not detected", "dir", a.cfg.RepoDir, "error", err)
			} else {
				vcs = repo
			}

			d, r := ws.VerifyDecision(ctx, key, vcs)
			view := gateView{
				IssueKey:     key,
				ReportExists: r.Exists,
				ReportHash:   r.Hash,
				HeadSHA:      r.HeadSHA,
				Verify:       verdict(d.Attempt),
				VerifyReason: d.Reason,
				Repair:       decisionLabel(ws.ShouldRepair(key, r.Hash)),
				AutoVerify:   decisionLabel(ws.ShouldAutoVerify(key)),
			}
			if showFiles && repo != nil {
				files, err := repo.DiffChangedFiles(ctx, baseRef)
				if err != nil {
					return err
				}
				view.ChangedFiles = files
			}

			if a.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), view)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s\n", ui.RenderKey(key))
			fmt.Fprintf(w, "Report:      %s\n", reportLabel(view))
			fmt.Fprintf(w, "HEAD:        %s\n", dash(view.HeadSHA))
			fmt.Fprintf(w, "Verify:      %s (%s)\n", view.Verify, view.VerifyReason)
			fmt.Fprintf(w, "Repair:      %s\n", view.Repair)
			fmt.Fprintf(w, "Auto-verify: %s\n", view.AutoVerify)
			if showFiles {
				fmt.Fprintf(w, "\n%s\n", ui.RenderCategory("Changed files"))
				for _, f := range view.ChangedFiles {
					fmt.Fprintf(w, "  %s\n", f)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showFiles, "files", false, "List files changed since --base")
	cmd.Flags().StringVar(&baseRef, "base", "HEAD", "Base ref for --files")
	return cmd
}

func verdict(attempt bool) string {
	if attempt {
		return "attempt"
	}
	return "skip"
}

func reportLabel(v gateView) string {
	if !v.ReportExists {
		return ui.RenderWarn("missing")
	}
	return "present " + ui.RenderMuted(shortHash(v.ReportHash))
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
