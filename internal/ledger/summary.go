package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Summarize returns a markdown dump of the ledger for operators. The
// classifier runs with no artifact checks, so entries waiting on a report
// file are judged by their recorded report path.
func (l *Ledger) Summarize() string {
	return l.SummarizeWith(ResumeChecks{})
}

// SummarizeWith is Summarize with explicit artifact checks.
func (l *Ledger) SummarizeWith(checks ResumeChecks) string {
	entries := l.Entries()

	var sb strings.Builder
	sb.WriteString("# Work ledger\n\n")
	fmt.Fprintf(&sb, "- **File:** `%s`\n", l.Path())
	fmt.Fprintf(&sb, "- **Entries:** %d\n", len(entries))
	if err := l.LoadErr(); err != nil {
		fmt.Fprintf(&sb, "- **Load error:** %s\n", err)
	}
	if len(entries) == 0 {
		sb.WriteString("\nNo entries.\n")
		return sb.String()
	}

	resumable := 0
	sb.WriteString("\n| Issue | Type | Status | Last step | Result | Error | Resume |\n")
	sb.WriteString("|---|---|---|---|---|---|---|\n")
	for _, e := range entries {
		r := l.Classify(e, checks)
		resume := string(r.Rule)
		if r.Resumable {
			resumable++
			resume = "yes (" + resume + ")"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s | %s | %s |\n",
			e.IssueKey,
			dash(string(e.IssueType)),
			dash(e.StatusLastObserved),
			dash(string(e.LastStep)),
			dash(string(e.LastStepResult)),
			dash(shortFP(e.LastErrorFingerprint)),
			resume,
		)
	}
	fmt.Fprintf(&sb, "\n%d of %d entries resumable.\n", resumable, len(entries))

	now := l.now()
	var cooling []string
	for _, e := range entries {
		if e.VerifyNextAt != nil && now.Before(*e.VerifyNextAt) {
			cooling = append(cooling, fmt.Sprintf("- %s verify until %s (%s)", e.IssueKey, e.VerifyNextAt.Format(time.RFC3339), dash(e.VerifyLastReason)))
		}
		if e.ReconcileNextAt != nil && now.Before(*e.ReconcileNextAt) {
			cooling = append(cooling, fmt.Sprintf("- %s reconcile until %s (%s)", e.IssueKey, e.ReconcileNextAt.Format(time.RFC3339), dash(e.ReconcileLastReason)))
		}
		if e.VerifySnoozedUntil != nil && now.Before(*e.VerifySnoozedUntil) {
			cooling = append(cooling, fmt.Sprintf("- %s verify snoozed until %s", e.IssueKey, e.VerifySnoozedUntil.Format(time.RFC3339)))
		}
		if e.ReconcileSnoozedUntil != nil && now.Before(*e.ReconcileSnoozedUntil) {
			cooling = append(cooling, fmt.Sprintf("- %s reconcile snoozed until %s", e.IssueKey, e.ReconcileSnoozedUntil.Format(time.RFC3339)))
		}
	}
	if len(cooling) > 0 {
		sb.WriteString("\n## Cooldowns\n\n")
		sb.WriteString(strings.Join(cooling, "\n"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortFP(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
