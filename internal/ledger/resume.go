package ledger

import "os"

// ResumeChecks supplies the artifact predicates the classifier needs. Both
// are optional.
type ResumeChecks struct {
	// ReportExists reports whether the canonical verification report for an
	// issue exists. When nil, the entry's VerificationReportPath is checked
	// on disk (an empty path counts as missing).
	ReportExists func(issueKey string) bool
	// PatchBatchExists reports whether the patch batch an issue is blocked
	// on has been produced. When nil, no blocked entry is resumable.
	PatchBatchExists func(issueKey string) bool
}

// Rule names which branch of the classifier decided an entry.
type Rule string

// Classifier rules, in evaluation order.
const (
	RuleFresh             Rule = "fresh"
	RuleWaitingPatchBatch Rule = "waiting_patch_batch"
	RulePatchBatchReady   Rule = "patch_batch_ready"
	RuleNonRetryable      Rule = "non_retryable"
	RuleTransientFailure  Rule = "transient_failure"
	RuleHandledFailure    Rule = "handled_failure"
	RuleArtifactMissing   Rule = "artifact_missing"
	RuleAggregate         Rule = "aggregate"
	RuleArtifactPresent   Rule = "artifact_present"
	RuleNotEligible       Rule = "not_eligible"
)

// Resumability is the classifier verdict for one entry.
type Resumability struct {
	Resumable bool
	Rule      Rule
}

// Classify decides whether an interrupted entry should be retried. Entries
// are judged independently of each other.
//
// The order matters: the non-retryable check runs before the transient
// check so a fatal fingerprint can never come back through a timed-out or
// cancelled outcome.
func (l *Ledger) Classify(e *Entry, checks ResumeChecks) Resumability {
	if e == nil || e.IsFresh() {
		return Resumability{Resumable: false, Rule: RuleFresh}
	}

	if e.StatusLastObserved == l.blockedStatus {
		if checks.PatchBatchExists != nil && checks.PatchBatchExists(e.IssueKey) {
			return Resumability{Resumable: true, Rule: RulePatchBatchReady}
		}
		return Resumability{Resumable: false, Rule: RuleWaitingPatchBatch}
	}

	if l.IsNonRetryable(e.LastErrorFingerprint) {
		return Resumability{Resumable: false, Rule: RuleNonRetryable}
	}

	if e.LastErrorFingerprint != "" {
		if e.LastStepResult.IsTransient() {
			return Resumability{Resumable: true, Rule: RuleTransientFailure}
		}
		return Resumability{Resumable: false, Rule: RuleHandledFailure}
	}

	if e.LastStep.IsTerminalCheck() {
		if !l.IsImplementable(e.IssueType) {
			return Resumability{Resumable: false, Rule: RuleAggregate}
		}
		if !reportExists(e, checks) {
			return Resumability{Resumable: true, Rule: RuleArtifactMissing}
		}
		return Resumability{Resumable: false, Rule: RuleArtifactPresent}
	}

	return Resumability{Resumable: false, Rule: RuleNotEligible}
}

// ResumableEntries returns copies of the entries eligible for automatic
// retry, sorted by issue key.
func (l *Ledger) ResumableEntries(checks ResumeChecks) []*Entry {
	var out []*Entry
	for _, e := range l.Entries() {
		if l.Classify(e, checks).Resumable {
			out = append(out, e)
		}
	}
	return out
}

func reportExists(e *Entry, checks ResumeChecks) bool {
	if checks.ReportExists != nil {
		return checks.ReportExists(e.IssueKey)
	}
	if e.VerificationReportPath == "" {
		return false
	}
	_, err := os.Stat(e.VerificationReportPath)
	return err == nil
}
