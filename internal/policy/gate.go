package policy

import "time"

// Reasons attached to gate decisions. They are stable strings so callers may
// log them or use them as metric attributes.
const (
	ReasonNoEntry         = "no_entry"
	ReasonReportMissing   = "report_missing"
	ReasonMissingCooldown = "report_missing_cooldown"
	ReasonContentChanged  = "content_changed"
	ReasonCommitChanged   = "commit_changed"
	ReasonCooldown        = "cooldown_active"
	ReasonReady           = "ready"
	ReasonSnoozed         = "snoozed"
)

// Decision is the result of a gate.
type Decision struct {
	Attempt bool
	Reason  string
}

func attempt(reason string) Decision { return Decision{Attempt: true, Reason: reason} }
func skip(reason string) Decision    { return Decision{Attempt: false, Reason: reason} }

// Report is the current state of a verification report artifact.
type Report struct {
	Exists bool
	// Hash is the content hash of the report; empty when it does not exist.
	Hash string
	// HeadSHA is the current HEAD commit, empty when unknown.
	HeadSHA string
}

// VerifyGate decides whether to run verification for an issue whose retry
// bookkeeping is c (nil when the issue has no ledger entry).
//
// Changed evidence (a new report hash or a new HEAD commit) bypasses any
// cooldown; only an unchanged situation waits the cooldown out. An operator
// snooze holds regardless of evidence.
func VerifyGate(c *Cycle, r Report, now time.Time) Decision {
	if c == nil {
		return attempt(ReasonNoEntry)
	}
	if c.Snoozed(now) {
		return skip(ReasonSnoozed)
	}
	if !r.Exists {
		if c.LastReason == ReasonReportMissing && c.InCooldown(now) {
			return skip(ReasonMissingCooldown)
		}
		return attempt(ReasonReportMissing)
	}
	if r.Hash != c.LastHash {
		return attempt(ReasonContentChanged)
	}
	if r.HeadSHA != "" && c.LastCommitSHA != "" && r.HeadSHA != c.LastCommitSHA {
		return attempt(ReasonCommitChanged)
	}
	if c.InCooldown(now) {
		return skip(ReasonCooldown)
	}
	return attempt(ReasonReady)
}

// ReconcileGate is VerifyGate keyed on a description fingerprint. There is no
// missing-artifact branch and no commit bypass: reconciliation depends on
// ticket content, not code.
func ReconcileGate(c *Cycle, fingerprint string, now time.Time) Decision {
	if c == nil {
		return attempt(ReasonNoEntry)
	}
	if c.Snoozed(now) {
		return skip(ReasonSnoozed)
	}
	if fingerprint != c.LastHash {
		return attempt(ReasonContentChanged)
	}
	if c.InCooldown(now) {
		return skip(ReasonCooldown)
	}
	return attempt(ReasonReady)
}

// NeedsComment reports whether (reason, hash) differs from the pair that was
// last posted. A nil cycle always needs a comment.
func NeedsComment(c *Cycle, reason, hash string) bool {
	if c == nil {
		return true
	}
	return reason != c.LastCommentedReason || hash != c.LastCommentedHash
}

// ClaimComment is NeedsComment that also records the pair when it returns
// true, so an immediate second call with the same pair returns false.
func (c *Cycle) ClaimComment(reason, hash string) bool {
	if !NeedsComment(c, reason, hash) {
		return false
	}
	c.LastCommentedReason = reason
	c.LastCommentedHash = hash
	return true
}
