package ledger

import (
	"slices"
	"time"

	"github.com/steveyegge/workledger/internal/policy"
	"github.com/steveyegge/workledger/internal/types"
)

// Entry is the execution state of one tracked issue. Every field except
// IssueKey is optional; missing fields in older files load as zero values.
type Entry struct {
	IssueKey           string          `json:"issue_key"`
	IssueType          types.IssueType `json:"issue_type,omitempty"`
	ParentKey          string          `json:"parent_key,omitempty"`
	StatusLastObserved string          `json:"status_last_observed,omitempty"`

	LastStep       types.Step       `json:"last_step,omitempty"`
	LastStepResult types.StepResult `json:"last_step_result,omitempty"`
	Children       []string         `json:"children,omitempty"`

	LastErrorFingerprint string     `json:"last_error_fingerprint,omitempty"`
	LastErrorAt          *time.Time `json:"last_error_at,omitempty"`

	// Escalation bookkeeping: the error fingerprint that was last handed to a
	// human, so the same failure is escalated once.
	EscalatedFingerprint string     `json:"escalated_fingerprint,omitempty"`
	EscalatedAt          *time.Time `json:"escalated_at,omitempty"`

	VerificationReportPath string `json:"verification_report_path,omitempty"`

	// Verification cycle
	VerifyNextAt                  *time.Time `json:"verify_next_at,omitempty"`
	VerifyLastReason              string     `json:"verify_last_reason,omitempty"`
	VerifyLastReportHash          string     `json:"verify_last_report_hash,omitempty"`
	VerifyLastCommitSHA           string     `json:"verify_last_commit_sha,omitempty"`
	VerifyLastCommentedReason     string     `json:"verify_last_commented_reason,omitempty"`
	VerifyLastCommentedReportHash string     `json:"verify_last_commented_report_hash,omitempty"`
	VerifyFailures                int        `json:"verify_failures,omitempty"`
	VerifySnoozedUntil            *time.Time `json:"verify_snoozed_until,omitempty"`

	// Repair cycle
	VerifyRepairAppliedAt      *time.Time `json:"verify_repair_applied_at,omitempty"`
	VerifyRepairLastReportHash string     `json:"verify_repair_last_report_hash,omitempty"`
	VerifyRepairCount          int        `json:"verify_repair_count,omitempty"`

	// Reconciliation cycle
	ReconcileNextAt                   *time.Time `json:"reconcile_next_at,omitempty"`
	ReconcileLastReason               string     `json:"reconcile_last_reason,omitempty"`
	ReconcileLastFingerprint          string     `json:"reconcile_last_fingerprint,omitempty"`
	ReconcileLastCommentedReason      string     `json:"reconcile_last_commented_reason,omitempty"`
	ReconcileLastCommentedFingerprint string     `json:"reconcile_last_commented_fingerprint,omitempty"`
	ReconcileFailures                 int        `json:"reconcile_failures,omitempty"`
	ReconcileSnoozedUntil             *time.Time `json:"reconcile_snoozed_until,omitempty"`

	// Loop safety
	AutoVerifyRuns  int        `json:"auto_verify_runs,omitempty"`
	AutoFixAttempts int        `json:"auto_fix_attempts,omitempty"`
	LastFailureHash string     `json:"last_failure_hash,omitempty"`
	LastFailureType string     `json:"last_failure_type,omitempty"`
	LastFailureAt   *time.Time `json:"last_failure_at,omitempty"`

	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Children = slices.Clone(e.Children)
	c.LastErrorAt = cloneTime(e.LastErrorAt)
	c.EscalatedAt = cloneTime(e.EscalatedAt)
	c.VerifyNextAt = cloneTime(e.VerifyNextAt)
	c.VerifySnoozedUntil = cloneTime(e.VerifySnoozedUntil)
	c.VerifyRepairAppliedAt = cloneTime(e.VerifyRepairAppliedAt)
	c.ReconcileNextAt = cloneTime(e.ReconcileNextAt)
	c.ReconcileSnoozedUntil = cloneTime(e.ReconcileSnoozedUntil)
	c.LastFailureAt = cloneTime(e.LastFailureAt)
	c.UpdatedAt = cloneTime(e.UpdatedAt)
	return &c
}

// IsFresh reports whether no pipeline step has been attempted yet.
func (e *Entry) IsFresh() bool {
	return e.LastStep == types.StepNone
}

// AddChild appends key to Children unless it is already present.
func (e *Entry) AddChild(key string) bool {
	if key == "" || slices.Contains(e.Children, key) {
		return false
	}
	e.Children = append(e.Children, key)
	return true
}

// VerifyCycle returns the verification retry state as a policy.Cycle.
func (e *Entry) VerifyCycle() policy.Cycle {
	return policy.Cycle{
		NextAt:              cloneTime(e.VerifyNextAt),
		LastReason:          e.VerifyLastReason,
		LastHash:            e.VerifyLastReportHash,
		LastCommitSHA:       e.VerifyLastCommitSHA,
		LastCommentedReason: e.VerifyLastCommentedReason,
		LastCommentedHash:   e.VerifyLastCommentedReportHash,
		Failures:            e.VerifyFailures,
		SnoozedUntil:        cloneTime(e.VerifySnoozedUntil),
	}
}

// SetVerifyCycle stores c into the verification fields.
func (e *Entry) SetVerifyCycle(c policy.Cycle) {
	e.VerifyNextAt = cloneTime(c.NextAt)
	e.VerifyLastReason = c.LastReason
	e.VerifyLastReportHash = c.LastHash
	e.VerifyLastCommitSHA = c.LastCommitSHA
	e.VerifyLastCommentedReason = c.LastCommentedReason
	e.VerifyLastCommentedReportHash = c.LastCommentedHash
	e.VerifyFailures = c.Failures
	e.VerifySnoozedUntil = cloneTime(c.SnoozedUntil)
}

// ReconcileCycle returns the reconciliation retry state as a policy.Cycle.
func (e *Entry) ReconcileCycle() policy.Cycle {
	return policy.Cycle{
		NextAt:              cloneTime(e.ReconcileNextAt),
		LastReason:          e.ReconcileLastReason,
		LastHash:            e.ReconcileLastFingerprint,
		LastCommentedReason: e.ReconcileLastCommentedReason,
		LastCommentedHash:   e.ReconcileLastCommentedFingerprint,
		Failures:            e.ReconcileFailures,
		SnoozedUntil:        cloneTime(e.ReconcileSnoozedUntil),
	}
}

// SetReconcileCycle stores c into the reconciliation fields. LastCommitSHA
// has no reconciliation counterpart and is dropped.
func (e *Entry) SetReconcileCycle(c policy.Cycle) {
	e.ReconcileNextAt = cloneTime(c.NextAt)
	e.ReconcileLastReason = c.LastReason
	e.ReconcileLastFingerprint = c.LastHash
	e.ReconcileLastCommentedReason = c.LastCommentedReason
	e.ReconcileLastCommentedFingerprint = c.LastCommentedHash
	e.ReconcileFailures = c.Failures
	e.ReconcileSnoozedUntil = cloneTime(c.SnoozedUntil)
}

// RepairState returns the repair bookkeeping.
func (e *Entry) RepairState() policy.RepairState {
	return policy.RepairState{
		AppliedAt:      cloneTime(e.VerifyRepairAppliedAt),
		LastReportHash: e.VerifyRepairLastReportHash,
		Count:          e.VerifyRepairCount,
	}
}

// SetRepairState stores s into the repair fields.
func (e *Entry) SetRepairState(s policy.RepairState) {
	e.VerifyRepairAppliedAt = cloneTime(s.AppliedAt)
	e.VerifyRepairLastReportHash = s.LastReportHash
	e.VerifyRepairCount = s.Count
}

// LoopState returns the auto-verify/auto-fix counters.
func (e *Entry) LoopState() policy.LoopState {
	return policy.LoopState{
		AutoVerifyRuns:  e.AutoVerifyRuns,
		AutoFixAttempts: e.AutoFixAttempts,
		LastFailureHash: e.LastFailureHash,
		LastFailureType: e.LastFailureType,
		LastFailureAt:   cloneTime(e.LastFailureAt),
	}
}

// SetLoopState stores s into the loop-safety fields.
func (e *Entry) SetLoopState(s policy.LoopState) {
	e.AutoVerifyRuns = s.AutoVerifyRuns
	e.AutoFixAttempts = s.AutoFixAttempts
	e.LastFailureHash = s.LastFailureHash
	e.LastFailureType = s.LastFailureType
	e.LastFailureAt = cloneTime(s.LastFailureAt)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
