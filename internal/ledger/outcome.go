package ledger

import (
	"time"

	"github.com/steveyegge/workledger/internal/fingerprint"
	"github.com/steveyegge/workledger/internal/policy"
	"github.com/steveyegge/workledger/internal/types"
)

// Attempt describes a finished pipeline step as reported by a collaborator.
type Attempt struct {
	Step   types.Step
	Result types.StepResult
	// Error is the failure text; it is fingerprinted together with Step.
	Error string
	// Fingerprint, when set, is used verbatim instead of hashing Error.
	// Use it for known signatures such as FingerprintAutomationDefect.
	Fingerprint string
	// IssueType, when set, is recorded on the entry.
	IssueType types.IssueType
}

// Outcome is what the ledger concluded from an Attempt.
type Outcome struct {
	Fingerprint string
	// Escalate is set the first time a given failure needs a human: an
	// ordinary failure, or any outcome carrying a non-retryable
	// fingerprint. The caller escalates and then calls MarkEscalated.
	Escalate bool
	// Resumable is the classifier verdict with no artifact checks.
	Resumable bool
}

// RecordOutcome stores the result of an attempt, creating the entry on first
// observation. A success clears the error fingerprint.
//
// Ordinary failures are not resumed by this package; they are expected to
// be escalated exactly once, which Outcome.Escalate signals.
func (l *Ledger) RecordOutcome(key string, a Attempt) (Outcome, error) {
	if key == "" {
		return Outcome{}, ErrEmptyKey
	}
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if ok {
		e = e.Clone()
	} else {
		e = &Entry{IssueKey: key}
	}

	if a.IssueType != "" {
		e.IssueType = a.IssueType
	}
	e.LastStep = a.Step
	e.LastStepResult = a.Result

	var out Outcome
	if a.Result == types.ResultSuccess {
		e.LastErrorFingerprint = ""
		e.LastErrorAt = nil
	} else {
		fp := a.Fingerprint
		if fp == "" {
			text := a.Error
			if text == "" {
				text = string(a.Result)
			}
			fp = fingerprint.ErrorFingerprintN(string(a.Step), text, l.errorPrefixLen)
		}
		e.LastErrorFingerprint = fp
		at := now
		e.LastErrorAt = &at

		out.Fingerprint = fp
		needsHuman := a.Result == types.ResultFailed || l.IsNonRetryable(fp)
		out.Escalate = needsHuman && e.EscalatedFingerprint != fp
	}
	e.UpdatedAt = &now
	l.entries[key] = e
	l.mu.Unlock()

	out.Resumable = l.Classify(e, ResumeChecks{}).Resumable
	if out.Escalate {
		l.log.Info("failure needs escalation", "issue", key, "step", a.Step, "result", a.Result, "fingerprint", out.Fingerprint)
	}
	return out, nil
}

// MarkEscalated records that fp was handed to a human for key.
func (l *Ledger) MarkEscalated(key, fp string) bool {
	now := l.now()
	return l.Update(key, func(e *Entry) {
		e.EscalatedFingerprint = fp
		e.EscalatedAt = &now
	})
}

// HasActiveEscalation reports whether the current failure of key has been
// escalated. It answers true whenever the ledger failed to load, so a broken
// store never causes a duplicate escalation.
func (l *Ledger) HasActiveEscalation(key string) bool {
	if l.LoadFailed() {
		return true
	}
	e, ok := l.Get(key)
	if !ok {
		return false
	}
	return e.EscalatedFingerprint != "" && e.EscalatedFingerprint == e.LastErrorFingerprint
}

// AddChild records child under parent. The parent entry is created when
// absent; the child's ParentKey is set if the child is tracked.
func (l *Ledger) AddChild(parent, child string) error {
	if parent == "" || child == "" {
		return ErrEmptyKey
	}
	if _, err := l.Ensure(parent, ""); err != nil {
		return err
	}
	l.Update(parent, func(e *Entry) { e.AddChild(child) })
	l.Update(child, func(e *Entry) {
		if e.ParentKey == "" {
			e.ParentKey = parent
		}
	})
	return nil
}

// ObserveStatus stores the tracker status seen for key.
func (l *Ledger) ObserveStatus(key, status string) bool {
	return l.Update(key, func(e *Entry) { e.StatusLastObserved = status })
}

// VerifyDecision runs the verification gate for key. A missing entry always
// attempts.
func (l *Ledger) VerifyDecision(key string, r policy.Report, now time.Time) policy.Decision {
	e, ok := l.Get(key)
	if !ok {
		return policy.VerifyGate(nil, r, now)
	}
	c := e.VerifyCycle()
	return policy.VerifyGate(&c, r, now)
}

// ReconcileDecision runs the reconciliation gate for key.
func (l *Ledger) ReconcileDecision(key, contentFingerprint string, now time.Time) policy.Decision {
	e, ok := l.Get(key)
	if !ok {
		return policy.ReconcileGate(nil, contentFingerprint, now)
	}
	c := e.ReconcileCycle()
	return policy.ReconcileGate(&c, contentFingerprint, now)
}

// RecordVerifyFailure records a failed verification and opens the next
// cooldown. When the report is missing the fixed missingCooldown is used.
func (l *Ledger) RecordVerifyFailure(key, reason string, r policy.Report, s policy.Schedule, missingCooldown time.Duration) bool {
	now := l.now()
	return l.Update(key, func(e *Entry) {
		c := e.VerifyCycle()
		if !r.Exists {
			c.RecordMissingReport(r.HeadSHA, now, missingCooldown)
		} else {
			c.RecordFailure(reason, r.Hash, r.HeadSHA, now, s)
		}
		e.SetVerifyCycle(c)
	})
}

// RecordVerifyPass clears the verification cooldown and loop counters.
func (l *Ledger) RecordVerifyPass(key string) bool {
	return l.Update(key, func(e *Entry) {
		c := e.VerifyCycle()
		c.Clear()
		e.SetVerifyCycle(c)
		loop := e.LoopState()
		loop.Reset()
		e.SetLoopState(loop)
	})
}

// RecordReconcileFailure records a failed reconciliation for the given
// description fingerprint.
func (l *Ledger) RecordReconcileFailure(key, reason, contentFingerprint string, s policy.Schedule) bool {
	now := l.now()
	return l.Update(key, func(e *Entry) {
		c := e.ReconcileCycle()
		c.RecordFailure(reason, contentFingerprint, "", now, s)
		e.SetReconcileCycle(c)
	})
}

// RecordReconcilePass clears the reconciliation cooldown.
func (l *Ledger) RecordReconcilePass(key string) bool {
	return l.Update(key, func(e *Entry) {
		c := e.ReconcileCycle()
		c.Clear()
		e.SetReconcileCycle(c)
	})
}

// ClaimVerifyComment reports whether a verification comment with (reason,
// reportHash) should be posted, and records the pair when it should. A
// missing entry is created so the claim is remembered.
func (l *Ledger) ClaimVerifyComment(key, reason, reportHash string) bool {
	if _, err := l.Ensure(key, ""); err != nil {
		return false
	}
	var post bool
	l.Update(key, func(e *Entry) {
		c := e.VerifyCycle()
		post = c.ClaimComment(reason, reportHash)
		e.SetVerifyCycle(c)
	})
	return post
}

// ClaimReconcileComment is ClaimVerifyComment for the reconciliation cycle.
func (l *Ledger) ClaimReconcileComment(key, reason, contentFingerprint string) bool {
	if _, err := l.Ensure(key, ""); err != nil {
		return false
	}
	var post bool
	l.Update(key, func(e *Entry) {
		c := e.ReconcileCycle()
		post = c.ClaimComment(reason, contentFingerprint)
		e.SetReconcileCycle(c)
	})
	return post
}

// SnoozeVerify holds the verification gate closed until the given time,
// whatever the report state.
func (l *Ledger) SnoozeVerify(key string, until time.Time) bool {
	return l.Update(key, func(e *Entry) { e.VerifySnoozedUntil = &until })
}

// SnoozeReconcile holds the reconciliation gate closed until the given time.
func (l *Ledger) SnoozeReconcile(key string, until time.Time) bool {
	return l.Update(key, func(e *Entry) { e.ReconcileSnoozedUntil = &until })
}

// RecordRepair notes an automatic repair applied for reportHash.
func (l *Ledger) RecordRepair(key, reportHash string) bool {
	now := l.now()
	return l.Update(key, func(e *Entry) {
		s := e.RepairState()
		s.Record(reportHash, now)
		e.SetRepairState(s)
	})
}

// RecordAutoVerify counts one automatic verification run.
func (l *Ledger) RecordAutoVerify(key string) bool {
	return l.Update(key, func(e *Entry) {
		s := e.LoopState()
		s.RecordAutoVerify()
		e.SetLoopState(s)
	})
}

// RecordAutoFix counts one automatic fix attempt for the given failure.
func (l *Ledger) RecordAutoFix(key, failureHash, failureType string) bool {
	now := l.now()
	return l.Update(key, func(e *Entry) {
		s := e.LoopState()
		s.RecordAutoFix(failureHash, failureType, now)
		e.SetLoopState(s)
	})
}
