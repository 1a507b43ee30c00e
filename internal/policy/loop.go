package policy

import "time"

// Reasons for the bounded-loop gates.
const (
	ReasonAttemptsExhausted = "attempts_exhausted"
	ReasonSameFailure       = "same_failure"
	ReasonAlreadyRepaired   = "already_repaired"
)

// RepairState tracks automatic repairs applied to a failing verification.
type RepairState struct {
	AppliedAt      *time.Time
	LastReportHash string
	Count          int
}

// ShouldRepair allows one repair per distinct report hash, at most
// maxRepairs in total. A non-positive maxRepairs disables repairs.
func ShouldRepair(s RepairState, reportHash string, maxRepairs int) Decision {
	if s.Count >= maxRepairs {
		return skip(ReasonAttemptsExhausted)
	}
	if s.Count > 0 && reportHash == s.LastReportHash {
		return skip(ReasonAlreadyRepaired)
	}
	return attempt(ReasonReady)
}

// Record notes that a repair was applied for reportHash.
func (s *RepairState) Record(reportHash string, now time.Time) {
	s.Count++
	s.LastReportHash = reportHash
	at := now
	s.AppliedAt = &at
}

// LoopState holds the counters that bound automatic verify and fix loops.
type LoopState struct {
	AutoVerifyRuns  int
	AutoFixAttempts int
	LastFailureHash string
	LastFailureType string
	LastFailureAt   *time.Time
}

// ShouldAutoVerify bounds the number of automatic verification runs.
func ShouldAutoVerify(s LoopState, maxRuns int) Decision {
	if s.AutoVerifyRuns >= maxRuns {
		return skip(ReasonAttemptsExhausted)
	}
	return attempt(ReasonReady)
}

// ShouldAutoFix allows another automatic fix unless the attempts are used up
// or the failure is byte-for-byte the one the previous fix was meant to
// address, which means the fix made no progress.
func ShouldAutoFix(s LoopState, failureHash string, maxAttempts int) Decision {
	if s.AutoFixAttempts >= maxAttempts {
		return skip(ReasonAttemptsExhausted)
	}
	if s.AutoFixAttempts > 0 && failureHash != "" && failureHash == s.LastFailureHash {
		return skip(ReasonSameFailure)
	}
	return attempt(ReasonReady)
}

// RecordAutoVerify counts an automatic verification run.
func (s *LoopState) RecordAutoVerify() {
	s.AutoVerifyRuns++
}

// RecordAutoFix counts a fix attempt made in response to failureHash.
func (s *LoopState) RecordAutoFix(failureHash, failureType string, now time.Time) {
	s.AutoFixAttempts++
	s.LastFailureHash = failureHash
	s.LastFailureType = failureType
	at := now
	s.LastFailureAt = &at
}

// Reset clears the loop counters once the work passes.
func (s *LoopState) Reset() {
	*s = LoopState{}
}
