// Package policy holds the pure decision logic that keeps the dispatch loop
// from hot-looping: cooldown gates for verification and reconciliation,
// comment deduplication, and the bounded repair and auto-fix loops.
//
// Nothing here touches the filesystem or the clock; callers pass "now" and
// the current artifact state, and persist the mutated state themselves.
package policy

import "time"

// Cycle is the retry bookkeeping for one kind of repeated check. The same
// shape serves verification (Hash is the report's content hash) and
// reconciliation (Hash is the description fingerprint).
type Cycle struct {
	// NextAt is the end of the current cooldown window, if any.
	NextAt *time.Time
	// LastReason and LastHash describe the most recent recorded failure.
	LastReason string
	LastHash   string
	// LastCommitSHA is the HEAD commit at the last failure. Only the
	// verification gate consults it.
	LastCommitSHA string
	// LastCommentedReason and LastCommentedHash are the pair that was most
	// recently posted as a human-visible comment.
	LastCommentedReason string
	LastCommentedHash   string
	// Failures counts consecutive recorded failures and drives the
	// cooldown schedule.
	Failures int
	// SnoozedUntil is set by an operator. Until then the gate skips even
	// when the evidence changed. Clear leaves it in place.
	SnoozedUntil *time.Time
}

// Snoozed reports whether an operator snooze is in effect at now.
func (c *Cycle) Snoozed(now time.Time) bool {
	return c != nil && c.SnoozedUntil != nil && now.Before(*c.SnoozedUntil)
}

// InCooldown reports whether a cooldown window is open at now.
func (c *Cycle) InCooldown(now time.Time) bool {
	return c != nil && c.NextAt != nil && now.Before(*c.NextAt)
}

// RecordFailure stores a failed check and opens the next cooldown window.
// A change of content hash restarts the failure count.
func (c *Cycle) RecordFailure(reason, hash, commitSHA string, now time.Time, s Schedule) {
	if hash != c.LastHash {
		c.Failures = 0
	}
	c.Failures++
	c.LastReason = reason
	c.LastHash = hash
	c.LastCommitSHA = commitSHA
	next := now.Add(s.Next(c.Failures))
	c.NextAt = &next
}

// RecordMissingReport opens a fixed cooldown for a report that does not
// exist yet, so the gate does not retry it every cycle.
func (c *Cycle) RecordMissingReport(commitSHA string, now time.Time, cooldown time.Duration) {
	c.LastReason = ReasonReportMissing
	c.LastHash = ""
	c.LastCommitSHA = commitSHA
	next := now.Add(cooldown)
	c.NextAt = &next
}

// Clear forgets the failure and the cooldown after a successful check. The
// commented pair is kept so a recurrence of the same failure is still
// deduplicated against what humans have already seen.
func (c *Cycle) Clear() {
	c.NextAt = nil
	c.LastReason = ""
	c.LastHash = ""
	c.LastCommitSHA = ""
	c.Failures = 0
}
