package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	v := t0.Add(d)
	return &v
}

func TestScheduleNext(t *testing.T) {
	s := Schedule{Base: 15 * time.Minute, Max: time.Hour}
	assert.Equal(t, 15*time.Minute, s.Next(0))
	assert.Equal(t, 15*time.Minute, s.Next(1))
	assert.Equal(t, 30*time.Minute, s.Next(2))
	assert.Equal(t, time.Hour, s.Next(3))
	assert.Equal(t, time.Hour, s.Next(10))

	assert.Equal(t, time.Duration(0), Schedule{}.Next(3))
	assert.Equal(t, time.Minute, Schedule{Base: time.Minute}.Next(5), "max below base caps at base")
}

func TestVerifyGate(t *testing.T) {
	tests := []struct {
		name   string
		cycle  *Cycle
		report Report
		now    time.Time
		want   Decision
	}{
		{
			name:   "no entry",
			cycle:  nil,
			report: Report{Exists: true, Hash: "h1"},
			want:   Decision{Attempt: true, Reason: ReasonNoEntry},
		},
		{
			name:   "report missing first time",
			cycle:  &Cycle{},
			report: Report{},
			want:   Decision{Attempt: true, Reason: ReasonReportMissing},
		},
		{
			name:   "report missing during missing-report cooldown",
			cycle:  &Cycle{LastReason: ReasonReportMissing, NextAt: at(time.Minute)},
			report: Report{},
			want:   Decision{Attempt: false, Reason: ReasonMissingCooldown},
		},
		{
			name:   "report missing after missing-report cooldown",
			cycle:  &Cycle{LastReason: ReasonReportMissing, NextAt: at(-time.Minute)},
			report: Report{},
			want:   Decision{Attempt: true, Reason: ReasonReportMissing},
		},
		{
			name:   "report missing with an unrelated cooldown",
			cycle:  &Cycle{LastReason: "checklist failed", LastHash: "h1", NextAt: at(time.Hour)},
			report: Report{},
			want:   Decision{Attempt: true, Reason: ReasonReportMissing},
		},
		{
			name:   "operator snooze holds while report missing",
			cycle:  &Cycle{SnoozedUntil: at(time.Hour)},
			report: Report{},
			want:   Decision{Attempt: false, Reason: ReasonSnoozed},
		},
		{
			name:   "operator snooze holds against changed content",
			cycle:  &Cycle{LastHash: "h1", SnoozedUntil: at(time.Hour)},
			report: Report{Exists: true, Hash: "h2"},
			want:   Decision{Attempt: false, Reason: ReasonSnoozed},
		},
		{
			name:   "expired snooze is ignored",
			cycle:  &Cycle{SnoozedUntil: at(-time.Minute)},
			report: Report{},
			want:   Decision{Attempt: true, Reason: ReasonReportMissing},
		},
		{
			name:   "hash changed bypasses cooldown",
			cycle:  &Cycle{LastHash: "h1", NextAt: at(time.Hour)},
			report: Report{Exists: true, Hash: "h2"},
			want:   Decision{Attempt: true, Reason: ReasonContentChanged},
		},
		{
			name:   "commit changed bypasses cooldown",
			cycle:  &Cycle{LastHash: "h1", LastCommitSHA: "aaa", NextAt: at(time.Hour)},
			report: Report{Exists: true, Hash: "h1", HeadSHA: "bbb"},
			want:   Decision{Attempt: true, Reason: ReasonCommitChanged},
		},
		{
			name:   "unknown head does not bypass",
			cycle:  &Cycle{LastHash: "h1", LastCommitSHA: "aaa", NextAt: at(time.Hour)},
			report: Report{Exists: true, Hash: "h1"},
			want:   Decision{Attempt: false, Reason: ReasonCooldown},
		},
		{
			name:   "unchanged within cooldown",
			cycle:  &Cycle{LastHash: "h1", LastCommitSHA: "aaa", NextAt: at(time.Hour)},
			report: Report{Exists: true, Hash: "h1", HeadSHA: "aaa"},
			want:   Decision{Attempt: false, Reason: ReasonCooldown},
		},
		{
			name:   "unchanged after cooldown",
			cycle:  &Cycle{LastHash: "h1", NextAt: at(-time.Second)},
			report: Report{Exists: true, Hash: "h1"},
			want:   Decision{Attempt: true, Reason: ReasonReady},
		},
		{
			name:   "cooldown ends exactly now",
			cycle:  &Cycle{LastHash: "h1", NextAt: at(0)},
			report: Report{Exists: true, Hash: "h1"},
			want:   Decision{Attempt: true, Reason: ReasonReady},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyGate(tt.cycle, tt.report, t0))
		})
	}
}

func TestReconcileGate(t *testing.T) {
	assert.Equal(t, Decision{true, ReasonNoEntry}, ReconcileGate(nil, "fp", t0))
	assert.Equal(t, Decision{true, ReasonContentChanged},
		ReconcileGate(&Cycle{LastHash: "fp1", NextAt: at(time.Hour)}, "fp2", t0))
	assert.Equal(t, Decision{false, ReasonCooldown},
		ReconcileGate(&Cycle{LastHash: "fp1", NextAt: at(time.Hour)}, "fp1", t0))
	assert.Equal(t, Decision{true, ReasonReady},
		ReconcileGate(&Cycle{LastHash: "fp1", NextAt: at(-time.Hour)}, "fp1", t0))
	assert.Equal(t, Decision{false, ReasonSnoozed},
		ReconcileGate(&Cycle{LastHash: "fp1", SnoozedUntil: at(time.Hour)}, "fp2", t0))
	// commit SHA never bypasses reconciliation cooldown
	assert.Equal(t, Decision{false, ReasonCooldown},
		ReconcileGate(&Cycle{LastHash: "fp1", LastCommitSHA: "old", NextAt: at(time.Hour)}, "fp1", t0))
}

func TestCommentDedup(t *testing.T) {
	c := &Cycle{}
	assert.True(t, c.ClaimComment("X", "h1"))
	assert.False(t, c.ClaimComment("X", "h1"))
	assert.True(t, c.ClaimComment("X", "h2"))
	assert.True(t, c.ClaimComment("Y", "h2"))
	assert.False(t, NeedsComment(c, "Y", "h2"))
	assert.True(t, NeedsComment(nil, "Y", "h2"))
}

func TestRecordFailure(t *testing.T) {
	s := Schedule{Base: 10 * time.Minute, Max: time.Hour}
	c := &Cycle{}

	c.RecordFailure("checklist failed", "h1", "sha1", t0, s)
	require.NotNil(t, c.NextAt)
	assert.Equal(t, t0.Add(10*time.Minute), *c.NextAt)
	assert.Equal(t, 1, c.Failures)

	c.RecordFailure("checklist failed", "h1", "sha1", t0, s)
	assert.Equal(t, t0.Add(20*time.Minute), *c.NextAt)
	assert.Equal(t, 2, c.Failures)

	c.RecordFailure("checklist failed", "h2", "sha2", t0, s)
	assert.Equal(t, 1, c.Failures, "new content restarts the schedule")
	assert.Equal(t, t0.Add(10*time.Minute), *c.NextAt)
	assert.Equal(t, "sha2", c.LastCommitSHA)

	c.ClaimComment("checklist failed", "h2")
	c.Clear()
	assert.Nil(t, c.NextAt)
	assert.Zero(t, c.Failures)
	assert.Equal(t, "h2", c.LastCommentedHash)
}

func TestMissingReportCooldownLoop(t *testing.T) {
	c := &Cycle{}
	d := VerifyGate(c, Report{}, t0)
	require.True(t, d.Attempt)

	c.RecordMissingReport("sha1", t0, 30*time.Minute)
	assert.False(t, VerifyGate(c, Report{}, t0.Add(time.Minute)).Attempt)
	assert.True(t, VerifyGate(c, Report{}, t0.Add(31*time.Minute)).Attempt)

	// the report showing up is new evidence
	assert.Equal(t, ReasonContentChanged, VerifyGate(c, Report{Exists: true, Hash: "h"}, t0.Add(time.Minute)).Reason)
}

func TestShouldRepair(t *testing.T) {
	var s RepairState
	assert.True(t, ShouldRepair(s, "h1", 2).Attempt)
	s.Record("h1", t0)
	assert.Equal(t, ReasonAlreadyRepaired, ShouldRepair(s, "h1", 2).Reason)
	assert.True(t, ShouldRepair(s, "h2", 2).Attempt)
	s.Record("h2", t0)
	assert.Equal(t, ReasonAttemptsExhausted, ShouldRepair(s, "h3", 2).Reason)
	require.NotNil(t, s.AppliedAt)
	assert.False(t, ShouldRepair(RepairState{}, "h1", 0).Attempt)
}

func TestAutoLoops(t *testing.T) {
	var s LoopState
	assert.True(t, ShouldAutoFix(s, "f1", 3).Attempt)
	s.RecordAutoFix("f1", "test", t0)
	assert.Equal(t, ReasonSameFailure, ShouldAutoFix(s, "f1", 3).Reason)
	assert.True(t, ShouldAutoFix(s, "f2", 3).Attempt)
	s.RecordAutoFix("f2", "test", t0)
	s.RecordAutoFix("f3", "lint", t0)
	assert.Equal(t, ReasonAttemptsExhausted, ShouldAutoFix(s, "f4", 3).Reason)
	assert.Equal(t, "lint", s.LastFailureType)

	assert.True(t, ShouldAutoVerify(s, 2).Attempt)
	s.RecordAutoVerify()
	s.RecordAutoVerify()
	assert.False(t, ShouldAutoVerify(s, 2).Attempt)

	s.Reset()
	assert.Equal(t, LoopState{}, s)
}
