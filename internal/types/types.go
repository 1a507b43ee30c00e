// Package types defines the closed vocabularies shared by the ledger, the
// decomposition manifest and the policy gates.
//
// Values are stored as strings so the durable files stay readable. Loose
// spellings found in older or foreign files are normalized by the Parse
// functions and by UnmarshalJSON; code inside the module only ever compares
// against the canonical constants.
package types

import (
	"encoding/json"
	"strings"
)

// IssueType categorizes the kind of ticket.
type IssueType string

// Issue type constants
const (
	TypeIdea  IssueType = "Idea"
	TypeEpic  IssueType = "Epic"
	TypeStory IssueType = "Story"
	TypeBug   IssueType = "Bug"
	TypeTask  IssueType = "Task"
)

// IsValid checks if the issue type value is one of the known kinds.
func (t IssueType) IsValid() bool {
	switch t {
	case TypeIdea, TypeEpic, TypeStory, TypeBug, TypeTask:
		return true
	}
	return false
}

// IsAggregate reports whether tickets of this type reconcile from their
// children rather than from an artifact of their own.
func (t IssueType) IsAggregate() bool {
	return t == TypeIdea || t == TypeEpic
}

// ParseIssueType normalizes case and surrounding whitespace. Unknown values
// are returned trimmed so they survive a load/save round trip.
func ParseIssueType(s string) IssueType {
	s = strings.TrimSpace(s)
	for _, known := range []IssueType{TypeIdea, TypeEpic, TypeStory, TypeBug, TypeTask} {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return IssueType(s)
}

// UnmarshalJSON accepts any casing of the known types.
func (t *IssueType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseIssueType(s)
	return nil
}

// Step identifies a pipeline stage.
type Step string

// Pipeline stages
const (
	StepNone           Step = ""
	StepPlanning       Step = "PLANNER"
	StepDecomposition  Step = "DECOMPOSER"
	StepImplementation Step = "IMPLEMENTER"
	StepVerification   Step = "VERIFY"
	StepReconciliation Step = "RECONCILE"
)

var stepAliases = map[string]Step{
	"planner":        StepPlanning,
	"planning":       StepPlanning,
	"plan":           StepPlanning,
	"decomposer":     StepDecomposition,
	"decomposition":  StepDecomposition,
	"decompose":      StepDecomposition,
	"implementer":    StepImplementation,
	"implementation": StepImplementation,
	"implement":      StepImplementation,
	"verify":         StepVerification,
	"verification":   StepVerification,
	"verifier":       StepVerification,
	"reconcile":      StepReconciliation,
	"reconciliation": StepReconciliation,
	"reconciler":     StepReconciliation,
}

// IsValid checks if the step is a known stage. StepNone is not valid.
func (s Step) IsValid() bool {
	switch s {
	case StepPlanning, StepDecomposition, StepImplementation, StepVerification, StepReconciliation:
		return true
	}
	return false
}

// IsTerminalCheck reports whether the step is one of the verification-type
// stages that run after the work itself has been produced.
func (s Step) IsTerminalCheck() bool {
	return s == StepVerification || s == StepReconciliation
}

// ParseStep maps canonical names and their common aliases to a Step.
// Unknown non-empty values are kept verbatim (uppercased) so that an entry is
// still treated as attempted.
func ParseStep(s string) Step {
	s = strings.TrimSpace(s)
	if s == "" {
		return StepNone
	}
	if step, ok := stepAliases[strings.ToLower(s)]; ok {
		return step
	}
	return Step(strings.ToUpper(s))
}

// UnmarshalJSON accepts canonical names and aliases.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStep(raw)
	return nil
}

// StepResult is the terminal outcome of an attempt.
type StepResult string

// Terminal outcomes
const (
	ResultNone      StepResult = ""
	ResultSuccess   StepResult = "success"
	ResultFailed    StepResult = "failed"
	ResultTimedOut  StepResult = "timed_out"
	ResultCancelled StepResult = "cancelled"
)

// IsValid checks if the result is a known outcome.
func (r StepResult) IsValid() bool {
	switch r {
	case ResultSuccess, ResultFailed, ResultTimedOut, ResultCancelled:
		return true
	}
	return false
}

// IsTransient reports whether the outcome is an infrastructure interruption
// rather than a defect in the work.
func (r StepResult) IsTransient() bool {
	return r == ResultTimedOut || r == ResultCancelled
}

// ParseStepResult normalizes common spellings ("timeout", "canceled", "ok").
func ParseStepResult(s string) StepResult {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ResultNone
	case "success", "succeeded", "ok":
		return ResultSuccess
	case "failed", "failure", "error":
		return ResultFailed
	case "timed_out", "timeout", "timedout", "timed-out":
		return ResultTimedOut
	case "cancelled", "canceled", "cancel":
		return ResultCancelled
	}
	return StepResult(strings.ToLower(strings.TrimSpace(s)))
}

// UnmarshalJSON accepts the spellings understood by ParseStepResult.
func (r *StepResult) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ParseStepResult(raw)
	return nil
}

// ManifestStatus records whether every planned child has been created.
type ManifestStatus string

// Manifest statuses
const (
	ManifestIncomplete ManifestStatus = "INCOMPLETE"
	ManifestComplete   ManifestStatus = "COMPLETE"
)

// ParseManifestStatus treats anything other than COMPLETE as INCOMPLETE so
// that an unreadable status always leads to a retry.
func ParseManifestStatus(s string) ManifestStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(ManifestComplete)) {
		return ManifestComplete
	}
	return ManifestIncomplete
}

// UnmarshalJSON applies ParseManifestStatus.
func (m *ManifestStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = ParseManifestStatus(raw)
	return nil
}

// DecomposeMode says what a decomposition run should do.
type DecomposeMode string

// Decomposition modes
const (
	ModeNew   DecomposeMode = "new"
	ModeDelta DecomposeMode = "delta"
	ModeRetry DecomposeMode = "retry"
	ModeSkip  DecomposeMode = "skip"
)
