package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIssueType(t *testing.T) {
	tests := []struct {
		in   string
		want IssueType
	}{
		{"Epic", TypeEpic},
		{"epic", TypeEpic},
		{"  STORY ", TypeStory},
		{"bug", TypeBug},
		{"idea", TypeIdea},
		{"Sub-task", IssueType("Sub-task")},
		{"", IssueType("")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIssueType(tt.in))
		})
	}
	assert.False(t, IssueType("Sub-task").IsValid())
	assert.True(t, TypeEpic.IsAggregate())
	assert.True(t, TypeIdea.IsAggregate())
	assert.False(t, TypeStory.IsAggregate())
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		in   string
		want Step
	}{
		{"IMPLEMENTER", StepImplementation},
		{"implementation", StepImplementation},
		{"Reconcile", StepReconciliation},
		{"verification", StepVerification},
		{"planner", StepPlanning},
		{"decompose", StepDecomposition},
		{"", StepNone},
		{"deploy", Step("DEPLOY")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStep(tt.in))
		})
	}
	assert.True(t, StepVerification.IsTerminalCheck())
	assert.True(t, StepReconciliation.IsTerminalCheck())
	assert.False(t, StepImplementation.IsTerminalCheck())
	assert.False(t, StepNone.IsValid())
}

func TestParseStepResult(t *testing.T) {
	assert.Equal(t, ResultTimedOut, ParseStepResult("timeout"))
	assert.Equal(t, ResultCancelled, ParseStepResult("Canceled"))
	assert.Equal(t, ResultSuccess, ParseStepResult("ok"))
	assert.Equal(t, ResultFailed, ParseStepResult("FAILED"))
	assert.Equal(t, ResultNone, ParseStepResult(" "))
	assert.True(t, ResultTimedOut.IsTransient())
	assert.False(t, ResultFailed.IsTransient())
}

func TestManifestStatusDefaultsToIncomplete(t *testing.T) {
	assert.Equal(t, ManifestComplete, ParseManifestStatus("complete"))
	assert.Equal(t, ManifestIncomplete, ParseManifestStatus("done"))
	assert.Equal(t, ManifestIncomplete, ParseManifestStatus(""))
}

func TestUnmarshalAtBoundary(t *testing.T) {
	var v struct {
		Type   IssueType      `json:"type"`
		Step   Step           `json:"step"`
		Result StepResult     `json:"result"`
		Status ManifestStatus `json:"status"`
	}
	raw := `{"type":"story","step":"implementation","result":"timeout","status":"complete"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	assert.Equal(t, TypeStory, v.Type)
	assert.Equal(t, StepImplementation, v.Step)
	assert.Equal(t, ResultTimedOut, v.Result)
	assert.Equal(t, ManifestComplete, v.Status)
}
