package events

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnce/internal/policy"
	"gnce/internal/severity"
)

func samplePolicies() []policy.Record {
	return []policy.Record{
		{Regime: "DSA", Domain: "platform", Article: "art-34", Status: policy.StatusViolated,
			SeverityScore: 4, SeverityLevel: severity.Critical, RuleIDs: []string{"dsa-34-1"}},
		{Regime: "GDPR", Article: "art-6", Status: policy.StatusSatisfied,
			SeverityScore: 1, SeverityLevel: severity.Low},
	}
}

func TestBuildStream_FixedOrder(t *testing.T) {
	policies := samplePolicies()
	stream := BuildStream("adra-1", map[string]any{"q": "deploy"}, policies,
		map[string]any{"decision_outcome": "ALLOW"},
		map[string]any{},
		map[string]any{})

	require.Len(t, stream, 2+len(policies)+2)
	want := []Type{TypeCreated, TypeVerdict, TypePolicyEval, TypePolicyEval, TypeDriftStatus, TypeVetoStatus}
	for i, ev := range stream {
		assert.Equal(t, want[i], ev.Type)
		assert.Equal(t, "adra-1", ev.ADRAID)
		assert.Equal(t, EngineVersion, ev.Version)
		assert.True(t, strings.HasPrefix(ev.ID, "ev-"))
		assert.Len(t, ev.ID, len("ev-")+12)
	}
}

func TestBuildStream_SharedTimestamp(t *testing.T) {
	stream := BuildStream("adra-1", nil, nil,
		map[string]any{"timestamp_utc": "2026-02-03T04:05:06Z"},
		map[string]any{}, map[string]any{})

	for _, ev := range stream {
		assert.Equal(t, "2026-02-03T04:05:06Z", ev.TSUTC)
	}
}

func TestBuildStream_VerdictEvent(t *testing.T) {
	stream := BuildStream("adra-1", nil, nil,
		map[string]any{
			"decision_outcome":         "DENY",
			"severity":                 "high",
			"human_oversight_required": true,
		},
		map[string]any{}, map[string]any{})

	verdict := stream[1]
	assert.Equal(t, "DENY", verdict.Extra["decision_outcome"])
	assert.Equal(t, "HIGH", verdict.Extra["severity"])
	assert.Equal(t, 3, verdict.Extra["severity_score"])
	assert.Equal(t, true, verdict.Extra["human_oversight_required"])
	assert.Equal(t, false, verdict.Extra["safe_state_triggered"])
}

func TestBuildStream_PolicyEvalFields(t *testing.T) {
	stream := BuildStream("adra-1", nil, samplePolicies(),
		map[string]any{}, map[string]any{}, map[string]any{})

	eval := stream[2]
	assert.Equal(t, "DSA", eval.Extra["regime"])
	assert.Equal(t, "platform", eval.Extra["domain"])
	assert.Equal(t, "art-34", eval.Extra["article"])
	assert.Equal(t, "VIOLATED", eval.Extra["status"])
	assert.Equal(t, "CRITICAL", eval.Extra["severity"])
	assert.Equal(t, 4, eval.Extra["severity_score"])
	assert.Equal(t, []string{"dsa-34-1"}, eval.Extra["rule_ids"])

	// Domain falls back to regime; article to N/A.
	second := stream[3]
	assert.Equal(t, "GDPR", second.Extra["domain"])
}

func TestBuildStream_DriftAndVetoDefaults(t *testing.T) {
	stream := BuildStream("adra-1", nil, nil,
		map[string]any{}, map[string]any{}, map[string]any{})

	drift := stream[len(stream)-2]
	assert.Equal(t, "NO_DRIFT", drift.Extra["drift_outcome"])

	veto := stream[len(stream)-1]
	assert.Equal(t, true, veto.Extra["execution_authorized"])
	assert.Equal(t, false, veto.Extra["veto_path_triggered"])
}

func TestBuildStream_VetoTriggeredDerivedFromAuthorization(t *testing.T) {
	stream := BuildStream("adra-1", nil, nil,
		map[string]any{}, map[string]any{},
		map[string]any{"execution_authorized": false})

	veto := stream[len(stream)-1]
	assert.Equal(t, false, veto.Extra["execution_authorized"])
	assert.Equal(t, true, veto.Extra["veto_path_triggered"])
}

func TestEvent_MarshalFlattensExtra(t *testing.T) {
	stream := BuildStream("adra-1", map[string]any{"k": "v"}, nil,
		map[string]any{"decision_outcome": "ALLOW"},
		map[string]any{}, map[string]any{})

	raw, err := json.Marshal(stream[1])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "L1_VERDICT", decoded["event_type"])
	assert.Equal(t, "ALLOW", decoded["decision_outcome"])
	assert.Equal(t, "adra-1", decoded["adra_id"])
	_, hasPayload := decoded["payload"]
	assert.False(t, hasPayload)
}

func TestBuildStream_Deterministic(t *testing.T) {
	build := func() []Event {
		return BuildStream("adra-1", map[string]any{"q": 1}, samplePolicies(),
			map[string]any{"timestamp_utc": "2026-02-03T04:05:06Z", "decision_outcome": "ALLOW"},
			map[string]any{"drift_outcome": "NO_DRIFT"},
			map[string]any{"execution_authorized": true})
	}

	a, b := build(), build()
	require.Len(t, b, len(a))
	for i := range a {
		// Identical apart from the generated event id.
		b[i].ID = a[i].ID
		assert.Equal(t, a[i], b[i])
	}
}
