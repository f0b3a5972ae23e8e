// Package adra models the layered audit-decision record: the evidence
// envelope produced once per governance decision. The package canonicalizes
// envelopes (derived verdict, severity, envelope hash), bridges legacy layer
// keys, and validates envelope identity. It runs no policy logic.
package adra

// Canonical layer keys. L0 through L7 each hold one phase of evidence.
const (
	LayerConstitution = "L0_constitution"
	LayerVerdict      = "L1_the_verdict_and_constitutional_outcome"
	LayerLineage      = "L4_policy_lineage_and_constitution"
	LayerDrift        = "L6_behavioral_drift_monitoring"
	LayerVeto         = "L7_veto_and_execution_feedback"
)

// Canonical top-level fields added by BuildCanonical.
const (
	FieldVersion          = "cee_version"
	FieldTimestamp        = "timestamp_utc"
	FieldConstitutionHash = "constitution_hash"
	FieldFinalVerdict     = "final_verdict"
	FieldDecision         = "decision"
	FieldSeverity         = "severity"
	FieldEnvelopeHash     = "envelope_hash"
)

// Verdict values for final_verdict.
const (
	VerdictAllow   = "ALLOW"
	VerdictDeny    = "DENY"
	VerdictUnknown = "UNKNOWN"
)

// Version is the canonical evidence envelope version stamped on records.
const Version = "GNCE_CEE_v1"

// Record is the evidence envelope: layer keys mapping to arbitrary evidence
// sub-maps, plus the canonical top-level fields. The envelope stays dynamic
// because the envelope hash must cover whatever layers producers emit;
// well-known layers get typed views via the accessors below.
type Record map[string]any

// Layer returns the named layer, or an empty map when absent or not a map.
func (r Record) Layer(key string) map[string]any {
	if layer, ok := r[key].(map[string]any); ok {
		return layer
	}
	return map[string]any{}
}

// ID returns the record identity, trying adra_id, id, then ADRA_ID.
func (r Record) ID() string {
	for _, key := range []string{"adra_id", "id", "ADRA_ID"} {
		if s, ok := r[key].(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

// Clone returns a deep copy. Nested maps and slices are copied; scalar
// values are shared.
func (r Record) Clone() Record {
	return Record(deepCopyMap(r))
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}
