package adra

import (
	"strings"
	"time"
)

// BuildCanonical populates the canonical top-level fields of a record in
// place and returns it. The operation is additive (layer content is never
// touched) and idempotent apart from the timestamp default, which is set only
// on the first call. Callers that need immutability pass the record through
// ApplyCompat first and canonicalize the copy.
//
// Steps, in order: version default, timestamp default, constitution hash,
// final verdict with veto precedence, severity fallback chain, envelope hash
// with self-exclusion.
func BuildCanonical(r Record) (Record, error) {
	if _, ok := r[FieldVersion]; !ok {
		r[FieldVersion] = Version
	}
	if _, ok := r[FieldTimestamp]; !ok {
		r[FieldTimestamp] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if constitution := findConstitution(r); constitution != nil {
		if _, ok := r[FieldConstitutionHash]; !ok {
			hash, err := HashJSON(constitution)
			if err != nil {
				return nil, err
			}
			r[FieldConstitutionHash] = hash
		}
	}

	r[FieldFinalVerdict] = deriveVerdict(r)
	// Older consumers filter on "decision"; keep it aliased.
	r[FieldDecision] = r[FieldFinalVerdict]

	r[FieldSeverity] = deriveSeverity(r)

	// The envelope hash must never cover itself.
	toHash := r.Clone()
	delete(toHash, FieldEnvelopeHash)
	hash, err := HashJSON(map[string]any(toHash))
	if err != nil {
		return nil, err
	}
	r[FieldEnvelopeHash] = hash

	return r, nil
}

func findConstitution(r Record) any {
	if v, ok := r["constitution"]; ok && v != nil {
		return v
	}
	if v, ok := r[LayerConstitution]; ok && v != nil {
		return v
	}
	if l0, ok := r["L0"].(map[string]any); ok {
		if v, ok := l0["constitution"]; ok && v != nil {
			return v
		}
	}
	return nil
}

// deriveVerdict applies veto precedence: the veto layer is the execution
// gate, so a triggered veto forces DENY no matter what the verdict layer
// stated. Without a veto, the stated decision is uppercased and anything
// other than ALLOW/DENY collapses to UNKNOWN.
func deriveVerdict(r Record) string {
	veto := r.Layer(LayerVeto)
	verdict := r.Layer(LayerVerdict)

	vetoTriggered := truthy(veto["veto_path_triggered"])
	if authorized, ok := veto["execution_authorized"].(bool); ok && !authorized {
		vetoTriggered = true
	}
	if vetoTriggered {
		return VerdictDeny
	}

	decision := firstString(verdict["decision_outcome"], verdict["decision"], r[FieldDecision])
	decision = strings.ToUpper(decision)
	if decision != VerdictAllow && decision != VerdictDeny {
		return VerdictUnknown
	}
	return decision
}

// deriveSeverity prefers the verdict layer, then the top level, then the
// veto layer, and finally the literal "N/A" so dashboards never see blanks.
func deriveSeverity(r Record) string {
	sev := firstString(
		r.Layer(LayerVerdict)[FieldSeverity],
		r[FieldSeverity],
		r.Layer(LayerVeto)[FieldSeverity],
	)
	if sev == "" {
		return "N/A"
	}
	return sev
}

func firstString(candidates ...any) string {
	for _, c := range candidates {
		if s, ok := c.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	}
	return true
}
