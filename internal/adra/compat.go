package adra

// Legacy layer keys still emitted by older producers.
const (
	legacyLineageKey = "L4"
	legacyVetoKey    = "L7"
)

// ApplyCompat bridges legacy record shapes onto the canonical layer keys.
// The input is never mutated; callers get a deep copy with alias keys added
// only where the canonical key is absent. Safe to call on finalized records.
func ApplyCompat(r Record) Record {
	out := r.Clone()

	if _, ok := out[LayerLineage]; !ok {
		if legacy, ok := out[legacyLineageKey]; ok {
			out[LayerLineage] = legacy
		}
	}
	if _, ok := out[LayerVeto]; !ok {
		if legacy, ok := out[legacyVetoKey]; ok {
			out[LayerVeto] = legacy
		}
	}
	return out
}
