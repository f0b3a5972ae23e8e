package adra

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchema constrains the inbound envelope shape: a JSON object whose
// layer keys hold objects and whose canonical fields, when pre-set by a
// producer, carry the right types. Identity validation (the required veto
// layer) stays in Validate so the error taxonomy is preserved.
const recordSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "patternProperties": {
    "^L[0-7](_[a-z0-9_]+)?$": {"type": "object"}
  },
  "properties": {
    "cee_version": {"type": "string"},
    "timestamp_utc": {"type": "string"},
    "constitution_hash": {"type": "string"},
    "final_verdict": {"enum": ["ALLOW", "DENY", "UNKNOWN"]},
    "decision": {"type": "string"},
    "severity": {"type": "string"},
    "envelope_hash": {"type": "string"}
  }
}`

var compiledRecordSchema = jsonschema.MustCompileString("record.schema.json", recordSchema)

// ValidateShape checks an inbound record against the envelope schema.
func ValidateShape(r Record) error {
	if err := compiledRecordSchema.Validate(map[string]any(r)); err != nil {
		return fmt.Errorf("record shape: %w", err)
	}
	return nil
}
