// Package runlog persists one flattened summary event per evaluated record
// to an append-only newline-delimited JSON log, and builds those events from
// finalized records. The log is the analytics source for KPI aggregation.
package runlog

import (
	"time"

	"github.com/google/uuid"

	"gnce/internal/adra"
)

// EventTypeRun marks run summary events; KPI aggregation filters on it.
const EventTypeRun = "gnce_run"

// EventVersion is the run-event contract version.
const EventVersion = "1.0"

// Event is the flattened per-run summary written to the log and published to
// the broker. This is the OLTP record; KPI rollups are derived from it.
type Event struct {
	EventType    string `json:"event_type"`
	EventVersion string `json:"event_version"`
	EventID      string `json:"event_id"`
	TSUTC        string `json:"ts_utc"`

	SessionID     string `json:"session_id,omitempty"`
	EngineVersion string `json:"engine_version,omitempty"`
	EngineMode    string `json:"engine_mode,omitempty"`
	PayloadName   string `json:"payload_name,omitempty"`

	ADRAID            string `json:"adra_id"`
	Decision          string `json:"decision"`
	Severity          string `json:"severity"`
	ExecutionEligible bool   `json:"execution_eligible"`
	DriftOutcome      string `json:"drift_outcome"`
	ViolationsCount   int    `json:"violations_count"`
	VetoCategory      string `json:"veto_category"`
	Regime            string `json:"regime"`

	ExportEnabled bool   `json:"export_enabled"`
	Exported      bool   `json:"exported"`
	ExportPath    string `json:"export_path,omitempty"`

	ADRAHash string `json:"adra_hash,omitempty"`
	// Checksum covers the event's own identity fields, not the record.
	Checksum string `json:"checksum_sha256"`
}

// Options carries the session context stamped on emitted events.
type Options struct {
	SessionID     string
	EngineVersion string
	EngineMode    string
	PayloadName   string
	ExportEnabled bool
	Exported      bool
	ExportPath    string
}

// FromRecord flattens a finalized record into a run event. Extraction is
// best-effort: absent evidence resolves to N/A-style defaults, never errors.
func FromRecord(rec adra.Record, opts Options) (Event, error) {
	verdict := rec.Layer(adra.LayerVerdict)
	drift := rec.Layer(adra.LayerDrift)
	veto := rec.Layer(adra.LayerVeto)

	decision := firstString(verdict["decision_outcome"], rec[adra.FieldDecision])
	if decision == "" {
		decision = adra.VerdictUnknown
	}
	sev := firstString(verdict[adra.FieldSeverity], rec[adra.FieldSeverity])
	if sev == "" {
		sev = "N/A"
	}

	eligible := truthy(verdict["execution_authorized"]) || truthy(rec["execution_eligible"])

	driftOutcome := firstString(rec["drift_outcome"], drift["drift_outcome"])
	if driftOutcome == "" {
		driftOutcome = "N/A"
	}
	vetoCategory := firstString(rec["veto_category"], veto["veto_category"])
	if vetoCategory == "" {
		vetoCategory = "N/A"
	}

	ev := Event{
		EventType:    EventTypeRun,
		EventVersion: EventVersion,
		EventID:      "evt-" + uuid.New().String(),
		TSUTC:        time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),

		SessionID:     opts.SessionID,
		EngineVersion: opts.EngineVersion,
		EngineMode:    opts.EngineMode,
		PayloadName:   opts.PayloadName,

		ADRAID:            rec.ID(),
		Decision:          decision,
		Severity:          sev,
		ExecutionEligible: eligible,
		DriftOutcome:      driftOutcome,
		ViolationsCount:   countViolations(rec),
		VetoCategory:      vetoCategory,
		Regime:            PrimaryRegime(rec),

		ExportEnabled: opts.ExportEnabled,
		Exported:      opts.Exported,
		ExportPath:    opts.ExportPath,
	}

	if hash, ok := rec[adra.FieldEnvelopeHash].(string); ok {
		ev.ADRAHash = hash
	}

	checksum, err := adra.HashJSON(map[string]any{
		"adra_id":  ev.ADRAID,
		"decision": ev.Decision,
		"severity": ev.Severity,
		"ts_utc":   ev.TSUTC,
	})
	if err != nil {
		return Event{}, err
	}
	ev.Checksum = checksum

	return ev, nil
}

func countViolations(rec adra.Record) int {
	policies, ok := rec.Layer(adra.LayerLineage)["policies_triggered"].([]any)
	if !ok {
		return 0
	}
	count := 0
	for _, raw := range policies {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if s, _ := p["status"].(string); s == "VIOLATED" {
			count++
		}
	}
	return count
}

// PrimaryRegime picks one regime for per-regime KPI slicing: the single
// distinct regime across triggered policies, MIXED when several contributed,
// UNKNOWN when none did.
func PrimaryRegime(rec adra.Record) string {
	policies, ok := rec.Layer(adra.LayerLineage)["policies_triggered"].([]any)
	if !ok || len(policies) == 0 {
		return "UNKNOWN"
	}

	seen := map[string]bool{}
	var order []string
	for _, raw := range policies {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		regime := firstString(p["regime"], p["Regime"])
		if regime == "" {
			continue
		}
		if !seen[regime] {
			seen[regime] = true
			order = append(order, regime)
		}
	}

	switch len(order) {
	case 0:
		return "UNKNOWN"
	case 1:
		return order[0]
	default:
		return "MIXED"
	}
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
	}
	return false
}
