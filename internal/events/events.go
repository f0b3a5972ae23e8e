// Package events derives the ordered, typed event sequence for one finalized
// audit record. The sequence is fixed: ADRA_CREATED, L1_VERDICT, one
// POLICY_EVAL per policy in input order, DRIFT_STATUS, VETO_STATUS. All
// events in a stream share one timestamp; ids aside, identical inputs yield
// an identical stream.
package events

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"gnce/internal/policy"
	"gnce/internal/severity"
)

// EngineVersion is stamped on every event.
const EngineVersion = "0.4.0"

// Type identifies an event in the stream.
type Type string

const (
	TypeCreated     Type = "ADRA_CREATED"
	TypeVerdict     Type = "L1_VERDICT"
	TypePolicyEval  Type = "POLICY_EVAL"
	TypeDriftStatus Type = "DRIFT_STATUS"
	TypeVetoStatus  Type = "VETO_STATUS"
)

// Event is one entry in the stream. Type-specific fields live in Extra and
// are inlined on marshal, so the wire shape stays flat.
type Event struct {
	ID      string         `json:"event_id"`
	Type    Type           `json:"event_type"`
	TSUTC   string         `json:"ts_utc"`
	ADRAID  string         `json:"adra_id"`
	Version string         `json:"gnce_version"`
	Payload map[string]any `json:"payload,omitempty"`
	Extra   map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object. Base fields win on
// key collision.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+6)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["event_id"] = e.ID
	out["event_type"] = string(e.Type)
	out["ts_utc"] = e.TSUTC
	out["adra_id"] = e.ADRAID
	out["gnce_version"] = e.Version
	if e.Payload != nil {
		out["payload"] = e.Payload
	}
	return json.Marshal(out)
}

func newEventID() string {
	id := uuid.New()
	return "ev-" + hex.EncodeToString(id[:])[:12]
}

func baseEvent(eventType Type, adraID, ts string, payload, extra map[string]any) Event {
	return Event{
		ID:      newEventID(),
		Type:    eventType,
		TSUTC:   ts,
		ADRAID:  adraID,
		Version: EngineVersion,
		Payload: payload,
		Extra:   extra,
	}
}

// BuildStream derives the event sequence for a finalized record. The verdict
// layer's timestamp anchors the whole stream; generation time is the
// fallback. Always returns exactly 2+len(policies)+2 events.
func BuildStream(
	adraID string,
	rawInput map[string]any,
	policies []policy.Record,
	verdictLayer, driftLayer, vetoLayer map[string]any,
) []Event {
	ts, _ := verdictLayer["timestamp_utc"].(string)
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339Nano)
	}

	stream := make([]Event, 0, len(policies)+4)

	stream = append(stream, baseEvent(TypeCreated, adraID, ts,
		map[string]any{"input": rawInput}, nil))

	decision := firstString(verdictLayer["decision_outcome"], verdictLayer["decision"])
	if decision == "" {
		decision = "N/A"
	}
	verdictSeverity := severity.Label(valueOr(verdictLayer, "severity", "UNKNOWN"))
	stream = append(stream, baseEvent(TypeVerdict, adraID, ts, nil, map[string]any{
		"decision_outcome":         decision,
		"severity":                 verdictSeverity,
		"severity_score":           severity.LabelScore(verdictSeverity),
		"human_oversight_required": truthy(verdictLayer["human_oversight_required"]),
		"safe_state_triggered":     truthy(verdictLayer["safe_state_triggered"]),
	}))

	for _, p := range policies {
		regime := p.Regime
		if regime == "" {
			regime = "UNKNOWN_REGIME"
		}
		domain := p.Domain
		if domain == "" {
			domain = regime
		}
		article := p.Article
		if article == "" {
			article = "N/A"
		}
		label := severity.Label(string(p.SeverityLevel))
		ruleIDs := p.RuleIDs
		if ruleIDs == nil {
			ruleIDs = []string{}
		}
		stream = append(stream, baseEvent(TypePolicyEval, adraID, ts, nil, map[string]any{
			"regime":            regime,
			"domain":            domain,
			"article":           article,
			"status":            string(p.Status),
			"severity":          label,
			"severity_score":    severity.LabelScore(label),
			"rule_ids":          ruleIDs,
			"impact_on_verdict": p.ImpactOnVerdict,
		}))
	}

	driftOutcome := firstString(
		driftLayer["drift_outcome"], driftLayer["drift_status"], driftLayer["drift_state"])
	if driftOutcome == "" {
		driftOutcome = "NO_DRIFT"
	}
	stream = append(stream, baseEvent(TypeDriftStatus, adraID, ts, nil, map[string]any{
		"drift_outcome": driftOutcome,
		"notes":         driftLayer["notes"],
	}))

	executionAuthorized := true
	if v, ok := vetoLayer["execution_authorized"]; ok {
		executionAuthorized = truthy(v)
	}
	vetoTriggered := !executionAuthorized
	if v, ok := vetoLayer["veto_path_triggered"]; ok {
		vetoTriggered = truthy(v)
	}
	stream = append(stream, baseEvent(TypeVetoStatus, adraID, ts, nil, map[string]any{
		"execution_authorized": executionAuthorized,
		"veto_path_triggered":  vetoTriggered,
		"notes":                vetoLayer["notes"],
	}))

	return stream
}

func valueOr(m map[string]any, key string, fallback any) any {
	if v, ok := m[key]; ok && v != nil {
		return v
	}
	return fallback
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
	return true
}
