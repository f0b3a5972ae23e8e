// Package policy converts heterogeneous regime rule-evaluator output into
// canonical policy records. Normalization is total: malformed input resolves
// to safe defaults instead of failing the batch.
package policy

import (
	"sort"
	"strconv"
	"strings"

	"gnce/internal/severity"
)

// Status is the canonical outcome of a single regime-rule evaluation.
type Status string

const (
	StatusViolated      Status = "VIOLATED"
	StatusSatisfied     Status = "SATISFIED"
	StatusNotApplicable Status = "NOT_APPLICABLE"
	StatusUnknown       Status = "UNKNOWN"
)

// Record is one normalized regime-rule result. Field names are deterministic
// regardless of how the evaluator spelled them.
type Record struct {
	Regime          string         `json:"regime"`
	Domain          string         `json:"domain"`
	Framework       string         `json:"framework"`
	Article         string         `json:"article"`
	Status          Status         `json:"status"`
	SeverityScore   int            `json:"severity_score"`
	SeverityLevel   severity.Level `json:"severity_level"`
	Notes           string         `json:"notes"`
	RuleIDs         []string       `json:"rule_ids,omitempty"`
	ImpactOnVerdict string         `json:"impact_on_verdict,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
}

// NormalizeStatus maps verdict/status spellings onto the canonical set.
// N/A and NA count as NOT_APPLICABLE; anything unrecognized is UNKNOWN.
func NormalizeStatus(raw any) Status {
	s := strings.ToUpper(strings.TrimSpace(str(raw)))
	switch s {
	case "VIOLATED", "SATISFIED", "NOT_APPLICABLE":
		return Status(s)
	case "N/A", "NA":
		return StatusNotApplicable
	}
	return StatusUnknown
}

// NormalizeRegimeResult converts a single evaluator-native result item into a
// Record. Identity comes from the first present of id/reference/article/clause,
// severity from numeric then textual candidates, rationale from the first
// non-empty of rationale/notes/reason/explanation.
func NormalizeRegimeResult(regimeID, domain, framework string, item map[string]any) Record {
	ref := firstPresent(item, "id", "reference", "article", "clause")

	status := item["verdict"]
	if status == nil || status == "" {
		status = item["status"]
	}

	score := firstPresent(item, "severity", "severity_score", "severityLevel", "criticality")
	level := firstPresent(item, "severity_level", "severityLevelText")
	sevScore, sevLevel := severity.Normalize(score, level)

	rationale := firstNonEmpty(item, "rationale", "notes", "reason", "explanation")

	rec := Record{
		Regime:          regimeID,
		Domain:          domain,
		Framework:       framework,
		Article:         str(ref),
		Status:          NormalizeStatus(status),
		SeverityScore:   sevScore,
		SeverityLevel:   sevLevel,
		Notes:           rationale,
		RuleIDs:         stringSlice(item["rule_ids"]),
		ImpactOnVerdict: str(item["impact_on_verdict"]),
	}

	if meta, ok := item["meta"].(map[string]any); ok && len(meta) > 0 {
		rec.Meta = meta
	}
	return rec
}

// NormalizeRegimeBundle flattens a regime-id keyed bundle into records.
// Bundles that are not shaped as {domain, framework, results: [...]} are
// skipped; one bad bundle never fails the batch.
func NormalizeRegimeBundle(regimes map[string]any) []Record {
	var records []Record
	for _, rid := range sortedKeys(regimes) {
		bundle, ok := regimes[rid].(map[string]any)
		if !ok {
			continue
		}
		results, ok := bundle["results"].([]any)
		if !ok {
			continue
		}
		domain := str(bundle["domain"])
		framework := str(bundle["framework"])
		for _, raw := range results {
			item, ok := raw.(map[string]any)
			if !ok {
				item = map[string]any{"raw": raw}
			}
			records = append(records, NormalizeRegimeResult(rid, domain, framework, item))
		}
	}
	return records
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstPresent(item map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := item[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(item map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(item[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s := str(item); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	}
	return ""
}
