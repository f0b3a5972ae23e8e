// Package kpi computes rolling and batch statistics over the run-event log:
// allow/deny rates, drift alerts, veto engagement, average severity, and
// per-regime slices.
package kpi

import (
	"strings"

	"gnce/internal/runlog"
	"gnce/internal/severity"
)

// RegimeSlice is the per-regime breakdown.
type RegimeSlice struct {
	Total int `json:"total"`
	Allow int `json:"allow"`
	Deny  int `json:"deny"`
}

// Summary is the KPI schema shared by batch and streaming aggregation.
type Summary struct {
	TotalRuns        int                    `json:"total_runs"`
	Allow            int                    `json:"allow"`
	Deny             int                    `json:"deny"`
	AllowPct         float64                `json:"allow_pct"`
	DenyPct          float64                `json:"deny_pct"`
	DriftAlerts      int                    `json:"drift_alerts"`
	VetoEvents       int                    `json:"veto_events"`
	AvgSeverityScore float64                `json:"avg_severity_score"`
	ViolationsTotal  int                    `json:"violations_total"`
	LastEventTSUTC   string                 `json:"last_event_ts_utc,omitempty"`
	ByRegime         map[string]RegimeSlice `json:"by_regime"`
}

// Compute aggregates a batch of run events. Events of other types are
// ignored; severity labels outside the scale are skipped so free-form
// severities never distort the average.
func Compute(events []runlog.Event) Summary {
	acc := newAccumulator()
	for _, ev := range events {
		acc.add(ev)
	}
	return acc.summary()
}

// accumulator holds the running state shared by Compute and Aggregator.
type accumulator struct {
	total       int
	allow       int
	deny        int
	driftAlerts int
	vetoEvents  int
	sevSum      float64
	sevCount    int
	violations  int
	lastTS      string
	byRegime    map[string]RegimeSlice
}

func newAccumulator() *accumulator {
	return &accumulator{byRegime: make(map[string]RegimeSlice)}
}

func (a *accumulator) add(ev runlog.Event) {
	if ev.EventType != runlog.EventTypeRun {
		return
	}
	a.total++

	decision := strings.ToUpper(ev.Decision)
	switch decision {
	case "ALLOW":
		a.allow++
	case "DENY":
		a.deny++
	}

	if strings.ToUpper(ev.DriftOutcome) == "DRIFT_ALERT" {
		a.driftAlerts++
	}

	switch strings.ToUpper(ev.VetoCategory) {
	case "", "N/A", "NONE":
	default:
		a.vetoEvents++
	}

	if score := severity.LabelScore(strings.ToUpper(ev.Severity)); score > 0 {
		a.sevSum += float64(score)
		a.sevCount++
	}

	a.violations += ev.ViolationsCount
	if ev.TSUTC != "" {
		a.lastTS = ev.TSUTC
	}

	regime := ev.Regime
	if regime == "" {
		regime = "UNKNOWN"
	}
	slice := a.byRegime[regime]
	slice.Total++
	switch decision {
	case "ALLOW":
		slice.Allow++
	case "DENY":
		slice.Deny++
	}
	a.byRegime[regime] = slice
}

func (a *accumulator) summary() Summary {
	s := Summary{
		TotalRuns:       a.total,
		Allow:           a.allow,
		Deny:            a.deny,
		DriftAlerts:     a.driftAlerts,
		VetoEvents:      a.vetoEvents,
		ViolationsTotal: a.violations,
		LastEventTSUTC:  a.lastTS,
		ByRegime:        make(map[string]RegimeSlice, len(a.byRegime)),
	}
	for regime, slice := range a.byRegime {
		s.ByRegime[regime] = slice
	}
	if a.total > 0 {
		s.AllowPct = float64(a.allow) / float64(a.total) * 100
		s.DenyPct = float64(a.deny) / float64(a.total) * 100
	}
	if a.sevCount > 0 {
		s.AvgSeverityScore = a.sevSum / float64(a.sevCount)
	}
	return s
}
