package adra

import (
	"fmt"

	"gnce/internal/policy"
)

// VetoCategoryConstitutional is the category stamped on constitution-driven
// execution blocks.
const VetoCategoryConstitutional = "CONSTITUTIONAL_BLOCK"

// BuildVetoBasis collects the policy results that justify an execution veto:
// VIOLATED policies at HIGH or CRITICAL severity.
func BuildVetoBasis(policies []policy.Record) []map[string]any {
	var basis []map[string]any
	for _, p := range policies {
		if p.Status != policy.StatusViolated {
			continue
		}
		if p.SeverityLevel != "HIGH" && p.SeverityLevel != "CRITICAL" {
			continue
		}
		basis = append(basis, map[string]any{
			"article":               p.Article,
			"severity":              string(p.SeverityLevel),
			"status":                string(p.Status),
			"constitutional_clause": "Sec. 1.1 — No HIGH/CRITICAL violation may yield ALLOW.",
			"explanation":           fmt.Sprintf("Article %s violated with severity %s.", p.Article, p.SeverityLevel),
		})
	}
	return basis
}

// ApplyVeto builds the execution-veto layer from a veto basis. An empty basis
// authorizes execution; a non-empty one blocks it and requires escalation.
func ApplyVeto(basis []map[string]any) map[string]any {
	triggered := len(basis) > 0

	layer := map[string]any{
		"layer":                "L7",
		"execution_authorized": !triggered,
		"veto_path_triggered":  triggered,
		"veto_category":        nil,
		"veto_basis":           basis,
		"escalation_required":  nil,
		"decision_gate": map[string]any{
			"allow_downstream": !triggered,
			"block_reason":     nil,
		},
	}
	if triggered {
		layer["veto_category"] = VetoCategoryConstitutional
		layer["escalation_required"] = "HUMAN_REVIEWER"
		layer["decision_gate"].(map[string]any)["block_reason"] = "L7 veto: " + VetoCategoryConstitutional
	}
	return layer
}
