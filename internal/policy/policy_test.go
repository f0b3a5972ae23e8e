package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gnce/internal/severity"
)

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, StatusViolated, NormalizeStatus("violated"))
	assert.Equal(t, StatusSatisfied, NormalizeStatus(" SATISFIED "))
	assert.Equal(t, StatusNotApplicable, NormalizeStatus("n/a"))
	assert.Equal(t, StatusNotApplicable, NormalizeStatus("NA"))
	assert.Equal(t, StatusUnknown, NormalizeStatus("maybe"))
	assert.Equal(t, StatusUnknown, NormalizeStatus(nil))
}

func TestNormalizeRegimeResult_FieldVariance(t *testing.T) {
	item := map[string]any{
		"reference":   "Art. 6(1)",
		"verdict":     "violated",
		"criticality": float64(3),
		"reason":      "missing lawful basis",
		"meta":        map[string]any{"source": "resolver"},
	}

	rec := NormalizeRegimeResult("GDPR", "privacy", "EU", item)

	assert.Equal(t, "GDPR", rec.Regime)
	assert.Equal(t, "privacy", rec.Domain)
	assert.Equal(t, "EU", rec.Framework)
	assert.Equal(t, "Art. 6(1)", rec.Article)
	assert.Equal(t, StatusViolated, rec.Status)
	assert.Equal(t, 3, rec.SeverityScore)
	assert.Equal(t, severity.High, rec.SeverityLevel)
	assert.Equal(t, "missing lawful basis", rec.Notes)
	assert.Equal(t, "resolver", rec.Meta["source"])
}

func TestNormalizeRegimeResult_TextualSeverityWins(t *testing.T) {
	rec := NormalizeRegimeResult("DSA", "", "", map[string]any{
		"id":             "art-34",
		"status":         "SATISFIED",
		"severity":       float64(4),
		"severity_level": "medium",
	})
	assert.Equal(t, 2, rec.SeverityScore)
	assert.Equal(t, severity.Medium, rec.SeverityLevel)
}

func TestNormalizeRegimeResult_EmptyVerdictFallsBackToStatus(t *testing.T) {
	rec := NormalizeRegimeResult("GDPR", "", "", map[string]any{
		"id":      "art-6",
		"verdict": "",
		"status":  "VIOLATED",
	})
	assert.Equal(t, StatusViolated, rec.Status)
}

func TestNormalizeRegimeResult_Defaults(t *testing.T) {
	rec := NormalizeRegimeResult("FINRA", "", "", map[string]any{})
	assert.Equal(t, "", rec.Article)
	assert.Equal(t, StatusUnknown, rec.Status)
	assert.Equal(t, 1, rec.SeverityScore)
	assert.Equal(t, severity.Low, rec.SeverityLevel)
	assert.Equal(t, "", rec.Notes)
}

func TestNormalizeRegimeBundle_PartialSuccess(t *testing.T) {
	regimes := map[string]any{
		"DSA": map[string]any{
			"domain":    "platform",
			"framework": "EU",
			"results": []any{
				map[string]any{"id": "art-34", "status": "VIOLATED", "severity": float64(4)},
				"not-a-map",
			},
		},
		"BROKEN":      "nope",
		"NO_RESULTS":  map[string]any{"domain": "x"},
		"BAD_RESULTS": map[string]any{"results": "also nope"},
	}

	records := NormalizeRegimeBundle(regimes)
	require.Len(t, records, 2)

	assert.Equal(t, "DSA", records[0].Regime)
	assert.Equal(t, "art-34", records[0].Article)
	assert.Equal(t, StatusViolated, records[0].Status)
	assert.Equal(t, severity.Critical, records[0].SeverityLevel)

	// The scalar result item is wrapped, not dropped.
	assert.Equal(t, StatusUnknown, records[1].Status)
}

func TestNormalizeRegimeBundle_NotAMap(t *testing.T) {
	assert.Empty(t, NormalizeRegimeBundle(nil))
}
