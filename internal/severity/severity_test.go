package severity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreLevelBijection(t *testing.T) {
	for score := 1; score <= 4; score++ {
		level := FromScore(score)
		assert.Equal(t, score, Score(level))
	}
	for _, level := range []Level{Low, Medium, High, Critical} {
		assert.Equal(t, level, FromScore(Score(level)))
	}
}

func TestFromScoreClamps(t *testing.T) {
	assert.Equal(t, Low, FromScore(0))
	assert.Equal(t, Low, FromScore(-3))
	assert.Equal(t, Critical, FromScore(9))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		score     any
		label     any
		wantScore int
		wantLevel Level
	}{
		{"label wins over score", 4, "medium", 2, Medium},
		{"numeric score", 3, nil, 3, High},
		{"numeric string score", "2", nil, 2, Medium},
		{"score clamped high", 17, nil, 4, Critical},
		{"score clamped low", float64(-1), nil, 1, Low},
		{"absent defaults to low", nil, nil, 1, Low},
		{"garbage defaults to low", "soon", "whenever", 1, Low},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, level := Normalize(tt.score, tt.label)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantLevel, level)
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, Unknown, Label(nil))
	assert.Equal(t, Unknown, Label("  "))
	assert.Equal(t, "LOW", Label(float64(0)))
	assert.Equal(t, "MEDIUM", Label(2))
	assert.Equal(t, "HIGH", Label("high"))
	assert.Equal(t, "CRITICAL", Label(7))
	// Free-form labels survive so regime-specific scales are not lost.
	assert.Equal(t, "SEV-1", Label("sev-1"))
}

func TestLabelScore(t *testing.T) {
	assert.Equal(t, 3, LabelScore("HIGH"))
	assert.Equal(t, 0, LabelScore("SEV-1"))
	assert.Equal(t, 0, LabelScore(Unknown))
}
