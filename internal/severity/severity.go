// Package severity defines the four-level severity scale shared by every
// evidence layer. Score and label are mutually derivable; normalization
// never fails.
package severity

import (
	"strconv"
	"strings"
)

// Level is a canonical severity label.
type Level string

const (
	Low      Level = "LOW"
	Medium   Level = "MEDIUM"
	High     Level = "HIGH"
	Critical Level = "CRITICAL"
)

// Unknown is returned by Label for absent or empty severities. It is not a
// canonical level and maps to score 0.
const Unknown = "UNKNOWN"

var scoreByLevel = map[Level]int{
	Low:      1,
	Medium:   2,
	High:     3,
	Critical: 4,
}

var levelByScore = map[int]Level{
	1: Low,
	2: Medium,
	3: High,
	4: Critical,
}

// Score returns the numeric score for a canonical level, 0 otherwise.
func Score(level Level) int {
	return scoreByLevel[level]
}

// FromScore maps a score to its level, clamping to [1,4].
func FromScore(score int) Level {
	if score < 1 {
		score = 1
	}
	if score > 4 {
		score = 4
	}
	return levelByScore[score]
}

// IsCanonical reports whether the label is one of the four levels.
func IsCanonical(label string) bool {
	_, ok := scoreByLevel[Level(strings.ToUpper(strings.TrimSpace(label)))]
	return ok
}

// Normalize resolves a score candidate and a label candidate into a
// score/level pair. A recognized label wins; then a numeric score clamped to
// [1,4]; anything else defaults to 1/LOW.
func Normalize(score, label any) (int, Level) {
	if label != nil {
		lv := Level(strings.ToUpper(strings.TrimSpace(toString(label))))
		if sc, ok := scoreByLevel[lv]; ok {
			return sc, lv
		}
	}
	if score == nil {
		return 1, Low
	}
	if n, ok := asInt(score); ok {
		if n < 1 {
			n = 1
		}
		if n > 4 {
			n = 4
		}
		return n, levelByScore[n]
	}
	return 1, Low
}

// Label normalizes a raw severity value into a label for event payloads.
// Numerics map onto the scale, canonical text is uppercased, other non-empty
// text passes through unchanged, and absence yields UNKNOWN.
func Label(raw any) string {
	if raw == nil {
		return Unknown
	}
	if n, ok := asNumber(raw); ok {
		switch {
		case n <= 1:
			return string(Low)
		case n == 2:
			return string(Medium)
		case n == 3:
			return string(High)
		default:
			return string(Critical)
		}
	}
	s := strings.ToUpper(strings.TrimSpace(toString(raw)))
	if s == "" {
		return Unknown
	}
	return s
}

// LabelScore returns the score for a label produced by Label. Free-form
// labels score 0 so they never skew risk-weighted averages.
func LabelScore(label string) int {
	return scoreByLevel[Level(label)]
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
	}
	return 0, false
}

func asNumber(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
