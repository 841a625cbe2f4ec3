// Package refrange parses laboratory reference ranges and decides whether a
// recorded result falls outside them.
package refrange

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind is the shape of a reference range.
type Kind int

const (
	// Unknown ranges are free text that cannot be judged, e.g. "Organism ID".
	Unknown Kind = iota
	// Vacuous ranges are empty or purely descriptive ("Observation").
	Vacuous
	// Negative ranges expect the absence of a finding ("Nil", "No growth").
	Negative
	// Interval ranges have a lower and upper bound ("8.0 - 15.0").
	Interval
	// Inequality ranges have a single threshold ("< 2,00,000").
	Inequality
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case Vacuous:
		return "vacuous"
	case Negative:
		return "negative"
	case Interval:
		return "interval"
	case Inequality:
		return "inequality"
	default:
		return "unknown"
	}
}

// number matches an optionally signed decimal with thousands separators,
// including a bare fraction such as ".5".
const number = `[-+]?(?:\d[\d,]*(?:\.\d+)?|\.\d+)`

var (
	intervalPattern   = regexp.MustCompile(`(` + number + `)\s*-\s*(` + number + `)`)
	inequalityPattern = regexp.MustCompile(`([<>≤≥]=?)\s*(` + number + `)`)
	numberPattern     = regexp.MustCompile(number)
	digitPattern      = regexp.MustCompile(`\d`)

	vacuousRanges = map[string]bool{
		"observation": true,
		"normal":      true,
		"variable":    true,
	}

	negativeTokens = []string{"nil", "negative", "no growth", "not detected", "absent"}

	// Longest first so "++" is consumed before "+".
	positiveTokens = []string{"positive", "detected", "found", "seen", "presence", "++", "+"}

	// Phrases removed from a value before looking for positive tokens.
	negatedPhrases = []string{"not detected", "not found", "not seen", "no growth", "negative", "absent", "nil"}
)

// Range is a parsed reference range.
type Range struct {
	Raw  string
	Kind Kind

	// Interval bounds, valid when HasInterval is set.
	Min, Max    float64
	HasInterval bool

	// Inequality operator normalised to one of <, <=, >, >=.
	Op            string
	Threshold     float64
	HasInequality bool
}

// Parse classifies a reference range. It never fails: anything that cannot
// be understood is Unknown.
func Parse(raw string) Range {
	r := Range{Raw: raw}
	trimmed := strings.ToLower(strings.TrimSpace(raw))

	if trimmed == "" || vacuousRanges[trimmed] {
		r.Kind = Vacuous
		return r
	}
	if containsAny(trimmed, negativeTokens) {
		r.Kind = Negative
		return r
	}

	if m := intervalPattern.FindStringSubmatch(trimmed); m != nil {
		lo, errLo := parseNumber(m[1])
		hi, errHi := parseNumber(m[2])
		if errLo == nil && errHi == nil {
			r.Min, r.Max, r.HasInterval = lo, hi, true
			r.Kind = Interval
		}
	}
	if m := inequalityPattern.FindStringSubmatch(trimmed); m != nil {
		if t, err := parseNumber(m[2]); err == nil {
			r.Op, r.Threshold, r.HasInequality = normalizeOp(m[1]), t, true
			if r.Kind == Unknown {
				r.Kind = Inequality
			}
		}
	}
	return r
}

// IsAbnormal reports whether value violates the range. Unjudgeable input is
// never abnormal.
func (r Range) IsAbnormal(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}

	switch r.Kind {
	case Vacuous, Unknown:
		return false
	case Negative:
		return negativeViolated(v)
	}

	if r.HasInterval {
		if n, ok := FirstNumber(v); ok {
			return n < r.Min || n > r.Max
		}
	}
	if r.HasInequality {
		if n, ok := FirstNumber(v); ok {
			return inequalityViolated(r.Op, n, r.Threshold)
		}
	}
	return false
}

// IsAbnormal parses the range and classifies the value in one step.
func IsAbnormal(value, referenceRange string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	return Parse(referenceRange).IsAbnormal(value)
}

// FirstNumber extracts the first number in s, ignoring thousands separators.
func FirstNumber(s string) (float64, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := parseNumber(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func negativeViolated(v string) bool {
	masked := v
	for _, phrase := range negatedPhrases {
		masked = strings.ReplaceAll(masked, phrase, " ")
	}
	if containsAny(masked, positiveTokens) {
		return true
	}
	return !containsAny(v, negativeTokens) && digitPattern.MatchString(v)
}

func inequalityViolated(op string, v, t float64) bool {
	switch op {
	case "<":
		return v >= t
	case "<=":
		return v > t
	case ">":
		return v <= t
	case ">=":
		return v < t
	}
	return false
}

func normalizeOp(op string) string {
	switch op {
	case "≤", "≤=":
		return "<="
	case "≥", "≥=":
		return ">="
	}
	return op
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
