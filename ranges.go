package icdcheck

import (
	"sort"
	"strconv"
	"strings"
)

// interval is one closed range item. A missing bound means the interval is
// open towards that side.
type interval struct {
	lower, upper       int64
	hasLower, hasUpper bool
}

// contains reports whether value lies within the closed interval.
func (iv interval) contains(value int64) bool {
	if iv.hasLower && value < iv.lower {
		return false
	}
	if iv.hasUpper && value > iv.upper {
		return false
	}
	return true
}

func (iv interval) String() string {
	switch {
	case iv.hasLower && iv.hasUpper && iv.lower == iv.upper:
		return strconv.FormatInt(iv.lower, 10)
	case iv.hasLower && iv.hasUpper:
		return strconv.FormatInt(iv.lower, 10) + ":" + strconv.FormatInt(iv.upper, 10)
	case iv.hasLower:
		return strconv.FormatInt(iv.lower, 10) + ":"
	default:
		return ":" + strconv.FormatInt(iv.upper, 10)
	}
}

// Range is an ordered list of disjoint closed integer intervals, used for
// length limits, numeric limits and allowed character sets. An empty Range
// poses no constraint at all.
type Range struct {
	items []interval
}

// ParseRange parses a multi interval specification such as "1:5", ":60",
// "32:", "2, 4:6". When text is empty or blank, defaultText is parsed
// instead; when both are empty the resulting Range is unconstrained.
func ParseRange(text, defaultText string) (*Range, error) {
	actual := strings.TrimSpace(text)
	if actual == "" {
		actual = strings.TrimSpace(defaultText)
	}
	result := &Range{}
	if actual == "" {
		return result, nil
	}
	for _, part := range strings.Split(actual, ",") {
		item, err := parseInterval(part)
		if err != nil {
			return nil, err
		}
		result.items = append(result.items, item)
	}
	sort.SliceStable(result.items, func(i, j int) bool {
		a, b := result.items[i], result.items[j]
		if !a.hasLower {
			return b.hasLower
		}
		if !b.hasLower {
			return false
		}
		return a.lower < b.lower
	})
	for i := 1; i < len(result.items); i++ {
		if overlaps(result.items[i-1], result.items[i]) {
			return nil, newError(KindRangeSyntax, "range items must not overlap: %s and %s",
				result.items[i-1], result.items[i])
		}
	}
	return result, nil
}

// parseInterval parses a single "lower:upper", "lower:", ":upper" or "value"
// item. Whitespace around numbers and the colon is not significant, but
// "1 2" is still two numbers and therefore broken.
func parseInterval(text string) (interval, error) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return interval{}, newError(KindRangeSyntax, "range item must not be empty")
	}
	colonCount := strings.Count(cleaned, ":")
	if colonCount > 1 {
		return interval{}, newError(KindRangeSyntax, "range item must contain at most one colon (:) but is: %q", cleaned)
	}
	if colonCount == 0 {
		value, err := parseBound(cleaned)
		if err != nil {
			return interval{}, err
		}
		return interval{lower: value, upper: value, hasLower: true, hasUpper: true}, nil
	}
	colonIndex := strings.Index(cleaned, ":")
	lowerText := strings.TrimSpace(cleaned[:colonIndex])
	upperText := strings.TrimSpace(cleaned[colonIndex+1:])
	if lowerText == "" && upperText == "" {
		return interval{}, newError(KindRangeSyntax, "colon (:) must be preceded and/or succeeded by a number")
	}
	var result interval
	if lowerText != "" {
		lower, err := parseBound(lowerText)
		if err != nil {
			return interval{}, err
		}
		result.lower = lower
		result.hasLower = true
	}
	if upperText != "" {
		upper, err := parseBound(upperText)
		if err != nil {
			return interval{}, err
		}
		result.upper = upper
		result.hasUpper = true
	}
	if result.hasLower && result.hasUpper && result.lower > result.upper {
		return interval{}, newError(KindRangeSyntax, "lower limit %d must be less than or equal to upper limit %d",
			result.lower, result.upper)
	}
	return result, nil
}

func parseBound(text string) (int64, error) {
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, newError(KindRangeSyntax, "range must be specified using integer numbers and colon (:) but found: %q", text)
	}
	return value, nil
}

// overlaps reports whether the closures of two intervals intersect, with a
// sorted by lower bound before b.
func overlaps(a, b interval) bool {
	if !a.hasUpper {
		return true
	}
	if !b.hasLower {
		return true
	}
	return b.lower <= a.upper
}

// IsEmpty reports whether the Range poses no constraint.
func (r *Range) IsEmpty() bool {
	return r == nil || len(r.items) == 0
}

// String renders the Range in its canonical source form.
func (r *Range) String() string {
	if r.IsEmpty() {
		return ""
	}
	parts := make([]string, len(r.items))
	for i, item := range r.items {
		parts[i] = item.String()
	}
	return strings.Join(parts, ", ")
}

// Validate checks that value lies within the Range and returns a range value
// error naming the validated quantity otherwise. An empty Range accepts
// every value.
func (r *Range) Validate(name string, value int64) error {
	if r.IsEmpty() {
		return nil
	}
	for _, item := range r.items {
		if item.contains(value) {
			return nil
		}
	}
	return newError(KindRangeValue, "%s is %d but must be within range: %s", name, value, r)
}
