package core

// convert.go turns the loosely typed values delivered by the MINERD sources
// into Go numbers and strings.
//
// Sources disagree on representation: the CSV export only has text, the
// datastore API sends JSON numbers for some datasets and quoted numbers for
// others. Everything numeric funnels through ParseNumber / toNumber so both
// paths accept the same inputs.

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses numeric text such as "450", "85.5" or " 1e3 ".
// Returns false for empty or non-numeric input.
func ParseNumber(s string) (float64, bool) {
	s = CleanCell(s)
	if s == "" || !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// CleanCell removes common spreadsheet artifacts from a cell value:
//   - Trims whitespace
//   - Removes Excel formula prefix (="...")
//   - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	}

	return strings.Trim(s, `"'`)
}

// toNumber reports whether v is a finite number and returns it as float64.
// Strings are NOT numbers here; sources are responsible for converting text.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// rowString renders a store value as a string. UUID columns arrive from pgx
// as [16]byte and are formatted canonically.
func rowString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case [16]byte:
		return uuid.UUID(x).String()
	case uuid.UUID:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// rowFloat reads a numeric store value; NULL and non-numeric values are 0.
func rowFloat(v any) float64 {
	if f, ok := toNumber(v); ok {
		return f
	}
	if s, ok := v.(string); ok {
		if f, ok := ParseNumber(s); ok {
			return f
		}
	}
	return 0
}

// rowBool reads a boolean store value; anything other than true is false.
func rowBool(v any) bool {
	b, _ := v.(bool)
	return b
}
