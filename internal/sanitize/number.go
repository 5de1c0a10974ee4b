package sanitize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var leadingFloat = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// Number converts v to a finite float64. Strings are text-sanitized first and
// parsed by their leading numeric prefix ("12kg" -> 12); anything else that is
// not a number yields 0.
func Number(v any) float64 {
	switch x := v.(type) {
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		return parseNumber(string(x))
	case string:
		return parseNumber(cleanText(x))
	default:
		return 0
	}
}

func parseNumber(s string) float64 {
	m := leadingFloat.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// IsNumeric reports whether s parses to a number under Number's rules.
func IsNumeric(s string) bool {
	return leadingFloat.MatchString(strings.TrimSpace(cleanText(s)))
}
