package sanitize

import "time"

// DateLayout is the only date format that leaves this package.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006/01/02",
	"01/02/2006",
}

// Date formats v as YYYY-MM-DD. time.Time values are formatted in their own
// location; strings carrying an offset are normalized to UTC first.
// Unparseable input yields "".
func Date(v any) string {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(DateLayout)
	case *time.Time:
		if x == nil || x.IsZero() {
			return ""
		}
		return x.Format(DateLayout)
	case string:
		t, ok := ParseDate(cleanText(x))
		if !ok {
			return ""
		}
		return t.Format(DateLayout)
	default:
		return ""
	}
}

// ParseDate parses s with the accepted layouts. Values with an explicit
// offset are converted to UTC.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if layout == time.RFC3339 || layout == time.RFC3339Nano {
			t = t.UTC()
		}
		return t, true
	}
	return time.Time{}, false
}
