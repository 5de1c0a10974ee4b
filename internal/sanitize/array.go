package sanitize

// StringArray text-sanitizes each element and drops the ones that end up
// empty. Anything that is not a slice yields an empty (non-nil) slice.
func StringArray(v any) []string {
	out := []string{}
	switch x := v.(type) {
	case []string:
		for _, s := range x {
			if c := cleanText(s); c != "" {
				out = append(out, c)
			}
		}
	case []any:
		for _, e := range x {
			if c := Text(e); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}
