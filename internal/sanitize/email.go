package sanitize

import "regexp"

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// Email returns the sanitized address, or "" when it does not look like
// local@domain.tld.
func Email(v any) string {
	s := Text(v)
	if !emailPattern.MatchString(s) {
		return ""
	}
	return s
}
