// Package sanitize neutralizes user-supplied values before they reach
// persisted state or rendered output.
//
// Every function is total: malformed or unexpected input degrades to a safe
// default ("" / 0 / empty slice) instead of returning an error. Form fields,
// JSON import and CSV/JSON export all compose from these primitives, so the
// "no unsanitized string is stored" property is a statement about this
// package alone.
package sanitize
