// Package field binds a single form value to the sanitizer and a validator.
//
// A Field always holds a sanitized value, even when validation fails, so a
// form can keep showing what the user typed (minus markup) next to the error.
package field

import (
	"strings"

	"preppertrack/internal/sanitize"
)

const (
	msgInvalidEmail  = "Invalid email address"
	msgInvalidDate   = "Invalid date"
	msgInvalidNumber = "Must be a valid number"
)

// Validator returns a field-scoped error message, or "" when v is acceptable.
type Validator[T any] func(v T) string

type Option[T any] func(*Field[T])

// WithType overrides the sanitization type inferred from T.
func WithType[T any](t sanitize.Type) Option[T] {
	return func(f *Field[T]) {
		if t.Valid() {
			f.typ = t
		}
	}
}

// WithValidator installs a caller validator that runs after the default checks.
func WithValidator[T any](fn Validator[T]) Option[T] {
	return func(f *Field[T]) { f.validate = fn }
}

// WithRequired rejects empty strings and empty arrays with msg.
func WithRequired[T any](msg string) Option[T] {
	return func(f *Field[T]) { f.required = msg }
}

// Field is the controller for one form input. It is not safe for concurrent
// use; a form owns its fields.
type Field[T any] struct {
	typ      sanitize.Type
	initial  any
	validate Validator[T]
	required string

	value T
	valid bool
	err   string
}

// New creates a field, sanitizing and validating initial immediately.
func New[T any](initial any, opts ...Option[T]) *Field[T] {
	f := &Field[T]{typ: inferType[T](), initial: initial}
	for _, o := range opts {
		if o != nil {
			o(f)
		}
	}
	f.Update(initial)
	return f
}

func (f *Field[T]) Value() T            { return f.value }
func (f *Field[T]) IsValid() bool       { return f.valid }
func (f *Field[T]) Type() sanitize.Type { return f.typ }

// Error returns the current validation message, "" when the field is valid.
func (f *Field[T]) Error() string { return f.err }

// Update sanitizes raw, stores the result and re-runs validation.
func (f *Field[T]) Update(raw any) {
	v := f.coerce(sanitize.Value(raw, f.typ))
	f.value = v
	f.err = f.check(raw, v)
	f.valid = f.err == ""
}

// Reset restores the initial value.
func (f *Field[T]) Reset() { f.Update(f.initial) }

func (f *Field[T]) check(raw any, v T) string {
	if msg := defaultCheck(f.typ, raw, any(v)); msg != "" {
		return msg
	}
	if f.required != "" && isEmpty(any(v)) {
		return f.required
	}
	if f.validate != nil {
		return f.validate(v)
	}
	return ""
}

// coerce converts a sanitized value to T. A mismatch between T and the
// sanitization type yields the zero value.
func (f *Field[T]) coerce(v any) T {
	if out, ok := v.(T); ok {
		return out
	}
	var zero T
	switch p := any(&zero).(type) {
	case *int:
		if n, ok := v.(float64); ok {
			*p = int(n)
		}
	case *int64:
		if n, ok := v.(float64); ok {
			*p = int64(n)
		}
	case *float32:
		if n, ok := v.(float64); ok {
			*p = float32(n)
		}
	case *any:
		*p = v
	}
	return zero
}

func defaultCheck(t sanitize.Type, raw, v any) string {
	rawStr, isStr := raw.(string)
	rawSet := isStr && strings.TrimSpace(rawStr) != ""
	switch t {
	case sanitize.TypeEmail:
		if rawSet && v == "" {
			return msgInvalidEmail
		}
	case sanitize.TypeDate:
		if rawSet && v == "" {
			return msgInvalidDate
		}
	case sanitize.TypeNumber:
		if rawSet && !sanitize.IsNumeric(rawStr) {
			return msgInvalidNumber
		}
	}
	return ""
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case string:
		return x == ""
	case []string:
		return len(x) == 0
	case nil:
		return true
	}
	return false
}

func inferType[T any]() sanitize.Type {
	var zero T
	switch any(zero).(type) {
	case float64, float32, int, int64:
		return sanitize.TypeNumber
	case []string:
		return sanitize.TypeArray
	default:
		return sanitize.TypeText
	}
}
