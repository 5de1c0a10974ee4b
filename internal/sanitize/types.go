package sanitize

// Type is the declared semantic type of an input. It selects both the
// sanitizer and the default validity checks of a form field.
type Type string

const (
	TypeText   Type = "text"
	TypeNumber Type = "number"
	TypeEmail  Type = "email"
	TypeDate   Type = "date"
	TypeArray  Type = "array"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeNumber, TypeEmail, TypeDate, TypeArray:
		return true
	}
	return false
}

// Value sanitizes v according to t. Unknown types fall back to text.
func Value(v any, t Type) any {
	switch t {
	case TypeNumber:
		return Number(v)
	case TypeEmail:
		return Email(v)
	case TypeDate:
		return Date(v)
	case TypeArray:
		return StringArray(v)
	default:
		return Text(v)
	}
}
