package field

import "sort"

// Control is the type-erased view of a Field used by Form.
type Control interface {
	IsValid() bool
	Error() string
	Update(raw any)
	Reset()
}

// Form groups named fields. A failing field never blocks the others: every
// field is sanitized and validated on its own.
type Form struct {
	order  []string
	fields map[string]Control
}

func NewForm() *Form {
	return &Form{fields: map[string]Control{}}
}

// Add registers c under name, replacing any previous control with that name.
func (f *Form) Add(name string, c Control) *Form {
	if _, ok := f.fields[name]; !ok {
		f.order = append(f.order, name)
	}
	f.fields[name] = c
	return f
}

func (f *Form) Get(name string) (Control, bool) {
	c, ok := f.fields[name]
	return c, ok
}

// Set updates every named field present in values. Unknown names are ignored.
func (f *Form) Set(values map[string]any) {
	for name, raw := range values {
		if c, ok := f.fields[name]; ok {
			c.Update(raw)
		}
	}
}

func (f *Form) Valid() bool {
	for _, c := range f.fields {
		if !c.IsValid() {
			return false
		}
	}
	return true
}

// Errors maps field name to message for every invalid field.
func (f *Form) Errors() map[string]string {
	out := map[string]string{}
	for name, c := range f.fields {
		if !c.IsValid() {
			out[name] = c.Error()
		}
	}
	return out
}

// Names returns the registered field names in registration order.
func (f *Form) Names() []string {
	return append([]string(nil), f.order...)
}

// InvalidNames returns the sorted names of invalid fields.
func (f *Form) InvalidNames() []string {
	var out []string
	for name, c := range f.fields {
		if !c.IsValid() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (f *Form) Reset() {
	for _, c := range f.fields {
		c.Reset()
	}
}
