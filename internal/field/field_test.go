package field

import (
	"reflect"
	"testing"

	"preppertrack/internal/sanitize"
)

func TestNewSanitizesEagerly(t *testing.T) {
	t.Parallel()
	f := New[string]("<b>Rice</b>")
	if f.Value() != "Rice" {
		t.Fatalf("Value = %q, want Rice", f.Value())
	}
	if !f.IsValid() || f.Error() != "" {
		t.Fatalf("expected valid field, got err=%q", f.Error())
	}
	if f.Type() != sanitize.TypeText {
		t.Fatalf("Type = %q, want text", f.Type())
	}
}

func TestDefaultChecks(t *testing.T) {
	t.Parallel()

	email := New[string]("", WithType[string](sanitize.TypeEmail))
	if !email.IsValid() {
		t.Fatalf("empty email should be valid without WithRequired: %q", email.Error())
	}
	email.Update("not-an-email")
	if email.IsValid() || email.Error() != "Invalid email address" {
		t.Fatalf("email: valid=%v err=%q", email.IsValid(), email.Error())
	}
	if email.Value() != "" {
		t.Fatalf("email value = %q, want empty", email.Value())
	}
	email.Update("me@example.org")
	if !email.IsValid() || email.Value() != "me@example.org" {
		t.Fatalf("email: valid=%v value=%q", email.IsValid(), email.Value())
	}

	date := New[string]("2024-05-01", WithType[string](sanitize.TypeDate))
	date.Update("yesterday")
	if date.Error() != "Invalid date" {
		t.Fatalf("date err = %q", date.Error())
	}

	qty := New[float64](1)
	qty.Update("lots")
	if qty.IsValid() || qty.Error() != "Must be a valid number" {
		t.Fatalf("number: valid=%v err=%q", qty.IsValid(), qty.Error())
	}
	if qty.Value() != 0 {
		t.Fatalf("number value = %v, want 0", qty.Value())
	}
	qty.Update("12.5")
	if !qty.IsValid() || qty.Value() != 12.5 {
		t.Fatalf("number: valid=%v value=%v", qty.IsValid(), qty.Value())
	}
}

func TestValidatorAndRequired(t *testing.T) {
	t.Parallel()
	positive := func(v float64) string {
		if v <= 0 {
			return "Quantity must be greater than 0"
		}
		return ""
	}
	qty := New[float64](5, WithValidator(Validator[float64](positive)))
	if !qty.IsValid() {
		t.Fatalf("initial should be valid: %q", qty.Error())
	}
	qty.Update(-2)
	if qty.Error() != "Quantity must be greater than 0" {
		t.Fatalf("err = %q", qty.Error())
	}
	if qty.Value() != -2 {
		t.Fatalf("sanitized value must be stored even when invalid, got %v", qty.Value())
	}

	name := New[string]("", WithRequired[string]("Name is required"))
	if name.IsValid() || name.Error() != "Name is required" {
		t.Fatalf("required: valid=%v err=%q", name.IsValid(), name.Error())
	}
	name.Update("<i></i>")
	if name.Error() != "Name is required" {
		t.Fatalf("markup-only input should count as empty, err=%q", name.Error())
	}
	name.Update("Water")
	if !name.IsValid() {
		t.Fatalf("expected valid, err=%q", name.Error())
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	tags := New[[]string]([]any{"food"})
	tags.Update([]any{"a", "<b>b</b>"})
	if want := []string{"a", "b"}; !reflect.DeepEqual(tags.Value(), want) {
		t.Fatalf("Value = %#v, want %#v", tags.Value(), want)
	}
	tags.Reset()
	if want := []string{"food"}; !reflect.DeepEqual(tags.Value(), want) {
		t.Fatalf("after Reset Value = %#v, want %#v", tags.Value(), want)
	}
}

func TestIntField(t *testing.T) {
	t.Parallel()
	days := New[int]("7")
	if days.Value() != 7 || !days.IsValid() {
		t.Fatalf("int field: value=%d valid=%v", days.Value(), days.IsValid())
	}
}

func TestFormKeepsFieldsIndependent(t *testing.T) {
	t.Parallel()
	name := New[string]("", WithRequired[string]("Name is required"))
	email := New[string]("", WithType[string](sanitize.TypeEmail))
	qty := New[float64](0)

	form := NewForm().Add("name", name).Add("email", email).Add("quantity", qty)
	form.Set(map[string]any{
		"name":     "<script>x</script>Beans",
		"email":    "broken@",
		"quantity": "3",
		"unknown":  "ignored",
	})

	if form.Valid() {
		t.Fatal("form should be invalid")
	}
	if got := form.Errors(); !reflect.DeepEqual(got, map[string]string{"email": "Invalid email address"}) {
		t.Fatalf("Errors = %#v", got)
	}
	if name.Value() != "Beans" || qty.Value() != 3 {
		t.Fatalf("other fields should still update: name=%q qty=%v", name.Value(), qty.Value())
	}
	if got := form.InvalidNames(); !reflect.DeepEqual(got, []string{"email"}) {
		t.Fatalf("InvalidNames = %#v", got)
	}
	if got := form.Names(); !reflect.DeepEqual(got, []string{"name", "email", "quantity"}) {
		t.Fatalf("Names = %#v", got)
	}

	form.Reset()
	if name.Value() != "" || qty.Value() != 0 {
		t.Fatalf("Reset: name=%q qty=%v", name.Value(), qty.Value())
	}
}
