// Package transfer moves user data in and out of PrepperTrack: validated and
// sanitized JSON backups staged behind an explicit confirmation, plus JSON,
// CSV and XLSX exports.
package transfer

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"preppertrack/internal/inventory"
	"preppertrack/internal/sanitize"
)

// ImportError is a structural problem with an import file. Its message is
// meant to be shown to the user as is.
type ImportError struct {
	Msg string
}

func (e *ImportError) Error() string { return e.Msg }

func importErr(format string, args ...any) *ImportError {
	return &ImportError{Msg: fmt.Sprintf(format, args...)}
}

// Payload is a parsed, sanitized backup ready to be staged.
type Payload struct {
	Inventory        []inventory.Item
	Household        []inventory.HouseholdMember
	Groups           []inventory.HouseholdGroup
	Settings         inventory.Settings
	Scenarios        []inventory.RationingScenario
	SelectedScenario string
	ExportedAt       string
	Version          string
}

// ParseImport decodes and validates a backup document. State is never
// touched here; a failure is always an *ImportError.
func ParseImport(r io.Reader) (*Payload, error) {
	var raw any
	dec := json.NewDecoder(io.LimitReader(r, sanitize.MaxUploadSize+1))
	if err := dec.Decode(&raw); err != nil {
		return nil, importErr("Invalid backup file: not valid JSON")
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, importErr("Invalid backup file: expected a JSON object")
	}
	for _, key := range []string{"inventory", "household", "settings"} {
		if v, ok := doc[key]; !ok || v == nil {
			return nil, importErr("Invalid backup file: missing %s", key)
		}
	}
	if _, ok := doc["inventory"].([]any); !ok {
		return nil, importErr("Invalid backup file: inventory must be an array")
	}
	if _, ok := doc["household"].([]any); !ok {
		return nil, importErr("Invalid backup file: household must be an array")
	}
	if _, ok := doc["settings"].(map[string]any); !ok {
		return nil, importErr("Invalid backup file: settings must be an object")
	}

	clean, _ := sanitize.JSONData(doc).(map[string]any)
	if clean == nil {
		return nil, importErr("Invalid backup file: empty document")
	}

	p := &Payload{
		Settings:         inventory.SettingsFromMap(asMap(clean["settings"])),
		SelectedScenario: selectedID(clean["selectedRationingScenario"]),
		ExportedAt:       sanitize.Text(clean["exportedAt"]),
		Version:          sanitize.Text(clean["version"]),
	}
	for _, m := range objects(clean["inventory"]) {
		p.Inventory = append(p.Inventory, inventory.ItemFromMap(m))
	}
	for _, m := range objects(clean["household"]) {
		p.Household = append(p.Household, inventory.MemberFromMap(m))
	}
	for _, m := range objects(clean["householdGroups"]) {
		p.Groups = append(p.Groups, inventory.GroupFromMap(m))
	}
	for _, m := range objects(clean["rationingScenarios"]) {
		p.Scenarios = append(p.Scenarios, inventory.ScenarioFromMap(m))
	}
	return p, nil
}

// OpenImportFile validates path as an upload and parses it. maxBytes, when
// positive, tightens the upload size limit.
func OpenImportFile(path string, maxBytes int64) (*Payload, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	info := sanitize.FileInfo{Name: filepath.Base(path), Size: st.Size(), MimeType: mimeFor(path)}
	if res := sanitize.ValidateFileUpload(info); !res.IsValid {
		return nil, &ImportError{Msg: res.Error}
	}
	if maxBytes > 0 && st.Size() > maxBytes {
		return nil, importErr("File size must be at most %d bytes", maxBytes)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseImport(f)
}

func mimeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	if ext == ".json" {
		return "application/json"
	}
	return "application/octet-stream"
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// objects returns the object elements of a JSON array; other elements are skipped.
func objects(v any) []map[string]any {
	arr, _ := v.([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// selectedID accepts either a scenario id or a whole scenario object.
func selectedID(v any) string {
	switch t := v.(type) {
	case map[string]any:
		return inventory.ScenarioFromMap(t).ID
	case nil:
		return ""
	default:
		return inventory.ScenarioFromMap(map[string]any{"id": t}).ID
	}
}
