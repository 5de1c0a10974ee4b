package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"preppertrack/internal/app"
)

func newApp(t *testing.T) (*app.App, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	body := "logging:\n  level: error\n  console: false\nstorage:\n  driver: memory\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := app.New(cfg)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(a.Close)
	return a, dir
}

func TestDispatch(t *testing.T) {
	t.Parallel()
	a, dir := newApp(t)
	ctx := context.Background()

	backup := filepath.Join(dir, "backup.json")
	doc := `{"inventory": [{"id": "w", "name": "Water", "quantity": 2, "minQuantity": 4}], "household": [], "settings": {"lowStockAlerts": true}}`
	if err := os.WriteFile(backup, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		in   string
		code int
		want string
	}{
		{"help", []string{"help"}, "", 0, "usage:"},
		{"unknown", []string{"bogus"}, "", 2, ""},
		{"import declined", []string{"import", backup}, "n\n", 0, "import cancelled"},
		{"import flag after file", []string{"import", backup, "-yes"}, "", 0, "imported:"},
		{"list", []string{"notifications", "-type", "lowStock"}, "", 0, "1 notifications"},
		{"read all", []string{"read", "all"}, "", 0, ""},
		{"read missing arg", []string{"read"}, "", 1, ""},
		{"export", []string{"export", "csv", "-out", dir}, "", 0, ".csv"},
		{"export bad format", []string{"export", "pdf"}, "", 1, ""},
		{"settings show", []string{"settings"}, "", 0, "lowStockAlerts"},
		{"settings set", []string{"settings", "quietStart=21:30", "toEmail=me@example.com"}, "", 0, "set toEmail"},
		{"settings partial", []string{"settings", "soundAlerts=off", "quietEnd=7pm"}, "", 1, "rejected quietEnd"},
		{"settings no equals", []string{"settings", "soundAlerts"}, "", 1, ""},
		{"settings shows saved", []string{"settings"}, "", 0, "me@example.com"},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		code := dispatch(ctx, a, tt.args, strings.NewReader(tt.in), &out)
		if code != tt.code {
			t.Fatalf("%s: code = %d, want %d (out %q)", tt.name, code, tt.code, out.String())
		}
		if tt.want != "" && !strings.Contains(out.String(), tt.want) {
			t.Fatalf("%s: output %q does not contain %q", tt.name, out.String(), tt.want)
		}
	}
}
