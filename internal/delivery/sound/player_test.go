package sound

import (
	"bytes"
	"context"
	"os/exec"
	"testing"
)

func TestBellFallback(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := New("  ", &buf).Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if buf.String() != "\a" {
		t.Fatalf("wrote %q", buf.String())
	}
}

func TestNoOutput(t *testing.T) {
	t.Parallel()
	if err := New("", nil).Play(context.Background()); err == nil {
		t.Fatalf("expected error without output")
	}
}

func TestCommand(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	if err := New("true", nil).Play(context.Background()); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := New("preppertrack-no-such-player --loud", nil).Play(context.Background()); err == nil {
		t.Fatalf("expected error for missing command")
	}
}
