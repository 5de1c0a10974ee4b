// Package sound plays the audible alert: an external player command when one
// is configured, otherwise the terminal bell.
package sound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

const bell = "\a"

// Player is a delivery.SoundEmitter.
type Player struct {
	argv []string

	mu  sync.Mutex
	out io.Writer
}

// New returns a player running command (split on whitespace, e.g.
// "paplay /usr/share/sounds/freedesktop/stereo/bell.oga"). With an empty
// command the bell is written to out.
func New(command string, out io.Writer) *Player {
	return &Player{argv: strings.Fields(command), out: out}
}

func (p *Player) Play(ctx context.Context) error {
	if len(p.argv) == 0 {
		return p.ring()
	}
	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("sound command %s: %w: %s", p.argv[0], err, msg)
		}
		return fmt.Errorf("sound command %s: %w", p.argv[0], err)
	}
	return nil
}

func (p *Player) ring() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out == nil {
		return errors.New("no sound output configured")
	}
	_, err := io.WriteString(p.out, bell)
	return err
}
