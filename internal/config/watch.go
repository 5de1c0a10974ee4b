package config

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "preppertrack/pkg/logx"
)

const (
	reloadDebounce = 250 * time.Millisecond
	backoffMin     = 250 * time.Millisecond
	backoffMax     = 5 * time.Second
)

// Watch reloads the config whenever its file changes and returns when ctx is
// done. The parent directory is watched so editors that save by rename are
// seen too. A failed watcher is recreated with backoff.
func (m *ConfigManager) Watch(ctx context.Context) error {
	var b restartBackoff
	for {
		err := m.watchOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		wait := b.next()
		m.log.Warn("config watcher restarting", logx.Err(err), logx.Duration("backoff", wait))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (m *ConfigManager) watchOnce(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir, name := filepath.Split(filepath.Clean(m.path))
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return err
	}

	d := newDebouncer(reloadDebounce, func() { m.reloadFromWatch(ctx) })
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return fsnotify.ErrClosed
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				d.trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return fsnotify.ErrClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; re-read instead of trusting the queue.
				m.log.Warn("config watcher overflow", logx.Err(err))
				d.trigger()
				continue
			}
			return err
		}
	}
}

func (m *ConfigManager) reloadFromWatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := m.Reload(ctx)
	switch {
	case err == nil, errors.Is(err, ErrUnchanged):
	default:
		m.log.Warn("config reload rejected; keeping current config", logx.String("path", m.path), logx.Err(err))
	}
}

// debouncer runs fn once, d after the last trigger.
type debouncer struct {
	d  time.Duration
	fn func()

	mu sync.Mutex
	t  *time.Timer
}

func newDebouncer(d time.Duration, fn func()) *debouncer {
	return &debouncer{d: d, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
	}
	d.t = time.AfterFunc(d.d, d.fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		d.t.Stop()
		d.t = nil
	}
}

// restartBackoff doubles from backoffMin up to backoffMax, with up to 20%
// jitter.
type restartBackoff struct {
	cur time.Duration
}

func (b *restartBackoff) next() time.Duration {
	switch {
	case b.cur == 0:
		b.cur = backoffMin
	case b.cur < backoffMax:
		b.cur = min(b.cur*2, backoffMax)
	}
	return b.cur + time.Duration(rand.Int64N(int64(b.cur/5)+1))
}
