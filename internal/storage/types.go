package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed   = errors.New("storage closed")
	ErrEmptyKey = errors.New("storage key is empty")
)

// Store is the persistence API used by the state repository.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "memory": process-local map, nothing survives a restart
//   - "file": snapshot + journal files next to Path
//   - "sqlite": SQLite database file (build tag "sqlite")
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one user-initiated action.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Action string    `json:"action"`
	Target string    `json:"target,omitempty"`
	OK     int       `json:"ok,omitempty"`
	Fail   int       `json:"fail,omitempty"`
	Error  string    `json:"err,omitempty"`
	TookMS int64     `json:"took_ms,omitempty"`
	Meta   string    `json:"meta,omitempty"`
}
