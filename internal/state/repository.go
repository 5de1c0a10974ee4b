// Package state is the typed view of the persisted key-value store: one key
// per collection, JSON values.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"preppertrack/internal/inventory"
	"preppertrack/internal/notification"
	"preppertrack/internal/storage"
	logx "preppertrack/pkg/logx"
)

const (
	KeyInventory        = "inventory"
	KeyHousehold        = "household"
	KeyGroups           = "householdGroups"
	KeySettings         = "settings"
	KeyScenarios        = "rationingScenarios"
	KeySelectedScenario = "selectedRationingScenario"
	KeyNotifications    = "notifications"
	KeyEmailSent        = "emailSentSet"
	KeyPermission       = "notificationPermission"
)

type Repository struct {
	kv  storage.Store
	log logx.Logger
}

func New(kv storage.Store, log logx.Logger) *Repository {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Repository{kv: kv, log: log}
}

func load[T any](ctx context.Context, kv storage.Store, key string, def T) (T, error) {
	b, ok, err := kv.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || len(b) == 0 {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return def, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func save[T any](ctx context.Context, kv storage.Store, key string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Put(ctx, key, b); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Snapshot loads every collection the engine and exporters need.
func (r *Repository) Snapshot(ctx context.Context) (inventory.Snapshot, error) {
	var (
		snap inventory.Snapshot
		err  error
	)
	if snap.Inventory, err = r.Inventory(ctx); err != nil {
		return snap, err
	}
	if snap.Household, err = r.Household(ctx); err != nil {
		return snap, err
	}
	if snap.Groups, err = r.Groups(ctx); err != nil {
		return snap, err
	}
	if snap.Settings, err = r.Settings(ctx); err != nil {
		return snap, err
	}
	if snap.Scenarios, err = r.Scenarios(ctx); err != nil {
		return snap, err
	}
	if snap.SelectedScenario, err = r.SelectedScenario(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

func (r *Repository) Inventory(ctx context.Context) ([]inventory.Item, error) {
	return load(ctx, r.kv, KeyInventory, []inventory.Item{})
}

func (r *Repository) SaveInventory(ctx context.Context, items []inventory.Item) error {
	return save(ctx, r.kv, KeyInventory, nonNil(items))
}

func (r *Repository) Household(ctx context.Context) ([]inventory.HouseholdMember, error) {
	return load(ctx, r.kv, KeyHousehold, []inventory.HouseholdMember{})
}

func (r *Repository) SaveHousehold(ctx context.Context, members []inventory.HouseholdMember) error {
	return save(ctx, r.kv, KeyHousehold, nonNil(members))
}

func (r *Repository) Groups(ctx context.Context) ([]inventory.HouseholdGroup, error) {
	return load(ctx, r.kv, KeyGroups, []inventory.HouseholdGroup{})
}

func (r *Repository) SaveGroups(ctx context.Context, groups []inventory.HouseholdGroup) error {
	return save(ctx, r.kv, KeyGroups, nonNil(groups))
}

// Settings returns the stored settings, or the defaults when none are stored.
func (r *Repository) Settings(ctx context.Context) (inventory.Settings, error) {
	return load(ctx, r.kv, KeySettings, inventory.DefaultSettings())
}

func (r *Repository) SaveSettings(ctx context.Context, s inventory.Settings) error {
	return save(ctx, r.kv, KeySettings, s)
}

func (r *Repository) Scenarios(ctx context.Context) ([]inventory.RationingScenario, error) {
	return load(ctx, r.kv, KeyScenarios, []inventory.RationingScenario{})
}

func (r *Repository) SaveScenarios(ctx context.Context, sc []inventory.RationingScenario) error {
	return save(ctx, r.kv, KeyScenarios, nonNil(sc))
}

func (r *Repository) SelectedScenario(ctx context.Context) (string, error) {
	return load(ctx, r.kv, KeySelectedScenario, "")
}

func (r *Repository) SaveSelectedScenario(ctx context.Context, id string) error {
	return save(ctx, r.kv, KeySelectedScenario, id)
}

func (r *Repository) Notifications(ctx context.Context) ([]notification.Record, error) {
	return load(ctx, r.kv, KeyNotifications, []notification.Record{})
}

// SaveNotifications makes Repository a notification.Saver.
func (r *Repository) SaveNotifications(ctx context.Context, recs []notification.Record) error {
	return save(ctx, r.kv, KeyNotifications, nonNil(recs))
}

// EmailSent returns the persisted email sent-set keys.
func (r *Repository) EmailSent(ctx context.Context) ([]string, error) {
	return load(ctx, r.kv, KeyEmailSent, []string{})
}

func (r *Repository) SaveEmailSent(ctx context.Context, keys []string) error {
	return save(ctx, r.kv, KeyEmailSent, nonNil(keys))
}

// Permission returns the last recorded notification permission, "" if never asked.
func (r *Repository) Permission(ctx context.Context) (string, error) {
	return load(ctx, r.kv, KeyPermission, "")
}

func (r *Repository) SavePermission(ctx context.Context, p string) error {
	return save(ctx, r.kv, KeyPermission, p)
}

// Audit appends an audit entry; failures are logged, never returned.
func (r *Repository) Audit(ctx context.Context, action, target string, ok, fail int, err error, took time.Duration) {
	e := storage.AuditEntry{
		At:     time.Now(),
		Action: action,
		Target: target,
		OK:     ok,
		Fail:   fail,
		TookMS: took.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := r.kv.AppendAudit(ctx, e); aerr != nil {
		r.log.Warn("audit append failed", logx.String("action", action), logx.Err(aerr))
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
