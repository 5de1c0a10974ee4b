package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"preppertrack/internal/alerts"
	"preppertrack/internal/delivery"
	"preppertrack/internal/metrics"
	"preppertrack/internal/notification"
	"preppertrack/internal/transfer"
	logx "preppertrack/pkg/logx"
)

// All selects every notification in Read and Clear.
const All = "all"

var (
	ErrDisabled        = errors.New("notifications are disabled in settings")
	ErrImportCancelled = errors.New("import cancelled")
)

// Scan runs one alert scan now.
func (a *App) Scan(ctx context.Context) (alerts.ScanReport, error) {
	start := time.Now()
	rep, err := a.engine.Scan(ctx)
	a.repo.Audit(ctx, "scan", rep.ID, len(rep.Added), 0, err, time.Since(start))
	return rep, err
}

// Notifications lists stored notifications, newest first. An empty typ lists
// every type.
func (a *App) Notifications(typ string) ([]notification.Record, error) {
	if err := a.refresh(context.Background()); err != nil {
		return nil, err
	}
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return a.store.List(), nil
	}
	t := notification.Type(typ)
	if !t.Valid() {
		return nil, fmt.Errorf("unknown notification type %q", typ)
	}
	return a.store.ByType(t), nil
}

func (a *App) UnreadCount() int { return a.store.UnreadCount() }

// Read marks one notification (or All) as read.
func (a *App) Read(ctx context.Context, id string) error {
	return a.notificationOp(ctx, "notification.read", id, a.store.MarkAllAsRead, a.store.MarkAsRead)
}

// Clear removes one notification (or All). The email sent-set is untouched.
func (a *App) Clear(ctx context.Context, id string) error {
	return a.notificationOp(ctx, "notification.clear", id, a.store.ClearAll, a.store.Clear)
}

func (a *App) notificationOp(ctx context.Context, action, id string, all func(context.Context) error, one func(context.Context, string) error) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("notification id is required")
	}
	start := time.Now()
	err := a.refresh(ctx)
	if err == nil && strings.EqualFold(id, All) {
		err = all(ctx)
	} else if err == nil {
		err = one(ctx, id)
	}
	metrics.UnreadNotifications.Set(float64(a.store.UnreadCount()))
	ok, fail := 1, 0
	if err != nil {
		ok, fail = 0, 1
	}
	a.repo.Audit(ctx, action, id, ok, fail, err, time.Since(start))
	return err
}

// Permission explicitly requests notification permission. Requests are never
// made implicitly by scans.
func (a *App) Permission(ctx context.Context) (delivery.Permission, error) {
	settings, err := a.repo.Settings(ctx)
	if err != nil {
		return delivery.PermissionDefault, err
	}
	if !settings.EnableNotifications {
		return a.gate.CurrentPermission(ctx), ErrDisabled
	}
	start := time.Now()
	p := a.gate.RequestPermission(ctx)
	ok, fail := 1, 0
	if p != delivery.PermissionGranted {
		ok, fail = 0, 1
	}
	a.repo.Audit(ctx, "permission.request", string(p), ok, fail, nil, time.Since(start))
	return p, nil
}

// ImportSummary describes a staged import for confirmation.
type ImportSummary struct {
	File       string
	Inventory  int
	Household  int
	Groups     int
	Scenarios  int
	ExportedAt string
	Version    string
}

func (s ImportSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d inventory items, %d household members, %d groups, %d rationing scenarios",
		s.Inventory, s.Household, s.Groups, s.Scenarios)
	if s.ExportedAt != "" {
		fmt.Fprintf(&b, " (exported %s", s.ExportedAt)
		if s.Version != "" {
			fmt.Fprintf(&b, ", version %s", s.Version)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Confirmer approves or rejects a staged import. Importing replaces all
// current data.
type Confirmer func(ImportSummary) bool

// Import validates and parses the file at path, stages it and asks confirm.
// A nil confirm approves. On approval the payload is applied and a scan runs
// so alerts follow the new inventory.
func (a *App) Import(ctx context.Context, path string, confirm Confirmer) (transfer.ApplyReport, error) {
	start := time.Now()
	p, err := transfer.OpenImportFile(path, a.cfgm.Get().Import.MaxUploadBytes)
	if err != nil {
		metrics.Imports.WithLabelValues("rejected").Inc()
		a.repo.Audit(ctx, "import", path, 0, 1, err, time.Since(start))
		return transfer.ApplyReport{}, err
	}
	if err := a.stager.Stage(p); err != nil {
		return transfer.ApplyReport{}, err
	}

	sum := ImportSummary{
		File:       filepath.Base(path),
		Inventory:  len(p.Inventory),
		Household:  len(p.Household),
		Groups:     len(p.Groups),
		Scenarios:  len(p.Scenarios),
		ExportedAt: p.ExportedAt,
		Version:    p.Version,
	}
	if confirm != nil && !confirm(sum) {
		err := a.stager.Cancel()
		a.repo.Audit(ctx, "import.cancel", path, 0, 0, err, time.Since(start))
		if err != nil {
			return transfer.ApplyReport{}, err
		}
		return transfer.ApplyReport{}, ErrImportCancelled
	}

	rep, err := a.stager.Confirm(ctx)
	a.repo.Audit(ctx, "import", path, applied(rep), len(rep.Failures), err, time.Since(start))
	if err != nil {
		return rep, err
	}
	if _, serr := a.engine.Scan(ctx); serr != nil {
		a.log.Warn("scan after import failed", logx.Err(serr))
	}
	return rep, nil
}

func applied(r transfer.ApplyReport) int {
	return r.Inventory + r.Household + r.Groups + r.Scenarios
}

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Export writes the current state to a dated file in dir and returns its path.
func (a *App) Export(ctx context.Context, format, dir string) (string, error) {
	start := time.Now()
	snap, err := a.repo.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	now := a.clock.Now()

	var (
		name  string
		write func(io.Writer) error
	)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		name = transfer.BackupFileName(now)
		write = func(w io.Writer) error { return transfer.ExportJSON(w, snap, now) }
	case FormatCSV:
		name = transfer.ExportFileName(now, FormatCSV)
		write = func(w io.Writer) error { return transfer.ExportCSV(w, snap) }
	case FormatXLSX:
		name = transfer.ExportFileName(now, FormatXLSX)
		write = func(w io.Writer) error { return transfer.ExportXLSX(w, snap) }
	default:
		return "", fmt.Errorf("unknown export format %q (want json, csv or xlsx)", format)
	}

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, name)
	err = writeFileAtomic(path, write)
	ok, fail := 1, 0
	if err != nil {
		ok, fail = 0, 1
	}
	a.repo.Audit(ctx, "export."+strings.ToLower(format), path, ok, fail, err, time.Since(start))
	if err != nil {
		return "", err
	}
	a.log.Info("export written", logx.String("path", path), logx.Int("items", len(snap.Inventory)))
	return path, nil
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
