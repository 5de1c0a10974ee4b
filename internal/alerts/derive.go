// Package alerts derives notification records from inventory state and runs
// the periodic scan that merges them into the store and hands new ones to the
// delivery gate.
package alerts

import (
	"fmt"
	"strconv"
	"time"

	"preppertrack/internal/inventory"
	"preppertrack/internal/notification"
)

// DaysUntil counts calendar days from now's date to exp's date, both taken in
// exp's location. For a midnight exp this equals ceil((exp-now)/24h) except
// across a DST change, where a day is not 24h long.
func DaysUntil(exp, now time.Time) int {
	now = now.In(exp.Location())
	a := time.Date(exp.Year(), exp.Month(), exp.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

// PriorityFor maps a pre-expiry offset to its priority.
func PriorityFor(days int) notification.Priority {
	switch {
	case days <= 7:
		return notification.PriorityHigh
	case days <= 30:
		return notification.PriorityMedium
	default:
		return notification.PriorityLow
	}
}

// Derive returns every record the current inventory and settings call for.
// It is pure: the same inputs always produce the same records, so merging
// the result by id is idempotent.
func Derive(items []inventory.Item, settings inventory.Settings, now time.Time, loc *time.Location) []notification.Record {
	if !settings.EnableNotifications {
		return nil
	}
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	offsets := settings.Offsets()

	var out []notification.Record
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if settings.ExpirationAlerts {
			out = append(out, expiryRecords(it, offsets, now, loc)...)
		}
		if settings.LowStockAlerts && it.LowStock() {
			out = append(out, lowStockRecord(it, now))
		}
	}
	return out
}

func expiryRecords(it inventory.Item, offsets []int, now time.Time, loc *time.Location) []notification.Record {
	exp, ok := it.Expiration(loc)
	if !ok {
		return nil
	}
	days := DaysUntil(exp, now)
	if days < 0 {
		return []notification.Record{{
			ID:        notification.ExpiredID(it.ID),
			Type:      notification.TypeExpiration,
			Title:     "Item expired",
			Message:   fmt.Sprintf("%s expired on %s", displayName(it), it.ExpirationDate),
			Timestamp: now,
			Priority:  notification.PriorityCritical,
			ItemID:    it.ID,
			AlertDays: notification.ExpiredDays,
		}}
	}
	var out []notification.Record
	for _, d := range offsets {
		if days != d {
			continue
		}
		out = append(out, notification.Record{
			ID:        notification.ExpiryID(it.ID, d),
			Type:      notification.TypeExpiration,
			Title:     "Item expiring soon",
			Message:   expiresIn(displayName(it), d, it.ExpirationDate),
			Timestamp: now,
			Priority:  PriorityFor(d),
			ItemID:    it.ID,
			AlertDays: d,
		})
	}
	return out
}

func lowStockRecord(it inventory.Item, now time.Time) notification.Record {
	return notification.Record{
		ID:        notification.LowStockID(it.ID),
		Type:      notification.TypeLowStock,
		Title:     "Low stock",
		Message:   fmt.Sprintf("%s is down to %s %s (minimum %s)", displayName(it), num(it.Quantity), it.Unit, num(it.MinQuantity)),
		Timestamp: now,
		Priority:  notification.PriorityMedium,
		ItemID:    it.ID,
	}
}

func displayName(it inventory.Item) string {
	if it.Name != "" {
		return it.Name
	}
	return it.ID
}

func expiresIn(name string, d int, date string) string {
	if d == 0 {
		return fmt.Sprintf("%s expires today (%s)", name, date)
	}
	return fmt.Sprintf("%s expires in %s (%s)", name, plural(d, "day"), date)
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
