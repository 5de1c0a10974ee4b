// Package notification holds notification records and the store that owns
// their read/cleared state.
package notification

import (
	"fmt"
	"time"
)

type Type string

const (
	TypeExpiration Type = "expiration"
	TypeLowStock   Type = "lowStock"
	TypeSystem     Type = "system"
	TypeSecurity   Type = "security"
)

func (t Type) Valid() bool {
	switch t {
	case TypeExpiration, TypeLowStock, TypeSystem, TypeSecurity:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Urgent reports whether p qualifies for a native system notification.
func (p Priority) Urgent() bool { return p == PriorityHigh || p == PriorityCritical }

// ExpiredDays is the AlertDays value of an expired record.
const ExpiredDays = -1

// Record is one notification. ID is deterministic for derived records and is
// the dedup key.
type Record struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	EmailSent bool      `json:"emailSent"`
	Priority  Priority  `json:"priority"`
	ItemID    string    `json:"itemId,omitempty"`
	AlertDays int       `json:"alertDays"`
}

// ExpiryID is the dedup key of a pre-expiry alert for itemID at offset days.
func ExpiryID(itemID string, days int) string {
	return fmt.Sprintf("exp-%s-%d", itemID, days)
}

// ExpiredID is the dedup key of the past-due alert for itemID.
func ExpiredID(itemID string) string {
	return "expired-" + itemID
}

// LowStockID is the dedup key of a low-stock alert for itemID.
func LowStockID(itemID string) string {
	return "lowstock-" + itemID
}
