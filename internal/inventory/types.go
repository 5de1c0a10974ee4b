package inventory

import (
	"strings"
	"time"

	"preppertrack/internal/sanitize"
)

type Item struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Quantity       float64  `json:"quantity"`
	Unit           string   `json:"unit"`
	ExpirationDate string   `json:"expirationDate,omitempty"`
	Location       string   `json:"location,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	MinQuantity    float64  `json:"minQuantity,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// Expiration returns the item's expiration date as midnight in loc.
// ok is false when the item has no (valid) expiration date.
func (it Item) Expiration(loc *time.Location) (t time.Time, ok bool) {
	s := strings.TrimSpace(it.ExpirationDate)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(sanitize.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LowStock reports whether a minimum is configured and the quantity is at or below it.
func (it Item) LowStock() bool {
	return it.MinQuantity > 0 && it.Quantity <= it.MinQuantity
}

type HouseholdMember struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Age                 float64  `json:"age"`
	Relationship        string   `json:"relationship,omitempty"`
	DietaryRestrictions []string `json:"dietaryRestrictions,omitempty"`
	MedicalConditions   []string `json:"medicalConditions,omitempty"`
	DailyCalories       float64  `json:"dailyCalories,omitempty"`
	DailyWaterLiters    float64  `json:"dailyWaterLiters,omitempty"`
	GroupID             string   `json:"groupId,omitempty"`
}

type HouseholdGroup struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds,omitempty"`
}

type RationingScenario struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	DurationDays        float64 `json:"durationDays"`
	CalorieReductionPct float64 `json:"calorieReduction,omitempty"`
	WaterPerPersonLiter float64 `json:"waterPerPerson,omitempty"`
	Notes               string  `json:"notes,omitempty"`
}

// Snapshot is everything the engine and the exporters read in one go.
type Snapshot struct {
	Inventory        []Item
	Household        []HouseholdMember
	Groups           []HouseholdGroup
	Settings         Settings
	Scenarios        []RationingScenario
	SelectedScenario string
}
