package inventory

import (
	"strconv"

	"preppertrack/internal/sanitize"
)

// The *FromMap constructors build typed values from a JSON object that has
// already been through sanitize.JSONData. Every field is re-sanitized with
// its declared type, so they are also safe on raw decoded input.

func ItemFromMap(m map[string]any) Item {
	return Item{
		ID:             idString(m["id"]),
		Name:           sanitize.Text(m["name"]),
		Category:       sanitize.Text(m["category"]),
		Quantity:       sanitize.Number(m["quantity"]),
		Unit:           sanitize.Text(m["unit"]),
		ExpirationDate: sanitize.Date(m["expirationDate"]),
		Location:       sanitize.Text(m["location"]),
		Notes:          sanitize.Text(m["notes"]),
		MinQuantity:    sanitize.Number(m["minQuantity"]),
		Tags:           sanitize.StringArray(m["tags"]),
	}
}

func MemberFromMap(m map[string]any) HouseholdMember {
	return HouseholdMember{
		ID:                  idString(m["id"]),
		Name:                sanitize.Text(m["name"]),
		Age:                 sanitize.Number(m["age"]),
		Relationship:        sanitize.Text(m["relationship"]),
		DietaryRestrictions: sanitize.StringArray(m["dietaryRestrictions"]),
		MedicalConditions:   sanitize.StringArray(m["medicalConditions"]),
		DailyCalories:       sanitize.Number(m["dailyCalories"]),
		DailyWaterLiters:    sanitize.Number(m["dailyWaterLiters"]),
		GroupID:             idString(m["groupId"]),
	}
}

func GroupFromMap(m map[string]any) HouseholdGroup {
	ids := sanitize.StringArray(m["memberIds"])
	return HouseholdGroup{
		ID:        idString(m["id"]),
		Name:      sanitize.Text(m["name"]),
		MemberIDs: ids,
	}
}

func ScenarioFromMap(m map[string]any) RationingScenario {
	return RationingScenario{
		ID:                  idString(m["id"]),
		Name:                sanitize.Text(m["name"]),
		DurationDays:        sanitize.Number(m["durationDays"]),
		CalorieReductionPct: sanitize.Number(m["calorieReduction"]),
		WaterPerPersonLiter: sanitize.Number(m["waterPerPerson"]),
		Notes:               sanitize.Text(m["notes"]),
	}
}

// SettingsFromMap overlays m onto the defaults. Keys that are absent or of
// the wrong kind keep their default value.
func SettingsFromMap(m map[string]any) Settings {
	s := DefaultSettings()
	setBool(m, "enableNotifications", &s.EnableNotifications)
	setBool(m, "expirationAlerts", &s.ExpirationAlerts)
	setBool(m, "lowStockAlerts", &s.LowStockAlerts)
	setBool(m, "pushNotifications", &s.PushNotifications)
	setBool(m, "soundAlerts", &s.SoundAlerts)
	setBool(m, "enableQuietHours", &s.EnableQuietHours)
	setBool(m, "emailNotifications", &s.EmailNotifications)
	setBool(m, "emailExpirationAlerts", &s.EmailExpirationAlerts)

	if raw, ok := m["expirationDays"].([]any); ok {
		days := make([]int, 0, len(raw))
		for _, v := range raw {
			if d, ok := ParseOffset(v); ok {
				days = append(days, d)
			}
		}
		s.ExpirationDays = days
	}
	if v, ok := m["quietStart"].(string); ok {
		if _, valid := ParseClock(v); valid {
			s.QuietStart = v
		}
	}
	if v, ok := m["quietEnd"].(string); ok {
		if _, valid := ParseClock(v); valid {
			s.QuietEnd = v
		}
	}
	if v := sanitize.Text(m["emailProvider"]); v != "" {
		s.EmailProvider = v
	}
	if ec, ok := m["emailConfig"].(map[string]any); ok {
		s.EmailConfig = EmailConfig{
			FromName:  sanitize.Text(ec["fromName"]),
			FromEmail: sanitize.Email(ec["fromEmail"]),
			ToEmail:   sanitize.Email(ec["toEmail"]),
		}
	}
	return s
}

func setBool(m map[string]any, key string, dst *bool) {
	if v, ok := m[key].(bool); ok {
		*dst = v
	}
}

// idString accepts string and numeric ids; numeric ids appear in backups
// written by older versions that used timestamps as keys.
func idString(v any) string {
	switch x := v.(type) {
	case string:
		return sanitize.Text(x)
	case float64:
		if x == 0 {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}
