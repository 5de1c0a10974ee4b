package inventory

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"

	"preppertrack/internal/sanitize"
)

// MaxOffsetDays bounds an expiration offset (about ten years).
const MaxOffsetDays = 3650

const (
	EmailProviderSimulate = "simulate"
	EmailProviderEmailJS  = "emailjs"
)

type EmailConfig struct {
	FromName  string `json:"fromName"`
	FromEmail string `json:"fromEmail"`
	ToEmail   string `json:"toEmail"`
}

// Settings are the user's notification preferences.
type Settings struct {
	EnableNotifications   bool        `json:"enableNotifications"`
	ExpirationAlerts      bool        `json:"expirationAlerts"`
	ExpirationDays        []int       `json:"expirationDays"`
	LowStockAlerts        bool        `json:"lowStockAlerts"`
	PushNotifications     bool        `json:"pushNotifications"`
	SoundAlerts           bool        `json:"soundAlerts"`
	EnableQuietHours      bool        `json:"enableQuietHours"`
	QuietStart            string      `json:"quietStart"`
	QuietEnd              string      `json:"quietEnd"`
	EmailNotifications    bool        `json:"emailNotifications"`
	EmailExpirationAlerts bool        `json:"emailExpirationAlerts"`
	EmailConfig           EmailConfig `json:"emailConfig"`
	EmailProvider         string      `json:"emailProvider"`
}

func DefaultSettings() Settings {
	return Settings{
		EnableNotifications: true,
		ExpirationAlerts:    true,
		ExpirationDays:      []int{7, 30},
		LowStockAlerts:      false,
		PushNotifications:   true,
		SoundAlerts:         false,
		EnableQuietHours:    false,
		QuietStart:          "22:00",
		QuietEnd:            "07:00",
		EmailProvider:       EmailProviderSimulate,
	}
}

// Offsets returns the configured expiration offsets in [0, MaxOffsetDays],
// unique and ascending. 0 means "expires today".
func (s Settings) Offsets() []int {
	out := make([]int, 0, len(s.ExpirationDays))
	for _, d := range s.ExpirationDays {
		if d >= 0 && d <= MaxOffsetDays && !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}

// ParseOffset reads one expiration offset from a decoded JSON value or user
// input. Only whole numbers in [0, MaxOffsetDays] are accepted; fractions,
// out-of-range values and non-numeric text are rejected, never truncated.
func ParseOffset(v any) (int, bool) {
	var f float64
	switch x := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(sanitize.Text(x)))
		if err != nil {
			return 0, false
		}
		f = float64(n)
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		f = sanitize.Number(v)
	default:
		return 0, false
	}
	if f != math.Trunc(f) || f < 0 || f > MaxOffsetDays {
		return 0, false
	}
	return int(f), true
}

// EmailEnabled reports whether expiration emails can be sent at all.
func (s Settings) EmailEnabled() bool {
	return s.EmailNotifications && s.EmailExpirationAlerts && strings.TrimSpace(s.EmailConfig.ToEmail) != ""
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, false
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}
