package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"preppertrack/internal/field"
	"preppertrack/internal/inventory"
	"preppertrack/internal/sanitize"
)

var ErrInvalidSettings = errors.New("some settings were rejected")

// SettingValue is one notification setting in its display form.
type SettingValue struct {
	Key   string
	Value string
}

// SettingsUpdate reports which keys an UpdateSettings call saved and why the
// others were rejected.
type SettingsUpdate struct {
	Applied []string
	Errors  map[string]string
}

// setting binds one key to a form field built from user input and to the
// Settings member it writes.
type setting struct {
	key   string
	show  func(s inventory.Settings) string
	build func(raw string) (field.Control, func(s *inventory.Settings))
}

func boolSetting(key string, get func(inventory.Settings) bool, set func(*inventory.Settings, bool)) setting {
	return setting{
		key:  key,
		show: func(s inventory.Settings) string { return strconv.FormatBool(get(s)) },
		build: func(raw string) (field.Control, func(*inventory.Settings)) {
			f := field.New[string](raw,
				field.WithRequired[string]("Must be true or false"),
				field.WithValidator(func(v string) string {
					if _, ok := parseSwitch(v); !ok {
						return "Must be true or false"
					}
					return ""
				}))
			return f, func(s *inventory.Settings) {
				b, _ := parseSwitch(f.Value())
				set(s, b)
			}
		},
	}
}

func textSetting(key string, typ sanitize.Type, get func(inventory.Settings) string, set func(*inventory.Settings, string), validate field.Validator[string]) setting {
	return setting{
		key:  key,
		show: get,
		build: func(raw string) (field.Control, func(*inventory.Settings)) {
			f := field.New[string](raw, field.WithType[string](typ), field.WithValidator(validate))
			return f, func(s *inventory.Settings) { set(s, f.Value()) }
		},
	}
}

func clockValidator(v string) string {
	if _, ok := inventory.ParseClock(v); !ok {
		return "Use HH:MM (24-hour)"
	}
	return ""
}

func providerValidator(v string) string {
	switch v {
	case inventory.EmailProviderSimulate, inventory.EmailProviderEmailJS:
		return ""
	}
	return fmt.Sprintf("Must be %s or %s", inventory.EmailProviderSimulate, inventory.EmailProviderEmailJS)
}

var daysSetting = setting{
	key: "expirationDays",
	show: func(s inventory.Settings) string {
		parts := make([]string, len(s.ExpirationDays))
		for i, d := range s.ExpirationDays {
			parts[i] = strconv.Itoa(d)
		}
		return strings.Join(parts, ",")
	},
	build: func(raw string) (field.Control, func(*inventory.Settings)) {
		var parts []any
		for p := range strings.SplitSeq(raw, ",") {
			parts = append(parts, p)
		}
		f := field.New[[]string](parts, field.WithValidator(func(v []string) string {
			for _, p := range v {
				if _, ok := inventory.ParseOffset(p); !ok {
					return fmt.Sprintf("Offsets must be whole days from 0 to %d", inventory.MaxOffsetDays)
				}
			}
			return ""
		}))
		return f, func(s *inventory.Settings) {
			days := make([]int, 0, len(f.Value()))
			for _, p := range f.Value() {
				d, _ := inventory.ParseOffset(p)
				days = append(days, d)
			}
			s.ExpirationDays = days
		}
	},
}

// settingsTable lists every editable key in display order.
var settingsTable = []setting{
	boolSetting("enableNotifications",
		func(s inventory.Settings) bool { return s.EnableNotifications },
		func(s *inventory.Settings, v bool) { s.EnableNotifications = v }),
	boolSetting("expirationAlerts",
		func(s inventory.Settings) bool { return s.ExpirationAlerts },
		func(s *inventory.Settings, v bool) { s.ExpirationAlerts = v }),
	daysSetting,
	boolSetting("lowStockAlerts",
		func(s inventory.Settings) bool { return s.LowStockAlerts },
		func(s *inventory.Settings, v bool) { s.LowStockAlerts = v }),
	boolSetting("pushNotifications",
		func(s inventory.Settings) bool { return s.PushNotifications },
		func(s *inventory.Settings, v bool) { s.PushNotifications = v }),
	boolSetting("soundAlerts",
		func(s inventory.Settings) bool { return s.SoundAlerts },
		func(s *inventory.Settings, v bool) { s.SoundAlerts = v }),
	boolSetting("enableQuietHours",
		func(s inventory.Settings) bool { return s.EnableQuietHours },
		func(s *inventory.Settings, v bool) { s.EnableQuietHours = v }),
	textSetting("quietStart", sanitize.TypeText,
		func(s inventory.Settings) string { return s.QuietStart },
		func(s *inventory.Settings, v string) { s.QuietStart = v },
		clockValidator),
	textSetting("quietEnd", sanitize.TypeText,
		func(s inventory.Settings) string { return s.QuietEnd },
		func(s *inventory.Settings, v string) { s.QuietEnd = v },
		clockValidator),
	boolSetting("emailNotifications",
		func(s inventory.Settings) bool { return s.EmailNotifications },
		func(s *inventory.Settings, v bool) { s.EmailNotifications = v }),
	boolSetting("emailExpirationAlerts",
		func(s inventory.Settings) bool { return s.EmailExpirationAlerts },
		func(s *inventory.Settings, v bool) { s.EmailExpirationAlerts = v }),
	textSetting("emailProvider", sanitize.TypeText,
		func(s inventory.Settings) string { return s.EmailProvider },
		func(s *inventory.Settings, v string) { s.EmailProvider = v },
		providerValidator),
	textSetting("fromName", sanitize.TypeText,
		func(s inventory.Settings) string { return s.EmailConfig.FromName },
		func(s *inventory.Settings, v string) { s.EmailConfig.FromName = v },
		nil),
	textSetting("fromEmail", sanitize.TypeEmail,
		func(s inventory.Settings) string { return s.EmailConfig.FromEmail },
		func(s *inventory.Settings, v string) { s.EmailConfig.FromEmail = v },
		nil),
	textSetting("toEmail", sanitize.TypeEmail,
		func(s inventory.Settings) string { return s.EmailConfig.ToEmail },
		func(s *inventory.Settings, v string) { s.EmailConfig.ToEmail = v },
		nil),
}

func lookupSetting(key string) (setting, bool) {
	i := slices.IndexFunc(settingsTable, func(s setting) bool { return strings.EqualFold(s.key, key) })
	if i < 0 {
		return setting{}, false
	}
	return settingsTable[i], true
}

// Settings returns the stored notification settings in display order.
func (a *App) Settings(ctx context.Context) ([]SettingValue, error) {
	s, err := a.repo.Settings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SettingValue, len(settingsTable))
	for i, st := range settingsTable {
		out[i] = SettingValue{Key: st.key, Value: st.show(s)}
	}
	return out, nil
}

// UpdateSettings sanitizes and validates each key independently and saves
// the valid ones. When any key is rejected the result lists why and the
// error is ErrInvalidSettings; the accepted keys are saved regardless.
func (a *App) UpdateSettings(ctx context.Context, values map[string]string) (SettingsUpdate, error) {
	start := time.Now()
	res := SettingsUpdate{Errors: map[string]string{}}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	form := field.NewForm()
	appliers := map[string]func(*inventory.Settings){}
	for _, k := range keys {
		st, ok := lookupSetting(k)
		if !ok {
			res.Errors[k] = "Unknown setting"
			continue
		}
		c, apply := st.build(values[k])
		form.Add(st.key, c)
		appliers[st.key] = apply
	}
	for name, msg := range form.Errors() {
		res.Errors[name] = msg
	}

	s, err := a.repo.Settings(ctx)
	if err != nil {
		return res, err
	}
	for _, name := range form.Names() {
		if _, bad := res.Errors[name]; bad {
			continue
		}
		appliers[name](&s)
		res.Applied = append(res.Applied, name)
	}
	if len(res.Applied) > 0 {
		if err := a.repo.SaveSettings(ctx, s); err != nil {
			a.repo.Audit(ctx, "settings.update", strings.Join(res.Applied, ","), 0, len(keys), err, time.Since(start))
			return SettingsUpdate{Errors: res.Errors}, err
		}
	}
	a.repo.Audit(ctx, "settings.update", strings.Join(res.Applied, ","), len(res.Applied), len(res.Errors), nil, time.Since(start))
	if len(res.Errors) > 0 {
		return res, ErrInvalidSettings
	}
	return res, nil
}

func parseSwitch(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}
