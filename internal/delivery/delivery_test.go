package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"preppertrack/internal/eventbus"
	"preppertrack/internal/inventory"
	"preppertrack/internal/notification"
)

type fakeNative struct {
	mu   sync.Mutex
	got  []SystemNotification
	fail error
}

func (f *fakeNative) Notify(_ context.Context, n SystemNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.got = append(f.got, n)
	return nil
}

type fakeSound struct{ plays int }

func (f *fakeSound) Play(context.Context) error { f.plays++; return nil }

type fakeEmail struct {
	sent []EmailMessage
	fail error
}

func (f *fakeEmail) Send(_ context.Context, m EmailMessage) error {
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, m)
	return nil
}

type fakeSentSaver struct{ last []string }

func (f *fakeSentSaver) SaveEmailSent(_ context.Context, keys []string) error {
	f.last = keys
	return nil
}

type fakeMarker struct{ ids []string }

func (f *fakeMarker) MarkEmailSent(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return nil
}

type memPerm struct{ v string }

func (m *memPerm) Permission(context.Context) (string, error) { return m.v, nil }
func (m *memPerm) SavePermission(_ context.Context, p string) error {
	m.v = p
	return nil
}

type probeFunc func(ctx context.Context) error

func (f probeFunc) Probe(ctx context.Context) error { return f(ctx) }

func at(hh, mm int) time.Time {
	return time.Date(2026, 3, 10, hh, mm, 0, 0, time.UTC)
}

func emailSettings() inventory.Settings {
	s := inventory.DefaultSettings()
	s.EmailNotifications = true
	s.EmailExpirationAlerts = true
	s.EmailConfig = inventory.EmailConfig{FromName: "PrepperTrack", ToEmail: "me@example.com"}
	return s
}

func expiryRecord(item string, days int, p notification.Priority) notification.Record {
	return notification.Record{
		ID:        notification.ExpiryID(item, days),
		Type:      notification.TypeExpiration,
		Title:     "Item expiring soon",
		Message:   item + " expires soon",
		Priority:  p,
		ItemID:    item,
		AlertDays: days,
	}
}

func TestInQuietHours(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		start, end string
		now        time.Time
		want       bool
	}{
		{"wrap late evening", "22:00", "06:00", at(23, 30), true},
		{"wrap early morning", "22:00", "06:00", at(2, 0), true},
		{"wrap midday", "22:00", "06:00", at(12, 0), false},
		{"wrap end inclusive", "22:00", "06:00", at(6, 0), true},
		{"same day inside", "13:00", "15:00", at(14, 0), true},
		{"same day outside", "13:00", "15:00", at(16, 0), false},
		{"equal bounds", "08:00", "08:00", at(19, 0), true},
		{"malformed start", "25:00", "06:00", at(23, 30), false},
		{"malformed end", "22:00", "6", at(23, 30), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := InQuietHours(tc.now, tc.start, tc.end); got != tc.want {
				t.Fatalf("InQuietHours(%s, %s, %s) = %v, want %v", tc.now.Format("15:04"), tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestSoundSuppressedInQuietHours(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		now  time.Time
		want int
	}{
		{at(23, 30), 0},
		{at(2, 0), 0},
		{at(12, 0), 1},
	} {
		snd := &fakeSound{}
		g := New(Deps{Sound: snd, Clock: ClockFunc(func() time.Time { return tc.now }), Location: time.UTC})
		s := inventory.DefaultSettings()
		s.SoundAlerts = true
		s.EnableQuietHours = true
		s.QuietStart, s.QuietEnd = "22:00", "06:00"

		g.Deliver(context.Background(), s, []notification.Record{expiryRecord("a", 30, notification.PriorityMedium)})
		if snd.plays != tc.want {
			t.Fatalf("at %s plays=%d want %d", tc.now.Format("15:04"), snd.plays, tc.want)
		}
	}
}

func TestSoundPlaysOncePerBatch(t *testing.T) {
	t.Parallel()
	snd := &fakeSound{}
	g := New(Deps{Sound: snd, Clock: ClockFunc(func() time.Time { return at(12, 0) })})
	s := inventory.DefaultSettings()
	s.SoundAlerts = true

	out := g.Deliver(context.Background(), s, []notification.Record{
		expiryRecord("a", 7, notification.PriorityHigh),
		expiryRecord("b", 30, notification.PriorityMedium),
		expiryRecord("c", 7, notification.PriorityHigh),
	})
	if snd.plays != 1 {
		t.Fatalf("plays = %d, want 1", snd.plays)
	}
	if out[0].Sound != StatusSent || out[1].Sound != StatusSkipped {
		t.Fatalf("sound statuses = %s, %s", out[0].Sound, out[1].Sound)
	}
}

func TestNativeRequiresGrantedUrgentAndPush(t *testing.T) {
	t.Parallel()
	recs := []notification.Record{
		expiryRecord("a", 30, notification.PriorityMedium),
		expiryRecord("b", 7, notification.PriorityHigh),
		{ID: notification.ExpiredID("c"), Type: notification.TypeExpiration, Priority: notification.PriorityCritical, ItemID: "c", AlertDays: notification.ExpiredDays},
	}
	cases := []struct {
		name string
		perm Permission
		push bool
		want int
	}{
		{"granted", PermissionGranted, true, 2},
		{"denied", PermissionDenied, true, 0},
		{"default", PermissionDefault, true, 0},
		{"push off", PermissionGranted, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			n := &fakeNative{}
			g := New(Deps{Native: n, Permission: StaticPermission(tc.perm)})
			s := inventory.DefaultSettings()
			s.PushNotifications = tc.push
			g.Deliver(context.Background(), s, recs)
			if len(n.got) != tc.want {
				t.Fatalf("native notifications = %d, want %d", len(n.got), tc.want)
			}
			if tc.want == 2 {
				if n.got[0].Persistent || n.got[0].Timeout != defaultNativeTimeout {
					t.Fatalf("high priority should auto-dismiss: %+v", n.got[0])
				}
				if !n.got[1].Persistent || n.got[1].Timeout != 0 {
					t.Fatalf("critical should persist: %+v", n.got[1])
				}
			}
		})
	}
}

func TestNativeFailureDoesNotAbortBatch(t *testing.T) {
	t.Parallel()
	n := &fakeNative{fail: errors.New("bus gone")}
	em := &fakeEmail{}
	g := New(Deps{Native: n, Email: em, Permission: StaticPermission(PermissionGranted)})

	out := g.Deliver(context.Background(), emailSettings(), []notification.Record{
		expiryRecord("a", 7, notification.PriorityHigh),
		expiryRecord("b", 7, notification.PriorityHigh),
	})
	if len(out) != 2 || out[0].Native != StatusFailed || out[1].Native != StatusFailed {
		t.Fatalf("outcomes = %+v", out)
	}
	if len(em.sent) != 2 {
		t.Fatalf("emails = %d, want 2", len(em.sent))
	}
	if len(out[0].Errors) != 1 {
		t.Fatalf("errors = %v", out[0].Errors)
	}
}

func TestEmailSentAtMostOncePerItem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	em := &fakeEmail{}
	saver := &fakeSentSaver{}
	marker := &fakeMarker{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8, eventbus.DeliveryEmail)
	defer unsub()

	g := New(Deps{Email: em, SentSaver: saver, Marker: marker, Bus: bus})
	rec := expiryRecord("rice", 7, notification.PriorityHigh)

	out := g.Deliver(ctx, emailSettings(), []notification.Record{rec})
	if out[0].Email != StatusSent || len(em.sent) != 1 {
		t.Fatalf("first delivery: %+v, sent=%d", out[0], len(em.sent))
	}
	if em.sent[0].ToEmail != "me@example.com" || em.sent[0].ItemID != "rice" {
		t.Fatalf("message = %+v", em.sent[0])
	}
	if len(saver.last) != 1 || saver.last[0] != "rice-7" {
		t.Fatalf("persisted sent-set = %v", saver.last)
	}
	if len(marker.ids) != 1 || marker.ids[0] != rec.ID {
		t.Fatalf("marked = %v", marker.ids)
	}
	select {
	case ev := <-events:
		if ev.Data != rec.ID {
			t.Fatalf("event data = %v", ev.Data)
		}
	default:
		t.Fatalf("expected delivery.email event")
	}

	// The record was cleared and re-derived: it is "new" again to the gate.
	out = g.Deliver(ctx, emailSettings(), []notification.Record{rec})
	if out[0].Email != StatusSkipped || len(em.sent) != 1 {
		t.Fatalf("second delivery sent again: %+v, sent=%d", out[0], len(em.sent))
	}
}

func TestEmailRestoredSentSetSuppresses(t *testing.T) {
	t.Parallel()
	em := &fakeEmail{}
	g := New(Deps{Email: em, Sent: NewSentSet([]string{"rice-7"})})
	g.Deliver(context.Background(), emailSettings(), []notification.Record{expiryRecord("rice", 7, notification.PriorityHigh)})
	if len(em.sent) != 0 {
		t.Fatalf("restored key should suppress email, sent=%d", len(em.sent))
	}
}

func TestEmailConditions(t *testing.T) {
	t.Parallel()
	noRecipient := emailSettings()
	noRecipient.EmailConfig.ToEmail = "  "
	disabled := emailSettings()
	disabled.EmailExpirationAlerts = false

	cases := []struct {
		name     string
		settings inventory.Settings
		rec      notification.Record
		want     Status
	}{
		{"seven days", emailSettings(), expiryRecord("a", 7, notification.PriorityHigh), StatusSent},
		{"thirty days", emailSettings(), expiryRecord("a", 30, notification.PriorityMedium), StatusSkipped},
		{"expired", emailSettings(), notification.Record{ID: "expired-a", Type: notification.TypeExpiration, ItemID: "a", AlertDays: -1, Priority: notification.PriorityCritical}, StatusSkipped},
		{"low stock", emailSettings(), notification.Record{ID: "lowstock-a", Type: notification.TypeLowStock, ItemID: "a", AlertDays: 7}, StatusSkipped},
		{"no recipient", noRecipient, expiryRecord("a", 7, notification.PriorityHigh), StatusSkipped},
		{"disabled", disabled, expiryRecord("a", 7, notification.PriorityHigh), StatusSkipped},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			g := New(Deps{Email: &fakeEmail{}})
			out := g.Deliver(context.Background(), tc.settings, []notification.Record{tc.rec})
			if out[0].Email != tc.want {
				t.Fatalf("email = %s, want %s", out[0].Email, tc.want)
			}
		})
	}
}

func TestEmailFailureLeavesSentSetUntouched(t *testing.T) {
	t.Parallel()
	em := &fakeEmail{fail: errors.New("smtp down")}
	g := New(Deps{Email: em})
	out := g.Deliver(context.Background(), emailSettings(), []notification.Record{expiryRecord("a", 7, notification.PriorityHigh)})
	if out[0].Email != StatusFailed {
		t.Fatalf("email = %s", out[0].Email)
	}
	if g.Sent().Len() != 0 {
		t.Fatalf("failed send must not be recorded")
	}
}

func TestRequestPermission(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &memPerm{}
	ok := New(Deps{Permission: NewRecordedPermission(store, probeFunc(func(context.Context) error { return nil }))})
	if p := ok.RequestPermission(ctx); p != PermissionGranted {
		t.Fatalf("granted probe -> %s", p)
	}
	if store.v != "granted" || ok.CurrentPermission(ctx) != PermissionGranted {
		t.Fatalf("stored = %q", store.v)
	}

	store = &memPerm{}
	bad := New(Deps{Permission: NewRecordedPermission(store, probeFunc(func(context.Context) error { return errors.New("no bus") }))})
	if p := bad.RequestPermission(ctx); p != PermissionDenied {
		t.Fatalf("failed probe -> %s", p)
	}
	if store.v != "denied" {
		t.Fatalf("stored = %q", store.v)
	}

	none := New(Deps{Permission: NewRecordedPermission(&memPerm{}, nil)})
	if p := none.RequestPermission(ctx); p != PermissionDenied {
		t.Fatalf("no prober -> %s", p)
	}
}

func TestSentSetKeysSorted(t *testing.T) {
	t.Parallel()
	s := NewSentSet([]string{"b-7", "", "a-7"})
	if !s.Add("c-7") || s.Add("a-7") {
		t.Fatalf("Add reported wrong novelty")
	}
	got := s.Keys()
	if len(got) != 3 || got[0] != "a-7" || got[2] != "c-7" {
		t.Fatalf("Keys = %v", got)
	}

	s.Replace([]string{"d-7"})
	if s.Has("a-7") || !s.Has("d-7") || s.Len() != 1 {
		t.Fatalf("after Replace keys = %v", s.Keys())
	}
}

func TestRetryDo(t *testing.T) {
	t.Parallel()
	r := Retry{Max: 2, Base: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), nil, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}

	calls = 0
	err = r.Do(context.Background(), nil, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil || err.Error() != "down" || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestRetryDelayBounded(t *testing.T) {
	t.Parallel()
	r := Retry{Base: 100 * time.Millisecond, MaxDelay: time.Second}
	for attempt := 1; attempt <= 8; attempt++ {
		if d := r.delay(attempt); d <= 0 || d > time.Second {
			t.Fatalf("delay(%d) = %s", attempt, d)
		}
	}
}
