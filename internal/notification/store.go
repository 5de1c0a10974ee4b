package notification

import (
	"context"
	"errors"
	"sync"

	logx "preppertrack/pkg/logx"
)

var ErrNotFound = errors.New("notification not found")

// Saver persists the full record list after every mutation.
type Saver interface {
	SaveNotifications(ctx context.Context, recs []Record) error
}

type SaverFunc func(ctx context.Context, recs []Record) error

func (f SaverFunc) SaveNotifications(ctx context.Context, recs []Record) error { return f(ctx, recs) }

// Store owns the notification list. Every mutation builds a new list and
// replaces the old one wholesale, then hands it to the Saver. Nothing here
// triggers derivation or delivery.
//
// Records are kept newest first.
type Store struct {
	mu    sync.RWMutex
	recs  []Record
	saver Saver
	log   logx.Logger
}

func NewStore(initial []Record, saver Saver, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{recs: dedupe(initial), saver: saver, log: log}
}

// Merge inserts the records whose ID is not already present and returns
// them in input order. Existing records are never touched.
func (s *Store) Merge(ctx context.Context, in []Record) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(s.recs)+len(in))
	for _, r := range s.recs {
		seen[r.ID] = struct{}{}
	}
	var added []Record
	for _, r := range in {
		if r.ID == "" {
			continue
		}
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		added = append(added, r)
	}
	if len(added) == 0 {
		return nil, nil
	}

	next := make([]Record, 0, len(added)+len(s.recs))
	for i := len(added) - 1; i >= 0; i-- {
		next = append(next, added[i])
	}
	next = append(next, s.recs...)
	if err := s.replaceLocked(ctx, next); err != nil {
		return nil, err
	}
	return added, nil
}

func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	return s.update(ctx, id, func(r *Record) { r.Read = true })
}

// MarkEmailSent flags the record's email side-channel as done.
func (s *Store) MarkEmailSent(ctx context.Context, id string) error {
	return s.update(ctx, id, func(r *Record) { r.EmailSent = true })
}

func (s *Store) MarkAllAsRead(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]Record, len(s.recs))
	for i, r := range s.recs {
		r.Read = true
		next[i] = r
	}
	return s.replaceLocked(ctx, next)
}

func (s *Store) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]Record, 0, len(s.recs))
	found := false
	for _, r := range s.recs {
		if r.ID == id {
			found = true
			continue
		}
		next = append(next, r)
	}
	if !found {
		return ErrNotFound
	}
	return s.replaceLocked(ctx, next)
}

func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(ctx, []Record{})
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.recs {
		if !r.Read {
			n++
		}
	}
	return n
}

func (s *Store) ByType(t Type) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.recs {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// List returns a copy of all records, newest first.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.recs...)
}

func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recs {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

func (s *Store) update(ctx context.Context, id string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]Record, len(s.recs))
	copy(next, s.recs)
	for i := range next {
		if next[i].ID == id {
			fn(&next[i])
			return s.replaceLocked(ctx, next)
		}
	}
	return ErrNotFound
}

// replaceLocked persists next and then swaps it in. When persisting fails the
// old list stays, so a failed Merge adds (and delivers) its records on the
// next attempt.
func (s *Store) replaceLocked(ctx context.Context, next []Record) error {
	if s.saver != nil {
		if err := s.saver.SaveNotifications(ctx, append([]Record(nil), next...)); err != nil {
			s.log.Warn("persist notifications failed", logx.Int("count", len(next)), logx.Err(err))
			return err
		}
	}
	s.recs = next
	return nil
}

// Replace swaps in recs as loaded from persistence, without saving them back.
func (s *Store) Replace(recs []Record) {
	s.mu.Lock()
	s.recs = dedupe(recs)
	s.mu.Unlock()
}

func dedupe(in []Record) []Record {
	out := make([]Record, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		if _, ok := seen[r.ID]; ok || r.ID == "" {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
