package delivery

import (
	"fmt"
	"slices"
	"sync"
)

// EmailKey identifies one (item, offset) email condition.
func EmailKey(itemID string, days int) string {
	return fmt.Sprintf("%s-%d", itemID, days)
}

// SentSet records which email conditions have already been sent. It is owned
// by the gate and independent of the notification store, so clearing or
// reading a record never affects it.
type SentSet struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewSentSet(keys []string) *SentSet {
	s := &SentSet{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		if k != "" {
			s.keys[k] = struct{}{}
		}
	}
	return s
}

// Replace swaps in keys as loaded from persistence.
func (s *SentSet) Replace(keys []string) {
	next := NewSentSet(keys).keys
	s.mu.Lock()
	s.keys = next
	s.mu.Unlock()
}

func (s *SentSet) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok
}

// Add inserts key and reports whether it was new.
func (s *SentSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *SentSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Keys returns the keys sorted.
func (s *SentSet) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
