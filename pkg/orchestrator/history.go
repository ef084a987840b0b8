package orchestrator

import (
	"sync"
)

// MaxHistoryEntries bounds the rolling history retained per course.
const MaxHistoryEntries = 20

// ContextStore holds the bounded rolling conversation history per course.
// Keys are opaque; callers needing per-user isolation can pass a composite
// key such as "courseID:userID".
type ContextStore interface {
	// History returns the retained entries, most recent last.
	History(courseID string) []ConversationEntry

	// Append pushes an entry, evicting the oldest beyond MaxHistoryEntries.
	Append(courseID string, entry ConversationEntry)

	// Clear drops all history for a course.
	Clear(courseID string)
}

// InMemoryStore is the default ContextStore. History is partitioned by
// course so concurrent turns on different courses never contend on the
// same lock.
type InMemoryStore struct {
	mu      sync.RWMutex
	courses map[string]*courseHistory
}

type courseHistory struct {
	mu      sync.RWMutex
	entries []ConversationEntry
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		courses: make(map[string]*courseHistory),
	}
}

func (s *InMemoryStore) course(courseID string) *courseHistory {
	s.mu.RLock()
	h, ok := s.courses[courseID]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.courses[courseID]; ok {
		return h
	}
	h = &courseHistory{}
	s.courses[courseID] = h
	return h
}

// History returns a copy of the retained entries, most recent last.
func (s *InMemoryStore) History(courseID string) []ConversationEntry {
	h := s.course(courseID)

	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]ConversationEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Append pushes an entry and truncates to the last MaxHistoryEntries,
// oldest first.
func (s *InMemoryStore) Append(courseID string, entry ConversationEntry) {
	h := s.course(courseID)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if len(h.entries) > MaxHistoryEntries {
		h.entries = h.entries[len(h.entries)-MaxHistoryEntries:]
	}
}

// Clear drops all history for a course.
func (s *InMemoryStore) Clear(courseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.courses, courseID)
}
