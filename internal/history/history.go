// Package history keeps a bounded per-user record of past queries.
package history

import (
	"sync"
	"time"

	"github.com/matheuskafuri/hrnews/internal/summarize"
)

// Entry is one past query and its results. Owned by a single user's list.
type Entry struct {
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	Timestamp time.Time          `json:"timestamp"`
	Topic     string             `json:"topic"`
	Summaries []summarize.Record `json:"summaries"`
}

type userLog struct {
	mu      sync.Mutex
	entries []Entry
}

// History maps user ids to their recent entries, oldest first, capped at a
// fixed limit with FIFO eviction. Appends for different users never contend.
type History struct {
	mu    sync.RWMutex
	limit int
	users map[string]*userLog
}

func New(limit int) *History {
	if limit <= 0 {
		limit = 10
	}
	return &History{limit: limit, users: make(map[string]*userLog)}
}

func (h *History) logFor(userID string) *userLog {
	h.mu.RLock()
	u, ok := h.users[userID]
	h.mu.RUnlock()
	if ok {
		return u
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if u, ok = h.users[userID]; !ok {
		u = &userLog{}
		h.users[userID] = u
	}
	return u
}

// Append records an entry for the user, dropping the oldest entry once the
// cap is exceeded. Anonymous requests (empty userID) are not tracked.
func (h *History) Append(userID string, e Entry) {
	if userID == "" {
		return
	}

	u := h.logFor(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entries = append(u.entries, e)
	if len(u.entries) > h.limit {
		u.entries = append([]Entry(nil), u.entries[len(u.entries)-h.limit:]...)
	}
}

// Recent returns a copy of the user's entries, most recent last.
func (h *History) Recent(userID string) []Entry {
	if userID == "" {
		return nil
	}

	h.mu.RLock()
	u, ok := h.users[userID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Entry(nil), u.entries...)
}
