package page

import "sync"

// DefaultHistoryLimit caps the rolling snapshot history kept per session.
const DefaultHistoryLimit = 10

// History keeps a bounded, ordered snapshot trail per session identifier.
// Each session's read loop is the sole writer to its own entry; the mutex
// only guards against concurrent sessions touching the shared map. The
// whole trail is discarded when the session disconnects.
type History struct {
	mu    sync.RWMutex
	limit int
	items map[string][]Snapshot
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit, items: make(map[string][]Snapshot)}
}

// Append records a snapshot for the session, evicting the oldest entry once
// the limit is reached.
func (h *History) Append(sessionID string, snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	trail := append(h.items[sessionID], snap)
	if len(trail) > h.limit {
		trail = trail[len(trail)-h.limit:]
	}
	h.items[sessionID] = trail
}

// Recent returns a copy of the session's trail, oldest first.
func (h *History) Recent(sessionID string) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	trail := h.items[sessionID]
	if len(trail) == 0 {
		return nil
	}
	out := make([]Snapshot, len(trail))
	copy(out, trail)
	return out
}

// Len reports the current trail length for the session.
func (h *History) Len(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items[sessionID])
}

// Drop discards the session's entire trail.
func (h *History) Drop(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.items, sessionID)
}
