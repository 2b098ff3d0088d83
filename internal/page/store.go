package page

import (
	"sync"
	"time"
)

// DefaultKey mirrors every stored context and screenshot so callers that do
// not know a URL still get the most recent capture.
const DefaultKey = "default"

// Store holds the most recent context and screenshot per URL. It replaces
// the ambient per-process maps of earlier revisions with an explicit object
// created at process start and injected where needed.
type Store struct {
	mu          sync.RWMutex
	contexts    map[string]Snapshot
	screenshots map[string]string
}

func NewStore() *Store {
	return &Store{
		contexts:    make(map[string]Snapshot),
		screenshots: make(map[string]string),
	}
}

// PutContext stores the snapshot under its own URL and mirrors it under the
// default key.
func (s *Store) PutContext(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.URL != "" {
		s.contexts[snap.URL] = snap
	}
	s.contexts[DefaultKey] = snap
}

// Context returns the stored snapshot for the key, or the default snapshot
// when the key is empty.
func (s *Store) Context(key string) (Snapshot, bool) {
	if key == "" {
		key = DefaultKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.contexts[key]
	return snap, ok
}

// PutScreenshot stores base64 screenshot data under the URL and the default
// key.
func (s *Store) PutScreenshot(url, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url != "" {
		s.screenshots[url] = data
	}
	s.screenshots[DefaultKey] = data
}

// Screenshot returns stored screenshot data for the key, falling back to the
// default entry when the key has none.
func (s *Store) Screenshot(key string) (string, bool) {
	if key == "" {
		key = DefaultKey
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.screenshots[key]; ok {
		return data, true
	}
	data, ok := s.screenshots[DefaultKey]
	return data, ok
}

// ContextCount reports how many distinct context keys are stored.
func (s *Store) ContextCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}

// Placeholder is the documented snapshot served before any capture arrives.
func Placeholder(url string) Snapshot {
	return Snapshot{
		URL:       url,
		Title:     "No context received yet",
		Timestamp: time.Now().UnixMilli(),
		DOM: &DOM{
			Text: "Waiting for frontend to send context...",
		},
		Viewport: &Viewport{},
		Metadata: map[string]any{"status": "waiting_for_context"},
	}
}
