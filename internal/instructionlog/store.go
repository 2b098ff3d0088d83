// Package instructionlog keeps a persistent record of every instruction the
// daemon has pushed to a session, so operators can audit what the frontend
// was told after the session itself is gone.
package instructionlog

import (
	"encoding/json"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/contextbridge/bridged/internal/protocol"
)

// Record is one delivered instruction together with its delivery context.
type Record struct {
	SessionID   string               `json:"sessionId"`
	Instruction protocol.Instruction `json:"instruction"`
	SentAt      time.Time            `json:"sentAt"`
}

type Store struct {
	mu    sync.RWMutex
	items []Record
	path  string
}

// NewStore loads existing records from path when the file exists. An empty
// path keeps the store in-memory only.
func NewStore(path string) *Store {
	s := &Store{path: path}
	s.load()
	return s
}

// Record appends one delivered instruction. Implements wsbridge.Recorder.
func (s *Store) Record(sessionID string, ins protocol.Instruction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, Record{
		SessionID:   sessionID,
		Instruction: ins,
		SentAt:      time.Now().UTC(),
	})
	_ = s.saveLocked()
}

// Recent returns the newest records, most recent last. limit <= 0 returns
// everything.
func (s *Store) Recent(limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.items) {
		limit = len(s.items)
	}
	out := make([]Record, limit)
	copy(out, s.items[len(s.items)-limit:])
	return out
}

// BySession returns every record delivered to one session.
func (s *Store) BySession(id string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.items {
		if r.SessionID == id {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Compact trims the log to the newest limit records and reports how many
// were dropped.
func (s *Store) Compact(limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 1000
	}
	if len(s.items) <= limit {
		return 0, nil
	}
	removed := len(s.items) - limit
	s.items = slices.Clone(s.items[removed:])
	if err := s.saveLocked(); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var items []Record
	if err := json.Unmarshal(data, &items); err != nil {
		return
	}
	s.items = items
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
