package scan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"meditbot/pkg/logx"
)

// Store owns the bounded history file. The whole list is rewritten on every
// mutation: the bound is tiny, so overwrite cost is negligible and no
// compaction logic is needed.
//
// The mutex serializes the read-modify-write sequence so that overlapping
// webhook deliveries cannot lose an update.
type Store struct {
	path string
	log  logx.Logger

	mu sync.Mutex
}

func NewStore(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{path: path, log: log}
}

// Load reads the backing file. A missing or corrupt file yields an empty
// list; corruption is surfaced as a non-nil error the caller may log, but
// the returned list is always usable.
func (s *Store) Load() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() ([]Event, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}
		return []Event{}, fmt.Errorf("read history file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Event{}, nil
	}

	var list []Event
	if err := json.Unmarshal(data, &list); err != nil {
		return []Event{}, fmt.Errorf("unmarshal history: %w", err)
	}
	if len(list) > MaxHistory {
		list = list[:MaxHistory]
	}
	return list, nil
}

// Record prepends the event, truncates to MaxHistory and persists.
// The caller must check Recordable() first. A write failure is logged and
// returned, but the updated in-memory list is still usable for the rest of
// the request.
func (s *Store) Record(ev Event) ([]Event, error) {
	if !ev.Recordable() {
		return nil, errors.New("event has no case name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.loadLocked()
	if err != nil {
		s.log.Warn("history unreadable; starting fresh", logx.Err(err), logx.String("path", s.path))
	}

	list = append([]Event{ev}, list...)
	if len(list) > MaxHistory {
		list = list[:MaxHistory]
	}

	if err := s.writeLocked(list); err != nil {
		s.log.Warn("history write failed", logx.Err(err), logx.String("path", s.path))
		return list, err
	}
	return list, nil
}

func (s *Store) writeLocked(list []Event) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	// Pretty-printed, non-ASCII preserved (the upstream sends UTF-8 names).
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(list); err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if err := os.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}
