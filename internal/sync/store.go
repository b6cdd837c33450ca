package sync

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// TaskStore persists canonical task items to a JSON file, the same pattern
// device.Store uses for paired devices. It is the default Store
// implementation wired by cmd/wizard-server; callers needing a different
// backing store only need to satisfy the Store interface.
type TaskStore struct {
	mu     sync.RWMutex
	path   string
	items  map[string]TaskItem
	logger *log.Logger
}

func NewTaskStore(path string) *TaskStore {
	s := &TaskStore{
		path:   path,
		items:  map[string]TaskItem{},
		logger: log.New(os.Stdout, "[SYNC-STORE] ", log.LstdFlags),
	}
	s.load()
	return s
}

func (s *TaskStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var list []TaskItem
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Printf("failed to parse %s: %v", s.path, err)
		return
	}
	for _, item := range list {
		s.items[item.ID] = item
	}
}

func (s *TaskStore) save() {
	if s.path == "" {
		return
	}
	list := make([]TaskItem, 0, len(s.items))
	for _, item := range s.items {
		list = append(list, item)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		s.logger.Printf("failed to marshal task items: %v", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.logger.Printf("failed to write %s: %v", s.path, err)
	}
}

// Upsert inserts or replaces a task item keyed by its ID.
func (s *TaskStore) Upsert(item TaskItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
	s.save()
	return nil
}

// Get returns a task item by id, for inspection/testing.
func (s *TaskStore) Get(id string) (TaskItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// List returns all stored task items.
func (s *TaskStore) List() []TaskItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TaskItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	return out
}

var _ Store = (*TaskStore)(nil)
