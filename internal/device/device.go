// Package device manages paired end-user devices: their identity, trust
// level, status, and the pairing flow that creates them. Devices are
// created by completing a pairing code and mutated only by auth events.
package device

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

type TrustLevel string

const (
	TrustAdmin    TrustLevel = "admin"
	TrustStandard TrustLevel = "standard"
	TrustGuest    TrustLevel = "guest"
	TrustPending  TrustLevel = "pending"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusSyncing Status = "syncing"
)

// Device is a paired end-user device identity.
type Device struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"device_type"`
	TrustLevel TrustLevel `json:"trust_level"`
	Status     Status     `json:"status"`
	Transport  string     `json:"transport"`
	PairedAt   time.Time  `json:"paired_at"`
	LastSeen   time.Time  `json:"last_seen"`
	LastSync   time.Time  `json:"last_sync,omitempty"`
	SyncVersion int       `json:"sync_version"`
	PublicKey  []byte     `json:"public_key,omitempty"`
}

// Store persists devices to a JSON file and keeps an in-memory index.
// Callers construct one explicitly per process; there is no package-level
// singleton (see the config package's Store for the same pattern).
type Store struct {
	mu      sync.RWMutex
	path    string
	devices map[string]*Device
	logger  *log.Logger
}

func NewStore(path string) *Store {
	s := &Store{
		path:    path,
		devices: map[string]*Device{},
		logger:  log.New(os.Stdout, "[DEVICE] ", log.LstdFlags),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var list []*Device
	if err := json.Unmarshal(data, &list); err != nil {
		s.logger.Printf("failed to parse %s: %v", s.path, err)
		return
	}
	for _, d := range list {
		s.devices[d.ID] = d
	}
}

func (s *Store) save() {
	list := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		list = append(list, d)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		s.logger.Printf("failed to marshal devices: %v", err)
		return
	}
	if s.path == "" {
		return
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		s.logger.Printf("failed to write %s: %v", s.path, err)
	}
}

// Put inserts or replaces a device record and persists the store.
func (s *Store) Put(d *Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = d
	s.save()
}

// Get returns a device by id.
func (s *Store) Get(id string) (*Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	return d, ok
}

// List returns devices, optionally filtered by status.
func (s *Store) List(status Status) []*Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Device, 0, len(s.devices))
	for _, d := range s.devices {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, d)
	}
	return out
}

// UpdateStatus updates a device's status and last-seen timestamp.
func (s *Store) UpdateStatus(id string, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return false
	}
	d.Status = status
	d.LastSeen = time.Now()
	s.save()
	return true
}

// UpdateSync bumps the device's monotonic sync version and timestamp.
func (s *Store) UpdateSync(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return false
	}
	d.SyncVersion++
	d.LastSync = time.Now()
	s.save()
	return true
}

// Remove deletes a device record.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; !ok {
		return false
	}
	delete(s.devices, id)
	s.save()
	return true
}
