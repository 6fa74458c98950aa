package storage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// HostProfile remembers how the user last reached a host. It never holds
// credentials.
type HostProfile struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Username      string `json:"username"`
	LastRemoteDir string `json:"lastRemoteDir,omitempty"`
	LastUsed      int64  `json:"lastUsed"`
}

// HostStore persists host profiles keyed by host name.
type HostStore struct {
	hosts    map[string]*HostProfile
	filePath string
	mu       sync.RWMutex
	now      func() time.Time
}

// NewHostStore creates a new host store
func NewHostStore(dataDir string) (*HostStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &HostStore{
		hosts:    make(map[string]*HostProfile),
		filePath: filepath.Join(dataDir, "hosts.json"),
		now:      time.Now,
	}

	if err := store.load(); err != nil && !os.IsNotExist(err) {
		// A corrupted file has already been moved aside; start empty.
		log.Printf("[WARN] %v", err)
	}
	return store, nil
}

func hostKey(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}

// load reads profiles from disk
func (s *HostStore) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var hosts []*HostProfile
	if err := json.Unmarshal(data, &hosts); err != nil {
		backupPath := s.filePath + ".corrupted"
		if backupErr := os.WriteFile(backupPath, data, 0600); backupErr != nil {
			return fmt.Errorf("failed to parse hosts file: %w", err)
		}
		s.hosts = make(map[string]*HostProfile)
		if saveErr := s.save(); saveErr != nil {
			return fmt.Errorf("failed to parse hosts file (backup saved to %s): %w", backupPath, err)
		}
		return fmt.Errorf("corrupted hosts.json backed up to %s, file has been reset", backupPath)
	}

	for _, h := range hosts {
		if h == nil || h.Host == "" {
			continue
		}
		s.hosts[hostKey(h.Host)] = h
	}
	return nil
}

// save writes profiles to disk
func (s *HostStore) save() error {
	data, err := json.MarshalIndent(s.listLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal hosts: %w", err)
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Get returns a copy of the profile for host.
func (s *HostStore) Get(host string) (HostProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.hosts[hostKey(host)]
	if !ok {
		return HostProfile{}, false
	}
	return *h, true
}

// Remember records a successful connection, keeping the last remote
// directory of an existing profile when the new one has none.
func (s *HostStore) Remember(profile HostProfile) error {
	if profile.Host == "" {
		return fmt.Errorf("host is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := hostKey(profile.Host)
	if old, ok := s.hosts[key]; ok && profile.LastRemoteDir == "" {
		profile.LastRemoteDir = old.LastRemoteDir
	}
	profile.LastUsed = s.now().Unix()
	s.hosts[key] = &profile
	return s.save()
}

// SetLastRemoteDir updates the directory to reopen for host.
func (s *HostStore) SetLastRemoteDir(host, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts[hostKey(host)]
	if !ok {
		return fmt.Errorf("host not found: %s", host)
	}
	h.LastRemoteDir = dir
	h.LastUsed = s.now().Unix()
	return s.save()
}

// List returns all profiles, most recently used first.
func (s *HostStore) List() []HostProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.listLocked()
	out := make([]HostProfile, len(list))
	for i, h := range list {
		out[i] = *h
	}
	return out
}

func (s *HostStore) listLocked() []*HostProfile {
	hosts := make([]*HostProfile, 0, len(s.hosts))
	for _, h := range s.hosts {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool {
		if hosts[i].LastUsed != hosts[j].LastUsed {
			return hosts[i].LastUsed > hosts[j].LastUsed
		}
		return hosts[i].Host < hosts[j].Host
	})
	return hosts
}

// Delete removes a profile
func (s *HostStore) Delete(host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hostKey(host)
	if _, exists := s.hosts[key]; !exists {
		return fmt.Errorf("host not found: %s", host)
	}
	delete(s.hosts, key)
	return s.save()
}
