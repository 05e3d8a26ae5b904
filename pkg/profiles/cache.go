// Package profiles resolves participant ids to display profiles.
//
// Lookups never block: a participant the cache has not seen yet resolves to a
// placeholder profile labeled by id, and a later tick carrying the real
// profile fills it in.
package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/grovetools/presence/pkg/models"
)

// file is the on-disk form of the cache.
type file struct {
	Profiles []models.Profile `yaml:"profiles"`
}

// Cache is a concurrency-safe profile store, optionally persisted as YAML.
type Cache struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
	path     string
	dirty    bool
}

// NewCache creates an empty cache persisted at path. An empty path keeps the
// cache in memory only.
func NewCache(path string) *Cache {
	return &Cache{
		profiles: make(map[string]models.Profile),
		path:     path,
	}
}

// Lookup returns the known profile or a placeholder carrying only the id.
func (c *Cache) Lookup(participantID string) models.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.profiles[participantID]; ok {
		return p
	}
	return models.Profile{ParticipantID: participantID}
}

// Get returns the profile and whether it is known.
func (c *Cache) Get(participantID string) (models.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[participantID]
	return p, ok
}

// Put stores or replaces a profile. Profiles without an id are ignored.
func (c *Cache) Put(p models.Profile) {
	if p.ParticipantID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(p)
}

// Merge stores every profile of a tick, keyed by the map key when the profile
// lacks its own id. It returns how many entries changed.
func (c *Cache) Merge(profiles map[string]models.Profile) int {
	if len(profiles) == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := 0
	for id, p := range profiles {
		if p.ParticipantID == "" {
			p.ParticipantID = id
		}
		if p.ParticipantID == "" {
			continue
		}
		if c.putLocked(p) {
			changed++
		}
	}
	return changed
}

// putLocked keeps known fields when the update leaves them empty.
func (c *Cache) putLocked(p models.Profile) bool {
	old, ok := c.profiles[p.ParticipantID]
	if ok {
		if p.DisplayName == "" {
			p.DisplayName = old.DisplayName
		}
		if p.Username == "" {
			p.Username = old.Username
		}
		if p.AvatarURL == "" {
			p.AvatarURL = old.AvatarURL
		}
		if p == old {
			return false
		}
	}
	c.profiles[p.ParticipantID] = p
	c.dirty = true
	return true
}

// Len returns the number of cached profiles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}

// All returns the cached profiles sorted by id.
func (c *Cache) All() []models.Profile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out
}

// Load reads the cache file. A missing file leaves the cache empty.
func (c *Cache) Load() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read profile cache: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse profile cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range f.Profiles {
		if p.ParticipantID != "" {
			c.profiles[p.ParticipantID] = p
		}
	}
	c.dirty = false
	return nil
}

// Save writes the cache file if anything changed since the last Load or Save.
// The file is replaced atomically.
func (c *Cache) Save() error {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	dirty := c.dirty
	c.mu.RUnlock()
	if !dirty {
		return nil
	}

	data, err := yaml.Marshal(file{Profiles: c.All()})
	if err != nil {
		return fmt.Errorf("marshal profile cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create profile cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".profiles-*.yml")
	if err != nil {
		return fmt.Errorf("write profile cache: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write profile cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write profile cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("write profile cache: %w", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}
