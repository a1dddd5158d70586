// Package assets resolves asset paths across loose directories and pk3
// packs, caching file contents.
package assets

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/Faultbox/tremor/pkg/pak"
)

// Manager is a search path: loose directories and pk3 packs. Later
// additions take priority, and loose files win over packed ones so
// local edits shadow shipped content.
type Manager struct {
	dirs  []string
	packs []*pak.Archive
	cache *Cache
	mu    sync.RWMutex
}

// NewManager creates an empty search path.
func NewManager() *Manager {
	return &Manager{
		cache: NewCache(),
	}
}

// AddDir adds a directory of loose files to the search path.
func (m *Manager) AddDir(path string) {
	m.mu.Lock()
	m.dirs = append(m.dirs, path)
	m.mu.Unlock()
}

// AddPack opens a pk3 pack and adds it to the search path.
func (m *Manager) AddPack(path string) error {
	archive, err := pak.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening pack %s", path)
	}

	m.mu.Lock()
	m.packs = append(m.packs, archive)
	m.mu.Unlock()
	return nil
}

// Load reads a file from the search path.
func (m *Manager) Load(path string) ([]byte, error) {
	key := normalizePath(path)
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.dirs) - 1; i >= 0; i-- {
		data, err := os.ReadFile(filepath.Join(m.dirs[i], filepath.FromSlash(key)))
		if err == nil {
			m.cache.Set(key, data)
			return data, nil
		}
	}

	for i := len(m.packs) - 1; i >= 0; i-- {
		data, err := m.packs[i].Read(key)
		if err == nil {
			m.cache.Set(key, data)
			return data, nil
		}
	}

	return nil, errors.Errorf("file not found: %s", path)
}

// Exists reports whether a file can be resolved without reading it.
func (m *Manager) Exists(path string) bool {
	key := normalizePath(path)
	if _, ok := m.cache.Get(key); ok {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.dirs) - 1; i >= 0; i-- {
		if _, err := os.Stat(filepath.Join(m.dirs[i], filepath.FromSlash(key))); err == nil {
			return true
		}
	}
	for i := len(m.packs) - 1; i >= 0; i-- {
		if m.packs[i].Contains(key) {
			return true
		}
	}
	return false
}

// Close closes all packs and drops the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, archive := range m.packs {
		archive.Close()
	}
	m.packs = nil
	m.dirs = nil
	m.cache.Clear()
}

func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}

// Cache is a simple in-memory cache for loaded assets.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
