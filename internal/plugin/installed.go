package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/egoavara/plugforge/internal/config"
)

// InstalledManager manages the ledger of occupied plugin slots
type InstalledManager struct {
	mu   sync.RWMutex
	path string
}

// NewInstalledManager creates a manager backed by the JSON file at path
func NewInstalledManager(path string) *InstalledManager {
	return &InstalledManager{path: path}
}

// Load loads the ledger from the JSON file
func (m *InstalledManager) Load() (*InstalledPlugins, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewInstalledPlugins(), nil
		}
		return nil, err
	}

	var plugins InstalledPlugins
	if err := json.Unmarshal(data, &plugins); err != nil {
		return nil, err
	}

	if plugins.Slots == nil {
		plugins.Slots = make(map[string]InstalledEntry)
	}

	return &plugins, nil
}

// Save saves the ledger to the JSON file
func (m *InstalledManager) Save(plugins *InstalledPlugins) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := config.EnsureDir(filepath.Dir(m.path)); err != nil {
		return err
	}

	data, err := json.MarshalIndent(plugins, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.path, data, 0644)
}

// Record stores the entry for a slot, replacing any previous occupant
func (m *InstalledManager) Record(slot string, entry InstalledEntry) error {
	plugins, err := m.Load()
	if err != nil {
		return err
	}

	plugins.Slots[slot] = entry
	return m.Save(plugins)
}

// Remove forgets slots
func (m *InstalledManager) Remove(slots ...string) error {
	plugins, err := m.Load()
	if err != nil {
		return err
	}

	for _, slot := range slots {
		delete(plugins.Slots, slot)
	}
	return m.Save(plugins)
}

// Prune forgets every slot whose recorded path no longer exists and returns
// the slots it dropped, sorted.
func (m *InstalledManager) Prune() ([]string, error) {
	slots, plugins, err := m.List()
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, slot := range slots {
		if _, err := os.Stat(plugins.Slots[slot].Path); os.IsNotExist(err) {
			stale = append(stale, slot)
		}
	}
	if len(stale) == 0 {
		return nil, nil
	}
	return stale, m.Remove(stale...)
}

// Get returns the entry for a slot, or nil if the slot is not recorded
func (m *InstalledManager) Get(slot string) (*InstalledEntry, error) {
	plugins, err := m.Load()
	if err != nil {
		return nil, err
	}

	entry, ok := plugins.Slots[slot]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// List returns all recorded slots sorted by slot name
func (m *InstalledManager) List() ([]string, *InstalledPlugins, error) {
	plugins, err := m.Load()
	if err != nil {
		return nil, nil, err
	}

	slots := make([]string, 0, len(plugins.Slots))
	for slot := range plugins.Slots {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	return slots, plugins, nil
}
