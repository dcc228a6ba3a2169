package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/boxcast/game/engine"
)

// DefaultProfile is the profile used when none is named. It is always
// available, built in if no file overrides it.
const DefaultProfile = "default"

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidProfile  = errors.New("invalid profile")
)

// ProfileInfo describes a simulation profile available to load
type ProfileInfo struct {
	ProfileID   string         `json:"profile_id"` // The identifier to pass to LoadProfile
	Filename    string         `json:"filename,omitempty"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Variant     engine.Variant `json:"variant"`
	BuiltIn     bool           `json:"built_in,omitempty"`
}

// Manager handles simulation profile loading and caching
type Manager struct {
	configDir string
	profiles  map[string]*engine.SimConfig
	mu        sync.RWMutex
}

// NewManager creates a profile manager reading from configDir.
// A missing directory is not an error; only the built-in default is then available.
func NewManager(configDir string) *Manager {
	return &Manager{
		configDir: configDir,
		profiles:  make(map[string]*engine.SimConfig),
	}
}

// Dir returns the directory profiles are read from
func (m *Manager) Dir() string {
	return m.configDir
}

// LoadProfile loads a profile by name, with or without the .json suffix
func (m *Manager) LoadProfile(name string) (*engine.SimConfig, error) {
	name = strings.TrimSuffix(name, ".json")
	if name == "" {
		name = DefaultProfile
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}

	m.mu.RLock()
	if cfg, exists := m.profiles[name]; exists {
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if cfg, exists := m.profiles[name]; exists {
		return cfg, nil
	}

	cfg, err := engine.LoadSimConfigFile(filepath.Join(m.configDir, name+".json"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidProfile, name, err)
		}
		if name != DefaultProfile {
			return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
		}
		cfg = engine.DefaultSimConfig()
	}

	m.profiles[name] = cfg
	return cfg, nil
}

// Default returns the default profile, falling back to the built-in one if
// the file on disk is invalid
func (m *Manager) Default() *engine.SimConfig {
	cfg, err := m.LoadProfile(DefaultProfile)
	if err != nil {
		return engine.DefaultSimConfig()
	}
	return cfg
}

// ListProfiles returns every loadable profile sorted by id.
// Invalid files are skipped.
func (m *Manager) ListProfiles() ([]*ProfileInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var profiles []*ProfileInfo
	haveDefault := false

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		cfg, err := m.LoadProfile(id)
		if err != nil {
			continue
		}

		if id == DefaultProfile {
			haveDefault = true
		}
		profiles = append(profiles, &ProfileInfo{
			ProfileID:   id,
			Filename:    entry.Name(),
			Name:        cfg.Name,
			Description: cfg.Description,
			Variant:     cfg.Variant,
		})
	}

	if !haveDefault {
		builtin := engine.DefaultSimConfig()
		profiles = append(profiles, &ProfileInfo{
			ProfileID:   DefaultProfile,
			Name:        builtin.Name,
			Description: builtin.Description,
			Variant:     builtin.Variant,
			BuiltIn:     true,
		})
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ProfileID < profiles[j].ProfileID
	})
	return profiles, nil
}

// RefreshCache drops every cached profile so the next load reads from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = make(map[string]*engine.SimConfig)
}
