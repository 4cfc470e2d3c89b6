// Package manifest handles rhovm.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/rhovm/rspace"
	"github.com/chazu/rhovm/vm"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "rhovm.toml"

// Backend names accepted in [rspace] backend.
const (
	BackendMemory  = "memory"
	BackendPathMap = "pathmap"
	BackendSQLite  = "sqlite"
)

// Manifest represents a rhovm.toml configuration.
type Manifest struct {
	RSpace    RSpaceConfig    `toml:"rspace"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	VM        VMConfig        `toml:"vm"`
	Log       LogConfig       `toml:"log"`

	// Dir is the directory containing the rhovm.toml file (set at load time).
	Dir string `toml:"-"`
}

// RSpaceConfig selects the storage backend.
type RSpaceConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"` // sqlite only, relative to Dir
}

// SchedulerConfig configures the parallel scheduler.
type SchedulerConfig struct {
	Workers int `toml:"workers"`
}

// VMConfig configures each VM.
type VMConfig struct {
	Trace bool `toml:"trace"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no rhovm.toml exists.
func Default() *Manifest {
	m := &Manifest{Log: LogConfig{Verbosity: 1}}
	m.applyDefaults()
	if wd, err := os.Getwd(); err == nil {
		m.Dir = wd
	}
	return m
}

func (m *Manifest) applyDefaults() {
	if m.RSpace.Backend == "" {
		m.RSpace.Backend = BackendMemory
	}
	if m.RSpace.Path == "" {
		m.RSpace.Path = "rspace.db"
	}
	if m.Scheduler.Workers <= 0 {
		m.Scheduler.Workers = 4
	}
}

// Load parses a rhovm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if !md.IsDefined("log", "verbosity") {
		m.Log.Verbosity = 1
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a rhovm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks values that defaults cannot repair.
func (m *Manifest) Validate() error {
	switch m.RSpace.Backend {
	case BackendMemory, BackendPathMap, BackendSQLite:
	default:
		return fmt.Errorf("unknown rspace backend %q (want memory, pathmap or sqlite)", m.RSpace.Backend)
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("log verbosity must not be negative, got %d", m.Log.Verbosity)
	}
	return nil
}

// DBPath returns the absolute SQLite database path.
func (m *Manifest) DBPath() string {
	if m.RSpace.Path == ":memory:" || filepath.IsAbs(m.RSpace.Path) {
		return m.RSpace.Path
	}
	return filepath.Join(m.Dir, m.RSpace.Path)
}

// OpenRSpace opens the configured backend. The returned close function
// releases it and is never nil.
func (m *Manifest) OpenRSpace() (rspace.RSpace, func() error, error) {
	noop := func() error { return nil }
	switch m.RSpace.Backend {
	case BackendMemory:
		return rspace.NewMemory(), noop, nil
	case BackendPathMap:
		return rspace.NewPathMap(), noop, nil
	case BackendSQLite:
		s, err := rspace.OpenSQLite(m.DBPath())
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown rspace backend %q", m.RSpace.Backend)
}

// VMOptions returns the VM options the configuration implies.
func (m *Manifest) VMOptions() []vm.Option {
	return []vm.Option{vm.WithTrace(m.VM.Trace)}
}
