package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no config file exists at the searched
// locations.
var ErrNotFound = errors.New("config not found")

// LocalNames are the repo-local config file names, in search order.
var LocalNames = []string{".dat.yml", ".dat.yaml", "dat.yml", "dat.yaml"}

// FileConfig is the on-disk YAML configuration shape for dat. Every field is
// optional; nil means "not set here".
type FileConfig struct {
	Ignore          []string `yaml:"ignore,omitempty"`
	MaxLines        *int     `yaml:"max_lines,omitempty"`
	MaxSize         *int64   `yaml:"max_size,omitempty"`
	Safe            *bool    `yaml:"safe,omitempty"`
	Deep            *bool    `yaml:"deep,omitempty"`
	Threads         *int     `yaml:"threads,omitempty"`
	Rate            *float64 `yaml:"rate,omitempty"`
	DefaultExcludes *bool    `yaml:"default_excludes,omitempty"`
	Policy          *string  `yaml:"policy,omitempty"`
	Repo            *string  `yaml:"repo,omitempty"`
	FailOn          *string  `yaml:"fail_on,omitempty"`
	NoColor         *bool    `yaml:"no_color,omitempty"`
	LogLevel        *string  `yaml:"log_level,omitempty"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadLocal searches the scan root for a repo-local config file.
func LoadLocal(repoRoot string) (FileConfig, error) {
	for _, name := range LocalNames {
		p := filepath.Join(repoRoot, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return FileConfig{}, ErrNotFound
}

// Dir returns the per-user dat config directory: $XDG_CONFIG_HOME/dat or
// ~/.config/dat.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return "", errors.New("no config dir")
	}
	return filepath.Join(base, "dat"), nil
}

// LoadGlobal loads the per-user config file.
func LoadGlobal() (FileConfig, error) {
	dir, err := Dir()
	if err != nil {
		return FileConfig{}, err
	}
	p := filepath.Join(dir, "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return FileConfig{}, ErrNotFound
}

// Merge layers over on top of fc: every field set in over wins. Ignore
// patterns accumulate.
func (fc FileConfig) Merge(over FileConfig) FileConfig {
	out := fc
	out.Ignore = append(append([]string(nil), fc.Ignore...), over.Ignore...)
	if over.MaxLines != nil {
		out.MaxLines = over.MaxLines
	}
	if over.MaxSize != nil {
		out.MaxSize = over.MaxSize
	}
	if over.Safe != nil {
		out.Safe = over.Safe
	}
	if over.Deep != nil {
		out.Deep = over.Deep
	}
	if over.Threads != nil {
		out.Threads = over.Threads
	}
	if over.Rate != nil {
		out.Rate = over.Rate
	}
	if over.DefaultExcludes != nil {
		out.DefaultExcludes = over.DefaultExcludes
	}
	if over.Policy != nil {
		out.Policy = over.Policy
	}
	if over.Repo != nil {
		out.Repo = over.Repo
	}
	if over.FailOn != nil {
		out.FailOn = over.FailOn
	}
	if over.NoColor != nil {
		out.NoColor = over.NoColor
	}
	if over.LogLevel != nil {
		out.LogLevel = over.LogLevel
	}
	return out
}
