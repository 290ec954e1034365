package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvDB       = "RIG_DB"
	EnvUser     = "RIG_USER"
	EnvLogLevel = "RIG_LOG_LEVEL"
)

// Config is the merged rig configuration.
type Config struct {
	DBPath    string          `yaml:"db_path,omitempty"`
	User      string          `yaml:"user,omitempty"`
	Plans     PlansConfig     `yaml:"plans,omitempty"`
	Workspace WorkspaceConfig `yaml:"workspace,omitempty"`
}

// PlansConfig locates plan files relative to the repository root.
type PlansConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// WorkspaceConfig controls auto-selection and provisioning of workspaces.
type WorkspaceConfig struct {
	Dir          string   `yaml:"dir,omitempty"`           // parent directory for new workspaces
	Primary      string   `yaml:"primary,omitempty"`       // never auto-selected
	CloneMethod  string   `yaml:"clone_method,omitempty"`  // git, cp or worktree
	CloneSource  string   `yaml:"clone_source,omitempty"`  // defaults to the repository root
	BranchPrefix string   `yaml:"branch_prefix,omitempty"` // defaults to "rig/"
	OnCreate     []string `yaml:"on_create,omitempty"`
}

// DefaultPlansDir is used when plans.dir is unset.
const DefaultPlansDir = "tasks"

// GlobalPath returns the path of the user-wide config file.
func GlobalPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, "rig", "config.yml"), nil
}

// RepoPath returns the path of the repository-local config file.
func RepoPath(repoRoot string) string {
	return filepath.Join(repoRoot, ".rig", "config.yml")
}

// LoadFile reads a single YAML config file. A missing file yields an empty Config.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Load reads the global config, overlays the repository config found under
// repoRoot (if repoRoot is non-empty) and applies environment overrides.
func Load(globalPath, repoRoot string) (*Config, error) {
	cfg := &Config{}
	if globalPath != "" {
		global, err := LoadFile(globalPath)
		if err != nil {
			return nil, err
		}
		cfg = global
	}

	if repoRoot != "" {
		local, err := LoadFile(RepoPath(repoRoot))
		if err != nil {
			return nil, err
		}
		cfg.Merge(local)
		cfg.resolveRelative(repoRoot)
	}

	cfg.applyEnv()
	return cfg, nil
}

// SaveConfig writes cfg to the repository config file under repoRoot.
func SaveConfig(repoRoot string, cfg *Config) error {
	dir := filepath.Join(repoRoot, ".rig")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create .rig dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(RepoPath(repoRoot), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Merge overlays every non-empty field of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.DBPath != "" {
		c.DBPath = other.DBPath
	}
	if other.User != "" {
		c.User = other.User
	}
	if other.Plans.Dir != "" {
		c.Plans.Dir = other.Plans.Dir
	}
	w := other.Workspace
	if w.Dir != "" {
		c.Workspace.Dir = w.Dir
	}
	if w.Primary != "" {
		c.Workspace.Primary = w.Primary
	}
	if w.CloneMethod != "" {
		c.Workspace.CloneMethod = w.CloneMethod
	}
	if w.CloneSource != "" {
		c.Workspace.CloneSource = w.CloneSource
	}
	if w.BranchPrefix != "" {
		c.Workspace.BranchPrefix = w.BranchPrefix
	}
	if len(w.OnCreate) > 0 {
		c.Workspace.OnCreate = w.OnCreate
	}
}

// PlansDir returns the absolute plans directory for repoRoot.
func (c *Config) PlansDir(repoRoot string) string {
	dir := c.Plans.Dir
	if dir == "" {
		dir = DefaultPlansDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(repoRoot, dir)
}

// resolveRelative anchors repository-relative paths at repoRoot.
func (c *Config) resolveRelative(repoRoot string) {
	for _, p := range []*string{&c.Workspace.Dir, &c.Workspace.Primary, &c.Workspace.CloneSource} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(repoRoot, *p)
		}
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDB); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(EnvUser); v != "" {
		c.User = v
	}
}
