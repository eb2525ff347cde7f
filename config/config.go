// Package config handles loading, saving, and thread-safe access to the
// application configuration stored as YAML in the user's config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/asiloisad/pulsar-claude-chat/paths"
)

// Defaults applied when the config file is missing or a field is unset.
const (
	DefaultCLIPath        = "claude"
	DefaultPermissionMode = "default"
	DefaultBridgePort     = 45454
	DefaultKillTimeoutSec = 3
)

// ValidPermissionModes are the permission modes the CLI accepts.
var ValidPermissionModes = []string{"default", "acceptEdits", "bypassPermissions", "plan"}

// Config holds the application configuration
type Config struct {
	CLIPath        string   `yaml:"cli_path,omitempty"`        // Path to the claude binary (default "claude")
	Model          string   `yaml:"model,omitempty"`           // Model override passed via --model
	PermissionMode string   `yaml:"permission_mode,omitempty"` // default, acceptEdits, bypassPermissions, plan
	ProjectPaths   []string `yaml:"project_paths,omitempty"`   // Extra project roots passed via --add-dir
	BridgePort     int      `yaml:"bridge_port,omitempty"`     // Requested bridge port (probe starts here)
	KillTimeoutSec int      `yaml:"kill_timeout_sec,omitempty"`
	Debug          bool     `yaml:"debug,omitempty"`

	mu       sync.RWMutex
	filePath string
}

// Load reads the config from disk, or returns defaults if it doesn't exist
func Load() (*Config, error) {
	path, err := paths.ConfigFilePath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from a specific path. Used by Load and by tests.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{
		ProjectPaths: []string{},
		filePath:     path,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.ensureInitialized()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ensureInitialized ensures slices are initialized (not nil) after unmarshaling.
//
// Thread-safety: NOT thread-safe; only called during single-threaded
// initialization from LoadFrom before the Config is shared.
func (c *Config) ensureInitialized() {
	if c.ProjectPaths == nil {
		c.ProjectPaths = []string{}
	}
}

// Validate checks that the config is internally consistent.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.PermissionMode != "" {
		valid := false
		for _, m := range ValidPermissionModes {
			if c.PermissionMode == m {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid permission_mode %q (valid: %v)", c.PermissionMode, ValidPermissionModes)
		}
	}

	if c.BridgePort < 0 || c.BridgePort > 65535 {
		return fmt.Errorf("invalid bridge_port %d", c.BridgePort)
	}

	if c.KillTimeoutSec < 0 {
		return fmt.Errorf("invalid kill_timeout_sec %d", c.KillTimeoutSec)
	}

	// Check for duplicate project paths (filesystem-aware: handles case, symlinks)
	for i, p := range c.ProjectPaths {
		if p == "" {
			return fmt.Errorf("empty project path found")
		}
		for j := i + 1; j < len(c.ProjectPaths); j++ {
			if SamePath(p, c.ProjectPaths[j]) {
				return fmt.Errorf("duplicate project path: %s", p)
			}
		}
	}

	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.filePath, data, 0644)
}

// SetFilePath sets the config file path (for testing).
func (c *Config) SetFilePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filePath = path
}

// GetCLIPath returns the claude binary path, defaulting to "claude"
func (c *Config) GetCLIPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.CLIPath == "" {
		return DefaultCLIPath
	}
	return c.CLIPath
}

// SetCLIPath sets the claude binary path
func (c *Config) SetCLIPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CLIPath = path
}

// GetModel returns the model override, or empty string for the CLI default
func (c *Config) GetModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Model
}

// SetModel sets the model override
func (c *Config) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Model = model
}

// GetPermissionMode returns the permission mode, defaulting to "default"
func (c *Config) GetPermissionMode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.PermissionMode == "" {
		return DefaultPermissionMode
	}
	return c.PermissionMode
}

// SetPermissionMode sets the permission mode
func (c *Config) SetPermissionMode(mode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PermissionMode = mode
}

// GetBridgePort returns the requested bridge port, defaulting to 45454
func (c *Config) GetBridgePort() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.BridgePort == 0 {
		return DefaultBridgePort
	}
	return c.BridgePort
}

// SetBridgePort sets the requested bridge port
func (c *Config) SetBridgePort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BridgePort = port
}

// GetKillTimeoutSec returns the graceful kill timeout in seconds, defaulting to 3
func (c *Config) GetKillTimeoutSec() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.KillTimeoutSec <= 0 {
		return DefaultKillTimeoutSec
	}
	return c.KillTimeoutSec
}

// GetDebug returns whether debug logging is enabled
func (c *Config) GetDebug() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Debug
}

// SetDebug sets whether debug logging is enabled
func (c *Config) SetDebug(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Debug = enabled
}

// AddProjectPath adds a project path if it doesn't already exist.
// The path is resolved to an absolute path before storing.
func (c *Config) AddProjectPath(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	// Check if already exists (filesystem-aware: handles case, symlinks)
	for _, p := range c.ProjectPaths {
		if SamePath(p, absPath) {
			return false
		}
	}

	c.ProjectPaths = append(c.ProjectPaths, absPath)
	return true
}

// RemoveProjectPath removes a project path from the config.
// Returns true if the path was found and removed, false otherwise.
func (c *Config) RemoveProjectPath(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.ProjectPaths {
		if SamePath(p, path) {
			c.ProjectPaths = append(c.ProjectPaths[:i], c.ProjectPaths[i+1:]...)
			return true
		}
	}
	return false
}

// GetProjectPaths returns a copy of the project paths slice
func (c *Config) GetProjectPaths() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.ProjectPaths))
	copy(out, c.ProjectPaths)
	return out
}
