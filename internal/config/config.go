// Package config handles configuration loading and terminus home resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// APIConfig holds settings for the hosting platform API client.
type APIConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Token    string        `yaml:"token"` // #nosec G117 -- session bearer token, redacted on display
	UserID   string        `yaml:"user_id"`
	Timeout  time.Duration `yaml:"timeout"`
	PageSize int           `yaml:"page_size"`
}

// WorkflowConfig bounds how long and how often workflows are polled.
type WorkflowConfig struct {
	PollInterval    time.Duration `yaml:"poll_interval"`
	MaxPollInterval time.Duration `yaml:"max_poll_interval"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `yaml:"format"` // "auto" | "console" | "json"
}

// Config is the root configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultBaseURL is the public hosting platform endpoint.
const DefaultBaseURL = "https://terminus.pantheon.io/api"

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  DefaultBaseURL,
			Timeout:  30 * time.Second,
			PageSize: 100,
		},
		Workflow: WorkflowConfig{
			PollInterval:    2 * time.Second,
			MaxPollInterval: 15 * time.Second,
			Timeout:         10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads config.yaml from path.
// If the file does not exist it returns Default() with no error.
// Missing keys retain their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Unmarshal into a plain map so we can apply only the keys that are present.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if api, ok := raw["api"].(map[string]any); ok {
		if v, ok := api["base_url"].(string); ok && v != "" {
			cfg.API.BaseURL = v
		}
		if v, ok := api["token"].(string); ok {
			cfg.API.Token = v
		}
		if v, ok := api["user_id"].(string); ok {
			cfg.API.UserID = v
		}
		if err := overlayDuration(api, "timeout", &cfg.API.Timeout); err != nil {
			return nil, err
		}
		if v, ok := api["page_size"].(int); ok {
			cfg.API.PageSize = v
		}
	}

	if wf, ok := raw["workflow"].(map[string]any); ok {
		if err := overlayDuration(wf, "poll_interval", &cfg.Workflow.PollInterval); err != nil {
			return nil, err
		}
		if err := overlayDuration(wf, "max_poll_interval", &cfg.Workflow.MaxPollInterval); err != nil {
			return nil, err
		}
		if err := overlayDuration(wf, "timeout", &cfg.Workflow.Timeout); err != nil {
			return nil, err
		}
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v, ok := lg["level"].(string); ok && v != "" {
			cfg.Log.Level = v
		}
		if v, ok := lg["format"].(string); ok && v != "" {
			cfg.Log.Format = v
		}
	}

	return cfg, nil
}

// overlayDuration parses section[key] as a Go duration string ("30s", "5m")
// into dst when the key is present.
func overlayDuration(section map[string]any, key string, dst *time.Duration) error {
	v, ok := section[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("config: %s must be a duration string, got %T", key, v)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

// ApplyEnv overrides API settings from TERMINUS_API_URL, TERMINUS_TOKEN and
// TERMINUS_USER when they are set.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("TERMINUS_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("TERMINUS_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("TERMINUS_USER"); v != "" {
		cfg.API.UserID = v
	}
}

// Validate reports the first setting that cannot drive the client.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is empty"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout))
	}
	if c.API.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("api.page_size must be positive, got %d", c.API.PageSize))
	}
	if c.Workflow.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("workflow.poll_interval must be positive, got %s", c.Workflow.PollInterval))
	}
	if c.Workflow.MaxPollInterval < c.Workflow.PollInterval {
		errs = append(errs, fmt.Errorf("workflow.max_poll_interval %s is below poll_interval %s",
			c.Workflow.MaxPollInterval, c.Workflow.PollInterval))
	}
	if c.Workflow.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("workflow.timeout must be positive, got %s", c.Workflow.Timeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Home resolution
// ---------------------------------------------------------------------------

// globalConfigPath returns the path to the global terminus config file.
// This file stores only terminus_home.
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "terminus", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveHome returns the terminus home path and the source of the resolution.
// Priority: TERMINUS_HOME env → persisted global config → ~/.terminus
// source is one of "env", "config", or "default".
func ResolveHome() (path, source string) {
	if env := os.Getenv("TERMINUS_HOME"); env != "" {
		p, err := normalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".terminus"), "default"
}

// GetHome returns the resolved terminus home path.
func GetHome() string {
	path, _ := ResolveHome()
	return path
}

// FilePath returns the config.yaml location inside home.
func FilePath(home string) string {
	return filepath.Join(home, "config.yaml")
}

// LoadFromHome resolves home when empty, loads its config.yaml and applies
// environment overrides.
func LoadFromHome(home string) (*Config, error) {
	if home == "" {
		home = GetHome()
	}
	cfg, err := Load(FilePath(home))
	if err != nil {
		return nil, fmt.Errorf("config.LoadFromHome: %w", err)
	}
	ApplyEnv(cfg)
	return cfg, nil
}

// GetPersistedHome reads terminus_home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedHome() (string, bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", false, nil
	}

	val, _ := raw["terminus_home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", err
	}

	// Read existing global config, preserving any other keys.
	var raw map[string]any
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["terminus_home"] = normalized

	out, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedHome removes terminus_home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedHome() (bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false, nil
	}

	if _, ok := raw["terminus_home"]; !ok {
		return false, nil
	}
	delete(raw, "terminus_home")

	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return true, nil
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(cfgPath, out, 0o600)
}
