// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the resolved configuration.
type Config struct {
	// Provider settings
	Provider     string `json:"provider"`
	ProviderFile string `json:"provider_file,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`

	// Application credentials
	AppKey    string `json:"app_key,omitempty"`
	AppSecret string `json:"app_secret,omitempty"`
	Callback  string `json:"callback,omitempty"`

	// Named applications (credential+provider bundles)
	Apps       map[string]*AppConfig `json:"apps,omitempty"`
	DefaultApp string                `json:"default_app,omitempty"`
	ActiveApp  string                `json:"-"` // Set at runtime, not persisted

	// Transport settings
	Timeout time.Duration `json:"-"`

	// Output settings
	Format string `json:"format"`

	// Behavior preferences (persisted via config set, overridable by flags)
	Stats   *bool `json:"stats,omitempty"`
	Verbose *int  `json:"verbose,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// AppConfig holds configuration for a named application.
type AppConfig struct {
	Provider     string `json:"provider"`
	AppKey       string `json:"app_key"`
	AppSecret    string `json:"app_secret,omitempty"`
	Callback     string `json:"callback,omitempty"`
	BaseURL      string `json:"base_url,omitempty"`
	ProviderFile string `json:"provider_file,omitempty"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
	SourceApp     Source = "app"
)

// DefaultTimeout bounds each HTTP request unless configured otherwise.
const DefaultTimeout = 10 * time.Second

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	Provider string
	App      string
	Format   string
	Timeout  time.Duration
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider: "sina",
		Timeout:  DefaultTimeout,
		Format:   "auto",
		Sources:  make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > local > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem)
	loadFromFile(cfg, globalConfigPath(), SourceGlobal)

	// Closer local configs override parents
	for _, path := range localConfigPaths() {
		loadFromFile(cfg, path, SourceLocal)
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

// authorityKeys control which credentials are used and where tokens are sent.
// A config file dropped into a working directory must not be able to set them.
var authorityKeys = map[string]bool{
	"app_secret":    true,
	"provider_file": true,
	"base_url":      true,
	"apps":          true,
	"default_app":   true,
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	if source == SourceLocal {
		for key := range fileCfg {
			if authorityKeys[key] {
				fmt.Fprintf(os.Stderr, "warning: ignoring %s from local config at %s (authority keys are not trusted from local config)\n", key, path)
				delete(fileCfg, key)
			}
		}
	}

	setString := func(key string, dst *string) {
		if v, ok := fileCfg[key].(string); ok && v != "" {
			*dst = v
			cfg.Sources[key] = string(source)
		}
	}
	setString("provider", &cfg.Provider)
	setString("provider_file", &cfg.ProviderFile)
	setString("base_url", &cfg.BaseURL)
	setString("app_key", &cfg.AppKey)
	setString("app_secret", &cfg.AppSecret)
	setString("callback", &cfg.Callback)
	setString("format", &cfg.Format)
	setString("default_app", &cfg.DefaultApp)

	if v, ok := fileCfg["timeout"]; ok {
		if d, ok := parseTimeout(v); ok {
			cfg.Timeout = d
			cfg.Sources["timeout"] = string(source)
		} else {
			fmt.Fprintf(os.Stderr, "warning: ignoring invalid timeout %v in %s\n", v, path)
		}
	}
	if v, ok := fileCfg["stats"].(bool); ok {
		cfg.Stats = &v
		cfg.Sources["stats"] = string(source)
	}
	if v, ok := fileCfg["verbose"]; ok {
		if fv, ok := v.(float64); ok {
			iv := int(fv)
			if iv >= 0 && iv <= 2 && fv == float64(iv) {
				cfg.Verbose = &iv
				cfg.Sources["verbose"] = string(source)
			}
		}
	}
	if v, ok := fileCfg["apps"].(map[string]any); ok {
		if cfg.Apps == nil {
			cfg.Apps = make(map[string]*AppConfig)
		}
		for name, raw := range v {
			app, ok := parseApp(raw)
			if !ok {
				fmt.Fprintf(os.Stderr, "warning: skipping app %q in %s: app_key is required\n", name, path)
				continue
			}
			cfg.Apps[name] = app
		}
		cfg.Sources["apps"] = string(source)
	}
}

func parseApp(raw any) (*AppConfig, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	app := &AppConfig{}
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	app.Provider = str("provider")
	app.AppKey = str("app_key")
	app.AppSecret = str("app_secret")
	app.Callback = str("callback")
	app.BaseURL = str("base_url")
	app.ProviderFile = str("provider_file")
	if app.AppKey == "" {
		return nil, false
	}
	return app, true
}

// parseTimeout accepts a duration string ("15s") or a number of seconds.
func parseTimeout(v any) (time.Duration, bool) {
	switch t := v.(type) {
	case string:
		d, err := time.ParseDuration(t)
		if err != nil || d <= 0 {
			return 0, false
		}
		return d, true
	case float64:
		if t <= 0 {
			return 0, false
		}
		return time.Duration(t * float64(time.Second)), true
	default:
		return 0, false
	}
}

// LoadFromEnv loads configuration from environment variables.
// Exported so root.go can re-apply after app overlay.
func LoadFromEnv(cfg *Config) {
	envString := func(name, key string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
			cfg.Sources[key] = string(SourceEnv)
		}
	}
	envString("WEIBO_PROVIDER", "provider", &cfg.Provider)
	envString("WEIBO_PROVIDER_FILE", "provider_file", &cfg.ProviderFile)
	envString("WEIBO_BASE_URL", "base_url", &cfg.BaseURL)
	envString("WEIBO_APP_KEY", "app_key", &cfg.AppKey)
	envString("WEIBO_APP_SECRET", "app_secret", &cfg.AppSecret)
	envString("WEIBO_CALLBACK", "callback", &cfg.Callback)

	if v := os.Getenv("WEIBO_TIMEOUT"); v != "" {
		if d, ok := parseTimeout(v); ok {
			cfg.Timeout = d
			cfg.Sources["timeout"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("WEIBO_STATS"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Stats = &b
			cfg.Sources["stats"] = string(SourceEnv)
		}
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Returns (value, true) for recognized values, (false, false) for unrecognized.
// Unrecognized values are ignored to preserve three-state pointer semantics.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
// Exported so root.go can re-apply after app overlay.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.Provider != "" {
		cfg.Provider = o.Provider
		cfg.Sources["provider"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
		cfg.Sources["timeout"] = string(SourceFlag)
	}
}

// ApplyApp overlays a named application onto the config.
//
// App values unconditionally overwrite config fields. The caller must call
// LoadFromEnv and ApplyOverrides afterward so that env vars and flags keep
// final precedence: flags > env > app > file > defaults.
func (cfg *Config) ApplyApp(name string) error {
	if cfg.Apps == nil {
		return fmt.Errorf("no apps configured")
	}
	a, ok := cfg.Apps[name]
	if !ok {
		return fmt.Errorf("app %q not found", name)
	}

	cfg.ActiveApp = name

	overlay := func(key, v string, dst *string) {
		if v != "" {
			*dst = v
			cfg.Sources[key] = string(SourceApp)
		}
	}
	overlay("provider", a.Provider, &cfg.Provider)
	overlay("app_key", a.AppKey, &cfg.AppKey)
	overlay("app_secret", a.AppSecret, &cfg.AppSecret)
	overlay("callback", a.Callback, &cfg.Callback)
	overlay("base_url", a.BaseURL, &cfg.BaseURL)
	overlay("provider_file", a.ProviderFile, &cfg.ProviderFile)

	return nil
}

// Path helpers

func systemConfigPath() string {
	return "/etc/weibo/config.json"
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// localConfigPaths returns .weibo/config.json paths from the furthest ancestor
// to the current directory. The walk stops at $HOME, and nothing is trusted
// when the working directory is outside $HOME.
func localConfigPaths() []string {
	dir, err := os.Getwd()
	if err != nil {
		return nil // fail closed: can't determine CWD
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil // fail closed: can't resolve symlinks for trust boundary
	}
	dir = resolved

	home, _ := os.UserHomeDir()
	if resolved, err := filepath.EvalSymlinks(home); err == nil {
		home = resolved
	}
	if home != "" && !isInsideDir(dir, home) {
		return nil
	}

	var paths []string
	for {
		cfgPath := filepath.Join(dir, ".weibo", "config.json")
		if cfgPath != globalConfigPath() {
			if _, err := os.Stat(cfgPath); err == nil {
				paths = append(paths, cfgPath)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir || dir == home {
			break
		}
		dir = parent
	}

	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}
	return paths
}

// isInsideDir reports whether child is the same as or a subdirectory of parent.
// Both paths must be absolute and already cleaned/resolved.
func isInsideDir(child, parent string) bool {
	if child == parent {
		return true
	}
	prefix := parent
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(child, prefix)
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "weibo")
}
