package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// APIBaseURL is the root of the backend; resource paths are appended under /api.
	APIBaseURL string `json:"api_base_url"`

	// RequestTimeoutMs bounds a single backend request. 0 disables the timeout.
	RequestTimeoutMs int `json:"request_timeout_ms"`

	// TreeMaxDepth is the number of folder levels loaded into the navigation tree,
	// counting roots as level 1. 0 loads the whole hierarchy.
	TreeMaxDepth *int `json:"tree_max_depth,omitempty"`

	// TreeConcurrency limits concurrent child-folder fetches during a tree load.
	TreeConcurrency int `json:"tree_concurrency,omitempty"`

	// AutosaveDelayMs is the quiet period before an edited entity is saved.
	AutosaveDelayMs int `json:"autosave_delay_ms,omitempty"`

	// Bind and Port are the web UI listen address.
	Bind string `json:"bind,omitempty"`
	Port int    `json:"port,omitempty"`

	// Environment is "dev" or "prod"; prod switches console logs to JSON.
	Environment string `json:"environment,omitempty"`

	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// LogFile is a rotating JSON log file. Relative paths resolve against the base dir.
	// Empty disables file logging.
	LogFile string `json:"log_file,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type prefixes to disable entirely
	// (folder, feature, prompt, query, diagram).
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	depth := 2
	return &Config{
		APIBaseURL:       "http://localhost:8080",
		RequestTimeoutMs: 10000,
		TreeMaxDepth:     &depth,
		TreeConcurrency:  4,
		AutosaveDelayMs:  1000,
		Bind:             "127.0.0.1",
		Port:             3000,
		Environment:      "dev",
		LogLevel:         "info",
		LogFile:          "folio.log",
	}
}

// RequestTimeout returns the backend request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// AutosaveDelay returns the debounce delay for auto-saving editors.
func (c *Config) AutosaveDelay() time.Duration {
	return time.Duration(c.AutosaveDelayMs) * time.Millisecond
}

// MaxDepth returns the tree depth bound, defaulting to 2.
func (c *Config) MaxDepth() int {
	if c.TreeMaxDepth == nil {
		return 2
	}
	return *c.TreeMaxDepth
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

// Load loads configuration from baseDir/config.json, then applies environment
// overrides. A .env file in the working directory is loaded first when present.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.folio.
func Load(baseDir string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from FOLIO_* environment variables.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("FOLIO_API_URL"); ok && v != "" {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := lookup("FOLIO_BIND"); ok && v != "" {
		cfg.Bind = v
	}
	if v, ok := lookup("FOLIO_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FOLIO_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v, ok := lookup("FOLIO_ENV"); ok && v != "" {
		cfg.Environment = v
	}
	if v, ok := lookup("FOLIO_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.APIBaseURL = firstString(strings.TrimRight(overlay.APIBaseURL, "/"), base.APIBaseURL)
	result.Bind = firstString(overlay.Bind, base.Bind)
	result.Environment = firstString(overlay.Environment, base.Environment)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.LogFile = firstString(overlay.LogFile, base.LogFile)

	result.RequestTimeoutMs = firstInt(overlay.RequestTimeoutMs, base.RequestTimeoutMs)
	result.TreeConcurrency = firstInt(overlay.TreeConcurrency, base.TreeConcurrency)
	result.AutosaveDelayMs = firstInt(overlay.AutosaveDelayMs, base.AutosaveDelayMs)
	result.Port = firstInt(overlay.Port, base.Port)

	// Depth 0 is meaningful (unbounded), so only an absent value falls through.
	result.TreeMaxDepth = overlay.TreeMaxDepth
	if result.TreeMaxDepth == nil {
		result.TreeMaxDepth = base.TreeMaxDepth
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstString(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
