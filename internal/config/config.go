package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	verrors "github.com/dmwm/wmviews/internal/errors"
)

// ProjectFileName is the project configuration file looked up in the
// working directory (or --config-dir). ".wmviews.yml" is accepted as well.
const ProjectFileName = ".wmviews.yaml"

// Config represents the complete wmviews configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	View    ViewConfig    `yaml:"view" json:"view"`
	Input   InputConfig   `yaml:"input" json:"input"`
	Runner  RunnerConfig  `yaml:"runner" json:"runner"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ViewConfig selects the view function to run.
type ViewConfig struct {
	Name string `yaml:"name" json:"name"`
}

// InputConfig configures which files under a directory are read as documents.
// Patterns use doublestar syntax and are matched relative to the directory.
type InputConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// RunnerConfig configures document mapping.
type RunnerConfig struct {
	// Workers bounds concurrent Map calls. 0 means runtime.NumCPU().
	Workers int `yaml:"workers" json:"workers"`

	// CacheSize is the number of documents whose rows are memoised.
	// 0 disables the cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// OutputConfig configures how rows are printed.
type OutputConfig struct {
	// Format is one of ndjson, json, table.
	Format string `yaml:"format" json:"format"`

	// Path, when set, receives the rows instead of stdout.
	Path string `yaml:"path" json:"path"`
}

// WatchConfig configures `wmviews watch`.
type WatchConfig struct {
	// Debounce is a Go duration string, e.g. "200ms".
	Debounce string `yaml:"debounce" json:"debounce"`
}

// LoggingConfig configures logging. Level applies to stderr output when
// --debug is off; with --debug everything goes to the rotating file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig returns a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		View: ViewConfig{
			Name: "jobsByStatusWorkflow",
		},
		Input: InputConfig{
			Include: []string{"**/*.json", "**/*.ndjson", "**/*.jsonl"},
			Exclude: []string{".git/**", "**/_design/**"},
		},
		Runner: RunnerConfig{
			Workers:   0,
			CacheSize: 4096,
		},
		Output: OutputConfig{
			Format: "ndjson",
		},
		Watch: WatchConfig{
			Debounce: "200ms",
		},
		Logging: LoggingConfig{
			Level:     "warn",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/wmviews/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/wmviews/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wmviews", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "wmviews", "config.yaml")
	}
	return filepath.Join(home, ".config", "wmviews", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// ProjectConfigPath returns the project config file in dir that Load would
// read, or "" when there is none.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{ProjectFileName, ".wmviews.yml"} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// loadUserConfig returns nil, nil when no user config exists.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var cfg Config
	if err := readYAML(configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads configuration for dir. Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/wmviews/config.yaml)
//  3. Project config (.wmviews.yaml in dir)
//  4. Environment variables (WMVIEWS_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if p := ProjectConfigPath(dir); p != "" {
		var projectCfg Config
		if err := readYAML(p, &projectCfg); err != nil {
			return nil, err
		}
		cfg.mergeWith(&projectCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, verrors.ConfigError("invalid configuration", err)
	}

	return cfg, nil
}

func readYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return readError(path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return verrors.ConfigError("failed to parse config file "+path, err).
			WithDetail("path", path)
	}
	return nil
}

// readError reports a config file that was found but could not be read.
func readError(path string, err error) *verrors.ViewError {
	if errors.Is(err, fs.ErrNotExist) {
		return verrors.New(verrors.ErrCodeConfigNotFound, "config file disappeared: "+path, err).
			WithDetail("path", path)
	}
	return verrors.New(verrors.ErrCodeConfigPermission, "cannot read config file "+path, err).
		WithDetail("path", path).
		WithSuggestion("Check the file's permissions, or move it aside to use defaults")
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.View.Name != "" {
		c.View.Name = other.View.Name
	}

	if len(other.Input.Include) > 0 {
		c.Input.Include = other.Input.Include
	}
	if len(other.Input.Exclude) > 0 {
		// Extends the defaults rather than replacing them
		c.Input.Exclude = appendUnique(c.Input.Exclude, other.Input.Exclude...)
	}

	if other.Runner.Workers != 0 {
		c.Runner.Workers = other.Runner.Workers
	}
	if other.Runner.CacheSize != 0 {
		c.Runner.CacheSize = other.Runner.CacheSize
	}

	if other.Output.Format != "" {
		c.Output.Format = other.Output.Format
	}
	if other.Output.Path != "" {
		c.Output.Path = other.Output.Path
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]bool, len(dst))
	out := make([]string, 0, len(dst)+len(values))
	for _, v := range append(append([]string(nil), dst...), values...) {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// applyEnvOverrides applies WMVIEWS_* environment variable overrides.
// Malformed numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WMVIEWS_VIEW"); v != "" {
		c.View.Name = v
	}
	if v := os.Getenv("WMVIEWS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Runner.Workers = n
		}
	}
	// WMVIEWS_CACHE_SIZE=0 disables memoisation
	if v := os.Getenv("WMVIEWS_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Runner.CacheSize = n
		}
	}
	if v := os.Getenv("WMVIEWS_FORMAT"); v != "" {
		c.Output.Format = strings.ToLower(v)
	}
	if v := os.Getenv("WMVIEWS_OUTPUT"); v != "" {
		c.Output.Path = v
	}
	if v := os.Getenv("WMVIEWS_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("WMVIEWS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// DebounceDuration returns the parsed watch debounce.
// Validate guarantees it parses.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.View.Name) == "" {
		return fmt.Errorf("view.name must not be empty")
	}
	if len(c.Input.Include) == 0 {
		return fmt.Errorf("input.include must list at least one pattern")
	}

	if c.Runner.Workers < 0 {
		return fmt.Errorf("runner.workers must be non-negative, got %d", c.Runner.Workers)
	}
	if c.Runner.CacheSize < 0 {
		return fmt.Errorf("runner.cache_size must be non-negative, got %d", c.Runner.CacheSize)
	}

	validFormats := map[string]bool{"ndjson": true, "json": true, "table": true}
	if !validFormats[strings.ToLower(c.Output.Format)] {
		return fmt.Errorf("output.format must be 'ndjson', 'json', or 'table', got %s", c.Output.Format)
	}

	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return fmt.Errorf("watch.debounce must be a duration such as 200ms, got %q", c.Watch.Debounce)
	}
	if d < 0 {
		return fmt.Errorf("watch.debounce must be non-negative, got %s", d)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 {
		return fmt.Errorf("logging.max_size_mb must be non-negative, got %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.MaxFiles < 0 {
		return fmt.Errorf("logging.max_files must be non-negative, got %d", c.Logging.MaxFiles)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
