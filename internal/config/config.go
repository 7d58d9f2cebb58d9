// Package config loads the per-project analyzer settings from
// .wixanalyzer.json (or .yaml) plus WIXLINT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"wixlint/internal/cache"
	"wixlint/internal/diag"
	"wixlint/internal/validate"
	"wixlint/internal/walkwalk"
)

// FileNames are the config files FindAndLoad looks for, in order.
var FileNames = []string{".wixanalyzer.json", ".wixanalyzer.yaml", ".wixanalyzer.yml"}

// EnvPrefix prefixes every environment override (WIXLINT_MIN_SEVERITY, ...).
const EnvPrefix = "WIXLINT"

// Config holds all project settings.
type Config struct {
	Rules          RulesConfig `mapstructure:"rules" json:"rules"`
	MinSeverity    string      `mapstructure:"min_severity" json:"min_severity"`
	Exclude        []string    `mapstructure:"exclude" json:"exclude"`
	MaxDiagnostics int         `mapstructure:"max_diagnostics" json:"max_diagnostics"`
	Cache          CacheConfig `mapstructure:"cache" json:"cache"`
	Workers        int         `mapstructure:"workers" json:"workers"`
	Baseline       string      `mapstructure:"baseline" json:"baseline"`

	// path is the file the settings came from; empty for defaults.
	path string
}

// RulesConfig selects and tunes rules. Patterns are doublestar globs over
// rule ids ("SEC-*", "VAL-REF-*").
type RulesConfig struct {
	Enabled    []string          `mapstructure:"enabled" json:"enabled"`
	Disabled   []string          `mapstructure:"disabled" json:"disabled"`
	Severity   map[string]string `mapstructure:"severity" json:"severity"`
	Categories []string          `mapstructure:"categories" json:"categories"`
	Files      []string          `mapstructure:"files" json:"files"`
}

// CacheConfig controls the analysis cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Dir     string `mapstructure:"dir" json:"dir"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MinSeverity: "info",
		Cache: CacheConfig{
			Enabled: true,
			Dir:     cache.DefaultDir,
		},
	}
}

// Load reads path (JSON or YAML by extension) over the defaults and applies
// environment overrides. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	cfg := Default()
	v.SetDefault("min_severity", cfg.MinSeverity)
	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("workers", 0)
	v.SetDefault("max_diagnostics", 0)
	v.SetDefault("baseline", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if err := loadEnvFiles(filepath.Dir(path)); err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindAndLoad looks for a config file in start (a file or directory) and
// each of its parents and loads the first one found. Without a file it
// returns the defaults.
func FindAndLoad(start string) (*Config, error) {
	path, err := Find(start)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Find returns the nearest config file above start, or "".
func Find(start string) (string, error) {
	cur, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	if st, err := os.Stat(cur); err == nil && !st.IsDir() {
		cur = filepath.Dir(cur)
	}
	for {
		for _, name := range FileNames {
			p := filepath.Join(cur, name)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p, nil
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return "", err
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", nil
		}
		cur = parent
	}
}

// loadEnvFiles reads .env.local then .env next to the config file. Values
// already in the environment win.
func loadEnvFiles(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// Path is the file the settings were loaded from, or "".
func (c *Config) Path() string { return c.path }

// Root is the directory relative paths in the config resolve against: the
// config file's directory, or the working directory.
func (c *Config) Root() string {
	if c.path != "" {
		return filepath.Dir(c.path)
	}
	wd, _ := os.Getwd()
	return wd
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	return validate.Config(validate.ConfigSpec{
		Source:         c.path,
		MinSeverity:    c.MinSeverity,
		Enabled:        c.Rules.Enabled,
		Disabled:       c.Rules.Disabled,
		Severity:       c.Rules.Severity,
		Categories:     c.Rules.Categories,
		Exclude:        c.Exclude,
		MaxDiagnostics: c.MaxDiagnostics,
		Workers:        c.Workers,
	})
}

// RuleEnabled decides whether rule id runs. Disabled patterns win over
// enabled ones. With no enabled patterns the rule's own default applies;
// otherwise only matching rules run.
func (c *Config) RuleEnabled(id string, byDefault bool) bool {
	if matchAny(c.Rules.Disabled, id) {
		return false
	}
	if len(c.Rules.Enabled) == 0 {
		return byDefault
	}
	return matchAny(c.Rules.Enabled, id)
}

func matchAny(patterns []string, id string) bool {
	for _, p := range patterns {
		if p == id {
			return true
		}
		if ok, err := doublestar.Match(p, id); err == nil && ok {
			return true
		}
	}
	return false
}

// MinSeverityLevel parses MinSeverity; empty means info.
func (c *Config) MinSeverityLevel() diag.Severity {
	if s, err := diag.ParseSeverity(c.MinSeverity); err == nil {
		return s
	}
	return diag.SeverityInfo
}

// SeverityOverride returns the configured severity of a rule, if any.
func (c *Config) SeverityOverride(id string) (diag.Severity, bool) {
	raw, ok := c.Rules.Severity[id]
	if !ok {
		// viper lowercases map keys
		raw, ok = c.Rules.Severity[strings.ToLower(id)]
	}
	if !ok {
		return 0, false
	}
	s, err := diag.ParseSeverity(raw)
	return s, err == nil
}

// CategorySet returns the allowed categories, or nil for all.
func (c *Config) CategorySet() map[diag.Category]bool {
	if len(c.Rules.Categories) == 0 {
		return nil
	}
	out := make(map[diag.Category]bool, len(c.Rules.Categories))
	for _, cat := range c.Rules.Categories {
		out[diag.Category(cat)] = true
	}
	return out
}

// WorkerCount resolves Workers, where 0 means one per CPU.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// CacheDir resolves Cache.Dir against Root.
func (c *Config) CacheDir() string { return c.resolve(c.Cache.Dir) }

// BaselinePath resolves Baseline against Root, or returns "".
func (c *Config) BaselinePath() string {
	if c.Baseline == "" {
		return ""
	}
	return c.resolve(c.Baseline)
}

// RuleFiles resolves Rules.Files against Root.
func (c *Config) RuleFiles() []string {
	out := make([]string, len(c.Rules.Files))
	for i, f := range c.Rules.Files {
		out[i] = c.resolve(f)
	}
	return out
}

// Excluded reports whether path matches an exclude glob. Paths under Root
// are matched relative to it.
func (c *Config) Excluded(path string) bool {
	if len(c.Exclude) == 0 {
		return false
	}
	return walkwalk.MatchesAny(c.Exclude, strings.TrimPrefix(diag.RelativeFile(path, c.Root()), "/"))
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root(), p)
}
