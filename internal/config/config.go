// Package config loads shai configuration.
//
// Precedence, lowest to highest: built-in defaults, user config
// (~/.shai/config.toml), project config (.shai/config.toml or --config),
// SHAI_* environment variables, command-line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/shai-cli/shai/internal/llm"
)

// Config is the full shai configuration.
type Config struct {
	General  GeneralConfig  `toml:"general" mapstructure:"general" json:"general"`
	Judgment JudgmentConfig `toml:"judgment" mapstructure:"judgment" json:"judgment"`
	Patterns PatternsConfig `toml:"patterns" mapstructure:"patterns" json:"patterns"`
	Executor ExecutorConfig `toml:"executor" mapstructure:"executor" json:"executor"`
	History  HistoryConfig  `toml:"history" mapstructure:"history" json:"history"`
}

// GeneralConfig holds top-level behavior switches.
type GeneralConfig struct {
	Execute  bool   `toml:"execute" mapstructure:"execute" json:"execute"`
	Verbose  bool   `toml:"verbose" mapstructure:"verbose" json:"verbose"`
	LogLevel string `toml:"log_level" mapstructure:"log_level" json:"log_level"`
}

// JudgmentConfig selects the judgment backend and its models.
type JudgmentConfig struct {
	Provider            string  `toml:"provider" mapstructure:"provider" json:"provider"`
	Model               string  `toml:"model" mapstructure:"model" json:"model"`
	GeneratorModel      string  `toml:"generator_model" mapstructure:"generator_model" json:"generator_model"`
	IntentModel         string  `toml:"intent_model" mapstructure:"intent_model" json:"intent_model"`
	ConfidenceThreshold float64 `toml:"confidence_threshold" mapstructure:"confidence_threshold" json:"confidence_threshold"`
	WantRationale       bool    `toml:"want_rationale" mapstructure:"want_rationale" json:"want_rationale"`
	TimeoutSecs         int     `toml:"timeout_seconds" mapstructure:"timeout_seconds" json:"timeout_seconds"`
	Endpoint            string  `toml:"endpoint" mapstructure:"endpoint" json:"endpoint"`
	APIKeyEnv           string  `toml:"api_key_env" mapstructure:"api_key_env" json:"api_key_env"`
	IntentFilter        bool    `toml:"intent_filter" mapstructure:"intent_filter" json:"intent_filter"`
	ExplainUnsafe       bool    `toml:"explain_unsafe" mapstructure:"explain_unsafe" json:"explain_unsafe"`
}

// Timeout returns the per-call judgment timeout.
func (j JudgmentConfig) Timeout() time.Duration {
	return time.Duration(j.TimeoutSecs) * time.Second
}

// PatternsConfig extends the builtin pattern tables.
type PatternsConfig struct {
	// Deny regexes are checked after the builtins, in order.
	Deny      []string `toml:"deny" mapstructure:"deny" json:"deny"`
	Whitelist []string `toml:"whitelist" mapstructure:"whitelist" json:"whitelist"`
}

// ExecutorConfig controls how approved commands run.
type ExecutorConfig struct {
	Shell       string `toml:"shell" mapstructure:"shell" json:"shell"`
	TimeoutSecs int    `toml:"timeout_seconds" mapstructure:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the per-command execution timeout.
func (e ExecutorConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// HistoryConfig controls the evaluation history store.
type HistoryConfig struct {
	Enabled       bool   `toml:"enabled" mapstructure:"enabled" json:"enabled"`
	DatabasePath  string `toml:"database_path" mapstructure:"database_path" json:"database_path"`
	RetentionDays int    `toml:"retention_days" mapstructure:"retention_days" json:"retention_days"`
}

// ResolvedDatabasePath returns DatabasePath, or ~/.shai/history.db when unset.
func (h HistoryConfig) ResolvedDatabasePath() string {
	if h.DatabasePath != "" {
		return expandHome(h.DatabasePath)
	}
	return filepath.Join(userConfigDir(), "history.db")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			Execute:  true,
			Verbose:  false,
			LogLevel: "warn",
		},
		Judgment: JudgmentConfig{
			Provider:            llm.ProviderOllama,
			Model:               "codellama:latest",
			GeneratorModel:      "codellama:latest",
			IntentModel:         "codellama:latest",
			ConfidenceThreshold: 0.75,
			WantRationale:       false,
			TimeoutSecs:         60,
			IntentFilter:        true,
			ExplainUnsafe:       true,
		},
		Patterns: PatternsConfig{
			Deny:      []string{},
			Whitelist: []string{},
		},
		Executor: ExecutorConfig{
			TimeoutSecs: 300,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
	}
}

// LoadOptions controls Load.
type LoadOptions struct {
	// ProjectDir is searched for .shai/config.toml. Empty uses the working directory.
	ProjectDir string
	// ConfigPath replaces the project config file when set.
	ConfigPath string
	// FlagOverrides maps dotted keys to values from command-line flags.
	FlagOverrides map[string]any
}

// envBindings maps environment variables to config keys.
var envBindings = []struct {
	env string
	key string
}{
	{"SHAI_EXECUTE", "general.execute"},
	{"SHAI_VERBOSE", "general.verbose"},
	{"SHAI_LOG_LEVEL", "general.log_level"},
	{"SHAI_PROVIDER", "judgment.provider"},
	{"SHAI_MODEL", "judgment.model"},
	{"SHAI_GENERATOR_MODEL", "judgment.generator_model"},
	{"SHAI_INTENT_MODEL", "judgment.intent_model"},
	{"SHAI_CONFIDENCE_THRESHOLD", "judgment.confidence_threshold"},
	{"SHAI_WANT_RATIONALE", "judgment.want_rationale"},
	{"SHAI_JUDGMENT_TIMEOUT", "judgment.timeout_seconds"},
	{"SHAI_ENDPOINT", "judgment.endpoint"},
	{"SHAI_SHELL", "executor.shell"},
	{"SHAI_HISTORY_ENABLED", "history.enabled"},
	{"SHAI_HISTORY_DB", "history.database_path"},
}

// Load resolves configuration from all layers and validates it.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	setDefaults(v)

	userPath, projectPath := ConfigPaths(opts.ProjectDir, opts.ConfigPath)
	if err := mergeConfigFile(v, userPath); err != nil {
		return Config{}, err
	}
	if err := mergeConfigFile(v, projectPath); err != nil {
		return Config{}, err
	}

	for _, b := range envBindings {
		raw, ok := os.LookupEnv(b.env)
		if !ok || raw == "" {
			continue
		}
		val, err := ParseValue(b.key, raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", b.env, err)
		}
		v.Set(b.key, val)
	}

	for key, val := range opts.FlagOverrides {
		v.Set(key, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("general.execute", d.General.Execute)
	v.SetDefault("general.verbose", d.General.Verbose)
	v.SetDefault("general.log_level", d.General.LogLevel)

	v.SetDefault("judgment.provider", d.Judgment.Provider)
	v.SetDefault("judgment.model", d.Judgment.Model)
	v.SetDefault("judgment.generator_model", d.Judgment.GeneratorModel)
	v.SetDefault("judgment.intent_model", d.Judgment.IntentModel)
	v.SetDefault("judgment.confidence_threshold", d.Judgment.ConfidenceThreshold)
	v.SetDefault("judgment.want_rationale", d.Judgment.WantRationale)
	v.SetDefault("judgment.timeout_seconds", d.Judgment.TimeoutSecs)
	v.SetDefault("judgment.endpoint", d.Judgment.Endpoint)
	v.SetDefault("judgment.api_key_env", d.Judgment.APIKeyEnv)
	v.SetDefault("judgment.intent_filter", d.Judgment.IntentFilter)
	v.SetDefault("judgment.explain_unsafe", d.Judgment.ExplainUnsafe)

	v.SetDefault("patterns.deny", d.Patterns.Deny)
	v.SetDefault("patterns.whitelist", d.Patterns.Whitelist)

	v.SetDefault("executor.shell", d.Executor.Shell)
	v.SetDefault("executor.timeout_seconds", d.Executor.TimeoutSecs)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.database_path", d.History.DatabasePath)
	v.SetDefault("history.retention_days", d.History.RetentionDays)
}

// mergeConfigFile merges a TOML file into v. Empty and missing paths are no-ops.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	v.SetConfigType("toml")
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks every field and reports all violations in one error.
func Validate(cfg Config) error {
	var problems []string

	if !slices.Contains(validLogLevels, strings.ToLower(cfg.General.LogLevel)) {
		problems = append(problems, fmt.Sprintf("general.log_level must be one of %s", strings.Join(validLogLevels, ", ")))
	}

	if !slices.Contains(llm.Providers(), strings.ToLower(cfg.Judgment.Provider)) {
		problems = append(problems, fmt.Sprintf("judgment.provider must be one of %s", strings.Join(llm.Providers(), ", ")))
	}
	if strings.TrimSpace(cfg.Judgment.Model) == "" {
		problems = append(problems, "judgment.model must not be empty")
	}
	if t := cfg.Judgment.ConfidenceThreshold; t < 0 || t > 1 || t != t {
		problems = append(problems, "judgment.confidence_threshold must be in [0,1]")
	}
	if cfg.Judgment.TimeoutSecs <= 0 {
		problems = append(problems, "judgment.timeout_seconds must be > 0")
	}

	for i, p := range cfg.Patterns.Deny {
		if _, err := regexp.Compile(p); err != nil {
			problems = append(problems, fmt.Sprintf("patterns.deny[%d] is not a valid regex: %v", i, err))
		}
	}

	if cfg.Executor.TimeoutSecs <= 0 {
		problems = append(problems, "executor.timeout_seconds must be > 0")
	}
	if cfg.History.RetentionDays < 0 {
		problems = append(problems, "history.retention_days must be >= 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(projectDir, override string) (userPath, projectPath string) {
	return filepath.Join(userConfigDir(), "config.toml"), projectConfigPath(projectDir, override)
}

func projectConfigPath(projectDir, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(projectDir, ".shai", "config.toml")
}

func userConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".shai"
	}
	return filepath.Join(home, ".shai")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
	kindFloat
	kindStringSlice
)

var keyKinds = map[string]valueKind{
	"general.execute":   kindBool,
	"general.verbose":   kindBool,
	"general.log_level": kindString,

	"judgment.provider":             kindString,
	"judgment.model":                kindString,
	"judgment.generator_model":      kindString,
	"judgment.intent_model":         kindString,
	"judgment.confidence_threshold": kindFloat,
	"judgment.want_rationale":       kindBool,
	"judgment.timeout_seconds":      kindInt,
	"judgment.endpoint":             kindString,
	"judgment.api_key_env":          kindString,
	"judgment.intent_filter":        kindBool,
	"judgment.explain_unsafe":       kindBool,

	"patterns.deny":      kindStringSlice,
	"patterns.whitelist": kindStringSlice,

	"executor.shell":           kindString,
	"executor.timeout_seconds": kindInt,

	"history.enabled":        kindBool,
	"history.database_path":  kindString,
	"history.retention_days": kindInt,
}

// Keys returns every settable config key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(keyKinds))
	for k := range keyKinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ParseValue converts a raw string into the type expected by a config key.
func ParseValue(key, raw string) (any, error) {
	kind, ok := keyKinds[key]
	if !ok {
		return nil, fmt.Errorf("unsupported config key %q", key)
	}
	return parseValueByKind(raw, kind)
}

func parseValueByKind(raw string, kind valueKind) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case kindString:
		return raw, nil
	case kindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", raw)
		}
		return n, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", raw)
		}
		return b, nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected number, got %q", raw)
		}
		return f, nil
	case kindStringSlice:
		out := []string{}
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %d", kind)
	}
}

// GetValue returns the value at a dotted key, or a whole section.
func GetValue(cfg Config, key string) (any, bool) {
	section, field, _ := strings.Cut(key, ".")
	switch section {
	case "general":
		switch field {
		case "":
			return cfg.General, true
		case "execute":
			return cfg.General.Execute, true
		case "verbose":
			return cfg.General.Verbose, true
		case "log_level":
			return cfg.General.LogLevel, true
		}
	case "judgment":
		j := cfg.Judgment
		switch field {
		case "":
			return j, true
		case "provider":
			return j.Provider, true
		case "model":
			return j.Model, true
		case "generator_model":
			return j.GeneratorModel, true
		case "intent_model":
			return j.IntentModel, true
		case "confidence_threshold":
			return j.ConfidenceThreshold, true
		case "want_rationale":
			return j.WantRationale, true
		case "timeout_seconds":
			return j.TimeoutSecs, true
		case "endpoint":
			return j.Endpoint, true
		case "api_key_env":
			return j.APIKeyEnv, true
		case "intent_filter":
			return j.IntentFilter, true
		case "explain_unsafe":
			return j.ExplainUnsafe, true
		}
	case "patterns":
		switch field {
		case "":
			return cfg.Patterns, true
		case "deny":
			return cfg.Patterns.Deny, true
		case "whitelist":
			return cfg.Patterns.Whitelist, true
		}
	case "executor":
		switch field {
		case "":
			return cfg.Executor, true
		case "shell":
			return cfg.Executor.Shell, true
		case "timeout_seconds":
			return cfg.Executor.TimeoutSecs, true
		}
	case "history":
		switch field {
		case "":
			return cfg.History, true
		case "enabled":
			return cfg.History.Enabled, true
		case "database_path":
			return cfg.History.DatabasePath, true
		case "retention_days":
			return cfg.History.RetentionDays, true
		}
	}
	return nil, false
}

// WriteValue sets a dotted key in the TOML file at path, creating the file
// and any missing tables.
func WriteValue(path, key string, value any) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	segments := strings.Split(key, ".")
	if len(segments) < 2 {
		return fmt.Errorf("config key %q must be section.field", key)
	}

	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return fmt.Errorf("decode config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	table := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := table[seg]
		if !ok {
			child := map[string]any{}
			table[seg] = child
			table = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("config key %q: %s is not a table", key, seg)
		}
		table = child
	}
	table[segments[len(segments)-1]] = value

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
