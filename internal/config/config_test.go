package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaultConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(DefaultConfig) unexpected error: %v", err)
	}
	if cfg.Judgment.ConfidenceThreshold != 0.75 {
		t.Fatalf("default threshold = %v, want 0.75", cfg.Judgment.ConfidenceThreshold)
	}
	if cfg.Judgment.Timeout() != time.Minute || cfg.Executor.Timeout() != 5*time.Minute {
		t.Fatalf("unexpected default timeouts: %v %v", cfg.Judgment.Timeout(), cfg.Executor.Timeout())
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.LogLevel = "loud"
	cfg.Judgment.Provider = "bad"
	cfg.Judgment.Model = " "
	cfg.Judgment.ConfidenceThreshold = 1.5
	cfg.Judgment.TimeoutSecs = 0
	cfg.Patterns.Deny = []string{"(unclosed"}
	cfg.Executor.TimeoutSecs = -1
	cfg.History.RetentionDays = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "config validation failed") {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"general.log_level",
		"judgment.provider",
		"judgment.model",
		"judgment.confidence_threshold",
		"judgment.timeout_seconds",
		"patterns.deny[0]",
		"executor.timeout_seconds",
		"history.retention_days",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation error missing %q: %v", want, err)
		}
	}
}

func TestValidate_ThresholdBounds(t *testing.T) {
	for _, threshold := range []float64{0, 0.5, 1} {
		cfg := DefaultConfig()
		cfg.Judgment.ConfidenceThreshold = threshold
		if err := Validate(cfg); err != nil {
			t.Errorf("threshold %v rejected: %v", threshold, err)
		}
	}
	cfg := DefaultConfig()
	cfg.Judgment.ConfidenceThreshold = -0.01
	if err := Validate(cfg); err == nil {
		t.Error("negative threshold accepted")
	}
}

func TestLoad_Precedence_DefaultsUserProjectEnvFlags(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := t.TempDir()

	userPath := filepath.Join(home, ".shai", "config.toml")
	if err := WriteValue(userPath, "judgment.confidence_threshold", 0.5); err != nil {
		t.Fatalf("WriteValue user: %v", err)
	}

	projectPath := filepath.Join(project, ".shai", "config.toml")
	if err := WriteValue(projectPath, "judgment.confidence_threshold", 0.6); err != nil {
		t.Fatalf("WriteValue project: %v", err)
	}

	t.Setenv("SHAI_CONFIDENCE_THRESHOLD", "0.7")

	cfg, err := Load(LoadOptions{
		ProjectDir: project,
		FlagOverrides: map[string]any{
			"judgment.confidence_threshold": 0.8,
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Judgment.ConfidenceThreshold != 0.8 {
		t.Fatalf("confidence_threshold=%v want 0.8", cfg.Judgment.ConfidenceThreshold)
	}
}

func TestLoad_LayersWithoutFlags(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	project := t.TempDir()

	if err := WriteValue(filepath.Join(home, ".shai", "config.toml"), "judgment.model", "llama3"); err != nil {
		t.Fatal(err)
	}
	if err := WriteValue(filepath.Join(home, ".shai", "config.toml"), "executor.shell", "bash -o pipefail"); err != nil {
		t.Fatal(err)
	}
	if err := WriteValue(filepath.Join(project, ".shai", "config.toml"), "patterns.whitelist", []string{"make test"}); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHAI_PROVIDER", "openai")
	t.Setenv("SHAI_EXECUTE", "false")

	cfg, err := Load(LoadOptions{ProjectDir: project})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Judgment.Model != "llama3" {
		t.Errorf("model = %q, want user value", cfg.Judgment.Model)
	}
	if cfg.Executor.Shell != "bash -o pipefail" {
		t.Errorf("shell = %q", cfg.Executor.Shell)
	}
	if !reflect.DeepEqual(cfg.Patterns.Whitelist, []string{"make test"}) {
		t.Errorf("whitelist = %#v", cfg.Patterns.Whitelist)
	}
	if cfg.Judgment.Provider != "openai" || cfg.General.Execute {
		t.Errorf("env overrides not applied: provider=%q execute=%v", cfg.Judgment.Provider, cfg.General.Execute)
	}
	if cfg.Judgment.GeneratorModel != "codellama:latest" {
		t.Errorf("generator_model default lost: %q", cfg.Judgment.GeneratorModel)
	}
}

func TestLoad_InvalidEnvValueErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SHAI_JUDGMENT_TIMEOUT", "not-an-int")
	if _, err := Load(LoadOptions{ProjectDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	if err := WriteValue(filepath.Join(project, ".shai", "config.toml"), "judgment.confidence_threshold", 3.0); err != nil {
		t.Fatal(err)
	}
	_, err := Load(LoadOptions{ProjectDir: project})
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Fatalf("err = %v, want validation failure", err)
	}
}

func TestLoad_ConfigPathOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	custom := filepath.Join(t.TempDir(), "custom.toml")
	if err := WriteValue(custom, "history.enabled", false); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(LoadOptions{ProjectDir: t.TempDir(), ConfigPath: custom})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.History.Enabled {
		t.Fatal("config override file not applied")
	}
}

func TestLoad_ProjectDirEmptyUsesCWD(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := t.TempDir()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
	if err := os.Chdir(project); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	projectPath := filepath.Join(project, ".shai", "config.toml")
	if err := WriteValue(projectPath, "history.retention_days", 9); err != nil {
		t.Fatalf("WriteValue project: %v", err)
	}

	cfg, err := Load(LoadOptions{ProjectDir: ""})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.History.RetentionDays != 9 {
		t.Fatalf("retention_days=%d want 9", cfg.History.RetentionDays)
	}
}

func TestMergeConfigFile(t *testing.T) {
	v := newTestViper()

	// Empty path is a no-op.
	if err := mergeConfigFile(v, ""); err != nil {
		t.Fatalf("mergeConfigFile(empty): %v", err)
	}

	// Missing file is a no-op.
	if err := mergeConfigFile(v, filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Fatalf("mergeConfigFile(missing): %v", err)
	}

	// Directory path is an error.
	if err := mergeConfigFile(v, t.TempDir()); err == nil {
		t.Fatalf("expected error for directory path")
	}

	// Invalid TOML is an error.
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("judgment = [\n"), 0644); err != nil {
		t.Fatalf("write invalid toml: %v", err)
	}
	if err := mergeConfigFile(v, path); err == nil {
		t.Fatalf("expected error for invalid toml")
	}
}

func newTestViper() *viper.Viper {
	// Seeded with defaults, mirroring Load().
	v := viper.New()
	setDefaults(v)
	return v
}

func TestConfigPathsAndProjectConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	u, p := ConfigPaths("/proj", "")
	if u != filepath.Join(home, ".shai", "config.toml") {
		t.Fatalf("unexpected user path: %q", u)
	}
	if p != filepath.Join("/proj", ".shai", "config.toml") {
		t.Fatalf("unexpected project path: %q", p)
	}

	if got := projectConfigPath("", ""); got != ".shai/config.toml" {
		t.Fatalf("projectConfigPath(empty)=%q", got)
	}
	if got := projectConfigPath("/proj", "/override.toml"); got != "/override.toml" {
		t.Fatalf("projectConfigPath(override)=%q", got)
	}
}

func TestResolvedDatabasePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := (HistoryConfig{}).ResolvedDatabasePath(); got != filepath.Join(home, ".shai", "history.db") {
		t.Fatalf("default db path = %q", got)
	}
	if got := (HistoryConfig{DatabasePath: "~/data/h.db"}).ResolvedDatabasePath(); got != filepath.Join(home, "data", "h.db") {
		t.Fatalf("expanded db path = %q", got)
	}
	if got := (HistoryConfig{DatabasePath: "/tmp/h.db"}).ResolvedDatabasePath(); got != "/tmp/h.db" {
		t.Fatalf("absolute db path = %q", got)
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("judgment.timeout_seconds", "7")
	if err != nil {
		t.Fatalf("ParseValue int: %v", err)
	}
	if v.(int) != 7 {
		t.Fatalf("unexpected value: %#v", v)
	}

	v, err = ParseValue("judgment.want_rationale", "true")
	if err != nil {
		t.Fatalf("ParseValue bool: %v", err)
	}
	if v.(bool) != true {
		t.Fatalf("unexpected value: %#v", v)
	}

	v, err = ParseValue("judgment.confidence_threshold", "0.9")
	if err != nil {
		t.Fatalf("ParseValue float: %v", err)
	}
	if v.(float64) != 0.9 {
		t.Fatalf("unexpected value: %#v", v)
	}

	v, err = ParseValue("patterns.whitelist", "make, , go test")
	if err != nil {
		t.Fatalf("ParseValue slice: %v", err)
	}
	if !reflect.DeepEqual(v, []string{"make", "go test"}) {
		t.Fatalf("unexpected slice: %#v", v)
	}

	v, err = ParseValue("executor.shell", "/bin/zsh")
	if err != nil {
		t.Fatalf("ParseValue string: %v", err)
	}
	if v.(string) != "/bin/zsh" {
		t.Fatalf("unexpected value: %#v", v)
	}

	if _, err := parseValueByKind("x", valueKind(123)); err == nil {
		t.Fatalf("expected error for unsupported value kind")
	}

	if _, err := ParseValue("nope.nope", "x"); err == nil {
		t.Fatalf("expected unsupported key error")
	}
	if _, err := ParseValue("general.execute", "sometimes"); err == nil {
		t.Fatalf("expected bool parse error")
	}
}

func TestGetValue(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		key  string
		want any
	}{
		{"general.execute", cfg.General.Execute},
		{"general.verbose", cfg.General.Verbose},
		{"general.log_level", cfg.General.LogLevel},

		{"judgment.provider", cfg.Judgment.Provider},
		{"judgment.model", cfg.Judgment.Model},
		{"judgment.generator_model", cfg.Judgment.GeneratorModel},
		{"judgment.intent_model", cfg.Judgment.IntentModel},
		{"judgment.confidence_threshold", cfg.Judgment.ConfidenceThreshold},
		{"judgment.want_rationale", cfg.Judgment.WantRationale},
		{"judgment.timeout_seconds", cfg.Judgment.TimeoutSecs},
		{"judgment.endpoint", cfg.Judgment.Endpoint},
		{"judgment.api_key_env", cfg.Judgment.APIKeyEnv},
		{"judgment.intent_filter", cfg.Judgment.IntentFilter},
		{"judgment.explain_unsafe", cfg.Judgment.ExplainUnsafe},

		{"patterns.deny", cfg.Patterns.Deny},
		{"patterns.whitelist", cfg.Patterns.Whitelist},

		{"executor.shell", cfg.Executor.Shell},
		{"executor.timeout_seconds", cfg.Executor.TimeoutSecs},

		{"history.enabled", cfg.History.Enabled},
		{"history.database_path", cfg.History.DatabasePath},
		{"history.retention_days", cfg.History.RetentionDays},

		{"general", cfg.General},
		{"judgment", cfg.Judgment},
		{"patterns", cfg.Patterns},
		{"executor", cfg.Executor},
		{"history", cfg.History},
	}

	for _, tc := range cases {
		got, ok := GetValue(cfg, tc.key)
		if !ok {
			t.Fatalf("GetValue(%q) not found", tc.key)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("GetValue(%q)=%#v want %#v", tc.key, got, tc.want)
		}
	}

	if _, ok := GetValue(cfg, ""); ok {
		t.Fatalf("expected empty key to be not found")
	}

	badKeys := []string{
		"nope",
		"general.nope",
		"judgment.nope",
		"patterns.nope",
		"executor.nope",
		"history.nope",
	}
	for _, key := range badKeys {
		if _, ok := GetValue(cfg, key); ok {
			t.Fatalf("expected %q to be not found", key)
		}
	}
}

func TestKeysAreGettable(t *testing.T) {
	cfg := DefaultConfig()
	for _, key := range Keys() {
		if _, ok := GetValue(cfg, key); !ok {
			t.Errorf("settable key %q has no getter", key)
		}
	}
}

func TestWriteValue(t *testing.T) {
	if err := WriteValue("", "judgment.model", "x"); err == nil {
		t.Fatalf("expected error for empty path")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteValue(path, "judgment.timeout_seconds", 30); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := WriteValue(path, "judgment.model", "llama3"); err != nil {
		t.Fatalf("WriteValue second key: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "[judgment]") || !strings.Contains(text, "timeout_seconds = 30") || !strings.Contains(text, `model = "llama3"`) {
		t.Fatalf("unexpected toml: %q", text)
	}

	// Error when an intermediate segment is not a table.
	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("judgment = \"oops\"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteValue(bad, "judgment.model", "x"); err == nil {
		t.Fatalf("expected error when judgment is not a table")
	}

	if err := WriteValue(path, "model", "x"); err == nil {
		t.Fatalf("expected error for key without section")
	}
}

func TestWriteValue_DecodeExistingInvalidTOMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("judgment = [\n"), 0644); err != nil {
		t.Fatalf("write invalid toml: %v", err)
	}
	if err := WriteValue(path, "judgment.model", "x"); err == nil {
		t.Fatalf("expected decode error")
	} else if !strings.Contains(err.Error(), "decode config") {
		t.Fatalf("unexpected error: %v", err)
	}
}
