package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
)

func TestConfigSetAndGet(t *testing.T) {
	h := newCLIHarness(t)

	stdout, _, err := executeCommand(t, "-C", h.ProjectDir, "config", "set", "judgment.model", "llama3")
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	if !strings.Contains(stdout, "judgment.model = llama3") {
		t.Errorf("set output = %q", stdout)
	}

	stdout, _, err = executeCommand(t, "-C", h.ProjectDir, "config", "get", "judgment.model")
	if err != nil {
		t.Fatalf("config get: %v", err)
	}
	if strings.TrimSpace(stdout) != "llama3" {
		t.Errorf("get output = %q", stdout)
	}

	var file map[string]map[string]any
	if _, err := toml.DecodeFile(h.ProjectConfigPath(), &file); err != nil {
		t.Fatalf("decode project config: %v", err)
	}
	if file["judgment"]["model"] != "llama3" {
		t.Errorf("project config = %v", file)
	}
}

func TestConfigSet_Global(t *testing.T) {
	h := newCLIHarness(t)

	if _, _, err := executeCommand(t, "-C", h.ProjectDir, "config", "set", "--global", "judgment.provider", "openai"); err != nil {
		t.Fatalf("config set --global: %v", err)
	}
	userPath := filepath.Join(h.Home, ".shai", "config.toml")
	data, err := os.ReadFile(userPath)
	if err != nil {
		t.Fatalf("read user config: %v", err)
	}
	if !strings.Contains(string(data), `provider = "openai"`) {
		t.Errorf("user config = %s", data)
	}
}

func TestConfigSet_Errors(t *testing.T) {
	h := newCLIHarness(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"config", "set", "judgment.nope", "x"}},
		{"bad float", []string{"config", "set", "judgment.confidence_threshold", "high"}},
		{"bad bool", []string{"config", "set", "general.execute", "maybe"}},
		{"unknown get", []string{"config", "get", "general.nope"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"-C", h.ProjectDir}, tc.args...)
			if _, _, err := executeCommand(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfigShow(t *testing.T) {
	h := newCLIHarness(t)
	t.Setenv("SHAI_PROVIDER", "gemini")

	stdout, _, err := executeCommand(t, "-C", h.ProjectDir, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, want := range []string{"KEY", "judgment.provider", "gemini", "executor.shell", "/bin/sh"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config missing %q:\n%s", want, stdout)
		}
	}

	stdout, _, err = executeCommand(t, "-C", h.ProjectDir, "config", "-o", "yaml")
	if err != nil {
		t.Fatalf("config yaml: %v", err)
	}
	if !strings.Contains(stdout, "provider: gemini") {
		t.Errorf("yaml = %s", stdout)
	}
}

func TestConfigKeys(t *testing.T) {
	h := newCLIHarness(t)
	stdout, _, err := executeCommand(t, "-C", h.ProjectDir, "config", "keys")
	if err != nil {
		t.Fatalf("config keys: %v", err)
	}
	for _, want := range []string{"general.execute", "judgment.confidence_threshold", "patterns.deny", "history.retention_days"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("keys missing %q", want)
		}
	}
}

func TestConfigEdit_UsesEditorArgs(t *testing.T) {
	h := newCLIHarness(t)
	target := filepath.Join(h.ShaiDir, "edited.toml")
	log := filepath.Join(t.TempDir(), "editor.log")
	t.Setenv("EDITOR", `sh -c 'echo "$0" > `+log+`'`)

	if _, _, err := executeCommand(t, "-C", h.ProjectDir, "-c", target, "config", "edit"); err != nil {
		t.Fatalf("config edit: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("config file not seeded: %v", err)
	}
	got, err := os.ReadFile(log)
	if err != nil {
		t.Fatalf("editor did not run: %v", err)
	}
	if strings.TrimSpace(string(got)) != target {
		t.Errorf("editor got %q, want %q", got, target)
	}
}

func TestEditorCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"", []string{"vi"}, false},
		{"nano", []string{"nano"}, false},
		{"code --wait", []string{"code", "--wait"}, false},
		{`"/opt/My Editor/bin/edit" -n`, []string{"/opt/My Editor/bin/edit", "-n"}, false},
		{`"unterminated`, nil, true},
	}
	for _, tc := range tests {
		got, err := editorCommand(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("editorCommand(%q) err = %v", tc.in, err)
		}
		if tc.wantErr {
			continue
		}
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Errorf("editorCommand(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
