package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shai-cli/shai/internal/config"
	"github.com/shai-cli/shai/internal/db"
)

// Harness is a lightweight integration test environment.
//
// It points HOME at a temp directory, provisions a project directory with a
// `.shai/history.db` and keeps cleanup automatic via t.Cleanup.
type Harness struct {
	T          *testing.T
	Home       string
	ProjectDir string
	ShaiDir    string
	DBPath     string
	DB         *db.DB
}

// NewHarness creates the environment. SHAI_* variables from the caller's
// environment are cleared so they cannot leak into config loading.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "SHAI_") {
			t.Setenv(name, "")
		}
	}

	projectDir := t.TempDir()
	shaiDir := filepath.Join(projectDir, ".shai")
	if err := os.MkdirAll(shaiDir, 0750); err != nil {
		t.Fatalf("NewHarness: mkdir .shai: %v", err)
	}

	dbPath := filepath.Join(shaiDir, "history.db")
	database := NewTestDBAtPath(t, dbPath)

	return &Harness{
		T:          t,
		Home:       home,
		ProjectDir: projectDir,
		ShaiDir:    shaiDir,
		DBPath:     dbPath,
		DB:         database,
	}
}

// MustPath joins ProjectDir with parts.
func (h *Harness) MustPath(parts ...string) string {
	h.T.Helper()
	if h == nil || h.ProjectDir == "" {
		h.T.Fatalf("Harness.MustPath: harness not initialized")
	}
	all := append([]string{h.ProjectDir}, parts...)
	return filepath.Join(all...)
}

// ProjectConfigPath returns the project config file path.
func (h *Harness) ProjectConfigPath() string {
	return filepath.Join(h.ShaiDir, "config.toml")
}

// SetConfig writes key=value into the project config file.
func (h *Harness) SetConfig(key string, value any) {
	h.T.Helper()
	RequireNoError(h.T, config.WriteValue(h.ProjectConfigPath(), key, value), "write project config")
}

// WriteFile writes a file relative to the project directory.
func (h *Harness) WriteFile(rel string, data []byte, perm os.FileMode) string {
	h.T.Helper()
	if strings.TrimSpace(rel) == "" {
		h.T.Fatalf("Harness.WriteFile: rel path is required")
	}
	abs := h.MustPath(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
		h.T.Fatalf("Harness.WriteFile: mkdir: %v", err)
	}
	if err := os.WriteFile(abs, data, perm); err != nil {
		h.T.Fatalf("Harness.WriteFile: write: %v", err)
	}
	return abs
}
