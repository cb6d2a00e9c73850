package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/shai-cli/shai/internal/core"
	"github.com/shai-cli/shai/internal/db"
	"github.com/shai-cli/shai/internal/testutil"
)

func TestHistory_ListsNewestFirst(t *testing.T) {
	h := newCLIHarness(t)
	now := time.Now().UTC()
	testutil.MakeEvaluation(t, h.DB, testutil.WithCommand("q1", "ls"), testutil.CreatedAt(now.Add(-2*time.Hour)))
	testutil.MakeEvaluation(t, h.DB, testutil.WithCommand("q2", "rm -rf /"), testutil.Unsafe(), testutil.CreatedAt(now.Add(-time.Hour)))
	testutil.MakeEvaluation(t, h.DB, testutil.WithCommand("q3", "df -h"), testutil.Executed(0), testutil.CreatedAt(now))

	stdout, _, err := executeCommand(t, "-C", h.ProjectDir, "history", "-j")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var evals []db.Evaluation
	decodeJSON(t, stdout, &evals)
	testutil.RequireLen(t, evals, 3, "history")
	if evals[0].Command != "df -h" || evals[2].Command != "ls" {
		t.Errorf("order = %s, %s, %s", evals[0].Command, evals[1].Command, evals[2].Command)
	}

	stdout, _, err = executeCommand(t, "-C", h.ProjectDir, "history", "--unsafe", "-j")
	if err != nil {
		t.Fatalf("history --unsafe: %v", err)
	}
	evals = nil
	decodeJSON(t, stdout, &evals)
	testutil.RequireLen(t, evals, 1, "unsafe history")
	if evals[0].Command != "rm -rf /" {
		t.Errorf("unsafe = %+v", evals[0])
	}

	stdout, _, err = executeCommand(t, "-C", h.ProjectDir, "history", "--limit", "1", "-j")
	if err != nil {
		t.Fatalf("history --limit: %v", err)
	}
	evals = nil
	decodeJSON(t, stdout, &evals)
	testutil.RequireLen(t, evals, 1, "limited history")
}

func TestHistory_TextTable(t *testing.T) {
	h := newCLIHarness(t)
	testutil.MakeEvaluation(t, h.DB, testutil.WithCommand("show disk", "df -h"), testutil.Executed(0))
	testutil.MakeEvaluation(t, h.DB, testutil.WithCommand("wipe", "rm -rf /"), testutil.Unsafe())

	stdout, _, err := executeCommand(t, "-C", h.ProjectDir, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for _, want := range []string{"ID", "VERDICT", "COMMAND", "df -h", "safe", "unsafe", "rm -rf /"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("table missing %q:\n%s", want, stdout)
		}
	}
}

func TestHistory_Empty(t *testing.T) {
	h := newCLIHarness(t)

	stdout, _, err := executeCommand(t, "-C", h.ProjectDir, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(stdout, "No evaluations recorded.") {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = executeCommand(t, "-C", h.ProjectDir, "history", "-j")
	if err != nil {
		t.Fatalf("history -j: %v", err)
	}
	if strings.TrimSpace(stdout) != "[]" {
		t.Errorf("empty JSON = %q", stdout)
	}
}

func TestHistoryShow(t *testing.T) {
	h := newCLIHarness(t)
	e := testutil.MakeEvaluation(t, h.DB, testutil.WithCommand("wipe", "rm -rf /"), testutil.Unsafe())

	stdout, _, err := executeCommand(t, "-C", h.ProjectDir, "history", "show", e.ID)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	for _, want := range []string{e.ID, "Query:      wipe", "Verdict:    unsafe (pattern, confidence 1.00)", "Exit code:  -"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show missing %q:\n%s", want, stdout)
		}
	}

	_, _, err = executeCommand(t, "-C", h.ProjectDir, "history", "show", "no-such-id")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestHistoryShow_GatedVerdict(t *testing.T) {
	h := newCLIHarness(t)
	e := testutil.MakeEvaluation(t, h.DB,
		testutil.WithCommand("tidy up", "mv notes.txt /tmp"),
		testutil.WithVerdict(core.Verdict{
			IsSafe:     false,
			Confidence: 0.6,
			Source:     core.SourceModel,
			Rationale:  "moves a file out of the project",
			Gated:      true,
		}),
	)

	stdout, _, err := executeCommand(t, "-C", h.ProjectDir, "history", "show", e.ID)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	for _, want := range []string{"Verdict:    gated (model, confidence 0.60)", "Rationale:  moves a file out of the project"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show missing %q:\n%s", want, stdout)
		}
	}
}

func TestHistoryPrune(t *testing.T) {
	h := newCLIHarness(t)
	h.SetConfig("history.retention_days", 7)
	now := time.Now().UTC()
	testutil.MakeEvaluation(t, h.DB, testutil.CreatedAt(now.AddDate(0, 0, -30)))
	testutil.MakeEvaluation(t, h.DB, testutil.CreatedAt(now.AddDate(0, 0, -10)))
	testutil.MakeEvaluation(t, h.DB, testutil.CreatedAt(now.AddDate(0, 0, -1)))

	stdout, _, err := executeCommand(t, "-C", h.ProjectDir, "history", "prune", "--days", "20", "-j")
	if err != nil {
		t.Fatalf("prune --days: %v", err)
	}
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	decodeJSON(t, stdout, &resp)
	if resp.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", resp.Deleted)
	}

	stdout, _, err = executeCommand(t, "-C", h.ProjectDir, "history", "prune")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if !strings.Contains(stdout, "Deleted 1 evaluations older than 7 days") {
		t.Errorf("stdout = %q", stdout)
	}

	left, err := h.DB.ListEvaluations(0, false)
	testutil.RequireNoError(t, err, "list evaluations")
	testutil.RequireLen(t, left, 1, "remaining evaluations")
}
