package testutil

import (
	"testing"

	"github.com/shai-cli/shai/internal/core"
)

// RequireNoError fails the test immediately if err is non-nil.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireLen fails if len(s) != n.
func RequireLen[T ~[]E, E any](t *testing.T, s T, n int, msg string) {
	t.Helper()
	if len(s) != n {
		t.Fatalf("%s: expected len=%d, got %d", msg, n, len(s))
	}
}

// RequireVerdict fails unless v has the given safety and source.
func RequireVerdict(t *testing.T, v core.Verdict, safe bool, source core.Source) {
	t.Helper()
	if v.IsSafe != safe || v.Source != source {
		t.Fatalf("verdict = %+v, want is_safe=%v source=%s", v, safe, source)
	}
}
