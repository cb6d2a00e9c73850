// Package testutil provides shared test helpers and fixtures for shai.
//
// Philosophy:
// - Never reach a real judgment backend; use StubBackend.
// - Prefer real SQLite (no mocks) for the history store.
// - Register cleanup via t.Cleanup so tests stay leak-free.
//
// Most packages should start with:
//
//	backend := testutil.NewStubBackend(testutil.Reply(`{"is_safe": true, "confidence": 0.9}`))
//	eval := core.NewSafetyEvaluator(nil, backend, core.WithLogger(testutil.TestLogger(t)))
package testutil
