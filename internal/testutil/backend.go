package testutil

import (
	"context"
	"sync"

	"github.com/shai-cli/shai/internal/core"
)

// StubResponse is one scripted backend reply.
type StubResponse struct {
	Text string
	Err  error
	// Block makes the call wait for ctx cancellation and return ctx.Err().
	Block bool
}

// Reply scripts a successful reply.
func Reply(text string) StubResponse { return StubResponse{Text: text} }

// Fail scripts a transport error.
func Fail(err error) StubResponse { return StubResponse{Err: err} }

// Hang scripts a call that only returns when its context is done.
func Hang() StubResponse { return StubResponse{Block: true} }

// StubBackend is a scripted core.Backend that records every request.
// Responses are consumed in order; the last one repeats.
type StubBackend struct {
	mu        sync.Mutex
	responses []StubResponse
	requests  []core.JudgmentRequest
}

// NewStubBackend creates a stub with the given scripted replies.
func NewStubBackend(responses ...StubResponse) *StubBackend {
	return &StubBackend{responses: responses}
}

// Complete implements core.Backend.
func (s *StubBackend) Complete(ctx context.Context, req core.JudgmentRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	var resp StubResponse
	if n := len(s.responses); n > 0 {
		resp = s.responses[0]
		if n > 1 {
			s.responses = s.responses[1:]
		}
	}
	s.mu.Unlock()

	if resp.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return resp.Text, resp.Err
}

// Calls returns the number of requests received.
func (s *StubBackend) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of the received requests.
func (s *StubBackend) Requests() []core.JudgmentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.JudgmentRequest, len(s.requests))
	copy(out, s.requests)
	return out
}
