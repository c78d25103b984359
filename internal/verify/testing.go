package verify

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is a scripted provider double for tests. Zero value behaves
// like a provider that accepts every request and passes every check.
type FakeClient struct {
	mu sync.Mutex

	// RequestErr, when set, fails every Request call.
	RequestErr error
	// CheckStatus overrides the status returned by Check ("0" when empty).
	CheckStatus string
	// CheckMessage is the diagnostic attached to non-success checks.
	CheckMessage string
	// CancelErr, when set, fails every Cancel call.
	CancelErr error

	requests []string
	checks   []string
	cancels  []string
}

// Request records the destination and hands out sequential request ids.
func (f *FakeClient) Request(_ context.Context, destination string, _ Policy) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RequestErr != nil {
		return "", f.RequestErr
	}
	f.requests = append(f.requests, destination)
	return fmt.Sprintf("req-%d", len(f.requests)), nil
}

// Check records the request id and replies with the scripted status.
func (f *FakeClient) Check(_ context.Context, requestID, _ string) (CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, requestID)
	status := f.CheckStatus
	if status == "" {
		status = StatusSuccess
	}
	return CheckResult{Status: status, Message: f.CheckMessage}, nil
}

// Cancel records the request id.
func (f *FakeClient) Cancel(_ context.Context, requestID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, requestID)
	return f.CancelErr
}

// Requests returns the destinations passed to Request so far.
func (f *FakeClient) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Cancels returns the request ids passed to Cancel so far.
func (f *FakeClient) Cancels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancels...)
}
