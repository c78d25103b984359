package verify

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrProvider indicates a verification provider request/check/cancel
	// failure.
	ErrProvider = errors.New("verification provider error")

	// ErrStaleRequest indicates the request id is not the current pending
	// pointer of any record: it was superseded, already resolved, or never
	// existed.
	ErrStaleRequest = errors.New("verification request is not pending")

	// ErrPersistence indicates the user store rejected a write after the
	// provider call already succeeded.
	ErrPersistence = errors.New("verification state persistence failed")
)

// StatusSuccess is the provider status code signalling a passed check.
// Any other code is a failed outcome carrying the provider diagnostic.
const StatusSuccess = "0"

// Policy is the process-wide request policy sent with every verification.
// It is configured once at startup, never per call.
type Policy struct {
	Workflow      int    // delivery workflow, 1..7 (e.g. 6 = single SMS)
	Brand         string // brand name shown in the SMS text
	SenderID      string // SMS sender id
	Language      string // e.g. "en-us"; empty lets the provider pick by country
	CodeLength    int    // 4 or 6
	PinExpiry     int    // seconds, 60..3600
	NextEventWait int    // seconds between delivery attempts, 60..900
}

// CheckResult is the provider's answer to a code check. Status is the
// provider status code; Message carries the diagnostic for non-success
// codes.
type CheckResult struct {
	Status  string
	Message string
}

// Client wraps the external verification provider's request/check/cancel
// protocol. Each call is one blocking round trip.
type Client interface {
	Request(ctx context.Context, destination string, policy Policy) (string, error)
	Check(ctx context.Context, requestID, code string) (CheckResult, error)
	Cancel(ctx context.Context, requestID string) error
}

// StaticClient simulates a provider for credential-less development runs.
// Every request is accepted and any non-empty code passes the check.
type StaticClient struct{}

// Request issues a synthetic request id.
func (StaticClient) Request(_ context.Context, _ string, _ Policy) (string, error) {
	return uuid.NewString(), nil
}

// Check accepts any non-empty code.
func (StaticClient) Check(_ context.Context, _ string, code string) (CheckResult, error) {
	if code == "" {
		return CheckResult{Status: "16", Message: "The code inserted does not match the expected value"}, nil
	}
	return CheckResult{Status: StatusSuccess}, nil
}

// Cancel always succeeds.
func (StaticClient) Cancel(_ context.Context, _ string) error {
	return nil
}
