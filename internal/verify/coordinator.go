package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phoneproof/phone_proof/internal/identity"
)

const cancelTimeout = 5 * time.Second

// Outcome is the resolution of a verification check.
type Outcome struct {
	Succeeded bool
	Purpose   identity.Purpose
	Username  string
	// Message carries the provider diagnostic for failed checks.
	Message string
}

// Coordinator drives the verification request lifecycle across the provider
// and the user store. Per record the machine is
// Idle -> RequestSent -> {Succeeded, Failed, Cancelled}; only RequestSent is
// persisted (as the record's pending pointer), terminal states are observed
// effects. The two systems share no transaction boundary, so a provider
// request whose local persistence fails is compensated with a best-effort
// cancel.
type Coordinator struct {
	client Client
	policy Policy
	users  identity.Store
	logger *slog.Logger
}

// NewCoordinator builds a coordinator owning its provider configuration.
func NewCoordinator(client Client, policy Policy, users identity.Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{client: client, policy: policy, users: users, logger: logger}
}

// Start requests a verification code for the destination and then runs
// persistPointer, the caller's local write that records the returned request
// id as the owner record's pending pointer (a record creation for
// registration, a conditional pointer update for login). When that write
// fails, exactly one provider cancel is attempted before the error is
// returned; the pointer is never stored without the provider honoring it,
// and never abandoned at the provider without a cancellation attempt.
func (c *Coordinator) Start(ctx context.Context, destination string, persistPointer func(requestID string) error) (string, error) {
	requestID, err := c.client.Request(ctx, destination, c.policy)
	if err != nil {
		return "", fmt.Errorf("start verification: %w", err)
	}

	if err := persistPointer(requestID); err != nil {
		c.compensate(requestID)
		return "", fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	return requestID, nil
}

// Check resolves the owner record by its current pending pointer and submits
// the code to the provider. The lookup is by request id, not account name,
// so a superseded or foreign id can never be bound to an arbitrary account;
// such ids fail with ErrStaleRequest. A successful registration check
// durably flips the verified flag while clearing the pointer in the same
// conditional write; a successful login check only clears the pointer.
func (c *Coordinator) Check(ctx context.Context, requestID, code string) (Outcome, error) {
	record, err := c.users.FindByPendingRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return Outcome{}, ErrStaleRequest
		}
		return Outcome{}, fmt.Errorf("resolve pending request: %w", err)
	}

	result, err := c.client.Check(ctx, requestID, code)
	if err != nil {
		return Outcome{}, fmt.Errorf("check verification: %w", err)
	}

	outcome := Outcome{Purpose: record.PendingPurpose, Username: record.Username}

	if result.Status != StatusSuccess {
		outcome.Message = result.Message
		// The provider already resolved this attempt; clear the pointer so a
		// retry can start cleanly. A conflict means a newer start already
		// replaced it, which is fine.
		err := c.users.UpdatePending(ctx, record.Username, &requestID, identity.PendingMutation{})
		if err != nil && !errors.Is(err, identity.ErrConflict) {
			return Outcome{}, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		return outcome, nil
	}

	mutation := identity.PendingMutation{
		MarkVerified: record.PendingPurpose == identity.PurposeRegistration,
	}
	if err := c.users.UpdatePending(ctx, record.Username, &requestID, mutation); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	outcome.Succeeded = true
	return outcome, nil
}

// Cancel issues a fire-and-forget cancel for an in-flight request. Failures
// are logged, never surfaced to the user.
func (c *Coordinator) Cancel(ctx context.Context, requestID string) {
	if err := c.client.Cancel(ctx, requestID); err != nil {
		c.logger.Warn("verification cancel failed", "request_id", requestID, "error", err)
		return
	}
	c.logger.Info("verification cancelled", "request_id", requestID)
}

// compensate makes the single cancellation attempt owed to the provider
// after a failed local write. It runs on a detached context so an expired
// request context cannot suppress it, and never retries.
func (c *Coordinator) compensate(requestID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	c.Cancel(ctx, requestID)
}
