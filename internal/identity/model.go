package identity

import "time"

// Purpose classifies an outstanding verification request.
type Purpose string

const (
	// PurposeRegistration completes account activation on success.
	PurposeRegistration Purpose = "registration"
	// PurposeLogin gates session issuance without altering activation state.
	PurposeLogin Purpose = "login"
)

// UserRecord is a registered account. The phone number is stored encrypted
// under the account's own password; the fingerprint is a password-independent
// digest used only for ban correlation and stays stable across password
// changes. If password rotation is ever added the encrypted phone must be
// re-encrypted in the same write.
type UserRecord struct {
	Username         string
	PasswordHash     string
	EncryptedPhone   []byte
	PhoneIV          []byte
	PhoneFingerprint string
	Verified         bool

	// PendingRequestID is the single outstanding verification pointer.
	// Starting a new verification supersedes the previous value.
	PendingRequestID *string
	// PendingPurpose is meaningful only while PendingRequestID is set.
	PendingPurpose Purpose

	CreatedAt time.Time
}
