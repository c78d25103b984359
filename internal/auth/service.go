package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phoneproof/phone_proof/internal/ban"
	"github.com/phoneproof/phone_proof/internal/identity"
	"github.com/phoneproof/phone_proof/internal/vault"
	"github.com/phoneproof/phone_proof/internal/verify"
)

var (
	// ErrValidation indicates malformed request input.
	ErrValidation = errors.New("invalid input")

	// ErrBanned indicates the phone fingerprint is on the ban list.
	ErrBanned = errors.New("phone number is banned")

	// ErrInvalidCredentials covers both a wrong password and a phone
	// decryption failure. The two are merged deliberately: without an
	// integrity tag on the ciphertext they cannot be told apart anyway,
	// and the caller learns nothing extra.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnverified indicates the account never completed registration
	// verification.
	ErrUnverified = errors.New("account is not verified")
)

const minPasswordLen = 8

// Service orchestrates registration and login over the credential vault,
// the ban registry and the verification coordinator.
type Service struct {
	users    identity.Store
	bans     ban.Registry
	verifier *verify.Coordinator
	logger   *slog.Logger
}

// NewService builds the authentication flow service.
func NewService(users identity.Store, bans ban.Registry, verifier *verify.Coordinator, logger *slog.Logger) *Service {
	return &Service{users: users, bans: bans, verifier: verifier, logger: logger}
}

// Register creates an unverified account and starts its registration
// verification. The ban check runs before any provider contact so banned
// destinations never consume provider quota. The pending pointer is
// persisted as part of the single record-creation write.
func (s *Service) Register(ctx context.Context, username, password, phone string) (string, error) {
	if err := validateUsername(username); err != nil {
		return "", err
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}
	if err := validatePhone(phone); err != nil {
		return "", err
	}

	fingerprint := vault.FingerprintPhone(phone)
	banned, err := s.bans.IsBanned(ctx, fingerprint)
	if err != nil {
		return "", fmt.Errorf("ban check: %w", err)
	}
	if banned {
		return "", ErrBanned
	}

	ciphertext, iv, err := vault.EncryptPhone(phone, password)
	if err != nil {
		return "", fmt.Errorf("encrypt phone: %w", err)
	}
	passwordHash, err := vault.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	record := identity.UserRecord{
		Username:         username,
		PasswordHash:     passwordHash,
		EncryptedPhone:   ciphertext,
		PhoneIV:          iv,
		PhoneFingerprint: fingerprint,
		Verified:         false,
		CreatedAt:        time.Now().UTC(),
	}

	requestID, err := s.verifier.Start(ctx, phone, func(id string) error {
		record.PendingRequestID = &id
		record.PendingPurpose = identity.PurposeRegistration
		return s.users.Create(ctx, record)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("registration verification started", "username", username, "request_id", requestID)
	return requestID, nil
}

// Login authenticates the password, recovers the phone number from the
// record and starts a login verification to it. The record's observed
// pending pointer is the optimistic precondition, so two concurrent logins
// cannot silently lose a pointer.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	record, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	ok, err := vault.VerifyPassword(password, record.PasswordHash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	phone, err := vault.DecryptPhone(record.EncryptedPhone, record.PhoneIV, password)
	if err != nil {
		// Wrong password and corrupted ciphertext land here alike.
		return "", ErrInvalidCredentials
	}

	if !record.Verified {
		return "", ErrUnverified
	}

	requestID, err := s.verifier.Start(ctx, phone, func(id string) error {
		return s.users.UpdatePending(ctx, username, record.PendingRequestID, identity.PendingMutation{
			RequestID: &id,
			Purpose:   identity.PurposeLogin,
		})
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("login verification started", "username", username, "request_id", requestID)
	return requestID, nil
}

// VerifyCode resolves an outstanding verification request with the code the
// user received.
func (s *Service) VerifyCode(ctx context.Context, requestID, code string) (verify.Outcome, error) {
	if requestID == "" || code == "" {
		return verify.Outcome{}, fmt.Errorf("%w: request_id and code are required", ErrValidation)
	}
	return s.verifier.Check(ctx, requestID, code)
}

// GetProfile returns the record for an authenticated username.
func (s *Service) GetProfile(ctx context.Context, username string) (identity.UserRecord, error) {
	return s.users.GetByUsername(ctx, username)
}

// BanPhone adds the phone's fingerprint to the ban list.
func (s *Service) BanPhone(ctx context.Context, phone string) error {
	if err := validatePhone(phone); err != nil {
		return err
	}
	return s.bans.Ban(ctx, vault.FingerprintPhone(phone))
}

// UnbanPhone removes the phone's fingerprint from the ban list.
func (s *Service) UnbanPhone(ctx context.Context, phone string) error {
	if err := validatePhone(phone); err != nil {
		return err
	}
	return s.bans.Unban(ctx, vault.FingerprintPhone(phone))
}

// IsPhoneBanned reports whether the phone's fingerprint is banned.
func (s *Service) IsPhoneBanned(ctx context.Context, phone string) (bool, error) {
	if err := validatePhone(phone); err != nil {
		return false, err
	}
	return s.bans.IsBanned(ctx, vault.FingerprintPhone(phone))
}

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	return nil
}

func validatePhone(phone string) error {
	digits := 0
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		default:
			return fmt.Errorf("%w: phone number must contain only digits with an optional leading +", ErrValidation)
		}
	}
	if digits < 7 || digits > 15 {
		return fmt.Errorf("%w: phone number must contain 7 to 15 digits", ErrValidation)
	}
	return nil
}
