package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no record matched the lookup.
	ErrNotFound = errors.New("user not found")

	// ErrConflict indicates a conditional write observed different state
	// than the caller expected, or a create hit an existing username.
	ErrConflict = errors.New("user record conflict")
)

// PendingMutation describes the fields a conditional update may change.
// A nil RequestID clears the pending pointer; Purpose accompanies a
// non-nil RequestID. MarkVerified flips the activation flag durably.
type PendingMutation struct {
	RequestID    *string
	Purpose      Purpose
	MarkVerified bool
}

// Store persists user records. All mutations of the pending pointer are
// optimistic: the caller supplies the pending request id it last observed
// and the store rejects the write with ErrConflict when the stored value
// differs.
type Store interface {
	Create(ctx context.Context, record UserRecord) error
	GetByUsername(ctx context.Context, username string) (UserRecord, error)
	FindByPendingRequestID(ctx context.Context, requestID string) (UserRecord, error)
	UpdatePending(ctx context.Context, username string, expected *string, m PendingMutation) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed user store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new record, failing with ErrConflict when the username
// is already taken.
func (s *PostgresStore) Create(ctx context.Context, record UserRecord) error {
	tag, err := s.db.Exec(ctx, `INSERT INTO users
        (username, password_hash, encrypted_phone, phone_iv, phone_fingerprint, verified, pending_request_id, pending_purpose, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (username) DO NOTHING`,
		record.Username, record.PasswordHash, record.EncryptedPhone, record.PhoneIV,
		record.PhoneFingerprint, record.Verified, record.PendingRequestID,
		string(record.PendingPurpose), record.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// GetByUsername fetches a record by its username.
func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (UserRecord, error) {
	row := s.db.QueryRow(ctx, selectColumns+` WHERE username = $1`, username)
	return scanRecord(row)
}

// FindByPendingRequestID resolves the record that currently holds the given
// verification request id as its pending pointer. Superseded ids resolve to
// nothing.
func (s *PostgresStore) FindByPendingRequestID(ctx context.Context, requestID string) (UserRecord, error) {
	row := s.db.QueryRow(ctx, selectColumns+` WHERE pending_request_id = $1`, requestID)
	return scanRecord(row)
}

// UpdatePending applies the mutation only when the stored pending pointer
// still equals expected. Zero rows affected means a concurrent writer got
// there first.
func (s *PostgresStore) UpdatePending(ctx context.Context, username string, expected *string, m PendingMutation) error {
	purpose := ""
	if m.RequestID != nil {
		purpose = string(m.Purpose)
	}
	tag, err := s.db.Exec(ctx, `UPDATE users
        SET pending_request_id = $1, pending_purpose = $2, verified = verified OR $3
        WHERE username = $4 AND pending_request_id IS NOT DISTINCT FROM $5`,
		m.RequestID, purpose, m.MarkVerified, username, expected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

const selectColumns = `SELECT username, password_hash, encrypted_phone, phone_iv,
        phone_fingerprint, verified, pending_request_id, pending_purpose, created_at FROM users`

func scanRecord(row pgx.Row) (UserRecord, error) {
	var (
		record    UserRecord
		purpose   string
		createdAt time.Time
	)
	err := row.Scan(&record.Username, &record.PasswordHash, &record.EncryptedPhone,
		&record.PhoneIV, &record.PhoneFingerprint, &record.Verified,
		&record.PendingRequestID, &purpose, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrNotFound
		}
		return UserRecord{}, err
	}
	record.PendingPurpose = Purpose(purpose)
	record.CreatedAt = createdAt.UTC()
	return record, nil
}
