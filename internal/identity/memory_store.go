package identity

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu    sync.RWMutex
	users map[string]UserRecord
}

// NewMemoryStore builds an in-memory user store for tests and credential-less
// development runs.
func NewMemoryStore() Store {
	return &memoryStore{users: make(map[string]UserRecord)}
}

func (s *memoryStore) Create(_ context.Context, record UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[record.Username]; exists {
		return ErrConflict
	}
	s.users[record.Username] = record
	return nil
}

func (s *memoryStore) GetByUsername(_ context.Context, username string) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.users[username]
	if !ok {
		return UserRecord{}, ErrNotFound
	}
	return record, nil
}

func (s *memoryStore) FindByPendingRequestID(_ context.Context, requestID string) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.users {
		if record.PendingRequestID != nil && *record.PendingRequestID == requestID {
			return record, nil
		}
	}
	return UserRecord{}, ErrNotFound
}

func (s *memoryStore) UpdatePending(_ context.Context, username string, expected *string, m PendingMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.users[username]
	if !ok {
		return ErrConflict
	}
	if !pointerEqual(record.PendingRequestID, expected) {
		return ErrConflict
	}
	record.PendingRequestID = m.RequestID
	if m.RequestID != nil {
		record.PendingPurpose = m.Purpose
	} else {
		record.PendingPurpose = ""
	}
	if m.MarkVerified {
		record.Verified = true
	}
	s.users[username] = record
	return nil
}

func pointerEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
