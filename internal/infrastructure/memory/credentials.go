package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]domain.Credential
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]domain.Credential)}
}

func (s *CredentialStore) SaveCredential(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.UserID] = cred
	return nil
}

func (s *CredentialStore) GetCredential(_ context.Context, userID string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[userID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get credential", errors.New(userID))
	}
	return &cred, nil
}
