package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
	"github.com/kirillkom/shopping-assistant/internal/core/ports"
)

const (
	credentialSourceUser    = "user"
	credentialSourceDefault = "default"
	credentialSourceNone    = "none"
)

type CredentialPolicy struct {
	KeyPrefix    string
	MinKeyLength int
	DefaultKey   string
	ProbeTimeout time.Duration
}

// CredentialUseCase validates inference keys before storing them and resolves
// the key a search runs with.
type CredentialUseCase struct {
	store     ports.CredentialStore
	inference ports.InferenceClient
	policy    CredentialPolicy
	now       func() time.Time
}

func NewCredentialUseCase(store ports.CredentialStore, inference ports.InferenceClient, policy CredentialPolicy) *CredentialUseCase {
	if policy.MinKeyLength <= 0 {
		policy.MinKeyLength = 40
	}
	if policy.ProbeTimeout <= 0 {
		policy.ProbeTimeout = 10 * time.Second
	}
	return &CredentialUseCase{
		store:     store,
		inference: inference,
		policy:    policy,
		now:       time.Now,
	}
}

func (uc *CredentialUseCase) Save(ctx context.Context, userID, apiKey string) (domain.CredentialStatus, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CredentialStatus{}, domain.ErrNotAuthenticated
	}
	apiKey = strings.TrimSpace(apiKey)
	if err := uc.validateFormat(apiKey); err != nil {
		return domain.CredentialStatus{}, err
	}
	if err := uc.probe(ctx, apiKey); err != nil {
		return domain.CredentialStatus{}, domain.WrapError(domain.ErrInvalidInput, "probe api key", err)
	}

	err := uc.store.SaveCredential(ctx, domain.Credential{
		UserID:    userID,
		APIKey:    apiKey,
		UpdatedAt: uc.now().UTC(),
	})
	if err != nil {
		return domain.CredentialStatus{}, fmt.Errorf("save credential: %w", err)
	}
	return domain.CredentialStatus{UserID: userID, Configured: true, Valid: true, Source: credentialSourceUser}, nil
}

// Status reports whether the user has a usable key, probing it when present.
func (uc *CredentialUseCase) Status(ctx context.Context, userID string) (domain.CredentialStatus, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CredentialStatus{}, domain.ErrNotAuthenticated
	}
	key, source, err := uc.lookup(ctx, userID)
	if err != nil {
		return domain.CredentialStatus{}, err
	}
	status := domain.CredentialStatus{UserID: userID, Source: source}
	if key == "" {
		status.Reason = domain.ErrInferenceNotConfigured.Error()
		return status, nil
	}
	status.Configured = true
	if err := uc.probe(ctx, key); err != nil {
		status.Reason = err.Error()
		return status, nil
	}
	status.Valid = true
	return status, nil
}

// ResolveKey returns the user's key, then the default key, or
// ErrInferenceNotConfigured when neither exists.
func (uc *CredentialUseCase) ResolveKey(ctx context.Context, userID string) (string, error) {
	key, _, err := uc.lookup(ctx, userID)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", domain.ErrInferenceNotConfigured
	}
	return key, nil
}

func (uc *CredentialUseCase) lookup(ctx context.Context, userID string) (string, string, error) {
	if uc.store != nil {
		cred, err := uc.store.GetCredential(ctx, userID)
		switch {
		case err == nil && cred != nil && strings.TrimSpace(cred.APIKey) != "":
			return cred.APIKey, credentialSourceUser, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return "", "", fmt.Errorf("get credential: %w", err)
		}
	}
	if key := strings.TrimSpace(uc.policy.DefaultKey); key != "" {
		return key, credentialSourceDefault, nil
	}
	return "", credentialSourceNone, nil
}

func (uc *CredentialUseCase) validateFormat(apiKey string) error {
	if apiKey == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate api key", errors.New("api key is required"))
	}
	if uc.policy.KeyPrefix != "" && !strings.HasPrefix(apiKey, uc.policy.KeyPrefix) {
		return domain.WrapError(domain.ErrInvalidInput, "validate api key", fmt.Errorf("api key must start with %q", uc.policy.KeyPrefix))
	}
	if len(apiKey) < uc.policy.MinKeyLength {
		return domain.WrapError(domain.ErrInvalidInput, "validate api key", fmt.Errorf("api key must be at least %d characters", uc.policy.MinKeyLength))
	}
	return nil
}

func (uc *CredentialUseCase) probe(ctx context.Context, apiKey string) error {
	if uc.inference == nil {
		return domain.ErrInferenceNotConfigured
	}
	probeCtx, cancel := context.WithTimeout(ctx, uc.policy.ProbeTimeout)
	defer cancel()
	return uc.inference.ProbeKey(probeCtx, apiKey)
}
