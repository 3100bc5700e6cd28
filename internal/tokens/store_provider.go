package tokens

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
)

const storeKeyPrefix = "pending-token:"

// StoreProvider хранит выданный токен на сервере; клиент предъявляет его с запросом
type StoreProvider struct {
	store Store
	ttl   time.Duration
	log   *logger.Logger
}

func NewStoreProvider(store Store, ttl time.Duration, baseLog *logger.Logger) *StoreProvider {
	return &StoreProvider{store: store, ttl: ttl, log: baseLog.With("component", "StoreTokenProvider")}
}

func (p *StoreProvider) GenerateToken(ctx context.Context, id string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = p.ttl
	}
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	if err := p.store.Set(ctx, storeKeyPrefix+id, token, ttl); err != nil {
		return "", err
	}
	return token, nil
}

func (p *StoreProvider) RetrieveToken(ctx context.Context, id string) (string, bool) {
	return RequestToken(ctx)
}

func (p *StoreProvider) ValidateToken(ctx context.Context, pending *domain.PendingAsset, provided string) bool {
	if pending == nil {
		return false
	}
	if provided == "" {
		var ok bool
		if provided, ok = p.RetrieveToken(ctx, pending.ID); !ok {
			return false
		}
	}

	stored, err := p.store.Get(ctx, storeKeyPrefix+pending.ID)
	if err != nil {
		if err != ErrNotFound {
			p.log.Warn("Failed to load token", "pending_id", pending.ID, "error", err)
		}
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}

func (p *StoreProvider) DeleteToken(ctx context.Context, id string) error {
	return p.store.Delete(ctx, storeKeyPrefix+id)
}
