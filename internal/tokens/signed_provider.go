package tokens

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
)

const revokedKeyPrefix = "pending-token-revoked:"

// SignedProvider выдает подписанные HS256 токены: sub = id загрузки, exp = ttl.
// Сервер хранит только отзывы.
type SignedProvider struct {
	key   []byte
	ttl   time.Duration
	store Store
	log   *logger.Logger
	now   func() time.Time

	// longest - наибольший срок выданного токена; отзыв должен жить не меньше
	longest atomic.Int64
}

func NewSignedProvider(key []byte, ttl time.Duration, revocations Store, baseLog *logger.Logger) *SignedProvider {
	return &SignedProvider{
		key:   key,
		ttl:   ttl,
		store: revocations,
		log:   baseLog.With("component", "SignedTokenProvider"),
		now:   time.Now,
	}
}

func (p *SignedProvider) GenerateToken(ctx context.Context, id string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = p.ttl
	}
	for {
		cur := p.longest.Load()
		if int64(ttl) <= cur || p.longest.CompareAndSwap(cur, int64(ttl)) {
			break
		}
	}

	jti, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}

	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:   id,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (p *SignedProvider) RetrieveToken(ctx context.Context, id string) (string, bool) {
	return RequestToken(ctx)
}

func (p *SignedProvider) ValidateToken(ctx context.Context, pending *domain.PendingAsset, provided string) bool {
	if pending == nil {
		return false
	}
	if provided == "" {
		var ok bool
		if provided, ok = p.RetrieveToken(ctx, pending.ID); !ok {
			return false
		}
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(provided, claims, func(t *jwt.Token) (interface{}, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(claims.Subject), []byte(pending.ID)) != 1 {
		return false
	}

	if _, err := p.store.Get(ctx, revokedKeyPrefix+pending.ID); err == nil {
		return false
	} else if err != ErrNotFound {
		p.log.Warn("Failed to check token revocation", "pending_id", pending.ID, "error", err)
		return false
	}
	return true
}

// DeleteToken отзывает все токены id до истечения их срока
func (p *SignedProvider) DeleteToken(ctx context.Context, id string) error {
	ttl := p.ttl
	if longest := time.Duration(p.longest.Load()); longest > ttl {
		ttl = longest
	}
	return p.store.Set(ctx, revokedKeyPrefix+id, "1", ttl)
}
