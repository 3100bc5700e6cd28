package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"mediavault/internal/domain"
)

// ErrNotFound возвращается хранилищем, если ключа нет или он истек
var ErrNotFound = errors.New("token not found")

// SecurityToken выдает и проверяет токены, привязанные к id временной загрузки.
// ValidateToken никогда не возвращает ошибку: любой сбой означает false.
type SecurityToken interface {
	// GenerateToken выдает токен на ttl; ttl <= 0 берет срок провайдера по умолчанию
	GenerateToken(ctx context.Context, id string, ttl time.Duration) (string, error)
	// RetrieveToken достает токен клиента из канала провайдера
	RetrieveToken(ctx context.Context, id string) (string, bool)
	// ValidateToken сравнивает provided (или токен из RetrieveToken, если provided пуст)
	ValidateToken(ctx context.Context, p *domain.PendingAsset, provided string) bool
	DeleteToken(ctx context.Context, id string) error
}

type requestTokenKey struct{}

// WithRequestToken кладет токен из заголовка или cookie запроса в контекст
func WithRequestToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, requestTokenKey{}, token)
}

// RequestToken возвращает токен, положенный WithRequestToken
func RequestToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(requestTokenKey{}).(string)
	return token, ok && token != ""
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
