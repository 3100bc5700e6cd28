package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
)

// DeletePolicy решает, можно ли удалить ассет. Проверяется отдельно от права на чтение.
type DeletePolicy interface {
	HasDeletePermission(ctx context.Context, asset *domain.Asset) bool
}

type DeletePolicyFunc func(ctx context.Context, asset *domain.Asset) bool

func (f DeletePolicyFunc) HasDeletePermission(ctx context.Context, asset *domain.Asset) bool {
	return f(ctx, asset)
}

// DenyDeletes запрещает любые удаления
var DenyDeletes = DeletePolicyFunc(func(ctx context.Context, asset *domain.Asset) bool {
	return false
})

type adminKeyCtxKey struct{}

// WithAdminKey кладет ключ администратора из запроса в контекст
func WithAdminKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, adminKeyCtxKey{}, key)
}

// AdminKeyPolicy разрешает удаление только с совпадающим ключом администратора.
// Пустой key отключает удаление.
func AdminKeyPolicy(key string) DeletePolicy {
	if key == "" {
		return DenyDeletes
	}
	return DeletePolicyFunc(func(ctx context.Context, asset *domain.Asset) bool {
		provided, _ := ctx.Value(adminKeyCtxKey{}).(string)
		return provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1
	})
}

// AssetService - операции над уже сохраненными ассетами
type AssetService struct {
	assets AssetStore
	policy DeletePolicy
	log    *logger.Logger
}

func NewAssetService(assets AssetStore, policy DeletePolicy, baseLog *logger.Logger) *AssetService {
	if policy == nil {
		policy = DenyDeletes
	}
	return &AssetService{
		assets: assets,
		policy: policy,
		log:    baseLog.With("component", "AssetService"),
	}
}

func (s *AssetService) Get(ctx context.Context, id int64) (*domain.Asset, error) {
	asset, err := s.assets.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.AssetNotFoundError{ID: id}
	}
	if err != nil {
		return nil, &domain.DatabaseError{Op: "load asset", Err: err}
	}
	return asset, nil
}

// Delete помечает ассет удаленным; файлы удалит сборщик мусора
func (s *AssetService) Delete(ctx context.Context, id int64) error {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.policy.HasDeletePermission(ctx, asset) {
		return ErrAccessDenied
	}
	if err := s.assets.SoftDelete(ctx, id); err != nil {
		return &domain.DatabaseError{Op: "delete asset", Err: err}
	}
	s.log.Info("Asset deleted", "asset_id", id)
	return nil
}
