package service

import (
	"context"
	"errors"
	"time"

	"mediavault/internal/domain"
)

var ErrAccessDenied = errors.New("access denied")

// AssetStore - слой хранения ассетов (repository.AssetRepository)
type AssetStore interface {
	Create(ctx context.Context, asset *domain.Asset) error
	FindByID(ctx context.Context, id int64) (*domain.Asset, error)
	ListActiveInScope(ctx context.Context, scope domain.Scope) ([]domain.Asset, error)
	SoftDelete(ctx context.Context, ids ...int64) error
	UpdateProperties(ctx context.Context, id int64, props domain.Properties) error
	FindSoftDeleted(ctx context.Context, limit int) ([]domain.Asset, error)
	ForceDelete(ctx context.Context, id int64) error
}

// PendingStorage хранит метаданные временных загрузок (repository.PendingAssetRepository)
type PendingStorage interface {
	Save(ctx context.Context, p *domain.PendingAsset) error
	Find(ctx context.Context, id string) (*domain.PendingAsset, error)
	Delete(ctx context.Context, id string) (bool, error)
	Expired(ctx context.Context, now time.Time, limit int) ([]domain.PendingAsset, error)
	DefaultTTL() time.Duration
}

// EventDispatcher уведомляет внешних подписчиков (events.Dispatcher)
type EventDispatcher interface {
	AssetCreated(ctx context.Context, e *domain.AssetCreated)
}
