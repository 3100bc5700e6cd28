package events

import (
	"context"
	"sync"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
)

// AssetCreatedListener получает уведомление о новом ассете
type AssetCreatedListener interface {
	OnAssetCreated(ctx context.Context, e *domain.AssetCreated) error
}

// ListenerFunc позволяет использовать функцию как AssetCreatedListener
type ListenerFunc func(ctx context.Context, e *domain.AssetCreated) error

func (f ListenerFunc) OnAssetCreated(ctx context.Context, e *domain.AssetCreated) error {
	return f(ctx, e)
}

// Dispatcher рассылает события подписчикам по порядку подписки.
// Ошибка подписчика логируется и не мешает остальным.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []AssetCreatedListener
	log       *logger.Logger
}

func NewDispatcher(baseLog *logger.Logger) *Dispatcher {
	return &Dispatcher{log: baseLog.With("component", "EventDispatcher")}
}

func (d *Dispatcher) Subscribe(l AssetCreatedListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

func (d *Dispatcher) AssetCreated(ctx context.Context, e *domain.AssetCreated) {
	d.mu.RLock()
	listeners := append([]AssetCreatedListener(nil), d.listeners...)
	d.mu.RUnlock()

	for _, l := range listeners {
		if err := l.OnAssetCreated(ctx, e); err != nil {
			d.log.Warn("Asset created listener failed", "asset_id", e.AssetID, "error", err)
		}
	}
}
