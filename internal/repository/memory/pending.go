package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mediavault/internal/domain"
)

type PendingAssetRepository struct {
	mu         sync.Mutex
	items      map[string]domain.PendingAsset
	defaultTTL time.Duration
}

func NewPendingAssetRepository(defaultTTL time.Duration) *PendingAssetRepository {
	return &PendingAssetRepository{items: make(map[string]domain.PendingAsset), defaultTTL: defaultTTL}
}

func (r *PendingAssetRepository) DefaultTTL() time.Duration { return r.defaultTTL }

func (r *PendingAssetRepository) Save(ctx context.Context, p *domain.PendingAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID] = *p
	return nil
}

func (r *PendingAssetRepository) Find(ctx context.Context, id string) (*domain.PendingAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *PendingAssetRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[id]
	delete(r.items, id)
	return ok, nil
}

func (r *PendingAssetRepository) Expired(ctx context.Context, now time.Time, limit int) ([]domain.PendingAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PendingAsset
	for _, p := range r.items {
		if p.IsExpired(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *PendingAssetRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
