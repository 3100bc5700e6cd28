// Package memory содержит хранилища в памяти процесса для тестов и локального запуска.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mediavault/internal/domain"
)

type AssetRepository struct {
	mu     sync.Mutex
	nextID int64
	assets map[int64]domain.Asset
	now    func() time.Time

	// FailCreate и FailForceDelete позволяют имитировать ошибки базы
	FailCreate      error
	FailForceDelete map[int64]error
}

func NewAssetRepository(now func() time.Time) *AssetRepository {
	if now == nil {
		now = time.Now
	}
	return &AssetRepository{assets: make(map[int64]domain.Asset), now: now}
}

func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate != nil {
		return r.FailCreate
	}
	r.nextID++
	asset.ID = r.nextID
	asset.CreatedAt = r.now()
	asset.UpdatedAt = asset.CreatedAt
	r.assets[asset.ID] = clone(*asset)
	return nil
}

func (r *AssetRepository) FindByID(ctx context.Context, id int64) (*domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok || a.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	out := clone(a)
	return &out, nil
}

// Get возвращает ассет по id, включая помеченные удаленными
func (r *AssetRepository) Get(id int64) (domain.Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	return clone(a), ok
}

// Put сохраняет ассет как есть, с его id и временными метками
func (r *AssetRepository) Put(a domain.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID > r.nextID {
		r.nextID = a.ID
	}
	r.assets[a.ID] = clone(a)
}

func (r *AssetRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assets)
}

func (r *AssetRepository) ListActiveInScope(ctx context.Context, scope domain.Scope) ([]domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Asset
	for _, a := range r.assets {
		if a.DeletedAt == nil && a.Scope() == scope {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *AssetRepository) SoftDelete(ctx context.Context, ids ...int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for _, id := range ids {
		a, ok := r.assets[id]
		if !ok || a.DeletedAt != nil {
			continue
		}
		a.DeletedAt = &now
		r.assets[id] = a
	}
	return nil
}

func (r *AssetRepository) UpdateProperties(ctx context.Context, id int64, props domain.Properties) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Properties = cloneProperties(props)
	a.UpdatedAt = r.now()
	r.assets[id] = a
	return nil
}

func (r *AssetRepository) FindSoftDeleted(ctx context.Context, limit int) ([]domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Asset
	for _, a := range r.assets {
		if a.DeletedAt != nil {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AssetRepository) ForceDelete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.FailForceDelete[id]; err != nil {
		return err
	}
	delete(r.assets, id)
	return nil
}

func clone(a domain.Asset) domain.Asset {
	a.Properties = cloneProperties(a.Properties)
	return a
}

func cloneProperties(p domain.Properties) domain.Properties {
	out := domain.Properties{}
	if p.Variants != nil {
		out.Variants = append([]domain.AssetVariant(nil), p.Variants...)
	}
	if p.Custom != nil {
		out.Custom = make(map[string]any, len(p.Custom))
		for k, v := range p.Custom {
			out.Custom[k] = v
		}
	}
	return out
}
