package events

import (
	"context"
	"fmt"
	"strconv"

	"mediavault/internal/collection"
	"mediavault/internal/domain"
)

// Enqueuer - очередь задач (queue.Queue)
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload any, dedupKey string) (bool, error)
}

// VariantsListener ставит задачу генерации вариантов для коллекций, где они объявлены
type VariantsListener struct {
	registry *collection.Registry
	finder   domain.AssetFinder
	queue    Enqueuer
}

func NewVariantsListener(registry *collection.Registry, finder domain.AssetFinder, queue Enqueuer) *VariantsListener {
	return &VariantsListener{registry: registry, finder: finder, queue: queue}
}

func (l *VariantsListener) OnAssetCreated(ctx context.Context, e *domain.AssetCreated) error {
	asset, err := e.Resolve(ctx, l.finder)
	if err != nil {
		return fmt.Errorf("failed to resolve asset %d: %w", e.AssetID, err)
	}

	ref := collection.Ref(asset.EntityType, asset.Collection)
	def, err := l.registry.Resolve(ref, nil)
	if err != nil {
		return err
	}
	if !def.HasVariants() {
		return nil
	}

	payload := domain.VariantsJobPayload{
		AssetID:        asset.ID,
		DefinitionRef:  ref,
		DefinitionArgs: []string{},
	}
	if _, err := l.queue.Enqueue(ctx, domain.VariantsJobType, payload, strconv.FormatInt(asset.ID, 10)); err != nil {
		return fmt.Errorf("failed to enqueue variants for asset %d: %w", asset.ID, err)
	}
	return nil
}
