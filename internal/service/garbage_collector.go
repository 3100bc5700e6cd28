package service

import (
	"context"
	"fmt"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/metrics"
	"mediavault/internal/storage"
)

const DefaultGCBatchSize = 1000

// GarbageCollector окончательно удаляет помеченные ассеты и их файлы
type GarbageCollector struct {
	assets    AssetStore
	disks     *storage.Disks
	batchSize int
	log       *logger.Logger
}

func NewGarbageCollector(assets AssetStore, disks *storage.Disks, batchSize int, baseLog *logger.Logger) *GarbageCollector {
	if batchSize <= 0 {
		batchSize = DefaultGCBatchSize
	}
	return &GarbageCollector{
		assets:    assets,
		disks:     disks,
		batchSize: batchSize,
		log:       baseLog.With("component", "GarbageCollector"),
	}
}

// Collect обрабатывает одну пачку удаленных ассетов и возвращает число удаленных строк.
// Ошибки удаления файлов только логируются: строка ассета удаляется в любом случае.
func (g *GarbageCollector) Collect(ctx context.Context) (int, error) {
	assets, err := g.assets.FindSoftDeleted(ctx, g.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to get soft deleted assets: %w", err)
	}

	purged := 0
	for i := range assets {
		asset := &assets[i]
		g.deleteFiles(ctx, asset)

		if err := g.assets.ForceDelete(ctx, asset.ID); err != nil {
			// Строка остается помеченной и будет обработана следующим проходом
			g.log.Error("Failed to purge asset row", "asset_id", asset.ID, "error", err)
			continue
		}
		purged++
		metrics.AssetsPurged.Inc()
	}

	if purged > 0 {
		g.log.Info("Garbage collected assets", "purged", purged, "batch", len(assets))
	}
	return purged, nil
}

// deleteFiles удаляет сначала все варианты, затем оригинал
func (g *GarbageCollector) deleteFiles(ctx context.Context, asset *domain.Asset) {
	disk, err := g.disks.Get(asset.Disk)
	if err != nil {
		metrics.GCFileErrors.Inc()
		g.log.Warn("Cannot delete asset files", "asset_id", asset.ID, "error", err)
		return
	}

	for _, v := range asset.Properties.Variants {
		if err := disk.Delete(ctx, v.Path); err != nil {
			metrics.GCFileErrors.Inc()
			g.log.Warn("Failed to delete variant file",
				"asset_id", asset.ID,
				"variant", v.Name,
				"path", v.Path,
				"error", err,
			)
		}
	}

	if err := disk.Delete(ctx, asset.Path); err != nil {
		metrics.GCFileErrors.Inc()
		g.log.Warn("Failed to delete asset file", "asset_id", asset.ID, "path", asset.Path, "error", err)
	}
}
