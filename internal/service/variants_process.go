package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"

	"mediavault/internal/collection"
	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/metrics"
	"mediavault/internal/pathgen"
	"mediavault/internal/queue"
	"mediavault/internal/storage"
)

// VariantsProcess - обработчик задачи variants_process.
// Шаги: загрузка ассета, трансформации, сохранение properties, сборка мусора.
type VariantsProcess struct {
	assets   AssetStore
	registry *collection.Registry
	disks    *storage.Disks
	gc       *GarbageCollector
	log      *logger.Logger

	// PersistPartial сохраняет варианты, созданные до упавшей трансформации.
	// По умолчанию они отбрасываются.
	PersistPartial bool
}

func NewVariantsProcess(
	assets AssetStore,
	registry *collection.Registry,
	disks *storage.Disks,
	gc *GarbageCollector,
	baseLog *logger.Logger,
) *VariantsProcess {
	return &VariantsProcess{
		assets:   assets,
		registry: registry,
		disks:    disks,
		gc:       gc,
		log:      baseLog.With("component", "VariantsProcess"),
	}
}

func (p *VariantsProcess) Type() string { return domain.VariantsJobType }

func (p *VariantsProcess) Handle(ctx context.Context, job *domain.Job) error {
	var payload domain.VariantsJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Fatal(fmt.Errorf("invalid variants payload: %w", err))
	}
	return p.Run(ctx, payload)
}

// Run выполняет задачу целиком; повторный запуск заменяет варианты с теми же именами
func (p *VariantsProcess) Run(ctx context.Context, payload domain.VariantsJobPayload) error {
	log := p.log.With("asset_id", payload.AssetID, "definition", payload.DefinitionRef)

	asset, err := p.assets.FindByID(ctx, payload.AssetID)
	if errors.Is(err, domain.ErrNotFound) {
		// Ассет мог быть удален до запуска задачи
		log.Info("Asset is gone, skipping variants")
		return queue.Fatal(&domain.AssetNotFoundError{ID: payload.AssetID})
	}
	if err != nil {
		return &domain.DatabaseError{Op: "load asset", Err: err}
	}

	def, err := p.registry.Resolve(payload.DefinitionRef, payload.DefinitionArgs)
	if err != nil {
		return queue.Fatal(err)
	}

	run, runErr := p.runVariants(ctx, asset, def)
	if runErr != nil {
		if p.PersistPartial && len(run.written) > 0 {
			if err := p.assets.UpdateProperties(ctx, asset.ID, asset.Properties); err != nil {
				log.Error("Failed to persist partial variants", "error", err)
				run.discard(ctx, log)
			} else {
				run.dropReplaced(ctx, log)
			}
		} else {
			run.discard(ctx, log)
		}
		return runErr
	}

	if err := p.assets.UpdateProperties(ctx, asset.ID, asset.Properties); err != nil {
		run.discard(ctx, log)
		return &domain.DatabaseError{Op: "update asset properties", Err: err}
	}
	run.dropReplaced(ctx, log)
	log.Info("Variants processed", "produced", len(run.written))

	if p.gc != nil {
		if _, err := p.gc.Collect(ctx); err != nil {
			log.Warn("Garbage collection failed", "error", err)
		}
	}
	return nil
}

// runVariants вызывает трансформации по порядку; первая ошибка прерывает остальные
func (p *VariantsProcess) runVariants(ctx context.Context, asset *domain.Asset, def *collection.Definition) (*variantRun, error) {
	run := &variantRun{persisted: make(map[string]bool, len(asset.Properties.Variants))}
	for _, v := range asset.Properties.Variants {
		run.persisted[v.Path] = true
	}
	if !def.HasVariants() {
		return run, nil
	}

	disk, err := p.disks.Get(asset.Disk)
	if err != nil {
		return run, queue.Fatal(err)
	}
	run.disk = disk

	dir := def.PathGenerator().GetPathForVariants(collection.PathContextOf(asset), def)
	created, err := disk.MkdirAll(ctx, dir)
	if err != nil {
		return run, fmt.Errorf("failed to create variants directory: %w", err)
	}
	if created {
		if err := def.PathGenerator().OnCreatedDirectory(ctx, disk, dir, def); err != nil {
			return run, err
		}
	}

	for _, v := range def.Variants() {
		b := &variantBuilder{
			asset: asset,
			def:   v,
			disk:  disk,
			dir:   dir,
			run:   run,
		}
		if err := v.Transform.Apply(ctx, b); err != nil {
			return run, &domain.FileVariantError{AssetID: asset.ID, Variant: v.Name, Err: err}
		}
	}
	return run, nil
}

// variantRun запоминает файлы одного запуска, чтобы после сохранения
// или отказа от метаданных на диске не осталось файлов без ссылок
type variantRun struct {
	disk      storage.Disk
	persisted map[string]bool
	written   []string
	replaced  []string
}

// discard удаляет файлы запуска, которых нет в сохраненных метаданных
func (r *variantRun) discard(ctx context.Context, log *logger.Logger) {
	for _, p := range r.written {
		if r.persisted[p] {
			continue
		}
		if err := r.disk.Delete(ctx, p); err != nil {
			log.Warn("Failed to delete discarded variant", "path", p, "error", err)
		}
	}
}

// dropReplaced удаляет файлы вариантов, замененных файлами с другим путем
func (r *variantRun) dropReplaced(ctx context.Context, log *logger.Logger) {
	for _, p := range r.replaced {
		if err := r.disk.Delete(ctx, p); err != nil {
			log.Warn("Failed to delete replaced variant", "path", p, "error", err)
		}
	}
}

// variantBuilder реализует collection.VariantBuilder для одного варианта
type variantBuilder struct {
	asset *domain.Asset
	def   collection.VariantDefinition
	disk  storage.Disk
	dir   string
	run   *variantRun
}

func (b *variantBuilder) Asset() *domain.Asset { return b.asset }
func (b *variantBuilder) Name() string         { return b.def.Name }

func (b *variantBuilder) Open(ctx context.Context) (io.ReadCloser, error) {
	return b.disk.Open(ctx, b.asset.Path)
}

func (b *variantBuilder) Write(ctx context.Context, data []byte, ext string) error {
	// Расширение из определения варианта важнее расширения трансформации
	if b.def.Extension != "" {
		ext = b.def.Extension
	}
	p := path.Join(b.dir, pathgen.VariantFileName(b.asset.FileName, b.def.Name, ext))

	size, err := b.disk.Put(ctx, p, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to store variant %s: %w", b.def.Name, err)
	}

	b.run.written = append(b.run.written, p)
	if prev, ok := b.asset.Variant(b.def.Name); ok && prev.Path != p {
		b.run.replaced = append(b.run.replaced, prev.Path)
	}

	b.asset.SetVariant(domain.AssetVariant{
		Name:      b.def.Name,
		Path:      p,
		Size:      size,
		Processed: true,
		Paths: domain.VariantPaths{
			BaseDir:  b.disk.BaseDir(),
			Relative: p,
		},
	})
	metrics.VariantsGenerated.WithLabelValues(b.def.Name).Inc()
	return nil
}
