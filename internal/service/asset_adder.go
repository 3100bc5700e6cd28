package service

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"mediavault/internal/collection"
	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/metrics"
	"mediavault/internal/storage"
)

// Имена дисков для видимости коллекции
const (
	PublicDisk  = "public"
	PrivateDisk = "private"
	StagingDisk = "staging"
)

const sniffLen = 3072

// AssetAdder принимает файлы в коллекции: проверяет политику, копирует файл,
// сохраняет запись и вытесняет лишние ассеты
type AssetAdder struct {
	assets    AssetStore
	registry  *collection.Registry
	disks     *storage.Disks
	sanitizer FileNameSanitizer
	events    EventDispatcher
	log       *logger.Logger
}

func NewAssetAdder(
	assets AssetStore,
	registry *collection.Registry,
	disks *storage.Disks,
	sanitizer FileNameSanitizer,
	events EventDispatcher,
	baseLog *logger.Logger,
) *AssetAdder {
	if sanitizer == nil {
		sanitizer = DefaultSanitizer{}
	}
	return &AssetAdder{
		assets:    assets,
		registry:  registry,
		disks:     disks,
		sanitizer: sanitizer,
		events:    events,
		log:       baseLog.With("component", "AssetAdder"),
	}
}

// For начинает добавление файла srcPath с диска src к владельцу owner
func (a *AssetAdder) For(owner domain.AssetOwner, src storage.Disk, srcPath string) *Addition {
	return &Addition{
		adder:    a,
		owner:    owner,
		src:      src,
		srcPath:  srcPath,
		fileName: path.Base(srcPath),
	}
}

// Addition - настраиваемое добавление одного файла
type Addition struct {
	adder            *AssetAdder
	owner            domain.AssetOwner
	src              storage.Disk
	srcPath          string
	name             string
	fileName         string
	preserveOriginal bool
	order            int
	customProperties map[string]any
}

func (b *Addition) UsingName(name string) *Addition {
	b.name = name
	return b
}

func (b *Addition) UsingFileName(fileName string) *Addition {
	b.fileName = fileName
	return b
}

// PreservingOriginal копирует файл вместо перемещения
func (b *Addition) PreservingOriginal() *Addition {
	b.preserveOriginal = true
	return b
}

func (b *Addition) SetOrder(order int) *Addition {
	b.order = order
	return b
}

func (b *Addition) WithCustomProperties(props map[string]any) *Addition {
	b.customProperties = props
	return b
}

// candidate - результат проверок до записи на диск
type candidate struct {
	size     int64
	mimeType string
	fileName string
}

// Add проверяет файл и добавляет его в коллекцию collectionName
func (b *Addition) Add(ctx context.Context, collectionName string) (*domain.Asset, error) {
	a := b.adder
	ref := collection.Ref(b.owner.AssetEntityType(), collectionName)
	def, err := a.registry.Resolve(ref, nil)
	if err != nil {
		return nil, err
	}

	c, err := b.validate(ctx, def)
	if err != nil {
		metrics.AssetsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	name := b.name
	if name == "" {
		name = domain.FileStem(b.fileName)
	}

	asset := &domain.Asset{
		UUID:       uuid.New(),
		EntityType: b.owner.AssetEntityType(),
		EntityID:   b.owner.AssetEntityID(),
		Collection: collectionName,
		Disk:       diskFor(def),
		Name:       name,
		FileName:   c.fileName,
		MIMEType:   c.mimeType,
		Size:       c.size,
		Order:      b.order,
		Properties: domain.Properties{Custom: b.customProperties},
	}

	dst, err := a.disks.Get(asset.Disk)
	if err != nil {
		return nil, err
	}
	asset.Path = def.PathGenerator().GetPath(collection.PathContextOf(asset), def)

	if err := b.store(ctx, def, dst, asset.Path); err != nil {
		return nil, err
	}

	if err := a.assets.Create(ctx, asset); err != nil {
		// Откатываем скопированный файл
		if delErr := dst.Delete(ctx, asset.Path); delErr != nil {
			a.log.Error("Failed to roll back stored file", "path", asset.Path, "error", delErr)
		}
		return nil, &domain.DatabaseError{Op: "create asset", Err: err}
	}

	if !b.preserveOriginal {
		if err := b.src.Delete(ctx, b.srcPath); err != nil {
			a.log.Warn("Failed to remove source after move", "path", b.srcPath, "error", err)
		}
	}

	if err := a.evict(ctx, def, asset); err != nil {
		return nil, err
	}

	metrics.AssetsAdded.WithLabelValues(collectionName).Inc()
	a.log.Info("Asset added",
		"asset_id", asset.ID,
		"scope", asset.Scope().String(),
		"size", asset.Size,
	)

	a.events.AssetCreated(ctx, domain.NewAssetCreated(asset, b.owner))
	return asset, nil
}

// validate выполняет проверки по порядку; первая ошибка прерывает добавление
func (b *Addition) validate(ctx context.Context, def *collection.Definition) (*candidate, error) {
	// 1. файл существует и читается
	info, err := b.src.Stat(ctx, b.srcPath)
	if err != nil {
		return nil, &domain.InvalidFileError{Path: b.srcPath, Err: err}
	}
	head, err := b.sniff(ctx)
	if err != nil {
		return nil, &domain.InvalidFileError{Path: b.srcPath, Err: err}
	}

	// 2. размер
	if limit := def.MaxFileSize(); limit > 0 && info.Size > limit {
		return nil, &domain.FileTooLargeError{FileName: b.fileName, Size: info.Size, Allowed: limit}
	}

	// 3. расширение
	ext := domain.FileExtension(b.fileName)
	if !def.AcceptsExtension(ext) {
		return nil, &domain.InvalidFileExtensionError{FileName: b.fileName, Extension: ext, Allowed: def.AllowedExtensions()}
	}

	// 4. MIME-тип
	mimeType := detectMimeType(head, b.fileName)
	if !def.AcceptsMimeType(mimeType) {
		return nil, &domain.InvalidMimeTypeError{FileName: b.fileName, MIMEType: mimeType, Allowed: def.AllowedMimeTypes()}
	}

	// 5. имя файла
	fileName, err := b.adder.sanitizer.Sanitize(b.fileName)
	if err != nil {
		return nil, &domain.FileNameNotAllowedError{FileName: b.fileName, Reason: err.Error()}
	}

	return &candidate{size: info.Size, mimeType: mimeType, fileName: fileName}, nil
}

func (b *Addition) sniff(ctx context.Context) ([]byte, error) {
	r, err := b.src.Open(ctx, b.srcPath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return head[:n], nil
}

// store копирует файл в целевой путь; при ошибке частичная копия удаляется
func (b *Addition) store(ctx context.Context, def *collection.Definition, dst storage.Disk, dstPath string) error {
	dir := path.Dir(dstPath)
	created, err := dst.MkdirAll(ctx, dir)
	if err != nil {
		return &domain.CannotCopyFileError{From: b.srcPath, To: dstPath, Err: err}
	}
	if created {
		if err := def.PathGenerator().OnCreatedDirectory(ctx, dst, dir, def); err != nil {
			return &domain.CannotCopyFileError{From: b.srcPath, To: dstPath, Err: err}
		}
	}

	if _, err := storage.Copy(ctx, b.src, b.srcPath, dst, dstPath); err != nil {
		if delErr := dst.Delete(ctx, dstPath); delErr != nil {
			b.adder.log.Warn("Failed to remove partial copy", "path", dstPath, "error", delErr)
		}
		return &domain.CannotCopyFileError{From: b.srcPath, To: dstPath, Err: err}
	}
	return nil
}

// evict помечает удаленными ассеты области сверх лимита коллекции.
// Новый ассет остается всегда; остальные упорядочены от новых к старым,
// при равном created_at новее считается больший id.
func (a *AssetAdder) evict(ctx context.Context, def *collection.Definition, added *domain.Asset) error {
	limit := def.MaxItems()
	if limit == 0 {
		return nil
	}

	active, err := a.assets.ListActiveInScope(ctx, added.Scope())
	if err != nil {
		return &domain.DatabaseError{Op: "list collection", Err: err}
	}

	others := make([]domain.Asset, 0, len(active))
	for _, existing := range active {
		if existing.ID != added.ID {
			others = append(others, existing)
		}
	}
	sort.SliceStable(others, func(i, j int) bool {
		if !others[i].CreatedAt.Equal(others[j].CreatedAt) {
			return others[i].CreatedAt.After(others[j].CreatedAt)
		}
		return others[i].ID > others[j].ID
	})

	keep := limit - 1
	if len(others) <= keep {
		return nil
	}

	ids := make([]int64, 0, len(others)-keep)
	for _, existing := range others[keep:] {
		ids = append(ids, existing.ID)
	}
	if err := a.assets.SoftDelete(ctx, ids...); err != nil {
		return &domain.DatabaseError{Op: "evict assets", Err: err}
	}

	metrics.AssetsEvicted.Add(float64(len(ids)))
	a.log.Info("Assets evicted", "scope", added.Scope().String(), "ids", ids)
	return nil
}

func diskFor(def *collection.Definition) string {
	if def.Visibility() == collection.VisibilityPrivate {
		return PrivateDisk
	}
	return PublicDisk
}

// detectMimeType определяет тип по содержимому. Для простого текста уточняет
// подтип по расширению (text/markdown, text/csv), но не выходит за пределы text/*.
func detectMimeType(head []byte, fileName string) string {
	detected := mimetype.Detect(head)
	mediaType, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return "application/octet-stream"
	}
	if mediaType == "text/plain" {
		if byExt := mime.TypeByExtension(path.Ext(fileName)); byExt != "" {
			if t, _, err := mime.ParseMediaType(byExt); err == nil && strings.HasPrefix(t, "text/") {
				return t
			}
		}
	}
	return mediaType
}

func rejectReason(err error) string {
	var (
		invalidFile *domain.InvalidFileError
		tooLarge    *domain.FileTooLargeError
		badExt      *domain.InvalidFileExtensionError
		badMime     *domain.InvalidMimeTypeError
		badName     *domain.FileNameNotAllowedError
	)
	switch {
	case errors.As(err, &invalidFile):
		return "invalid_file"
	case errors.As(err, &tooLarge):
		return "too_large"
	case errors.As(err, &badExt):
		return "extension"
	case errors.As(err, &badMime):
		return "mime_type"
	case errors.As(err, &badName):
		return "file_name"
	}
	return "other"
}
