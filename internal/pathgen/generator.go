package pathgen

import (
	"context"
	"fmt"
	"hash/crc32"
	"path"
	"strconv"

	"mediavault/internal/collection"
	"mediavault/internal/domain"
	"mediavault/internal/storage"
)

const (
	variantsDir    = "variants"
	privateDirMode = 0700
)

// DefaultGenerator раскладывает файлы по хешу типа владельца, id владельца,
// хешу коллекции и uuid ассета:
//
//	<prefix>/<crc32(entity type)>/<entity id>/<crc32(collection)>/<uuid>/<file name>
type DefaultGenerator struct {
	Prefix string
}

func New(prefix string) *DefaultGenerator {
	return &DefaultGenerator{Prefix: prefix}
}

func (g *DefaultGenerator) baseDir(pc collection.PathContext) string {
	return path.Join(
		g.Prefix,
		hash(pc.EntityType),
		strconv.FormatInt(pc.EntityID, 10),
		hash(pc.Collection),
		pc.UUID,
	)
}

// GetPath возвращает путь оригинального файла
func (g *DefaultGenerator) GetPath(pc collection.PathContext, def *collection.Definition) string {
	return path.Join(g.baseDir(pc), pc.FileName)
}

// GetPathForVariants возвращает директорию вариантов
func (g *DefaultGenerator) GetPathForVariants(pc collection.PathContext, def *collection.Definition) string {
	return path.Join(g.baseDir(pc), variantsDir)
}

// OnCreatedDirectory закрывает директории приватных коллекций от других пользователей
func (g *DefaultGenerator) OnCreatedDirectory(ctx context.Context, disk storage.Disk, dir string, def *collection.Definition) error {
	if def.Visibility() != collection.VisibilityPrivate {
		return nil
	}
	p, ok := disk.(storage.Permissioner)
	if !ok {
		return nil
	}
	if err := p.Chmod(ctx, dir, privateDirMode); err != nil {
		return fmt.Errorf("failed to restrict directory %s: %w", dir, err)
	}
	return nil
}

// VariantFileName строит имя файла варианта: <stem>-<variant>.<ext>.
// Пустой ext наследует расширение оригинала.
func VariantFileName(fileName, variant, ext string) string {
	if ext == "" {
		ext = domain.FileExtension(fileName)
	}
	name := domain.FileStem(fileName) + "-" + variant
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func hash(s string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(s)))
}
