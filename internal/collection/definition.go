package collection

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"mediavault/internal/domain"
	"mediavault/internal/storage"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

var (
	extensionPattern = regexp.MustCompile(`^[a-z0-9]+$`)
	mimeTypePattern  = regexp.MustCompile(`^[a-z0-9][a-z0-9!#$&^_.+-]*/([a-z0-9][a-z0-9!#$&^_.+-]*|\*)$`)
)

// PathContext - все, что нужно генератору путей для одного ассета
type PathContext struct {
	EntityType string
	EntityID   int64
	Collection string
	UUID       string
	FileName   string
}

// PathContextOf строит контекст путей для сохраненного ассета
func PathContextOf(a *domain.Asset) PathContext {
	return PathContext{
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		Collection: a.Collection,
		UUID:       a.UUID.String(),
		FileName:   a.FileName,
	}
}

// PathGenerator вычисляет пути оригинала и вариантов. Одинаковый контекст
// всегда дает одинаковый путь.
type PathGenerator interface {
	GetPath(pc PathContext, def *Definition) string
	GetPathForVariants(pc PathContext, def *Definition) string
	OnCreatedDirectory(ctx context.Context, disk storage.Disk, dir string, def *Definition) error
}

// VariantBuilder привязан к одному ассету и одному варианту
type VariantBuilder interface {
	Asset() *domain.Asset
	Name() string
	// Open открывает оригинальный файл ассета
	Open(ctx context.Context) (io.ReadCloser, error)
	// Write сохраняет вариант. Расширение: из определения варианта, иначе ext,
	// иначе расширение оригинала.
	Write(ctx context.Context, data []byte, ext string) error
}

// Transform создает вариант. Отказ без ошибки (без вызова Write) допустим.
type Transform interface {
	Apply(ctx context.Context, b VariantBuilder) error
}

// TransformFunc позволяет использовать функцию как Transform
type TransformFunc func(ctx context.Context, b VariantBuilder) error

func (f TransformFunc) Apply(ctx context.Context, b VariantBuilder) error { return f(ctx, b) }

// VariantDefinition - именованная трансформация с необязательным расширением
type VariantDefinition struct {
	Name      string
	Extension string
	Transform Transform
}

// Definition описывает политику коллекции. Настраивается один раз при регистрации.
type Definition struct {
	name              string
	visibility        Visibility
	allowedExtensions []string
	allowedMimeTypes  []string
	maxFileSize       int64
	maxItems          int
	singleFile        bool
	pathGenerator     PathGenerator
	variants          []VariantDefinition

	errs []error
}

// NewDefinition создает публичную коллекцию без ограничений
func NewDefinition(name string) *Definition {
	return &Definition{name: name, visibility: VisibilityPublic}
}

func (d *Definition) Name() string           { return d.name }
func (d *Definition) Visibility() Visibility { return d.visibility }
func (d *Definition) AllowedExtensions() []string {
	return append([]string(nil), d.allowedExtensions...)
}
func (d *Definition) AllowedMimeTypes() []string   { return append([]string(nil), d.allowedMimeTypes...) }
func (d *Definition) MaxFileSize() int64           { return d.maxFileSize }
func (d *Definition) PathGenerator() PathGenerator { return d.pathGenerator }
func (d *Definition) IsSingleFileCollection() bool { return d.singleFile }

// MaxItems возвращает лимит элементов; 0 - без ограничения
func (d *Definition) MaxItems() int {
	if d.singleFile {
		return 1
	}
	return d.maxItems
}

func (d *Definition) Variants() []VariantDefinition {
	return append([]VariantDefinition(nil), d.variants...)
}

// HasVariants сообщает, объявлены ли у коллекции варианты
func (d *Definition) HasVariants() bool { return len(d.variants) > 0 }

// Variant ищет зарегистрированный вариант по имени
func (d *Definition) Variant(name string) (VariantDefinition, bool) {
	for _, v := range d.variants {
		if v.Name == name {
			return v, true
		}
	}
	return VariantDefinition{}, false
}

func (d *Definition) SetVisibility(v Visibility) *Definition {
	if v != VisibilityPublic && v != VisibilityPrivate {
		d.errs = append(d.errs, &domain.InvalidArgumentError{Field: "visibility", Value: string(v), Reason: "must be public or private"})
		return d
	}
	d.visibility = v
	return d
}

// SetAllowedExtensions ограничивает расширения файлов (без точки, регистр не важен)
func (d *Definition) SetAllowedExtensions(exts ...string) *Definition {
	for _, ext := range exts {
		norm := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if !extensionPattern.MatchString(norm) {
			d.errs = append(d.errs, &domain.InvalidArgumentError{Field: "extension", Value: ext, Reason: "must be alphanumeric"})
			continue
		}
		d.allowedExtensions = append(d.allowedExtensions, norm)
	}
	return d
}

func (d *Definition) SetAllowedMimeTypes(types ...string) *Definition {
	for _, t := range types {
		norm := strings.ToLower(strings.TrimSpace(t))
		if !mimeTypePattern.MatchString(norm) {
			d.errs = append(d.errs, &domain.InvalidArgumentError{Field: "mime type", Value: t, Reason: "must look like type/subtype"})
			continue
		}
		d.allowedMimeTypes = append(d.allowedMimeTypes, norm)
	}
	return d
}

// OnlyKeepLatest оставляет только n последних ассетов в области
func (d *Definition) OnlyKeepLatest(n int) *Definition {
	if n < 1 {
		d.errs = append(d.errs, &domain.InvalidArgumentError{Field: "max items", Value: fmt.Sprint(n), Reason: "must be at least 1"})
		return d
	}
	d.maxItems = n
	return d
}

func (d *Definition) SetMaxFileSize(bytes int64) *Definition {
	if bytes < 0 {
		d.errs = append(d.errs, &domain.InvalidArgumentError{Field: "max file size", Value: fmt.Sprint(bytes), Reason: "must not be negative"})
		return d
	}
	d.maxFileSize = bytes
	return d
}

func (d *Definition) SingleFileCollection() *Definition {
	d.singleFile = true
	return d
}

func (d *Definition) SetPathGenerator(g PathGenerator) *Definition {
	if g == nil {
		d.errs = append(d.errs, &domain.InvalidArgumentError{Field: "path generator", Reason: "must not be nil"})
		return d
	}
	d.pathGenerator = g
	return d
}

// AddVariant регистрирует трансформацию под именем; ext переопределяет расширение
func (d *Definition) AddVariant(name string, t Transform, ext ...string) *Definition {
	if name == "" || t == nil {
		d.errs = append(d.errs, &domain.InvalidArgumentError{Field: "variant", Value: name, Reason: "name and transform are required"})
		return d
	}
	if _, exists := d.Variant(name); exists {
		d.errs = append(d.errs, &domain.InvalidArgumentError{Field: "variant", Value: name, Reason: "already registered"})
		return d
	}
	v := VariantDefinition{Name: name, Transform: t}
	if len(ext) > 0 {
		norm := strings.ToLower(strings.TrimPrefix(ext[0], "."))
		if !extensionPattern.MatchString(norm) {
			d.errs = append(d.errs, &domain.InvalidArgumentError{Field: "variant extension", Value: ext[0], Reason: "must be alphanumeric"})
			return d
		}
		v.Extension = norm
	}
	d.variants = append(d.variants, v)
	return d
}

// Err возвращает первую ошибку настройки, накопленную методами Set*
func (d *Definition) Err() error {
	if len(d.errs) == 0 {
		return nil
	}
	return d.errs[0]
}

// AcceptsExtension проверяет расширение по политике коллекции
func (d *Definition) AcceptsExtension(ext string) bool {
	if len(d.allowedExtensions) == 0 {
		return true
	}
	ext = strings.ToLower(ext)
	for _, allowed := range d.allowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

// AcceptsMimeType проверяет MIME-тип по политике; "image/*" подходит для любого изображения
func (d *Definition) AcceptsMimeType(mimeType string) bool {
	if len(d.allowedMimeTypes) == 0 {
		return true
	}
	mimeType = strings.ToLower(mimeType)
	for _, allowed := range d.allowedMimeTypes {
		if allowed == mimeType {
			return true
		}
		if prefix, ok := strings.CutSuffix(allowed, "/*"); ok && strings.HasPrefix(mimeType, prefix+"/") {
			return true
		}
	}
	return false
}
