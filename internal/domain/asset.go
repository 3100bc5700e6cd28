package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Asset описывает один сохраненный файл, привязанный к владельцу и коллекции
type Asset struct {
	ID         int64      `json:"id" db:"id"`
	UUID       uuid.UUID  `json:"uuid" db:"uuid"`
	EntityType string     `json:"entity_type" db:"entity_type"`
	EntityID   int64      `json:"entity_id" db:"entity_id"`
	Collection string     `json:"collection" db:"collection"`
	Disk       string     `json:"disk" db:"disk"`
	Name       string     `json:"name" db:"name"`
	FileName   string     `json:"file_name" db:"file_name"`
	MIMEType   string     `json:"mime_type" db:"mime_type"`
	Size       int64      `json:"size" db:"size"`
	Path       string     `json:"path" db:"path"`
	Order      int        `json:"order" db:"order_column"`
	Properties Properties `json:"properties" db:"properties"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Scope возвращает ключ области (тип владельца, id владельца, коллекция)
func (a *Asset) Scope() Scope {
	return Scope{EntityType: a.EntityType, EntityID: a.EntityID, Collection: a.Collection}
}

// IsDeleted сообщает, помечен ли ассет как удаленный
func (a *Asset) IsDeleted() bool {
	return a.DeletedAt != nil
}

// Extension возвращает расширение файла без точки в нижнем регистре
func (a *Asset) Extension() string {
	return FileExtension(a.FileName)
}

// Variant ищет вариант по имени
func (a *Asset) Variant(name string) (AssetVariant, bool) {
	for _, v := range a.Properties.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return AssetVariant{}, false
}

// SetVariant добавляет вариант или заменяет вариант с тем же именем
func (a *Asset) SetVariant(v AssetVariant) {
	for i := range a.Properties.Variants {
		if a.Properties.Variants[i].Name == v.Name {
			a.Properties.Variants[i] = v
			return
		}
	}
	a.Properties.Variants = append(a.Properties.Variants, v)
}

// Scope - владелец и коллекция, в пределах которых действуют лимиты
type Scope struct {
	EntityType string
	EntityID   int64
	Collection string
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%d:%s", s.EntityType, s.EntityID, s.Collection)
}

// AssetVariant хранится внутри Asset.Properties, отдельной таблицы нет
type AssetVariant struct {
	Name      string       `json:"name"`
	Path      string       `json:"path"`
	Size      int64        `json:"size"`
	Processed bool         `json:"processed"`
	Paths     VariantPaths `json:"paths"`
}

// VariantPaths сохраняет базовую директорию и относительный путь отдельно,
// чтобы вариант можно было перенести без пересчета
type VariantPaths struct {
	BaseDir  string `json:"base_dir"`
	Relative string `json:"relative"`
}

// Properties - сериализуемые в JSON метаданные ассета
type Properties struct {
	Variants []AssetVariant `json:"variants"`
	Custom   map[string]any `json:"custom_properties,omitempty"`
}

// Value реализует driver.Valuer
func (p Properties) Value() (driver.Value, error) {
	if p.Variants == nil {
		p.Variants = []AssetVariant{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	return data, nil
}

// Scan реализует sql.Scanner
func (p *Properties) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = Properties{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported properties type %T", src)
	}

	var out Properties
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}
	*p = out
	return nil
}

// FileExtension возвращает расширение имени без точки в нижнем регистре
func FileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// FileStem возвращает имя без расширения
func FileStem(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}
