package domain

import (
	"errors"
	"fmt"
)

// Presentable - ошибка, которую можно перевести и показать клиенту
type Presentable interface {
	error
	Translation() (key string, params map[string]any)
}

// InvalidFileError - файл отсутствует или не читается
type InvalidFileError struct {
	Path string
	Err  error
}

func (e *InvalidFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid file %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("invalid file %q", e.Path)
}

func (e *InvalidFileError) Unwrap() error { return e.Err }

func (e *InvalidFileError) Translation() (string, map[string]any) {
	return "assets.invalid_file", map[string]any{"path": e.Path}
}

// FileTooLargeError - размер файла превышает лимит коллекции
type FileTooLargeError struct {
	FileName string
	Size     int64
	Allowed  int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %q is too large: %d bytes, allowed %d bytes", e.FileName, e.Size, e.Allowed)
}

func (e *FileTooLargeError) Translation() (string, map[string]any) {
	return "assets.file_too_large", map[string]any{"file_name": e.FileName, "size": e.Size, "allowed": e.Allowed}
}

type InvalidFileExtensionError struct {
	FileName  string
	Extension string
	Allowed   []string
}

func (e *InvalidFileExtensionError) Error() string {
	return fmt.Sprintf("file %q has extension %q, allowed: %v", e.FileName, e.Extension, e.Allowed)
}

func (e *InvalidFileExtensionError) Translation() (string, map[string]any) {
	return "assets.invalid_extension", map[string]any{"file_name": e.FileName, "extension": e.Extension, "allowed": e.Allowed}
}

type InvalidMimeTypeError struct {
	FileName string
	MIMEType string
	Allowed  []string
}

func (e *InvalidMimeTypeError) Error() string {
	return fmt.Sprintf("file %q has mime type %q, allowed: %v", e.FileName, e.MIMEType, e.Allowed)
}

func (e *InvalidMimeTypeError) Translation() (string, map[string]any) {
	return "assets.invalid_mime_type", map[string]any{"file_name": e.FileName, "mime_type": e.MIMEType, "allowed": e.Allowed}
}

// FileNameNotAllowedError - санитайзер отказал в имени файла
type FileNameNotAllowedError struct {
	FileName string
	Reason   string
}

func (e *FileNameNotAllowedError) Error() string {
	return fmt.Sprintf("file name %q is not allowed: %s", e.FileName, e.Reason)
}

func (e *FileNameNotAllowedError) Translation() (string, map[string]any) {
	return "assets.file_name_not_allowed", map[string]any{"file_name": e.FileName}
}

type CannotCopyFileError struct {
	From string
	To   string
	Err  error
}

func (e *CannotCopyFileError) Error() string {
	return fmt.Sprintf("cannot copy file %q to %q: %v", e.From, e.To, e.Err)
}

func (e *CannotCopyFileError) Unwrap() error { return e.Err }

// DatabaseError оборачивает ошибки слоя хранения
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database operation %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

type FileVariantError struct {
	AssetID int64
	Variant string
	Err     error
}

func (e *FileVariantError) Error() string {
	return fmt.Sprintf("variant %q of asset %d failed: %v", e.Variant, e.AssetID, e.Err)
}

func (e *FileVariantError) Unwrap() error { return e.Err }

type AssetNotFoundError struct {
	ID int64
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("asset %d not found", e.ID)
}

// InvalidArgumentError - ошибка конфигурации, обнаруженная при регистрации
type InvalidArgumentError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

type PendingAssetError struct {
	ID  string
	Op  string
	Err error
}

func (e *PendingAssetError) Error() string {
	return fmt.Sprintf("pending asset %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *PendingAssetError) Unwrap() error { return e.Err }

type TokenInvalidError struct {
	ID string
}

func (e *TokenInvalidError) Error() string {
	return fmt.Sprintf("security token for pending asset %s is invalid", e.ID)
}

func (e *TokenInvalidError) Translation() (string, map[string]any) {
	return "assets.token_invalid", map[string]any{"id": e.ID}
}

// ErrNotFound возвращается репозиториями, когда запись отсутствует
var ErrNotFound = errors.New("record not found")

// AsPresentable достает из цепочки ошибку, которую можно показать клиенту
func AsPresentable(err error) (Presentable, bool) {
	var p Presentable
	if errors.As(err, &p) {
		return p, true
	}
	return nil, false
}
