package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
)

// ErrNotExist возвращается, когда файл отсутствует на диске
var ErrNotExist = fs.ErrNotExist

// FileInfo - сведения о сохраненном файле
type FileInfo struct {
	Path string
	Size int64
}

// Disk определяет интерфейс хранилища файлов (локальный диск, S3)
type Disk interface {
	Name() string
	// BaseDir - корень диска (директория или bucket/prefix), сохраняется в вариантах
	BaseDir() string
	Put(ctx context.Context, p string, r io.Reader) (int64, error)
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	Stat(ctx context.Context, p string) (FileInfo, error)
	Exists(ctx context.Context, p string) (bool, error)
	// Delete не возвращает ошибку, если файла нет
	Delete(ctx context.Context, p string) error
	// MkdirAll сообщает, была ли директория создана этим вызовом
	MkdirAll(ctx context.Context, dir string) (bool, error)
}

// Permissioner реализуют диски, поддерживающие права доступа
type Permissioner interface {
	Chmod(ctx context.Context, p string, mode os.FileMode) error
}

// Copy копирует файл между дисками (или внутри одного диска)
func Copy(ctx context.Context, src Disk, srcPath string, dst Disk, dstPath string) (int64, error) {
	r, err := src.Open(ctx, srcPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer r.Close()

	n, err := dst.Put(ctx, dstPath, r)
	if err != nil {
		return n, fmt.Errorf("failed to write destination: %w", err)
	}
	return n, nil
}

// CleanPath приводит путь к относительному виду и отклоняет выход за корень диска
func CleanPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}
	for _, part := range strings.Split(strings.ReplaceAll(p, "\\", "/"), "/") {
		if part == ".." {
			return "", fmt.Errorf("path %q escapes disk root", p)
		}
	}
	return strings.TrimPrefix(path.Clean("/"+p), "/"), nil
}

// Disks - реестр дисков по имени
type Disks struct {
	disks map[string]Disk
}

func NewDisks(disks ...Disk) *Disks {
	d := &Disks{disks: make(map[string]Disk, len(disks))}
	for _, disk := range disks {
		d.disks[disk.Name()] = disk
	}
	return d
}

func (d *Disks) Get(name string) (Disk, error) {
	disk, ok := d.disks[name]
	if !ok {
		return nil, fmt.Errorf("disk %q is not configured", name)
	}
	return disk, nil
}
