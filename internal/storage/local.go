package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/spf13/afero"
)

const (
	defaultDirMode  = 0755
	defaultFileMode = 0644
)

// LocalDisk хранит файлы в файловой системе afero
type LocalDisk struct {
	name string
	root string
	fs   afero.Fs
}

// NewLocalDisk создает диск с корнем root на файловой системе ОС
func NewLocalDisk(name, root string) (*LocalDisk, error) {
	if err := os.MkdirAll(root, defaultDirMode); err != nil {
		return nil, fmt.Errorf("failed to create disk root %s: %w", root, err)
	}
	return &LocalDisk{
		name: name,
		root: root,
		fs:   afero.NewBasePathFs(afero.NewOsFs(), root),
	}, nil
}

// NewFsDisk создает диск поверх любой файловой системы afero (в тестах afero.NewMemMapFs())
func NewFsDisk(name string, fsys afero.Fs) *LocalDisk {
	return &LocalDisk{name: name, root: "/", fs: fsys}
}

func (d *LocalDisk) Name() string    { return d.name }
func (d *LocalDisk) BaseDir() string { return d.root }

// Fs возвращает файловую систему диска
func (d *LocalDisk) Fs() afero.Fs { return d.fs }

func (d *LocalDisk) Put(ctx context.Context, p string, r io.Reader) (int64, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return 0, err
	}
	if err := d.fs.MkdirAll(path.Dir(clean), defaultDirMode); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := d.fs.OpenFile(clean, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFileMode)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", clean, err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		_ = d.fs.Remove(clean)
		return n, fmt.Errorf("failed to write file %s: %w", clean, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("failed to close file %s: %w", clean, err)
	}
	return n, nil
}

func (d *LocalDisk) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return nil, err
	}
	f, err := d.fs.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", clean, err)
	}
	return f, nil
}

func (d *LocalDisk) Stat(ctx context.Context, p string) (FileInfo, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := d.fs.Stat(clean)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat %s: %w", clean, err)
	}
	if info.IsDir() {
		return FileInfo{}, fmt.Errorf("%s is a directory", clean)
	}
	return FileInfo{Path: clean, Size: info.Size()}, nil
}

func (d *LocalDisk) Exists(ctx context.Context, p string) (bool, error) {
	clean, err := CleanPath(p)
	if err != nil {
		return false, err
	}
	return afero.Exists(d.fs, clean)
}

func (d *LocalDisk) Delete(ctx context.Context, p string) error {
	clean, err := CleanPath(p)
	if err != nil {
		return err
	}
	if err := d.fs.Remove(clean); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", clean, err)
	}
	return nil
}

func (d *LocalDisk) MkdirAll(ctx context.Context, dir string) (bool, error) {
	clean, err := CleanPath(dir)
	if err != nil {
		return false, err
	}
	exists, err := afero.DirExists(d.fs, clean)
	if err != nil {
		return false, fmt.Errorf("failed to check directory %s: %w", clean, err)
	}
	if exists {
		return false, nil
	}
	if err := d.fs.MkdirAll(clean, defaultDirMode); err != nil {
		return false, fmt.Errorf("failed to create directory %s: %w", clean, err)
	}
	return true, nil
}

func (d *LocalDisk) Chmod(ctx context.Context, p string, mode os.FileMode) error {
	clean, err := CleanPath(p)
	if err != nil {
		return err
	}
	return d.fs.Chmod(clean, mode)
}
