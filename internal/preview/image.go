package preview

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/h2non/bimg"

	"mediavault/internal/collection"
)

const (
	defaultMaxImageSize = 1024 // максимальная сторона превью в пикселях
	defaultJPEGQuality  = 85
)

// ImageThumbnail уменьшает изображение до MaxSize по большей стороне и сохраняет в JPEG.
// Для файлов, которые не являются изображениями, вариант не создается.
type ImageThumbnail struct {
	MaxSize int
	Quality int
}

func (t ImageThumbnail) Apply(ctx context.Context, b collection.VariantBuilder) error {
	if !strings.HasPrefix(b.Asset().MIMEType, "image/") {
		return nil
	}

	r, err := b.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open original: %w", err)
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return fmt.Errorf("failed to read original: %w", err)
	}

	out, err := optimizeImage(data, t.maxSize(), t.quality())
	if err != nil {
		return err
	}
	return b.Write(ctx, out, "jpg")
}

func (t ImageThumbnail) maxSize() int {
	if t.MaxSize > 0 {
		return t.MaxSize
	}
	return defaultMaxImageSize
}

func (t ImageThumbnail) quality() int {
	if t.Quality > 0 {
		return t.Quality
	}
	return defaultJPEGQuality
}

// optimizeImage уменьшает изображение с сохранением пропорций
func optimizeImage(data []byte, maxSize, quality int) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := calculateNewDimensions(size.Width, size.Height, maxSize)

	processed, err := image.Process(bimg.Options{
		Width:   width,
		Height:  height,
		Quality: quality,
		Type:    bimg.JPEG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// calculateNewDimensions вычисляет новые размеры с сохранением пропорций.
// Изображения меньше maxSize не увеличиваются.
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width <= maxSize && height <= maxSize {
		return width, height
	}
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}
