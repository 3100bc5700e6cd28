package preview

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xfrr/goffmpeg/transcoder"

	"mediavault/internal/collection"
	"mediavault/internal/logger"
)

// VideoPoster извлекает один кадр видео (10% длительности) и сохраняет его как JPEG
type VideoPoster struct {
	MaxSize int
	TempDir string
	Log     *logger.Logger
}

func (t VideoPoster) Apply(ctx context.Context, b collection.VariantBuilder) error {
	asset := b.Asset()
	if !strings.HasPrefix(asset.MIMEType, "video/") {
		return nil
	}

	tmpPath, err := os.MkdirTemp(t.TempDir, "poster_*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpPath)

	videoPath := filepath.Join(tmpPath, "input"+filepath.Ext(asset.FileName))
	if err := copyOriginal(ctx, b, videoPath); err != nil {
		return err
	}
	outputPath := filepath.Join(tmpPath, "output.jpg")

	trans := new(transcoder.Transcoder)
	if err := trans.Initialize(videoPath, outputPath); err != nil {
		return fmt.Errorf("failed to initialize transcoder: %w", err)
	}

	trans.MediaFile().SetSeekTime(calculatePreviewTime(trans.MediaFile().Metadata().Format.Duration))
	trans.MediaFile().SetVframes(1)
	trans.MediaFile().SetOutputFormat("image2")

	// Запускаем извлечение кадра с обработкой отмены контекста
	done := trans.Run(false)
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to extract frame: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	frame, err := os.ReadFile(outputPath)
	if err != nil {
		return fmt.Errorf("failed to read frame image: %w", err)
	}

	maxSize := t.MaxSize
	if maxSize <= 0 {
		maxSize = defaultMaxImageSize
	}
	out, err := optimizeImage(frame, maxSize, defaultJPEGQuality)
	if err != nil {
		return err
	}

	if t.Log != nil {
		t.Log.Debug("Video poster extracted", "asset_id", asset.ID, "size", len(out))
	}
	return b.Write(ctx, out, "jpg")
}

func copyOriginal(ctx context.Context, b collection.VariantBuilder, dst string) error {
	r, err := b.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open original: %w", err)
	}
	defer r.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to save video data: %w", err)
	}
	return f.Close()
}

// calculatePreviewTime вычисляет время для кадра превью
func calculatePreviewTime(duration string) string {
	durationFloat, err := strconv.ParseFloat(duration, 64)
	if err != nil {
		return "00:00:01" // По умолчанию 1 секунда
	}

	if durationFloat <= 10 {
		return "00:00:01"
	}

	// Берем кадр на 10% от начала видео
	previewSeconds := durationFloat * 0.1
	hours := int(previewSeconds) / 3600
	minutes := (int(previewSeconds) % 3600) / 60
	seconds := int(previewSeconds) % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
