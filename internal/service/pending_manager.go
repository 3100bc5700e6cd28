package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/metrics"
	"mediavault/internal/storage"
	"mediavault/internal/tokens"
)

const (
	pendingIDBytes             = 20
	defaultPendingCleanupBatch = 500
)

// PendingUpload - файл, который нужно временно сохранить
type PendingUpload struct {
	Name             string
	FileName         string
	Content          io.Reader
	CustomProperties map[string]any
	// TTL == 0 берет значение по умолчанию из хранилища
	TTL time.Duration
}

// PendingAssetManager хранит временные загрузки до их закрепления или истечения
type PendingAssetManager struct {
	storage      PendingStorage
	disk         storage.Disk
	tokens       tokens.SecurityToken
	sanitizer    FileNameSanitizer
	log          *logger.Logger
	now          func() time.Time
	cleanupBatch int
}

func NewPendingAssetManager(
	pendingStorage PendingStorage,
	disk storage.Disk,
	securityToken tokens.SecurityToken,
	baseLog *logger.Logger,
	cleanupBatch int,
) *PendingAssetManager {
	if cleanupBatch <= 0 {
		cleanupBatch = defaultPendingCleanupBatch
	}
	return &PendingAssetManager{
		storage:      pendingStorage,
		disk:         disk,
		tokens:       securityToken,
		sanitizer:    DefaultSanitizer{},
		log:          baseLog.With("component", "PendingAssetManager"),
		now:          time.Now,
		cleanupBatch: cleanupBatch,
	}
}

// Disk возвращает диск, где лежат временные файлы
func (m *PendingAssetManager) Disk() storage.Disk { return m.disk }

// Store сохраняет файл и метаданные под новым id и выдает токен
func (m *PendingAssetManager) Store(ctx context.Context, upload PendingUpload) (*domain.PendingAsset, string, error) {
	id, err := newPendingID()
	if err != nil {
		return nil, "", &domain.PendingAssetError{Op: "generate id", Err: err}
	}

	fileName, err := m.sanitizer.Sanitize(upload.FileName)
	if err != nil {
		return nil, "", &domain.FileNameNotAllowedError{FileName: upload.FileName, Reason: err.Error()}
	}

	ttl := upload.TTL
	if ttl <= 0 {
		ttl = m.storage.DefaultTTL()
	}
	// Срок хранится в целых секундах, доли секунды округляются вверх
	ttlSeconds := int64((ttl + time.Second - 1) / time.Second)

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", &domain.PendingAssetError{ID: id, Op: "read upload", Err: err}
	}
	head = head[:n]

	p := &domain.PendingAsset{
		ID:               id,
		Disk:             m.disk.Name(),
		Path:             path.Join(id, fileName),
		Name:             upload.Name,
		FileName:         fileName,
		MIMEType:         detectMimeType(head, fileName),
		CustomProperties: upload.CustomProperties,
		CreatedAt:        m.now().UTC(),
		TTLSeconds:       ttlSeconds,
	}
	if p.Name == "" {
		p.Name = domain.FileStem(fileName)
	}

	size, err := m.disk.Put(ctx, p.Path, io.MultiReader(bytes.NewReader(head), upload.Content))
	if err != nil {
		m.deletePayload(ctx, p)
		return nil, "", &domain.PendingAssetError{ID: id, Op: "store payload", Err: err}
	}
	p.Size = size

	if err := m.storage.Save(ctx, p); err != nil {
		m.deletePayload(ctx, p)
		return nil, "", &domain.PendingAssetError{ID: id, Op: "save metadata", Err: err}
	}

	token, err := m.tokens.GenerateToken(ctx, id, time.Duration(ttlSeconds)*time.Second)
	if err != nil {
		if _, delErr := m.storage.Delete(ctx, id); delErr != nil {
			m.log.Warn("Failed to roll back pending metadata", "pending_id", id, "error", delErr)
		}
		m.deletePayload(ctx, p)
		return nil, "", &domain.PendingAssetError{ID: id, Op: "generate token", Err: err}
	}

	m.log.Info("Pending asset stored", "pending_id", id, "size", size, "ttl_seconds", p.TTLSeconds)
	return p, token, nil
}

// FetchByID возвращает временную загрузку. Истекшая считается отсутствующей
// и удаляется; ошибка удаления только логируется.
func (m *PendingAssetManager) FetchByID(ctx context.Context, id string) (*domain.PendingAsset, error) {
	p, err := m.storage.Find(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, &domain.PendingAssetError{ID: id, Op: "fetch", Err: err}
	}

	if p.IsExpired(m.now()) {
		m.discard(ctx, p)
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// FetchAuthorized загружает запись и проверяет токен; пустой token берется из канала провайдера
func (m *PendingAssetManager) FetchAuthorized(ctx context.Context, id, token string) (*domain.PendingAsset, error) {
	p, err := m.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.tokens.ValidateToken(ctx, p, token) {
		return nil, &domain.TokenInvalidError{ID: id}
	}
	return p, nil
}

// Open открывает содержимое временной загрузки
func (m *PendingAssetManager) Open(ctx context.Context, p *domain.PendingAsset) (io.ReadCloser, error) {
	r, err := m.disk.Open(ctx, p.Path)
	if err != nil {
		return nil, &domain.PendingAssetError{ID: p.ID, Op: "open payload", Err: err}
	}
	return r, nil
}

// DeleteByID удаляет запись, файл и токен; повторный вызов возвращает false
func (m *PendingAssetManager) DeleteByID(ctx context.Context, id string) (bool, error) {
	p, err := m.storage.Find(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &domain.PendingAssetError{ID: id, Op: "delete", Err: err}
	}

	deleted, err := m.storage.Delete(ctx, id)
	if err != nil {
		return false, &domain.PendingAssetError{ID: id, Op: "delete", Err: err}
	}
	m.deletePayload(ctx, p)
	if err := m.tokens.DeleteToken(ctx, id); err != nil {
		m.log.Warn("Failed to delete pending token", "pending_id", id, "error", err)
	}
	return deleted, nil
}

// CleanExpiredPendingAssets удаляет все истекшие загрузки и возвращает их число
func (m *PendingAssetManager) CleanExpiredPendingAssets(ctx context.Context) (int, error) {
	total := 0
	for {
		expired, err := m.storage.Expired(ctx, m.now(), m.cleanupBatch)
		if err != nil {
			return total, fmt.Errorf("failed to get expired pending assets: %w", err)
		}

		removed := 0
		for i := range expired {
			if m.discard(ctx, &expired[i]) {
				removed++
			}
		}
		total += removed

		// Пачка без единого удаления означает постоянную ошибку, выходим до следующего запуска
		if len(expired) < m.cleanupBatch || removed == 0 {
			break
		}
	}

	if total > 0 {
		m.log.Info("Expired pending assets removed", "count", total)
	}
	return total, nil
}

// discard удаляет истекшую запись без возврата ошибок
func (m *PendingAssetManager) discard(ctx context.Context, p *domain.PendingAsset) bool {
	deleted, err := m.storage.Delete(ctx, p.ID)
	if err != nil {
		m.log.Warn("Failed to delete expired pending asset", "pending_id", p.ID, "error", err)
		return false
	}
	m.deletePayload(ctx, p)
	if err := m.tokens.DeleteToken(ctx, p.ID); err != nil {
		m.log.Warn("Failed to delete pending token", "pending_id", p.ID, "error", err)
	}
	if deleted {
		metrics.PendingExpired.Inc()
	}
	return deleted
}

func (m *PendingAssetManager) deletePayload(ctx context.Context, p *domain.PendingAsset) {
	if err := m.disk.Delete(ctx, p.Path); err != nil {
		m.log.Warn("Failed to delete pending payload", "pending_id", p.ID, "path", p.Path, "error", err)
	}
}

// newPendingID возвращает 160 случайных бит в hex
func newPendingID() (string, error) {
	b := make([]byte, pendingIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
