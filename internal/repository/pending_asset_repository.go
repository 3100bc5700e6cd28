package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"mediavault/internal/domain"
)

const pendingColumns = `id, disk, path, name, file_name, mime_type, size, custom_properties, created_at, ttl_seconds`

// PendingAssetRepository хранит метаданные временных загрузок
type PendingAssetRepository struct {
	db         *sqlx.DB
	defaultTTL time.Duration
}

func NewPendingAssetRepository(db *sqlx.DB, defaultTTL time.Duration) *PendingAssetRepository {
	return &PendingAssetRepository{db: db, defaultTTL: defaultTTL}
}

func (r *PendingAssetRepository) DefaultTTL() time.Duration {
	return r.defaultTTL
}

func (r *PendingAssetRepository) Save(ctx context.Context, p *domain.PendingAsset) error {
	query := `
        INSERT INTO pending_assets (` + pendingColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Disk,
		p.Path,
		p.Name,
		p.FileName,
		p.MIMEType,
		p.Size,
		p.CustomProperties,
		p.CreatedAt,
		p.TTLSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pending asset: %w", err)
	}
	return nil
}

func (r *PendingAssetRepository) Find(ctx context.Context, id string) (*domain.PendingAsset, error) {
	var p domain.PendingAsset
	query := `SELECT ` + pendingColumns + ` FROM pending_assets WHERE id = $1`

	err := r.db.GetContext(ctx, &p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending asset: %w", err)
	}
	return &p, nil
}

// Delete сообщает, была ли удалена запись
func (r *PendingAssetRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM pending_assets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending asset: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rowsAffected > 0, nil
}

// Expired возвращает до limit записей, у которых created_at + ttl < now
func (r *PendingAssetRepository) Expired(ctx context.Context, now time.Time, limit int) ([]domain.PendingAsset, error) {
	var items []domain.PendingAsset
	query := `
        SELECT ` + pendingColumns + `
        FROM pending_assets
        WHERE created_at + make_interval(secs => ttl_seconds) < $1
        ORDER BY created_at
        LIMIT $2`

	if err := r.db.SelectContext(ctx, &items, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to get expired pending assets: %w", err)
	}
	return items, nil
}
