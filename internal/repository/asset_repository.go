package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"mediavault/internal/domain"
)

const assetColumns = `id, uuid, entity_type, entity_id, collection, disk, name, file_name, mime_type,
        size, path, order_column, properties, created_at, updated_at, deleted_at`

type AssetRepository struct {
	db *sqlx.DB
}

func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create сохраняет ассет и заполняет id и временные метки
func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	query := `
        INSERT INTO assets (uuid, entity_type, entity_id, collection, disk, name, file_name,
                            mime_type, size, path, order_column, properties)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		asset.UUID,
		asset.EntityType,
		asset.EntityID,
		asset.Collection,
		asset.Disk,
		asset.Name,
		asset.FileName,
		asset.MIMEType,
		asset.Size,
		asset.Path,
		asset.Order,
		asset.Properties,
	).Scan(&asset.ID, &asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}

	return nil
}

// FindByID возвращает не удаленный ассет
func (r *AssetRepository) FindByID(ctx context.Context, id int64) (*domain.Asset, error) {
	var asset domain.Asset
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1 AND deleted_at IS NULL`

	err := r.db.GetContext(ctx, &asset, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %d: %w", id, err)
	}

	return &asset, nil
}

// ListActiveInScope возвращает не удаленные ассеты области, новые первыми.
// При равном created_at выше стоит больший id.
func (r *AssetRepository) ListActiveInScope(ctx context.Context, scope domain.Scope) ([]domain.Asset, error) {
	var assets []domain.Asset
	query := `
        SELECT ` + assetColumns + `
        FROM assets
        WHERE entity_type = $1 AND entity_id = $2 AND collection = $3 AND deleted_at IS NULL
        ORDER BY created_at DESC, id DESC`

	err := r.db.SelectContext(ctx, &assets, query, scope.EntityType, scope.EntityID, scope.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets of %s: %w", scope, err)
	}

	return assets, nil
}

// SoftDelete помечает ассеты удаленными
func (r *AssetRepository) SoftDelete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
        UPDATE assets
        SET deleted_at = CURRENT_TIMESTAMP,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = ANY($1) AND deleted_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to soft delete assets: %w", err)
	}
	return nil
}

// UpdateProperties перезаписывает только колонку properties
func (r *AssetRepository) UpdateProperties(ctx context.Context, id int64, props domain.Properties) error {
	query := `
        UPDATE assets
        SET properties = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, props, id)
	if err != nil {
		return fmt.Errorf("failed to update asset properties: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// FindSoftDeleted возвращает до limit удаленных ассетов, ожидающих очистки
func (r *AssetRepository) FindSoftDeleted(ctx context.Context, limit int) ([]domain.Asset, error) {
	var assets []domain.Asset
	query := `
        SELECT ` + assetColumns + `
        FROM assets
        WHERE deleted_at IS NOT NULL
        ORDER BY deleted_at, id
        LIMIT $1`

	if err := r.db.SelectContext(ctx, &assets, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get soft deleted assets: %w", err)
	}
	return assets, nil
}

// ForceDelete окончательно удаляет строку ассета
func (r *AssetRepository) ForceDelete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete asset %d: %w", id, err)
	}
	return nil
}
