package service

import (
	"context"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
)

// PendingPromoter закрепляет временную загрузку как постоянный ассет
type PendingPromoter struct {
	pending *PendingAssetManager
	adder   *AssetAdder
	log     *logger.Logger
}

func NewPendingPromoter(pending *PendingAssetManager, adder *AssetAdder, baseLog *logger.Logger) *PendingPromoter {
	return &PendingPromoter{
		pending: pending,
		adder:   adder,
		log:     baseLog.With("component", "PendingPromoter"),
	}
}

// Promote проверяет токен, добавляет файл в коллекцию владельца и удаляет временную запись
func (p *PendingPromoter) Promote(
	ctx context.Context,
	owner domain.AssetOwner,
	id string,
	token string,
	collectionName string,
) (*domain.Asset, error) {
	pending, err := p.pending.FetchAuthorized(ctx, id, token)
	if err != nil {
		return nil, err
	}

	asset, err := p.adder.
		For(owner, p.pending.Disk(), pending.Path).
		UsingName(pending.Name).
		UsingFileName(pending.FileName).
		WithCustomProperties(pending.CustomProperties).
		Add(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	if _, err := p.pending.DeleteByID(ctx, id); err != nil {
		// Ассет уже создан; оставшуюся запись уберет очистка по TTL
		p.log.Warn("Failed to remove promoted pending asset", "pending_id", id, "error", err)
	}

	p.log.Info("Pending asset promoted", "pending_id", id, "asset_id", asset.ID)
	return asset, nil
}
