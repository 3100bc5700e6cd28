package domain

import "context"

// AssetOwner - запись, к которой можно прикреплять ассеты
type AssetOwner interface {
	AssetEntityType() string
	AssetEntityID() int64
}

// OwnerRef - простое значение AssetOwner
type OwnerRef struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

func (o OwnerRef) AssetEntityType() string { return o.Type }
func (o OwnerRef) AssetEntityID() int64    { return o.ID }

// RefOf копирует ключ области из владельца
func RefOf(owner AssetOwner) OwnerRef {
	return OwnerRef{Type: owner.AssetEntityType(), ID: owner.AssetEntityID()}
}

// AssetFinder загружает ассет по id
type AssetFinder interface {
	FindByID(ctx context.Context, id int64) (*Asset, error)
}

// AssetCreated отправляется после успешного сохранения ассета.
// Событие создается с id, а сам ассет загружается явно через Resolve.
type AssetCreated struct {
	AssetID int64
	Owner   OwnerRef

	asset *Asset
}

// NewAssetCreated создает событие с уже загруженным ассетом
func NewAssetCreated(asset *Asset, owner AssetOwner) *AssetCreated {
	return &AssetCreated{AssetID: asset.ID, Owner: RefOf(owner), asset: asset}
}

// Resolve возвращает ассет события; если известен только id, загружает его через finder
func (e *AssetCreated) Resolve(ctx context.Context, finder AssetFinder) (*Asset, error) {
	if e.asset != nil {
		return e.asset, nil
	}
	asset, err := finder.FindByID(ctx, e.AssetID)
	if err != nil {
		return nil, err
	}
	e.asset = asset
	return asset, nil
}
