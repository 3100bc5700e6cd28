package service

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"

	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/storage"
)

// AccessPolicy решает, можно ли отдать содержимое ассета
type AccessPolicy interface {
	HasAccessPermission(ctx context.Context, asset *domain.Asset) bool
}

// AccessPolicyFunc позволяет использовать функцию как AccessPolicy
type AccessPolicyFunc func(ctx context.Context, asset *domain.Asset) bool

func (f AccessPolicyFunc) HasAccessPermission(ctx context.Context, asset *domain.Asset) bool {
	return f(ctx, asset)
}

// PublicOnlyPolicy разрешает доступ только к ассетам публичного диска
var PublicOnlyPolicy = AccessPolicyFunc(func(ctx context.Context, asset *domain.Asset) bool {
	return asset.Disk == PublicDisk
})

// AssetContent - открытый файл ассета или его варианта
type AssetContent struct {
	Asset    *domain.Asset
	Reader   io.ReadCloser
	FileName string
	MIMEType string
	Size     int64
}

type AssetAccessService struct {
	assets AssetStore
	disks  *storage.Disks
	policy AccessPolicy
	log    *logger.Logger
}

func NewAssetAccessService(assets AssetStore, disks *storage.Disks, policy AccessPolicy, baseLog *logger.Logger) *AssetAccessService {
	if policy == nil {
		policy = PublicOnlyPolicy
	}
	return &AssetAccessService{
		assets: assets,
		disks:  disks,
		policy: policy,
		log:    baseLog.With("component", "AssetAccessService"),
	}
}

// Authorize загружает ассет и проверяет политику доступа
func (s *AssetAccessService) Authorize(ctx context.Context, id int64) (*domain.Asset, error) {
	asset, err := s.assets.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.AssetNotFoundError{ID: id}
	}
	if err != nil {
		return nil, &domain.DatabaseError{Op: "load asset", Err: err}
	}

	if !s.policy.HasAccessPermission(ctx, asset) {
		return nil, ErrAccessDenied
	}
	return asset, nil
}

// Open открывает оригинал (variant == "") или вариант ассета
func (s *AssetAccessService) Open(ctx context.Context, id int64, variant string) (*AssetContent, error) {
	asset, err := s.Authorize(ctx, id)
	if err != nil {
		return nil, err
	}

	content := &AssetContent{
		Asset:    asset,
		FileName: asset.FileName,
		MIMEType: asset.MIMEType,
		Size:     asset.Size,
	}
	filePath := asset.Path

	if variant != "" {
		v, ok := asset.Variant(variant)
		if !ok || !v.Processed {
			return nil, domain.ErrNotFound
		}
		filePath = v.Path
		content.FileName = path.Base(v.Path)
		content.Size = v.Size
		content.MIMEType = mime.TypeByExtension(path.Ext(v.Path))
		if content.MIMEType == "" {
			content.MIMEType = "application/octet-stream"
		}
	}

	disk, err := s.disks.Get(asset.Disk)
	if err != nil {
		return nil, err
	}
	r, err := disk.Open(ctx, filePath)
	if err != nil {
		s.log.Error("Failed to open asset file", "asset_id", id, "path", filePath, "error", err)
		return nil, err
	}
	content.Reader = r
	return content, nil
}
