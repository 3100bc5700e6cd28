package main

import (
	"fmt"

	"mediavault/internal/collection"
	"mediavault/internal/config"
	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/preview"
)

// registerCollections регистрирует коллекции, объявленные в конфигурации
func registerCollections(registry *collection.Registry, cols []config.CollectionConfig, log *logger.Logger) error {
	for _, c := range cols {
		def := collection.NewDefinition(c.Name)
		if c.Visibility != "" {
			def.SetVisibility(collection.Visibility(c.Visibility))
		}
		if len(c.AllowedExtensions) > 0 {
			def.SetAllowedExtensions(c.AllowedExtensions...)
		}
		if len(c.AllowedMimeTypes) > 0 {
			def.SetAllowedMimeTypes(c.AllowedMimeTypes...)
		}
		if c.MaxFileSize > 0 {
			def.SetMaxFileSize(c.MaxFileSize)
		}
		if c.MaxItems > 0 {
			def.OnlyKeepLatest(c.MaxItems)
		}
		if c.SingleFile {
			def.SingleFileCollection()
		}

		for _, v := range c.Variants {
			var t collection.Transform
			switch v.Kind {
			case "thumbnail":
				t = preview.ImageThumbnail{MaxSize: v.MaxSize}
			case "poster":
				t = preview.VideoPoster{MaxSize: v.MaxSize, TempDir: tempDir(), Log: log}
			default:
				return &domain.InvalidArgumentError{
					Field:  "variant kind",
					Value:  v.Kind,
					Reason: fmt.Sprintf("collection %s:%s variant %s expects thumbnail or poster", c.EntityType, c.Name, v.Name),
				}
			}
			if v.Extension != "" {
				def.AddVariant(v.Name, t, v.Extension)
			} else {
				def.AddVariant(v.Name, t)
			}
		}

		if err := registry.Register(collection.Ref(c.EntityType, c.Name), def); err != nil {
			return err
		}
		log.Info("Collection registered", "entity_type", c.EntityType, "collection", c.Name, "variants", len(c.Variants))
	}
	return nil
}
