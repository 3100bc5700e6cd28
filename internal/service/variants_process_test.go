package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"mediavault/internal/collection"
	"mediavault/internal/domain"
	"mediavault/internal/queue"
)

// upperTransform пишет содержимое оригинала в верхнем регистре
func upperTransform(ext string) collection.TransformFunc {
	return func(ctx context.Context, b collection.VariantBuilder) error {
		r, err := b.Open(ctx)
		if err != nil {
			return err
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		for i, c := range data {
			if c >= 'a' && c <= 'z' {
				data[i] = c - 32
			}
		}
		return b.Write(ctx, data, ext)
	}
}

func addDoc(t *testing.T, env *testEnv, name, content string) *domain.Asset {
	t.Helper()
	env.upload(t, name, content)
	asset, err := env.adder.For(user, env.staging, name).Add(context.Background(), "docs")
	require.NoError(t, err)
	return asset
}

func TestVariantsProcessReplacesByName(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs").AddVariant("shout", upperTransform("")))
	asset := addDoc(t, env, "note.txt", "hello")

	p := NewVariantsProcess(env.assets, env.registry, env.disks, nil, env.log)
	payload := domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"}

	require.NoError(t, p.Run(context.Background(), payload))
	require.NoError(t, p.Run(context.Background(), payload))

	stored, err := env.assets.FindByID(context.Background(), asset.ID)
	require.NoError(t, err)
	require.Len(t, stored.Properties.Variants, 1)

	v, ok := stored.Variant("shout")
	require.True(t, ok)
	require.True(t, v.Processed)
	require.Equal(t, int64(5), v.Size)
	require.Equal(t, "note-shout.txt", v.Path[len(v.Path)-len("note-shout.txt"):])
	require.Equal(t, v.Path, v.Paths.Relative)
	require.Equal(t, env.public.BaseDir(), v.Paths.BaseDir)

	r, err := env.public.Open(context.Background(), v.Path)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, "HELLO", string(data))
}

func TestVariantsProcessExtensionPrecedence(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs").
		AddVariant("forced", upperTransform("jpg"), "webp").
		AddVariant("fromTransform", upperTransform("md")).
		AddVariant("inherited", upperTransform("")))
	asset := addDoc(t, env, "note.txt", "x")

	p := NewVariantsProcess(env.assets, env.registry, env.disks, nil, env.log)
	require.NoError(t, p.Run(context.Background(), domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"}))

	stored, err := env.assets.FindByID(context.Background(), asset.ID)
	require.NoError(t, err)
	for name, suffix := range map[string]string{
		"forced":        "note-forced.webp",
		"fromTransform": "note-fromTransform.md",
		"inherited":     "note-inherited.txt",
	} {
		v, ok := stored.Variant(name)
		require.True(t, ok, name)
		require.Equal(t, suffix, v.Path[len(v.Path)-len(suffix):])
	}
}

func TestVariantsProcessFailureDiscardsPartial(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	calls := 0
	env.register(t, "user", collection.NewDefinition("docs").
		AddVariant("first", upperTransform("")).
		AddVariant("broken", collection.TransformFunc(func(ctx context.Context, b collection.VariantBuilder) error {
			return errors.New("decoder crashed")
		})).
		AddVariant("never", collection.TransformFunc(func(ctx context.Context, b collection.VariantBuilder) error {
			calls++
			return nil
		})))
	asset := addDoc(t, env, "note.txt", "x")

	p := NewVariantsProcess(env.assets, env.registry, env.disks, nil, env.log)
	err := p.Run(context.Background(), domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"})

	var variantErr *domain.FileVariantError
	require.ErrorAs(t, err, &variantErr)
	require.Equal(t, "broken", variantErr.Variant)
	require.False(t, queue.IsFatal(err))
	require.Zero(t, calls)

	stored, err := env.assets.FindByID(context.Background(), asset.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Properties.Variants)

	p.PersistPartial = true
	require.Error(t, p.Run(context.Background(), domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"}))
	stored, err = env.assets.FindByID(context.Background(), asset.ID)
	require.NoError(t, err)
	require.Len(t, stored.Properties.Variants, 1)
	require.Equal(t, "first", stored.Properties.Variants[0].Name)
}

func TestVariantsProcessDeclinedTransform(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs").
		AddVariant("skip", collection.TransformFunc(func(ctx context.Context, b collection.VariantBuilder) error {
			return nil
		})))
	asset := addDoc(t, env, "note.txt", "x")

	p := NewVariantsProcess(env.assets, env.registry, env.disks, nil, env.log)
	require.NoError(t, p.Run(context.Background(), domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"}))

	stored, err := env.assets.FindByID(context.Background(), asset.ID)
	require.NoError(t, err)
	require.Empty(t, stored.Properties.Variants)
}

func TestVariantsProcessMissingAssetIsFatal(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs").AddVariant("shout", upperTransform("")))
	asset := addDoc(t, env, "note.txt", "x")
	require.NoError(t, env.assets.SoftDelete(context.Background(), asset.ID))

	p := NewVariantsProcess(env.assets, env.registry, env.disks, nil, env.log)
	err := p.Run(context.Background(), domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"})
	require.True(t, queue.IsFatal(err))

	var notFound *domain.AssetNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestVariantsProcessHandlePayload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs").AddVariant("shout", upperTransform("")))
	asset := addDoc(t, env, "note.txt", "abc")

	p := NewVariantsProcess(env.assets, env.registry, env.disks, nil, env.log)
	require.Equal(t, domain.VariantsJobType, p.Type())

	err := p.Handle(context.Background(), &domain.Job{Payload: []byte(`{not json`)})
	require.True(t, queue.IsFatal(err))

	payload, err := json.Marshal(domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"})
	require.NoError(t, err)
	require.NoError(t, p.Handle(context.Background(), &domain.Job{Payload: payload}))

	err = p.Handle(context.Background(), &domain.Job{Payload: []byte(`{"assetId":1,"definitionRef":"user:unknown"}`)})
	require.True(t, queue.IsFatal(err))
}

func TestVariantsProcessRunsGarbageCollector(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs").AddVariant("shout", upperTransform("")))
	old := addDoc(t, env, "old.txt", "old")
	asset := addDoc(t, env, "new.txt", "new")
	require.NoError(t, env.assets.SoftDelete(context.Background(), old.ID))

	gc := NewGarbageCollector(env.assets, env.disks, 0, env.log)
	p := NewVariantsProcess(env.assets, env.registry, env.disks, gc, env.log)
	require.NoError(t, p.Run(context.Background(), domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"}))

	_, ok := env.assets.Get(old.ID)
	require.False(t, ok)
	require.False(t, exists(t, env.public, old.Path))
}

func TestVariantsProcessFailedRunLeavesNoFilesAfterGC(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs").
		AddVariant("first", upperTransform("")).
		AddVariant("broken", collection.TransformFunc(func(ctx context.Context, b collection.VariantBuilder) error {
			return errors.New("decoder crashed")
		})))
	asset := addDoc(t, env, "note.txt", "x")

	p := NewVariantsProcess(env.assets, env.registry, env.disks, nil, env.log)
	require.Error(t, p.Run(context.Background(), domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"}))

	require.NoError(t, env.assets.SoftDelete(context.Background(), asset.ID))
	purged, err := NewGarbageCollector(env.assets, env.disks, 0, env.log).Collect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, purged)

	var left []string
	walkFiles(t, env.public, func(p string) { left = append(left, p) })
	require.Empty(t, left)
}

func TestVariantsProcessReplacedFileKeptUntilPersisted(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ext := "md"
	env.register(t, "user", collection.NewDefinition("docs").
		AddVariant("shout", collection.TransformFunc(func(ctx context.Context, b collection.VariantBuilder) error {
			return upperTransform(ext)(ctx, b)
		})).
		AddVariant("gate", collection.TransformFunc(func(ctx context.Context, b collection.VariantBuilder) error {
			if ext == "rst" {
				return errors.New("gate closed")
			}
			return nil
		})))
	asset := addDoc(t, env, "note.txt", "x")

	p := NewVariantsProcess(env.assets, env.registry, env.disks, nil, env.log)
	payload := domain.VariantsJobPayload{AssetID: asset.ID, DefinitionRef: "user:docs"}
	require.NoError(t, p.Run(context.Background(), payload))

	stored, err := env.assets.FindByID(context.Background(), asset.ID)
	require.NoError(t, err)
	first, ok := stored.Variant("shout")
	require.True(t, ok)

	// Неудачный запуск не трогает сохраненный вариант и не оставляет новый файл
	ext = "rst"
	require.Error(t, p.Run(context.Background(), payload))
	require.True(t, exists(t, env.public, first.Path))

	var files []string
	walkFiles(t, env.public, func(p string) { files = append(files, p) })
	require.Len(t, files, 2)

	// Успешный запуск с новым путем удаляет прежний файл
	ext = "txt"
	require.NoError(t, p.Run(context.Background(), payload))
	stored, err = env.assets.FindByID(context.Background(), asset.ID)
	require.NoError(t, err)
	second, ok := stored.Variant("shout")
	require.True(t, ok)
	require.NotEqual(t, first.Path, second.Path)
	require.False(t, exists(t, env.public, first.Path))
	require.True(t, exists(t, env.public, second.Path))
}
