package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mediavault/internal/collection"
	"mediavault/internal/domain"
)

var user = domain.OwnerRef{Type: "user", ID: 1}

func TestAddStoresAssetAndEmitsEvent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs"))
	env.upload(t, "up/notes.txt", "hello world")

	asset, err := env.adder.For(user, env.staging, "up/notes.txt").
		WithCustomProperties(map[string]any{"source": "web"}).
		SetOrder(3).
		Add(context.Background(), "docs")
	require.NoError(t, err)

	require.Equal(t, "notes", asset.Name)
	require.Equal(t, "notes.txt", asset.FileName)
	require.Equal(t, "text/plain", asset.MIMEType)
	require.Equal(t, int64(11), asset.Size)
	require.Equal(t, 3, asset.Order)
	require.Equal(t, PublicDisk, asset.Disk)
	require.Equal(t, "web", asset.Properties.Custom["source"])

	require.True(t, exists(t, env.public, asset.Path))
	require.False(t, exists(t, env.staging, "up/notes.txt"))

	stored, err := env.assets.FindByID(context.Background(), asset.ID)
	require.NoError(t, err)
	require.Equal(t, asset.Path, stored.Path)

	require.Len(t, env.events.events, 1)
	require.Equal(t, asset.ID, env.events.events[0].AssetID)
	require.Equal(t, user, env.events.events[0].Owner)
}

func TestAddPreservingOriginalKeepsSource(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs"))
	env.upload(t, "up/notes.txt", "hello")

	asset, err := env.adder.For(user, env.staging, "up/notes.txt").
		PreservingOriginal().
		UsingName("My notes").
		UsingFileName("renamed.txt").
		Add(context.Background(), "docs")
	require.NoError(t, err)
	require.Equal(t, "My notes", asset.Name)
	require.Equal(t, "renamed.txt", asset.FileName)
	require.True(t, exists(t, env.staging, "up/notes.txt"))
	require.True(t, exists(t, env.public, asset.Path))
}

func TestAddPrivateCollectionUsesPrivateDisk(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("contracts").SetVisibility(collection.VisibilityPrivate))
	env.upload(t, "c.pdf", "%PDF-1.4 contract")

	asset, err := env.adder.For(user, env.staging, "c.pdf").Add(context.Background(), "contracts")
	require.NoError(t, err)
	require.Equal(t, PrivateDisk, asset.Disk)
	require.Equal(t, "application/pdf", asset.MIMEType)
	require.True(t, exists(t, env.private, asset.Path))
	require.False(t, exists(t, env.public, asset.Path))
}

func TestAddRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		def      *collection.Definition
		file     string
		content  string
		target   any
		sanitize SanitizerFunc
	}{
		{
			name:    "extension",
			def:     collection.NewDefinition("images").SetAllowedExtensions("png"),
			file:    "evil.exe",
			content: "MZ",
			target:  new(*domain.InvalidFileExtensionError),
		},
		{
			name:    "too large",
			def:     collection.NewDefinition("images").SetMaxFileSize(4),
			file:    "big.txt",
			content: "12345",
			target:  new(*domain.FileTooLargeError),
		},
		{
			name:    "mime type",
			def:     collection.NewDefinition("images").SetAllowedMimeTypes("image/*"),
			file:    "fake.png",
			content: "just text",
			target:  new(*domain.InvalidMimeTypeError),
		},
		{
			name:    "hidden file",
			def:     collection.NewDefinition("images"),
			file:    ".htaccess",
			content: "deny",
			target:  new(*domain.FileNameNotAllowedError),
		},
		{
			name:    "sanitizer refusal",
			def:     collection.NewDefinition("images"),
			file:    "ok.txt",
			content: "text",
			target:  new(*domain.FileNameNotAllowedError),
			sanitize: func(string) (string, error) {
				return "", errors.New("blocked")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tc.sanitize != nil {
				env.adder = NewAssetAdder(env.assets, env.registry, env.disks, tc.sanitize, env.events, env.log)
			}
			env.register(t, "user", tc.def)
			env.upload(t, "in/"+tc.file, tc.content)

			_, err := env.adder.For(user, env.staging, "in/"+tc.file).Add(context.Background(), "images")
			require.Error(t, err)
			require.ErrorAs(t, err, tc.target)

			_, presentable := domain.AsPresentable(err)
			require.True(t, presentable)
			require.Equal(t, 0, env.assets.Count())
			require.True(t, exists(t, env.staging, "in/"+tc.file))
			require.Empty(t, env.events.events)
		})
	}
}

func TestAddTooLargeReportsLimit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("small").SetMaxFileSize(10))
	env.upload(t, "a.txt", strings.Repeat("x", 11))

	_, err := env.adder.For(user, env.staging, "a.txt").Add(context.Background(), "small")
	var tooLarge *domain.FileTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	require.Equal(t, int64(10), tooLarge.Allowed)
	require.Equal(t, int64(11), tooLarge.Size)

	env.upload(t, "b.txt", strings.Repeat("x", 10))
	_, err = env.adder.For(user, env.staging, "b.txt").Add(context.Background(), "small")
	require.NoError(t, err)
}

func TestAddMissingSourceIsInvalidFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs"))

	_, err := env.adder.For(user, env.staging, "nope.txt").Add(context.Background(), "docs")
	var invalid *domain.InvalidFileError
	require.ErrorAs(t, err, &invalid)
}

func TestAddUnknownCollection(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.upload(t, "a.txt", "a")

	_, err := env.adder.For(user, env.staging, "a.txt").Add(context.Background(), "docs")
	var invalid *domain.InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
}

func TestAddDatabaseFailureRollsBackFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("docs"))
	env.upload(t, "a.txt", "content")
	env.assets.FailCreate = errors.New("connection refused")

	_, err := env.adder.For(user, env.staging, "a.txt").Add(context.Background(), "docs")
	var dbErr *domain.DatabaseError
	require.ErrorAs(t, err, &dbErr)

	files := 0
	walkFiles(t, env.public, func(string) { files++ })
	require.Zero(t, files)
	require.True(t, exists(t, env.staging, "a.txt"))
	require.Empty(t, env.events.events)
}

func TestAddSingleFileCollectionReplacesPrevious(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("avatar").SingleFileCollection())
	env.upload(t, "a.txt", "first")
	env.upload(t, "b.txt", "second")

	first, err := env.adder.For(user, env.staging, "a.txt").Add(context.Background(), "avatar")
	require.NoError(t, err)
	env.now = env.now.Add(-1)
	second, err := env.adder.For(user, env.staging, "b.txt").Add(context.Background(), "avatar")
	require.NoError(t, err)

	active, err := env.assets.ListActiveInScope(context.Background(), second.Scope())
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, second.ID, active[0].ID)

	old, ok := env.assets.Get(first.ID)
	require.True(t, ok)
	require.True(t, old.IsDeleted())
}

func TestAddKeepLatestWithEqualTimestamps(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "post", collection.NewDefinition("gallery").OnlyKeepLatest(2))
	post := domain.OwnerRef{Type: "post", ID: 9}

	var ids []int64
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		env.upload(t, name, name)
		asset, err := env.adder.For(post, env.staging, name).Add(context.Background(), "gallery")
		require.NoError(t, err)
		ids = append(ids, asset.ID)
	}

	active, err := env.assets.ListActiveInScope(context.Background(), domain.Scope{EntityType: "post", EntityID: 9, Collection: "gallery"})
	require.NoError(t, err)
	require.Len(t, active, 2)
	require.Equal(t, []int64{ids[2], ids[1]}, []int64{active[0].ID, active[1].ID})

	evicted, ok := env.assets.Get(ids[0])
	require.True(t, ok)
	require.True(t, evicted.IsDeleted())
}

func TestAddEvictionIsScopedToOwner(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.register(t, "user", collection.NewDefinition("avatar").SingleFileCollection())
	env.upload(t, "a.txt", "a")
	env.upload(t, "b.txt", "b")

	a, err := env.adder.For(domain.OwnerRef{Type: "user", ID: 1}, env.staging, "a.txt").Add(context.Background(), "avatar")
	require.NoError(t, err)
	_, err = env.adder.For(domain.OwnerRef{Type: "user", ID: 2}, env.staging, "b.txt").Add(context.Background(), "avatar")
	require.NoError(t, err)

	kept, ok := env.assets.Get(a.ID)
	require.True(t, ok)
	require.False(t, kept.IsDeleted())
}

func TestDefaultSanitizer(t *testing.T) {
	t.Parallel()

	s := DefaultSanitizer{}
	name, err := s.Sanitize("my file?.txt")
	require.NoError(t, err)
	require.Equal(t, "my file-.txt", name)

	name, err = s.Sanitize("../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, "passwd", name)

	_, err = s.Sanitize("")
	require.Error(t, err)
	_, err = s.Sanitize(".env")
	require.Error(t, err)
	_, err = s.Sanitize(strings.Repeat("a", 256))
	require.Error(t, err)
}
