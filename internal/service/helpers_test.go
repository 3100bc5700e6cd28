package service

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"mediavault/internal/collection"
	"mediavault/internal/domain"
	"mediavault/internal/logger"
	"mediavault/internal/pathgen"
	"mediavault/internal/repository/memory"
	"mediavault/internal/storage"
)

var pngHeader = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00"

type eventRecorder struct {
	mu     sync.Mutex
	events []*domain.AssetCreated
}

func (r *eventRecorder) AssetCreated(ctx context.Context, e *domain.AssetCreated) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type testEnv struct {
	now      time.Time
	assets   *memory.AssetRepository
	registry *collection.Registry
	public   *storage.LocalDisk
	private  *storage.LocalDisk
	staging  *storage.LocalDisk
	disks    *storage.Disks
	events   *eventRecorder
	adder    *AssetAdder
	log      *logger.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		now:      time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		registry: collection.NewRegistry(pathgen.New("")),
		public:   storage.NewFsDisk(PublicDisk, afero.NewMemMapFs()),
		private:  storage.NewFsDisk(PrivateDisk, afero.NewMemMapFs()),
		staging:  storage.NewFsDisk(StagingDisk, afero.NewMemMapFs()),
		events:   &eventRecorder{},
		log:      logger.NewNop(),
	}
	env.assets = memory.NewAssetRepository(func() time.Time { return env.now })
	env.disks = storage.NewDisks(env.public, env.private, env.staging)
	env.adder = NewAssetAdder(env.assets, env.registry, env.disks, nil, env.events, env.log)
	return env
}

func (e *testEnv) register(t *testing.T, entityType string, def *collection.Definition) {
	t.Helper()
	require.NoError(t, e.registry.Register(collection.Ref(entityType, def.Name()), def))
}

// upload кладет файл на staging диск
func (e *testEnv) upload(t *testing.T, p, content string) {
	t.Helper()
	_, err := e.staging.Put(context.Background(), p, strings.NewReader(content))
	require.NoError(t, err)
}

func exists(t *testing.T, d storage.Disk, p string) bool {
	t.Helper()
	ok, err := d.Exists(context.Background(), p)
	require.NoError(t, err)
	return ok
}

// failingDisk отказывает в удалении указанных путей
type failingDisk struct {
	storage.Disk
	failDelete map[string]error
}

func (d *failingDisk) Delete(ctx context.Context, p string) error {
	if err := d.failDelete[p]; err != nil {
		return err
	}
	return d.Disk.Delete(ctx, p)
}

func walkFiles(t *testing.T, d *storage.LocalDisk, fn func(p string)) {
	t.Helper()
	err := afero.Walk(d.Fs(), "", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			fn(p)
		}
		return nil
	})
	require.NoError(t, err)
}
