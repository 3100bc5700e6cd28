package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"mediavault/internal/collection"
	"mediavault/internal/config"
	"mediavault/internal/events"
	"mediavault/internal/logger"
	"mediavault/internal/pathgen"
	"mediavault/internal/queue"
	"mediavault/internal/repository"
	"mediavault/internal/service"
	"mediavault/internal/service/s3"
	"mediavault/internal/storage"
	"mediavault/internal/tokens"
)

// app содержит все зависимости процесса
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *sqlx.DB
	redis redis.UniversalClient

	disks    *storage.Disks
	registry *collection.Registry
	jobs     *repository.JobRepository
	queue    *queue.Queue

	adder    *service.AssetAdder
	gc       *service.GarbageCollector
	variants *service.VariantsProcess
	pending  *service.PendingAssetManager
	promoter *service.PendingPromoter
	access   *service.AssetAccessService
	assets   *service.AssetService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := connectWithRetry(log, cfg.Database, 5, time.Second*5)
	if err != nil {
		return nil, err
	}
	if !skipMigrations {
		if err := runMigrations(log, cfg, migrationsPath); err != nil {
			db.Close()
			return nil, err
		}
	}

	a := &app{cfg: cfg, log: log, db: db}

	if a.disks, err = buildDisks(cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.registry = collection.NewRegistry(pathgen.New(""))
	if err := registerCollections(a.registry, cfg.Collections, log); err != nil {
		a.Close()
		return nil, err
	}

	assetRepo := repository.NewAssetRepository(db)
	pendingRepo := repository.NewPendingAssetRepository(db, cfg.Pending.DefaultTTL)
	a.jobs = repository.NewJobRepository(db)
	a.queue = queue.New(a.jobs, cfg.Queue.MaxAttempts)

	dispatcher := events.NewDispatcher(log)
	dispatcher.Subscribe(events.NewVariantsListener(a.registry, assetRepo, a.queue))

	a.adder = service.NewAssetAdder(assetRepo, a.registry, a.disks, service.DefaultSanitizer{}, dispatcher, log)
	a.gc = service.NewGarbageCollector(assetRepo, a.disks, cfg.GarbageCollector.BatchSize, log)
	a.variants = service.NewVariantsProcess(assetRepo, a.registry, a.disks, a.gc, log)
	a.access = service.NewAssetAccessService(assetRepo, a.disks, service.PublicOnlyPolicy, log)
	a.assets = service.NewAssetService(assetRepo, service.AdminKeyPolicy(cfg.Server.AdminKey), log)

	securityToken, err := a.buildTokens(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	staging, err := a.disks.Get(service.StagingDisk)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pending = service.NewPendingAssetManager(pendingRepo, staging, securityToken, log, cfg.Pending.CleanupBatch)
	a.promoter = service.NewPendingPromoter(a.pending, a.adder, log)

	return a, nil
}

// buildTokens выбирает провайдер токенов; без Redis токены живут в памяти процесса
func (a *app) buildTokens(ctx context.Context) (tokens.SecurityToken, error) {
	var store tokens.Store = tokens.NewMemoryStore()
	if a.cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = client
		store = tokens.NewRedisStore(client, "mediavault:")
	} else {
		a.log.Warn("Redis is not configured, pending tokens are kept in memory")
	}

	switch a.cfg.Pending.TokenProvider {
	case "signed":
		return tokens.NewSignedProvider([]byte(a.cfg.Pending.SigningKey), a.cfg.Pending.DefaultTTL, store, a.log), nil
	default:
		return tokens.NewStoreProvider(store, a.cfg.Pending.DefaultTTL, a.log), nil
	}
}

func buildDisks(cfg *config.Config) (*storage.Disks, error) {
	build := func(name string, dc config.DiskConfig) (storage.Disk, error) {
		switch dc.Driver {
		case "s3":
			return s3.NewClient(name, s3DiskConfig(cfg.S3, dc))
		default:
			return storage.NewLocalDisk(name, dc.Root)
		}
	}

	public, err := build(service.PublicDisk, cfg.Disks.Public)
	if err != nil {
		return nil, fmt.Errorf("failed to create public disk: %w", err)
	}
	private, err := build(service.PrivateDisk, cfg.Disks.Private)
	if err != nil {
		return nil, fmt.Errorf("failed to create private disk: %w", err)
	}
	staging, err := build(service.StagingDisk, cfg.Disks.Staging)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging disk: %w", err)
	}
	return storage.NewDisks(public, private, staging), nil
}

// s3DiskConfig собирает параметры клиента: общая секция S3 плюс бакет диска
func s3DiskConfig(sc config.S3Config, dc config.DiskConfig) *s3.Config {
	return &s3.Config{
		Endpoint:        sc.Endpoint,
		Region:          sc.Region,
		AccessKeyID:     sc.AccessKeyID,
		SecretAccessKey: sc.SecretAccessKey,
		UsePathStyle:    sc.UsePathStyle,
		Bucket:          dc.Bucket,
		Prefix:          dc.Prefix,
	}
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Error closing redis connection", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("Error closing database connection", "error", err)
	}
	a.log.Sync()
}

func tempDir() string {
	return os.TempDir()
}
