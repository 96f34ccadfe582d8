package container

import (
	"context"
	"fmt"

	"vtex/migrator/internal/catalog"
	"vtex/migrator/internal/client"
	"vtex/migrator/internal/config"
	"vtex/migrator/internal/crawler"
	"vtex/migrator/internal/extract"
	"vtex/migrator/internal/imagehost"
	"vtex/migrator/internal/proxy"
	"vtex/migrator/internal/queue"
	"vtex/migrator/internal/repository"
	"vtex/migrator/internal/service"
	"vtex/migrator/internal/state"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config      *config.Config
	Gateway     client.CatalogGateway
	Repository  repository.MigrationRepository
	Queue       queue.Queue
	Checkpoints state.Manager

	Pipeline *service.Pipeline

	db    *pgxpool.Pool
	redis *redis.Client
}

// New creates a new container with all dependencies initialized. A dry
// run skips the external stores: checkpoints stay in memory and neither
// Postgres nor Redis nor the image store is touched.
func New(cfg *config.Config) (*Container, error) {
	container := &Container{
		Config: cfg,
	}

	proxySupplier, err := proxy.NewSupplier(context.Background(), cfg.Legacy.Proxies, cfg.Legacy.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize proxy supplier: %w", err)
	}

	fetcher := crawler.NewFetcher(cfg.Legacy, proxySupplier)
	discovery, err := crawler.NewDiscovery(cfg.Legacy)
	if err != nil {
		return nil, err
	}

	var extractor extract.Extractor = extract.NewHeuristicExtractor()
	if cfg.LLM.Enabled {
		extractor = extract.NewFallbackExtractor(extract.NewLLMExtractor(cfg.LLM), extractor)
		log.Info("LLM extraction enabled")
	}

	gateway := client.NewVTEXGateway(cfg.VTEX)

	var rehoster catalog.Rehoster
	if !cfg.Pipeline.DryRun {
		minioRehoster, err := imagehost.NewMinioRehoster(cfg.Images)
		if err != nil {
			return nil, err
		}
		rehoster = minioRehoster

		db, err := pgxpool.New(context.Background(),
			fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				cfg.Database.Host,
				cfg.Database.Port,
				cfg.Database.User,
				cfg.Database.Password,
				cfg.Database.Name,
			))
		if err != nil {
			return nil, err
		}
		container.db = db
		container.Repository = repository.NewMigrationRepository(db)

		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")
		container.redis = rdb

		redisQueue, err := queue.NewRedisQueue(rdb, cfg.Redis)
		if err != nil {
			return nil, err
		}
		container.Queue = redisQueue
		container.Checkpoints = state.NewRedisManager(rdb)
	} else {
		log.Info("Dry run: using in-memory checkpoints, skipping Postgres/Redis/image store")
		container.Checkpoints = state.NewMemoryManager()
	}

	container.Gateway = gateway

	resolver := catalog.NewResolver(gateway, container.Checkpoints)
	brands := catalog.NewBrandRegistry(gateway, container.Checkpoints)
	specWriter := catalog.SpecificationWriter(catalog.NewNoopSpecificationWriter())
	if cfg.Pipeline.SpecificationsEnabled {
		specWriter = catalog.NewGatewaySpecificationWriter(gateway)
		log.Info("Specification writing enabled")
	}
	materializer := catalog.NewMaterializer(
		gateway,
		container.Checkpoints,
		specWriter,
		cfg.Pipeline.InventoryQuantity,
		cfg.VTEX.DefaultWarehouseID,
	)
	enricher := catalog.NewEnricher(gateway, rehoster, container.Checkpoints, container.Queue)

	var approver service.Approver
	if cfg.Pipeline.RequireApproval {
		approver = service.NewTerminalApprover()
	} else {
		approver = service.NewAutoApprover()
	}

	container.Pipeline = service.NewPipeline(
		cfg,
		discovery,
		fetcher,
		extractor,
		resolver,
		brands,
		materializer,
		enricher,
		container.Queue,
		container.Checkpoints,
		container.Repository,
		approver,
	)

	return container, nil
}

// Run executes the migration pipeline up to the named stage
func (c *Container) Run(ctx context.Context, stage string) error {
	return c.Pipeline.Run(ctx, stage)
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	if c.db != nil {
		c.db.Close()
	}
	if c.redis != nil {
		c.redis.Close()
	}

	log.Info("Container shut down successfully")
	return nil
}
