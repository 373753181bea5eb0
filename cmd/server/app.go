package main

import (
	"context"
	"fmt"

	approuting "github.com/disposisi/backend/internal/application/routing"
	"github.com/disposisi/backend/internal/domain/routing"
	"github.com/disposisi/backend/internal/domain/shared"
	"github.com/disposisi/backend/internal/infrastructure/cache"
	"github.com/disposisi/backend/internal/infrastructure/config"
	"github.com/disposisi/backend/internal/infrastructure/directory"
	"github.com/disposisi/backend/internal/infrastructure/document"
	"github.com/disposisi/backend/internal/infrastructure/event"
	"github.com/disposisi/backend/internal/infrastructure/logger"
	"github.com/disposisi/backend/internal/infrastructure/notify"
	"github.com/disposisi/backend/internal/infrastructure/persistence"
	"github.com/disposisi/backend/internal/infrastructure/telemetry"
	"github.com/disposisi/backend/internal/interfaces/http/handler"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// application holds the assembled services and everything that must be
// released on shutdown
type application struct {
	commands *approuting.RoutingService
	queries  *approuting.QueryService
	history  *approuting.HistoryAssembler

	healthChecks map[string]handler.HealthCheck

	closers []func(ctx context.Context)
}

func (a *application) onClose(fn func(ctx context.Context)) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition
func (a *application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

// storage is the persistence side of the application: the node repository
// plus the directory and document adapters that match the database driver
type storage struct {
	repo      routing.RoutingNodeRepository
	gormRepo  *persistence.GormRoutingNodeRepository
	db        *persistence.Database
	directory routing.DirectoryProvider
	documents routing.DocumentStore
}

func buildApp(ctx context.Context, cfg *config.Config, meter metric.Meter, log *zap.Logger) (*application, error) {
	app := &application{healthChecks: make(map[string]handler.HealthCheck)}
	fail := func(err error) (*application, error) {
		app.close(ctx)
		return nil, err
	}

	store, err := buildStorage(ctx, cfg, app, log)
	if err != nil {
		return fail(err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		app.onClose(func(context.Context) {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		})
		app.healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	documents := store.documents
	if cfg.Document.Driver == "s3" {
		s3Store, err := document.NewS3Store(ctx, cfg.Document.S3, log)
		if err != nil {
			return fail(fmt.Errorf("failed to create document store: %w", err))
		}
		documents = s3Store
	}

	cachedDirectory := directory.NewCachedProvider(store.directory, cfg.Directory.CacheTTL, cfg.Directory.CacheCapacity)
	app.onClose(func(context.Context) { cachedDirectory.Close() })

	routingMetrics, err := telemetry.NewRoutingMetrics(meter)
	if err != nil {
		return fail(fmt.Errorf("failed to create routing metrics: %w", err))
	}

	policy := directory.RolePolicy(cfg.Routing.ForwardRoles)
	app.commands = approuting.NewRoutingService(store.repo, cachedDirectory, documents, policy, log.Named("routing"))
	app.commands.SetForbidBounceBack(cfg.Routing.ForbidBounceBack)
	app.commands.SetRoutingMetrics(routingMetrics)
	app.queries = approuting.NewQueryService(store.repo, cachedDirectory, log.Named("routing.query"))
	app.history = approuting.NewHistoryAssembler(store.repo, cachedDirectory, documents, log.Named("routing.history"))

	var notifier routing.Notifier = notify.NewLogNotifier(log.Named("notify"))
	if cfg.Notifier.Driver == "redis" {
		notifier = notify.NewRedisNotifier(redisClient, cfg.Notifier.ChannelPrefix)
	}

	if err := wireEvents(ctx, cfg, app, store, notifier, redisClient, routingMetrics, log); err != nil {
		return fail(err)
	}
	return app, nil
}

func buildStorage(ctx context.Context, cfg *config.Config, app *application, log *zap.Logger) (*storage, error) {
	seed, err := persistence.LoadSeed(cfg.Directory.SeedFile)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("Using in-memory storage; routing state is lost on restart",
			zap.Int("seed_actors", len(seed.Actors)),
			zap.Int("seed_documents", len(seed.Documents)),
		)
		return &storage{
			repo:      persistence.NewMemoryRoutingNodeRepository(),
			directory: directory.NewStaticProvider(seed.RoutingActors()...),
			documents: document.NewStaticStore(seed.RoutingDocuments()...),
		}, nil
	}

	gormLog := logger.NewGormLogger(log.Named("gorm"), logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}
	app.onClose(func(context.Context) {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	})
	app.healthChecks["database"] = db.Ping
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBName:     cfg.Database.DBName,
	}, log); err != nil {
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	// Postgres schemas are owned by cmd/migrate
	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}
	if err := seed.Apply(ctx, db.DB); err != nil {
		return nil, err
	}

	repo := persistence.NewGormRoutingNodeRepository(db.DB)
	return &storage{
		repo:      repo,
		gormRepo:  repo,
		db:        db,
		directory: directory.NewGormProvider(db.DB),
		documents: document.NewGormStore(db.DB),
	}, nil
}

// wireEvents connects committed routing events to the notifier. In direct
// mode the service publishes to the bus after commit; in outbox mode the
// repository records events in the write transaction and the processor
// dispatches them.
func wireEvents(
	ctx context.Context,
	cfg *config.Config,
	app *application,
	store *storage,
	notifier routing.Notifier,
	redisClient *redis.Client,
	metrics *telemetry.RoutingMetrics,
	log *zap.Logger,
) error {
	bus := event.NewInMemoryEventBus(log.Named("event"))
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	app.onClose(func(ctx context.Context) {
		if err := bus.Stop(ctx); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	})

	var dedup shared.IdempotencyStore
	if redisClient != nil {
		dedup = cache.NewRedisIdempotencyStore(redisClient, "")
	} else {
		dedup = cache.NewInMemoryIdempotencyStore()
	}
	app.onClose(func(context.Context) { _ = dedup.Close() })

	notifications := approuting.NewNotificationHandler(notifier, log.Named("notify"))
	notifications.SetRoutingMetrics(metrics)
	bus.Subscribe(event.NewIdempotentHandler(notifications, dedup, cfg.Event.DedupTTL, log.Named("event")))

	if cfg.Event.Delivery != config.DeliveryOutbox {
		app.commands.SetEventPublisher(bus)
		log.Info("Routing events delivered directly after commit")
		return nil
	}

	serializer := event.NewRoutingEventSerializer()
	store.gormRepo.SetOutboxSaver(event.NewOutboxPublisher(serializer, cfg.Event.MaxRetries))

	if !cfg.Event.ProcessorEnabled {
		log.Warn("Outbox processor disabled; events accumulate until another instance drains them")
		return nil
	}

	processorCfg := event.OutboxProcessorConfigFrom(cfg.Event)
	processor := event.NewOutboxProcessor(
		event.NewGormOutboxRepository(store.db.DB), bus, serializer, processorCfg, log.Named("outbox"),
	)
	if err := processor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start outbox processor: %w", err)
	}
	app.onClose(func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	})
	log.Info("Outbox processor started",
		zap.Int("batch_size", processorCfg.BatchSize),
		zap.Duration("poll_interval", processorCfg.PollInterval),
	)
	return nil
}
