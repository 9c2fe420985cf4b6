package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/GoBigTech/storefront/platform/health/http"
	platformlogging "github.com/shestoi/GoBigTech/storefront/platform/logging"
	platformobservability "github.com/shestoi/GoBigTech/storefront/platform/observability"
	platformshutdown "github.com/shestoi/GoBigTech/storefront/platform/shutdown"

	httpapi "github.com/shestoi/GoBigTech/storefront/internal/api/http"
	"github.com/shestoi/GoBigTech/storefront/internal/api/ws"
	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
	"github.com/shestoi/GoBigTech/storefront/internal/config"
	eventkafka "github.com/shestoi/GoBigTech/storefront/internal/event/kafka"
	"github.com/shestoi/GoBigTech/storefront/internal/metrics"
	"github.com/shestoi/GoBigTech/storefront/internal/repository"
	"github.com/shestoi/GoBigTech/storefront/internal/repository/memory"
	"github.com/shestoi/GoBigTech/storefront/internal/repository/postgres"
	"github.com/shestoi/GoBigTech/storefront/internal/repository/redis"
	"github.com/shestoi/GoBigTech/storefront/internal/repository/sqlite"
	"github.com/shestoi/GoBigTech/storefront/internal/service"
)

const (
	serviceName    = "storefront"
	connectTimeout = 10 * time.Second
	hydrateTimeout = 5 * time.Second
)

// App содержит все зависимости storefront и порядок их остановки
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	shutdownMgr *platformshutdown.Manager
	listing     *service.ListingController
	wg          sync.WaitGroup
}

// Build собирает граф зависимостей: хранилище, каталог, stores, persistence, API
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	const op = "app.Build"

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: serviceName,
		Env:         string(cfg.AppEnv),
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: logger: %w", op, err)
	}
	cfg.Log(logger)

	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)

	// закрывает уже поднятое, если сборка упала на полпути
	success := false
	defer func() {
		if !success {
			shutdownMgr.Shutdown()
		}
	}()

	otelShutdown, err := platformobservability.Init(ctx, platformobservability.Config{
		Enabled:               cfg.OTelEnabled,
		OTLPEndpoint:          cfg.OTelEndpoint,
		SamplingRatio:         cfg.OTelSamplingRatio,
		ServiceName:           serviceName,
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: observability: %w", op, err)
	}
	shutdownMgr.Add("telemetry", otelShutdown)

	store, err := openStore(ctx, cfg, logger, shutdownMgr)
	if err != nil {
		return nil, fmt.Errorf("%s: storage: %w", op, err)
	}

	m := metrics.New()

	// Каталог: HTTP клиент с retry/circuit breaker + TTL кэш
	catalogClient := catalog.NewCachedClient(catalog.NewHTTPClient(cfg.Catalog, logger), cfg.Catalog.CacheTTL)
	categories, err := catalog.Categories()
	if err != nil {
		return nil, fmt.Errorf("%s: categories: %w", op, err)
	}

	cart := service.NewCartStore(logger, m)
	favorites := service.NewFavoritesStore(logger, m)

	hydrateCtx, cancel := context.WithTimeout(ctx, hydrateTimeout)
	service.Hydrate(hydrateCtx, store, cart, favorites, logger)
	cancel()

	// persistence подписывается после гидратации: загрузка не пишет обратно
	persister := service.NewPersister(store, cfg.PersistQueueSize, logger, m)
	persister.BindCart(cart)
	persister.BindFavorites(favorites)
	shutdownMgr.Add("persister", func(context.Context) error {
		persister.Close()
		return nil
	})

	if cfg.KafkaEnabled {
		publisher := eventkafka.NewStateEventPublisher(logger, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publisher.Bind(cart, favorites)
		shutdownMgr.Add("kafka_publisher", platformshutdown.Close(publisher))
		logger.Info("Kafka state events enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	listing := service.NewListingController(catalogClient, service.ListingConfig{
		PageLimit: cfg.Catalog.PageLimit,
		Debounce:  cfg.SearchDebounce,
	}, logger, m)
	shutdownMgr.Add("listing", func(context.Context) error {
		listing.Close()
		return nil
	})

	hub := ws.NewHub(logger, m)
	hub.Bind(cart, favorites, listing)
	shutdownMgr.Add("ws_hub", platformshutdown.Close(hub))

	handler := httpapi.NewHandler(logger, catalogClient, cart, favorites, listing, persister, categories)
	router := httpapi.NewRouter(handler, httpapi.RouterDeps{
		Checks: []platformhealth.Check{
			{Name: "cart", Ready: cart.Hydrated},
			{Name: "favorites", Ready: favorites.Hydrated},
		},
		Metrics: m.Handler(),
		WS:      hub,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	success = true
	return &App{
		logger:      logger,
		httpServer:  httpServer,
		shutdownMgr: shutdownMgr,
		listing:     listing,
	}, nil
}

// openStore открывает KV хранилище выбранного backend-а и регистрирует его закрытие
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger, shutdownMgr *platformshutdown.Manager) (repository.KVStore, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	logger.Info("Opening storage", zap.String("backend", string(cfg.StorageBackend)))

	switch cfg.StorageBackend {
	case config.StorageMemory:
		return memory.NewStore(), nil

	case config.StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		shutdownMgr.Add("sqlite", platformshutdown.Close(store))
		return store, nil

	case config.StorageRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		shutdownMgr.Add("redis", platformshutdown.Close(client))
		logger.Info("Redis connection established", zap.String("addr", cfg.RedisAddr))
		return redis.NewStore(client, cfg.RedisKeyPrefix, logger), nil

	case config.StoragePostgres:
		if err := postgres.Migrate(ctx, cfg.PostgresDSN); err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))
		logger.Info("PostgreSQL connection established")
		return postgres.NewStore(pool), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}

// Run запускает HTTP сервер и первую страницу выдачи, затем блокируется до shutdown
func (a *App) Run(ctx context.Context) error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting storefront", zap.String("addr", a.httpServer.Addr))
	a.logger.Info("Health check available", zap.String("url", "http://"+a.httpServer.Addr+"/health"))

	a.listing.Start()

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var serveErr error
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", zap.Error(err))
			serveErr = err
			cancel()
		}
	}()

	// Ожидаем сигнал (или падение сервера) и выполняем shutdown
	a.shutdownMgr.Wait(waitCtx)
	a.wg.Wait()

	if serveErr != nil {
		return serveErr
	}
	a.logger.Info("Storefront stopped")
	return nil
}
