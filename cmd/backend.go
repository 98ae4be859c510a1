package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/lookout/internal/config"
	"github.com/kozaktomas/lookout/internal/database"
	"github.com/kozaktomas/lookout/internal/database/mariadb"
	"github.com/kozaktomas/lookout/internal/database/postgres"
	"github.com/kozaktomas/lookout/internal/facematch"
	"github.com/kozaktomas/lookout/internal/logging"
	"github.com/kozaktomas/lookout/internal/metrics"
	"github.com/kozaktomas/lookout/internal/notify"
	"github.com/kozaktomas/lookout/internal/photostore"
)

// app holds the services shared by the commands.
type app struct {
	cfg           *config.Config
	logger        *slog.Logger
	metrics       *metrics.Metrics
	reports       database.ReportWriter
	sightings     database.SightingWriter
	corpus        database.CorpusReader
	notifications database.NotificationStore
	photos        photostore.Store
	features      facematch.FeatureStore // nil unless PERSIST_FEATURES is set
	engine        *facematch.Engine
	dispatcher    *notify.Dispatcher
	pipeline      *notify.Pipeline
	closeDB       func() error
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if rootCmd.PersistentFlags().Changed("threshold") {
		cfg.Matching.Threshold = thresholdFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	return cfg, nil
}

// initDatabase connects the configured backend, applies migrations and
// registers its repositories. It returns the pool closer.
func initDatabase(cfg *config.Config) (func() error, error) {
	switch cfg.Database.Driver {
	case "mysql":
		fmt.Printf("Connecting to MariaDB database...\n")
		pool, err := mariadb.Initialize(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		return pool.Close, nil
	default:
		fmt.Printf("Connecting to PostgreSQL database...\n")
		if err := postgres.Initialize(&cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return postgres.GetGlobalPool().Close, nil
	}
}

// openPhotoStore returns the configured photo store.
func openPhotoStore(cfg config.PhotoStoreConfig) (photostore.Store, error) {
	switch cfg.Backend {
	case "minio":
		store, err := photostore.DialMinio(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		fmt.Printf("Using MinIO photo store (bucket %s)\n", cfg.MinioBucket)
		return store, nil
	default:
		fmt.Printf("Using local photo store in %s\n", cfg.Dir)
		return photostore.NewLocalStore(cfg.Dir), nil
	}
}

// setupApp wires configuration, storage, matching and notification services.
func setupApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	closeDB, err := initDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New(), closeDB: closeDB}

	if err := a.loadRepositories(); err != nil {
		_ = closeDB()
		return nil, err
	}

	a.photos, err = openPhotoStore(cfg.Photos)
	if err != nil {
		_ = closeDB()
		return nil, err
	}

	if err := a.buildPipeline(); err != nil {
		_ = closeDB()
		return nil, err
	}
	return a, nil
}

func (a *app) loadRepositories() error {
	ctx := context.Background()
	var err error
	if a.reports, err = database.GetReportWriter(ctx); err != nil {
		return err
	}
	if a.sightings, err = database.GetSightingWriter(ctx); err != nil {
		return err
	}
	if a.corpus, err = database.GetCorpusReader(ctx); err != nil {
		return err
	}
	if a.notifications, err = database.GetNotificationStore(ctx); err != nil {
		return err
	}

	if a.cfg.Matching.PersistFeatures {
		store, ok := database.GetFeatureIndexRebuilder().(facematch.FeatureStore)
		if !ok {
			return fmt.Errorf("%s backend cannot persist features", database.BackendName())
		}
		a.features = store
		fmt.Printf("Persisting feature vectors in %s\n", database.BackendName())
	}
	return nil
}

func (a *app) buildPipeline() error {
	policy, err := facematch.NewPolicy(a.cfg.Matching.Threshold)
	if err != nil {
		return err
	}

	cache := facematch.NewFeatureCache(a.cfg.Matching.CacheTTL, a.features, a.logger)
	a.engine = facematch.NewEngine(a.photos, policy,
		facematch.WithFeatureCache(cache),
		facematch.WithSkipRecorder(a.metrics),
		facematch.WithLogger(a.logger),
		facematch.WithConcurrency(a.cfg.Matching.Concurrency),
		facematch.WithTimeout(a.cfg.Matching.Timeout),
	)

	channel := notify.NewChannelFromConfig(a.cfg.Channels)
	a.dispatcher = notify.NewDispatcher(a.notifications, channel, a.cfg.Templates, a.logger, a.metrics)
	a.pipeline = notify.NewPipeline(
		a.corpus,
		a.reports,
		a.engine,
		notify.NewDeduplicator(a.notifications),
		a.dispatcher,
		a.metrics,
		a.logger,
	)
	return nil
}

// Close waits for pending notification pushes and closes the database.
func (a *app) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Wait()
	}
	if a.closeDB != nil {
		if err := a.closeDB(); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}
}
