// Package app builds and holds the long-lived services behind the CLI: the
// API client with its decorated transport, the result recorder and its sinks,
// and the optional ops server.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcrawlerapi-go/internal/api"
	"github.com/JakeFAU/webcrawlerapi-go/internal/clock/system"
	"github.com/JakeFAU/webcrawlerapi-go/internal/config"
	"github.com/JakeFAU/webcrawlerapi-go/internal/hash/sha256"
	"github.com/JakeFAU/webcrawlerapi-go/internal/id/uuid"
	"github.com/JakeFAU/webcrawlerapi-go/internal/metrics"
	"github.com/JakeFAU/webcrawlerapi-go/internal/policy/ratelimit"
	natspublisher "github.com/JakeFAU/webcrawlerapi-go/internal/publisher/nats"
	gcppublisher "github.com/JakeFAU/webcrawlerapi-go/internal/publisher/pubsub"
	"github.com/JakeFAU/webcrawlerapi-go/internal/recorder"
	"github.com/JakeFAU/webcrawlerapi-go/internal/storage"
	gcsstorage "github.com/JakeFAU/webcrawlerapi-go/internal/storage/gcs"
	localstorage "github.com/JakeFAU/webcrawlerapi-go/internal/storage/local"
	memorystorage "github.com/JakeFAU/webcrawlerapi-go/internal/storage/memory"
	pgstore "github.com/JakeFAU/webcrawlerapi-go/internal/storage/postgres"
	sqlitestore "github.com/JakeFAU/webcrawlerapi-go/internal/storage/sqlite"
	"github.com/JakeFAU/webcrawlerapi-go/internal/telemetry"
	"github.com/JakeFAU/webcrawlerapi-go/internal/transport"
	collytransport "github.com/JakeFAU/webcrawlerapi-go/internal/transport/colly"
	"github.com/JakeFAU/webcrawlerapi-go/internal/webcrawlerapi"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	client    *webcrawlerapi.Client
	recorder  *recorder.Recorder
	ops       *api.Server
	opsDone   chan error
	gcs       *gcsstorage.BlobStore
	jobStore  *pgstore.JobStore
	sqlite    *sqlitestore.JobStore
	publisher *gcppublisher.Publisher
	nats      *natspublisher.Publisher
	tracer    *sdktrace.TracerProvider
	checks    map[string]api.ReadinessCheck
}

// Build creates the application's dependencies. Partially built resources
// are released when a later step fails.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		checks: map[string]api.ReadinessCheck{},
	}
	logger.Info("building application dependencies",
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("db_enabled", cfg.DB.DSN != "" || cfg.DB.SQLitePath != ""),
		zap.Bool("pubsub_enabled", cfg.PubSub.TopicName != ""),
		zap.Bool("nats_enabled", cfg.NATS.URL != ""),
	)

	metrics.Init()
	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("tracing init failed: %w", err)
		}
		a.tracer = tp
	}
	clock := system.New()
	ids := uuid.New()

	client, err := webcrawlerapi.New(
		webcrawlerapi.Config{
			APIKey:    cfg.API.Key,
			BaseURL:   cfg.API.BaseURL,
			UserAgent: cfg.API.UserAgent,
			PollDelay: cfg.PollDelay(),
			MaxPolls:  cfg.Poll.MaxPolls,
		},
		buildTransport(cfg, ids, logger),
		clock,
		metrics.NewObserver(),
		logger.Named("client"),
	)
	if err != nil {
		_ = a.closeInfrastructure(ctx)
		return nil, fmt.Errorf("client init failed: %w", err)
	}
	a.client = client

	blobs, err := a.setupStorage(ctx)
	if err != nil {
		_ = a.closeInfrastructure(ctx)
		return nil, err
	}
	if err := a.setupDatabase(ctx); err != nil {
		_ = a.closeInfrastructure(ctx)
		return nil, err
	}
	if err := a.setupPublisher(ctx, ids); err != nil {
		_ = a.closeInfrastructure(ctx)
		return nil, err
	}

	deps := recorder.Deps{
		Blobs:  blobs,
		Hasher: sha256.New(),
		IDs:    ids,
		Clock:  clock,
		Logger: logger.Named("recorder"),
	}
	// Assigning a nil pointer to the interface would make it non-nil.
	switch {
	case a.jobStore != nil:
		deps.Jobs = a.jobStore
	case a.sqlite != nil:
		deps.Jobs = a.sqlite
	}
	topic := cfg.PubSub.TopicName
	switch {
	case a.publisher != nil:
		deps.Publisher = a.publisher
	case a.nats != nil:
		deps.Publisher = a.nats
		topic = cfg.NATS.Subject
	}
	a.recorder, err = recorder.New(recorder.Config{
		Prefix: cfg.Storage.Prefix,
		Topic:  topic,
	}, deps)
	if err != nil {
		_ = a.closeInfrastructure(ctx)
		return nil, fmt.Errorf("recorder init failed: %w", err)
	}

	if cfg.Metrics.Addr != "" {
		a.ops = api.NewServer(a.checks, ids, logger.Named("ops"))
	}
	return a, nil
}

func buildTransport(cfg config.Config, ids *uuid.Generator, logger *zap.Logger) webcrawlerapi.Transport {
	base := collytransport.New(collytransport.Config{
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})
	mws := []transport.Middleware{
		transport.WithTracing(otel.Tracer("github.com/JakeFAU/webcrawlerapi-go")),
		transport.WithRequestID(ids),
		transport.WithLogging(logger.Named("transport")),
		transport.WithMetrics(),
	}
	if cfg.RateLimit.RPS > 0 {
		limiter := ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.RateLimit.RPS,
			DefaultBurst: cfg.RateLimit.Burst,
			OnDelay:      metrics.ObserveRateLimitDelay,
		})
		mws = append(mws, transport.WithRateLimit(limiter))
		logger.Debug("rate limiting enabled",
			zap.Float64("rps", cfg.RateLimit.RPS),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
	}
	return transport.Chain(base, mws...)
}

func (a *App) setupStorage(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.StorageGCS:
		store, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.gcs = store
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case config.StorageLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.BaseDir))
		return store, nil
	case config.StorageMemory:
		a.logger.Info("using in-memory storage backend")
		return memorystorage.NewBlobStore(), nil
	default:
		a.logger.Debug("result storage disabled")
		return nil, nil
	}
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.DB.SQLitePath != "" {
		store, err := sqlitestore.Open(ctx, a.cfg.DB.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite job store init failed: %w", err)
		}
		a.sqlite = store
		a.checks["sqlite"] = store.Ping
		a.logger.Info("sqlite job store initialized", zap.String("path", a.cfg.DB.SQLitePath))
		return nil
	}
	if a.cfg.DB.DSN == "" {
		a.logger.Debug("no DSN specified, skipping job store")
		return nil
	}
	store, err := pgstore.NewJobStore(ctx, pgstore.Config{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("job store init failed: %w", err)
	}
	a.jobStore = store
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("job store schema failed: %w", err)
	}
	a.checks["postgres"] = store.Ping
	a.logger.Info("job store initialized", zap.String("table", a.cfg.DB.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context, ids *uuid.Generator) error {
	if a.cfg.NATS.URL != "" {
		pub, err := natspublisher.Open(natspublisher.Config{
			URL:     a.cfg.NATS.URL,
			Subject: a.cfg.NATS.Subject,
		}, ids, a.logger.Named("nats"))
		if err != nil {
			return fmt.Errorf("nats publisher init failed: %w", err)
		}
		a.nats = pub
		a.logger.Info("NATS publisher initialized", zap.String("subject", a.cfg.NATS.Subject))
		return nil
	}
	if a.cfg.PubSub.TopicName == "" {
		a.logger.Debug("no Pub/Sub topic configured, skipping notifications")
		return nil
	}
	pub, err := gcppublisher.Open(ctx, gcppublisher.Config{
		ProjectID: a.cfg.PubSub.ProjectID,
		TopicName: a.cfg.PubSub.TopicName,
	})
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.publisher = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

// Client returns the API client.
func (a *App) Client() *webcrawlerapi.Client {
	return a.client
}

// Recorder returns the result recorder.
func (a *App) Recorder() *recorder.Recorder {
	return a.recorder
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// StartOps serves the ops endpoint in the background until ctx is done.
// It is a no-op when metrics.addr is unset.
func (a *App) StartOps(ctx context.Context) {
	if a.ops == nil || a.opsDone != nil {
		return
	}
	a.opsDone = make(chan error, 1)
	go func() {
		err := a.ops.ListenAndServe(ctx, a.cfg.Metrics.Addr)
		if err != nil {
			a.logger.Error("ops server failed", zap.Error(err))
		}
		a.opsDone <- err
	}()
}

// Close waits for the ops server (whose context the caller has cancelled)
// and releases every client the App opened.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.opsDone != nil {
		select {
		case opsErr := <-a.opsDone:
			err = errors.Join(err, opsErr)
		case <-ctx.Done():
			err = errors.Join(err, fmt.Errorf("wait for ops server: %w", ctx.Err()))
		}
	}
	err = errors.Join(err, a.closeInfrastructure(ctx))
	if syncErr := a.logger.Sync(); syncErr != nil {
		a.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	return err
}

func (a *App) closeInfrastructure(ctx context.Context) error {
	var err error
	if a.tracer != nil {
		if cerr := a.tracer.Shutdown(ctx); cerr != nil {
			a.logger.Warn("tracer provider shutdown failed", zap.Error(cerr))
			err = errors.Join(err, cerr)
		}
		a.tracer = nil
	}
	if a.publisher != nil {
		if cerr := a.publisher.Close(); cerr != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(cerr))
			err = errors.Join(err, cerr)
		}
		a.publisher = nil
	}
	if a.gcs != nil {
		if cerr := a.gcs.Close(); cerr != nil {
			a.logger.Warn("gcs client close failed", zap.Error(cerr))
			err = errors.Join(err, cerr)
		}
		a.gcs = nil
	}
	if a.nats != nil {
		_ = a.nats.Close()
		a.nats = nil
	}
	if a.jobStore != nil {
		a.jobStore.Close()
		a.jobStore = nil
	}
	if a.sqlite != nil {
		if cerr := a.sqlite.Close(); cerr != nil {
			a.logger.Warn("sqlite close failed", zap.Error(cerr))
			err = errors.Join(err, cerr)
		}
		a.sqlite = nil
	}
	return err
}
