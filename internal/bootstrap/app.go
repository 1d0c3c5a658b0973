package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docrag/internal/ai"
	"docrag/internal/app"
	"docrag/internal/cache"
	"docrag/internal/config"
	mysqlClient "docrag/internal/platform/mysql"
	postgresClient "docrag/internal/platform/postgres"
	rabbitmqClient "docrag/internal/platform/rabbitmq"
	redisClient "docrag/internal/platform/redis"
	sqliteClient "docrag/internal/platform/sqlite"
	"docrag/internal/repository"
	"docrag/internal/worker"
)

// Store is a document store that can also migrate its schema and report health.
type Store interface {
	app.DocumentStore
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
}

type App struct {
	Config *config.Config
	DB     *gorm.DB
	PG     *pgxpool.Pool
	Redis  *redis.Client
	MQConn *amqp.Connection
	Store  Store

	Ingest       *app.IngestService
	Retrieval    *app.RetrievalService
	Ask          *app.AskService
	Jobs         *app.JobService
	IngestWorker *worker.IngestWorker

	StartedAt time.Time
}

type options struct {
	startWorker bool
}

type Option func(*options)

// WithoutWorker skips consuming the ingestion queue, for short-lived commands.
func WithoutWorker() Option {
	return func(o *options) { o.startWorker = false }
}

func New(ctx context.Context, opts ...Option) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(ctx, cfg, opts...)
}

func NewWithConfig(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	o := options{startWorker: true}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, StartedAt: time.Now()}
	if err := a.init(ctx, o); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			log.Printf("close partially built app failed: %v", closeErr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context, o options) error {
	cfg := a.Config

	if err := a.openStore(ctx); err != nil {
		return err
	}
	if err := a.Store.Migrate(ctx); err != nil {
		return err
	}

	if cfg.Redis.Enabled {
		redisCli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = redisCli
	}

	if cfg.RabbitMQ.Enabled {
		mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ, cfg.App.Name)
		if err != nil {
			return err
		}
		a.MQConn = mqConn
	}

	embedder, err := a.buildEmbedder()
	if err != nil {
		return err
	}

	a.Ingest = app.NewIngestService(embedder, a.Store, app.IngestOptions{
		MaxChunkSize: cfg.Ingest.MaxChunkSize,
		Workers:      cfg.Ingest.Workers,
		EmbedTimeout: cfg.EmbeddingTimeout(),
		StoreTimeout: cfg.StoreTimeout(),
	})
	a.Retrieval = app.NewRetrievalService(embedder, a.Store, app.RetrievalOptions{
		MatchThreshold: cfg.Retrieval.MatchThreshold,
		MatchCount:     cfg.Retrieval.MatchCount,
		EmbedTimeout:   cfg.EmbeddingTimeout(),
		StoreTimeout:   cfg.StoreTimeout(),
	})

	chat := ai.NewChatClient(ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	a.Ask = app.NewAskService(a.Retrieval, chat)

	if a.MQConn != nil && a.Redis != nil {
		jobTTL := time.Duration(cfg.Redis.JobTTLSeconds) * time.Second
		publisher := rabbitmqClient.NewIngestPublisher(a.MQConn, cfg.RabbitMQ.IngestQueue)
		a.Jobs = app.NewJobService(a.Ingest, publisher, cache.NewJobStore(a.Redis, jobTTL))

		if o.startWorker {
			a.IngestWorker = worker.NewIngestWorker(a.MQConn, a.Jobs, cfg.RabbitMQ.IngestQueue)
			if err := a.IngestWorker.Start(ctx); err != nil {
				return fmt.Errorf("start ingest worker failed: %w", err)
			}
		}
	} else {
		a.Jobs = app.NewJobService(a.Ingest, nil, nil)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := postgresClient.New(ctx, cfg.Postgres.DSN, int32(cfg.Postgres.MaxConns))
		if err != nil {
			return err
		}
		a.PG = pool
		a.Store = repository.NewPGVectorRepository(pool, cfg.Embedding.Dimensions)
	case "mysql":
		db, err := mysqlClient.New(ctx, cfg.MySQLDSN())
		if err != nil {
			return err
		}
		a.DB = db
		a.Store = repository.NewChunkRepository(db)
	case "sqlite":
		db, err := sqliteClient.New(ctx, cfg.SQLite.Path)
		if err != nil {
			return err
		}
		a.DB = db
		a.Store = repository.NewChunkRepository(db)
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return nil
}

// buildEmbedder wraps the configured provider with retries and, when Redis is
// available, a shared vector cache.
func (a *App) buildEmbedder() (ai.Embedder, error) {
	cfg := a.Config.Embedding
	embCfg := ai.EmbeddingConfig{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Timeout:    a.Config.EmbeddingTimeout(),
	}

	var base ai.Embedder
	modelKey := cfg.Model
	switch cfg.Provider {
	case "openai":
		e, err := ai.NewOpenAIEmbedder(embCfg)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder failed: %w", err)
		}
		base = e
		if modelKey == "" {
			modelKey = string(ai.DefaultEmbeddingModel)
		}
	default:
		base = ai.NewServiceEmbedder(embCfg)
		if modelKey == "" {
			modelKey = cfg.BaseURL
		}
	}

	var embedder ai.Embedder = ai.NewRetryingEmbedder(base, cfg.MaxRetries, time.Duration(cfg.RetryDelayMS)*time.Millisecond)
	if a.Redis != nil {
		ttl := time.Duration(a.Config.Redis.EmbeddingTTLSeconds) * time.Second
		embedder = ai.NewCachedEmbedder(embedder, cache.NewEmbeddingCache(a.Redis, ttl), cfg.Provider+":"+modelKey)
	}
	return embedder, nil
}

// HealthChecks returns a ping per configured dependency.
func (a *App) HealthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"store": a.Store.Ping,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx, a.Redis) }
	}
	if a.MQConn != nil {
		checks["rabbitmq"] = func(context.Context) error { return rabbitmqClient.Healthy(a.MQConn) }
	}
	return checks
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.PG != nil {
		a.PG.Close()
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
