package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	deletionservice "mastercom/internal/deletion/service"
	deletionstore "mastercom/internal/deletion/store"
	"mastercom/internal/platform/config"
	"mastercom/internal/platform/kafka"
	"mastercom/internal/platform/postgres"
	platformredis "mastercom/internal/platform/redis"
	ratelimitmw "mastercom/internal/ratelimit/middleware"
	"mastercom/internal/ratelimit/store/bucket"
	recordservice "mastercom/internal/records/service"
	recordstore "mastercom/internal/records/store"
	audit "mastercom/pkg/platform/audit"
	"mastercom/pkg/platform/audit/outbox"
	auditmemory "mastercom/pkg/platform/audit/store/memory"
	auditpostgres "mastercom/pkg/platform/audit/store/postgres"
	"mastercom/pkg/platform/circuit"
)

// recordStore is what both services need from the record store.
type recordStore interface {
	deletionservice.RecordStore
	recordservice.Store
}

type infrastructure struct {
	backend     string
	lockBackend string

	recordStore recordStore
	ledger      deletionservice.Ledger
	auditStore  audit.Store
	transactor  deletionservice.Transactor
	reviewLock  deletionstore.Lock
	buckets     ratelimitmw.BucketStore
	relay       *outbox.Relay

	db       *sql.DB
	redis    *platformredis.Client
	producer *kgo.Client
}

// buildInfra picks Postgres when DATABASE_URL is set and the in-memory stores
// otherwise. Redis and Kafka are optional on top of Postgres.
func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}
	if err := infra.openStores(ctx, cfg); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.openRedisBacked(ctx, cfg, log); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.openRelay(ctx, cfg, log); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *infrastructure) openStores(ctx context.Context, cfg config.Config) error {
	if !cfg.UsesPostgres() {
		i.backend = "memory"
		i.recordStore = recordstore.NewInMemoryStore()
		i.ledger = deletionstore.NewInMemoryLedger()
		i.auditStore = auditmemory.NewInMemoryStore()
		return nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	i.db = db
	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}

	i.backend = "postgres"
	i.recordStore = recordstore.NewPostgres(db)
	i.ledger = deletionstore.NewPostgresLedger(db)
	i.auditStore = auditpostgres.New(db)
	i.transactor = postgres.NewTransactor(db)
	return nil
}

// openRedisBacked sets up the review lock and the rate-limit windows, shared
// through Redis when it is configured.
func (i *infrastructure) openRedisBacked(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	local := deletionstore.NewInMemoryLock()
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		i.lockBackend = "memory"
		i.reviewLock = local
		i.buckets = bucket.NewInMemoryBucketStore()
		return nil
	}
	i.redis = client
	i.lockBackend = "redis"
	i.buckets = bucket.NewRedisBucketStore(client.Client)
	i.reviewLock = deletionstore.NewFallbackLock(
		deletionstore.NewRedisLock(client.Client, cfg.Deletion.ReviewLockTTL),
		local,
		circuit.New("review-lock"),
		log,
	)
	return nil
}

func (i *infrastructure) openRelay(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	outboxStore, ok := i.auditStore.(*auditpostgres.Store)
	if !ok {
		log.Warn("kafka brokers configured without postgres; outbox relay disabled")
		return nil
	}

	producer, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	i.producer = producer
	if err := kafka.EnsureTopic(ctx, producer, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
		return fmt.Errorf("ensure audit topic: %w", err)
	}
	i.relay = outbox.NewRelay(outboxStore, producer, cfg.Kafka.AuditTopic,
		outbox.WithLogger(log),
		outbox.WithBatchSize(cfg.Kafka.OutboxBatch),
		outbox.WithInterval(cfg.Kafka.OutboxInterval),
	)
	return nil
}

// Health reports the first failing dependency.
func (i *infrastructure) Health(ctx context.Context) error {
	var errs []error
	if i.db != nil {
		if err := i.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if i.redis != nil {
		if err := i.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (i *infrastructure) Close() {
	if i.producer != nil {
		i.producer.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}
