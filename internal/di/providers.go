package di

import (
	"context"
	"fmt"
	"time"

	"Foresight/internal/domain/repository"
	"Foresight/internal/handler/api"
	internalrepo "Foresight/internal/repository"
	icache "Foresight/internal/service/cache"
	"Foresight/internal/service/ratelimit"
	"Foresight/internal/service/twelvedata"
	"Foresight/internal/usecase"
	pkgch "Foresight/pkg/clickhouse"
	"Foresight/pkg/config"
	xhttp "Foresight/pkg/http"
	pkgkafka "Foresight/pkg/kafka"
	applogger "Foresight/pkg/logger"
	"Foresight/pkg/metrics"
	pkgpg "Foresight/pkg/postgres"
	"Foresight/pkg/server"
)

// Schema statements are idempotent so every start can run them.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS forecasts (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		asset           TEXT NOT NULL,
		direction       TEXT NOT NULL,
		compare_symbol  TEXT,
		horizon         TEXT NOT NULL,
		start_price     DOUBLE PRECISION NOT NULL,
		start_cmp_price DOUBLE PRECISION,
		target_low      DOUBLE PRECISION,
		target_high     DOUBLE PRECISION,
		confidence      INT NOT NULL DEFAULT 3,
		status          TEXT NOT NULL DEFAULT 'active',
		end_price       DOUBLE PRECISION,
		created_at      TIMESTAMPTZ NOT NULL,
		expires_at      TIMESTAMPTZ NOT NULL,
		resolved_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_forecasts_due ON forecasts (expires_at) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS idx_forecasts_user ON forecasts (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS asset_snapshots (
		asset TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		ts    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_asset_ts ON asset_snapshots (asset, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS asset_consensus (
		asset          TEXT NOT NULL,
		horizon        TEXT NOT NULL,
		up_pct         INT NOT NULL,
		down_pct       INT NOT NULL,
		avg_confidence DOUBLE PRECISION NOT NULL,
		avg_target     DOUBLE PRECISION,
		computed_at    TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (asset, horizon)
	)`,
	`CREATE TABLE IF NOT EXISTS engine_stats (
		id                       INT PRIMARY KEY,
		graded_predictions_count BIGINT NOT NULL DEFAULT 0,
		last_graded_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// ProvideLogger creates the application logger. When Kafka is enabled the
// error collector ships aggregated entries to the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      &kafkaLogPublisher{producer: producer},
		})
	}
	return l, nil
}

// kafkaLogPublisher adapts the Kafka producer to the log collector.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p *kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePostgresClient creates the Postgres client and runs the schema.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	client, err := pkgpg.NewClient(
		pkgpg.WithHost(cfg.Postgres.Host),
		pkgpg.WithPort(cfg.Postgres.Port),
		pkgpg.WithDatabase(cfg.Postgres.Database),
		pkgpg.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpg.WithSSLMode(cfg.Postgres.SSLMode),
		pkgpg.WithDSN(cfg.Postgres.DSN),
		pkgpg.WithMaxConnections(10, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, schemaStatements); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return client, nil
}

// ProvideForecastStore creates the canonical Postgres-backed store.
func ProvideForecastStore(pg *pkgpg.Client, cfg *config.Config) repository.ForecastStore {
	return internalrepo.NewPostgresForecastStore(pg, cfg.Postgres.QueryTimeout)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
		"CREATE TABLE IF NOT EXISTS " + cfg.ClickHouse.Database + ".asset_snapshots (asset String, price Float64, ts DateTime64(3)) ENGINE=MergeTree ORDER BY (asset, ts)",
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSnapshotArchive creates the ClickHouse snapshot mirror, or nil when
// ClickHouse is disabled. The grader treats a nil archive as a no-op.
func ProvideSnapshotArchive(ch *pkgch.Client, cfg *config.Config) repository.SnapshotArchive {
	if ch == nil {
		return nil
	}
	return internalrepo.NewClickHouseSnapshotArchive(ch, cfg.ClickHouse.Database+".asset_snapshots")
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the resolved-forecast event publisher, or nil when
// Kafka is disabled.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ResolvedTopic)
}

// ProvideOracle creates the Twelve Data price oracle.
func ProvideOracle(cfg *config.Config) (repository.PriceOracle, error) {
	opts := []twelvedata.Option{
		twelvedata.WithTimeout(cfg.TwelveData.Timeout),
		twelvedata.WithLookbackDays(cfg.TwelveData.LookbackDays),
		twelvedata.WithRatePerMin(cfg.TwelveData.RatePerMinute),
	}
	if cfg.TwelveData.BaseURL != "" {
		opts = append(opts, twelvedata.WithBaseURL(cfg.TwelveData.BaseURL))
	}
	return twelvedata.New(cfg.TwelveData.APIKey, ratelimit.New(), opts...)
}

// ProvideCache creates the consensus read cache. Redis when configured,
// otherwise an in-process TTL cache.
func ProvideCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideCreator creates the forecast creation use case.
func ProvideCreator(store repository.ForecastStore, oracle repository.PriceOracle, logger *applogger.Logger) *usecase.Creator {
	return usecase.NewCreator(store, oracle, logger)
}

// ProvideGrader creates the grading use case.
func ProvideGrader(
	store repository.ForecastStore,
	oracle repository.PriceOracle,
	archive repository.SnapshotArchive,
	pub repository.Publisher,
	m repository.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.Grader {
	return usecase.NewGrader(store, oracle, archive, pub, m, logger, cfg.Grading.BatchSize, cfg.Grading.FetchWorkers)
}

// ProvideAggregator creates the consensus aggregation use case.
func ProvideAggregator(store repository.ForecastStore, m repository.Metrics, logger *applogger.Logger) *usecase.Aggregator {
	return usecase.NewAggregator(store, m, logger)
}

// ProvideHandler creates the Echo HTTP handler.
func ProvideHandler(
	logger *applogger.Logger,
	creator *usecase.Creator,
	grader *usecase.Grader,
	agg *usecase.Aggregator,
	store repository.ForecastStore,
	cache icache.BytesCache,
	cfg *config.Config,
) xhttp.Handler {
	return api.NewForecastsEchoHandler(logger, creator, grader, agg, store, cache, cfg.Consensus.CacheTTL)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	grader *usecase.Grader,
	agg *usecase.Aggregator,
	store repository.ForecastStore,
	archive repository.SnapshotArchive,
	pub repository.Publisher,
	handler xhttp.Handler,
) *server.App {
	return server.New(cfg, logger, grader, agg, store, archive, pub, handler)
}
