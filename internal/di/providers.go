package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	domrepo "HackCap/internal/domain/repository"
	internalrepo "HackCap/internal/repository"
	"HackCap/internal/service/cache"
	svcmetrics "HackCap/internal/service/metrics"
	"HackCap/internal/service/ratelimit"
	"HackCap/internal/services/agents"
	"HackCap/internal/services/ensemble"
	"HackCap/internal/services/features"
	"HackCap/internal/services/similarity"
	"HackCap/internal/usecase"
	pkgcache "HackCap/pkg/cache"
	pkgch "HackCap/pkg/clickhouse"
	"HackCap/pkg/config"
	pkgkafka "HackCap/pkg/kafka"
	"HackCap/pkg/logger"
	"HackCap/pkg/metrics"
	"HackCap/pkg/postgres"
	"HackCap/pkg/queue"
	"HackCap/pkg/server"
)

// ProvideLogger builds the application logger. When a producer is available,
// warn and error lines are also digested onto the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(logger.String("env", cfg.Environment))
	if producer == nil || cfg.Kafka.LogsTopic == "" {
		return l, func() {}, nil
	}
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.LogsTopic,
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics registers the engine collectors on the default registry.
func ProvideMetrics() domrepo.Metrics {
	svcmetrics.Register()
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideKafkaProducer creates a producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvidePublisher ships decisions and reports, or returns nil without Kafka.
// The producer's cleanup owns closing it.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.DecisionsTopic, cfg.Kafka.ReportsTopic)
}

// ProvideKafkaConsumer creates the bars consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCacheService selects the cache backend named by cache.mode.
func ProvideCacheService(cfg *config.Config) (pkgcache.Service, func(), error) {
	c := cfg.Cache
	var svc pkgcache.Service
	switch c.Mode {
	case "none":
		return pkgcache.Nop{}, func() {}, nil
	case "memory":
		svc = pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(c.MemoryMaxSize))
	case "redis", "layered":
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisAddr(c.Redis.Host, c.Redis.Port),
			pkgcache.WithRedisAuth(c.Redis.Password, c.Redis.DB),
			pkgcache.WithRedisPool(c.Redis.PoolSize, 2, 30*time.Second),
			pkgcache.WithRedisPrefix(c.Redis.Prefix),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		svc = rc
		if c.Mode == "layered" {
			svc = pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(c.MemoryMaxSize))
		}
	default:
		return nil, nil, fmt.Errorf("unknown cache mode %q", c.Mode)
	}
	return svc, func() { _ = svc.Close() }, nil
}

// ProvideDecisionCache wraps the backend with versioned keys. Mode none
// yields nil so callers skip caching entirely.
func ProvideDecisionCache(cfg *config.Config, svc pkgcache.Service, l *logger.Logger, m domrepo.Metrics) *cache.DecisionCache {
	if cfg.Cache.Mode == "none" {
		return nil
	}
	c := cache.New(svc, cfg.DecisionVersion(), cfg.Cache.TTL, cfg.Cache.Timeout)
	c.SetLogger(l)
	c.SetMetrics(m)
	return c
}

// ProvidePriceSource opens the configured bar source.
func ProvidePriceSource(cfg *config.Config, l *logger.Logger) (domrepo.PriceSource, func(), error) {
	switch cfg.Source.Type {
	case "clickhouse":
		ch, err := pkgch.NewClient(
			pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(10, 5),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		src := internalrepo.NewCHPriceSource(ch, cfg.ClickHouse.Database+"."+cfg.Source.Table)
		src.SetLogger(l)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}, src.Schema()...)
		if err := ch.InitSchema(ctx, stmts); err != nil {
			_ = ch.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		return src, func() { _ = ch.Close() }, nil

	case "postgres":
		pg, err := postgres.NewClient(postgres.Config{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
			ConnLifetime: cfg.Postgres.ConnLifetime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres client: %w", err)
		}
		src := internalrepo.NewPGPriceSource(pg, cfg.Source.Table)
		src.SetLogger(l)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := src.InitSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return src, func() { _ = pg.Close() }, nil

	default:
		start, err := time.Parse(time.DateOnly, cfg.Source.Synthetic.Start)
		if err != nil {
			return nil, nil, fmt.Errorf("source.synthetic.start: %w", err)
		}
		src, err := internalrepo.NewSyntheticSource(cfg.Source.Synthetic.Base, cfg.Source.Synthetic.Bars, start)
		if err != nil {
			return nil, nil, err
		}
		src.SetLogger(l)
		return src, func() {}, nil
	}
}

func ProvideRegistry(cfg *config.Config) (*agents.Registry, error) {
	return agents.NewRegistry(cfg.Agents)
}

func ProvideExtractor(cfg *config.Config) (*features.Extractor, error) {
	return features.NewExtractor(cfg.Similarity)
}

func ProvideSimilarityStore(ext *features.Extractor, l *logger.Logger, m domrepo.Metrics) *similarity.Store {
	s := similarity.NewStore(ext)
	s.SetLogger(l)
	s.SetMetrics(m)
	return s
}

func ProvideCombiner(reg *agents.Registry, ext *features.Extractor, cfg *config.Config, dc *cache.DecisionCache, l *logger.Logger, m domrepo.Metrics) *ensemble.Combiner {
	c := ensemble.New(reg, ext, cfg.Ensemble)
	c.SetCache(dc)
	c.SetLogger(l)
	c.SetMetrics(m)
	return c
}

func ProvideBacktestEngine(comb *ensemble.Combiner, cfg *config.Config, dc *cache.DecisionCache, l *logger.Logger, m domrepo.Metrics) *usecase.BacktestEngine {
	e := usecase.NewBacktestEngine(comb, cfg.Backtest)
	e.SetLogger(l)
	e.SetMetrics(m)
	e.SetCache(dc)
	return e
}

// ProvideWeightBook seeds weights from config, then from the weights file if one is set.
func ProvideWeightBook(comb *ensemble.Combiner, cfg *config.Config, l *logger.Logger) (*usecase.WeightBook, error) {
	book, err := usecase.NewWeightBook(comb, cfg.Ensemble.Weights)
	if err != nil {
		return nil, fmt.Errorf("ensemble weights: %w", err)
	}
	book.SetLogger(l)
	if cfg.Ensemble.WeightsFile != "" {
		if _, err := book.LoadFile(cfg.Ensemble.WeightsFile); err != nil {
			return nil, err
		}
	}
	return book, nil
}

func ProvideDecisionService(
	src domrepo.PriceSource,
	comb *ensemble.Combiner,
	store *similarity.Store,
	book *usecase.WeightBook,
	engine *usecase.BacktestEngine,
	dc *cache.DecisionCache,
	pub domrepo.Publisher,
	l *logger.Logger,
	m domrepo.Metrics,
) *usecase.DecisionService {
	s := usecase.NewDecisionService(src, comb, store, book, engine)
	s.SetLogger(l)
	s.SetMetrics(m)
	s.SetCache(dc)
	if pub != nil {
		s.SetPublisher(pub)
	}
	return s
}

// ProvideBarsHandler persists streamed bars when the source is also a sink.
func ProvideBarsHandler(
	cfg *config.Config,
	svc *usecase.DecisionService,
	store *similarity.Store,
	src domrepo.PriceSource,
	dc *cache.DecisionCache,
	l *logger.Logger,
	m domrepo.Metrics,
) *usecase.BarsHandler {
	h := usecase.NewBarsHandler(cfg.Kafka.BarsTopic, svc, store)
	h.SetLogger(l)
	h.SetMetrics(m)
	h.SetCache(dc)
	if sink, ok := src.(domrepo.BarSink); ok {
		h.SetSink(sink, domrepo.NormalizeTimeframe(cfg.Source.Timeframe))
	}
	c := cfg.Kafka.Consumer
	h.SetLimiter(ratelimit.New(c.DecisionBurst, c.DecisionRate))
	return h
}

// ProvideJobQueue connects the backtest job queue using the cache's Redis
// settings, or returns nil when the queue is disabled.
func ProvideJobQueue(cfg *config.Config, l *logger.Logger) (*queue.RedisQueue, func(), error) {
	if !cfg.Queue.Enabled {
		return nil, func() {}, nil
	}
	r := cfg.Cache.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", r.Host, r.Port),
		Password: r.Password,
		DB:       r.DB,
		PoolSize: r.PoolSize,
	})
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		PollWait:   cfg.Queue.PollWait,
	}, client, queue.WithKeyPrefix(cfg.Queue.Prefix))
	return q, func() { _ = client.Close() }, nil
}

func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	svc *usecase.DecisionService,
	bars *usecase.BarsHandler,
	consumer *pkgkafka.Consumer,
	jobs *queue.RedisQueue,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(traceHook(l))
	}
	if jobs != nil {
		job := usecase.NewBacktestJob(svc)
		job.SetLogger(l)
		jobs.RegisterJob(job)
	}
	return server.New(cfg, l, svc, bars, consumer, jobs)
}

// traceHook carries the producer's trace id into handler contexts and logs
// failed messages with it.
func traceHook(l *logger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafkago.Message) (context.Context, error) {
			if id := pkgkafka.ExtractTraceID(km); id != "" {
				ctx = pkgkafka.WithTraceID(ctx, id)
			}
			return ctx, nil
		},
		After: func(ctx context.Context, topic string, km kafkago.Message, err error) {
			if err == nil {
				return
			}
			l.Warn("bars message failed",
				logger.String("topic", topic),
				logger.Int("partition", km.Partition),
				logger.String("trace_id", pkgkafka.TraceID(ctx)),
				logger.Error(err))
		},
	}
}
