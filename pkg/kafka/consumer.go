package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"HackCap/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans messages out to a worker pool. Messages with the same key
// always land on the same worker, so per-key order is preserved.
type Consumer struct {
	cfg       *ConsumerConfig
	log       *logger.Logger
	handlers  map[string]MessageHandler
	readers   map[string]MessageReader
	newReader func(topic string) MessageReader
	workers   []chan *message
	dlq       MessageWriter
	hook      ConsumerHook

	cancel    context.CancelFunc
	fetchWg   sync.WaitGroup
	workWg    sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

type message struct {
	topic  string
	km     kafka.Message
	reader MessageReader
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(log *logger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		log:      log,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]MessageReader),
		hook:     HookFuncs{},
	}
	c.newReader = func(topic string) MessageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}

	initConsumerMetricsOnce()
	return c, nil
}

// RegisterHandler registers a message handler for a specific topic.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("kafka consumer: handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// Start launches one fetch loop per topic and the worker pool.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)

		c.workers = make([]chan *message, c.cfg.WorkerCount)
		for i := range c.workers {
			c.workers[i] = make(chan *message, c.cfg.BufferSize)
			c.workWg.Add(1)
			go c.worker(c.workers[i])
		}

		for topic := range c.handlers {
			reader := c.newReader(topic)
			c.readers[topic] = reader
			c.fetchWg.Add(1)
			go c.fetch(ctx, topic, reader)
		}
		c.log.Info("kafka consumer started",
			logger.Int("workers", c.cfg.WorkerCount),
			logger.Int("topics", len(c.handlers)))
	})
	return nil
}

// Stop drains in-flight work, bounded by ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		c.fetchWg.Wait()
		for _, ch := range c.workers {
			close(ch)
		}

		done := make(chan struct{})
		go func() {
			c.workWg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.log.Warn("kafka consumer: close reader", logger.String("topic", topic), logger.Error(err))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
		c.log.Info("kafka consumer stopped")
	})

	return stopErr
}

func (c *Consumer) fetch(ctx context.Context, topic string, reader MessageReader) {
	defer c.fetchWg.Done()

	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("kafka consumer: fetch", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
			case <-ctx.Done():
				return
			}
			continue
		}

		ch := c.workers[route(km.Key, len(c.workers))]
		select {
		case ch <- &message{topic: topic, km: km, reader: reader}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(ch)))
		case <-ctx.Done():
			return
		}
	}
}

func route(key []byte, n int) int {
	if n <= 1 || len(key) == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(n))
}

func (c *Consumer) worker(ch <-chan *message) {
	defer c.workWg.Done()

	for msg := range ch {
		c.process(msg)
	}
}

func (c *Consumer) process(msg *message) {
	handler := c.handlers[msg.topic]
	start := time.Now()

	err := c.handleWithRetry(handler, msg)
	result := "ok"
	if err != nil {
		result = "error"
		c.log.Error("kafka consumer: handler failed",
			logger.String("topic", msg.topic),
			logger.Int("partition", msg.km.Partition),
			logger.Error(err))
		if c.dlq != nil {
			result = "dlq"
			if dlqErr := c.dlq.WriteMessages(context.Background(), kafka.Message{
				Topic:   c.cfg.DLQTopic,
				Key:     msg.km.Key,
				Value:   msg.km.Value,
				Headers: append(msg.km.Headers, kafka.Header{Key: "source_topic", Value: []byte(msg.topic)}),
			}); dlqErr != nil {
				c.log.Error("kafka consumer: dlq write", logger.String("topic", c.cfg.DLQTopic), logger.Error(dlqErr))
			}
		}
	}

	// commit on success or once parked in the DLQ, so poison messages do not loop
	if err == nil || c.dlq != nil {
		c.commitWithRetry(msg, 3)
	}
	consumerHandled.WithLabelValues(msg.topic, result).Inc()
	consumerHandleLatency.WithLabelValues(msg.topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleWithRetry(handler MessageHandler, msg *message) (err error) {
	for attempt := 1; ; attempt++ {
		err = c.handleOnce(handler, msg)
		if err == nil || errors.Is(err, ErrPermanent) || attempt > c.cfg.RetryMax {
			return err
		}
		time.Sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt))
	}
}

func (c *Consumer) handleOnce(handler MessageHandler, msg *message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: handler panic: %v", ErrPermanent, r)
		}
	}()

	ctx := WithTraceID(context.Background(), ExtractTraceID(msg.km))
	ctx, err = c.hook.BeforeHandle(ctx, msg.topic, msg.km)
	if err != nil {
		return err
	}
	err = handler.Handle(ctx, msg.km.Value)
	c.hook.AfterHandle(ctx, msg.topic, msg.km, err)
	return err
}

func (c *Consumer) commitWithRetry(msg *message, max int) {
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = msg.reader.CommitMessages(ctx, msg.km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	c.log.Error("kafka consumer: commit", logger.String("topic", msg.topic), logger.Error(err))
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := min << uint(attempt-1)
	if exp > max || exp <= 0 {
		exp = max
	}
	// jitter up to 50%
	return exp - time.Duration(rand.Int63n(int64(exp)/2+1))
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "hackcap_kafka_consumer_queue_depth", Help: "Messages waiting in a worker queue"},
			[]string{"topic"},
		)
		consumerHandled = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "hackcap_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "hackcap_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
