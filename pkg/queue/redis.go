package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"HackCap/pkg/logger"
)

// RedisQueue is a list-backed work queue with delayed retries in a sorted
// set and a dead-letter list.
type RedisQueue struct {
	log       *logger.Logger
	cfg       Config
	client    redis.Cmdable
	keyPrefix string
	now       func() time.Time

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix sets the Redis key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) { r.keyPrefix = prefix }
}

// NewRedisQueue builds a queue. Without registered jobs it only enqueues.
func NewRedisQueue(l *logger.Logger, cfg Config, client redis.Cmdable, opts ...Option) *RedisQueue {
	if l == nil {
		l = logger.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.PollWait <= 0 {
		cfg.PollWait = time.Second
	}
	r := &RedisQueue{
		log:       l,
		cfg:       cfg,
		client:    client,
		keyPrefix: "hackcap:queue",
		now:       time.Now,
		jobs:      make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterJob routes messages of job.Type() to job. Duplicates are ignored.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and launches the workers and the retry mover.
func (r *RedisQueue) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}
	if len(r.jobs) == 0 {
		return fmt.Errorf("no jobs registered")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	r.wg.Add(1)
	go r.retryLoop(ctx)

	r.log.Info("redis queue started", logger.Int("workers", r.cfg.Workers), logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs, bounded by ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	}
}

// Enqueue pushes a JSON-encoded payload and returns the message id.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: body, Timestamp: r.now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}
	return msg.ID, nil
}

func (r *RedisQueue) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for ctx.Err() == nil {
		res, err := r.client.BRPop(ctx, r.cfg.PollWait, r.queueKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.log.Error("brpop error", logger.Int("worker_id", id), logger.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.log.Error("unmarshal message", logger.Error(err))
			r.deadLetter(ctx, Message{Payload: json.RawMessage(strconv.Quote(res[1])), LastError: err.Error()})
			continue
		}
		r.process(ctx, msg)
	}
}

// process runs the job for msg and routes failures to retry or the DLQ.
func (r *RedisQueue) process(ctx context.Context, msg Message) {
	start := r.now()
	err := r.handle(ctx, msg)
	if err == nil {
		r.log.Debug("job done", logger.String("id", msg.ID), logger.String("type", msg.Type),
			logger.Duration("elapsed", r.now().Sub(start)))
		return
	}
	if errors.Is(err, context.Canceled) {
		// shutdown mid-job: requeue without spending an attempt
		r.schedule(context.Background(), msg, r.now())
		return
	}

	msg.LastError = err.Error()
	if msg.Attempts < r.cfg.RetryLimit && !errors.Is(err, ErrPermanent) {
		msg.Attempts++
		at := r.now().Add(r.cfg.RetryDelay)
		r.log.Warn("job failed, retry scheduled",
			logger.String("id", msg.ID), logger.String("type", msg.Type),
			logger.Int("attempt", msg.Attempts), logger.Error(err))
		r.schedule(ctx, msg, at)
		return
	}
	r.log.Error("job failed, moved to dlq",
		logger.String("id", msg.ID), logger.String("type", msg.Type), logger.Error(err))
	r.deadLetter(ctx, msg)
}

func (r *RedisQueue) handle(ctx context.Context, msg Message) (err error) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no job registered for type %q", ErrPermanent, msg.Type)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), p)
		}
	}()
	return job.Handle(ctx, msg.Payload)
}

func (r *RedisQueue) schedule(ctx context.Context, msg Message, at time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal retry", logger.Error(err))
		return
	}
	if err := r.client.ZAdd(ctx, r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: data}).Err(); err != nil {
		r.log.Error("zadd retry", logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal dlq", logger.Error(err))
		return
	}
	if err := r.client.LPush(ctx, r.deadLetterKey(), data).Err(); err != nil {
		r.log.Error("lpush dlq", logger.Error(err))
	}
}

func (r *RedisQueue) retryLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.moveDue(ctx)
		}
	}
}

// moveDue pushes retries whose time has come back onto the main list.
func (r *RedisQueue) moveDue(ctx context.Context) {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("fetch due retries", logger.Error(err))
		}
		return
	}
	for _, member := range due {
		// ZREM first so two movers never requeue the same message
		removed, err := r.client.ZRem(ctx, r.retryKey(), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.queueKey(), member).Err(); err != nil {
			r.log.Error("requeue retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string      { return r.keyPrefix + ":messages" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

var _ Publisher = (*RedisQueue)(nil)
