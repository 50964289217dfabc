package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	fieldPayload = "payload"
	fieldAttempt = "attempt"
)

// RedisStreamsConfig tunes the Redis Streams backend.
type RedisStreamsConfig struct {
	Stream     string
	Group      string
	Consumer   string
	MaxRetries int
	ClaimIdle  time.Duration
	Block      time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
}

// RedisStreams is a consumer-group job queue on a single stream.
type RedisStreams struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	maxRetries   int
	claimIdle    time.Duration
	block        time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
}

// NewRedisStreams validates cfg and applies defaults.
func NewRedisStreams(client *redis.Client, cfg RedisStreamsConfig) (*RedisStreams, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "default"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}
	q := &RedisStreams{
		client:       client,
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		maxRetries:   cfg.MaxRetries,
		claimIdle:    cfg.ClaimIdle,
		block:        cfg.Block,
		retryDelay:   cfg.RetryDelay,
		maxLen:       cfg.MaxLen,
		readCount:    cfg.ReadCount,
	}
	if q.maxRetries <= 0 {
		q.maxRetries = 3
	}
	if q.claimIdle <= 0 {
		q.claimIdle = 10 * time.Minute
	}
	if q.block <= 0 {
		q.block = 5 * time.Second
	}
	if q.retryDelay < 0 {
		q.retryDelay = 0
	}
	if q.maxLen <= 0 {
		q.maxLen = 10000
	}
	if q.readCount <= 0 {
		q.readCount = 1
	}
	return q, nil
}

// Enqueue appends the job to the stream.
func (q *RedisStreams) Enqueue(ctx context.Context, job Job) error {
	return q.add(ctx, q.client, job, 1)
}

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

func (q *RedisStreams) add(ctx context.Context, c streamAdder, job Job, attempt int) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	return c.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			fieldPayload: string(payload),
			fieldAttempt: strconv.Itoa(attempt),
		},
	}).Err()
}

// Run starts concurrency consumers and blocks until ctx is canceled.
func (q *RedisStreams) Run(ctx context.Context, concurrency int, handler Handler) error {
	if handler == nil {
		return errors.New("handler required")
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		g.Go(func() error {
			for gctx.Err() == nil {
				if _, err := q.Poll(gctx, consumer, handler); err != nil && gctx.Err() == nil {
					if !sleepCtx(gctx, time.Second) {
						break
					}
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (q *RedisStreams) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Poll reclaims stale deliveries, then reads new ones, handling each.
// It returns the number of messages handled.
func (q *RedisStreams) Poll(ctx context.Context, consumer string, handler Handler) (int, error) {
	handled := 0
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.readCount,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("claim pending: %w", err)
	}
	for _, msg := range claimed {
		q.handle(ctx, msg, handler)
		handled++
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    q.readCount,
		Block:    q.block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return handled, nil
		}
		return handled, fmt.Errorf("read group: %w", err)
	}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			q.handle(ctx, msg, handler)
			handled++
		}
	}
	return handled, nil
}

func (q *RedisStreams) handle(ctx context.Context, msg redis.XMessage, handler Handler) {
	raw, _ := msg.Values[fieldPayload].(string)
	job, err := decodeJob([]byte(raw))
	if err != nil {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	attempt, _ := strconv.Atoi(fmt.Sprint(msg.Values[fieldAttempt]))
	if attempt <= 0 {
		attempt = 1
	}
	job.Attempt = attempt
	job.LastAttempt = attempt >= q.maxRetries

	err = handler(ctx, job)
	if err == nil || job.LastAttempt || IsPermanent(err) {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if !sleepCtx(ctx, q.retryDelay) {
		return
	}
	_ = q.requeueAndAck(ctx, msg.ID, job, attempt+1)
}

func (q *RedisStreams) ackAndDel(ctx context.Context, msgID string) {
	pipe := q.client.TxPipeline()
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, _ = pipe.Exec(ctx)
}

// requeueAndAck re-adds the job with a bumped attempt and acks the original
// in one transaction so a failure leaves the original pending.
func (q *RedisStreams) requeueAndAck(ctx context.Context, msgID string, job Job, attempt int) error {
	pipe := q.client.TxPipeline()
	if err := q.add(ctx, pipe, job, attempt); err != nil {
		return err
	}
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
