package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"live_server/core/port/in"
	"live_server/pkg/apperr"
	"live_server/pkg/ratelimit"
)

// ConsumerConfig configures the comment consumer.
type ConsumerConfig struct {
	Stream       string
	Name         string // consumer name within the group
	Workers      int    // parallel readers in the group
	Count        int64
	Block        time.Duration
	ReclaimIdle  time.Duration // pending messages idle this long are reclaimed
	ReclaimEvery time.Duration
}

// ConsumerStats counts message outcomes.
type ConsumerStats struct {
	Ingested int64 `json:"ingested"`
	Rejected int64 `json:"rejected"` // admitted=false (duplicate, rate limit, full)
	Invalid  int64 `json:"invalid"`  // acknowledged and dropped
	Retried  int64 `json:"retried"`  // left pending
}

// Consumer reads comments from the stream and ingests them into their
// session. Messages are acknowledged after ingest. Validation errors, bad
// JSON and unknown or closed sessions are acknowledged and logged, not
// retried.
type Consumer struct {
	stream  *RedisStream
	svc     in.SessionService
	limiter *ratelimit.KeyedLimiter
	cfg     ConsumerConfig
	log     zerolog.Logger

	wg sync.WaitGroup

	ingested atomic.Int64
	rejected atomic.Int64
	invalid  atomic.Int64
	retried  atomic.Int64
}

func NewConsumer(stream *RedisStream, svc in.SessionService, limiter *ratelimit.KeyedLimiter, cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	if cfg.Stream == "" {
		cfg.Stream = StreamComments
	}
	if cfg.Name == "" {
		cfg.Name = "engine"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ReclaimIdle <= 0 {
		cfg.ReclaimIdle = 30 * time.Second
	}
	if cfg.ReclaimEvery <= 0 {
		cfg.ReclaimEvery = time.Minute
	}
	if limiter == nil {
		limiter = ratelimit.NewKeyedLimiter(0, 0)
	}
	return &Consumer{
		stream:  stream,
		svc:     svc,
		limiter: limiter,
		cfg:     cfg,
		log:     log.With().Str("component", "comment_consumer").Str("stream", cfg.Stream).Logger(),
	}
}

// Start creates the group and launches the readers. Wait blocks until they
// exit after ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.stream.CreateGroup(ctx, c.cfg.Stream); err != nil {
		return err
	}

	opts := ReadOptions{Count: c.cfg.Count, Block: c.cfg.Block}
	for i := 0; i < c.cfg.Workers; i++ {
		name := c.cfg.Name
		if c.cfg.Workers > 1 {
			name = fmt.Sprintf("%s-%d", name, i)
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.stream.Consume(ctx, c.cfg.Stream, name, opts, c.Handle)
		}()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.reclaimLoop(ctx)
	}()

	c.log.Info().Int("workers", c.cfg.Workers).Str("consumer", c.cfg.Name).Msg("comment consumer started")
	return nil
}

func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ReclaimEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.stream.ReclaimPending(ctx, c.cfg.Stream, c.cfg.Name, c.cfg.ReclaimIdle, c.Handle)
			if err != nil {
				if ctx.Err() == nil {
					c.log.Warn().Err(err).Msg("reclaim pending failed")
				}
				continue
			}
			if n > 0 {
				c.log.Info().Int("count", n).Msg("reclaimed pending comments")
			}
		}
	}
}

// Handle ingests one message. It is the stream Handler.
func (c *Consumer) Handle(ctx context.Context, id string, data []byte) error {
	var msg CommentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.invalid.Add(1)
		c.log.Warn().Err(err).Str("message_id", id).Msg("undecodable comment, dropping")
		return nil
	}

	if err := c.limiter.Wait(ctx, string(msg.Comment.Platform)); err != nil {
		c.retried.Add(1)
		return err
	}

	res, err := c.svc.Ingest(ctx, msg.SessionID, &msg.Comment)
	switch {
	case err == nil:
	case apperr.IsCode(err, apperr.CodeValidationFailed),
		apperr.IsCode(err, apperr.CodeSessionNotFound),
		apperr.IsCode(err, apperr.CodeSessionClosed):
		c.invalid.Add(1)
		c.log.Debug().Err(err).
			Str("message_id", id).
			Str("session_id", msg.SessionID).
			Str("comment_id", msg.Comment.ID).
			Msg("comment dropped")
		return nil
	default:
		c.retried.Add(1)
		return err
	}

	if res.Accepted {
		c.ingested.Add(1)
	} else {
		c.rejected.Add(1)
	}
	return nil
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Ingested: c.ingested.Load(),
		Rejected: c.rejected.Load(),
		Invalid:  c.invalid.Load(),
		Retried:  c.retried.Load(),
	}
}
