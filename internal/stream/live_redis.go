// Package stream moves comments and engine events over Redis Streams.
package stream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	StreamComments = "live:comments"
	StreamEvents   = "live:events"
)

// Handler processes one stream message. A nil error acknowledges it; an
// error leaves it pending for redelivery.
type Handler func(ctx context.Context, id string, data []byte) error

type RedisStream struct {
	client *redis.Client
	group  string
	log    zerolog.Logger
}

func NewRedisStream(client *redis.Client, group string, log zerolog.Logger) *RedisStream {
	return &RedisStream{
		client: client,
		group:  group,
		log:    log.With().Str("component", "redis_stream").Str("group", group).Logger(),
	}
}

func (s *RedisStream) CreateGroup(ctx context.Context, stream string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": jsonData},
	}).Result()
}

// ReadOptions tune Consume.
type ReadOptions struct {
	Count int64
	Block time.Duration
}

// Consume reads new messages for consumer until ctx is done.
func (s *RedisStream) Consume(ctx context.Context, stream, consumer string, opts ReadOptions, handler Handler) {
	if opts.Count <= 0 {
		opts.Count = 10
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}

	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    opts.Count,
			Block:    opts.Block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			s.log.Warn().Err(err).Str("stream", stream).Msg("stream read error")
			// back off so a down server doesn't spin the loop
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}

		for _, st := range streams {
			s.handle(ctx, st.Stream, st.Messages, handler)
		}
	}
}

// ReclaimPending takes over messages another consumer left pending for at
// least minIdle and runs them through handler. Returns how many were
// handled.
func (s *RedisStream) ReclaimPending(ctx context.Context, stream, consumer string, minIdle time.Duration, handler Handler) (int, error) {
	msgs, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    s.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    100,
	}).Result()
	if err != nil {
		return 0, err
	}
	s.handle(ctx, stream, msgs, handler)
	return len(msgs), nil
}

func (s *RedisStream) handle(ctx context.Context, stream string, msgs []redis.XMessage, handler Handler) {
	for _, msg := range msgs {
		data, ok := msg.Values["data"].(string)
		if !ok {
			s.log.Warn().Str("stream", stream).Str("message_id", msg.ID).Msg("message without data field, dropping")
			s.ack(ctx, stream, msg.ID)
			continue
		}

		if err := handler(ctx, msg.ID, []byte(data)); err != nil {
			s.log.Warn().Err(err).Str("stream", stream).Str("message_id", msg.ID).Msg("handler error, leaving pending")
			continue
		}
		s.ack(ctx, stream, msg.ID)
	}
}

func (s *RedisStream) ack(ctx context.Context, stream, id string) {
	if err := s.client.XAck(ctx, stream, s.group, id).Err(); err != nil {
		s.log.Warn().Err(err).Str("stream", stream).Str("message_id", id).Msg("ack failed")
	}
}

func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}
