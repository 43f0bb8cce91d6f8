package stream

import (
	"context"
	"time"

	"live_server/core/domain"
)

// CommentMessage is the payload platform bridges append to the comment
// stream.
type CommentMessage struct {
	SessionID  string         `json:"session_id"`
	Comment    domain.Comment `json:"comment"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Producer appends comments for the engine to pick up.
type Producer struct {
	stream *RedisStream
	name   string
}

func NewProducer(stream *RedisStream, streamName string) *Producer {
	if streamName == "" {
		streamName = StreamComments
	}
	return &Producer{stream: stream, name: streamName}
}

func (p *Producer) PublishComment(ctx context.Context, sessionID string, c domain.Comment) (string, error) {
	return p.stream.Publish(ctx, p.name, &CommentMessage{
		SessionID:  sessionID,
		Comment:    c,
		ReceivedAt: time.Now().UTC(),
	})
}
