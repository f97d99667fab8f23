package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/martinemde/mojocode/agent"
)

// Relay mirrors emitted envelopes to observers outside the connection.
type Relay interface {
	Publish(ctx context.Context, sessionID string, msg agent.Message) error
	Close() error
}

// RedisRelay publishes envelopes on a per-session Redis pub/sub channel.
type RedisRelay struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisRelay connects to the Redis server at url, e.g.
// redis://localhost:6379/0. Channels are named <prefix>:<session id>.
func NewRedisRelay(url, prefix string) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("realtime: invalid redis url: %w", err)
	}
	return NewRedisRelayFromClient(redis.NewClient(opts), prefix), nil
}

// NewRedisRelayFromClient wraps an existing client.
func NewRedisRelayFromClient(rdb *redis.Client, prefix string) *RedisRelay {
	if prefix == "" {
		prefix = "response"
	}
	return &RedisRelay{rdb: rdb, prefix: prefix}
}

// Channel returns the pub/sub channel for sessionID.
func (r *RedisRelay) Channel(sessionID string) string {
	return r.prefix + ":" + sessionID
}

// Ping checks the connection.
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisRelay) Publish(ctx context.Context, sessionID string, msg agent.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.Channel(sessionID), payload).Err()
}

// Subscribe streams the envelopes published for sessionID until ctx is done.
// Payloads that do not decode are logged and skipped.
func (r *RedisRelay) Subscribe(ctx context.Context, sessionID string, logger *slog.Logger) (<-chan agent.Message, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pubsub := r.rdb.Subscribe(ctx, r.Channel(sessionID))
	// Wait for the subscription so publishes right after return are seen.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan agent.Message)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg agent.Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					logger.Warn("dropping undecodable relay payload", "channel", m.Channel, "error", err)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}
