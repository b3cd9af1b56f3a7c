package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/flenzi/company-service/pkg/log"
)

const redisEventBuffer = 100

// RedisPubSub carries domain events over Redis PUBLISH/SUBSCRIBE. Delivery
// is at most once: events published while nobody listens are gone.
type RedisPubSub struct {
	client *redis.Client

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

// NewRedisPubSub dials Redis and fails fast when it is unreachable.
func NewRedisPubSub(cfg RedisConfig) (*RedisPubSub, error) {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return NewRedisPubSubFromClient(client), nil
}

// NewRedisPubSubFromClient wraps an existing client. Close closes the client.
func NewRedisPubSubFromClient(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client, subs: make(map[string]*redis.PubSub)}
}

// Client returns the underlying Redis client.
func (r *RedisPubSub) Client() *redis.Client {
	return r.client
}

func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns once the server has confirmed the subscription, so an
// event published right after the call is not missed.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return r.listen(ctx, channel, r.client.Subscribe(ctx, channel))
}

// SubscribePattern is Subscribe for a glob pattern such as ChannelPattern.
func (r *RedisPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return r.listen(ctx, pattern, r.client.PSubscribe(ctx, pattern))
}

func (r *RedisPubSub) listen(ctx context.Context, key string, ps *redis.PubSub) (<-chan *Event, error) {
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	r.mu.Lock()
	if prev := r.subs[key]; prev != nil {
		_ = prev.Close()
	}
	r.subs[key] = ps
	r.mu.Unlock()

	out := make(chan *Event, redisEventBuffer)
	go func() {
		defer close(out)

		logger := log.Ctx(ctx)
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if !forward(ctx, &logger, out, []byte(msg.Payload), msg.Channel) {
					return
				}
			}
		}
	}()
	return out, nil
}

// Unsubscribe drops the subscription registered under channel, if any.
func (r *RedisPubSub) Unsubscribe(ctx context.Context, channel string) error {
	r.mu.Lock()
	ps := r.subs[channel]
	delete(r.subs, channel)
	r.mu.Unlock()

	if ps == nil {
		return nil
	}
	return ps.Close()
}

// Close drops every subscription and closes the client.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	for key, ps := range r.subs {
		_ = ps.Close()
		delete(r.subs, key)
	}
	r.mu.Unlock()

	return r.client.Close()
}

// forward decodes one event and hands it to out without blocking. Malformed
// payloads and events that do not fit the buffer are logged and dropped. It
// reports false once ctx is done.
func forward(ctx context.Context, logger *zerolog.Logger, out chan<- *Event, data []byte, source string) bool {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		logger.Warn().Err(err).Str("source", source).Msg("dropping malformed event")
		return true
	}

	select {
	case out <- &event:
	case <-ctx.Done():
		return false
	default:
		logger.Warn().Str(log.FieldEventID, event.ID.String()).Str("source", source).Msg("subscriber buffer full, dropping event")
	}
	return true
}
