package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

// Topic is the Redis pub/sub channel carrying alert events between processes.
const Topic = "alert_events"

const publishTimeout = 5 * time.Second

// envelope is the wire form on the Redis channel. InstanceID lets
// subscribers drop messages they published themselves.
type envelope struct {
	InstanceID string        `json:"instance_id"`
	EventType  string        `json:"event_type"`
	Alert      *models.Alert `json:"alert"`
}

// RedisChannel is the cross-process event channel. Publishing is
// fire-and-forget: errors are logged and swallowed so in-process delivery
// is never held hostage by Redis.
type RedisChannel struct {
	client     *redis.Client
	instanceID string
}

// NewRedisChannel connects to Redis using a redis:// URL.
func NewRedisChannel(url string) (*RedisChannel, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisChannel{
		client:     redis.NewClient(opt),
		instanceID: uuid.NewString(),
	}, nil
}

// Publish mirrors one event onto the topic without blocking the caller.
func (c *RedisChannel) Publish(eventType string, alert *models.Alert) {
	payload, err := json.Marshal(envelope{
		InstanceID: c.instanceID,
		EventType:  eventType,
		Alert:      alert,
	})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("Failed to encode alert event")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := c.client.Publish(ctx, Topic, payload).Err(); err != nil {
			log.Warn().Err(err).Str("event", eventType).Msg("Failed to publish alert event to Redis")
		}
	}()
}

// Run subscribes to the topic and re-emits remote events on the local bus
// until ctx is cancelled. Own-instance messages are dropped.
func (c *RedisChannel) Run(ctx context.Context, b *Bus) {
	sub := c.client.Subscribe(ctx, Topic)
	defer sub.Close()

	log.Info().Str("topic", Topic).Msg("Subscribed to cross-process alert events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Msg("Malformed alert event on Redis channel")
				continue
			}
			if env.InstanceID == c.instanceID || env.Alert == nil {
				continue
			}
			b.Dispatch(env.EventType, env.Alert)
		}
	}
}

// Close releases the Redis connection.
func (c *RedisChannel) Close() error {
	return c.client.Close()
}
