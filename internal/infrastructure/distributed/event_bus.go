package distributed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streampay/internal/core/domain"
)

var ErrAlreadySubscribed = errors.New("already subscribed")

// EventBus relays transition events between escrowd instances over redis
// pub/sub. Each instance skips the events it published itself.
type EventBus struct {
	client     *redis.Client
	instanceID string
	channel    string
	logger     *zap.SugaredLogger

	mu     sync.Mutex
	pubsub *redis.PubSub
}

func NewEventBus(
	client *redis.Client,
	instanceID string,
	channel string,
	logger *zap.SugaredLogger,
) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		channel:    channel,
		logger:     logger,
	}
}

func (eb *EventBus) InstanceID() string {
	return eb.instanceID
}

// Publish publishes an event to the bus. The event is stamped with this
// instance's id.
func (eb *EventBus) Publish(ctx context.Context, event *domain.TransitionEvent) error {
	stamped := *event
	stamped.InstanceID = eb.instanceID

	data, err := json.Marshal(&stamped)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := eb.client.Publish(ctx, eb.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"event_id", event.ID,
		"type", event.Type,
		"channel", eb.channel,
	)
	return nil
}

// Subscribe blocks, calling handler for every event published by other
// instances, until ctx is done or the subscription closes.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(context.Context, *domain.TransitionEvent) error) error {
	eb.mu.Lock()
	if eb.pubsub != nil {
		eb.mu.Unlock()
		return ErrAlreadySubscribed
	}
	pubsub := eb.client.Subscribe(ctx, eb.channel)
	eb.pubsub = pubsub
	eb.mu.Unlock()

	defer func() {
		eb.mu.Lock()
		eb.pubsub = nil
		eb.mu.Unlock()
		pubsub.Close()
	}()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eb.channel, err)
	}
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event domain.TransitionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			if event.InstanceID == eb.instanceID {
				continue
			}

			if err := handler(ctx, &event); err != nil {
				eb.logger.Warnw("error handling event",
					"event_id", event.ID,
					"type", event.Type,
					"error", err,
				)
			}
		}
	}
}

// Close ends an active subscription.
func (eb *EventBus) Close() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}
