package distributed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"streampay/internal/core/domain"
	"streampay/internal/core/ports"
	"streampay/pkg/circuitbreaker"
)

// FanoutPublisher delivers events to the local feed and, when configured, to
// the shared bus. The bus sits behind a circuit breaker so a redis outage
// costs one fast failure per event instead of a network timeout.
type FanoutPublisher struct {
	local   ports.EventPublisher
	bus     *EventBus
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

func NewFanoutPublisher(local ports.EventPublisher, bus *EventBus, breaker *circuitbreaker.CircuitBreaker, logger *zap.SugaredLogger) *FanoutPublisher {
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	return &FanoutPublisher{
		local:   local,
		bus:     bus,
		breaker: breaker,
		logger:  logger,
	}
}

func (p *FanoutPublisher) Publish(ctx context.Context, event *domain.TransitionEvent) error {
	var errs []error
	if p.local != nil {
		if err := p.local.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("local feed: %w", err))
		}
	}
	if p.bus != nil {
		err := p.breaker.Execute(func() error {
			return p.bus.Publish(ctx, event)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("event bus: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RelayRemote feeds events from other instances into the local publisher
// until ctx is done.
func (p *FanoutPublisher) RelayRemote(ctx context.Context) error {
	if p.bus == nil || p.local == nil {
		return nil
	}
	p.logger.Infow("relaying remote events", "instance_id", p.bus.InstanceID())
	return p.bus.Subscribe(ctx, p.local.Publish)
}

func (p *FanoutPublisher) BreakerState() circuitbreaker.State {
	return p.breaker.State()
}
