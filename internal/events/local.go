package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/lectern/pkg/lifecycle"
)

type local struct {
	*registry
}

// NewLocal creates an in-process bus. Publish delivers synchronously to every
// subscriber before returning.
func NewLocal(validator *Validator, logger *slog.Logger) Bus {
	return &local{
		registry: newRegistry(validator, logger.With("system", "events", "provider", ProviderLocal)),
	}
}

func (l *local) Publish(ctx context.Context, topic string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", topic, err)
	}
	l.deliver(ctx, topic, data)
	return nil
}

func (l *local) Start(lc *lifecycle.Coordinator) error {
	l.logger.Info("event bus ready", "topics", l.topics())
	return nil
}
