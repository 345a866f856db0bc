// Package events carries forced-terminal and artifact-arrival signals between
// components. Providers share one dispatch path that validates every envelope
// before it reaches subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JaimeStill/lectern/pkg/database"
	"github.com/JaimeStill/lectern/pkg/lifecycle"
)

// Handler consumes one validated envelope.
type Handler func(ctx context.Context, payload []byte)

// Publisher emits envelopes.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Bus publishes envelopes and delivers them to subscribers.
type Bus interface {
	Publisher
	// Subscribe registers h for topic. Subscriptions must be made before Start.
	Subscribe(topic string, h Handler)
	// Start registers the bus with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

// New creates the bus selected by cfg. The postgres provider requires a
// database with a native pgx pool.
func New(cfg *Config, db database.System, logger *slog.Logger) (Bus, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}

	if cfg.Provider == ProviderPostgres {
		pool, err := db.Pool()
		if err != nil {
			return nil, fmt.Errorf("postgres event bus: %w", err)
		}
		return newPostgres(pool, validator, cfg.ReconnectDelayDuration(), logger), nil
	}

	return NewLocal(validator, logger), nil
}

type registry struct {
	mu        sync.RWMutex
	handlers  map[string][]Handler
	validator *Validator
	logger    *slog.Logger
}

func newRegistry(validator *Validator, logger *slog.Logger) *registry {
	return &registry{
		handlers:  make(map[string][]Handler),
		validator: validator,
		logger:    logger,
	}
}

func (r *registry) Subscribe(topic string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = append(r.handlers[topic], h)
}

func (r *registry) topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	return topics
}

func (r *registry) deliver(ctx context.Context, topic string, payload []byte) {
	if err := r.validator.Validate(topic, payload); err != nil {
		r.logger.Warn("dropping invalid envelope", "topic", topic, "error", err)
		return
	}

	r.mu.RLock()
	handlers := append([]Handler(nil), r.handlers[topic]...)
	r.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, payload)
	}
}

func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}
