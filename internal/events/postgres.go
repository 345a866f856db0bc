package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JaimeStill/lectern/pkg/lifecycle"
)

type postgres struct {
	*registry
	pool           *pgxpool.Pool
	reconnectDelay time.Duration
}

func newPostgres(pool *pgxpool.Pool, validator *Validator, reconnectDelay time.Duration, logger *slog.Logger) Bus {
	return &postgres{
		registry:       newRegistry(validator, logger.With("system", "events", "provider", ProviderPostgres)),
		pool:           pool,
		reconnectDelay: reconnectDelay,
	}
}

func (p *postgres) Publish(ctx context.Context, topic string, payload any) error {
	data, err := encode(payload)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", topic, err)
	}
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", topic, string(data)); err != nil {
		return fmt.Errorf("notify %s: %w", topic, err)
	}
	return nil
}

func (p *postgres) Start(lc *lifecycle.Coordinator) error {
	topics := p.topics()
	p.logger.Info("starting event listener", "topics", topics)

	lc.Go(func(ctx context.Context) {
		for {
			err := p.listen(ctx, topics)
			if ctx.Err() != nil {
				p.logger.Info("event listener stopped")
				return
			}
			p.logger.Error("event listener interrupted", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(p.reconnectDelay):
			}
		}
	})

	return nil
}

// listen holds one pooled connection for LISTEN until ctx ends or the connection fails.
// The connection is closed rather than returned so no subscription leaks into the pool.
func (p *postgres) listen(ctx context.Context, topics []string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		conn.Conn().Close(closeCtx)
		conn.Release()
	}()

	for _, topic := range topics {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{topic}.Sanitize()); err != nil {
			return fmt.Errorf("listen %s: %w", topic, err)
		}
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p.deliver(ctx, n.Channel, []byte(n.Payload))
	}
}
