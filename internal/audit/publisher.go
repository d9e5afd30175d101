// Package audit records every transfer decision and administrative mutation
// as an append-only event trail, persisted locally and optionally streamed to
// Kafka for downstream compliance tooling.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Sink streams events out of process. A nil sink disables streaming.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. Sink failures
// never fail the emitting operation.
type Publisher struct {
	store  Store
	sink   Sink
	logger *slog.Logger
}

func NewPublisher(store Store, sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, sink: sink, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now().UTC()
	}
	if err := p.store.Append(ctx, base); err != nil {
		return err
	}
	if p.sink != nil {
		if err := p.sink.Publish(ctx, base); err != nil && p.logger != nil {
			p.logger.WarnContext(ctx, "audit sink publish failed", "event", base.ID, "error", err)
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context) ([]Event, error) {
	return p.store.List(ctx)
}
