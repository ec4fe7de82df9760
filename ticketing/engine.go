package ticketing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Engine runs every ticketing operation. It holds no mutable state of its
// own: the scope to act on is passed into each call and all state lives in
// the Store.
type Engine struct {
	store     Store
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets the receiver of committed events.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the wall clock used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine on top of store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		publisher: NopPublisher{},
		log:       slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying store for read-only queries.
func (e *Engine) Store() Store { return e.store }

// begin opens a transaction for a write against scope. The scope must exist
// and be the active one.
func (e *Engine) begin(ctx context.Context, scope ScopeID) (Tx, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	s, err := tx.GetScope(ctx, scope)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if !s.Active {
		tx.Rollback()
		return nil, fmt.Errorf("%w: %s", ErrArchivedScope, scope)
	}
	return tx, nil
}

// emit publishes ev. Failures are logged and swallowed.
func (e *Engine) emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log.Warn("event publish failed", "type", ev.Type, "scope_id", ev.ScopeID, "error", err)
	}
}
