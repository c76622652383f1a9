package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"acctgate/pkg/domain"
)

// ErrBufferFull is returned by Emit when the async buffer cannot accept the
// event. Notifications are best-effort for the relay; the state transition
// has already committed, so callers log and move on.
var ErrBufferFull = errors.New("event buffer full")

// Publisher stamps and forwards events to a Store, either synchronously or
// through a bounded buffer drained by a background goroutine.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox chan Event
	done  chan struct{}
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking behind a buffer of the given size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan Event, size)
	}
}

// WithLogger sets the logger used for sink failures in async mode.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default(), done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit stamps the event (ID, timestamp) and hands it to the store. In sync
// mode store failures surface to the caller; in async mode they are logged.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// List exposes the store's per-account view through the publisher so
// handlers need only one dependency.
func (p *Publisher) List(ctx context.Context, account domain.Address) ([]Event, error) {
	return p.store.ListByAccount(ctx, account)
}

// Close drains the async buffer and stops the background goroutine. Safe to
// call multiple times and in sync mode.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.logger.Error("event sink append failed",
				"action", event.Action,
				"account", event.Account.String(),
				"error", err,
			)
		}
	}
}
