// Package publisher fans audit events out to a store and optional sinks,
// synchronously by default or through a buffered worker in async mode.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"credrelay/pkg/platform/audit"
)

// Store is the durable side of the trail.
type Store interface {
	Append(ctx context.Context, event audit.Event) error
	ListBySubject(ctx context.Context, subject string) ([]audit.Event, error)
}

// Sink is a fire-and-forget delivery target (message broker, SIEM).
type Sink interface {
	Publish(ctx context.Context, event audit.Event) error
}

type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches Emit to enqueue onto a worker with the given
// buffer size. A full buffer drops the event rather than blocking the
// domain operation.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan audit.Event, size)
	}
}

// WithSink adds a delivery target alongside the store.
func WithSink(sink Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, sink)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Emit records an event. Errors are logged, never propagated: the audit
// trail must not take down the operation it describes.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if p.buffer != nil {
		select {
		case p.buffer <- event:
		default:
			p.logger.Warn("audit buffer full, event dropped",
				"action", string(event.Action), "subject", event.Subject)
		}
		return nil
	}
	p.deliver(ctx, event)
	return nil
}

// List returns the trail for one subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close drains the async buffer and stops the worker.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for event := range p.buffer {
		p.deliver(context.Background(), event)
	}
}

func (p *Publisher) deliver(ctx context.Context, event audit.Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.Error("audit store append failed", "error", err,
			"action", string(event.Action), "subject", event.Subject)
	}
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.logger.Error("audit sink publish failed", "error", err,
				"action", string(event.Action), "subject", event.Subject)
		}
	}
}
