package events

import (
	"context"

	"kassa/pkg/logger"
)

// Buffer collects events produced inside a transaction so they can be
// published only after commit. Flush is best-effort: errors are logged and
// swallowed, and a panic in a publisher cannot reach the caller.
type Buffer struct {
	pending []Event
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Add queues an event for post-commit publishing.
func (b *Buffer) Add(event Event) {
	b.pending = append(b.pending, event)
}

// Len returns the number of queued events.
func (b *Buffer) Len() int {
	return len(b.pending)
}

// Events returns the queued events in enqueue order.
func (b *Buffer) Events() []Event {
	return b.pending
}

// Flush publishes all queued events and clears the buffer.
// Must only be called after the enclosing transaction committed.
func (b *Buffer) Flush(ctx context.Context, publisher Publisher) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "event publisher panicked", "panic", r)
		}
	}()

	for _, event := range b.pending {
		if err := publisher.Publish(ctx, event); err != nil {
			logger.Error(ctx, "event publish failed",
				"event", event.Kind,
				"company_id", event.CompanyID,
				"error", err,
			)
		}
	}
	b.pending = b.pending[:0]
}
