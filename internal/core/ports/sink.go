package ports

import "go.trai.ch/kiln/internal/core/domain"

// EventSink receives the structured events emitted by the build core.
// Delivery is asynchronous and ordering-preserving per producer; the sink
// is responsible for all presentation.
type EventSink interface {
	// Emit queues one event for delivery.
	Emit(ev domain.LogEvent)
	// Close flushes queued events and stops delivery.
	Close() error
}
