package telemetry

import (
	"context"
	"time"

	"github.com/Impact-Forge/SharedGamemode/internal/platform/telemetry/events"
)

// Emitter stamps and forwards domain events to a publisher.
type Emitter struct {
	publisher events.Publisher
	clock     func() time.Time
}

// NewEmitter creates an emitter backed by publisher.
func NewEmitter(publisher events.Publisher) *Emitter {
	return &Emitter{publisher: publisher, clock: time.Now}
}

// Emit publishes evt, filling in the timestamp when it is missing. A nil
// emitter or publisher drops the event.
func (e *Emitter) Emit(ctx context.Context, evt events.Event) error {
	if e == nil || e.publisher == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		clock := e.clock
		if clock == nil {
			clock = time.Now
		}
		evt.Timestamp = clock().UTC()
	}
	return e.publisher.Publish(ctx, evt)
}
