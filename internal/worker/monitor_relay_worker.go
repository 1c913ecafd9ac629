package worker

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/stemsi/examhall-backend/internal/events"
)

// EventSource is the subscribing side of the session event bus.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

// Broadcaster fans a session event out to live monitors.
type Broadcaster interface {
	Broadcast(ctx context.Context, evt events.SessionEvent) error
}

// MonitorRelayWorker forwards session events from the bus to the per-exam
// monitor channels watched by the SSE endpoint.
type MonitorRelayWorker struct {
	source EventSource
	sink   Broadcaster
	log    zerolog.Logger
}

// NewMonitorRelayWorker creates a new MonitorRelayWorker.
func NewMonitorRelayWorker(source EventSource, sink Broadcaster, log zerolog.Logger) *MonitorRelayWorker {
	return &MonitorRelayWorker{
		source: source,
		sink:   sink,
		log:    log.With().Str("component", "monitor_relay_worker").Logger(),
	}
}

// Start consumes the bus until ctx is cancelled or the stream closes.
// Call in a goroutine.
func (w *MonitorRelayWorker) Start(ctx context.Context) {
	messages, err := w.source.Subscribe(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Subscribe failed, monitor relay disabled")
		return
	}
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case msg, ok := <-messages:
			if !ok {
				w.log.Info().Msg("Event stream closed")
				return
			}
			w.process(ctx, msg)
		}
	}
}

func (w *MonitorRelayWorker) process(ctx context.Context, msg *message.Message) {
	evt, err := events.Decode(msg)
	if err != nil {
		// Poison message; redelivery would fail the same way.
		w.log.Error().Err(err).Str("message_id", msg.UUID).Msg("Invalid event payload")
		msg.Ack()
		return
	}

	// Monitors are best effort: a failed broadcast is logged, not retried.
	if err := w.sink.Broadcast(ctx, evt); err != nil && ctx.Err() == nil {
		w.log.Warn().Err(err).
			Str("type", string(evt.Type)).
			Str("exam_id", evt.ExamID.String()).
			Msg("Broadcast failed")
	}
	msg.Ack()
}
