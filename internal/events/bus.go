package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall-backend/internal/config"
)

// Publisher is what services need from the bus.
type Publisher interface {
	Publish(ctx context.Context, evt SessionEvent) error
}

// Bus publishes and subscribes to session events on one topic.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	shared     bool
	topic      string
	log        zerolog.Logger
}

// NewBus builds a Kafka-backed bus when cfg.KafkaBrokers is set and an
// in-process gochannel bus otherwise.
func NewBus(cfg config.EventsConfig, log zerolog.Logger) (*Bus, error) {
	log = log.With().Str("component", "events").Logger()
	wlog := NewLoggerAdapter(log)

	if len(cfg.KafkaBrokers) == 0 {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wlog)
		log.Info().Str("topic", cfg.Topic).Msg("Event bus using in-process channel")
		return &Bus{publisher: ch, subscriber: ch, shared: true, topic: cfg.Topic, log: log}, nil
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wlog)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}

	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               cfg.KafkaBrokers,
		Unmarshaler:           kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: kafka.DefaultSaramaSubscriberConfig(),
		ConsumerGroup:         cfg.ConsumerGroup,
	}, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create kafka subscriber: %w", err)
	}

	log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.Topic).Msg("Event bus using Kafka")
	return &Bus{publisher: pub, subscriber: sub, topic: cfg.Topic, log: log}, nil
}

// Publish marshals evt and sends it to the session topic.
func (b *Bus) Publish(ctx context.Context, evt SessionEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(evt.ID, payload)
	msg.Metadata.Set("event_type", string(evt.Type))
	msg.Metadata.Set("exam_id", evt.ExamID.String())
	msg.SetContext(ctx)

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", evt.Type, err)
	}
	return nil
}

// Subscribe returns the message stream of the session topic. Each message
// must be acked or nacked by the consumer.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.subscriber.Subscribe(ctx, b.topic)
}

// Close releases publisher and subscriber resources.
func (b *Bus) Close() error {
	perr := b.publisher.Close()
	if b.shared {
		return perr
	}
	if err := b.subscriber.Close(); err != nil {
		return err
	}
	return perr
}

// Decode unmarshals a bus message into a SessionEvent.
func Decode(msg *message.Message) (SessionEvent, error) {
	var evt SessionEvent
	err := json.Unmarshal(msg.Payload, &evt)
	return evt, err
}
