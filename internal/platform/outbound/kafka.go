// Package outbound republishes domain events onto Kafka for
// cross-service consumers, as an optional addition to the in-process
// event bus (internal/platform/events). Absent broker configuration,
// callers should skip wiring this package entirely; nothing else in
// the core depends on it.
package outbound

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/wms-platform/scheduler-core/internal/platform/events"
	"github.com/wms-platform/scheduler-core/internal/platform/logging"
	"github.com/wms-platform/scheduler-core/internal/platform/resilience"
)

// Config holds the republication topic and broker list.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes domain events to Kafka, guarded by a circuit
// breaker so a broker outage degrades to bus-only delivery.
type Publisher struct {
	writer  *kafka.Writer
	breaker *resilience.CircuitBreaker
	logger  *logging.Logger
}

// NewPublisher creates a Kafka-backed publisher. Returns nil if cfg has
// no brokers configured, signaling callers to skip republication.
func NewPublisher(cfg Config, logger *logging.Logger) *Publisher {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("kafka-publisher"), logger)
	return &Publisher{writer: writer, breaker: breaker, logger: logger}
}

// wireEvent is the JSON envelope published for every domain event.
type wireEvent struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Publish republishes one bus event onto Kafka. A nil Publisher makes
// this a no-op, so callers can wire it unconditionally.
func (p *Publisher) Publish(ctx context.Context, evt events.Event) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(wireEvent{Type: string(evt.Type), Payload: evt.Payload, Timestamp: time.Now()})
	if err != nil {
		return err
	}
	_, err = p.breaker.Execute(ctx, func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(evt.Type), Value: body})
	})
	return err
}

// Close releases the underlying Kafka writer. A nil Publisher makes
// this a no-op.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

// Subscribe attaches the publisher to every event type on bus so each
// published event is mirrored to Kafka asynchronously.
func Subscribe(bus *events.Bus, publisher *Publisher, types []events.Type) {
	if publisher == nil {
		return
	}
	for _, t := range types {
		bus.Subscribe(t, func(evt events.Event) {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := publisher.Publish(ctx, evt); err != nil && publisher.logger != nil {
					publisher.logger.WithError(err).Event(ctx, "event_republish_failed", map[string]any{"type": string(evt.Type)})
				}
			}()
		})
	}
}
