package bus

import (
	"context"
	"fmt"
	"net"

	kafka "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"sentinel/internal/events"
)

// KafkaTransport is the RemoteTransport implementation backing the managed
// event bus, one Kafka topic per event_type.
type KafkaTransport struct {
	writer *kafka.Writer
}

// NewKafkaTransport constructs a transport against brokers. Callers should
// call EnsureTopics once at startup before traffic flows.
func NewKafkaTransport(brokers []string) *KafkaTransport {
	return &KafkaTransport{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// PutEvents writes each event to its event-type topic concurrently, failing
// if any write fails so the bus falls back to the secondary transport.
func (t *KafkaTransport) PutEvents(ctx context.Context, evts []events.Event) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, evt := range evts {
		evt := evt
		g.Go(func() error {
			raw, err := evt.MarshalJSON()
			if err != nil {
				return fmt.Errorf("marshal event %s: %w", evt.EventID, err)
			}
			return t.writer.WriteMessages(gctx, kafka.Message{
				Topic: string(evt.EventType),
				Key:   []byte(evt.CorrelationID),
				Value: raw,
			})
		})
	}
	return g.Wait()
}

func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}

// EnsureTopics creates one topic per event_type in the closed vocabulary if
// it does not already exist, dialing the cluster controller the way a
// cluster-admin bootstrap job would.
func EnsureTopics(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("bus: no brokers provided")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("bus: dial broker %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("bus: get controller: %w", err)
	}
	controllerAddr := net.JoinHostPort(controller.Host, fmt.Sprint(controller.Port))

	ctrlConn, err := kafka.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return fmt.Errorf("bus: dial controller %s: %w", controllerAddr, err)
	}
	defer ctrlConn.Close()

	for _, topic := range events.AllTopics() {
		parts, _ := ctrlConn.ReadPartitions(string(topic))
		if len(parts) > 0 {
			continue
		}
		cfg := kafka.TopicConfig{Topic: string(topic), NumPartitions: 1, ReplicationFactor: 1}
		if err := ctrlConn.CreateTopics(cfg); err != nil {
			return fmt.Errorf("bus: create topic %s: %w", topic, err)
		}
	}
	return nil
}
