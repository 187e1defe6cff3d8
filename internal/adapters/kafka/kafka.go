// Package kafka publishes chat events to a Kafka topic for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"social-chat/internal/config"
	"social-chat/internal/models"
	"social-chat/internal/services"
	"social-chat/internal/websocket"

	"github.com/IBM/sarama"
)

// InitKafkaProducer dials the brokers with acks from all replicas.
func InitKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.MaxMessageBytes = 1000000
	cfg.Version = sarama.V2_0_0_0
	cfg.ClientID = "social-chat"

	return sarama.NewSyncProducer(brokers, cfg)
}

// Record is the value of every published message.
type Record struct {
	Type      websocket.MessageType `json:"type"`
	ActorID   uint                  `json:"actorId"`
	Recipient uint                  `json:"recipientId"`
	Data      any                   `json:"data"`
	Timestamp time.Time             `json:"timestamp"`
}

// durable lists the event types worth keeping outside the process.
var durable = map[websocket.MessageType]bool{
	websocket.MessageTypeFriendRequest:         true,
	websocket.MessageTypeFriendRequestAccepted: true,
	websocket.MessageTypeFriendRequestRejected: true,
	websocket.MessageTypeNewMessage:            true,
	websocket.MessageTypeMessageDelivered:      true,
	websocket.MessageTypeMessagesRead:          true,
}

// EventPublisher is a services.Notifier that writes friend and message events
// to Kafka. Records are keyed by conversation so one partition keeps the
// order of a pair.
type EventPublisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

var _ services.Notifier = (*EventPublisher)(nil)

func NewEventPublisher(producer sarama.SyncProducer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic, now: time.Now}
}

// NewEventPublisherFromConfig returns nil when no brokers are configured.
func NewEventPublisherFromConfig(cfg config.KafkaConfig) (*EventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		slog.Info("Kafka brokers not configured, event publishing disabled")
		return nil, nil
	}
	producer, err := InitKafkaProducer(cfg.Brokers)
	if err != nil {
		return nil, err
	}
	slog.Info("Kafka producer ready", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return NewEventPublisher(producer, cfg.Topic), nil
}

// Notify publishes ev. It never counts as a live delivery and so always
// returns false.
func (p *EventPublisher) Notify(_ context.Context, ev services.Event) bool {
	if p == nil || !durable[ev.Type] {
		return false
	}

	value, err := json.Marshal(Record{
		Type:      ev.Type,
		ActorID:   ev.Actor,
		Recipient: ev.Recipient,
		Data:      ev.Data,
		Timestamp: p.now().UTC(),
	})
	if err != nil {
		slog.Error("Failed to encode event", "type", ev.Type, "error", err)
		return false
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(models.PairKey(ev.Actor, ev.Recipient)),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(ev.Type)},
		},
	})
	if err != nil {
		slog.Error("Failed to publish event", "type", ev.Type, "recipient", ev.Recipient, "error", err)
		return false
	}
	slog.Debug("Event published", "type", ev.Type, "partition", partition, "offset", offset)
	return false
}

func (p *EventPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.producer.Close()
}
