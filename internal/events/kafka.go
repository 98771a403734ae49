// Package events announces publications on a kafka topic so downstream
// consumers (analytics, cross-posters) can react to them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/danielorf/ArtCaptionBot/internal/model"
)

// KafkaAnnouncer is a publish recorder producing one JSON message per publication
type KafkaAnnouncer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducerConfig returns the producer settings used by the announcer
func NewKafkaProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.ClientID = "artcaptionbot"
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 10 * time.Second
	return cfg
}

// NewKafkaAnnouncer connects a sync producer to brokers
func NewKafkaAnnouncer(brokers []string, topic string) (*KafkaAnnouncer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka announcer requires at least one broker")
	}
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaAnnouncerWithProducer(producer, topic), nil
}

// NewKafkaAnnouncerWithProducer uses an existing producer
func NewKafkaAnnouncerWithProducer(producer sarama.SyncProducer, topic string) *KafkaAnnouncer {
	return &KafkaAnnouncer{producer: producer, topic: topic}
}

// Name identifies the recorder in logs
func (k *KafkaAnnouncer) Name() string {
	return "kafka"
}

// Record sends pub keyed by content id, so a partition sees one item's history in order
func (k *KafkaAnnouncer) Record(ctx context.Context, pub *model.Publication) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(pub)
	if err != nil {
		return fmt.Errorf("marshal publication: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(pub.ItemID),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: pub.PublishedAt,
		Headers: []sarama.RecordHeader{
			{Key: []byte("publisher"), Value: []byte(pub.Publisher)},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
	}

	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send to %s: %w", k.topic, err)
	}
	return nil
}

// Close flushes and closes the producer
func (k *KafkaAnnouncer) Close() error {
	return k.producer.Close()
}
