// Package events publishes order lifecycle events to Kafka. The stream
// feeds downstream consumers (analytics, fulfilment); publishing is
// best-effort and a broker outage never fails a checkout.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/config"
	"github.com/castledepotsmail-cyber/castle-depots/models"
)

type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// InitProducer connects to Kafka. With no brokers configured it returns a
// disabled producer whose Publish is a no-op.
func InitProducer(cfg *config.KafkaConfig, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka disabled, order events will not be published")
		return &Producer{topic: cfg.Topic, logger: logger}, nil
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5
	saramaCfg.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Brokers))
	return &Producer{producer: producer, topic: cfg.Topic, logger: logger}, nil
}

// Publish sends one order event. Errors are returned for the caller to
// log; callers must not fail their request on them.
func (p *Producer) Publish(event models.OrderEvent) error {
	if p.producer == nil {
		return nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.StringEncoder(eventJSON),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Info("Order event published",
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.OrderID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *Producer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
