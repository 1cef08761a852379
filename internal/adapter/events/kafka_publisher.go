package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fieldbook/fieldbook/infrastructure/service/logger"
	"github.com/fieldbook/fieldbook/internal/ports"
)

var (
	ErrPublisherClosed = errors.New("event publisher is closed")
	ErrNoBrokers       = errors.New("at least one broker is required")
	ErrEmptyTopic      = errors.New("topic cannot be empty")
)

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the reservation event writer
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// KafkaPublisher publishes reservation events to a Kafka topic, keyed by aggregate ID
type KafkaPublisher struct {
	writer       messageWriter
	writeTimeout time.Duration
	logger       logger.Logger
	closed       bool
	mu           sync.RWMutex
}

// NewKafkaPublisher creates a publisher backed by a kafka-go writer
func NewKafkaPublisher(cfg KafkaConfig, log logger.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, ErrEmptyTopic
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // same reservation always lands on the same partition
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  cfg.MaxAttempts,
		BatchTimeout: cfg.BatchTimeout,
		Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
	}

	return newKafkaPublisher(writer, cfg.WriteTimeout, log), nil
}

func newKafkaPublisher(w messageWriter, writeTimeout time.Duration, log logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &KafkaPublisher{writer: w, writeTimeout: writeTimeout, logger: log}
}

// Publish writes one event; the caller's context bounds the write
func (p *KafkaPublisher) Publish(ctx context.Context, event ports.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.Type)},
		{Key: "event_id", Value: []byte(event.ID)},
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		headers = append(headers, kafka.Header{Key: "correlation_id", Value: []byte(cid)})
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	start := time.Now()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(event.AggregateID),
		Value:   value,
		Headers: headers,
		Time:    time.Unix(event.CreatedAt, 0),
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	logger.LogPerformance(ctx, p.logger, "kafka_publish", time.Since(start), map[string]interface{}{
		"event_type":   event.Type,
		"aggregate_id": event.AggregateID,
	})
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
