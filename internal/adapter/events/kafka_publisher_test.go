package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbook/fieldbook/infrastructure/service/logger"
	"github.com/fieldbook/fieldbook/internal/ports"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   int
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed++
	return nil
}

func TestNewKafkaPublisher_RequiresBrokersAndTopic(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "reservations"}, nil)
	assert.ErrorIs(t, err, ErrNoBrokers)

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.ErrorIs(t, err, ErrEmptyTopic)
}

func TestKafkaPublisher_PublishKeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, 0, logger.NewNop())

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	event := ports.NewEvent(ports.EventTypeReservationCreated, "reservation", "7", map[string]interface{}{"date": "2024-05-01"}, 1)

	require.NoError(t, p.Publish(ctx, *event))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "7", string(msg.Key))

	var decoded ports.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ports.EventTypeReservationCreated, decoded.Type)
	assert.Equal(t, "2024-05-01", decoded.Data["date"])

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, ports.EventTypeReservationCreated, headers["event_type"])
	assert.Equal(t, "corr-1", headers["correlation_id"])
}

func TestKafkaPublisher_WrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := newKafkaPublisher(&fakeWriter{err: boom}, 0, nil)

	err := p.Publish(context.Background(), *ports.NewEvent(ports.EventTypeReservationDeleted, "reservation", "1", nil, 1))
	assert.ErrorIs(t, err, boom)
}

func TestKafkaPublisher_CloseIsIdempotent(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, 0, nil)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)

	err := p.Publish(context.Background(), *ports.NewEvent(ports.EventTypeReservationCreated, "reservation", "1", nil, 1))
	assert.ErrorIs(t, err, ErrPublisherClosed)
}
