package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tradewell/exchange-core/pkg/models"
)

// KafkaSink publishes order-fill notifications as JSON messages keyed
// by user id, so all notifications for one user land on one partition.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaSink creates a kafka-backed notification sink.
func NewKafkaSink(brokers []string, topic string, logger *zap.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{writer: writer, logger: logger}
}

func (s *KafkaSink) NotifyFilled(ctx context.Context, fill Fill) (*models.Notification, error) {
	n := newNotification(fill)
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fill.UserID.String()),
		Value: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish notification: %w", err)
	}

	s.logger.Debug("fill notification published",
		zap.String("user_id", fill.UserID.String()),
		zap.String("order_id", fill.OrderID.String()))
	return n, nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Multi fans a notification out to several sinks. The first error is
// returned after all sinks were attempted.
type Multi []Sink

func (m Multi) NotifyFilled(ctx context.Context, fill Fill) (*models.Notification, error) {
	var first *models.Notification
	var firstErr error
	for _, sink := range m {
		n, err := sink.NotifyFilled(ctx, fill)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if n != nil && first == nil {
			first = n
		}
	}
	return first, firstErr
}
