package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/metrics"
	"github.com/shubham-shewale/stock-ticker/pkg/models"
)

// KafkaPublisher journals every broadcast tick to a Kafka topic, one message
// per symbol keyed by symbol so a partition keeps per-symbol order.
type KafkaPublisher struct {
	logger *zap.Logger
	writer KafkaWriter
	clock  Clock
	seq    *models.Sequencer
}

func NewKafkaPublisher(logger *zap.Logger, writer KafkaWriter, clock Clock) *KafkaPublisher {
	return &KafkaPublisher{
		logger: logger,
		writer: writer,
		clock:  clock,
		seq:    models.NewSequencer(),
	}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, prices []models.PricedSymbol) error {
	if len(prices) == 0 {
		return nil
	}

	updates := p.seq.Stamp(prices, p.clock.Now())
	msgs := make([]kafka.Message, 0, len(updates))
	for _, u := range updates {
		payload, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("marshal %s update: %w", u.Symbol, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(u.Symbol),
			Value: payload,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	p.logger.Debug("Journaled tick", zap.Int("messages", len(msgs)))
	return nil
}

// Forget drops the sequence counter of an evicted symbol.
func (p *KafkaPublisher) Forget(symbol string) {
	p.seq.Forget(symbol)
}

// OnCompletion is the kafka.Writer Completion hook. An async writer never
// returns broker errors from WriteMessages, they only arrive here.
func OnCompletion(logger *zap.Logger) func(msgs []kafka.Message, err error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		metrics.SinkErrorsTotal.WithLabelValues("kafka").Inc()
		logger.Warn("Kafka async write failed", zap.Int("messages", len(msgs)), zap.Error(err))
	}
}

// Close flushes the writer buffer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
