package pub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaPublisher writes ledger events to a Kafka topic for downstream
// analytics and audit consumers. Delivery is best-effort: a failed write
// is logged, never surfaced to the transaction path.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type kafkaEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// write keys messages by user id where one exists so per-account events
// stay ordered within a partition.
func (p *KafkaPublisher) write(ctx context.Context, event, key string, payload any) {
	raw, err := json.Marshal(kafkaEnvelope{Event: event, Payload: payload})
	if err != nil {
		p.logger.Error("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	msg := kafka.Message{Value: raw}
	if key != "" {
		msg.Key = []byte(key)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to write event to kafka",
			zap.String("event", event), zap.Error(err))
	}
}

func (p *KafkaPublisher) TransactionProcessed(ctx context.Context, ev *TransactionProcessedEvent) {
	p.write(ctx, EventTransactionProcessed, ev.UserID, ev)
}

func (p *KafkaPublisher) BatchProcessed(ctx context.Context, ev *BatchProcessedEvent) {
	p.write(ctx, EventBatchProcessed, "", ev)
}

func (p *KafkaPublisher) CriticalFraud(ctx context.Context, ev *CriticalFraudEvent) {
	p.write(ctx, EventCriticalFraud, ev.UserID, ev)
}

func (p *KafkaPublisher) HighRiskTransaction(ctx context.Context, ev *HighRiskTransactionEvent) {
	p.write(ctx, EventHighRiskTransaction, ev.UserID, ev)
}

func (p *KafkaPublisher) FraudTrendAlert(ctx context.Context, ev *FraudTrendAlertEvent) {
	p.write(ctx, EventFraudTrendAlert, "", ev)
}
