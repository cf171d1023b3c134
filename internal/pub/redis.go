package pub

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const ledgerEventsChannel = "ledger_events"

// RedisPublisher publishes ledger events to a Redis pub/sub channel for
// the surrounding platform's push and dashboard consumers.
type RedisPublisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, logger: logger}
}

type redisEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (p *RedisPublisher) publish(ctx context.Context, event string, payload any) {
	raw, err := json.Marshal(redisEnvelope{Event: event, Payload: payload})
	if err != nil {
		p.logger.Error("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, ledgerEventsChannel, raw).Err(); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("event", event), zap.Error(err))
	}
}

func (p *RedisPublisher) TransactionProcessed(ctx context.Context, ev *TransactionProcessedEvent) {
	p.publish(ctx, EventTransactionProcessed, ev)
}

func (p *RedisPublisher) BatchProcessed(ctx context.Context, ev *BatchProcessedEvent) {
	p.publish(ctx, EventBatchProcessed, ev)
}

func (p *RedisPublisher) CriticalFraud(ctx context.Context, ev *CriticalFraudEvent) {
	p.publish(ctx, EventCriticalFraud, ev)
}

func (p *RedisPublisher) HighRiskTransaction(ctx context.Context, ev *HighRiskTransactionEvent) {
	p.publish(ctx, EventHighRiskTransaction, ev)
}

func (p *RedisPublisher) FraudTrendAlert(ctx context.Context, ev *FraudTrendAlertEvent) {
	p.publish(ctx, EventFraudTrendAlert, ev)
}
