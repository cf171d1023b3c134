package pub

import (
	"context"
	"time"

	"coin-ledger/internal/domain"
)

// Event names as they appear on the wire.
const (
	EventTransactionProcessed = "transactionProcessed"
	EventBatchProcessed       = "batchProcessed"
	EventCriticalFraud        = "criticalFraud"
	EventHighRiskTransaction  = "highRiskTransaction"
	EventFraudTrendAlert      = "fraudTrendAlert"
)

type TransactionProcessedEvent struct {
	TxID       string                   `json:"tx_id"`
	UserID     string                   `json:"user_id"`
	Type       domain.TransactionType   `json:"type"`
	Amount     int64                    `json:"amount"`
	FraudScore int                      `json:"fraud_score"`
	Status     domain.TransactionStatus `json:"status"`
	Timestamp  time.Time                `json:"timestamp"`
}

type BatchProcessedEvent struct {
	Requests    int       `json:"requests"`
	Successful  int       `json:"successful"`
	Failed      int       `json:"failed"`
	TotalAmount int64     `json:"total_amount"`
	FraudAlerts int       `json:"fraud_alerts"`
	Timestamp   time.Time `json:"timestamp"`
}

type CriticalFraudEvent struct {
	UserID      string    `json:"user_id"`
	Score       int       `json:"score"`
	Flags       []string  `json:"flags,omitempty"`
	FrozenUntil time.Time `json:"frozen_until"`
	Timestamp   time.Time `json:"timestamp"`
}

type HighRiskTransactionEvent struct {
	ReviewID  string    `json:"review_id"`
	UserID    string    `json:"user_id"`
	Score     int       `json:"score"`
	Flags     []string  `json:"flags,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type FraudTrendAlertEvent struct {
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
	Threshold   int       `json:"threshold"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notifier is the fire-and-forget event sink the core emits into.
// Implementations must never fail the calling transaction: delivery
// problems are logged and dropped.
type Notifier interface {
	TransactionProcessed(ctx context.Context, ev *TransactionProcessedEvent)
	BatchProcessed(ctx context.Context, ev *BatchProcessedEvent)
	CriticalFraud(ctx context.Context, ev *CriticalFraudEvent)
	HighRiskTransaction(ctx context.Context, ev *HighRiskTransactionEvent)
	FraudTrendAlert(ctx context.Context, ev *FraudTrendAlertEvent)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) TransactionProcessed(context.Context, *TransactionProcessedEvent) {}
func (NopNotifier) BatchProcessed(context.Context, *BatchProcessedEvent)             {}
func (NopNotifier) CriticalFraud(context.Context, *CriticalFraudEvent)               {}
func (NopNotifier) HighRiskTransaction(context.Context, *HighRiskTransactionEvent)   {}
func (NopNotifier) FraudTrendAlert(context.Context, *FraudTrendAlertEvent)           {}

// Multi fans one event out to several sinks.
type Multi []Notifier

func (m Multi) TransactionProcessed(ctx context.Context, ev *TransactionProcessedEvent) {
	for _, n := range m {
		n.TransactionProcessed(ctx, ev)
	}
}

func (m Multi) BatchProcessed(ctx context.Context, ev *BatchProcessedEvent) {
	for _, n := range m {
		n.BatchProcessed(ctx, ev)
	}
}

func (m Multi) CriticalFraud(ctx context.Context, ev *CriticalFraudEvent) {
	for _, n := range m {
		n.CriticalFraud(ctx, ev)
	}
}

func (m Multi) HighRiskTransaction(ctx context.Context, ev *HighRiskTransactionEvent) {
	for _, n := range m {
		n.HighRiskTransaction(ctx, ev)
	}
}

func (m Multi) FraudTrendAlert(ctx context.Context, ev *FraudTrendAlertEvent) {
	for _, n := range m {
		n.FraudTrendAlert(ctx, ev)
	}
}
