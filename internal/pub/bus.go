package pub

import "context"

// Bus is the in-process Notifier: one buffered typed channel per event
// name. Consumers read the channels directly; when a consumer falls
// behind the buffer, further events for that channel are dropped rather
// than blocking transaction processing.
type Bus struct {
	transactionProcessed chan *TransactionProcessedEvent
	batchProcessed       chan *BatchProcessedEvent
	criticalFraud        chan *CriticalFraudEvent
	highRiskTransaction  chan *HighRiskTransactionEvent
	fraudTrendAlert      chan *FraudTrendAlertEvent
}

const defaultBusBuffer = 256

func NewBus() *Bus {
	return &Bus{
		transactionProcessed: make(chan *TransactionProcessedEvent, defaultBusBuffer),
		batchProcessed:       make(chan *BatchProcessedEvent, defaultBusBuffer),
		criticalFraud:        make(chan *CriticalFraudEvent, defaultBusBuffer),
		highRiskTransaction:  make(chan *HighRiskTransactionEvent, defaultBusBuffer),
		fraudTrendAlert:      make(chan *FraudTrendAlertEvent, defaultBusBuffer),
	}
}

func (b *Bus) TransactionProcessed(ctx context.Context, ev *TransactionProcessedEvent) {
	select {
	case b.transactionProcessed <- ev:
	default:
	}
}

func (b *Bus) BatchProcessed(ctx context.Context, ev *BatchProcessedEvent) {
	select {
	case b.batchProcessed <- ev:
	default:
	}
}

func (b *Bus) CriticalFraud(ctx context.Context, ev *CriticalFraudEvent) {
	select {
	case b.criticalFraud <- ev:
	default:
	}
}

func (b *Bus) HighRiskTransaction(ctx context.Context, ev *HighRiskTransactionEvent) {
	select {
	case b.highRiskTransaction <- ev:
	default:
	}
}

func (b *Bus) FraudTrendAlert(ctx context.Context, ev *FraudTrendAlertEvent) {
	select {
	case b.fraudTrendAlert <- ev:
	default:
	}
}

func (b *Bus) TransactionProcessedCh() <-chan *TransactionProcessedEvent {
	return b.transactionProcessed
}

func (b *Bus) BatchProcessedCh() <-chan *BatchProcessedEvent { return b.batchProcessed }

func (b *Bus) CriticalFraudCh() <-chan *CriticalFraudEvent { return b.criticalFraud }

func (b *Bus) HighRiskTransactionCh() <-chan *HighRiskTransactionEvent {
	return b.highRiskTransaction
}

func (b *Bus) FraudTrendAlertCh() <-chan *FraudTrendAlertEvent { return b.fraudTrendAlert }
