package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"coin-ledger/internal/domain"
	"coin-ledger/internal/pub"
	"coin-ledger/pkg/xerrors"

	"go.uber.org/zap"
)

// BatchFailure records one failed request in a batch result. Reference
// is the caller-side correlation id when the request carried one.
type BatchFailure struct {
	Reference string `json:"reference,omitempty"`
	UserID    string `json:"user_id"`
	Error     string `json:"error"`
}

// BatchResult aggregates the outcome of a batch run.
type BatchResult struct {
	Successful  []string       `json:"successful"` // committed tx ids
	Failed      []BatchFailure `json:"failed"`
	TotalAmount int64          `json:"total_amount"` // sum of committed amounts
	FraudAlerts int            `json:"fraud_alerts"`
}

// BatchCoordinator fans a set of requests out across accounts. Requests
// for the same account run sequentially in submission order to keep the
// hash chain intact; different accounts proceed independently. One
// failure never aborts sibling requests.
type BatchCoordinator struct {
	processor *TransactionUsecase
	notifier  pub.Notifier
	logger    *zap.Logger
}

func NewBatchCoordinator(processor *TransactionUsecase, notifier pub.Notifier, logger *zap.Logger) *BatchCoordinator {
	return &BatchCoordinator{processor: processor, notifier: notifier, logger: logger}
}

// ProcessBatch runs all requests and returns the aggregated result.
// successful + failed always adds up to len(requests).
func (b *BatchCoordinator) ProcessBatch(ctx context.Context, requests []*domain.TransactionRequest) *BatchResult {
	groups := make(map[string][]*domain.TransactionRequest)
	order := make([]string, 0)
	for _, req := range requests {
		if _, seen := groups[req.UserID]; !seen {
			order = append(order, req.UserID)
		}
		groups[req.UserID] = append(groups[req.UserID], req)
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = &BatchResult{}
	)

	for _, userID := range order {
		group := groups[userID]
		wg.Add(1)
		go func(userID string, group []*domain.TransactionRequest) {
			defer wg.Done()
			// Strictly sequential within the account; a failure is
			// recorded and processing continues with the next request.
			for _, req := range group {
				tx, err := b.processor.Process(ctx, req)

				mu.Lock()
				if err != nil {
					result.Failed = append(result.Failed, BatchFailure{
						Reference: req.Reference,
						UserID:    req.UserID,
						Error:     err.Error(),
					})
					if errors.Is(err, xerrors.ErrFraudBlocked) || errors.Is(err, xerrors.ErrReviewRequired) {
						result.FraudAlerts++
					}
				} else {
					result.Successful = append(result.Successful, tx.TxID)
					result.TotalAmount += tx.Amount
					if tx.RiskLevel == domain.RiskHigh || tx.RiskLevel == domain.RiskCritical {
						result.FraudAlerts++
					}
				}
				mu.Unlock()
			}
		}(userID, group)
	}
	wg.Wait()

	b.notifier.BatchProcessed(ctx, &pub.BatchProcessedEvent{
		Requests:    len(requests),
		Successful:  len(result.Successful),
		Failed:      len(result.Failed),
		TotalAmount: result.TotalAmount,
		FraudAlerts: result.FraudAlerts,
		Timestamp:   time.Now(),
	})

	b.logger.Info("batch processed",
		zap.Int("requests", len(requests)),
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)),
		zap.Int64("total_amount", result.TotalAmount))

	return result
}
