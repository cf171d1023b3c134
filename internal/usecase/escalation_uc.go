package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-ledger/internal/domain"
	"coin-ledger/internal/pub"
	"coin-ledger/internal/repository"
	"coin-ledger/pkg/utils"
	"coin-ledger/pkg/xerrors"

	"go.uber.org/zap"
)

// FreezeWindow is how long a critical fraud finding locks the wallet.
const FreezeWindow = 24 * time.Hour

// RiskEscalation reacts to critical and high fraud findings: freezing
// wallets, raising risk flags and queueing manual review cases.
type RiskEscalation struct {
	walletRepo repository.WalletRepository
	reviews    repository.ReviewQueue
	notifier   pub.Notifier
	ids        *utils.IDGenerator
	logger     *zap.Logger
}

func NewRiskEscalation(
	walletRepo repository.WalletRepository,
	reviews repository.ReviewQueue,
	notifier pub.Notifier,
	ids *utils.IDGenerator,
	logger *zap.Logger,
) *RiskEscalation {
	return &RiskEscalation{
		walletRepo: walletRepo,
		reviews:    reviews,
		notifier:   notifier,
		ids:        ids,
		logger:     logger,
	}
}

// HandleCritical freezes the wallet for the freeze window, marks the
// risk profile critical and emits a criticalFraud event.
func (e *RiskEscalation) HandleCritical(ctx context.Context, req *domain.TransactionRequest, assessment *domain.FraudAssessment) error {
	w, err := e.loadOrCreate(ctx, req.UserID)
	if err != nil {
		return err
	}

	until := time.Now().Add(FreezeWindow)
	w.Risk.Level = domain.RiskCritical
	for _, flag := range assessment.Flags() {
		w.AddRiskFlag(flag)
	}
	w.Freeze("critical fraud score", until)

	if err := e.walletRepo.Save(ctx, w); err != nil {
		return fmt.Errorf("failed to freeze wallet %s: %w", req.UserID, err)
	}

	e.logger.Warn("wallet frozen on critical fraud",
		zap.String("user_id", req.UserID),
		zap.Int("score", assessment.Score),
		zap.Time("until", until))

	e.notifier.CriticalFraud(ctx, &pub.CriticalFraudEvent{
		UserID:      req.UserID,
		Score:       assessment.Score,
		Flags:       assessment.Flags(),
		FrozenUntil: until,
		Timestamp:   time.Now(),
	})
	return nil
}

// QueueReview stores a manual review case for the request, raises the
// account's risk flags without freezing and emits highRiskTransaction.
func (e *RiskEscalation) QueueReview(ctx context.Context, req *domain.TransactionRequest, assessment *domain.FraudAssessment) (string, error) {
	reviewID := e.ids.ReviewID()
	rc := &domain.ReviewCase{
		ReviewID:  reviewID,
		Request:   req,
		Score:     assessment.Score,
		Flags:     assessment.Flags(),
		Reasons:   assessment.Reasons(),
		CreatedAt: time.Now(),
	}
	if err := e.reviews.Enqueue(ctx, rc); err != nil {
		return "", fmt.Errorf("failed to queue review case: %w", err)
	}

	w, err := e.loadOrCreate(ctx, req.UserID)
	if err != nil {
		return "", err
	}
	if w.Risk.Level != domain.RiskCritical {
		w.Risk.Level = domain.RiskHigh
	}
	for _, flag := range assessment.Flags() {
		w.AddRiskFlag(flag)
	}
	if err := e.walletRepo.Save(ctx, w); err != nil {
		return "", fmt.Errorf("failed to update risk profile for %s: %w", req.UserID, err)
	}

	e.logger.Info("transaction queued for manual review",
		zap.String("user_id", req.UserID),
		zap.String("review_id", reviewID),
		zap.Int("score", assessment.Score))

	e.notifier.HighRiskTransaction(ctx, &pub.HighRiskTransactionEvent{
		ReviewID:  reviewID,
		UserID:    req.UserID,
		Score:     assessment.Score,
		Flags:     assessment.Flags(),
		Timestamp: time.Now(),
	})
	return reviewID, nil
}

func (e *RiskEscalation) loadOrCreate(ctx context.Context, userID string) (*domain.Wallet, error) {
	w, err := e.walletRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, xerrors.ErrWalletNotFound) {
			return domain.NewWallet(userID, time.Now()), nil
		}
		return nil, fmt.Errorf("failed to load wallet %s: %w", userID, err)
	}
	return w, nil
}
