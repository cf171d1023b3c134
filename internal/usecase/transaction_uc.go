package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coin-ledger/internal/domain"
	"coin-ledger/internal/fraud"
	"coin-ledger/internal/integrity"
	"coin-ledger/internal/pub"
	"coin-ledger/internal/repository"
	"coin-ledger/pkg/utils"
	"coin-ledger/pkg/xerrors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// learnThreshold is the fraud score above which a committed transaction
// feeds the learning signal.
const learnThreshold = 70

// premiumFeatureDuration is how long a purchased premium feature stays
// active.
const premiumFeatureDuration = 30 * 24 * time.Hour

// TransactionUsecase orchestrates a single transaction end to end:
// exclusive per-user token, fraud check, validation, hash-chained
// persist, balance mutation and side effects.
//
// All serialization state is process-local: running more than one
// instance against the same stores requires external per-account
// mutual exclusion.
type TransactionUsecase struct {
	walletRepo repository.WalletRepository
	txRepo     repository.TransactionRepository
	chain      *integrity.Chain
	analyzer   *fraud.Analyzer
	ledger     *WalletLedger
	escalation *RiskEscalation
	notifier   pub.Notifier
	ids        *utils.IDGenerator
	logger     *zap.Logger

	// gate holds the exclusive processing token per user: a second
	// concurrent request for the same account is rejected, not queued.
	gate sync.Map

	// commitMu serializes the commit section (wallet load, chain head,
	// persist) per account, so internal counter-credits can commit to a
	// target account without holding its processing token.
	commitMu sync.Map
}

func NewTransactionUsecase(
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	chain *integrity.Chain,
	analyzer *fraud.Analyzer,
	ledger *WalletLedger,
	escalation *RiskEscalation,
	notifier pub.Notifier,
	ids *utils.IDGenerator,
	logger *zap.Logger,
) *TransactionUsecase {
	return &TransactionUsecase{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		chain:      chain,
		analyzer:   analyzer,
		ledger:     ledger,
		escalation: escalation,
		notifier:   notifier,
		ids:        ids,
		logger:     logger,
	}
}

// Process runs one transaction request through the full pipeline and
// returns the committed record. Every failure path releases the
// per-user token and leaves no state change behind.
func (uc *TransactionUsecase) Process(ctx context.Context, req *domain.TransactionRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, held := uc.gate.LoadOrStore(req.UserID, struct{}{}); held {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrAccountBusy, req.UserID)
	}
	defer uc.gate.Delete(req.UserID)

	assessment := &domain.FraudAssessment{Level: domain.RiskLow, Action: domain.ActionAllow}
	if !req.BypassFraud {
		var err error
		assessment, err = uc.analyzer.Analyze(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fraud analysis failed: %w", err)
		}
		switch {
		case assessment.Level == domain.RiskCritical:
			if err := uc.escalation.HandleCritical(ctx, req, assessment); err != nil {
				uc.logger.Error("critical fraud escalation failed",
					zap.String("user_id", req.UserID), zap.Error(err))
			}
			return nil, fmt.Errorf("%w: score %d", xerrors.ErrFraudBlocked, assessment.Score)
		case assessment.Level == domain.RiskHigh && assessment.Action == domain.ActionBlock:
			if _, err := uc.escalation.QueueReview(ctx, req, assessment); err != nil {
				uc.logger.Error("review escalation failed",
					zap.String("user_id", req.UserID), zap.Error(err))
			}
			return nil, fmt.Errorf("%w: score %d", xerrors.ErrReviewRequired, assessment.Score)
		}
	}

	tx, err := uc.commit(ctx, req, assessment, false)
	if err != nil {
		return nil, err
	}

	uc.applySideEffects(ctx, req, tx)

	if !req.BypassFraud && assessment.Score > learnThreshold {
		uc.analyzer.Learn(req, assessment.Score)
	}

	uc.notifier.TransactionProcessed(ctx, &pub.TransactionProcessedEvent{
		TxID:       tx.TxID,
		UserID:     tx.UserID,
		Type:       tx.Type,
		Amount:     tx.Amount,
		FraudScore: tx.FraudScore,
		Status:     tx.Status,
		Timestamp:  time.Now(),
	})

	uc.logger.Info("transaction processed",
		zap.String("tx_id", tx.TxID),
		zap.String("user_id", tx.UserID),
		zap.String("type", string(tx.Type)),
		zap.Int64("amount", tx.Amount),
		zap.Int("fraud_score", tx.FraudScore))

	return tx, nil
}

// commit validates against the wallet and persists the transaction and
// the mutated wallet under the account's commit mutex. internal marks
// counter-credits created by side effects, which skip the freeze check.
func (uc *TransactionUsecase) commit(ctx context.Context, req *domain.TransactionRequest, assessment *domain.FraudAssessment, internal bool) (*domain.Transaction, error) {
	mu := uc.commitMutex(req.UserID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()

	w, err := uc.walletRepo.Get(ctx, req.UserID)
	if err != nil {
		if !errors.Is(err, xerrors.ErrWalletNotFound) {
			return nil, fmt.Errorf("failed to load wallet %s: %w", req.UserID, err)
		}
		if req.Type.IsDebit() {
			return nil, fmt.Errorf("%w: %s", xerrors.ErrWalletNotFound, req.UserID)
		}
		w = domain.NewWallet(req.UserID, now)
	}

	if !internal && w.IsFrozen(now) {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrWalletFrozen, w.Risk.FreezeReason)
	}

	if !internal {
		if err := uc.ledger.CheckEmergencyControls(ctx, req); err != nil {
			return nil, err
		}
	}

	balanceBefore := w.AvailableBalance
	if req.Type.IsDebit() {
		if err := uc.ledger.ValidateDebit(w, req, now); err != nil {
			return nil, err
		}
		if err := uc.ledger.ApplyDebit(w, req, now); err != nil {
			return nil, err
		}
	} else {
		uc.ledger.ApplyCredit(w, req, now)
	}

	uc.applyWalletSideEffects(w, req, now)

	if err := w.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("wallet invariant violated: %w", err)
	}

	prevHash, err := uc.chain.HeadHash(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	status := domain.StatusCompleted
	if assessment.Level == domain.RiskMedium || assessment.Level == domain.RiskHigh {
		status = domain.StatusPendingReview
	}

	tx := &domain.Transaction{
		TxID:          uc.ids.TransactionID(),
		UserID:        req.UserID,
		TargetUserID:  req.TargetUserID,
		Type:          req.Type,
		Amount:        req.Amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  w.AvailableBalance,
		Source:        req.Source,
		Destination:   req.Destination,
		Status:        status,
		FraudScore:    assessment.Score,
		RiskLevel:     assessment.Level,
		PreviousHash:  prevHash,
		CreatedAt:     now,
	}
	tx.Hash = integrity.ComputeHash(tx)

	if err := uc.txRepo.Save(ctx, tx); err != nil {
		return nil, err
	}
	if err := uc.walletRepo.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to save wallet %s: %w", req.UserID, err)
	}
	return tx, nil
}

// applyWalletSideEffects applies the type-specific wallet mutations that
// belong to the same commit: OG tier raises and premium feature
// activation.
func (uc *TransactionUsecase) applyWalletSideEffects(w *domain.Wallet, req *domain.TransactionRequest, now time.Time) {
	switch req.Type {
	case domain.TxTierPurchase:
		w.OGLevel++
		w.OGMultiplier = ogMultiplierForLevel(w.OGLevel)
	case domain.TxPremiumFeature:
		if w.PremiumFeatures == nil {
			w.PremiumFeatures = make(map[string]domain.PremiumFeature)
		}
		name := req.Destination
		if name == "" {
			name = "premium"
		}
		feature := w.PremiumFeatures[name]
		feature.Active = true
		feature.ExpiresAt = now.Add(premiumFeatureDuration)
		feature.CoinsSpent += req.Amount
		w.PremiumFeatures[name] = feature
	}
}

// applySideEffects runs the post-commit effects that touch other
// accounts. A gift debit always produces the matching counter-credit on
// the target account.
func (uc *TransactionUsecase) applySideEffects(ctx context.Context, req *domain.TransactionRequest, tx *domain.Transaction) {
	if req.Type != domain.TxGiftSent || req.TargetUserID == nil {
		return
	}

	counter := &domain.TransactionRequest{
		UserID:      *req.TargetUserID,
		Type:        domain.TxGiftReceived,
		Amount:      req.Amount,
		Source:      "gift",
		Destination: "wallet",
		Reference:   tx.TxID,
		BypassFraud: true,
	}
	allow := &domain.FraudAssessment{Level: domain.RiskLow, Action: domain.ActionAllow}
	counterTx, err := uc.commit(ctx, counter, allow, true)
	if err != nil {
		// The debit is already committed and immutable; a failed
		// counter-credit is a bookkeeping gap that must be surfaced.
		uc.logger.Error("gift counter-credit failed",
			zap.String("gift_tx_id", tx.TxID),
			zap.String("target_user_id", *req.TargetUserID),
			zap.Error(err))
		return
	}

	uc.notifier.TransactionProcessed(ctx, &pub.TransactionProcessedEvent{
		TxID:       counterTx.TxID,
		UserID:     counterTx.UserID,
		Type:       counterTx.Type,
		Amount:     counterTx.Amount,
		FraudScore: counterTx.FraudScore,
		Status:     counterTx.Status,
		Timestamp:  time.Now(),
	})
}

func (uc *TransactionUsecase) commitMutex(userID string) *sync.Mutex {
	mu, _ := uc.commitMu.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// VerifyChain exposes chain verification for the host platform.
func (uc *TransactionUsecase) VerifyChain(ctx context.Context, userID string, limit int) (*integrity.Report, error) {
	return uc.chain.Verify(ctx, userID, limit)
}

// GetWallet returns the wallet for a user, creating it on first lookup.
func (uc *TransactionUsecase) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	w, err := uc.walletRepo.Get(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, xerrors.ErrWalletNotFound) {
		return nil, err
	}
	w = domain.NewWallet(userID, time.Now())
	if err := uc.walletRepo.Save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ogMultiplierForLevel maps an OG tier level to its earning multiplier:
// +10% per level.
func ogMultiplierForLevel(level int) decimal.Decimal {
	return decimal.NewFromInt(1).Add(decimal.NewFromInt(int64(level)).Mul(decimal.NewFromFloat(0.1)))
}
