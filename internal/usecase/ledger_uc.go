package usecase

import (
	"context"
	"fmt"
	"time"

	"coin-ledger/internal/domain"
	"coin-ledger/pkg/xerrors"

	"github.com/shopspring/decimal"
)

// EconomyProvider exposes the read-only snapshot of platform-wide
// emergency controls.
type EconomyProvider interface {
	Controls(ctx context.Context) (domain.EconomyControls, error)
}

// StaticEconomy is an EconomyProvider returning a fixed snapshot.
type StaticEconomy struct {
	C domain.EconomyControls
}

func (s StaticEconomy) Controls(ctx context.Context) (domain.EconomyControls, error) {
	return s.C, nil
}

// WalletLedger owns all balance bookkeeping: bucket routing, daily
// usage, limit enforcement and emergency controls. It mutates wallets
// only after every check passed, so a rejected request leaves no state
// change behind.
type WalletLedger struct {
	economy EconomyProvider
}

func NewWalletLedger(economy EconomyProvider) *WalletLedger {
	return &WalletLedger{economy: economy}
}

// CheckEmergencyControls rejects the request when a global kill switch
// covers it. Applies to every type, credits included, so that freezing
// gifting stops both halves of a gift.
func (l *WalletLedger) CheckEmergencyControls(ctx context.Context, req *domain.TransactionRequest) error {
	controls, err := l.economy.Controls(ctx)
	if err != nil {
		return fmt.Errorf("failed to load economy controls: %w", err)
	}
	if !controls.Enabled {
		return nil
	}
	if controls.MaxTransactionAmount > 0 && req.Amount > controls.MaxTransactionAmount {
		return fmt.Errorf("%w: amount %d exceeds platform cap %d",
			xerrors.ErrEmergencyControl, req.Amount, controls.MaxTransactionAmount)
	}
	if controls.FreezeGifting && req.Type.IsGifting() {
		return fmt.Errorf("%w: gifting is frozen", xerrors.ErrEmergencyControl)
	}
	if controls.FreezeGaming && req.Type.IsGaming() {
		return fmt.Errorf("%w: gaming is frozen", xerrors.ErrEmergencyControl)
	}
	if controls.FreezeWithdrawals && req.Type == domain.TxWithdrawal {
		return fmt.Errorf("%w: withdrawals are frozen", xerrors.ErrEmergencyControl)
	}
	return nil
}

// ValidateDebit checks balance and daily limits for a debit request
// without mutating anything.
func (l *WalletLedger) ValidateDebit(w *domain.Wallet, req *domain.TransactionRequest, now time.Time) error {
	if w.AvailableBalance < req.Amount {
		return fmt.Errorf("%w: available %d, requested %d",
			xerrors.ErrInsufficientBalance, w.AvailableBalance, req.Amount)
	}

	usage := w.Usage
	if day := now.UTC().Format("2006-01-02"); usage.Day != day {
		usage = domain.DailyUsage{Day: day}
	}

	if req.Type == domain.TxWithdrawal {
		if usage.Withdrawal+req.Amount > w.Limits.Withdrawal {
			return fmt.Errorf("%w: daily withdrawal limit %d",
				xerrors.ErrLimitExceeded, w.Limits.Withdrawal)
		}
		return nil
	}

	// All non-withdrawal debits share the spending limit.
	spent := usage.Spending + usage.Gifting + usage.Gaming
	if spent+req.Amount > w.Limits.Spending {
		return fmt.Errorf("%w: daily spending limit %d",
			xerrors.ErrLimitExceeded, w.Limits.Spending)
	}
	return nil
}

// ApplyDebit drains the amount across the source buckets and updates
// balances and daily usage. The caller must have validated first.
func (l *WalletLedger) ApplyDebit(w *domain.Wallet, req *domain.TransactionRequest, now time.Time) error {
	buckets, err := DrainBuckets(w.Buckets, req.Amount)
	if err != nil {
		return err
	}
	w.TouchUsage(now)
	w.Buckets = buckets
	w.AvailableBalance -= req.Amount
	w.TotalBalance -= req.Amount

	switch {
	case req.Type == domain.TxWithdrawal:
		w.Usage.Withdrawal += req.Amount
	case req.Type.IsGifting():
		w.Usage.Gifting += req.Amount
	case req.Type.IsGaming():
		w.Usage.Gaming += req.Amount
	default:
		w.Usage.Spending += req.Amount
	}
	return nil
}

// ApplyCredit routes the amount into the bucket matching its semantic
// origin and returns the total credited, which includes the OG tier
// bonus on rewards.
func (l *WalletLedger) ApplyCredit(w *domain.Wallet, req *domain.TransactionRequest, now time.Time) int64 {
	w.TouchUsage(now)

	credited := req.Amount
	switch req.Type {
	case domain.TxGiftReceived:
		w.Buckets.Gifted += req.Amount
	case domain.TxReward:
		bonus := ogBonus(req.Amount, w.OGMultiplier)
		w.Buckets.Bonus += req.Amount + bonus
		credited += bonus
	default:
		w.Buckets.Earned += req.Amount
	}
	w.AvailableBalance += credited
	w.TotalBalance += credited
	return credited
}

// ogBonus is the extra earned on top of a reward for OG tier holders:
// amount * (multiplier - 1), floored.
func ogBonus(amount int64, multiplier decimal.Decimal) int64 {
	one := decimal.NewFromInt(1)
	if multiplier.LessThanOrEqual(one) {
		return 0
	}
	return multiplier.Sub(one).Mul(decimal.NewFromInt(amount)).Floor().IntPart()
}

// DrainBuckets deducts an amount across source buckets in fixed
// priority: bonus, purchased, gifted, earned. Each step is clamped to
// what the bucket still holds. Pure function.
func DrainBuckets(b domain.BalanceBuckets, amount int64) (domain.BalanceBuckets, error) {
	if amount <= 0 {
		return b, xerrors.ErrInvalidAmount
	}
	if b.Sum() < amount {
		return b, xerrors.ErrInsufficientBalance
	}

	remaining := amount
	for _, bucket := range []*int64{&b.Bonus, &b.Purchased, &b.Gifted, &b.Earned} {
		if remaining == 0 {
			break
		}
		step := remaining
		if step > *bucket {
			step = *bucket
		}
		*bucket -= step
		remaining -= step
	}
	return b, nil
}
