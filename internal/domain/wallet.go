package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSource identifies one of the wallet's source-tagged buckets.
type BalanceSource string

const (
	SourceBonus     BalanceSource = "bonus"
	SourcePurchased BalanceSource = "purchased"
	SourceGifted    BalanceSource = "gifted"
	SourceEarned    BalanceSource = "earned"
)

// BalanceBuckets is the source-tagged sub-ledger of a wallet.
// Field order is the fixed debit priority: bonus coins are spent first,
// then purchased, then gifted, then earned.
type BalanceBuckets struct {
	Bonus     int64 `json:"bonus"`
	Purchased int64 `json:"purchased"`
	Gifted    int64 `json:"gifted"`
	Earned    int64 `json:"earned"`
}

func (b BalanceBuckets) Sum() int64 {
	return b.Bonus + b.Purchased + b.Gifted + b.Earned
}

// DailyLimits caps a wallet's per-calendar-day outflow.
type DailyLimits struct {
	Spending   int64 `json:"spending"`
	Withdrawal int64 `json:"withdrawal"`
}

// DailyUsage accumulates per-category outflow for one calendar day.
// Day is the UTC date in YYYY-MM-DD form; accumulators reset when the
// day rolls over.
type DailyUsage struct {
	Day        string `json:"day"`
	Spending   int64  `json:"spending"`
	Withdrawal int64  `json:"withdrawal"`
	Gifting    int64  `json:"gifting"`
	Gaming     int64  `json:"gaming"`
}

// RiskProfile carries an account's standing fraud posture.
type RiskProfile struct {
	Level           RiskLevel  `json:"level"`
	Flags           []string   `json:"flags,omitempty"`
	FreezeReason    string     `json:"freeze_reason,omitempty"`
	FreezeExpiresAt *time.Time `json:"freeze_expires_at,omitempty"`
}

// PremiumFeature is a timed feature bought with coins.
type PremiumFeature struct {
	Active     bool      `json:"active"`
	ExpiresAt  time.Time `json:"expires_at"`
	CoinsSpent int64     `json:"coins_spent"`
}

// Wallet is the per-account balance record. It is mutated exclusively by
// the wallet ledger during transaction commit; it is never deleted, only
// frozen.
type Wallet struct {
	UserID           string                    `json:"user_id"`
	AvailableBalance int64                     `json:"available_balance"`
	TotalBalance     int64                     `json:"total_balance"`
	Buckets          BalanceBuckets            `json:"balance_by_source"`
	Limits           DailyLimits               `json:"daily_limits"`
	Usage            DailyUsage                `json:"daily_usage"`
	Risk             RiskProfile               `json:"risk_profile"`
	OGLevel          int                       `json:"og_level"`
	OGMultiplier     decimal.Decimal           `json:"og_bonus_multiplier"`
	PremiumFeatures  map[string]PremiumFeature `json:"premium_features,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

const (
	DefaultSpendingLimit   int64 = 100_000
	DefaultWithdrawalLimit int64 = 50_000
)

// NewWallet creates a zero-balance wallet with default limits. Wallets
// come into existence on first lookup for a user.
func NewWallet(userID string, now time.Time) *Wallet {
	return &Wallet{
		UserID: userID,
		Limits: DailyLimits{
			Spending:   DefaultSpendingLimit,
			Withdrawal: DefaultWithdrawalLimit,
		},
		Usage:        DailyUsage{Day: now.UTC().Format("2006-01-02")},
		Risk:         RiskProfile{Level: RiskLow},
		OGLevel:      0,
		OGMultiplier: decimal.NewFromInt(1),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsFrozen reports whether a freeze window is currently active.
func (w *Wallet) IsFrozen(now time.Time) bool {
	if w.Risk.FreezeExpiresAt == nil {
		return false
	}
	return now.Before(*w.Risk.FreezeExpiresAt)
}

// Freeze puts the wallet into a freeze window.
func (w *Wallet) Freeze(reason string, until time.Time) {
	w.Risk.FreezeReason = reason
	w.Risk.FreezeExpiresAt = &until
}

// AddRiskFlag records a flag on the risk profile, deduplicated.
func (w *Wallet) AddRiskFlag(flag string) {
	for _, f := range w.Risk.Flags {
		if f == flag {
			return
		}
	}
	w.Risk.Flags = append(w.Risk.Flags, flag)
}

// TouchUsage resets the daily accumulators if the calendar day rolled
// over since the last mutation.
func (w *Wallet) TouchUsage(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if w.Usage.Day != day {
		w.Usage = DailyUsage{Day: day}
	}
}

// CheckInvariants verifies the wallet's bookkeeping invariants:
// buckets sum to totalBalance, nothing is negative and available never
// exceeds total.
func (w *Wallet) CheckInvariants() error {
	if w.AvailableBalance < 0 {
		return fmt.Errorf("wallet %s: available balance %d is negative", w.UserID, w.AvailableBalance)
	}
	if w.TotalBalance < 0 {
		return fmt.Errorf("wallet %s: total balance %d is negative", w.UserID, w.TotalBalance)
	}
	if w.AvailableBalance > w.TotalBalance {
		return fmt.Errorf("wallet %s: available %d exceeds total %d", w.UserID, w.AvailableBalance, w.TotalBalance)
	}
	if w.Buckets.Bonus < 0 || w.Buckets.Purchased < 0 || w.Buckets.Gifted < 0 || w.Buckets.Earned < 0 {
		return fmt.Errorf("wallet %s: negative source bucket", w.UserID)
	}
	if sum := w.Buckets.Sum(); sum != w.TotalBalance {
		return fmt.Errorf("wallet %s: bucket sum %d != total balance %d", w.UserID, sum, w.TotalBalance)
	}
	return nil
}
