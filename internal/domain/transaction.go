package domain

import (
	"time"

	"coin-ledger/pkg/xerrors"
)

type TransactionType string

const (
	TxStake          TransactionType = "stake"
	TxStakeWin       TransactionType = "stake_win"
	TxGiftSent       TransactionType = "gift_sent"
	TxGiftReceived   TransactionType = "gift_received"
	TxPurchase       TransactionType = "purchase"
	TxWithdrawal     TransactionType = "withdrawal"
	TxReward         TransactionType = "reward"
	TxRefund         TransactionType = "refund"
	TxPremiumFeature TransactionType = "premium_feature"
	TxTierPurchase   TransactionType = "tier_purchase"
	TxTierBonus      TransactionType = "tier_bonus"
)

type TransactionStatus string

const (
	StatusCompleted     TransactionStatus = "completed"
	StatusPendingReview TransactionStatus = "pending_review"
)

// debitTypes are the types that remove coins from the acting wallet.
// Everything else credits it.
var debitTypes = map[TransactionType]bool{
	TxStake:          true,
	TxGiftSent:       true,
	TxPurchase:       true,
	TxWithdrawal:     true,
	TxPremiumFeature: true,
	TxTierPurchase:   true,
}

var allTypes = map[TransactionType]bool{
	TxStake: true, TxStakeWin: true, TxGiftSent: true, TxGiftReceived: true,
	TxPurchase: true, TxWithdrawal: true, TxReward: true, TxRefund: true,
	TxPremiumFeature: true, TxTierPurchase: true, TxTierBonus: true,
}

func (t TransactionType) IsDebit() bool  { return debitTypes[t] }
func (t TransactionType) IsCredit() bool { return allTypes[t] && !debitTypes[t] }
func (t TransactionType) IsValid() bool  { return allTypes[t] }

// IsGaming reports whether the type belongs to the stake/win game loop.
// Gaming types can be frozen platform-wide by emergency controls.
func (t TransactionType) IsGaming() bool {
	return t == TxStake || t == TxStakeWin
}

// IsGifting reports whether the type moves coins between users as a gift.
func (t TransactionType) IsGifting() bool {
	return t == TxGiftSent || t == TxGiftReceived
}

// Transaction is an immutable, hash-chained ledger record.
// Once persisted it must never change: Hash covers the identity fields
// and PreviousHash links to the account's chronologically preceding
// transaction (empty for the first).
type Transaction struct {
	TxID          string            `json:"tx_id"`
	UserID        string            `json:"user_id"`
	TargetUserID  *string           `json:"target_user_id,omitempty"`
	Type          TransactionType   `json:"type"`
	Amount        int64             `json:"amount"` // coin units, always positive
	BalanceBefore int64             `json:"balance_before"`
	BalanceAfter  int64             `json:"balance_after"`
	Source        string            `json:"source"`      // semantic origin of funds, e.g. "wallet", "gift", "game_pool"
	Destination   string            `json:"destination"` // semantic target of funds
	Status        TransactionStatus `json:"status"`
	FraudScore    int               `json:"fraud_score"` // 0-100
	RiskLevel     RiskLevel         `json:"risk_level"`
	Hash          string            `json:"hash"`
	PreviousHash  string            `json:"previous_hash,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// GeoContext is the optional geographic context attached to a request.
type GeoContext struct {
	Country   string `json:"country,omitempty"` // ISO-3166-1 alpha-2
	IPAddress string `json:"ip_address,omitempty"`
}

// DeviceContext is the optional device context attached to a request.
type DeviceContext struct {
	DeviceID  string `json:"device_id,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// TransactionRequest is what the surrounding platform submits for
// processing. Reference is an optional caller-side correlation id used
// in batch failure reports before a tx id exists.
type TransactionRequest struct {
	UserID       string          `json:"user_id"`
	TargetUserID *string         `json:"target_user_id,omitempty"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	Source       string          `json:"source,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	Geo          *GeoContext     `json:"geo,omitempty"`
	Device       *DeviceContext  `json:"device,omitempty"`
	Reference    string          `json:"reference,omitempty"`

	// BypassFraud skips fraud analysis for trusted internal callers.
	BypassFraud bool `json:"bypass_fraud,omitempty"`
}

// Validate checks the request before any processing happens.
func (r *TransactionRequest) Validate() error {
	if r.UserID == "" {
		return xerrors.ErrInvalidInput
	}
	if !r.Type.IsValid() {
		return xerrors.ErrUnknownTxType
	}
	if r.Amount <= 0 {
		return xerrors.ErrInvalidAmount
	}
	if r.Type == TxGiftSent && (r.TargetUserID == nil || *r.TargetUserID == "") {
		return xerrors.ErrInvalidInput
	}
	return nil
}
