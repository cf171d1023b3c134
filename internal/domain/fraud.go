package domain

import (
	"fmt"
	"time"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Score bands for risk levels.
const (
	ScoreCritical = 85
	ScoreHigh     = 70
	ScoreMedium   = 50
	ScoreMax      = 100
)

// LevelForScore maps a 0-100 fraud score onto a risk level.
func LevelForScore(score int) RiskLevel {
	switch {
	case score >= ScoreCritical:
		return RiskCritical
	case score >= ScoreHigh:
		return RiskHigh
	case score >= ScoreMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

type RecommendedAction string

const (
	ActionAllow  RecommendedAction = "allow"
	ActionReview RecommendedAction = "review"
	ActionBlock  RecommendedAction = "block"
)

// RiskFactor is a single fraud signal that contributed to the score.
// Factors are exposed individually so reviewers can see why a
// transaction was flagged.
type RiskFactor struct {
	Factor      string `json:"factor"`
	Description string `json:"description"`
	Score       int    `json:"score"`
}

// FraudAssessment is the outcome of analyzing one transaction request.
type FraudAssessment struct {
	Score   int               `json:"score"` // additive, capped at 100
	Level   RiskLevel         `json:"level"`
	Action  RecommendedAction `json:"action"`
	Factors []RiskFactor      `json:"factors,omitempty"`
}

// Flags returns the factor identifiers in trigger order.
func (a *FraudAssessment) Flags() []string {
	flags := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		flags = append(flags, f.Factor)
	}
	return flags
}

// Reasons returns the human-readable explanations in trigger order.
func (a *FraudAssessment) Reasons() []string {
	reasons := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		reasons = append(reasons, f.Description)
	}
	return reasons
}

// FraudPattern is a learned, process-lifetime signature used to bias
// future scoring. Patterns expire after a retention window.
type FraudPattern struct {
	Signature   string    `json:"signature"`
	Description string    `json:"description"`
	Weight      int       `json:"weight"`
	UserID      string    `json:"user_id"` // account the pattern was learned from
	CreatedAt   time.Time `json:"created_at"`
}

// amount bands used in pattern signatures, coin units
var amountBands = []int64{100, 1_000, 10_000, 100_000}

// TxSignature builds the compact signature used for pattern learning and
// matching: transaction type plus a coarse amount band.
func TxSignature(txType TransactionType, amount int64) string {
	band := "100k+"
	for _, b := range amountBands {
		if amount < b {
			band = fmt.Sprintf("<%d", b)
			break
		}
	}
	return fmt.Sprintf("%s:%s", txType, band)
}

// EconomyControls is the read-only snapshot of platform-wide emergency
// kill switches.
type EconomyControls struct {
	Enabled              bool  `json:"enabled"`
	MaxTransactionAmount int64 `json:"max_transaction_amount"` // 0 = no cap
	FreezeGifting        bool  `json:"freeze_gifting"`
	FreezeGaming         bool  `json:"freeze_gaming"`
	FreezeWithdrawals    bool  `json:"freeze_withdrawals"`
}

// ReviewCase is a transaction held for manual review by risk escalation.
type ReviewCase struct {
	ReviewID  string              `json:"review_id"`
	Request   *TransactionRequest `json:"request"`
	Score     int                 `json:"score"`
	Flags     []string            `json:"flags,omitempty"`
	Reasons   []string            `json:"reasons,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}
