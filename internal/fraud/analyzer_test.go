package fraud

import (
	"context"
	"fmt"
	"testing"
	"time"

	"coin-ledger/internal/domain"
	"coin-ledger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAnalyzer(t *testing.T, repo *repository.MemTransactionRepo, cfg Config) *Analyzer {
	t.Helper()
	return NewAnalyzer(repo, nil, NewPatternCache(), NewSuspiciousSet(), nil, cfg, zap.NewNop())
}

func seedTx(t *testing.T, repo *repository.MemTransactionRepo, userID string, txType domain.TransactionType, amount int64, at time.Time) {
	t.Helper()
	tx := &domain.Transaction{
		TxID:      fmt.Sprintf("tx_%d", at.UnixNano()),
		UserID:    userID,
		Type:      txType,
		Amount:    amount,
		Status:    domain.StatusCompleted,
		CreatedAt: at,
	}
	require.NoError(t, repo.Save(context.Background(), tx))
}

func TestAnalyzeCleanAccountScoresLow(t *testing.T) {
	analyzer := newTestAnalyzer(t, repository.NewMemTransactionRepo(), Config{})

	a, err := analyzer.Analyze(context.Background(), &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxPurchase,
		Amount: 500,
		Device: &domain.DeviceContext{DeviceID: "d1", UserAgent: "Mozilla/5.0"},
	})
	require.NoError(t, err)
	assert.Zero(t, a.Score)
	assert.Equal(t, domain.RiskLow, a.Level)
	assert.Equal(t, domain.ActionAllow, a.Action)
	assert.Empty(t, a.Factors)
}

func TestAnalyzeBurstActivityScoresHigh(t *testing.T) {
	repo := repository.NewMemTransactionRepo()
	analyzer := newTestAnalyzer(t, repo, Config{})

	// 25 transactions 30 seconds apart, all inside the trailing hour.
	base := time.Now().Add(-13 * time.Minute)
	for i := 0; i < 25; i++ {
		seedTx(t, repo, "u1", domain.TxGiftSent, 100, base.Add(time.Duration(i)*30*time.Second))
	}

	a, err := analyzer.Analyze(context.Background(), &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxGiftSent,
		Amount: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, a.Level)
	assert.Equal(t, domain.ActionReview, a.Action)
	assert.Contains(t, a.Flags(), "high_velocity")
	assert.Contains(t, a.Flags(), "rapid_succession")
	assert.Contains(t, a.Flags(), "unknown_device")
}

func TestAnalyzeElevatedVelocityBand(t *testing.T) {
	repo := repository.NewMemTransactionRepo()
	analyzer := newTestAnalyzer(t, repo, Config{})

	// Half the hourly threshold lands in the lower band.
	base := time.Now().Add(-50 * time.Minute)
	for i := 0; i < 10; i++ {
		seedTx(t, repo, "u1", domain.TxPurchase, 100, base.Add(time.Duration(i)*5*time.Minute))
	}

	a, err := analyzer.Analyze(context.Background(), &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxPurchase,
		Amount: 100,
		Device: &domain.DeviceContext{DeviceID: "d1"},
	})
	require.NoError(t, err)
	assert.Contains(t, a.Flags(), "elevated_velocity")
	assert.NotContains(t, a.Flags(), "high_velocity")
}

func TestAnalyzeHighRiskCountryContributesOnce(t *testing.T) {
	analyzer := newTestAnalyzer(t, repository.NewMemTransactionRepo(), Config{
		HighRiskCountries: []string{"KP", "IR"},
	})

	a, err := analyzer.Analyze(context.Background(), &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxPurchase,
		Amount: 500,
		Geo:    &domain.GeoContext{Country: "kp"},
		Device: &domain.DeviceContext{DeviceID: "d1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 50, a.Score)
	assert.Contains(t, a.Flags(), "high_risk_country")
	assert.NotContains(t, a.Flags(), "new_country")
}

func TestAnalyzeNewCountryThenKnown(t *testing.T) {
	analyzer := newTestAnalyzer(t, repository.NewMemTransactionRepo(), Config{})
	req := &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxPurchase,
		Amount: 500,
		Geo:    &domain.GeoContext{Country: "US"},
		Device: &domain.DeviceContext{DeviceID: "d1"},
	}

	first, err := analyzer.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, first.Flags(), "new_country")

	second, err := analyzer.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, second.Flags(), "new_country")
	assert.LessOrEqual(t, second.Score, first.Score)
}

func TestAnalyzeBotDevice(t *testing.T) {
	analyzer := newTestAnalyzer(t, repository.NewMemTransactionRepo(), Config{})

	a, err := analyzer.Analyze(context.Background(), &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxPurchase,
		Amount: 500,
		Device: &domain.DeviceContext{DeviceID: "d1", UserAgent: "python-requests/2.31"},
	})
	require.NoError(t, err)
	assert.Contains(t, a.Flags(), "bot_device")
	assert.NotContains(t, a.Flags(), "unknown_device")
}

func TestAnalyzeLargeAmount(t *testing.T) {
	analyzer := newTestAnalyzer(t, repository.NewMemTransactionRepo(), Config{LargeAmount: 25_000})

	a, err := analyzer.Analyze(context.Background(), &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxWithdrawal,
		Amount: 30_000,
		Device: &domain.DeviceContext{DeviceID: "d1"},
	})
	require.NoError(t, err)
	assert.Contains(t, a.Flags(), "large_amount")
}

func TestAnalyzeBehavioralDeviation(t *testing.T) {
	repo := repository.NewMemTransactionRepo()
	analyzer := newTestAnalyzer(t, repo, Config{})

	base := time.Now().Add(-20 * time.Hour)
	for i := 0; i < 3; i++ {
		seedTx(t, repo, "u1", domain.TxPurchase, 100, base.Add(time.Duration(i)*time.Hour))
	}

	a, err := analyzer.Analyze(context.Background(), &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxPurchase,
		Amount: 1_000, // 10x the historical average
		Device: &domain.DeviceContext{DeviceID: "d1"},
	})
	require.NoError(t, err)
	assert.Contains(t, a.Flags(), "behavioral_deviation")
}

func TestAnalyzeFlaggedAccountEscalatesToBlock(t *testing.T) {
	repo := repository.NewMemTransactionRepo()
	analyzer := newTestAnalyzer(t, repo, Config{})
	analyzer.Suspicious().Add("u1")

	base := time.Now().Add(-13 * time.Minute)
	for i := 0; i < 25; i++ {
		seedTx(t, repo, "u1", domain.TxGiftSent, 100, base.Add(time.Duration(i)*30*time.Second))
	}

	a, err := analyzer.Analyze(context.Background(), &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxGiftSent,
		Amount: 100,
	})
	require.NoError(t, err)
	assert.Contains(t, a.Flags(), "flagged_account")
	assert.Equal(t, domain.RiskHigh, a.Level)
	assert.Equal(t, domain.ActionBlock, a.Action)
}

func TestScoreCapsAtMax(t *testing.T) {
	repo := repository.NewMemTransactionRepo()
	analyzer := newTestAnalyzer(t, repo, Config{})

	base := time.Now().Add(-55 * time.Minute)
	for i := 0; i < 100; i++ {
		seedTx(t, repo, "u1", domain.TxWithdrawal, 30_000, base.Add(time.Duration(i)*30*time.Second))
	}

	a, err := analyzer.Analyze(context.Background(), &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxWithdrawal,
		Amount: 50_000,
		Geo:    &domain.GeoContext{Country: "ZZ"},
		Device: &domain.DeviceContext{DeviceID: "d1", UserAgent: "curl/8.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ScoreMax, a.Score)
	assert.Equal(t, domain.RiskCritical, a.Level)
	assert.Equal(t, domain.ActionBlock, a.Action)
}

func TestLearnFeedsPatternMatching(t *testing.T) {
	repo := repository.NewMemTransactionRepo()
	analyzer := newTestAnalyzer(t, repo, Config{PatternMatchMin: 3})

	req := &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxPurchase,
		Amount: 500,
		Device: &domain.DeviceContext{DeviceID: "d1"},
	}
	analyzer.Learn(req, 80)
	assert.True(t, analyzer.Suspicious().Contains("u1"))
	assert.Equal(t, 1, analyzer.Patterns().Len())

	// Three recent transactions in the same signature band make the
	// learned pattern fire.
	base := time.Now().Add(-30 * time.Minute)
	for i := 0; i < 3; i++ {
		seedTx(t, repo, "u1", domain.TxPurchase, 600, base.Add(time.Duration(i)*time.Minute))
	}

	a, err := analyzer.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, a.Flags(), "pattern_match")
	assert.Contains(t, a.Flags(), "flagged_account")
}

func TestPatternMatchNeedsEnoughRepeats(t *testing.T) {
	repo := repository.NewMemTransactionRepo()
	analyzer := newTestAnalyzer(t, repo, Config{PatternMatchMin: 3})

	req := &domain.TransactionRequest{
		UserID: "u2",
		Type:   domain.TxPurchase,
		Amount: 500,
		Device: &domain.DeviceContext{DeviceID: "d1"},
	}
	analyzer.Learn(req, 80)
	seedTx(t, repo, "u2", domain.TxPurchase, 600, time.Now().Add(-time.Minute))

	a, err := analyzer.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, a.Flags(), "pattern_match")
}

func TestScoreMonotoneInSignals(t *testing.T) {
	analyzer := newTestAnalyzer(t, repository.NewMemTransactionRepo(), Config{})

	clean := &domain.TransactionRequest{
		UserID: "u1",
		Type:   domain.TxPurchase,
		Amount: 500,
		Device: &domain.DeviceContext{DeviceID: "d1", UserAgent: "Mozilla/5.0"},
	}
	base, err := analyzer.Analyze(context.Background(), clean)
	require.NoError(t, err)

	// The same request with extra risk signals never scores lower.
	worse := *clean
	worse.Amount = 30_000
	worse.Device = &domain.DeviceContext{DeviceID: "d1", UserAgent: "curl/8.0"}
	worseOut, err := analyzer.Analyze(context.Background(), &worse)
	require.NoError(t, err)
	assert.Greater(t, worseOut.Score, base.Score)
}

func TestIsBotSignature(t *testing.T) {
	assert.True(t, isBotSignature("curl/8.0"))
	assert.True(t, isBotSignature("HeadlessChrome/120"))
	assert.True(t, isBotSignature("python-urllib"))
	assert.False(t, isBotSignature("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)"))
	assert.False(t, isBotSignature(""))
}

func TestMedianGapNeedsSample(t *testing.T) {
	base := time.Now()
	var txs []*domain.Transaction
	for i := 0; i < 4; i++ {
		txs = append(txs, &domain.Transaction{CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}
	_, ok := medianGap(txs)
	assert.False(t, ok)

	txs = append(txs, &domain.Transaction{CreatedAt: base.Add(5 * time.Second)})
	gap, ok := medianGap(txs)
	assert.True(t, ok)
	assert.Equal(t, time.Second, gap)
}
