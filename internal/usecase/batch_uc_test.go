package usecase

import (
	"context"
	"fmt"
	"testing"

	"coin-ledger/internal/domain"
	"coin-ledger/internal/pub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBatchHarness(t *testing.T) (*BatchCoordinator, *procHarness) {
	t.Helper()
	h := newProcHarness(t, nil, domain.EconomyControls{})
	return NewBatchCoordinator(h.uc, pub.NopNotifier{}, zap.NewNop()), h
}

func TestProcessBatchEveryRequestAccountedFor(t *testing.T) {
	batch, h := newBatchHarness(t)
	ctx := context.Background()
	h.fund(t, "alice", 1_000)
	h.fund(t, "bob", 1_000)

	requests := []*domain.TransactionRequest{
		cleanRequest("alice", domain.TxPurchase, 200),
		cleanRequest("bob", domain.TxPurchase, 300),
		cleanRequest("alice", domain.TxStake, 100),
		cleanRequest("carol", domain.TxPurchase, 50), // no wallet, must fail
	}

	result := batch.ProcessBatch(ctx, requests)
	assert.Len(t, result.Successful, 3)
	assert.Len(t, result.Failed, 1)
	assert.Equal(t, len(requests), len(result.Successful)+len(result.Failed))
	assert.Equal(t, int64(600), result.TotalAmount)
	assert.Equal(t, "carol", result.Failed[0].UserID)
}

func TestProcessBatchContinuesAfterFailureWithinAccount(t *testing.T) {
	batch, h := newBatchHarness(t)
	ctx := context.Background()
	h.fund(t, "alice", 500)

	over := cleanRequest("alice", domain.TxPurchase, 10_000)
	over.Reference = "too-big"
	requests := []*domain.TransactionRequest{
		over,
		cleanRequest("alice", domain.TxPurchase, 100),
	}

	result := batch.ProcessBatch(ctx, requests)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "too-big", result.Failed[0].Reference)
	require.Len(t, result.Successful, 1)

	w, err := h.uc.GetWallet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(400), w.AvailableBalance)
}

func TestProcessBatchSequentialWithinAccount(t *testing.T) {
	batch, h := newBatchHarness(t)
	ctx := context.Background()
	h.fund(t, "alice", 1_000)

	var requests []*domain.TransactionRequest
	for i := 0; i < 4; i++ {
		req := cleanRequest("alice", domain.TxPurchase, 100)
		req.Reference = fmt.Sprintf("req-%d", i)
		requests = append(requests, req)
	}

	result := batch.ProcessBatch(ctx, requests)
	assert.Len(t, result.Successful, 4)
	assert.Empty(t, result.Failed)

	// Sequential commits keep the account chain intact.
	report, err := h.uc.VerifyChain(ctx, "alice", 0)
	require.NoError(t, err)
	assert.True(t, report.IsValid)
	assert.Equal(t, 5, report.TotalCount)

	w, err := h.uc.GetWallet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(600), w.AvailableBalance)
}

func TestProcessBatchCountsFraudAlerts(t *testing.T) {
	scorer := &fixedScorer{assessment: domain.FraudAssessment{
		Score:  90,
		Level:  domain.RiskCritical,
		Action: domain.ActionBlock,
	}}
	h := newProcHarness(t, scorer, domain.EconomyControls{})
	batch := NewBatchCoordinator(h.uc, pub.NopNotifier{}, zap.NewNop())

	result := batch.ProcessBatch(context.Background(), []*domain.TransactionRequest{
		cleanRequest("mallory", domain.TxPurchase, 100),
	})
	assert.Empty(t, result.Successful)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.FraudAlerts)
}

func TestProcessBatchIndependentAccountsInParallel(t *testing.T) {
	batch, h := newBatchHarness(t)
	ctx := context.Background()

	var requests []*domain.TransactionRequest
	for i := 0; i < 8; i++ {
		user := fmt.Sprintf("user-%d", i)
		h.fund(t, user, 1_000)
		requests = append(requests, cleanRequest(user, domain.TxPurchase, 250))
	}

	result := batch.ProcessBatch(ctx, requests)
	assert.Len(t, result.Successful, 8)
	assert.Empty(t, result.Failed)
	assert.Equal(t, int64(2_000), result.TotalAmount)
}
