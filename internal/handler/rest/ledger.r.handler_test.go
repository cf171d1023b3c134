package hrest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"coin-ledger/internal/domain"
	"coin-ledger/internal/fraud"
	"coin-ledger/internal/integrity"
	"coin-ledger/internal/pub"
	"coin-ledger/internal/repository"
	"coin-ledger/internal/usecase"
	"coin-ledger/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	walletRepo := repository.NewMemWalletRepo()
	txRepo := repository.NewMemTransactionRepo()

	analyzer := fraud.NewAnalyzer(txRepo, nil, fraud.NewPatternCache(),
		fraud.NewSuspiciousSet(), nil, fraud.Config{}, logger)
	ids := utils.NewIDGenerator()
	ledger := usecase.NewWalletLedger(usecase.StaticEconomy{})
	escalation := usecase.NewRiskEscalation(walletRepo, repository.NewMemReviewQueue(),
		pub.NopNotifier{}, ids, logger)
	txUC := usecase.NewTransactionUsecase(walletRepo, txRepo, integrity.NewChain(txRepo),
		analyzer, ledger, escalation, pub.NopNotifier{}, ids, logger)
	batchUC := usecase.NewBatchCoordinator(txUC, pub.NopNotifier{}, logger)

	restLog := logrus.New()
	restLog.SetOutput(bytes.NewBuffer(nil))

	r := chi.NewRouter()
	NewLedgerRestHandler(txUC, batchUC, restLog).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRestProcessTransaction(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/ledger/transactions", map[string]any{
		"user_id": "u1",
		"type":    "reward",
		"amount":  500,
		"device":  map[string]string{"device_id": "d1", "user_agent": "Mozilla/5.0"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Status string             `json:"status"`
		Data   domain.Transaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.Data.UserID)
	assert.Equal(t, int64(500), resp.Data.Amount)
	assert.NotEmpty(t, resp.Data.Hash)
}

func TestRestProcessTransactionErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"malformed type", map[string]any{"user_id": "u1", "type": "barter", "amount": 10}, http.StatusBadRequest},
		{"zero amount", map[string]any{"user_id": "u1", "type": "purchase", "amount": 0}, http.StatusBadRequest},
		{"debit without wallet", map[string]any{"user_id": "ghost", "type": "purchase", "amount": 10}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/ledger/transactions", tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestRestProcessTransactionRejectsBadJSON(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/ledger/transactions", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestProcessTransactionStripsBypassFlag(t *testing.T) {
	router := newTestRouter(t)

	// bypass_fraud in the request body is ignored; the request goes
	// through the same validation as any external one.
	rec := doJSON(t, router, http.MethodPost, "/ledger/transactions", map[string]any{
		"user_id":      "ghost",
		"type":         "purchase",
		"amount":       10,
		"bypass_fraud": true,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRestProcessBatch(t *testing.T) {
	router := newTestRouter(t)

	// Fund two accounts.
	for _, user := range []string{"alice", "bob"} {
		rec := doJSON(t, router, http.MethodPost, "/ledger/transactions", map[string]any{
			"user_id": user,
			"type":    "reward",
			"amount":  1_000,
			"device":  map[string]string{"device_id": "d1", "user_agent": "Mozilla/5.0"},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodPost, "/ledger/transactions/batch", map[string]any{
		"requests": []map[string]any{
			{"user_id": "alice", "type": "purchase", "amount": 100},
			{"user_id": "bob", "type": "purchase", "amount": 200},
			{"user_id": "carol", "type": "purchase", "amount": 300},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data usecase.BatchResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Successful, 2)
	assert.Len(t, resp.Data.Failed, 1)
	assert.Equal(t, int64(300), resp.Data.TotalAmount)
}

func TestRestProcessBatchRejectsEmpty(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/ledger/transactions/batch", map[string]any{
		"requests": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestGetWalletAndChain(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/ledger/transactions", map[string]any{
		"user_id": "u1",
		"type":    "reward",
		"amount":  750,
		"device":  map[string]string{"device_id": "d1", "user_agent": "Mozilla/5.0"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/ledger/wallets/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var walletResp struct {
		Data domain.Wallet `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &walletResp))
	assert.Equal(t, int64(750), walletResp.Data.AvailableBalance)

	rec = doJSON(t, router, http.MethodGet, "/ledger/wallets/u1/chain", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var chainResp struct {
		Data integrity.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chainResp))
	assert.True(t, chainResp.Data.IsValid)
	assert.Equal(t, 1, chainResp.Data.TotalCount)

	rec = doJSON(t, router, http.MethodGet, "/ledger/wallets/u1/chain?limit=oops", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestGetWalletCreatesFresh(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/ledger/wallets/%s", "newcomer"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data domain.Wallet `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Data.AvailableBalance)
	assert.Equal(t, domain.DefaultSpendingLimit, resp.Data.Limits.Spending)
}
