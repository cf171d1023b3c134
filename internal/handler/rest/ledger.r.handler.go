package hrest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coin-ledger/internal/domain"
	"coin-ledger/internal/usecase"
	"coin-ledger/pkg/response"
	"coin-ledger/pkg/xerrors"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type LedgerRestHandler struct {
	txUC    *usecase.TransactionUsecase
	batchUC *usecase.BatchCoordinator
	log     *logrus.Logger
}

func NewLedgerRestHandler(
	txUC *usecase.TransactionUsecase,
	batchUC *usecase.BatchCoordinator,
	log *logrus.Logger,
) *LedgerRestHandler {
	return &LedgerRestHandler{
		txUC:    txUC,
		batchUC: batchUC,
		log:     log,
	}
}

type batchJSON struct {
	Requests []*domain.TransactionRequest `json:"requests"`
}

func (h *LedgerRestHandler) ProcessTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Fraud bypass is reserved for internal counter-credits and must
	// never come in over the wire.
	req.BypassFraud = false

	tx, err := h.txUC.Process(r.Context(), &req)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"user_id": req.UserID,
			"type":    req.Type,
		}).Warnf("transaction rejected: %v", err)
		response.Error(w, statusForErr(err), err.Error())
		return
	}
	response.JSON(w, http.StatusCreated, tx)
}

func (h *LedgerRestHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var in batchJSON
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(in.Requests) == 0 {
		response.Error(w, http.StatusBadRequest, "batch is empty")
		return
	}
	for _, req := range in.Requests {
		req.BypassFraud = false
	}

	result := h.batchUC.ProcessBatch(r.Context(), in.Requests)
	response.JSON(w, http.StatusOK, result)
}

func (h *LedgerRestHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		response.Error(w, http.StatusBadRequest, "missing user id")
		return
	}
	wallet, err := h.txUC.GetWallet(r.Context(), userID)
	if err != nil {
		h.log.Warnf("wallet lookup failed for %s: %v", userID, err)
		response.Error(w, statusForErr(err), err.Error())
		return
	}
	response.JSON(w, http.StatusOK, wallet)
}

func (h *LedgerRestHandler) VerifyChain(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		response.Error(w, http.StatusBadRequest, "missing user id")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	report, err := h.txUC.VerifyChain(r.Context(), userID, limit)
	if err != nil {
		h.log.Errorf("chain verification failed for %s: %v", userID, err)
		response.Error(w, statusForErr(err), err.Error())
		return
	}
	response.JSON(w, http.StatusOK, report)
}

func (h *LedgerRestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Post("/transactions", h.ProcessTransaction)
		r.Post("/transactions/batch", h.ProcessBatch)
		r.Get("/wallets/{userID}", h.GetWallet)
		r.Get("/wallets/{userID}/chain", h.VerifyChain)
	})
}

func statusForErr(err error) int {
	switch {
	case errors.Is(err, xerrors.ErrInvalidInput),
		errors.Is(err, xerrors.ErrInvalidAmount),
		errors.Is(err, xerrors.ErrUnknownTxType):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrNotFound),
		errors.Is(err, xerrors.ErrWalletNotFound):
		return http.StatusNotFound
	case errors.Is(err, xerrors.ErrAccountBusy):
		return http.StatusConflict
	case errors.Is(err, xerrors.ErrFraudBlocked),
		errors.Is(err, xerrors.ErrWalletFrozen):
		return http.StatusForbidden
	case errors.Is(err, xerrors.ErrReviewRequired):
		return http.StatusAccepted
	case errors.Is(err, xerrors.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, xerrors.ErrLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, xerrors.ErrEmergencyControl):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
