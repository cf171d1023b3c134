package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"coin-ledger/internal/domain"
	"coin-ledger/pkg/xerrors"
)

// In-memory store implementations. The core treats its stores as
// abstract collaborators, so an embedding application may supply any
// durable backend; these process-local versions back the test suites
// and single-node tooling.

type MemWalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet
}

func NewMemWalletRepo() *MemWalletRepo {
	return &MemWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *MemWalletRepo) Get(ctx context.Context, userID string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.wallets[userID]
	if !ok {
		return nil, xerrors.ErrWalletNotFound
	}
	return copyWallet(w), nil
}

func (r *MemWalletRepo) Save(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w.UpdatedAt = time.Now()
	r.wallets[w.UserID] = copyWallet(w)
	return nil
}

func (r *MemWalletRepo) ListFlaggedUserIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, w := range r.wallets {
		if w.Risk.Level == domain.RiskHigh || w.Risk.Level == domain.RiskCritical {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func copyWallet(w *domain.Wallet) *domain.Wallet {
	cp := *w
	cp.Risk.Flags = append([]string(nil), w.Risk.Flags...)
	if w.Risk.FreezeExpiresAt != nil {
		t := *w.Risk.FreezeExpiresAt
		cp.Risk.FreezeExpiresAt = &t
	}
	if w.PremiumFeatures != nil {
		cp.PremiumFeatures = make(map[string]domain.PremiumFeature, len(w.PremiumFeatures))
		for k, v := range w.PremiumFeatures {
			cp.PremiumFeatures[k] = v
		}
	}
	return &cp
}

type MemTransactionRepo struct {
	mu  sync.RWMutex
	txs []*domain.Transaction
}

func NewMemTransactionRepo() *MemTransactionRepo {
	return &MemTransactionRepo{}
}

func (r *MemTransactionRepo) Save(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *tx
	r.txs = append(r.txs, &cp)
	return nil
}

func (r *MemTransactionRepo) Head(ctx context.Context, userID string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var head *domain.Transaction
	for _, tx := range r.txs {
		if tx.UserID != userID {
			continue
		}
		if head == nil || !tx.CreatedAt.Before(head.CreatedAt) {
			head = tx
		}
	}
	if head == nil {
		return nil, xerrors.ErrNotFound
	}
	cp := *head
	return &cp, nil
}

func (r *MemTransactionRepo) ListByUser(ctx context.Context, userID string, f TxFilter) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Transaction
	for _, tx := range r.txs {
		if tx.UserID != userID {
			continue
		}
		if !f.Since.IsZero() && tx.CreatedAt.Before(f.Since) {
			continue
		}
		if f.MinFraudScore > 0 && tx.FraudScore < f.MinFraudScore {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, tx.Type) {
			continue
		}
		cp := *tx
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemTransactionRepo) AverageAmount(ctx context.Context, userID string, txType domain.TransactionType) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum, n int64
	for _, tx := range r.txs {
		if tx.UserID == userID && tx.Type == txType {
			sum += tx.Amount
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

func (r *MemTransactionRepo) CountHighRiskSince(ctx context.Context, since time.Time, minScore int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, tx := range r.txs {
		if !tx.CreatedAt.Before(since) && tx.FraudScore >= minScore {
			n++
		}
	}
	return n, nil
}

// Tamper mutates a stored record in place, bypassing the append-only
// contract. It exists so tamper-evidence checks can simulate external
// storage corruption.
func (r *MemTransactionRepo) Tamper(txID string, mutate func(*domain.Transaction)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tx := range r.txs {
		if tx.TxID == txID {
			mutate(tx)
			return true
		}
	}
	return false
}

func containsType(types []domain.TransactionType, t domain.TransactionType) bool {
	for _, tt := range types {
		if tt == t {
			return true
		}
	}
	return false
}

type MemReviewQueue struct {
	mu    sync.Mutex
	cases []*domain.ReviewCase
}

func NewMemReviewQueue() *MemReviewQueue {
	return &MemReviewQueue{}
}

func (q *MemReviewQueue) Enqueue(ctx context.Context, rc *domain.ReviewCase) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.cases = append(q.cases, rc)
	return nil
}

func (q *MemReviewQueue) Pending(ctx context.Context, limit int) ([]*domain.ReviewCase, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.cases) {
		limit = len(q.cases)
	}
	out := make([]*domain.ReviewCase, limit)
	copy(out, q.cases[:limit])
	return out, nil
}
