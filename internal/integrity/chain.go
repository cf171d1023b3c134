package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"coin-ledger/internal/domain"
	"coin-ledger/internal/repository"
	"coin-ledger/pkg/xerrors"
)

// ComputeHash returns the deterministic digest over a transaction's
// immutable identity fields. Any post-commit mutation of these fields
// makes the stored hash stale, which Verify reports.
func ComputeHash(tx *domain.Transaction) string {
	payload := fmt.Sprintf("%s|%s|%s|%d|%d",
		tx.TxID, tx.UserID, tx.Type, tx.Amount, tx.CreatedAt.UnixNano())
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Report is the outcome of a chain verification scan.
type Report struct {
	IsValid       bool     `json:"is_valid"`
	Errors        []string `json:"errors,omitempty"`
	VerifiedCount int      `json:"verified_count"`
	TotalCount    int      `json:"total_count"`
}

// Chain links and verifies per-account transaction hash chains.
type Chain struct {
	txRepo repository.TransactionRepository
}

func NewChain(txRepo repository.TransactionRepository) *Chain {
	return &Chain{txRepo: txRepo}
}

// HeadHash returns the hash of the account's most recent transaction,
// which becomes the next record's previousHash. Empty for a fresh
// account.
func (c *Chain) HeadHash(ctx context.Context, userID string) (string, error) {
	head, err := c.txRepo.Head(ctx, userID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load chain head for %s: %w", userID, err)
	}
	return head.Hash, nil
}

// Verify recomputes every hash in the account's chain and checks the
// previousHash linkage. Mismatches flag the specific transaction without
// aborting the scan; the full report is always returned.
func (c *Chain) Verify(ctx context.Context, userID string, limit int) (*Report, error) {
	txs, err := c.txRepo.ListByUser(ctx, userID, repository.TxFilter{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for %s: %w", userID, err)
	}

	report := &Report{IsValid: true, TotalCount: len(txs)}
	prevHash := ""
	for i, tx := range txs {
		ok := true
		if got := ComputeHash(tx); got != tx.Hash {
			ok = false
			report.Errors = append(report.Errors,
				fmt.Sprintf("transaction %s: stored hash does not match recomputed digest", tx.TxID))
		}
		if i == 0 {
			if tx.PreviousHash != "" {
				ok = false
				report.Errors = append(report.Errors,
					fmt.Sprintf("transaction %s: first record carries a previous hash", tx.TxID))
			}
		} else if tx.PreviousHash != prevHash {
			ok = false
			report.Errors = append(report.Errors,
				fmt.Sprintf("transaction %s: broken link to preceding record", tx.TxID))
		}
		if ok {
			report.VerifiedCount++
		}
		prevHash = tx.Hash
	}
	report.IsValid = len(report.Errors) == 0
	return report, nil
}
