package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-ledger/internal/domain"
	"coin-ledger/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxFilter narrows ListByUser queries. Zero values mean "no filter".
type TxFilter struct {
	Since         time.Time
	Types         []domain.TransactionType
	MinFraudScore int
	Limit         int
}

type TransactionRepository interface {
	// Save appends a transaction. Records are append-only; there is no
	// update or delete.
	Save(ctx context.Context, tx *domain.Transaction) error

	// Head returns the account's most recent transaction, or
	// xerrors.ErrNotFound when the account has none.
	Head(ctx context.Context, userID string) (*domain.Transaction, error)

	// ListByUser returns the account's transactions ordered by creation
	// time ascending.
	ListByUser(ctx context.Context, userID string, f TxFilter) ([]*domain.Transaction, error)

	// AverageAmount returns the historical average amount for one
	// transaction type, 0 when the account has no history for it.
	AverageAmount(ctx context.Context, userID string, txType domain.TransactionType) (float64, error)

	// CountHighRiskSince counts transactions across all accounts with
	// fraudScore >= minScore created after the given time.
	CountHighRiskSince(ctx context.Context, since time.Time, minScore int) (int, error)
}

type transactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepo(db *pgxpool.Pool) TransactionRepository {
	return &transactionRepo{db: db}
}

func (r *transactionRepo) Save(ctx context.Context, tx *domain.Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (tx_id, user_id, target_user_id, type, amount,
		                          balance_before, balance_after, source, destination,
		                          status, fraud_score, risk_level, hash, previous_hash,
		                          created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, tx.TxID, tx.UserID, tx.TargetUserID, tx.Type, tx.Amount,
		tx.BalanceBefore, tx.BalanceAfter, tx.Source, tx.Destination,
		tx.Status, tx.FraudScore, tx.RiskLevel, tx.Hash, nullable(tx.PreviousHash),
		tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", tx.TxID, err)
	}
	return nil
}

func (r *transactionRepo) Head(ctx context.Context, userID string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+txColumns+`
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, tx_id DESC
		LIMIT 1
	`, userID)

	tx, err := scanTx(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return tx, nil
}

func (r *transactionRepo) ListByUser(ctx context.Context, userID string, f TxFilter) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE user_id = $1`
	args := []any{userID}

	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if len(f.Types) > 0 {
		args = append(args, f.Types)
		query += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}
	if f.MinFraudScore > 0 {
		args = append(args, f.MinFraudScore)
		query += fmt.Sprintf(" AND fraud_score >= $%d", len(args))
	}
	query += " ORDER BY created_at ASC, tx_id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *transactionRepo) AverageAmount(ctx context.Context, userID string, txType domain.TransactionType) (float64, error) {
	var avg *float64
	err := r.db.QueryRow(ctx, `
		SELECT AVG(amount) FROM transactions
		WHERE user_id = $1 AND type = $2
	`, userID, txType).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

func (r *transactionRepo) CountHighRiskSince(ctx context.Context, since time.Time, minScore int) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE created_at >= $1 AND fraud_score >= $2
	`, since, minScore).Scan(&n)
	return n, err
}

const txColumns = `tx_id, user_id, target_user_id, type, amount,
	balance_before, balance_after, source, destination,
	status, fraud_score, risk_level, hash, previous_hash, created_at`

func scanTx(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx       domain.Transaction
		prevHash *string
	)
	err := row.Scan(&tx.TxID, &tx.UserID, &tx.TargetUserID, &tx.Type, &tx.Amount,
		&tx.BalanceBefore, &tx.BalanceAfter, &tx.Source, &tx.Destination,
		&tx.Status, &tx.FraudScore, &tx.RiskLevel, &tx.Hash, &prevHash,
		&tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	if prevHash != nil {
		tx.PreviousHash = *prevHash
	}
	return &tx, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
