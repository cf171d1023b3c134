package repository

import (
	"context"
	"errors"
	"time"

	"coin-ledger/internal/domain"
	"coin-ledger/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	// Get returns the wallet for a user, or xerrors.ErrWalletNotFound.
	Get(ctx context.Context, userID string) (*domain.Wallet, error)

	// Save upserts the wallet record.
	Save(ctx context.Context, w *domain.Wallet) error

	// ListFlaggedUserIDs returns users whose persisted risk profile is
	// high or critical. Used to rebuild the in-memory suspicious set.
	ListFlaggedUserIDs(ctx context.Context) ([]string, error)
}

type walletRepo struct {
	db *pgxpool.Pool
}

func NewWalletRepo(db *pgxpool.Pool) WalletRepository {
	return &walletRepo{db: db}
}

func (r *walletRepo) Get(ctx context.Context, userID string) (*domain.Wallet, error) {
	var (
		w            domain.Wallet
		ogMultiplier float64
	)
	err := r.db.QueryRow(ctx, `
		SELECT user_id, available_balance, total_balance, buckets, limits,
		       usage, risk, og_level, og_multiplier, premium_features,
		       created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID).Scan(
		&w.UserID, &w.AvailableBalance, &w.TotalBalance, &w.Buckets, &w.Limits,
		&w.Usage, &w.Risk, &w.OGLevel, &ogMultiplier, &w.PremiumFeatures,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrWalletNotFound
		}
		return nil, err
	}
	w.OGMultiplier = decimal.NewFromFloat(ogMultiplier)
	return &w, nil
}

func (r *walletRepo) Save(ctx context.Context, w *domain.Wallet) error {
	w.UpdatedAt = time.Now()
	ogMultiplier, _ := w.OGMultiplier.Float64()

	_, err := r.db.Exec(ctx, `
		INSERT INTO wallets (user_id, available_balance, total_balance, buckets,
		                     limits, usage, risk, og_level, og_multiplier,
		                     premium_features, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (user_id) DO UPDATE SET
			available_balance = EXCLUDED.available_balance,
			total_balance     = EXCLUDED.total_balance,
			buckets           = EXCLUDED.buckets,
			limits            = EXCLUDED.limits,
			usage             = EXCLUDED.usage,
			risk              = EXCLUDED.risk,
			og_level          = EXCLUDED.og_level,
			og_multiplier     = EXCLUDED.og_multiplier,
			premium_features  = EXCLUDED.premium_features,
			updated_at        = EXCLUDED.updated_at
	`, w.UserID, w.AvailableBalance, w.TotalBalance, w.Buckets,
		w.Limits, w.Usage, w.Risk, w.OGLevel, ogMultiplier,
		w.PremiumFeatures, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r *walletRepo) ListFlaggedUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id FROM wallets
		WHERE risk->>'level' IN ('high', 'critical')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
