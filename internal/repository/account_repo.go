package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/models"
)

// ErrInsufficientBalance is returned by Debit when the guarded UPDATE matched no row.
var ErrInsufficientBalance = errors.New("insufficient balance")

const accountColumns = `id, owner_id, balance_primary, balance_secondary, is_active, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// balanceColumn maps a currency to its column. Column names are never taken
// from input, only from this switch.
func balanceColumn(c models.Currency) (string, error) {
	switch c {
	case models.CurrencyPCoins:
		return "balance_primary", nil
	case models.CurrencyBRL:
		return "balance_secondary", nil
	default:
		return "", fmt.Errorf("no balance column for currency %q", c)
	}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.OwnerID, &a.BalancePrimary, &a.BalanceSecondary, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetByOwner returns the owner's active account, or with activeOnly=false the
// most recently created one when none is active.
func (r *AccountRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) (*models.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1`
	if activeOnly {
		q += ` AND is_active`
	}
	q += ` ORDER BY is_active DESC, created_at DESC LIMIT 1`
	return scanAccount(r.pool.QueryRow(ctx, q, ownerID))
}

func (r *AccountRepo) List(ctx context.Context, f models.AccountFilter) ([]*models.Account, error) {
	var w whereBuilder
	if f.OwnerID != nil {
		w.add("owner_id = $%d", *f.OwnerID)
	}
	if f.Active != nil {
		w.add("is_active = $%d", *f.Active)
	}
	q := `SELECT ` + accountColumns + ` FROM accounts` + w.clause() + ` ORDER BY created_at DESC, id`
	q += w.limit(f.Limit)
	rows, err := r.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// ListIDs returns every account id in creation order.
func (r *AccountRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// CreateTx inserts the account with zero balances inside the given transaction.
func (r *AccountRepo) CreateTx(ctx context.Context, tx pgx.Tx, a *models.Account) error {
	return tx.QueryRow(ctx, `
		INSERT INTO accounts (id, owner_id, is_active)
		VALUES ($1, $2, $3)
		RETURNING balance_primary, balance_secondary, created_at, updated_at
	`, a.ID, a.OwnerID, a.IsActive).Scan(&a.BalancePrimary, &a.BalanceSecondary, &a.CreatedAt, &a.UpdatedAt)
}

// GetByIDTx reads the account inside tx without locking it.
func (r *AccountRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetByIDForUpdate locks the account row for update. Call within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// Debit subtracts amount from the currency's balance only if the balance covers it.
// Returns the new balance, or ErrInsufficientBalance.
func (r *AccountRepo) Debit(ctx context.Context, tx pgx.Tx, id uuid.UUID, c models.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	col, err := balanceColumn(c)
	if err != nil {
		return decimal.Zero, err
	}
	var newBalance decimal.Decimal
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE accounts SET %[1]s = %[1]s - $1, updated_at = now()
		WHERE id = $2 AND %[1]s >= $1
		RETURNING %[1]s
	`, col), amount, id).Scan(&newBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrInsufficientBalance
	}
	return newBalance, err
}

// Credit adds amount to the currency's balance and returns the new balance.
func (r *AccountRepo) Credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, c models.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	col, err := balanceColumn(c)
	if err != nil {
		return decimal.Zero, err
	}
	var newBalance decimal.Decimal
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE accounts SET %[1]s = %[1]s + $1, updated_at = now()
		WHERE id = $2
		RETURNING %[1]s
	`, col), amount, id).Scan(&newBalance)
	return newBalance, err
}

// SetActiveTx flips is_active and returns the updated row.
func (r *AccountRepo) SetActiveTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, active bool) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `
		UPDATE accounts SET is_active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns, id, active))
}
