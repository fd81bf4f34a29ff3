package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/privebank/ledger/internal/models"
)

const transactionColumns = `id, seq, transaction_type, from_account_id, to_account_id, amount, currency, status, description, created_at`

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	if err := row.Scan(&t.ID, &t.Seq, &t.Type, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.Currency, &t.Status, &t.Description, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTx inserts a transaction row inside the given transaction.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, transaction_type, from_account_id, to_account_id, amount, currency, status, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq, created_at
	`, t.ID, t.Type, t.FromAccountID, t.ToAccountID, t.Amount, t.Currency, t.Status, t.Description).Scan(&t.Seq, &t.CreatedAt)
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

// ListTx returns matching transactions newest first. Run it inside a
// snapshot transaction so a listing never shows half of a mutation.
func (r *TransactionRepo) ListTx(ctx context.Context, tx pgx.Tx, f models.TransactionFilter) ([]*models.Transaction, error) {
	var w whereBuilder
	if f.AccountID != nil {
		w.add("(from_account_id = $%[1]d OR to_account_id = $%[1]d)", *f.AccountID)
	}
	if f.StartDate != nil {
		w.add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		w.add("created_at < $%d", *f.EndDate)
	}
	if f.Type != nil {
		w.add("transaction_type = $%d", *f.Type)
	}
	if f.Currency != nil {
		w.add("currency = $%d", *f.Currency)
	}
	q := `SELECT ` + transactionColumns + ` FROM transactions` + w.clause() + ` ORDER BY seq DESC`
	q += w.limit(f.Limit)
	rows, err := tx.Query(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// ListCompletedByAccountTx returns every completed transaction touching the
// account, oldest first, for replay.
func (r *TransactionRepo) ListCompletedByAccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE (from_account_id = $1 OR to_account_id = $1) AND status = 'completed'
		ORDER BY seq
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
