package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/models"
	"github.com/privebank/ledger/internal/repository"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// AccountRepo is the account storage the Store needs. Lookups of a missing
// row return pgx.ErrNoRows.
type AccountRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) (*models.Account, error)
	List(ctx context.Context, f models.AccountFilter) ([]*models.Account, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	CreateTx(ctx context.Context, tx pgx.Tx, a *models.Account) error
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	Debit(ctx context.Context, tx pgx.Tx, id uuid.UUID, c models.Currency, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, tx pgx.Tx, id uuid.UUID, c models.Currency, amount decimal.Decimal) (decimal.Decimal, error)
	SetActiveTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, active bool) (*models.Account, error)
}

type TransactionRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	ListTx(ctx context.Context, tx pgx.Tx, f models.TransactionFilter) ([]*models.Transaction, error)
	ListCompletedByAccountTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) ([]*models.Transaction, error)
}

// Store is the only writer of account balances and transaction rows.
// Every balance change goes through ApplyMutation.
type Store struct {
	db       TxBeginner
	accounts AccountRepo
	txns     TransactionRepo
	timeout  time.Duration
}

// NewStore returns a Store. A zero timeout leaves deadlines to the caller's context.
func NewStore(db TxBeginner, accounts AccountRepo, txns TransactionRepo, timeout time.Duration) *Store {
	return &Store{db: db, accounts: accounts, txns: txns, timeout: timeout}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	acc, err := s.accounts.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, operationFailed(err)
	}
	return acc, nil
}

// GetAccountByOwner returns the owner's active account, or the most recent
// inactive one when the owner has no active account.
func (s *Store) GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Account, error) {
	return s.byOwner(ctx, ownerID, false)
}

func (s *Store) GetActiveAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Account, error) {
	return s.byOwner(ctx, ownerID, true)
}

func (s *Store) byOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) (*models.Account, error) {
	acc, err := s.accounts.GetByOwner(ctx, ownerID, activeOnly)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, operationFailed(err)
	}
	return acc, nil
}

func (s *Store) ListAccounts(ctx context.Context, f models.AccountFilter) ([]*models.Account, error) {
	list, err := s.accounts.List(ctx, f)
	if err != nil {
		return nil, operationFailed(err)
	}
	return list, nil
}

// CreateAccount opens an active account for ownerID. Non-zero initial
// balances are booked as completed deposits in the same unit of work so the
// account's history replays to its balance.
func (s *Store) CreateAccount(ctx context.Context, ownerID uuid.UUID, initial models.Balances) (*models.Account, error) {
	for _, c := range models.Currencies {
		v := initial.Get(c)
		if v.IsNegative() || !v.Equal(v.Truncate(2)) || v.GreaterThan(maxAmount) {
			return nil, ErrInvalidAmount
		}
	}
	if _, err := s.accounts.GetByOwner(ctx, ownerID, true); err == nil {
		return nil, ErrDuplicateAccount
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, operationFailed(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, operationFailed(err)
	}
	defer tx.Rollback(ctx)

	acc := &models.Account{ID: uuid.New(), OwnerID: ownerID, IsActive: true}
	if err := s.accounts.CreateTx(ctx, tx, acc); err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, ErrDuplicateAccount
		}
		return nil, operationFailed(err)
	}

	for _, c := range models.Currencies {
		amount := initial.Get(c)
		if !amount.IsPositive() {
			continue
		}
		m := Credit(acc.ID, c, amount, "initial balance")
		newBalance, err := s.accounts.Credit(ctx, tx, acc.ID, c, amount)
		if err != nil {
			return nil, operationFailed(err)
		}
		if c == models.CurrencyPCoins {
			acc.BalancePrimary = newBalance
		} else {
			acc.BalanceSecondary = newBalance
		}
		if err := s.txns.CreateTx(ctx, tx, m.transaction()); err != nil {
			return nil, operationFailed(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, operationFailed(err)
	}
	return acc, nil
}

// SetActive activates or deactivates an account. Accounts are never deleted.
func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, operationFailed(err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.accounts.GetByIDForUpdate(ctx, tx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, operationFailed(err)
	}
	acc, err := s.accounts.SetActiveTx(ctx, tx, id, active)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return nil, ErrDuplicateAccount
		}
		return nil, operationFailed(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, operationFailed(err)
	}
	return acc, nil
}

// ApplyMutation runs m as one unit of work: lock the affected accounts in a
// fixed order, check the invariants against the locked rows, apply the
// balance changes and write one Transaction. Nothing is written on failure.
func (s *Store) ApplyMutation(ctx context.Context, m Mutation) (*models.Transaction, error) {
	if err := ValidateAmount(m.Amount); err != nil {
		return nil, err
	}
	if !m.Currency.Valid() {
		return nil, ErrInvalidCurrency
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, operationFailed(err)
	}
	defer tx.Rollback(ctx)

	locked := make(map[uuid.UUID]*models.Account, 2)
	for _, id := range m.lockOrder() {
		acc, err := s.accounts.GetByIDForUpdate(ctx, tx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, m.notFound(id)
		}
		if err != nil {
			return nil, operationFailed(err)
		}
		locked[id] = acc
	}

	var from, to *models.Account
	if m.Kind != MutationCredit {
		from = locked[m.From]
	}
	if m.Kind != MutationDebit {
		to = locked[m.To]
	}
	if err := Check(m, from, to); err != nil {
		return nil, err
	}

	if from != nil {
		if _, err := s.accounts.Debit(ctx, tx, m.From, m.Currency, m.Amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) || isPgCode(err, pgCheckViolation) {
				return nil, insufficientFunds(m.Currency)
			}
			return nil, operationFailed(err)
		}
	}
	if to != nil {
		if _, err := s.accounts.Credit(ctx, tx, m.To, m.Currency, m.Amount); err != nil {
			return nil, operationFailed(err)
		}
	}

	t := m.transaction()
	if err := s.txns.CreateTx(ctx, tx, t); err != nil {
		return nil, operationFailed(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, operationFailed(err)
	}
	return t, nil
}

func (m Mutation) notFound(id uuid.UUID) error {
	if m.Kind == MutationTransfer {
		if id == m.From {
			return ErrSourceAccountNotFound
		}
		return ErrRecipientNotFound
	}
	return ErrAccountNotFound
}

// ListTransactions returns matching transactions newest first, read from one
// consistent snapshot. With f.AccountID set the account must exist.
func (s *Store) ListTransactions(ctx context.Context, f models.TransactionFilter) ([]*models.Transaction, error) {
	var list []*models.Transaction
	err := s.snapshot(ctx, func(tx pgx.Tx) error {
		if f.AccountID != nil {
			if _, err := s.accounts.GetByIDTx(ctx, tx, *f.AccountID); err != nil {
				return err
			}
		}
		var err error
		list, err = s.txns.ListTx(ctx, tx, f)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, operationFailed(err)
	}
	return list, nil
}

// Reconcile replays the account's completed transactions and compares the
// result with the stored balances, both read from the same snapshot.
func (s *Store) Reconcile(ctx context.Context, id uuid.UUID) (*ReconcileReport, error) {
	var report *ReconcileReport
	err := s.snapshot(ctx, func(tx pgx.Tx) error {
		acc, err := s.accounts.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		txns, err := s.txns.ListCompletedByAccountTx(ctx, tx, id)
		if err != nil {
			return err
		}
		report = reconcile(acc, txns)
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, operationFailed(err)
	}
	return report, nil
}

// ReconcileAll reconciles every account and returns the reports in account
// creation order. It stops at the first storage error.
func (s *Store) ReconcileAll(ctx context.Context) ([]*ReconcileReport, error) {
	ids, err := s.accounts.ListIDs(ctx)
	if err != nil {
		return nil, operationFailed(err)
	}
	reports := make([]*ReconcileReport, 0, len(ids))
	for _, id := range ids {
		r, err := s.Reconcile(ctx, id)
		if err != nil {
			return reports, fmt.Errorf("reconcile %s: %w", id, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *Store) snapshot(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
