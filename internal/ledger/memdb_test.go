package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/models"
	"github.com/privebank/ledger/internal/repository"
)

// ---------------------------------------------------------------------------
// In-memory database for Store tests. Transactions are serialized by txMu,
// which stands in for the row locks Postgres takes; Rollback restores the
// snapshot taken at Begin.
// ---------------------------------------------------------------------------

type memState struct {
	accounts map[uuid.UUID]models.Account
	txns     []models.Transaction
	seq      int64
}

func (s memState) clone() memState {
	out := memState{accounts: make(map[uuid.UUID]models.Account, len(s.accounts)), seq: s.seq}
	for id, a := range s.accounts {
		out.accounts[id] = a
	}
	out.txns = append([]models.Transaction(nil), s.txns...)
	return out
}

type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   memState

	// failCreateTx makes the next transaction insert fail, to exercise rollback.
	failCreateTx error
	begins       int
}

func newMemDB() *memDB {
	return &memDB{st: memState{accounts: map[uuid.UUID]models.Account{}}}
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.BeginTx(ctx, pgx.TxOptions{})
}

func (db *memDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	db.txMu.Lock()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.begins++
	return &memTx{db: db, snap: db.st.clone()}, nil
}

func (db *memDB) beginCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.begins
}

func (db *memDB) account(id uuid.UUID) models.Account {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.st.accounts[id]
}

func (db *memDB) transactions() []models.Transaction {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]models.Transaction(nil), db.st.txns...)
}

// tamper overwrites a stored balance without a transaction row.
func (db *memDB) tamper(id uuid.UUID, primary decimal.Decimal) {
	db.mu.Lock()
	defer db.mu.Unlock()
	a := db.st.accounts[id]
	a.BalancePrimary = primary
	db.st.accounts[id] = a
}

// --- memTx satisfies pgx.Tx; only Commit/Rollback are meaningful. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type memTx struct {
	noopTx
	db   *memDB
	snap memState
	done bool
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.db.mu.Lock()
	t.db.st = t.snap
	t.db.mu.Unlock()
	t.done = true
	t.db.txMu.Unlock()
	return nil
}

// ---------------------------------------------------------------------------
// AccountRepo / TransactionRepo over memDB.
// ---------------------------------------------------------------------------

type memAccounts struct{ db *memDB }

func (m memAccounts) get(id uuid.UUID) (*models.Account, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.st.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (m memAccounts) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	return m.get(id)
}

func (m memAccounts) GetByOwner(_ context.Context, ownerID uuid.UUID, activeOnly bool) (*models.Account, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var best *models.Account
	for _, a := range m.db.st.accounts {
		if a.OwnerID != ownerID || (activeOnly && !a.IsActive) {
			continue
		}
		a := a
		if best == nil || (a.IsActive && !best.IsActive) ||
			(a.IsActive == best.IsActive && a.CreatedAt.After(best.CreatedAt)) {
			best = &a
		}
	}
	if best == nil {
		return nil, pgx.ErrNoRows
	}
	return best, nil
}

func (m memAccounts) List(_ context.Context, f models.AccountFilter) ([]*models.Account, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*models.Account
	for _, a := range m.db.st.accounts {
		if f.OwnerID != nil && a.OwnerID != *f.OwnerID {
			continue
		}
		if f.Active != nil && a.IsActive != *f.Active {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memAccounts) ListIDs(context.Context) ([]uuid.UUID, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(m.db.st.accounts))
	for id := range m.db.st.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m memAccounts) CreateTx(_ context.Context, _ pgx.Tx, a *models.Account) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if a.IsActive && m.activeExists(a.OwnerID, a.ID) {
		return &pgconn.PgError{Code: pgUniqueViolation}
	}
	m.db.st.seq++
	a.BalancePrimary = decimal.Zero
	a.BalanceSecondary = decimal.Zero
	a.CreatedAt = clockAt(m.db.st.seq)
	a.UpdatedAt = a.CreatedAt
	m.db.st.accounts[a.ID] = *a
	return nil
}

func (m memAccounts) activeExists(ownerID, except uuid.UUID) bool {
	for id, a := range m.db.st.accounts {
		if id != except && a.OwnerID == ownerID && a.IsActive {
			return true
		}
	}
	return false
}

func (m memAccounts) GetByIDTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return m.get(id)
}

func (m memAccounts) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return m.get(id)
}

func (m memAccounts) Debit(_ context.Context, _ pgx.Tx, id uuid.UUID, c models.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.st.accounts[id]
	if !ok {
		return decimal.Zero, pgx.ErrNoRows
	}
	if a.Balance(c).LessThan(amount) {
		return decimal.Zero, repository.ErrInsufficientBalance
	}
	a = withBalance(a, c, a.Balance(c).Sub(amount))
	m.db.st.accounts[id] = a
	return a.Balance(c), nil
}

func (m memAccounts) Credit(_ context.Context, _ pgx.Tx, id uuid.UUID, c models.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.st.accounts[id]
	if !ok {
		return decimal.Zero, pgx.ErrNoRows
	}
	a = withBalance(a, c, a.Balance(c).Add(amount))
	m.db.st.accounts[id] = a
	return a.Balance(c), nil
}

func (m memAccounts) SetActiveTx(_ context.Context, _ pgx.Tx, id uuid.UUID, active bool) (*models.Account, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	a, ok := m.db.st.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if active && m.activeExists(a.OwnerID, id) {
		return nil, &pgconn.PgError{Code: pgUniqueViolation}
	}
	a.IsActive = active
	m.db.st.accounts[id] = a
	return &a, nil
}

func withBalance(a models.Account, c models.Currency, v decimal.Decimal) models.Account {
	if c == models.CurrencyPCoins {
		a.BalancePrimary = v
	} else {
		a.BalanceSecondary = v
	}
	return a
}

type memTxns struct{ db *memDB }

func (m memTxns) CreateTx(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if err := m.db.failCreateTx; err != nil {
		m.db.failCreateTx = nil
		return err
	}
	m.db.st.seq++
	t.Seq = m.db.st.seq
	t.CreatedAt = clockAt(t.Seq)
	m.db.st.txns = append(m.db.st.txns, *t)
	return nil
}

func (m memTxns) ListTx(_ context.Context, _ pgx.Tx, f models.TransactionFilter) ([]*models.Transaction, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*models.Transaction
	for i := len(m.db.st.txns) - 1; i >= 0; i-- {
		t := m.db.st.txns[i]
		if f.AccountID != nil && !t.Touches(*f.AccountID) {
			continue
		}
		if f.StartDate != nil && t.CreatedAt.Before(*f.StartDate) {
			continue
		}
		if f.EndDate != nil && !t.CreatedAt.Before(*f.EndDate) {
			continue
		}
		if f.Type != nil && t.Type != *f.Type {
			continue
		}
		if f.Currency != nil && t.Currency != *f.Currency {
			continue
		}
		out = append(out, &t)
		if len(out) == repository.ClampLimit(f.Limit) {
			break
		}
	}
	return out, nil
}

func (m memTxns) ListCompletedByAccountTx(_ context.Context, _ pgx.Tx, accountID uuid.UUID) ([]*models.Transaction, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []*models.Transaction
	for _, t := range m.db.st.txns {
		if t.Status == models.TransactionCompleted && t.Touches(accountID) {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

func newMemStore() (*Store, *memDB) {
	db := newMemDB()
	return NewStore(db, memAccounts{db}, memTxns{db}, 0), db
}
