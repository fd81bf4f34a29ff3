package ledger

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/models"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func clockAt(seq int64) time.Time { return epoch.Add(time.Duration(seq) * time.Second) }

type memAuditor struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
}

func (m *memAuditor) Record(_ context.Context, e *models.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries = append(m.entries, &cp)
}

func (m *memAuditor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// since returns the entries recorded after the first n.
func (m *memAuditor) since(n int) []*models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditEntry(nil), m.entries[n:]...)
}

type memIdentity map[string]uuid.UUID

func (m memIdentity) ResolveOwner(_ context.Context, handle string) (uuid.UUID, bool, error) {
	id, ok := m[strings.ToLower(handle)]
	return id, ok, nil
}

type fixture struct {
	engine *Engine
	db     *memDB
	audit  *memAuditor
	ids    memIdentity
	admin  models.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, db := newMemStore()
	f := &fixture{
		db:    db,
		audit: &memAuditor{},
		ids:   memIdentity{},
		admin: models.Actor{UserID: uuid.New(), Role: models.RoleAdmin, IP: "10.0.0.1"},
	}
	f.engine = NewEngine(store, f.ids, f.audit, nil)
	return f
}

// openAccount creates a user with an account and returns the owner actor and account id.
func (f *fixture) openAccount(t *testing.T, email string, initial models.Balances) (models.Actor, uuid.UUID) {
	t.Helper()
	owner := models.Actor{UserID: uuid.New(), Role: models.RoleUser}
	f.ids[email] = owner.UserID
	acc, err := f.engine.CreateAccount(context.Background(), f.admin, owner.UserID, initial)
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", email, err)
	}
	return owner, acc.ID
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bal(primary, secondary string) models.Balances {
	return models.Balances{Primary: d(primary), Secondary: d(secondary)}
}

func assertBalance(t *testing.T, db *memDB, id uuid.UUID, c models.Currency, want string) {
	t.Helper()
	acc := db.account(id)
	if got := acc.Balance(c); !got.Equal(d(want)) {
		t.Errorf("account %s %s balance: got %s, want %s", id, c, got, want)
	}
}

func countType(txns []models.Transaction, typ models.TransactionType) int {
	n := 0
	for _, t := range txns {
		if t.Type == typ {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// End-to-end scenarios
// ---------------------------------------------------------------------------

func TestScenarios(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ownerA, a := f.openAccount(t, "a@prive.test", bal("0", "0"))
	_, b := f.openAccount(t, "b@prive.test", bal("0", "0"))

	// 1. Deposit 100.00 PCoins into A.
	txn, err := f.engine.Deposit(ctx, ownerA, a, models.CurrencyPCoins, d("100.00"), "top up")
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	assertBalance(t, f.db, a, models.CurrencyPCoins, "100.00")
	if txn.Type != models.TransactionDeposit || txn.Status != models.TransactionCompleted || !txn.Amount.Equal(d("100")) {
		t.Errorf("unexpected deposit transaction: %+v", txn)
	}
	if txn.FromAccountID != nil || txn.ToAccountID == nil || *txn.ToAccountID != a {
		t.Errorf("deposit must have from=nil and to=A, got from=%v to=%v", txn.FromAccountID, txn.ToAccountID)
	}
	if n := countType(f.db.transactions(), models.TransactionDeposit); n != 1 {
		t.Errorf("deposit rows: got %d, want 1", n)
	}

	// 2. Transfer 40.00 PCoins A -> B by account id.
	auditBefore := f.audit.count()
	if _, err := f.engine.TransferByAccountID(ctx, ownerA, a, b, models.CurrencyPCoins, d("40.00"), "rent"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	assertBalance(t, f.db, a, models.CurrencyPCoins, "60.00")
	assertBalance(t, f.db, b, models.CurrencyPCoins, "40.00")
	if n := countType(f.db.transactions(), models.TransactionTransfer); n != 1 {
		t.Errorf("transfer rows: got %d, want 1", n)
	}
	entries := f.audit.since(auditBefore)
	if len(entries) != 2 || entries[0].ActionType != models.AuditTransferAttempt || entries[1].ActionType != models.AuditTransferSuccess {
		t.Fatalf("expected transfer_attempt + transfer_success, got %d entries", len(entries))
	}
	for _, e := range entries {
		if !e.Success || e.ErrorMessage != nil || e.TransactionID == nil {
			t.Errorf("success entry malformed: %+v", e)
		}
	}

	// 3. Transfer 1000.00 fails with InsufficientFunds and changes nothing.
	rowsBefore := len(f.db.transactions())
	auditBefore = f.audit.count()
	_, err = f.engine.TransferByAccountID(ctx, ownerA, a, b, models.CurrencyPCoins, d("1000.00"), "")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if !strings.Contains(err.Error(), "PCoins") {
		t.Errorf("error should name the currency, got %q", err)
	}
	assertBalance(t, f.db, a, models.CurrencyPCoins, "60.00")
	assertBalance(t, f.db, b, models.CurrencyPCoins, "40.00")
	if n := len(f.db.transactions()); n != rowsBefore {
		t.Errorf("failed transfer must not write a transaction row: %d -> %d", rowsBefore, n)
	}
	entries = f.audit.since(auditBefore)
	if len(entries) != 1 || entries[0].Success || entries[0].ErrorMessage == nil {
		t.Fatalf("expected one failed audit entry, got %+v", entries)
	}

	// 4. Deactivate B; deposit to B fails with AccountInactive.
	if _, err := f.engine.SetAccountActive(ctx, f.admin, b, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := f.engine.Deposit(ctx, f.admin, b, models.CurrencyPCoins, d("5"), ""); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	assertBalance(t, f.db, b, models.CurrencyPCoins, "40.00")

	// 5. BRL transfer leaves PCoins untouched.
	if _, err := f.engine.SetAccountActive(ctx, f.admin, b, true); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if _, err := f.engine.Deposit(ctx, ownerA, a, models.CurrencyBRL, d("25.50"), ""); err != nil {
		t.Fatalf("deposit BRL: %v", err)
	}
	if _, err := f.engine.TransferByAccountID(ctx, ownerA, a, b, models.CurrencyBRL, d("10.00"), ""); err != nil {
		t.Fatalf("transfer BRL: %v", err)
	}
	assertBalance(t, f.db, a, models.CurrencyPCoins, "60.00")
	assertBalance(t, f.db, b, models.CurrencyPCoins, "40.00")
	assertBalance(t, f.db, a, models.CurrencyBRL, "15.50")
	assertBalance(t, f.db, b, models.CurrencyBRL, "10.00")
}

// ---------------------------------------------------------------------------
// Concurrency: N withdrawals of A against balance B give floor(B/A) successes.
// ---------------------------------------------------------------------------

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	owner, acc := f.openAccount(t, "c@prive.test", bal("100.00", "0"))

	const n = 20
	amount := d("15.00")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, insufficient := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Withdraw(context.Background(), owner, acc, models.CurrencyPCoins, amount, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 6 {
		t.Errorf("successes: got %d, want 6", successes)
	}
	if insufficient != n-6 {
		t.Errorf("insufficient: got %d, want %d", insufficient, n-6)
	}
	assertBalance(t, f.db, acc, models.CurrencyPCoins, "10.00")
}

func TestConcurrentOpposingTransfersConserveFunds(t *testing.T) {
	f := newFixture(t)
	ownerA, a := f.openAccount(t, "a@prive.test", bal("50", "0"))
	ownerB, b := f.openAccount(t, "b@prive.test", bal("50", "0"))

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.engine.TransferByAccountID(context.Background(), ownerA, a, b, models.CurrencyPCoins, d("3"), "")
		}()
		go func() {
			defer wg.Done()
			_, _ = f.engine.TransferByAccountID(context.Background(), ownerB, b, a, models.CurrencyPCoins, d("2"), "")
		}()
	}
	wg.Wait()

	accA, accB := f.db.account(a), f.db.account(b)
	if total := accA.BalancePrimary.Add(accB.BalancePrimary); !total.Equal(d("100")) {
		t.Errorf("conservation violated: total %s", total)
	}
	if accA.BalancePrimary.IsNegative() || accB.BalancePrimary.IsNegative() {
		t.Errorf("negative balance: A=%s B=%s", accA.BalancePrimary, accB.BalancePrimary)
	}
}

// ---------------------------------------------------------------------------
// Property: random operations keep balances non-negative, conserve funds on
// transfers and replay to the stored balance.
// ---------------------------------------------------------------------------

func TestRandomOperationsKeepLedgerReconstructable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))

	var owners []models.Actor
	var accounts []uuid.UUID
	for _, email := range []string{"p@x", "q@x", "r@x", "s@x"} {
		o, id := f.openAccount(t, email, bal("20.00", "5.00"))
		owners = append(owners, o)
		accounts = append(accounts, id)
	}

	for i := 0; i < 300; i++ {
		k := rng.IntN(len(accounts))
		c := models.Currencies[rng.IntN(2)]
		amount := decimal.New(int64(rng.IntN(2000)+1), -2)
		switch rng.IntN(3) {
		case 0:
			_, _ = f.engine.Deposit(ctx, owners[k], accounts[k], c, amount, "")
		case 1:
			_, _ = f.engine.Withdraw(ctx, owners[k], accounts[k], c, amount, "")
		default:
			j := rng.IntN(len(accounts))
			from, to := f.db.account(accounts[k]), f.db.account(accounts[j])
			before := from.Balance(c).Add(to.Balance(c))
			_, err := f.engine.TransferByAccountID(ctx, owners[k], accounts[k], accounts[j], c, amount, "")
			from, to = f.db.account(accounts[k]), f.db.account(accounts[j])
			after := from.Balance(c).Add(to.Balance(c))
			if err == nil && k != j && !before.Equal(after) {
				t.Fatalf("transfer %d not conservative: %s -> %s", i, before, after)
			}
		}
	}

	for _, id := range accounts {
		acc := f.db.account(id)
		if acc.BalancePrimary.IsNegative() || acc.BalanceSecondary.IsNegative() {
			t.Errorf("account %s went negative: %s / %s", id, acc.BalancePrimary, acc.BalanceSecondary)
		}
		report, err := f.engine.Store().Reconcile(ctx, id)
		if err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if !report.Consistent {
			t.Errorf("account %s: stored %+v, replayed %+v", id, report.Stored, report.Replayed)
		}
	}
}

// ---------------------------------------------------------------------------
// Boundaries
// ---------------------------------------------------------------------------

func TestTransferBoundaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ownerA, a := f.openAccount(t, "a@prive.test", bal("50", "0"))
	_, b := f.openAccount(t, "b@prive.test", bal("0", "0"))

	t.Run("zero amount", func(t *testing.T) {
		begins := f.db.beginCount()
		_, err := f.engine.TransferByAccountID(ctx, ownerA, a, b, models.CurrencyPCoins, decimal.Zero, "")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
		if f.db.beginCount() != begins {
			t.Error("invalid amount must be rejected before opening a transaction")
		}
	})

	t.Run("negative and sub-cent amounts", func(t *testing.T) {
		for _, s := range []string{"-1", "0.001", "10.555"} {
			if _, err := f.engine.Deposit(ctx, ownerA, a, models.CurrencyPCoins, d(s), ""); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("amount %s: expected ErrInvalidAmount, got %v", s, err)
			}
		}
	})

	t.Run("unknown currency", func(t *testing.T) {
		_, err := f.engine.Deposit(ctx, ownerA, a, models.Currency("USD"), d("1"), "")
		if !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("expected ErrInvalidCurrency, got %v", err)
		}
	})

	t.Run("self transfer", func(t *testing.T) {
		_, err := f.engine.TransferByAccountID(ctx, ownerA, a, a, models.CurrencyPCoins, d("1"), "")
		if !errors.Is(err, ErrSelfTransferNotAllowed) {
			t.Fatalf("expected ErrSelfTransferNotAllowed, got %v", err)
		}
		assertBalance(t, f.db, a, models.CurrencyPCoins, "50")
	})

	t.Run("recipient deactivated", func(t *testing.T) {
		if _, err := f.engine.SetAccountActive(ctx, f.admin, b, false); err != nil {
			t.Fatal(err)
		}
		defer f.engine.SetAccountActive(ctx, f.admin, b, true)
		_, err := f.engine.TransferByAccountID(ctx, ownerA, a, b, models.CurrencyPCoins, d("1"), "")
		if !errors.Is(err, ErrAccountInactive) {
			t.Fatalf("expected ErrAccountInactive, got %v", err)
		}
		assertBalance(t, f.db, a, models.CurrencyPCoins, "50")
	})

	t.Run("unknown recipient id", func(t *testing.T) {
		_, err := f.engine.TransferByAccountID(ctx, ownerA, a, uuid.New(), models.CurrencyPCoins, d("1"), "")
		if !errors.Is(err, ErrRecipientNotFound) {
			t.Fatalf("expected ErrRecipientNotFound, got %v", err)
		}
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := f.engine.TransferByAccountID(ctx, f.admin, uuid.New(), b, models.CurrencyPCoins, d("1"), "")
		if !errors.Is(err, ErrSourceAccountNotFound) {
			t.Fatalf("expected ErrSourceAccountNotFound, got %v", err)
		}
		_, err = f.engine.TransferByAccountID(ctx, ownerA, uuid.New(), b, models.CurrencyPCoins, d("1"), "")
		if !errors.Is(err, ErrSourceAccountNotFound) {
			t.Fatalf("non-admin: expected ErrSourceAccountNotFound, got %v", err)
		}
	})

	t.Run("withdraw entire balance", func(t *testing.T) {
		if _, err := f.engine.Withdraw(ctx, ownerA, a, models.CurrencyPCoins, d("50"), ""); err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		assertBalance(t, f.db, a, models.CurrencyPCoins, "0")
	})

	t.Run("withdraw from empty balance", func(t *testing.T) {
		_, err := f.engine.Withdraw(ctx, ownerA, a, models.CurrencyPCoins, d("0.01"), "")
		if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("expected ErrInsufficientFunds, got %v", err)
		}
	})
}

func TestDepositThenWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, acc := f.openAccount(t, "rt@prive.test", bal("0.10", "3.33"))

	for _, x := range []string{"0.01", "0.10", "0.20", "1234.56", "33.33"} {
		before := f.db.account(acc)
		if _, err := f.engine.Deposit(ctx, owner, acc, models.CurrencyBRL, d(x), ""); err != nil {
			t.Fatal(err)
		}
		if _, err := f.engine.Withdraw(ctx, owner, acc, models.CurrencyBRL, d(x), ""); err != nil {
			t.Fatal(err)
		}
		after := f.db.account(acc)
		if !after.BalanceSecondary.Equal(before.BalanceSecondary) || !after.BalancePrimary.Equal(before.BalancePrimary) {
			t.Errorf("round trip of %s drifted: %s -> %s", x, before.BalanceSecondary, after.BalanceSecondary)
		}
	}
}

// ---------------------------------------------------------------------------
// Identity transfers
// ---------------------------------------------------------------------------

func TestTransferByIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ownerA, a := f.openAccount(t, "alice@prive.test", bal("30", "0"))
	_, b := f.openAccount(t, "bob@prive.test", bal("0", "0"))

	txn, err := f.engine.TransferByIdentity(ctx, ownerA, a, "Bob@Prive.test", models.CurrencyPCoins, d("12.5"), "dinner")
	if err != nil {
		t.Fatalf("TransferByIdentity: %v", err)
	}
	if txn.ToAccountID == nil || *txn.ToAccountID != b {
		t.Errorf("resolved to the wrong account: %v", txn.ToAccountID)
	}
	assertBalance(t, f.db, b, models.CurrencyPCoins, "12.5")

	if _, err := f.engine.TransferByIdentity(ctx, ownerA, a, "nobody@prive.test", models.CurrencyPCoins, d("1"), ""); !errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("unknown handle: expected ErrRecipientNotFound, got %v", err)
	}

	// A registered user without an active account is not a valid recipient.
	f.ids["carol@prive.test"] = uuid.New()
	if _, err := f.engine.TransferByIdentity(ctx, ownerA, a, "carol@prive.test", models.CurrencyPCoins, d("1"), ""); !errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("no account: expected ErrRecipientNotFound, got %v", err)
	}

	if _, err := f.engine.SetAccountActive(ctx, f.admin, b, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.TransferByIdentity(ctx, ownerA, a, "bob@prive.test", models.CurrencyPCoins, d("1"), ""); !errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("inactive account: expected ErrRecipientNotFound, got %v", err)
	}
	assertBalance(t, f.db, a, models.CurrencyPCoins, "17.5")
}

// ---------------------------------------------------------------------------
// Authorization, atomicity and audit
// ---------------------------------------------------------------------------

func TestNonOwnerIsForbiddenAndAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, a := f.openAccount(t, "a@prive.test", bal("10", "0"))
	mallory, _ := f.openAccount(t, "m@prive.test", bal("0", "0"))

	before := f.audit.count()
	_, err := f.engine.Withdraw(ctx, mallory, a, models.CurrencyPCoins, d("10"), "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	assertBalance(t, f.db, a, models.CurrencyPCoins, "10")

	entries := f.audit.since(before)
	if len(entries) != 1 || entries[0].ActionType != models.AuditWithdraw || entries[0].Success {
		t.Fatalf("expected one failed withdraw audit, got %+v", entries)
	}
	if entries[0].ActorID == nil || *entries[0].ActorID != mallory.UserID {
		t.Error("audit entry should carry the actor")
	}

	if _, err := f.engine.GetAccountByOwner(ctx, mallory, f.ids["a@prive.test"]); !errors.Is(err, ErrForbidden) {
		t.Errorf("reading another owner's account: expected ErrForbidden, got %v", err)
	}
	if _, err := f.engine.ListTransactions(ctx, mallory, a, models.TransactionFilter{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("listing another owner's transactions: expected ErrForbidden, got %v", err)
	}
	if _, err := f.engine.CreateAccount(ctx, mallory, mallory.UserID, bal("1000", "0")); !errors.Is(err, ErrForbidden) {
		t.Errorf("non-admin CreateAccount: expected ErrForbidden, got %v", err)
	}
}

func TestStorageFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ownerA, a := f.openAccount(t, "a@prive.test", bal("80", "0"))
	_, b := f.openAccount(t, "b@prive.test", bal("0", "0"))
	rows := len(f.db.transactions())

	f.db.mu.Lock()
	f.db.failCreateTx = errors.New("connection reset by peer")
	f.db.mu.Unlock()

	before := f.audit.count()
	_, err := f.engine.TransferByAccountID(ctx, ownerA, a, b, models.CurrencyPCoins, d("30"), "")
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
	if Kind(err) != KindOperationFailed {
		t.Errorf("Kind: got %s", Kind(err))
	}
	assertBalance(t, f.db, a, models.CurrencyPCoins, "80")
	assertBalance(t, f.db, b, models.CurrencyPCoins, "0")
	if n := len(f.db.transactions()); n != rows {
		t.Errorf("transaction rows changed: %d -> %d", rows, n)
	}
	entries := f.audit.since(before)
	if len(entries) != 1 || entries[0].Success {
		t.Errorf("expected one failed audit entry, got %d", len(entries))
	}
}

func TestAccountAccessIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, a := f.openAccount(t, "a@prive.test", bal("1", "2"))

	before := f.audit.count()
	acc, err := f.engine.GetAccountByOwner(ctx, owner, owner.UserID)
	if err != nil {
		t.Fatalf("GetAccountByOwner: %v", err)
	}
	if acc.ID != a || !acc.BalanceSecondary.Equal(d("2")) {
		t.Errorf("unexpected account: %+v", acc)
	}
	entries := f.audit.since(before)
	if len(entries) != 1 || entries[0].ActionType != models.AuditAccountAccess || !entries[0].Success {
		t.Fatalf("expected one account_access entry, got %+v", entries)
	}

	if _, err := f.engine.GetAccountByOwner(ctx, f.admin, uuid.New()); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Listing
// ---------------------------------------------------------------------------

func TestListTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, a := f.openAccount(t, "a@prive.test", bal("10", "0"))
	_, b := f.openAccount(t, "b@prive.test", bal("0", "0"))

	_, _ = f.engine.Deposit(ctx, owner, a, models.CurrencyBRL, d("7"), "")
	_, _ = f.engine.TransferByAccountID(ctx, owner, a, b, models.CurrencyPCoins, d("4"), "")
	_, _ = f.engine.Withdraw(ctx, owner, a, models.CurrencyBRL, d("2"), "")

	first, err := f.engine.ListTransactions(ctx, owner, a, models.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	// initial balance deposit + deposit + transfer + withdraw
	if len(first) != 4 {
		t.Fatalf("got %d transactions, want 4", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].Seq < first[i].Seq {
			t.Fatal("transactions must be newest first")
		}
	}
	if first[0].Type != models.TransactionWithdraw {
		t.Errorf("newest should be the withdraw, got %s", first[0].Type)
	}

	second, err := f.engine.ListTransactions(ctx, owner, a, models.TransactionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != len(first) {
		t.Fatalf("repeat listing differs in length")
	}
	for i := range first {
		if first[i].ID != second[i].ID || !first[i].Amount.Equal(second[i].Amount) {
			t.Errorf("repeat listing differs at %d", i)
		}
	}

	brl := models.CurrencyBRL
	onlyBRL, err := f.engine.ListTransactions(ctx, owner, a, models.TransactionFilter{Currency: &brl})
	if err != nil {
		t.Fatal(err)
	}
	if len(onlyBRL) != 2 {
		t.Errorf("BRL filter: got %d, want 2", len(onlyBRL))
	}

	transfer := models.TransactionTransfer
	onlyTransfers, _ := f.engine.ListTransactions(ctx, owner, a, models.TransactionFilter{Type: &transfer})
	if len(onlyTransfers) != 1 {
		t.Errorf("type filter: got %d, want 1", len(onlyTransfers))
	}

	if _, err := f.engine.ListTransactions(ctx, f.admin, uuid.New(), models.TransactionFilter{}); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}
