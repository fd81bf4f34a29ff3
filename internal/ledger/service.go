package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/metrics"
	"github.com/privebank/ledger/internal/models"
)

// IdentityResolver maps an owner-facing handle to an owner id. It is a
// read-only lookup into the identity directory.
type IdentityResolver interface {
	ResolveOwner(ctx context.Context, handle string) (ownerID uuid.UUID, found bool, err error)
}

// Auditor receives one entry per attempted operation. Record must not fail
// the caller; delivery problems are the Auditor's to handle.
type Auditor interface {
	Record(ctx context.Context, e *models.AuditEntry)
}

// Engine is the single entry point for ledger operations. It resolves
// requests to mutations, applies them through the Store and audits every
// attempt whatever the outcome.
type Engine struct {
	store    *Store
	identity IdentityResolver
	audit    Auditor
	log      *slog.Logger
	now      func() time.Time
}

func NewEngine(store *Store, identity IdentityResolver, audit Auditor, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, identity: identity, audit: audit, log: log, now: time.Now}
}

// Store exposes the underlying store for read-only administrative listings.
func (e *Engine) Store() *Store { return e.store }

func (e *Engine) Deposit(ctx context.Context, actor models.Actor, accountID uuid.UUID, c models.Currency, amount decimal.Decimal, description string) (*models.Transaction, error) {
	return e.Execute(ctx, actor, Deposit{AccountID: accountID, Currency: c, Amount: amount, Description: description})
}

func (e *Engine) Withdraw(ctx context.Context, actor models.Actor, accountID uuid.UUID, c models.Currency, amount decimal.Decimal, description string) (*models.Transaction, error) {
	return e.Execute(ctx, actor, Withdraw{AccountID: accountID, Currency: c, Amount: amount, Description: description})
}

func (e *Engine) TransferByIdentity(ctx context.Context, actor models.Actor, fromAccountID uuid.UUID, toOwner string, c models.Currency, amount decimal.Decimal, description string) (*models.Transaction, error) {
	return e.Execute(ctx, actor, TransferByIdentity{FromAccountID: fromAccountID, ToOwner: toOwner, Currency: c, Amount: amount, Description: description})
}

func (e *Engine) TransferByAccountID(ctx context.Context, actor models.Actor, fromAccountID, toAccountID uuid.UUID, c models.Currency, amount decimal.Decimal, description string) (*models.Transaction, error) {
	return e.Execute(ctx, actor, TransferByAccountID{FromAccountID: fromAccountID, ToAccountID: toAccountID, Currency: c, Amount: amount, Description: description})
}

// Execute runs one request end to end.
func (e *Engine) Execute(ctx context.Context, actor models.Actor, req Request) (*models.Transaction, error) {
	start := e.now()
	m, err := e.resolve(ctx, actor, req)
	var txn *models.Transaction
	if err == nil {
		txn, err = e.store.ApplyMutation(ctx, m)
	}

	details := requestDetails(req, m, txn)
	switch req.(type) {
	case Deposit:
		e.record(ctx, actor, models.AuditDeposit, m.To, txn, details, err)
	case Withdraw:
		e.record(ctx, actor, models.AuditWithdraw, m.From, txn, details, err)
	default:
		e.record(ctx, actor, models.AuditTransferAttempt, m.From, txn, details, err)
		if err == nil {
			e.record(ctx, actor, models.AuditTransferSuccess, m.From, txn, details, nil)
		}
	}

	e.observe(req.Operation(), err, start)
	return txn, err
}

func (e *Engine) resolve(ctx context.Context, actor models.Actor, req Request) (Mutation, error) {
	c, amount := req.money()
	var m Mutation
	switch r := req.(type) {
	case Deposit:
		m = Credit(r.AccountID, c, amount, r.Description)
	case Withdraw:
		m = Debit(r.AccountID, c, amount, r.Description)
	case TransferByAccountID:
		m = TransferPair(r.FromAccountID, r.ToAccountID, c, amount, r.Description)
	case TransferByIdentity:
		m = TransferPair(r.FromAccountID, uuid.Nil, c, amount, r.Description)
	default:
		return m, fmt.Errorf("%w: unsupported request %T", ErrOperationFailed, req)
	}

	if err := ValidateAmount(amount); err != nil {
		return m, err
	}
	if !c.Valid() {
		return m, ErrInvalidCurrency
	}

	if m.Kind == MutationCredit {
		if err := e.authorize(ctx, actor, m.To, ErrAccountNotFound); err != nil {
			return m, err
		}
	} else {
		notFound := ErrAccountNotFound
		if m.Kind == MutationTransfer {
			notFound = ErrSourceAccountNotFound
		}
		if err := e.authorize(ctx, actor, m.From, notFound); err != nil {
			return m, err
		}
	}

	if r, ok := req.(TransferByIdentity); ok {
		to, err := e.resolveRecipient(ctx, r.ToOwner)
		if err != nil {
			return m, err
		}
		m.To = to
	}
	return m, nil
}

// resolveRecipient maps an owner handle to that owner's active account.
func (e *Engine) resolveRecipient(ctx context.Context, handle string) (uuid.UUID, error) {
	ownerID, found, err := e.identity.ResolveOwner(ctx, handle)
	if err != nil {
		return uuid.Nil, operationFailed(fmt.Errorf("resolve owner: %w", err))
	}
	if !found {
		return uuid.Nil, ErrRecipientNotFound
	}
	acc, err := e.store.GetActiveAccountByOwner(ctx, ownerID)
	if errors.Is(err, ErrAccountNotFound) {
		return uuid.Nil, ErrRecipientNotFound
	}
	if err != nil {
		return uuid.Nil, err
	}
	return acc.ID, nil
}

// authorize lets admins through and otherwise requires the actor to own the account.
func (e *Engine) authorize(ctx context.Context, actor models.Actor, accountID uuid.UUID, notFound error) error {
	if actor.IsAdmin() {
		return nil
	}
	acc, err := e.store.GetAccount(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return notFound
	}
	if err != nil {
		return err
	}
	if !actor.Owns(acc.OwnerID) {
		return ErrForbidden
	}
	return nil
}

// GetAccountByOwner returns the owner's account. Non-admins may only read their own.
func (e *Engine) GetAccountByOwner(ctx context.Context, actor models.Actor, ownerID uuid.UUID) (*models.Account, error) {
	start := e.now()
	var acc *models.Account
	var err error
	if !actor.Owns(ownerID) {
		err = ErrForbidden
	} else {
		acc, err = e.store.GetAccountByOwner(ctx, ownerID)
	}

	var accountID uuid.UUID
	if acc != nil {
		accountID = acc.ID
	}
	e.record(ctx, actor, models.AuditAccountAccess, accountID, nil, marshalDetails(map[string]any{
		"resource": "account",
		"owner_id": ownerID,
	}), err)
	e.observe("get_account", err, start)
	return acc, err
}

// ListTransactions lists an account's transactions newest first.
func (e *Engine) ListTransactions(ctx context.Context, actor models.Actor, accountID uuid.UUID, f models.TransactionFilter) ([]*models.Transaction, error) {
	start := e.now()
	acc, err := e.store.GetAccount(ctx, accountID)
	if err == nil && !actor.Owns(acc.OwnerID) {
		err = ErrForbidden
	}
	var list []*models.Transaction
	if err == nil {
		f.AccountID = &accountID
		list, err = e.store.ListTransactions(ctx, f)
	}

	d := map[string]any{"resource": "transactions", "count": len(list)}
	if f.Type != nil {
		d["type"] = *f.Type
	}
	if f.Currency != nil {
		d["currency"] = *f.Currency
	}
	if f.StartDate != nil {
		d["start_date"] = f.StartDate.UTC()
	}
	if f.EndDate != nil {
		d["end_date"] = f.EndDate.UTC()
	}
	e.record(ctx, actor, models.AuditAccountAccess, accountID, nil, marshalDetails(d), err)
	e.observe("list_transactions", err, start)
	return list, err
}

// CreateAccount opens an account on behalf of ownerID. Admin only.
func (e *Engine) CreateAccount(ctx context.Context, actor models.Actor, ownerID uuid.UUID, initial models.Balances) (*models.Account, error) {
	start := e.now()
	var acc *models.Account
	var err error
	if !actor.IsAdmin() {
		err = ErrForbidden
	} else {
		acc, err = e.store.CreateAccount(ctx, ownerID, initial)
	}

	var accountID uuid.UUID
	if acc != nil {
		accountID = acc.ID
	}
	e.record(ctx, actor, models.AuditAccountCreate, accountID, nil, marshalDetails(map[string]any{
		"owner_id":                  ownerID,
		"initial_balance_primary":   initial.Primary.String(),
		"initial_balance_secondary": initial.Secondary.String(),
	}), err)
	e.observe("create_account", err, start)
	return acc, err
}

// SetAccountActive activates or deactivates an account. Admin only.
func (e *Engine) SetAccountActive(ctx context.Context, actor models.Actor, accountID uuid.UUID, active bool) (*models.Account, error) {
	start := e.now()
	var acc *models.Account
	var err error
	if !actor.IsAdmin() {
		err = ErrForbidden
	} else {
		acc, err = e.store.SetActive(ctx, accountID, active)
	}

	action, op := models.AuditAccountActivate, "activate_account"
	if !active {
		action, op = models.AuditAccountDeactivate, "deactivate_account"
	}
	e.record(ctx, actor, action, accountID, nil, marshalDetails(map[string]any{"is_active": active}), err)
	e.observe(op, err, start)
	return acc, err
}

func (e *Engine) observe(op string, err error, start time.Time) {
	kind := Kind(err)
	if kind == KindOperationFailed {
		e.log.Error("ledger operation failed", "operation", op, "error", err)
	}
	metrics.ObserveLedgerOperation(op, kind, e.now().Sub(start))
}

func (e *Engine) record(ctx context.Context, actor models.Actor, action models.AuditAction, accountID uuid.UUID, txn *models.Transaction, details json.RawMessage, err error) {
	entry := &models.AuditEntry{
		ID:         uuid.New(),
		ActionType: action,
		Success:    err == nil,
		Details:    details,
		CreatedAt:  e.now().UTC().Truncate(time.Microsecond),
	}
	entry.ActorID, entry.IPAddress, entry.UserAgent = actor.AuditFields()
	if accountID != uuid.Nil {
		id := accountID
		entry.AccountID = &id
	}
	if txn != nil {
		id := txn.ID
		entry.TransactionID = &id
	}
	if err != nil {
		msg := err.Error()
		entry.ErrorMessage = &msg
	}
	e.audit.Record(ctx, entry)
}

// requestDetails snapshots the resolved request for the audit trail.
func requestDetails(req Request, m Mutation, txn *models.Transaction) json.RawMessage {
	c, amount := req.money()
	d := map[string]any{
		"operation": req.Operation(),
		"currency":  string(c),
		"amount":    amount.String(),
	}
	switch r := req.(type) {
	case Deposit:
		d["account_id"] = r.AccountID
		d["description"] = r.Description
	case Withdraw:
		d["account_id"] = r.AccountID
		d["description"] = r.Description
	case TransferByAccountID:
		d["from_account_id"] = r.FromAccountID
		d["to_account_id"] = r.ToAccountID
		d["description"] = r.Description
	case TransferByIdentity:
		d["from_account_id"] = r.FromAccountID
		d["to_owner"] = r.ToOwner
		if m.To != uuid.Nil {
			d["to_account_id"] = m.To
		}
		d["description"] = r.Description
	}
	if txn != nil {
		d["transaction_id"] = txn.ID
	}
	return marshalDetails(d)
}

func marshalDetails(d map[string]any) json.RawMessage {
	b, err := json.Marshal(d)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
