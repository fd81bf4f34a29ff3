package ledger

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/models"
)

// Request is one caller-issued ledger operation. The set of variants is
// closed: Deposit, Withdraw, TransferByIdentity and TransferByAccountID.
type Request interface {
	// Operation names the request for audit and metrics.
	Operation() string
	money() (models.Currency, decimal.Decimal)
	sealed()
}

type Deposit struct {
	AccountID   uuid.UUID
	Currency    models.Currency
	Amount      decimal.Decimal
	Description string
}

type Withdraw struct {
	AccountID   uuid.UUID
	Currency    models.Currency
	Amount      decimal.Decimal
	Description string
}

// TransferByIdentity addresses the recipient by an owner handle (email).
type TransferByIdentity struct {
	FromAccountID uuid.UUID
	ToOwner       string
	Currency      models.Currency
	Amount        decimal.Decimal
	Description   string
}

// TransferByAccountID addresses the recipient by its opaque account id.
// No identity lookup happens and nothing about the recipient is disclosed.
type TransferByAccountID struct {
	FromAccountID uuid.UUID
	ToAccountID   uuid.UUID
	Currency      models.Currency
	Amount        decimal.Decimal
	Description   string
}

func (Deposit) Operation() string             { return "deposit" }
func (Withdraw) Operation() string            { return "withdraw" }
func (TransferByIdentity) Operation() string  { return "transfer_by_identity" }
func (TransferByAccountID) Operation() string { return "transfer_by_account_id" }

func (r Deposit) money() (models.Currency, decimal.Decimal)             { return r.Currency, r.Amount }
func (r Withdraw) money() (models.Currency, decimal.Decimal)            { return r.Currency, r.Amount }
func (r TransferByIdentity) money() (models.Currency, decimal.Decimal)  { return r.Currency, r.Amount }
func (r TransferByAccountID) money() (models.Currency, decimal.Decimal) { return r.Currency, r.Amount }

func (Deposit) sealed()             {}
func (Withdraw) sealed()            {}
func (TransferByIdentity) sealed()  {}
func (TransferByAccountID) sealed() {}

type MutationKind int

const (
	MutationCredit MutationKind = iota + 1
	MutationDebit
	MutationTransfer
)

func (k MutationKind) String() string {
	switch k {
	case MutationCredit:
		return "credit"
	case MutationDebit:
		return "debit"
	case MutationTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Mutation is a resolved balance change handed to Store.ApplyMutation.
// From is set for debits and transfers, To for credits and transfers.
type Mutation struct {
	Kind        MutationKind
	From        uuid.UUID
	To          uuid.UUID
	Currency    models.Currency
	Amount      decimal.Decimal
	Description string
}

func Credit(to uuid.UUID, c models.Currency, amount decimal.Decimal, description string) Mutation {
	return Mutation{Kind: MutationCredit, To: to, Currency: c, Amount: amount, Description: description}
}

func Debit(from uuid.UUID, c models.Currency, amount decimal.Decimal, description string) Mutation {
	return Mutation{Kind: MutationDebit, From: from, Currency: c, Amount: amount, Description: description}
}

func TransferPair(from, to uuid.UUID, c models.Currency, amount decimal.Decimal, description string) Mutation {
	return Mutation{Kind: MutationTransfer, From: from, To: to, Currency: c, Amount: amount, Description: description}
}

func (m Mutation) TransactionType() models.TransactionType {
	switch m.Kind {
	case MutationCredit:
		return models.TransactionDeposit
	case MutationDebit:
		return models.TransactionWithdraw
	default:
		return models.TransactionTransfer
	}
}

// lockOrder returns the distinct accounts the mutation touches, sorted so
// concurrent mutations always lock rows in the same order.
func (m Mutation) lockOrder() []uuid.UUID {
	var ids []uuid.UUID
	if m.Kind == MutationDebit || m.Kind == MutationTransfer {
		ids = append(ids, m.From)
	}
	if (m.Kind == MutationCredit || m.Kind == MutationTransfer) && m.To != m.From {
		ids = append(ids, m.To)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (m Mutation) transaction() *models.Transaction {
	t := &models.Transaction{
		ID:          uuid.New(),
		Type:        m.TransactionType(),
		Amount:      m.Amount,
		Currency:    m.Currency,
		Status:      models.TransactionCompleted,
		Description: m.Description,
	}
	if m.Kind != MutationCredit {
		from := m.From
		t.FromAccountID = &from
	}
	if m.Kind != MutationDebit {
		to := m.To
		t.ToAccountID = &to
	}
	return t
}
