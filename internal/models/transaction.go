package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
	TransactionTransfer TransactionType = "transfer"
)

func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case TransactionDeposit, TransactionWithdraw, TransactionTransfer:
		return TransactionType(s), nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

type TransactionStatus string

// TransactionPending is part of the stored enum but nothing writes it yet;
// rows are inserted in their terminal state.
const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	Seq           int64             `json:"-"`
	Type          TransactionType   `json:"transaction_type"`
	FromAccountID *uuid.UUID        `json:"from_account_id"`
	ToAccountID   *uuid.UUID        `json:"to_account_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      Currency          `json:"currency"`
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Touches reports whether the transaction moves funds in or out of accountID.
func (t *Transaction) Touches(accountID uuid.UUID) bool {
	return (t.FromAccountID != nil && *t.FromAccountID == accountID) ||
		(t.ToAccountID != nil && *t.ToAccountID == accountID)
}

// TransactionFilter narrows listTransactions. Nil fields do not filter.
// StartDate is inclusive, EndDate exclusive.
type TransactionFilter struct {
	AccountID *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	Type      *TransactionType
	Currency  *Currency
	Limit     int
}
