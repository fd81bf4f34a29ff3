package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/models"
)

// Replay folds completed transactions into the balances they imply for
// accountID, starting from zero. Order does not matter for the result.
func Replay(accountID uuid.UUID, txns []*models.Transaction) models.Balances {
	b := models.Balances{Primary: decimal.Zero, Secondary: decimal.Zero}
	for _, t := range txns {
		if t.Status != models.TransactionCompleted {
			continue
		}
		if t.ToAccountID != nil && *t.ToAccountID == accountID {
			b = b.Add(t.Currency, t.Amount)
		}
		if t.FromAccountID != nil && *t.FromAccountID == accountID {
			b = b.Add(t.Currency, t.Amount.Neg())
		}
	}
	return b
}

// ReconcileReport compares stored balances with the replayed history.
type ReconcileReport struct {
	AccountID    uuid.UUID       `json:"account_id"`
	Stored       models.Balances `json:"stored"`
	Replayed     models.Balances `json:"replayed"`
	Transactions int             `json:"transactions"`
	Consistent   bool            `json:"consistent"`
}

func reconcile(acc *models.Account, txns []*models.Transaction) *ReconcileReport {
	stored := models.Balances{Primary: acc.BalancePrimary, Secondary: acc.BalanceSecondary}
	replayed := Replay(acc.ID, txns)
	return &ReconcileReport{
		AccountID:    acc.ID,
		Stored:       stored,
		Replayed:     replayed,
		Transactions: len(txns),
		Consistent:   stored.Equal(replayed),
	}
}
