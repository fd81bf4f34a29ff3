package ledger

import (
	"testing"

	"github.com/google/uuid"

	"github.com/privebank/ledger/internal/models"
)

func TestReplay(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ptr := func(id uuid.UUID) *uuid.UUID { return &id }

	txns := []*models.Transaction{
		{Type: models.TransactionDeposit, ToAccountID: ptr(a), Amount: d("100.00"), Currency: models.CurrencyPCoins, Status: models.TransactionCompleted},
		{Type: models.TransactionDeposit, ToAccountID: ptr(a), Amount: d("9.99"), Currency: models.CurrencyBRL, Status: models.TransactionCompleted},
		{Type: models.TransactionTransfer, FromAccountID: ptr(a), ToAccountID: ptr(b), Amount: d("40"), Currency: models.CurrencyPCoins, Status: models.TransactionCompleted},
		{Type: models.TransactionWithdraw, FromAccountID: ptr(a), Amount: d("0.99"), Currency: models.CurrencyBRL, Status: models.TransactionCompleted},
		// Non-terminal and failed rows never move money.
		{Type: models.TransactionDeposit, ToAccountID: ptr(a), Amount: d("500"), Currency: models.CurrencyPCoins, Status: models.TransactionPending},
		{Type: models.TransactionDeposit, ToAccountID: ptr(a), Amount: d("500"), Currency: models.CurrencyPCoins, Status: models.TransactionFailed},
	}

	gotA := Replay(a, txns)
	if !gotA.Equal(bal("60", "9")) {
		t.Errorf("replay A: got %+v", gotA)
	}
	gotB := Replay(b, txns)
	if !gotB.Equal(bal("40", "0")) {
		t.Errorf("replay B: got %+v", gotB)
	}
	if empty := Replay(uuid.New(), txns); !empty.Equal(bal("0", "0")) {
		t.Errorf("unrelated account should replay to zero, got %+v", empty)
	}
}
