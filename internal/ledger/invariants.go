package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/privebank/ledger/internal/models"
)

// maxAmount is the largest value NUMERIC(18,2) can hold.
var maxAmount = decimal.RequireFromString("9999999999999999.99")

// ValidateAmount accepts strictly positive amounts with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(2)) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(maxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// Check decides whether m is admissible against the given snapshots. from is
// the debited account (nil for credits), to the credited one (nil for debits).
// Rules short-circuit in order: amount, currency, inactive accounts,
// insufficient funds, self transfer. Check has no side effects; callers run
// it on rows locked in the same transaction as the write.
func Check(m Mutation, from, to *models.Account) error {
	if err := ValidateAmount(m.Amount); err != nil {
		return err
	}
	if !m.Currency.Valid() {
		return ErrInvalidCurrency
	}

	debits := m.Kind == MutationDebit || m.Kind == MutationTransfer
	credits := m.Kind == MutationCredit || m.Kind == MutationTransfer

	if debits && from != nil && !from.IsActive {
		return ErrAccountInactive
	}
	if credits && to != nil && !to.IsActive {
		return ErrAccountInactive
	}
	if debits && from != nil && from.Balance(m.Currency).LessThan(m.Amount) {
		return insufficientFunds(m.Currency)
	}
	if m.Kind == MutationTransfer && m.From == m.To {
		return ErrSelfTransferNotAllowed
	}
	return nil
}
