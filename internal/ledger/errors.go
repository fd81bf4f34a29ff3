package ledger

import (
	"errors"
	"fmt"

	"github.com/privebank/ledger/internal/models"
)

var (
	ErrInvalidAmount          = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrAccountInactive        = errors.New("account is inactive")
	ErrAccountNotFound        = errors.New("account not found")
	ErrSourceAccountNotFound  = errors.New("source account not found")
	ErrRecipientNotFound      = errors.New("recipient not found")
	ErrInsufficientFunds      = errors.New("insufficient balance")
	ErrSelfTransferNotAllowed = errors.New("cannot transfer to the same account")
	ErrDuplicateAccount       = errors.New("owner already has an active account")
	ErrForbidden              = errors.New("not allowed to operate on this account")
	ErrOperationFailed        = errors.New("operation failed")
)

func insufficientFunds(c models.Currency) error {
	return fmt.Errorf("%w in %s", ErrInsufficientFunds, c)
}

// operationFailed wraps a storage or transport error. Errors that already
// carry a ledger kind pass through unchanged.
func operationFailed(err error) error {
	if err == nil || Kind(err) != KindOperationFailed {
		return err
	}
	if errors.Is(err, ErrOperationFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrOperationFailed, err)
}

const (
	KindOK                    = "ok"
	KindInvalidAmount         = "invalid_amount"
	KindInvalidCurrency       = "invalid_currency"
	KindAccountInactive       = "account_inactive"
	KindAccountNotFound       = "account_not_found"
	KindSourceAccountNotFound = "source_account_not_found"
	KindRecipientNotFound     = "recipient_not_found"
	KindInsufficientFunds     = "insufficient_funds"
	KindSelfTransfer          = "self_transfer_not_allowed"
	KindDuplicateAccount      = "duplicate_account"
	KindForbidden             = "forbidden"
	KindOperationFailed       = "operation_failed"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInvalidCurrency, KindInvalidCurrency},
	{ErrAccountInactive, KindAccountInactive},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrSourceAccountNotFound, KindSourceAccountNotFound},
	{ErrRecipientNotFound, KindRecipientNotFound},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrSelfTransferNotAllowed, KindSelfTransfer},
	{ErrDuplicateAccount, KindDuplicateAccount},
	{ErrForbidden, KindForbidden},
}

// Kind classifies err into a stable snake_case code used for metrics labels
// and API error bodies. Anything unrecognised is operation_failed.
func Kind(err error) string {
	if err == nil {
		return KindOK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindOperationFailed
}
