package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is one of the two balance counters an account holds. The two are
// never converted into one another.
type Currency string

const (
	CurrencyPCoins Currency = "PCoins"
	CurrencyBRL    Currency = "BRL"
)

// Currencies lists every supported currency in display order.
var Currencies = []Currency{CurrencyPCoins, CurrencyBRL}

// ParseCurrency accepts the exact enum spelling only.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(s) {
	case CurrencyPCoins:
		return CurrencyPCoins, nil
	case CurrencyBRL:
		return CurrencyBRL, nil
	default:
		return "", fmt.Errorf("unknown currency %q", s)
	}
}

func (c Currency) Valid() bool {
	_, err := ParseCurrency(string(c))
	return err == nil
}

type Account struct {
	ID               uuid.UUID       `json:"id"`
	OwnerID          uuid.UUID       `json:"owner_id"`
	BalancePrimary   decimal.Decimal `json:"balance_primary"`
	BalanceSecondary decimal.Decimal `json:"balance_secondary"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Balance returns the counter for c. Unknown currencies read as zero.
func (a *Account) Balance(c Currency) decimal.Decimal {
	switch c {
	case CurrencyPCoins:
		return a.BalancePrimary
	case CurrencyBRL:
		return a.BalanceSecondary
	default:
		return decimal.Zero
	}
}

// Balances is a pair of counters, used for initial balances and replay results.
type Balances struct {
	Primary   decimal.Decimal `json:"balance_primary"`
	Secondary decimal.Decimal `json:"balance_secondary"`
}

func (b Balances) Get(c Currency) decimal.Decimal {
	if c == CurrencyBRL {
		return b.Secondary
	}
	if c == CurrencyPCoins {
		return b.Primary
	}
	return decimal.Zero
}

// Add returns b with delta applied to the counter for c.
func (b Balances) Add(c Currency, delta decimal.Decimal) Balances {
	switch c {
	case CurrencyPCoins:
		b.Primary = b.Primary.Add(delta)
	case CurrencyBRL:
		b.Secondary = b.Secondary.Add(delta)
	}
	return b
}

func (b Balances) Equal(o Balances) bool {
	return b.Primary.Equal(o.Primary) && b.Secondary.Equal(o.Secondary)
}

// AccountFilter narrows administrative account listings.
type AccountFilter struct {
	OwnerID *uuid.UUID
	Active  *bool
	Limit   int
}
