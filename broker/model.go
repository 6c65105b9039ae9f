package broker

import (
	"fmt"

	"github.com/rustyeddy/tradecore/market"
)

// AccountModel derives buying power from the rest of the account after every
// sync.
type AccountModel interface {
	UpdateAccount(a *Account) error
}

// CashAccount allows no leverage: buying power is cash less a reserved
// minimum, both in the base currency.
type CashAccount struct {
	Minimum float64
}

func (m CashAccount) UpdateAccount(a *Account) error {
	cash, err := a.ConvertWallet(a.Cash)
	if err != nil {
		return fmt.Errorf("cash account: %w", err)
	}
	bp, err := cash.Sub(market.NewAmount(a.BaseCurrency, m.Minimum))
	if err != nil {
		return fmt.Errorf("cash account: %w", err)
	}
	a.BuyingPower = bp
	return nil
}
