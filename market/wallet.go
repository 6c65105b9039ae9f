package market

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Wallet holds cash in one or more currencies. There is at most one entry per
// currency and entries that net to zero are removed.
type Wallet struct {
	data map[Currency]decimal.Decimal
}

func NewWallet(amounts ...Amount) *Wallet {
	w := &Wallet{data: make(map[Currency]decimal.Decimal)}
	for _, a := range amounts {
		w.Deposit(a)
	}
	return w
}

// Deposit adds a to the wallet. Depositing zero is a no-op.
func (w *Wallet) Deposit(a Amount) {
	if a.IsZero() {
		return
	}
	if w.data == nil {
		w.data = make(map[Currency]decimal.Decimal)
	}
	v := w.data[a.Currency].Add(a.Value)
	if v.IsZero() {
		delete(w.data, a.Currency)
		return
	}
	w.data[a.Currency] = v
}

// Withdraw removes a from the wallet. It fails when the balance in that
// currency would become negative; the wallet is left untouched in that case.
func (w *Wallet) Withdraw(a Amount) error {
	if a.IsZero() {
		return nil
	}
	have := w.data[a.Currency]
	if have.LessThan(a.Value) {
		return fmt.Errorf("withdraw %s: %w (have %s %s)", a, ErrInsufficientFunds, a.Currency, have.StringFixed(2))
	}
	w.Deposit(a.Neg())
	return nil
}

// Get returns the balance for c, zero when there is none.
func (w *Wallet) Get(c Currency) Amount {
	if w == nil {
		return ZeroAmount(c)
	}
	return Amount{Currency: c, Value: w.data[c]}
}

// Currencies returns the currencies held, sorted by code.
func (w *Wallet) Currencies() []Currency {
	if w == nil {
		return nil
	}
	out := make([]Currency, 0, len(w.data))
	for c := range w.data {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Amounts returns one Amount per currency, sorted by currency code.
func (w *Wallet) Amounts() []Amount {
	cs := w.Currencies()
	out := make([]Amount, len(cs))
	for i, c := range cs {
		out[i] = w.Get(c)
	}
	return out
}

func (w *Wallet) IsEmpty() bool {
	return w == nil || len(w.data) == 0
}

func (w *Wallet) Clear() {
	w.data = make(map[Currency]decimal.Decimal)
}

func (w *Wallet) Clone() *Wallet {
	c := &Wallet{data: make(map[Currency]decimal.Decimal)}
	if w == nil {
		return c
	}
	for k, v := range w.data {
		c.data[k] = v
	}
	return c
}

func (w *Wallet) Equal(o *Wallet) bool {
	if w.IsEmpty() || o.IsEmpty() {
		return w.IsEmpty() && o.IsEmpty()
	}
	if len(w.data) != len(o.data) {
		return false
	}
	for k, v := range w.data {
		if ov, ok := o.data[k]; !ok || !ov.Equal(v) {
			return false
		}
	}
	return true
}

func (w *Wallet) String() string {
	parts := make([]string, 0)
	for _, a := range w.Amounts() {
		parts = append(parts, a.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
