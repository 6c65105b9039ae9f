package market

import (
	"fmt"
	"strings"
)

// Symbol is the identity of an instrument: a ticker, optionally qualified by
// the exchange it is listed on ("ASML@XAMS").
type Symbol struct {
	Ticker   string
	Exchange string
}

func ParseSymbol(s string) Symbol {
	ticker, exch, _ := strings.Cut(s, "@")
	return Symbol{Ticker: ticker, Exchange: exch}
}

func (s Symbol) String() string {
	if s.Exchange == "" {
		return s.Ticker
	}
	return s.Ticker + "@" + s.Exchange
}

// Asset is a tradable instrument. The set of implementations is closed:
// Stock, Option, Crypto and Forex.
type Asset interface {
	Symbol() string
	Currency() Currency
	Exchange() Exchange

	// Value returns size*price expressed in the asset currency.
	Value(size Size, price float64) Amount

	// Serialize returns the canonical "type;symbol;currency" form.
	Serialize() string

	assetType() string
}

func value(c Currency, size Size, price float64) Amount {
	return Amount{Currency: c, Value: size.Mul(price).Decimal()}
}

func serialize(a Asset) string {
	return a.assetType() + ";" + a.Symbol() + ";" + a.Currency().Code
}

type Stock struct {
	Sym  Symbol
	Curr Currency
}

func NewStock(symbol string, c Currency) Stock {
	return Stock{Sym: ParseSymbol(symbol), Curr: c}
}

func (s Stock) Symbol() string { return s.Sym.String() }
func (s Stock) Currency() Currency { return s.Curr }
func (s Stock) Exchange() Exchange { return GetExchange(s.Sym.Exchange) }
func (s Stock) Value(size Size, price float64) Amount { return value(s.Curr, size, price) }
func (s Stock) Serialize() string { return serialize(s) }
func (s Stock) String() string { return "Stock(" + s.Symbol() + ")" }
func (Stock) assetType() string { return "Stock" }

// Option is identified by its full contract symbol, e.g. an OCC symbol.
type Option struct {
	Sym  Symbol
	Curr Currency
}

func NewOption(symbol string, c Currency) Option {
	return Option{Sym: ParseSymbol(symbol), Curr: c}
}

func (o Option) Symbol() string { return o.Sym.String() }
func (o Option) Currency() Currency { return o.Curr }
func (o Option) Exchange() Exchange { return GetExchange(o.Sym.Exchange) }
func (o Option) Value(size Size, price float64) Amount { return value(o.Curr, size, price) }
func (o Option) Serialize() string { return serialize(o) }
func (o Option) String() string { return "Option(" + o.Symbol() + ")" }
func (Option) assetType() string { return "Option" }

// Crypto is a crypto pair such as "BTC-USDT"; the quote side is the currency.
type Crypto struct {
	Sym  string
	Curr Currency
}

func NewCrypto(symbol string, c Currency) Crypto {
	return Crypto{Sym: symbol, Curr: c}
}

// CryptoPair builds a Crypto from a "BASE-QUOTE" or "BASE/QUOTE" pair.
func CryptoPair(pair string) (Crypto, error) {
	base, quote, ok := splitPair(pair)
	if !ok {
		return Crypto{}, fmt.Errorf("crypto pair %q: need BASE-QUOTE", pair)
	}
	return Crypto{Sym: base + "-" + quote, Curr: CurrencyOf(quote)}, nil
}

func (c Crypto) Symbol() string { return c.Sym }
func (c Crypto) Currency() Currency { return c.Curr }
func (c Crypto) Exchange() Exchange { return GetExchange("CRYPTO") }
func (c Crypto) Value(size Size, price float64) Amount { return value(c.Curr, size, price) }
func (c Crypto) Serialize() string { return serialize(c) }
func (c Crypto) String() string { return "Crypto(" + c.Sym + ")" }
func (Crypto) assetType() string { return "Crypto" }

// Forex is a currency pair "BASE/QUOTE"; its currency is the quote currency.
type Forex struct {
	Sym  string
	Curr Currency
}

func ForexPair(pair string) (Forex, error) {
	base, quote, ok := splitPair(pair)
	if !ok {
		return Forex{}, fmt.Errorf("forex pair %q: need BASE/QUOTE", pair)
	}
	return Forex{Sym: base + "/" + quote, Curr: CurrencyOf(quote)}, nil
}

func (f Forex) Symbol() string { return f.Sym }
func (f Forex) Currency() Currency { return f.Curr }
func (f Forex) Exchange() Exchange { return GetExchange("FOREX") }
func (f Forex) Value(size Size, price float64) Amount { return value(f.Curr, size, price) }
func (f Forex) Serialize() string { return serialize(f) }
func (f Forex) String() string { return "Forex(" + f.Sym + ")" }
func (Forex) assetType() string { return "Forex" }

// Base returns the base currency of the pair.
func (f Forex) Base() Currency {
	base, _, _ := splitPair(f.Sym)
	return CurrencyOf(base)
}

func splitPair(pair string) (string, string, bool) {
	for _, sep := range []string{"/", "-", "_"} {
		if base, quote, ok := strings.Cut(pair, sep); ok && base != "" && quote != "" {
			return strings.ToUpper(base), strings.ToUpper(quote), true
		}
	}
	return "", "", false
}

// DeserializeAsset parses the "type;symbol;currency" form written by
// Asset.Serialize.
func DeserializeAsset(s string) (Asset, error) {
	parts := strings.Split(s, ";")
	if len(parts) != 3 {
		return nil, fmt.Errorf("deserialize asset %q: need type;symbol;currency", s)
	}
	typ, sym, cur := parts[0], parts[1], CurrencyOf(parts[2])
	if sym == "" || cur.Code == "" {
		return nil, fmt.Errorf("deserialize asset %q: empty symbol or currency", s)
	}
	switch typ {
	case "Stock":
		return Stock{Sym: ParseSymbol(sym), Curr: cur}, nil
	case "Option":
		return Option{Sym: ParseSymbol(sym), Curr: cur}, nil
	case "Crypto":
		return Crypto{Sym: sym, Curr: cur}, nil
	case "Forex":
		return Forex{Sym: sym, Curr: cur}, nil
	default:
		return nil, fmt.Errorf("deserialize asset %q: %w %q", s, ErrUnknownAsset, typ)
	}
}

// ParseAsset accepts a serialized asset or a plain ticker, which becomes a
// Stock in currency c.
func ParseAsset(s string, c Currency) (Asset, error) {
	if s == "" {
		return nil, fmt.Errorf("empty asset")
	}
	if strings.Contains(s, ";") {
		return DeserializeAsset(s)
	}
	return NewStock(s, c), nil
}
