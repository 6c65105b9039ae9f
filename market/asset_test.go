package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetSerializeRoundTrip(t *testing.T) {
	t.Parallel()

	fx, err := ForexPair("EUR/USD")
	require.NoError(t, err)
	btc, err := CryptoPair("btc-usdt")
	require.NoError(t, err)

	tests := []struct {
		asset Asset
		want  string
	}{
		{NewStock("AAPL", USD), "Stock;AAPL;USD"},
		{NewStock("ASML@XAMS", EUR), "Stock;ASML@XAMS;EUR"},
		{NewOption("SPY240119C00450000", USD), "Option;SPY240119C00450000;USD"},
		{btc, "Crypto;BTC-USDT;USDT"},
		{fx, "Forex;EUR/USD;USD"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.asset.Serialize())
			back, err := DeserializeAsset(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.asset, back)
		})
	}
}

func TestDeserializeAssetErrors(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "Stock;AAPL", "Bond;X;USD", "Stock;;USD"} {
		_, err := DeserializeAsset(s)
		assert.Error(t, err, s)
	}
}

func TestParseAsset(t *testing.T) {
	t.Parallel()

	a, err := ParseAsset("MSFT", EUR)
	require.NoError(t, err)
	assert.Equal(t, NewStock("MSFT", EUR), a)

	a, err = ParseAsset("Crypto;ETH-USD;USD", EUR)
	require.NoError(t, err)
	assert.Equal(t, USD, a.Currency())

	_, err = ParseAsset("", USD)
	assert.Error(t, err)
}

func TestAssetValue(t *testing.T) {
	t.Parallel()

	a := NewStock("AAPL", USD)
	v := a.Value(SizeOf(10), 101.5)
	assert.Equal(t, USD, v.Currency)
	assert.Equal(t, 1015.0, v.Float64())

	v = a.Value(SizeOf(-2), 50)
	assert.Equal(t, -100.0, v.Float64())
}

func TestExchangeSameDay(t *testing.T) {
	t.Parallel()

	us := GetExchange("XNYS")
	// 2024-03-05 23:30 in New York is already the 6th in UTC.
	a := time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 6, 4, 30, 0, 0, time.UTC)
	assert.True(t, us.SameDay(a, b))
	assert.False(t, DefaultExchange.SameDay(a, b))
	assert.Equal(t, us, NewStock("IBM@XNYS", USD).Exchange())
}

func TestEventLazyIndex(t *testing.T) {
	t.Parallel()

	aapl := NewStock("AAPL", USD)
	msft := NewStock("MSFT", USD)
	now := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	e := NewEvent(now,
		NewPriceBar(aapl, 10, 12, 9, 11, 1000, 24*time.Hour),
		NewTradePrice(msft, 300, 5),
	)

	p, ok := e.Price(aapl, PriceDefault)
	require.True(t, ok)
	assert.Equal(t, 11.0, p)

	p, ok = e.Price(aapl, PriceOpen)
	require.True(t, ok)
	assert.Equal(t, 10.0, p)

	p, ok = e.Price(msft, PriceClose)
	require.True(t, ok)
	assert.Equal(t, 300.0, p)

	_, ok = e.Price(NewStock("TSLA", USD), PriceDefault)
	assert.False(t, ok)

	assert.Equal(t, []Asset{aapl, msft}, e.Assets())
	assert.False(t, e.IsEmpty())
	assert.True(t, EmptyEvent(now).IsEmpty())
}

func TestPriceBarAdjustClose(t *testing.T) {
	t.Parallel()

	b := NewPriceBar(NewStock("AAPL", USD), 10, 20, 5, 10, 100, time.Minute)
	b.AdjustClose(5)
	assert.Equal(t, 5.0, b.Open())
	assert.Equal(t, 10.0, b.High())
	assert.Equal(t, 2.5, b.Low())
	assert.Equal(t, 5.0, b.Close())
	assert.Equal(t, 200.0, b.Volume())
}

func TestPriceQuote(t *testing.T) {
	t.Parallel()

	q := NewPriceQuote(NewStock("AAPL", USD), 101, 10, 99, 20)
	assert.Equal(t, 100.0, q.Price(PriceDefault))
	assert.Equal(t, 101.0, q.Price(PriceAsk))
	assert.Equal(t, 99.0, q.Price(PriceBid))
	assert.Equal(t, 2.0, q.Spread())
}
