package feed

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rustyeddy/tradecore/market"
)

// RandomWalkFeed generates reproducible geometric random-walk bars for a set
// of assets. The same Seed always yields the same series.
type RandomWalkFeed struct {
	Assets     []market.Asset
	Start      time.Time
	Step       time.Duration
	Bars       int
	StartPrice float64
	// Volatility is the standard deviation of the per-bar return.
	Volatility float64
	Seed       uint64
}

func (f *RandomWalkFeed) Timeframe() market.Timeframe {
	if f.Bars <= 0 {
		return market.MustTimeframe(f.Start, f.Start, false)
	}
	end := f.Start.Add(time.Duration(f.Bars-1) * f.Step)
	return market.MustTimeframe(f.Start, end, true)
}

func (f *RandomWalkFeed) Play(ctx context.Context, ch *Channel) error {
	rng := rand.New(rand.NewPCG(f.Seed, f.Seed^0x9e3779b97f4a7c15))

	last := make([]float64, len(f.Assets))
	for i := range last {
		last[i] = f.StartPrice
	}

	for n := 0; n < f.Bars; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := f.Start.Add(time.Duration(n) * f.Step)
		items := make([]market.PriceItem, len(f.Assets))
		for i, a := range f.Assets {
			open := last[i]
			close := open * math.Exp(rng.NormFloat64()*f.Volatility)
			hi := math.Max(open, close) * (1 + math.Abs(rng.NormFloat64())*f.Volatility/2)
			lo := math.Min(open, close) * (1 - math.Abs(rng.NormFloat64())*f.Volatility/2)
			vol := math.Round(1000 + rng.Float64()*9000)
			items[i] = market.NewPriceBar(a, open, hi, lo, close, vol, f.Step)
			last[i] = close
		}
		if err := ch.Send(ctx, market.NewEvent(t, items...)); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return nil
			}
			return err
		}
	}
	return nil
}
