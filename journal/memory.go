package journal

import (
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
)

// Memory keeps the equity curve, fills and counters of a run in memory.
type Memory struct {
	mu sync.Mutex

	events     int
	heartbeats int
	signals    int
	orders     int

	equity []EquityRecord
	fills  []FillRecord
	cur    cursor
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Track(evt *market.Event, snap broker.Snapshot, signals []strategy.Signal, orders []broker.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.signals += len(signals)
	m.orders += len(orders)
	for _, t := range m.cur.next(snap) {
		m.fills = append(m.fills, fillRecord(t))
	}

	if evt.IsEmpty() {
		m.heartbeats++
		return nil
	}
	m.events++

	rec, err := equityRecord(evt, snap)
	if err != nil {
		return fmt.Errorf("memory journal: %w", err)
	}
	m.equity = append(m.equity, rec)
	return nil
}

func (m *Memory) Equity() []EquityRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EquityRecord(nil), m.equity...)
}

func (m *Memory) Fills() []FillRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FillRecord(nil), m.fills...)
}

// Summary aggregates a run.
type Summary struct {
	Events      int
	Heartbeats  int
	Signals     int
	Orders      int
	Fills       int
	Start       time.Time
	End         time.Time
	StartEquity float64
	EndEquity   float64
	// Return is (end - start) / start.
	Return      float64
	MaxDrawdown float64
	RealizedPnl float64
	Wins        int
	Losses      int
}

func (s Summary) String() string {
	return fmt.Sprintf("events=%d fills=%d equity %.2f -> %.2f (%+.2f%%) max drawdown %.2f%% realized %.2f wins=%d losses=%d",
		s.Events, s.Fills, s.StartEquity, s.EndEquity, s.Return*100, s.MaxDrawdown*100, s.RealizedPnl, s.Wins, s.Losses)
}

func (m *Memory) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := summarize(m.equity, m.fills)
	s.Events = m.events
	s.Heartbeats = m.heartbeats
	s.Signals = m.signals
	s.Orders = m.orders
	return s
}

// summarize computes the equity and fill statistics. Events is the number
// of equity records.
func summarize(equity []EquityRecord, fills []FillRecord) Summary {
	s := Summary{Events: len(equity), Fills: len(fills)}
	if n := len(equity); n > 0 {
		s.Start, s.End = equity[0].Time, equity[n-1].Time
		s.StartEquity, s.EndEquity = equity[0].Equity, equity[n-1].Equity
		if s.StartEquity != 0 {
			s.Return = (s.EndEquity - s.StartEquity) / s.StartEquity
		}
	}

	peak := 0.0
	for _, e := range equity {
		if e.Equity > peak {
			peak = e.Equity
		}
		if peak > 0 {
			if dd := (peak - e.Equity) / peak; dd > s.MaxDrawdown {
				s.MaxDrawdown = dd
			}
		}
	}

	for _, f := range fills {
		s.RealizedPnl += f.PnL
		switch {
		case f.PnL > 0:
			s.Wins++
		case f.PnL < 0:
			s.Losses++
		}
	}
	return s
}
