package journal

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyeddy/tradecore/broker"
	"github.com/rustyeddy/tradecore/market"
	"github.com/rustyeddy/tradecore/strategy"
)

// Prometheus exports the account state and the loop counters as metrics.
type Prometheus struct {
	equity        prometheus.Gauge
	cash          prometheus.Gauge
	unrealizedPnl prometheus.Gauge
	positions     prometheus.Gauge
	openOrders    prometheus.Gauge

	events  *prometheus.CounterVec
	signals prometheus.Counter
	orders  prometheus.Counter
	fills   *prometheus.CounterVec

	cur cursor
}

func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	p := &Prometheus{
		equity:        gauge("equity", "Account equity in the base currency."),
		cash:          gauge("cash", "Cash in the base currency."),
		unrealizedPnl: gauge("unrealized_pnl", "Unrealized profit and loss in the base currency."),
		positions:     gauge("positions", "Number of open positions."),
		openOrders:    gauge("open_orders", "Number of open orders."),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events processed by the worker, by kind.",
		}, []string{"kind"}),
		signals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals created by the strategy.",
		}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders created by the trader.",
		}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Executed orders, by side.",
		}, []string{"side"}),
	}

	var errs []error
	for _, c := range []prometheus.Collector{
		p.equity, p.cash, p.unrealizedPnl, p.positions, p.openOrders,
		p.events, p.signals, p.orders, p.fills,
	} {
		errs = append(errs, reg.Register(c))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("prometheus journal: %w", err)
	}
	return p, nil
}

func (p *Prometheus) Track(evt *market.Event, snap broker.Snapshot, signals []strategy.Signal, orders []broker.Order) error {
	p.signals.Add(float64(len(signals)))
	p.orders.Add(float64(len(orders)))
	for _, t := range p.cur.next(snap) {
		side := "buy"
		if t.Size.IsNegative() {
			side = "sell"
		}
		p.fills.WithLabelValues(side).Inc()
	}

	if evt.IsEmpty() {
		p.events.WithLabelValues("heartbeat").Inc()
		return nil
	}
	p.events.WithLabelValues("prices").Inc()

	rec, err := equityRecord(evt, snap)
	if err != nil {
		return fmt.Errorf("prometheus journal: %w", err)
	}
	p.equity.Set(rec.Equity)
	p.cash.Set(rec.Cash)
	p.unrealizedPnl.Set(rec.UnrealizedPnl)
	p.positions.Set(float64(rec.Positions))
	p.openOrders.Set(float64(rec.OpenOrders))
	return nil
}
