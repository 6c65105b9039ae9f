package market

import (
	"sync"
	"time"
)

// Event is the market update for one timestamp. Events are immutable once
// built; the asset index is computed on first lookup.
type Event struct {
	Time  time.Time
	Items []PriceItem

	once  sync.Once
	index map[Asset]PriceItem
}

func NewEvent(t time.Time, items ...PriceItem) *Event {
	return &Event{Time: t, Items: items}
}

// EmptyEvent returns an event without items, used as a heartbeat.
func EmptyEvent(t time.Time) *Event {
	return &Event{Time: t}
}

func (e *Event) IsEmpty() bool {
	return e == nil || len(e.Items) == 0
}

func (e *Event) build() {
	e.index = make(map[Asset]PriceItem, len(e.Items))
	for _, it := range e.Items {
		// later items for the same asset win
		e.index[it.Asset()] = it
	}
}

// Prices returns the asset index. Callers must not modify it.
func (e *Event) Prices() map[Asset]PriceItem {
	if e == nil {
		return nil
	}
	e.once.Do(e.build)
	return e.index
}

func (e *Event) PriceItem(a Asset) (PriceItem, bool) {
	it, ok := e.Prices()[a]
	return it, ok
}

// Price returns the price of kind for asset a, if the event carries one.
func (e *Event) Price(a Asset, kind PriceKind) (float64, bool) {
	it, ok := e.PriceItem(a)
	if !ok {
		return 0, false
	}
	return it.Price(kind), true
}

// Assets returns the distinct assets in item order.
func (e *Event) Assets() []Asset {
	if e == nil {
		return nil
	}
	seen := make(map[Asset]bool, len(e.Items))
	out := make([]Asset, 0, len(e.Items))
	for _, it := range e.Items {
		if !seen[it.Asset()] {
			seen[it.Asset()] = true
			out = append(out, it.Asset())
		}
	}
	return out
}

func (e *Event) Before(o *Event) bool { return e.Time.Before(o.Time) }
func (e *Event) After(o *Event) bool { return e.Time.After(o.Time) }
