package broker

import "github.com/rustyeddy/tradecore/market"

// Broker executes orders and owns the account.
//
// Sync with a nil event returns the current snapshot without simulating
// anything. With an event it processes queued orders against the event and
// returns the resulting snapshot. PlaceOrders only queues; it is safe to call
// concurrently with Sync.
type Broker interface {
	Sync(evt *market.Event) (Snapshot, error)
	PlaceOrders(orders ...Order) error
}
