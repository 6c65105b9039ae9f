package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rustyeddy/tradecore/market"
)

// ErrChannelClosed is returned by Send and Receive once the channel is closed
// and, for Receive, drained.
var ErrChannelClosed = errors.New("channel closed")

// OverflowPolicy decides what Send does when the channel is full.
type OverflowPolicy int

const (
	// Suspend blocks the producer until the consumer frees a slot.
	Suspend OverflowPolicy = iota
	// DropOldest evicts the oldest queued event. Lossy.
	DropOldest
	// DropLatest discards the incoming event. Lossy.
	DropLatest
)

var overflowNames = []string{"suspend", "drop-oldest", "drop-latest"}

func (p OverflowPolicy) String() string {
	if p < 0 || int(p) >= len(overflowNames) {
		return "unknown"
	}
	return overflowNames[p]
}

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	if s == "" {
		return Suspend, nil
	}
	for i, n := range overflowNames {
		if strings.EqualFold(n, s) {
			return OverflowPolicy(i), nil
		}
	}
	return Suspend, fmt.Errorf("unknown overflow policy %q (supported: %s)", s, strings.Join(overflowNames, ", "))
}

// Channel is a bounded FIFO of events between one producer and one consumer,
// scoped to a timeframe. An event past the end of the timeframe closes it.
type Channel struct {
	tf     market.Timeframe
	policy OverflowPolicy
	ch     chan *market.Event

	// mu orders enqueues against Close; no event enters ch once closed is set
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	space   chan struct{}
	dropped atomic.Uint64

	now func() time.Time
}

// NewChannel creates a channel holding at most capacity events.
func NewChannel(tf market.Timeframe, capacity int, policy OverflowPolicy) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel{
		tf:     tf,
		policy: policy,
		ch:     make(chan *market.Event, capacity),
		done:   make(chan struct{}),
		space:  make(chan struct{}, 1),
		now:    time.Now,
	}
}

func (c *Channel) Timeframe() market.Timeframe { return c.tf }

func (c *Channel) Policy() OverflowPolicy { return c.policy }

// Dropped returns the number of events lost to the overflow policy.
func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

// Len returns the number of queued events.
func (c *Channel) Len() int { return len(c.ch) }

// Close is idempotent. It wakes a blocked producer and consumer; queued
// events can still be received.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Send enqueues evt according to the overflow policy. Events before the start
// of the timeframe are ignored; an event past its end closes the channel and
// is dropped.
func (c *Channel) Send(ctx context.Context, evt *market.Event) error {
	if c.Closed() {
		return ErrChannelClosed
	}
	if c.tf.IsAfterEnd(evt.Time) {
		c.Close()
		return ErrChannelClosed
	}
	if !c.tf.Contains(evt.Time) {
		return nil
	}

	for {
		sent, err := c.offer(evt)
		if sent || err != nil {
			return err
		}
		select {
		case <-c.space:
		case <-c.done:
			return ErrChannelClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// offer tries to enqueue evt without blocking. It reports false only when a
// Suspend channel is full.
func (c *Channel) offer(evt *market.Event) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrChannelClosed
	}

	select {
	case c.ch <- evt:
		return true, nil
	default:
	}

	switch c.policy {
	case DropLatest:
		c.dropped.Add(1)
		return true, nil
	case DropOldest:
		// only the consumer competes for the queue here
		for {
			select {
			case <-c.ch:
				c.dropped.Add(1)
			default:
			}
			select {
			case c.ch <- evt:
				return true, nil
			default:
			}
		}
	}
	return false, nil
}

// freed wakes a producer waiting for room.
func (c *Channel) freed() {
	select {
	case c.space <- struct{}{}:
	default:
	}
}

// Receive blocks until an event is available. With a positive timeout, a
// read that times out before the end of the timeframe returns an empty
// heartbeat event, also when the timeframe has not started yet; once "now" is
// past the timeframe the channel is closed and ErrChannelClosed returned. A
// zero timeout waits indefinitely.
func (c *Channel) Receive(ctx context.Context, timeout time.Duration) (*market.Event, error) {
	select {
	case evt := <-c.ch:
		c.freed()
		return evt, nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case evt := <-c.ch:
		c.freed()
		return evt, nil
	case <-c.done:
		select {
		case evt := <-c.ch:
			return evt, nil
		default:
			return nil, ErrChannelClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-expired:
		now := c.now()
		if !c.tf.IsAfterEnd(now) {
			return market.EmptyEvent(now), nil
		}
		c.Close()
		return nil, ErrChannelClosed
	}
}
