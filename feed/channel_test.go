package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradecore/market"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func evt(d int) *market.Event {
	return market.NewEvent(day(d), market.NewTradePrice(market.NewStock("AAPL", market.USD), float64(100+d), 1))
}

func TestChannelClosesPastTimeframe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ch := NewChannel(market.MustTimeframe(day(2), day(4), false), 10, Suspend)

	require.NoError(t, ch.Send(ctx, evt(1)))
	assert.Equal(t, 0, ch.Len(), "events before start are ignored")

	require.NoError(t, ch.Send(ctx, evt(2)))
	require.NoError(t, ch.Send(ctx, evt(3)))
	assert.ErrorIs(t, ch.Send(ctx, evt(4)), ErrChannelClosed)
	assert.True(t, ch.Closed())
	assert.ErrorIs(t, ch.Send(ctx, evt(3)), ErrChannelClosed)

	// queued events remain readable after close
	got, err := ch.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, day(2), got.Time)
	got, err = ch.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, day(3), got.Time)

	_, err = ch.Receive(ctx, 0)
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestChannelOverflowPolicies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		policy  OverflowPolicy
		want    []time.Time
		dropped uint64
	}{
		{DropLatest, []time.Time{day(1), day(2)}, 1},
		{DropOldest, []time.Time{day(2), day(3)}, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.policy.String(), func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			ch := NewChannel(market.Infinite, 2, tt.policy)
			for d := 1; d <= 3; d++ {
				require.NoError(t, ch.Send(ctx, evt(d)))
			}
			assert.Equal(t, tt.dropped, ch.Dropped())
			ch.Close()

			var got []time.Time
			for {
				e, err := ch.Receive(ctx, 0)
				if err != nil {
					assert.ErrorIs(t, err, ErrChannelClosed)
					break
				}
				got = append(got, e.Time)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelSuspendBlocksProducer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ch := NewChannel(market.Infinite, 1, Suspend)
	require.NoError(t, ch.Send(ctx, evt(1)))

	sent := make(chan error, 1)
	go func() { sent <- ch.Send(ctx, evt(2)) }()

	select {
	case <-sent:
		t.Fatal("send should block while the channel is full")
	case <-time.After(20 * time.Millisecond):
	}

	e, err := ch.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, day(1), e.Time)
	require.NoError(t, <-sent)

	e, err = ch.Receive(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, day(2), e.Time)
	assert.Zero(t, ch.Dropped())
}

func TestChannelSuspendHonoursContext(t *testing.T) {
	t.Parallel()

	ch := NewChannel(market.Infinite, 1, Suspend)
	require.NoError(t, ch.Send(context.Background(), evt(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ch.Send(ctx, evt(2)), context.DeadlineExceeded)
}

func TestChannelNoSendAfterClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for i := 0; i < 200; i++ {
		ch := NewChannel(market.Infinite, 1, Suspend)
		require.NoError(t, ch.Send(ctx, evt(1)))

		sent := make(chan error, 1)
		go func() { sent <- ch.Send(ctx, evt(2)) }()

		// room appears only after the close
		ch.Close()
		_, err := ch.Receive(ctx, 0)
		require.NoError(t, err)

		require.ErrorIs(t, <-sent, ErrChannelClosed)
		require.Zero(t, ch.Len())
	}
}

func TestChannelCloseWakesReceiver(t *testing.T) {
	t.Parallel()

	ch := NewChannel(market.Infinite, 1, Suspend)
	errs := make(chan error, 1)
	go func() {
		_, err := ch.Receive(context.Background(), 0)
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	ch.Close()
	ch.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrChannelClosed)
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken by Close")
	}
}

func TestChannelHeartbeat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	ch := NewChannel(market.Infinite, 1, Suspend)
	hb, err := ch.Receive(ctx, 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, hb.IsEmpty())
	assert.False(t, ch.Closed())

	// a timeframe that has not started yet still gets heartbeats
	future := NewChannel(market.MustTimeframe(day(10), day(11), false), 1, Suspend)
	future.now = func() time.Time { return day(5) }
	hb, err = future.Receive(ctx, 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, hb.IsEmpty())
	assert.Equal(t, day(5), hb.Time)
	assert.False(t, future.Closed())

	past := NewChannel(market.MustTimeframe(day(1), day(2), false), 1, Suspend)
	past.now = func() time.Time { return day(5) }
	_, err = past.Receive(ctx, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.True(t, past.Closed())
}

func TestParseOverflowPolicy(t *testing.T) {
	t.Parallel()

	for _, p := range []OverflowPolicy{Suspend, DropOldest, DropLatest} {
		got, err := ParseOverflowPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	got, err := ParseOverflowPolicy("")
	require.NoError(t, err)
	assert.Equal(t, Suspend, got)

	_, err = ParseOverflowPolicy("block")
	assert.Error(t, err)
}
