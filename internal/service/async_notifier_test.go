package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking-simulator/internal/metrics"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

func seatEvent(n int) model.SeatEvent {
	return model.SeatEvent{Row: 1, Number: n, Status: model.SeatHeld, Movie: "m"}
}

func TestAsyncNotifierPreservesOrderAndDrains(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewAsyncNotifier(pub, 64, time.Second, zerolog.Nop())
	ctx := context.Background()

	for i := 1; i <= 20; i++ {
		require.NoError(t, n.PublishSeatEvent(ctx, seatEvent(i)))
	}
	require.NoError(t, n.PublishBreakerEvent(ctx, model.BreakerEvent{State: model.BreakerDown}))
	require.NoError(t, n.Close())

	got := pub.seatEvents()
	require.Len(t, got, 20)
	for i, ev := range got {
		assert.Equal(t, i+1, ev.Number)
	}
	assert.Equal(t, []model.BreakerEvent{{State: model.BreakerDown}}, pub.breakerEvents())
}

func TestAsyncNotifierDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{entered: make(chan struct{}, 1), block: make(chan struct{})}
	n := NewAsyncNotifier(pub, 2, time.Second, zerolog.Nop())
	ctx := context.Background()
	dropped := metrics.NotifierDropped.WithLabelValues(kindSeat)
	before := testutil.ToFloat64(dropped)

	require.NoError(t, n.PublishSeatEvent(ctx, seatEvent(1)))
	<-pub.entered // dispatcher holds event 1

	require.NoError(t, n.PublishSeatEvent(ctx, seatEvent(2)))
	require.NoError(t, n.PublishSeatEvent(ctx, seatEvent(3)))
	require.ErrorIs(t, n.PublishSeatEvent(ctx, seatEvent(4)), ErrBufferFull)
	assert.Equal(t, before+1, testutil.ToFloat64(dropped))

	close(pub.block)
	require.NoError(t, n.Close())
	numbers := []int{}
	for _, ev := range pub.seatEvents() {
		numbers = append(numbers, ev.Number)
	}
	assert.Equal(t, []int{1, 2, 3}, numbers)
}

func TestAsyncNotifierClose(t *testing.T) {
	n := NewAsyncNotifier(&recordingPublisher{}, 1, 0, zerolog.Nop())
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	require.ErrorIs(t, n.PublishSeatEvent(context.Background(), seatEvent(1)), ErrNotifierClosed)
	require.ErrorIs(t, n.PublishBreakerEvent(context.Background(), model.BreakerEvent{}), ErrNotifierClosed)
}

func TestAsyncNotifierCountsDeliveryFailures(t *testing.T) {
	before := testutil.ToFloat64(metrics.PublishErrors)
	n := NewAsyncNotifier(&recordingPublisher{fail: true}, 8, time.Second, zerolog.Nop())
	require.NoError(t, n.PublishSeatEvent(context.Background(), seatEvent(1)))
	require.NoError(t, n.Close())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.PublishErrors))
}
