package ledger

import (
	"context"
	"testing"
	"time"

	"main/internal/venue"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

type fakeVenue struct {
	ack        venue.OrderAck
	placeErr   error
	placed     []venue.OrderRequest
	cancelErr  error
	cancelled  []int64
	open       []venue.OpenOrder
	fills      []venue.Fill
	fillsCalls int
	state      venue.UserState
}

func (f *fakeVenue) PlaceOrder(_ context.Context, req venue.OrderRequest) (venue.OrderAck, error) {
	f.placed = append(f.placed, req)
	return f.ack, f.placeErr
}

func (f *fakeVenue) CancelOrder(_ context.Context, _ string, orderID int64) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeVenue) OpenOrders(context.Context) ([]venue.OpenOrder, error) {
	return f.open, nil
}

func (f *fakeVenue) UserFills(context.Context) ([]venue.Fill, error) {
	f.fillsCalls++
	return f.fills, nil
}

func (f *fakeVenue) UserState(context.Context) (venue.UserState, error) {
	return f.state, nil
}

type fakeJournal struct {
	orders []Order
	fills  []Order
}

func (f *fakeJournal) RecordOrder(o Order) { f.orders = append(f.orders, o) }
func (f *fakeJournal) RecordFill(o Order)  { f.fills = append(f.fills, o) }

// lastOrder returns the most recent order record with the given status.
func (f *fakeJournal) lastOrder(status Status) (Order, bool) {
	for i := len(f.orders) - 1; i >= 0; i-- {
		if f.orders[i].Status == status {
			return f.orders[i], true
		}
	}
	return Order{}, false
}

func newTestLedger(api venueAPI) *Ledger {
	return New(api, nil, ReconcileGrace{MaxScans: 2, MaxAge: 30 * time.Second})
}

func newJournaledLedger(api venueAPI, jnl journal) *Ledger {
	return New(api, jnl, ReconcileGrace{MaxScans: 2, MaxAge: 30 * time.Second})
}

func TestSubmitTracksAcknowledgedOrder(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 7}}
	l := newTestLedger(api)

	order, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 0.5, Price: 64000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), order.OrderID)
	assert.Equal(t, StatusPending, order.Status)
	assert.NotEmpty(t, order.ClientID)

	tracked, ok := l.Get(7)
	require.True(t, ok)
	assert.Equal(t, StatusPending, tracked.Status)
	assert.Len(t, l.Open(), 1)
}

func TestSubmitImmediateFill(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 7, Filled: true, TotalSize: 0.5, AvgPrice: 64010}}
	jnl := &fakeJournal{}
	l := newJournaledLedger(api, jnl)

	order, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeMarket, Size: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, order.Status)
	assert.Equal(t, 0.5, order.FilledSize)
	assert.Equal(t, 64010.0, order.AvgFillPrice)

	// Terminal at birth: journaled, never tracked.
	_, ok := l.Get(7)
	assert.False(t, ok)
	assert.Empty(t, l.Open())
	require.Len(t, jnl.orders, 1)
	assert.Equal(t, StatusFilled, jnl.orders[0].Status)
}

func TestSubmitRejectionIsNotTracked(t *testing.T) {
	api := &fakeVenue{placeErr: errors.New("order error: insufficient margin")}
	l := newTestLedger(api)

	order, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 0.5, Price: 64000,
	})
	require.ErrorIs(t, err, exception.ErrOrderRejected)
	assert.Equal(t, StatusRejected, order.Status)
	assert.Empty(t, l.Open())
}

func TestSubmitValidation(t *testing.T) {
	l := newTestLedger(&fakeVenue{})

	_, err := l.Submit(context.Background(), SubmitRequest{Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 0})
	require.ErrorIs(t, err, exception.ErrOrderInvalidSize)

	_, err = l.Submit(context.Background(), SubmitRequest{Coin: "BTC", Type: TypeLimit, Size: 1})
	require.ErrorIs(t, err, exception.ErrOrderInvalidSide)

	_, err = l.Submit(context.Background(), SubmitRequest{Coin: "BTC", Side: SideSell, Size: 1})
	require.ErrorIs(t, err, exception.ErrOrderInvalidType)
}

func TestSubmitPostOnlyUsesAlo(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 1}}
	l := newTestLedger(api)

	_, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 1, Price: 100, PostOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, api.placed, 1)
	assert.Equal(t, "Alo", api.placed[0].TimeInForce)
}

func TestCancelUnknownOrder(t *testing.T) {
	l := newTestLedger(&fakeVenue{})

	err := l.Cancel(context.Background(), 99)
	require.ErrorIs(t, err, exception.ErrOrderUnknownID)
}

func TestCancelRemovesOrder(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 7}}
	jnl := &fakeJournal{}
	l := newJournaledLedger(api, jnl)

	_, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 1, Price: 100,
	})
	require.NoError(t, err)

	require.NoError(t, l.Cancel(context.Background(), 7))
	_, ok := l.Get(7)
	assert.False(t, ok)
	assert.Empty(t, l.Open())

	record, ok := jnl.lastOrder(StatusCancelled)
	require.True(t, ok)
	assert.Equal(t, int64(7), record.OrderID)
}

func TestCancelAllIsVenueAuthoritative(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 7}}
	l := newTestLedger(api)

	_, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 1, Price: 100,
	})
	require.NoError(t, err)

	// The venue also knows an order this ledger never placed.
	api.open = []venue.OpenOrder{
		{Coin: "BTC", OrderID: 7},
		{Coin: "ETH", OrderID: 8},
	}

	cancelled, err := l.CancelAll(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, cancelled)
	assert.ElementsMatch(t, []int64{7, 8}, api.cancelled)

	_, ok := l.Get(7)
	assert.False(t, ok)
}

func TestCancelAllFiltersByCoin(t *testing.T) {
	api := &fakeVenue{open: []venue.OpenOrder{
		{Coin: "BTC", OrderID: 1},
		{Coin: "ETH", OrderID: 2},
	}}
	l := newTestLedger(api)

	cancelled, err := l.CancelAll(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, []int64{2}, api.cancelled)
}

func TestReconcileMarksFilled(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 7}}
	jnl := &fakeJournal{}
	l := newJournaledLedger(api, jnl)

	_, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 1, Price: 100,
	})
	require.NoError(t, err)

	// Gone from the open list, but the fills explain why.
	api.open = nil
	api.fills = []venue.Fill{
		{Coin: "BTC", OrderID: 7, Price: 100, Size: 0.4},
		{Coin: "BTC", OrderID: 7, Price: 101, Size: 0.6},
	}

	require.NoError(t, l.Reconcile(context.Background()))
	_, ok := l.Get(7)
	assert.False(t, ok)

	require.Len(t, jnl.fills, 1)
	assert.Equal(t, StatusFilled, jnl.fills[0].Status)
	assert.Equal(t, 1.0, jnl.fills[0].FilledSize)
	assert.InDelta(t, 100.6, jnl.fills[0].AvgFillPrice, 1e-9)
}

func TestReconcileGraceWindow(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 7}}
	l := newTestLedger(api)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	_, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 1, Price: 100,
	})
	require.NoError(t, err)

	// Absent with no fills: the first pass keeps it pending, the second
	// declares it cancelled and drops it.
	api.open = nil
	require.NoError(t, l.Reconcile(context.Background()))
	order, ok := l.Get(7)
	require.True(t, ok)
	assert.Equal(t, StatusPending, order.Status)

	require.NoError(t, l.Reconcile(context.Background()))
	_, ok = l.Get(7)
	assert.False(t, ok)
}

func TestReconcileGraceExpiresByAge(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 7}}
	jnl := &fakeJournal{}
	l := newJournaledLedger(api, jnl)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	_, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 1, Price: 100,
	})
	require.NoError(t, err)

	api.open = nil
	now = now.Add(time.Minute)
	require.NoError(t, l.Reconcile(context.Background()))
	_, ok := l.Get(7)
	assert.False(t, ok)

	record, ok := jnl.lastOrder(StatusCancelled)
	require.True(t, ok)
	assert.Equal(t, int64(7), record.OrderID)
}

func TestTerminalOrdersLeaveActiveSet(t *testing.T) {
	api := &fakeVenue{}
	l := newTestLedger(api)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	// Many submit-then-cancel lifecycles must not accumulate state.
	for i := int64(1); i <= 100; i++ {
		api.ack = venue.OrderAck{OrderID: i}
		_, err := l.Submit(context.Background(), SubmitRequest{
			Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 1, Price: 100,
		})
		require.NoError(t, err)

		api.open = nil
		now = now.Add(time.Minute)
		require.NoError(t, l.Reconcile(context.Background()))
	}

	l.mu.Lock()
	tracked := len(l.orders)
	l.mu.Unlock()
	assert.Zero(t, tracked)
}

func TestReconcileStillOpenResetsGrace(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 7}}
	l := newTestLedger(api)

	_, err := l.Submit(context.Background(), SubmitRequest{
		Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 1, Price: 100,
	})
	require.NoError(t, err)

	api.open = nil
	require.NoError(t, l.Reconcile(context.Background()))

	// Reappearing resets the missed-scan count.
	api.open = []venue.OpenOrder{{Coin: "BTC", OrderID: 7}}
	require.NoError(t, l.Reconcile(context.Background()))

	api.open = nil
	require.NoError(t, l.Reconcile(context.Background()))
	order, _ := l.Get(7)
	assert.Equal(t, StatusPending, order.Status)
}

func TestReconcileFetchesFillsOncePerPass(t *testing.T) {
	api := &fakeVenue{ack: venue.OrderAck{OrderID: 0}}
	l := newTestLedger(api)

	api.ack = venue.OrderAck{OrderID: 1}
	_, err := l.Submit(context.Background(), SubmitRequest{Coin: "BTC", Side: SideBuy, Type: TypeLimit, Size: 1, Price: 100})
	require.NoError(t, err)

	api.ack = venue.OrderAck{OrderID: 2}
	_, err = l.Submit(context.Background(), SubmitRequest{Coin: "ETH", Side: SideSell, Type: TypeLimit, Size: 1, Price: 100})
	require.NoError(t, err)

	api.open = nil
	require.NoError(t, l.Reconcile(context.Background()))
	assert.Equal(t, 1, api.fillsCalls)
}

func TestPositionsSkipFlat(t *testing.T) {
	api := &fakeVenue{state: venue.UserState{Positions: []venue.Position{
		{Coin: "BTC", Size: 0.5},
		{Coin: "ETH", Size: 0},
	}}}
	l := newTestLedger(api)

	positions, err := l.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 0.5, positions["BTC"].Size)
}
