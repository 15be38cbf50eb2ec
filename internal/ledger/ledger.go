package ledger

import (
	"context"
	"sync"
	"time"

	"main/internal/obs"
	"main/internal/venue"
	"main/pkg/exception"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// venueAPI is the slice of the gateway the ledger trades through.
type venueAPI interface {
	PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderAck, error)
	CancelOrder(ctx context.Context, coin string, orderID int64) error
	OpenOrders(ctx context.Context) ([]venue.OpenOrder, error)
	UserFills(ctx context.Context) ([]venue.Fill, error)
	UserState(ctx context.Context) (venue.UserState, error)
}

// journal records trading events for audit. A nil journal records nothing.
type journal interface {
	RecordOrder(o Order)
	RecordFill(o Order)
}

// ReconcileGrace bounds how long an order absent from the open-order list
// may stay pending before it is declared cancelled. A fresh snapshot can
// trail a just-placed order, so absence alone is not proof of death.
type ReconcileGrace struct {
	MaxScans int
	MaxAge   time.Duration
}

func (g ReconcileGrace) withDefaults() ReconcileGrace {
	if g.MaxScans <= 0 {
		g.MaxScans = 2
	}
	if g.MaxAge <= 0 {
		g.MaxAge = 30 * time.Second
	}
	return g
}

// SubmitRequest describes one order to place.
type SubmitRequest struct {
	Coin       string
	Side       Side
	Type       Type
	Size       float64
	Price      float64
	ReduceOnly bool
	PostOnly   bool
}

// Ledger tracks the lifecycle of every order this process placed. The venue
// stays authoritative: reconcile folds its view back into local state.
type Ledger struct {
	api     venueAPI
	journal journal
	grace   ReconcileGrace
	now     func() time.Time

	mu     sync.Mutex
	orders map[int64]*Order
}

// New creates a ledger trading through api. jnl may be nil.
func New(api venueAPI, jnl journal, grace ReconcileGrace) *Ledger {
	return &Ledger{
		api:     api,
		journal: jnl,
		grace:   grace.withDefaults(),
		now:     time.Now,
		orders:  make(map[int64]*Order),
	}
}

// Submit places one order. Only a resting acknowledgment with an order id
// enters the active set; an immediate fill is terminal at birth and a
// rejection comes back with StatusRejected, neither is ever stored.
func (l *Ledger) Submit(ctx context.Context, req SubmitRequest) (Order, error) {
	if !req.Side.IsAvailable() {
		return Order{}, exception.ErrOrderInvalidSide
	}
	if !req.Type.IsAvailable() {
		return Order{}, exception.ErrOrderInvalidType
	}
	if req.Size <= 0 {
		return Order{}, errors.Wrapf(exception.ErrOrderInvalidSize, "size %v", req.Size)
	}

	order := Order{
		ClientID:   uuid.NewString(),
		Coin:       req.Coin,
		Side:       req.Side,
		Type:       req.Type,
		Size:       req.Size,
		Price:      req.Price,
		ReduceOnly: req.ReduceOnly,
		CreatedAt:  l.now(),
	}

	vreq := venue.OrderRequest{
		Coin:       req.Coin,
		IsBuy:      req.Side == SideBuy,
		Size:       req.Size,
		LimitPrice: req.Price,
		Market:     req.Type == TypeMarket,
		ReduceOnly: req.ReduceOnly,
		ClientID:   order.ClientID,
	}
	if req.PostOnly {
		vreq.TimeInForce = "Alo"
	}

	ack, err := l.api.PlaceOrder(ctx, vreq)
	if err != nil {
		obs.OrdersRejected.Inc()
		order.Status = StatusRejected
		order.UpdatedAt = l.now()
		return order, errors.Wrapf(exception.ErrOrderRejected,
			"place %s %s %v @ %v: %+v", req.Side, req.Coin, req.Size, req.Price, err)
	}

	order.OrderID = ack.OrderID
	order.UpdatedAt = l.now()
	if ack.Filled {
		order.Status = StatusFilled
		order.FilledSize = ack.TotalSize
		order.AvgFillPrice = ack.AvgPrice
		obs.OrdersFilled.Inc()
	} else {
		order.Status = StatusPending
		l.mu.Lock()
		stored := order
		l.orders[order.OrderID] = &stored
		l.mu.Unlock()
	}

	obs.OrdersPlaced.Inc()
	if l.journal != nil {
		l.journal.RecordOrder(order)
	}
	logs.Infof("placed %s %s %v @ %v, oid: %d, status: %s",
		req.Side, req.Coin, req.Size, req.Price, order.OrderID, order.Status)
	return order, nil
}

// Cancel cancels one tracked order.
func (l *Ledger) Cancel(ctx context.Context, orderID int64) error {
	l.mu.Lock()
	order, ok := l.orders[orderID]
	if !ok {
		l.mu.Unlock()
		return errors.Wrapf(exception.ErrOrderUnknownID, "oid %d", orderID)
	}
	coin := order.Coin
	l.mu.Unlock()

	if err := l.api.CancelOrder(ctx, coin, orderID); err != nil {
		return errors.Wrapf(err, "cancel oid %d", orderID)
	}

	l.markCancelled(orderID)
	return nil
}

// CancelAll cancels every resting order on the venue, optionally filtered
// to one coin. The venue's open-order list is the source of truth, so
// orders placed by anything else on this account are cancelled too.
func (l *Ledger) CancelAll(ctx context.Context, coin string) (int, error) {
	open, err := l.api.OpenOrders(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list open orders")
	}

	cancelled := 0
	var firstErr error
	for _, o := range open {
		if coin != "" && o.Coin != coin {
			continue
		}
		if err := l.api.CancelOrder(ctx, o.Coin, o.OrderID); err != nil {
			logs.Warnf("cancel failed, oid: %d, err: %+v", o.OrderID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		cancelled++
		l.markCancelled(o.OrderID)
	}

	if cancelled > 0 {
		logs.Infof("cancelled %d open orders", cancelled)
	}
	return cancelled, firstErr
}

func (l *Ledger) markCancelled(orderID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	order, ok := l.orders[orderID]
	if !ok || !order.Status.IsActive() {
		return
	}
	order.Status = StatusCancelled
	order.UpdatedAt = l.now()
	delete(l.orders, orderID)
	obs.OrdersCancelled.Inc()
	if l.journal != nil {
		l.journal.RecordOrder(*order)
	}
}

// Reconcile folds the venue's view back into local state. Active orders
// absent from the open-order list become filled when a matching fill
// exists, and cancelled once the grace window runs out. Fills are fetched
// at most once per pass.
func (l *Ledger) Reconcile(ctx context.Context) error {
	open, err := l.api.OpenOrders(ctx)
	if err != nil {
		return errors.Wrap(err, "list open orders")
	}

	openIDs := make(map[int64]struct{}, len(open))
	for _, o := range open {
		openIDs[o.OrderID] = struct{}{}
	}

	var fills []venue.Fill
	fillsFetched := false
	fillsFor := func(orderID int64) []venue.Fill {
		if !fillsFetched {
			fillsFetched = true
			got, err := l.api.UserFills(ctx)
			if err != nil {
				logs.Warnf("fetch fills during reconcile, err: %+v", err)
			} else {
				fills = got
			}
		}
		matched := fills[:0:0]
		for _, f := range fills {
			if f.OrderID == orderID {
				matched = append(matched, f)
			}
		}
		return matched
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for oid, order := range l.orders {
		if !order.Status.IsActive() {
			continue
		}
		if _, stillOpen := openIDs[oid]; stillOpen {
			order.missedScans = 0
			continue
		}

		if matched := fillsFor(oid); len(matched) > 0 {
			var size, notional float64
			for _, f := range matched {
				size += f.Size
				notional += f.Size * f.Price
			}
			order.Status = StatusFilled
			order.FilledSize = size
			if size > 0 {
				order.AvgFillPrice = notional / size
			}
			order.UpdatedAt = now
			delete(l.orders, oid)
			obs.OrdersFilled.Inc()
			if l.journal != nil {
				l.journal.RecordFill(*order)
			}
			logs.Infof("order filled, oid: %d, size: %v, avg: %v", oid, size, order.AvgFillPrice)
			continue
		}

		order.missedScans++
		if order.missedScans < l.grace.MaxScans && now.Sub(order.CreatedAt) < l.grace.MaxAge {
			continue
		}

		order.Status = StatusCancelled
		order.UpdatedAt = now
		delete(l.orders, oid)
		obs.OrdersCancelled.Inc()
		if l.journal != nil {
			l.journal.RecordOrder(*order)
		}
		logs.Infof("order gone without fills, marked cancelled, oid: %d", oid)
	}

	return nil
}

// Get returns one tracked order by venue order id.
func (l *Ledger) Get(orderID int64) (Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// Open returns the tracked orders that are still active.
func (l *Ledger) Open() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	open := make([]Order, 0, len(l.orders))
	for _, order := range l.orders {
		if order.Status.IsActive() {
			open = append(open, *order)
		}
	}
	return open
}

// Positions returns the account's current positions keyed by coin,
// excluding flat ones.
func (l *Ledger) Positions(ctx context.Context) (map[string]venue.Position, error) {
	state, err := l.api.UserState(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch user state")
	}

	positions := make(map[string]venue.Position, len(state.Positions))
	for _, p := range state.Positions {
		if p.Size == 0 {
			continue
		}
		positions[p.Coin] = p
	}
	return positions, nil
}
