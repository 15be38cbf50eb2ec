package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"

	"main/internal/obs"
	"main/internal/venue"
	"main/pkg/exception"
)

// venueAPI is the raw venue surface the gateway paces.
type venueAPI interface {
	UserState(ctx context.Context) (venue.UserState, error)
	OpenOrders(ctx context.Context) ([]venue.OpenOrder, error)
	UserFills(ctx context.Context) ([]venue.Fill, error)
	AllMids(ctx context.Context) (map[string]float64, error)
	L2Book(ctx context.Context, coin string) (venue.Book, error)
	Candles(ctx context.Context, coin, interval string, startTime, endTime int64) ([]venue.Candle, error)
	Meta(ctx context.Context) (venue.Meta, error)
	FundingHistory(ctx context.Context, coin string, startTime int64) ([]venue.FundingEntry, error)
	PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderAck, error)
	CancelOrder(ctx context.Context, coin string, orderID int64) error
}

// Gateway is the single choke point between the bot and the venue. Every
// call passes the pacing gate first; rate-limit errors raise the limiter's
// backoff and successes reset it.
type Gateway struct {
	venue   venueAPI
	limiter *RateLimiter
}

// New wraps a venue client with the given limiter.
func New(api venueAPI, limiter *RateLimiter) *Gateway {
	if limiter == nil {
		limiter = NewRateLimiter(LimiterConfig{})
	}
	return &Gateway{venue: api, limiter: limiter}
}

// Limiter exposes the pacing gate, mainly for status reporting.
func (g *Gateway) Limiter() *RateLimiter {
	return g.limiter
}

func call[T any](g *Gateway, op string, fn func() (T, error)) (T, error) {
	waited := g.limiter.Wait()
	if waited > 0 {
		obs.ThrottleWait.Add(waited.Seconds())
	}
	obs.APICalls.WithLabelValues(op).Inc()

	out, err := fn()
	if err != nil {
		obs.APIErrors.WithLabelValues(op).Inc()
		if IsRateLimited(err) {
			obs.RateLimitHits.Inc()
			g.limiter.OnRateLimited()
		}
		return out, err
	}

	g.limiter.OnSuccess()
	return out, nil
}

// UserState returns the account margin summary and open positions.
func (g *Gateway) UserState(ctx context.Context) (venue.UserState, error) {
	return call(g, "user_state", func() (venue.UserState, error) { return g.venue.UserState(ctx) })
}

// OpenOrders lists the account's currently resting orders.
func (g *Gateway) OpenOrders(ctx context.Context) ([]venue.OpenOrder, error) {
	return call(g, "open_orders", func() ([]venue.OpenOrder, error) { return g.venue.OpenOrders(ctx) })
}

// UserFills lists the account's recent fills.
func (g *Gateway) UserFills(ctx context.Context) ([]venue.Fill, error) {
	return call(g, "user_fills", func() ([]venue.Fill, error) { return g.venue.UserFills(ctx) })
}

// AllMids returns the mid price of every listed instrument.
func (g *Gateway) AllMids(ctx context.Context) (map[string]float64, error) {
	return call(g, "all_mids", func() (map[string]float64, error) { return g.venue.AllMids(ctx) })
}

// L2Book returns the order-book snapshot for one coin.
func (g *Gateway) L2Book(ctx context.Context, coin string) (venue.Book, error) {
	return call(g, "l2_book", func() (venue.Book, error) { return g.venue.L2Book(ctx, coin) })
}

// Candles returns OHLCV bars for [startTime, endTime] in milliseconds.
func (g *Gateway) Candles(ctx context.Context, coin, interval string, startTime, endTime int64) ([]venue.Candle, error) {
	return call(g, "candles", func() ([]venue.Candle, error) {
		return g.venue.Candles(ctx, coin, interval, startTime, endTime)
	})
}

// Meta returns the instrument universe.
func (g *Gateway) Meta(ctx context.Context) (venue.Meta, error) {
	return call(g, "meta", func() (venue.Meta, error) { return g.venue.Meta(ctx) })
}

// FundingHistory returns funding records for one coin since startTime (ms).
func (g *Gateway) FundingHistory(ctx context.Context, coin string, startTime int64) ([]venue.FundingEntry, error) {
	return call(g, "funding_history", func() ([]venue.FundingEntry, error) {
		return g.venue.FundingHistory(ctx, coin, startTime)
	})
}

// PlaceOrder submits one order through the pacing gate.
func (g *Gateway) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderAck, error) {
	return call(g, "place_order", func() (venue.OrderAck, error) { return g.venue.PlaceOrder(ctx, req) })
}

// CancelOrder requests cancellation of one resting order.
func (g *Gateway) CancelOrder(ctx context.Context, coin string, orderID int64) error {
	_, err := call(g, "cancel_order", func() (struct{}, error) {
		return struct{}{}, g.venue.CancelOrder(ctx, coin, orderID)
	})
	return err
}

// ResetConnections rebuilds the venue client's transport when the underlying
// client supports it.
func (g *Gateway) ResetConnections() {
	if r, ok := g.venue.(interface{ ResetConnections() }); ok {
		r.ResetConnections()
	}
}

// IsRateLimited reports whether err means the venue throttled us.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, exception.ErrVenueRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}

// IsConnectionError reports whether err looks like a transport failure
// rather than a venue-level rejection.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection") || strings.Contains(msg, "timeout")
}
