package marketdata

import (
	"context"
	"sync"
	"time"

	"main/internal/venue"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

const (
	_metaTTL             = time.Hour
	_defaultSizeDecimals = 3
)

// intervalMillis maps a candle interval name to its length in milliseconds.
var intervalMillis = map[string]int64{
	"1m":  60_000,
	"5m":  300_000,
	"15m": 900_000,
	"1h":  3_600_000,
	"4h":  14_400_000,
	"1d":  86_400_000,
}

// marketAPI is the slice of the gateway the provider reads from.
type marketAPI interface {
	AllMids(ctx context.Context) (map[string]float64, error)
	L2Book(ctx context.Context, coin string) (venue.Book, error)
	Candles(ctx context.Context, coin, interval string, startTime, endTime int64) ([]venue.Candle, error)
	Meta(ctx context.Context) (venue.Meta, error)
	FundingHistory(ctx context.Context, coin string, startTime int64) ([]venue.FundingEntry, error)
}

// Snapshot is the top-of-book view strategies size and price against.
type Snapshot struct {
	Coin      string
	Bid       float64
	Ask       float64
	Mid       float64
	Spread    float64
	SpreadPct float64
	Time      int64
}

// Provider serves prices, books, candles and instrument metadata. Mid
// prices prefer the websocket stream when one is attached and fresh, and
// fall back to REST otherwise.
type Provider struct {
	api    marketAPI
	stream *Stream
	now    func() time.Time

	mu        sync.Mutex
	meta      venue.Meta
	metaAt    time.Time
	metaValid bool
}

// NewProvider creates a market data provider over the gateway. stream may
// be nil; every read then goes through REST.
func NewProvider(api marketAPI, stream *Stream) *Provider {
	return &Provider{
		api:    api,
		stream: stream,
		now:    time.Now,
	}
}

// Mids returns the current mid price of every listed instrument.
func (p *Provider) Mids(ctx context.Context) (map[string]float64, error) {
	if p.stream != nil {
		if mids, ok := p.stream.Mids(); ok {
			return mids, nil
		}
	}
	return p.api.AllMids(ctx)
}

// Mid returns the current mid price of one coin.
func (p *Provider) Mid(ctx context.Context, coin string) (float64, error) {
	mids, err := p.Mids(ctx)
	if err != nil {
		return 0, err
	}
	mid, ok := mids[coin]
	if !ok {
		return 0, errors.Wrapf(exception.ErrVenueUnknownSymbol, "coin %s", coin)
	}
	return mid, nil
}

// BookSnapshot returns best bid/ask and the derived mid and spread.
func (p *Provider) BookSnapshot(ctx context.Context, coin string) (Snapshot, error) {
	book, err := p.api.L2Book(ctx, coin)
	if err != nil {
		return Snapshot{}, err
	}
	if len(book.Bids) == 0 || len(book.Asks) == 0 {
		return Snapshot{}, errors.Wrapf(exception.ErrVenueEmptyResponse, "book for %s has an empty side", coin)
	}

	bid := book.Bids[0].Price
	ask := book.Asks[0].Price
	mid := (bid + ask) / 2

	snap := Snapshot{
		Coin:   coin,
		Bid:    bid,
		Ask:    ask,
		Mid:    mid,
		Spread: ask - bid,
		Time:   book.Time,
	}
	if mid > 0 {
		snap.SpreadPct = snap.Spread / mid
	}
	return snap, nil
}

// Candles returns the most recent lookback bars of the given interval.
func (p *Provider) Candles(ctx context.Context, coin, interval string, lookback int) ([]venue.Candle, error) {
	millis, ok := intervalMillis[interval]
	if !ok {
		return nil, errors.Errorf("unsupported candle interval %q", interval)
	}
	if lookback <= 0 {
		lookback = 1
	}

	end := p.now().UnixMilli()
	start := end - int64(lookback)*millis
	return p.api.Candles(ctx, coin, interval, start, end)
}

// Closes returns the close prices of the most recent lookback bars,
// oldest first, ready for indicator input.
func (p *Provider) Closes(ctx context.Context, coin, interval string, lookback int) ([]float64, error) {
	candles, err := p.Candles(ctx, coin, interval, lookback)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, 0, len(candles))
	for _, k := range candles {
		closes = append(closes, k.Close)
	}
	return closes, nil
}

func (p *Provider) cachedMeta(ctx context.Context) (venue.Meta, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.metaValid && p.now().Sub(p.metaAt) < _metaTTL {
		return p.meta, nil
	}

	meta, err := p.api.Meta(ctx)
	if err != nil {
		if p.metaValid {
			// Stale metadata beats none; the universe barely moves.
			return p.meta, nil
		}
		return venue.Meta{}, err
	}

	p.meta = meta
	p.metaAt = p.now()
	p.metaValid = true
	return meta, nil
}

// SizeDecimals returns the coin's size precision, defaulting when the
// instrument is unknown.
func (p *Provider) SizeDecimals(ctx context.Context, coin string) int {
	meta, err := p.cachedMeta(ctx)
	if err != nil {
		return _defaultSizeDecimals
	}
	for _, asset := range meta.Universe {
		if asset.Name == coin {
			return asset.SizeDecimals
		}
	}
	return _defaultSizeDecimals
}

// MaxLeverage returns the venue's leverage cap for one coin, zero when
// unknown.
func (p *Provider) MaxLeverage(ctx context.Context, coin string) int {
	meta, err := p.cachedMeta(ctx)
	if err != nil {
		return 0
	}
	for _, asset := range meta.Universe {
		if asset.Name == coin {
			return asset.MaxLeverage
		}
	}
	return 0
}

// FundingRate returns the most recent funding rate for one coin over the
// past day, or zero when there is none.
func (p *Provider) FundingRate(ctx context.Context, coin string) (float64, error) {
	start := p.now().Add(-24 * time.Hour).UnixMilli()
	entries, err := p.api.FundingHistory(ctx, coin, start)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.Time > latest.Time {
			latest = e
		}
	}
	return latest.Rate, nil
}
