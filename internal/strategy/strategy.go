package strategy

import (
	"context"
	"sync"

	"main/internal/ledger"
	"main/internal/marketdata"
	"main/internal/venue"
)

// Signal is one trading decision emitted by a strategy. A zero LimitPrice
// means the executor prices the order off the current book.
type Signal struct {
	Side       ledger.Side
	Type       ledger.Type
	PostOnly   bool
	ReduceOnly bool
	Confidence float64
	LimitPrice float64
	StopLoss   float64
}

// Strategy generates signals and sizes them. Implementations read shared
// position state through the PositionBook the executor refreshes each tick.
type Strategy interface {
	Name() string
	GenerateSignal(ctx context.Context, coin string) (*Signal, error)
	SizePosition(ctx context.Context, coin string, sig *Signal) (float64, error)
}

// marketData is the market view strategies consume.
type marketData interface {
	BookSnapshot(ctx context.Context, coin string) (marketdata.Snapshot, error)
	Candles(ctx context.Context, coin, interval string, lookback int) ([]venue.Candle, error)
	SizeDecimals(ctx context.Context, coin string) int
}

// accountReader exposes the account state strategies cap their sizing with.
type accountReader interface {
	UserState(ctx context.Context) (venue.UserState, error)
}

// PositionBook is the tick-local snapshot of open positions, shared between
// the executor and every strategy it runs.
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]venue.Position
}

// NewPositionBook creates an empty book.
func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[string]venue.Position)}
}

// Replace swaps the whole snapshot.
func (b *PositionBook) Replace(positions map[string]venue.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.positions = make(map[string]venue.Position, len(positions))
	for coin, p := range positions {
		b.positions[coin] = p
	}
}

// Get returns the position for one coin.
func (b *PositionBook) Get(coin string) (venue.Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[coin]
	return p, ok
}

// HasOpen reports whether a non-flat position exists for the coin.
func (b *PositionBook) HasOpen(coin string) bool {
	p, ok := b.Get(coin)
	return ok && p.Size != 0
}

// Count returns the number of tracked positions.
func (b *PositionBook) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// Coins lists the tracked coins.
func (b *PositionBook) Coins() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	coins := make([]string, 0, len(b.positions))
	for coin := range b.positions {
		coins = append(coins, coin)
	}
	return coins
}

// deps bundles what every strategy needs.
type deps struct {
	market  marketData
	account accountReader
	book    *PositionBook
	params  Params
}

// usdSize converts a USD notional into a coin size, capped to a fraction of
// the account value. Sizing errors surface as zero so a single coin never
// stalls the pass.
func (d deps) usdSize(ctx context.Context, coin string, baseUSD, accountCapPct float64) (float64, error) {
	if d.params.MaxPositions > 0 && d.book.Count() >= d.params.MaxPositions && !d.book.HasOpen(coin) {
		return 0, nil
	}

	snap, err := d.market.BookSnapshot(ctx, coin)
	if err != nil {
		return 0, err
	}
	if snap.Mid <= 0 {
		return 0, nil
	}

	state, err := d.account.UserState(ctx)
	if err != nil {
		return 0, err
	}
	if capUSD := state.Margin.AccountValue * accountCapPct; baseUSD > capUSD {
		baseUSD = capUSD
	}

	return baseUSD / snap.Mid, nil
}

// closes extracts close prices, oldest first.
func closes(candles []venue.Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, k := range candles {
		out = append(out, k.Close)
	}
	return out
}

func highs(candles []venue.Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, k := range candles {
		out = append(out, k.High)
	}
	return out
}

func lows(candles []venue.Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, k := range candles {
		out = append(out, k.Low)
	}
	return out
}

func volumes(candles []venue.Candle) []float64 {
	out := make([]float64, 0, len(candles))
	for _, k := range candles {
		out = append(out, k.Volume)
	}
	return out
}

func last(xs []float64) float64 {
	return xs[len(xs)-1]
}

func prev(xs []float64) float64 {
	return xs[len(xs)-2]
}
