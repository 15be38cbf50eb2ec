package strategy

import (
	"context"
	"math"

	"main/internal/ledger"
	"main/internal/venue"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// orderPlacer is the slice of the ledger the executor trades through.
type orderPlacer interface {
	Submit(ctx context.Context, req ledger.SubmitRequest) (ledger.Order, error)
	Positions(ctx context.Context) (map[string]venue.Position, error)
}

// riskGate caps new position sizes. Reduce-only orders bypass it.
type riskGate interface {
	PositionSizeLimit(ctx context.Context, price float64) float64
}

// Executor drives one strategy pass: refresh positions, close what hit the
// profit or loss bounds, then act on fresh signals. A failure on one coin
// never blocks the rest.
type Executor struct {
	market marketData
	orders orderPlacer
	risk   riskGate
	book   *PositionBook
	params Params
}

// NewExecutor wires the pipeline. risk may be nil, which disables the
// size clamp.
func NewExecutor(market marketData, orders orderPlacer, risk riskGate, book *PositionBook, params Params) *Executor {
	return &Executor{
		market: market,
		orders: orders,
		risk:   risk,
		book:   book,
		params: params,
	}
}

// Book exposes the shared position snapshot.
func (e *Executor) Book() *PositionBook {
	return e.book
}

// Run executes one pass of the strategy over the given coins.
func (e *Executor) Run(ctx context.Context, strat Strategy, coins []string) error {
	positions, err := e.orders.Positions(ctx)
	if err != nil {
		return errors.Wrap(err, "refresh positions")
	}
	e.book.Replace(positions)

	for _, coin := range coins {
		if err := e.runCoin(ctx, strat, coin); err != nil {
			logs.Errorf("strategy %s failed on %s, err: %+v", strat.Name(), coin, err)
		}
	}
	return nil
}

func (e *Executor) runCoin(ctx context.Context, strat Strategy, coin string) error {
	if e.shouldClose(coin) {
		return e.closePosition(ctx, coin)
	}

	sig, err := strat.GenerateSignal(ctx, coin)
	if err != nil {
		return errors.Wrap(err, "generate signal")
	}
	if sig == nil {
		return nil
	}
	return e.execute(ctx, strat, coin, sig)
}

// shouldClose checks the position's PnL against the take-profit and
// stop-loss bounds, measured against the margin backing it.
func (e *Executor) shouldClose(coin string) bool {
	position, ok := e.book.Get(coin)
	if !ok || position.Size == 0 || position.MarginUsed <= 0 {
		return false
	}

	pnlPct := position.UnrealizedPnL / position.MarginUsed * 100
	if pnlPct >= e.params.TakeProfitPct {
		logs.Infof("take profit triggered, coin: %s, pnl: %.2f%%", coin, pnlPct)
		return true
	}
	if pnlPct <= -e.params.StopLossPct {
		logs.Infof("stop loss triggered, coin: %s, pnl: %.2f%%", coin, pnlPct)
		return true
	}
	return false
}

func (e *Executor) closePosition(ctx context.Context, coin string) error {
	position, ok := e.book.Get(coin)
	if !ok || position.Size == 0 {
		return nil
	}

	side := ledger.SideSell
	if position.Size < 0 {
		side = ledger.SideBuy
	}
	size := roundTo(math.Abs(position.Size), e.market.SizeDecimals(ctx, coin))
	if size <= 0 {
		return nil
	}

	_, err := e.orders.Submit(ctx, ledger.SubmitRequest{
		Coin:       coin,
		Side:       side,
		Type:       ledger.TypeMarket,
		Size:       size,
		ReduceOnly: true,
	})
	if err != nil {
		return errors.Wrap(err, "close position")
	}
	logs.Infof("closed position, coin: %s, size: %v", coin, size)
	return nil
}

func (e *Executor) execute(ctx context.Context, strat Strategy, coin string, sig *Signal) error {
	size, err := strat.SizePosition(ctx, coin, sig)
	if err != nil {
		return errors.Wrap(err, "size position")
	}
	if size <= 0 {
		return nil
	}

	decimals := e.market.SizeDecimals(ctx, coin)
	size = roundTo(size, decimals)
	if size <= 0 {
		return nil
	}

	snap, err := e.market.BookSnapshot(ctx, coin)
	if err != nil {
		return errors.Wrap(err, "fetch book")
	}

	price := sig.LimitPrice
	if sig.Type == ledger.TypeLimit && price == 0 {
		if sig.Side == ledger.SideBuy {
			price = snap.Bid
		} else {
			price = snap.Ask
		}
	}

	refPrice := price
	if sig.Type == ledger.TypeMarket {
		refPrice = snap.Mid
	}
	if !sig.ReduceOnly && e.risk != nil && refPrice > 0 {
		if limit := e.risk.PositionSizeLimit(ctx, refPrice); size > limit {
			logs.Warnf("size %v clamped to risk limit %v, coin: %s", size, limit, coin)
			size = roundTo(limit, decimals)
			if size <= 0 {
				return nil
			}
		}
	}

	_, err = e.orders.Submit(ctx, ledger.SubmitRequest{
		Coin:       coin,
		Side:       sig.Side,
		Type:       sig.Type,
		Size:       size,
		Price:      price,
		ReduceOnly: sig.ReduceOnly,
		PostOnly:   sig.PostOnly,
	})
	if err != nil {
		return errors.Wrap(err, "submit order")
	}
	return nil
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
