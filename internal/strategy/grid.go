package strategy

import (
	"context"
	"fmt"
	"math"
	"sort"

	"main/internal/ledger"
	"main/internal/venue"

	"github.com/yanun0323/logs"
)

// GridTrading lays a ladder of limit orders around the current price while
// the market ranges, buying below and selling above.
type GridTrading struct {
	deps
	grids map[string]*gridState
}

// NewGridTrading creates the grid strategy.
func NewGridTrading(market marketData, account accountReader, book *PositionBook, params Params) *GridTrading {
	return &GridTrading{
		deps:  deps{market: market, account: account, book: book, params: params},
		grids: make(map[string]*gridState),
	}
}

func (s *GridTrading) Name() string { return "grid_trading" }

type gridLevel struct {
	side  ledger.Side
	price float64
}

type gridState struct {
	levels     []gridLevel
	filled     map[string]bool
	builtAtBar int64
}

type priceRange struct {
	high       float64
	low        float64
	current    float64
	rangePct   float64
	volatility float64
	isRanging  bool
}

func analyzeRange(candles []venue.Candle) priceRange {
	r := priceRange{current: candles[len(candles)-1].Close}
	r.high = candles[0].High
	r.low = candles[0].Low
	for _, k := range candles {
		r.high = math.Max(r.high, k.High)
		r.low = math.Min(r.low, k.Low)
	}
	if r.current > 0 {
		r.rangePct = (r.high - r.low) / r.current * 100
	}

	// Realized volatility over the window: stddev of bar returns scaled by
	// the window length.
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close != 0 {
			returns = append(returns, candles[i].Close/candles[i-1].Close-1)
		}
	}
	if len(returns) > 1 {
		var mean float64
		for _, x := range returns {
			mean += x
		}
		mean /= float64(len(returns))
		var variance float64
		for _, x := range returns {
			variance += (x - mean) * (x - mean)
		}
		variance /= float64(len(returns) - 1)
		r.volatility = math.Sqrt(variance) * math.Sqrt(float64(len(candles)))
	}

	r.isRanging = r.rangePct < 10 && r.volatility < 0.15
	return r
}

func (s *GridTrading) buildLevels(r priceRange) []gridLevel {
	interval := r.current * s.params.GridSpacingPct / 100

	var levels []gridLevel
	for i := 0; i < s.params.GridLevels/2; i++ {
		buy := r.current - interval*float64(i+1)
		sell := r.current + interval*float64(i+1)

		if buy > r.low*0.98 {
			levels = append(levels, gridLevel{side: ledger.SideBuy, price: buy})
		}
		if sell < r.high*1.02 {
			levels = append(levels, gridLevel{side: ledger.SideSell, price: sell})
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].price < levels[j].price })
	return levels
}

func (s *GridTrading) GenerateSignal(ctx context.Context, coin string) (*Signal, error) {
	candles, err := s.market.Candles(ctx, coin, "15m", s.params.RangePeriod)
	if err != nil {
		return nil, err
	}
	if len(candles) < 50 {
		return nil, nil
	}

	r := analyzeRange(candles)
	if !r.isRanging {
		logs.Debugf("not a ranging market, skipping grid, coin: %s", coin)
		return nil, nil
	}

	lastBar := candles[len(candles)-1].OpenTime
	grid, ok := s.grids[coin]
	if !ok {
		grid = &gridState{levels: s.buildLevels(r), filled: make(map[string]bool), builtAtBar: lastBar}
		s.grids[coin] = grid
	}

	maxOpen := s.params.GridMaxOpen
	if maxOpen <= 0 {
		maxOpen = s.params.MaxPositions
	}

	for _, level := range grid.levels {
		key := fmt.Sprintf("%s_%.2f", level.side, level.price)
		if grid.filled[key] {
			continue
		}

		switch level.side {
		case ledger.SideBuy:
			if r.current <= level.price*1.001 && s.book.Count() < maxOpen {
				logs.Infof("grid buy, coin: %s, price: %.2f", coin, level.price)
				grid.filled[key] = true
				return &Signal{
					Side: ledger.SideBuy, Type: ledger.TypeLimit, PostOnly: true,
					Confidence: 0.6, LimitPrice: level.price,
				}, nil
			}
		case ledger.SideSell:
			if p, ok := s.book.Get(coin); ok && p.Size > 0 && r.current >= level.price*0.999 {
				logs.Infof("grid sell, coin: %s, price: %.2f", coin, level.price)
				grid.filled[key] = true
				return &Signal{
					Side: ledger.SideSell, Type: ledger.TypeLimit, PostOnly: true, ReduceOnly: true,
					Confidence: 0.6, LimitPrice: level.price,
				}, nil
			}
		}
	}

	// Rebuild a stale ladder around the new price.
	if ageBars := (lastBar - grid.builtAtBar) / (15 * 60 * 1000); ageBars > 20 {
		s.grids[coin] = &gridState{levels: s.buildLevels(r), filled: make(map[string]bool), builtAtBar: lastBar}
		logs.Infof("grid levels recalculated, coin: %s", coin)
	}
	return nil, nil
}

func (s *GridTrading) SizePosition(ctx context.Context, coin string, _ *Signal) (float64, error) {
	baseUSD := s.params.GridSizeUSD

	// Ladder mostly consumed: halve the step size.
	if grid, ok := s.grids[coin]; ok {
		if float64(len(grid.filled)) > float64(s.params.GridLevels)*0.7 {
			baseUSD *= 0.5
		}
	}

	snap, err := s.market.BookSnapshot(ctx, coin)
	if err != nil {
		return 0, err
	}
	if snap.Mid <= 0 {
		return 0, nil
	}

	state, err := s.account.UserState(ctx)
	if err != nil {
		return 0, err
	}
	if capUSD := state.Margin.AccountValue * 0.05; baseUSD > capUSD {
		baseUSD = capUSD
	}
	return baseUSD / snap.Mid, nil
}
