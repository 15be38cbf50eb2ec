package strategy

import (
	"context"

	"main/internal/ledger"

	"github.com/markcheno/go-talib"
	"github.com/yanun0323/logs"
)

// SimpleMA trades fast/slow moving-average crossovers on 5m candles.
type SimpleMA struct {
	deps
}

// NewSimpleMA creates the crossover strategy.
func NewSimpleMA(market marketData, account accountReader, book *PositionBook, params Params) *SimpleMA {
	return &SimpleMA{deps{market: market, account: account, book: book, params: params}}
}

func (s *SimpleMA) Name() string { return "simple_ma" }

func (s *SimpleMA) GenerateSignal(ctx context.Context, coin string) (*Signal, error) {
	lookback := max(s.params.FastMAPeriod, s.params.SlowMAPeriod) + 10
	candles, err := s.market.Candles(ctx, coin, "5m", lookback)
	if err != nil {
		return nil, err
	}
	if len(candles) < s.params.SlowMAPeriod+1 {
		return nil, nil
	}

	cs := closes(candles)
	fast := talib.Sma(cs, s.params.FastMAPeriod)
	slow := talib.Sma(cs, s.params.SlowMAPeriod)

	hasLong := false
	if p, ok := s.book.Get(coin); ok && p.Size > 0 {
		hasLong = true
	}

	switch {
	case prev(fast) <= prev(slow) && last(fast) > last(slow):
		if !s.book.HasOpen(coin) {
			logs.Infof("bullish crossover detected, coin: %s", coin)
			return &Signal{Side: ledger.SideBuy, Type: ledger.TypeLimit, PostOnly: true, Confidence: 0.7}, nil
		}
	case prev(fast) >= prev(slow) && last(fast) < last(slow):
		if hasLong {
			logs.Infof("bearish crossover detected, coin: %s", coin)
			return &Signal{Side: ledger.SideSell, Type: ledger.TypeMarket, ReduceOnly: true, Confidence: 0.8}, nil
		}
	}
	return nil, nil
}

func (s *SimpleMA) SizePosition(ctx context.Context, coin string, sig *Signal) (float64, error) {
	return s.usdSize(ctx, coin, s.params.PositionSizeUSD*sig.Confidence, 0.1)
}
