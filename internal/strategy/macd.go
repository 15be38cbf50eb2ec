package strategy

import (
	"context"
	"math"

	"main/internal/ledger"

	"github.com/markcheno/go-talib"
	"github.com/yanun0323/logs"
)

// MACD trades signal-line crossovers on 15m candles, with histogram
// divergence as a confidence booster.
type MACD struct {
	deps
}

// NewMACD creates the momentum strategy.
func NewMACD(market marketData, account accountReader, book *PositionBook, params Params) *MACD {
	return &MACD{deps{market: market, account: account, book: book, params: params}}
}

func (s *MACD) Name() string { return "macd" }

func (s *MACD) lookback() int {
	return max(s.params.SlowEMA, s.params.FastEMA) + s.params.SignalEMA + 20
}

type macdSeries struct {
	candles int
	closes  []float64
	highs   []float64
	lows    []float64
	line    []float64
	signal  []float64
	hist    []float64
}

func (s *MACD) series(ctx context.Context, coin string, lookback int) (*macdSeries, error) {
	candles, err := s.market.Candles(ctx, coin, "15m", lookback)
	if err != nil {
		return nil, err
	}
	if len(candles) < s.params.SlowEMA+s.params.SignalEMA+2 {
		return nil, nil
	}

	cs := closes(candles)
	line, signal, hist := talib.Macd(cs, s.params.FastEMA, s.params.SlowEMA, s.params.SignalEMA)
	return &macdSeries{
		candles: len(candles),
		closes:  cs,
		highs:   highs(candles),
		lows:    lows(candles),
		line:    line,
		signal:  signal,
		hist:    hist,
	}, nil
}

// divergence compares the two most extreme recent bars: a lower price low
// with a higher histogram is bullish, a higher high with a lower histogram
// bearish.
func (m *macdSeries) divergence(window int) (bullish, bearish bool) {
	if m.candles < window {
		return false, false
	}
	start := len(m.closes) - window

	lo1, lo2 := -1, -1
	hi1, hi2 := -1, -1
	for i := start; i < len(m.closes); i++ {
		if lo1 < 0 || m.lows[i] < m.lows[lo1] {
			lo2, lo1 = lo1, i
		} else if lo2 < 0 || m.lows[i] < m.lows[lo2] {
			lo2 = i
		}
		if hi1 < 0 || m.highs[i] > m.highs[hi1] {
			hi2, hi1 = hi1, i
		} else if hi2 < 0 || m.highs[i] > m.highs[hi2] {
			hi2 = i
		}
	}

	if lo1 >= 0 && lo2 >= 0 {
		first, second := lo1, lo2
		if first > second {
			first, second = second, first
		}
		bullish = m.lows[second] < m.lows[first] && m.hist[second] > m.hist[first]
	}
	if hi1 >= 0 && hi2 >= 0 {
		first, second := hi1, hi2
		if first > second {
			first, second = second, first
		}
		bearish = m.highs[second] > m.highs[first] && m.hist[second] < m.hist[first]
	}
	return bullish, bearish
}

func (s *MACD) GenerateSignal(ctx context.Context, coin string) (*Signal, error) {
	m, err := s.series(ctx, coin, s.lookback())
	if err != nil || m == nil {
		return nil, err
	}

	histIncreasing := last(m.hist) > prev(m.hist)
	bullDiv, bearDiv := m.divergence(20)

	hasOpen := s.book.HasOpen(coin)
	hasLong := false
	if p, ok := s.book.Get(coin); ok && p.Size > 0 {
		hasLong = true
	}

	switch {
	case prev(m.line) <= prev(m.signal) && last(m.line) > last(m.signal):
		// Only crossovers below zero: entries into momentum turning up from
		// a drawdown, not chasing tops.
		if !hasOpen && last(m.line) < 0 {
			confidence := 0.7
			if bullDiv {
				confidence = 0.85
				logs.Infof("bullish divergence, coin: %s", coin)
			}
			logs.Infof("macd bullish crossover, coin: %s, macd: %.4f", coin, last(m.line))
			return &Signal{Side: ledger.SideBuy, Type: ledger.TypeLimit, PostOnly: true, Confidence: confidence}, nil
		}
	case !hasOpen && bullDiv && histIncreasing:
		logs.Infof("macd bullish divergence signal, coin: %s", coin)
		return &Signal{Side: ledger.SideBuy, Type: ledger.TypeLimit, PostOnly: true, Confidence: 0.75}, nil
	case prev(m.line) >= prev(m.signal) && last(m.line) < last(m.signal):
		if hasLong {
			confidence := 0.75
			if bearDiv {
				confidence = 0.9
				logs.Infof("bearish divergence, coin: %s", coin)
			}
			logs.Infof("macd bearish crossover, coin: %s, macd: %.4f", coin, last(m.line))
			return &Signal{Side: ledger.SideSell, Type: ledger.TypeMarket, ReduceOnly: true, Confidence: confidence}, nil
		}
	case hasLong && last(m.hist) <= 0 && !histIncreasing:
		return &Signal{Side: ledger.SideSell, Type: ledger.TypeLimit, ReduceOnly: true, Confidence: 0.6}, nil
	}
	return nil, nil
}

func (s *MACD) SizePosition(ctx context.Context, coin string, sig *Signal) (float64, error) {
	baseUSD := s.params.PositionSizeUSD * sig.Confidence

	if m, err := s.series(ctx, coin, 50); err == nil && m != nil && last(m.closes) != 0 {
		strength := math.Abs(last(m.hist) / last(m.closes) * 100)
		switch {
		case strength > 0.5:
			baseUSD *= 1.3
		case strength < 0.1:
			baseUSD *= 0.7
		}
	}

	return s.usdSize(ctx, coin, baseUSD, 0.1)
}
