package strategy

import (
	"context"
	"math"

	"main/internal/ledger"
	"main/internal/venue"

	"github.com/markcheno/go-talib"
	"github.com/yanun0323/logs"
)

// Breakout enters on volume-confirmed closes beyond recent support or
// resistance and trails an ATR stop under open longs.
type Breakout struct {
	deps
}

// NewBreakout creates the breakout strategy.
func NewBreakout(market marketData, account accountReader, book *PositionBook, params Params) *Breakout {
	return &Breakout{deps{market: market, account: account, book: book, params: params}}
}

func (s *Breakout) Name() string { return "breakout" }

type breakoutKind uint8

const (
	breakoutNone breakoutKind = iota
	breakoutBullish
	breakoutStrongBullish
	breakoutBearish
	breakoutStrongBearish
)

type srLevels struct {
	resistance       float64
	support          float64
	strongResistance float64
	strongSupport    float64
}

// findLevels takes the rolling extreme as the working level and the most
// revisited pivot as the strong one. The extremes stop before the
// confirmation bars, otherwise the breakout bars would raise the level
// they are supposed to clear.
func (s *Breakout) findLevels(candles []venue.Candle) srLevels {
	hs, ls := highs(candles), lows(candles)
	n := len(candles)

	end := n - s.params.ConfirmationBars
	if end < 1 {
		end = 1
	}
	window := s.params.LookbackPeriod
	if window > end {
		window = end
	}
	levels := srLevels{
		resistance: hs[end-window],
		support:    ls[end-window],
	}
	for i := end - window; i < end; i++ {
		levels.resistance = math.Max(levels.resistance, hs[i])
		levels.support = math.Min(levels.support, ls[i])
	}

	pivotHighs := map[float64]int{}
	pivotLows := map[float64]int{}
	for i := 5; i < n-5; i++ {
		isHigh, isLow := true, true
		for j := i - 5; j < i+5; j++ {
			if hs[j] > hs[i] {
				isHigh = false
			}
			if ls[j] < ls[i] {
				isLow = false
			}
		}
		if isHigh {
			pivotHighs[math.Round(hs[i]*100)/100]++
		}
		if isLow {
			pivotLows[math.Round(ls[i]*100)/100]++
		}
	}
	best := 0
	for price, count := range pivotHighs {
		if count > best {
			best, levels.strongResistance = count, price
		}
	}
	best = 0
	for price, count := range pivotLows {
		if count > best {
			best, levels.strongSupport = count, price
		}
	}
	return levels
}

func (s *Breakout) detect(candles []venue.Candle, levels srLevels) breakoutKind {
	n := len(candles)
	cs, vs := closes(candles), volumes(candles)
	current := cs[n-1]

	volWindow := 20
	if volWindow > n {
		volWindow = n
	}
	var avgVolume float64
	for _, v := range vs[n-volWindow:] {
		avgVolume += v
	}
	avgVolume /= float64(volWindow)
	if vs[n-1] < avgVolume*s.params.VolumeMultiplier {
		return breakoutNone
	}

	bars := s.params.ConfirmationBars
	if bars > n {
		bars = n
	}
	allAbove, allBelow := true, true
	for _, c := range cs[n-bars:] {
		if c <= levels.resistance {
			allAbove = false
		}
		if c >= levels.support {
			allBelow = false
		}
	}

	if allAbove {
		if levels.strongResistance > 0 && current > levels.strongResistance {
			return breakoutStrongBullish
		}
		return breakoutBullish
	}
	if allBelow {
		if levels.strongSupport > 0 && current < levels.strongSupport {
			return breakoutStrongBearish
		}
		return breakoutBearish
	}
	return breakoutNone
}

func (s *Breakout) GenerateSignal(ctx context.Context, coin string) (*Signal, error) {
	lookback := s.params.LookbackPeriod * 2
	if lookback < 50 {
		lookback = 50
	}
	candles, err := s.market.Candles(ctx, coin, "15m", lookback)
	if err != nil {
		return nil, err
	}
	if len(candles) < s.params.LookbackPeriod+s.params.ATRPeriod {
		return nil, nil
	}

	atr := talib.Atr(highs(candles), lows(candles), closes(candles), s.params.ATRPeriod)
	levels := s.findLevels(candles)
	kind := s.detect(candles, levels)

	hasOpen := s.book.HasOpen(coin)
	position, _ := s.book.Get(coin)
	hasLong := position.Size > 0

	switch {
	case (kind == breakoutBullish || kind == breakoutStrongBullish) && !hasOpen:
		confidence := 0.7
		if kind == breakoutStrongBullish {
			confidence = 0.85
		}
		logs.Infof("bullish breakout, coin: %s, above: %.2f", coin, levels.resistance)
		return &Signal{
			Side: ledger.SideBuy, Type: ledger.TypeMarket, Confidence: confidence,
			StopLoss: levels.resistance - last(atr)*1.5,
		}, nil
	case (kind == breakoutBearish || kind == breakoutStrongBearish) && hasLong:
		confidence := 0.75
		if kind == breakoutStrongBearish {
			confidence = 0.9
		}
		logs.Infof("bearish breakout, coin: %s, below: %.2f", coin, levels.support)
		return &Signal{Side: ledger.SideSell, Type: ledger.TypeMarket, ReduceOnly: true, Confidence: confidence}, nil
	case hasLong:
		// ATR trailing stop.
		if current := last(closes(candles)); current < position.EntryPrice-last(atr)*2 {
			logs.Infof("atr stop triggered, coin: %s", coin)
			return &Signal{Side: ledger.SideSell, Type: ledger.TypeMarket, ReduceOnly: true, Confidence: 1.0}, nil
		}
	}
	return nil, nil
}

func (s *Breakout) SizePosition(ctx context.Context, coin string, sig *Signal) (float64, error) {
	baseUSD := s.params.PositionSizeUSD * sig.Confidence

	candles, err := s.market.Candles(ctx, coin, "15m", 30)
	if err == nil && len(candles) > s.params.ATRPeriod {
		atr := talib.Atr(highs(candles), lows(candles), closes(candles), s.params.ATRPeriod)
		if snap, err := s.market.BookSnapshot(ctx, coin); err == nil && snap.Mid > 0 {
			switch atrPct := last(atr) / snap.Mid * 100; {
			case atrPct > 3:
				baseUSD *= 0.7
			case atrPct < 1:
				baseUSD *= 1.3
			}
		}
	}

	return s.usdSize(ctx, coin, baseUSD, 0.1)
}
