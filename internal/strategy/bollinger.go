package strategy

import (
	"context"

	"main/internal/ledger"

	"github.com/markcheno/go-talib"
	"github.com/yanun0323/logs"
)

// BollingerBands buys lower-band touches in volatile regimes and exits at
// the upper band, with a volatility-expansion entry during squeezes.
type BollingerBands struct {
	deps
}

// NewBollingerBands creates the band strategy.
func NewBollingerBands(market marketData, account accountReader, book *PositionBook, params Params) *BollingerBands {
	return &BollingerBands{deps{market: market, account: account, book: book, params: params}}
}

func (s *BollingerBands) Name() string { return "bollinger_bands" }

type bands struct {
	closes []float64
	upper  []float64
	middle []float64
	lower  []float64
	width  []float64
}

func (s *BollingerBands) bands(ctx context.Context, coin string, lookback int) (*bands, error) {
	candles, err := s.market.Candles(ctx, coin, "15m", lookback)
	if err != nil {
		return nil, err
	}
	if len(candles) < s.params.BBPeriod+2 {
		return nil, nil
	}

	cs := closes(candles)
	upper, middle, lower := talib.BBands(cs, s.params.BBPeriod, s.params.BBStdDev, s.params.BBStdDev, talib.SMA)

	width := make([]float64, len(cs))
	for i := range cs {
		if middle[i] != 0 {
			width[i] = (upper[i] - lower[i]) / middle[i]
		}
	}
	return &bands{closes: cs, upper: upper, middle: middle, lower: lower, width: width}, nil
}

func (s *BollingerBands) GenerateSignal(ctx context.Context, coin string) (*Signal, error) {
	b, err := s.bands(ctx, coin, s.params.BBPeriod+20)
	if err != nil || b == nil {
		return nil, err
	}

	close, lower, upper, middle := last(b.closes), last(b.lower), last(b.upper), last(b.middle)
	width := last(b.width)
	hasOpen := s.book.HasOpen(coin)
	hasLong := false
	if p, ok := s.book.Get(coin); ok && p.Size > 0 {
		hasLong = true
	}

	switch {
	case prev(b.closes) >= prev(b.lower) && close < lower:
		if !hasOpen && width > s.params.SqueezeThreshold {
			logs.Infof("lower band touch, coin: %s, close: %.2f, lower: %.2f", coin, close, lower)
			return &Signal{Side: ledger.SideBuy, Type: ledger.TypeLimit, PostOnly: true, Confidence: 0.75}, nil
		}
	case close < lower*0.995:
		if !hasOpen {
			logs.Infof("strong oversold below band, coin: %s, close: %.2f", coin, close)
			return &Signal{Side: ledger.SideBuy, Type: ledger.TypeMarket, Confidence: 0.85}, nil
		}
	case prev(b.closes) <= prev(b.upper) && close > upper:
		if hasLong {
			logs.Infof("upper band touch, coin: %s, close: %.2f, upper: %.2f", coin, close, upper)
			return &Signal{Side: ledger.SideSell, Type: ledger.TypeMarket, ReduceOnly: true, Confidence: 0.8}, nil
		}
	case hasLong:
		if span := upper - lower; span > 0 && close > middle && (close-lower)/span > 0.8 {
			return &Signal{Side: ledger.SideSell, Type: ledger.TypeLimit, ReduceOnly: true, Confidence: 0.6}, nil
		}
	}

	if width < s.params.SqueezeThreshold && !hasOpen {
		if sig := s.volatilityBreakout(b); sig != nil {
			return sig, nil
		}
	}
	return nil, nil
}

// volatilityBreakout flags a squeeze resolving upward: band width jumping
// past its recent average with price moving up.
func (s *BollingerBands) volatilityBreakout(b *bands) *Signal {
	if len(b.width) < 5 {
		return nil
	}
	var recent float64
	for _, w := range b.width[len(b.width)-5:] {
		recent += w
	}
	recent /= 5

	if last(b.width) > recent*1.5 && last(b.closes) > prev(b.closes) {
		logs.Info("volatility expansion, bullish breakout")
		return &Signal{Side: ledger.SideBuy, Type: ledger.TypeMarket, Confidence: 0.7}
	}
	return nil
}

func (s *BollingerBands) SizePosition(ctx context.Context, coin string, sig *Signal) (float64, error) {
	baseUSD := s.params.PositionSizeUSD * sig.Confidence

	// Scale down in wide bands, up in tight ones.
	if b, err := s.bands(ctx, coin, s.params.BBPeriod+10); err == nil && b != nil {
		switch width := last(b.width); {
		case width > 0.05:
			baseUSD *= 0.8
		case width < 0.02:
			baseUSD *= 1.2
		}
	}

	return s.usdSize(ctx, coin, baseUSD, 0.1)
}
