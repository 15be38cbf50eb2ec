package strategy

import (
	"context"

	"main/internal/ledger"

	"github.com/markcheno/go-talib"
	"github.com/yanun0323/logs"
)

// RSI fades oversold and overbought extremes on 15m candles.
type RSI struct {
	deps
}

// NewRSI creates the mean-reversion strategy.
func NewRSI(market marketData, account accountReader, book *PositionBook, params Params) *RSI {
	return &RSI{deps{market: market, account: account, book: book, params: params}}
}

func (s *RSI) Name() string { return "rsi" }

func (s *RSI) rsi(ctx context.Context, coin string, lookback int) ([]float64, error) {
	candles, err := s.market.Candles(ctx, coin, "15m", lookback)
	if err != nil {
		return nil, err
	}
	if len(candles) < s.params.RSIPeriod+2 {
		return nil, nil
	}
	return talib.Rsi(closes(candles), s.params.RSIPeriod), nil
}

func (s *RSI) GenerateSignal(ctx context.Context, coin string) (*Signal, error) {
	rsi, err := s.rsi(ctx, coin, s.params.RSIPeriod+20)
	if err != nil || rsi == nil {
		return nil, err
	}

	hasLong := false
	if p, ok := s.book.Get(coin); ok && p.Size > 0 {
		hasLong = true
	}

	switch {
	case prev(rsi) >= s.params.Oversold && last(rsi) < s.params.Oversold:
		if !s.book.HasOpen(coin) {
			logs.Infof("rsi oversold, coin: %s, rsi: %.2f", coin, last(rsi))
			return &Signal{Side: ledger.SideBuy, Type: ledger.TypeLimit, PostOnly: true, Confidence: 0.8}, nil
		}
	case prev(rsi) <= s.params.Overbought && last(rsi) > s.params.Overbought:
		if hasLong {
			logs.Infof("rsi overbought, coin: %s, rsi: %.2f", coin, last(rsi))
			return &Signal{Side: ledger.SideSell, Type: ledger.TypeMarket, ReduceOnly: true, Confidence: 0.8}, nil
		}
	case hasLong && last(rsi) > s.params.Overbought-5:
		return &Signal{Side: ledger.SideSell, Type: ledger.TypeLimit, ReduceOnly: true, Confidence: 0.6}, nil
	}
	return nil, nil
}

func (s *RSI) SizePosition(ctx context.Context, coin string, sig *Signal) (float64, error) {
	baseUSD := s.params.PositionSizeUSD * sig.Confidence

	// Deeper oversold readings earn a larger entry.
	if sig.Side == ledger.SideBuy {
		if rsi, err := s.rsi(ctx, coin, s.params.RSIPeriod+20); err == nil && rsi != nil {
			switch {
			case last(rsi) < 25:
				baseUSD *= 1.5
			case last(rsi) < 35:
				baseUSD *= 1.2
			}
		}
	}

	return s.usdSize(ctx, coin, baseUSD, 0.1)
}
