package strategy

import (
	"strings"

	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// Available lists every strategy name the factory accepts.
var Available = []string{
	"simple_ma",
	"rsi",
	"bollinger_bands",
	"macd",
	"grid_trading",
	"breakout",
}

// New builds one strategy by name.
func New(name string, market marketData, account accountReader, book *PositionBook, params Params) (Strategy, error) {
	switch name {
	case "simple_ma":
		return NewSimpleMA(market, account, book, params), nil
	case "rsi":
		return NewRSI(market, account, book, params), nil
	case "bollinger_bands":
		return NewBollingerBands(market, account, book, params), nil
	case "macd":
		return NewMACD(market, account, book, params), nil
	case "grid_trading":
		return NewGridTrading(market, account, book, params), nil
	case "breakout":
		return NewBreakout(market, account, book, params), nil
	default:
		return nil, errors.Wrapf(exception.ErrConfigUnknownStrategy,
			"%q, available: %s", name, strings.Join(Available, ", "))
	}
}
