package config

import (
	"os"

	"main/internal/strategy"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gopkg.in/yaml.v3"
)

// LoadParams builds the tuning for one strategy: per-strategy defaults,
// overridden by the matching section of the params file when one is set.
//
// The file holds one section per strategy name:
//
//	simple_ma:
//	  fast_ma_period: 12
//	  position_size_usd: 150
func LoadParams(name, path string) (strategy.Params, error) {
	params := strategy.DefaultParamsFor(name)
	if path == "" {
		return params, validateParams(name, params)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return params, errors.Wrapf(err, "read params file %s", path)
	}

	var sections map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &sections); err != nil {
		return params, errors.Wrapf(err, "parse params file %s", path)
	}

	if node, ok := sections[name]; ok {
		// Decoding into the populated struct keeps defaults for absent keys.
		if err := node.Decode(&params); err != nil {
			return params, errors.Wrapf(err, "decode %s params", name)
		}
		logs.Infof("loaded %s params from %s", name, path)
	}
	return params, validateParams(name, params)
}

func validateParams(name string, p strategy.Params) error {
	fail := func(msg string) error {
		return errors.Wrapf(exception.ErrConfigParamOutOfRange, "%s: %s", name, msg)
	}

	if p.PositionSizeUSD <= 0 {
		return fail("position_size_usd must be > 0")
	}
	if p.MaxPositions <= 0 {
		return fail("max_positions must be > 0")
	}
	if p.TakeProfitPct <= 0 || p.StopLossPct <= 0 {
		return fail("take_profit_percent and stop_loss_percent must be > 0")
	}

	switch name {
	case "simple_ma":
		if p.FastMAPeriod <= 0 || p.SlowMAPeriod <= p.FastMAPeriod {
			return fail("require 0 < fast_ma_period < slow_ma_period")
		}
	case "rsi":
		if p.RSIPeriod <= 1 {
			return fail("rsi_period must be > 1")
		}
		if p.Oversold <= 0 || p.Overbought >= 100 || p.Oversold >= p.Overbought {
			return fail("require 0 < oversold_threshold < overbought_threshold < 100")
		}
	case "bollinger_bands":
		if p.BBPeriod <= 1 || p.BBStdDev <= 0 {
			return fail("require bb_period > 1 and std_dev > 0")
		}
	case "macd":
		if p.FastEMA <= 0 || p.SlowEMA <= p.FastEMA || p.SignalEMA <= 0 {
			return fail("require 0 < fast_ema < slow_ema and signal_ema > 0")
		}
	case "grid_trading":
		if p.GridLevels < 2 || p.GridSpacingPct <= 0 || p.GridSizeUSD <= 0 {
			return fail("require grid_levels >= 2, grid_spacing_pct > 0, position_size_per_grid > 0")
		}
	case "breakout":
		if p.LookbackPeriod <= 1 || p.ATRPeriod <= 1 || p.ConfirmationBars <= 0 {
			return fail("require lookback_period > 1, atr_period > 1, breakout_confirmation_bars > 0")
		}
	}
	return nil
}
