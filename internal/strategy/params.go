package strategy

// Params carries every tunable the strategies read. Defaults match the
// values the strategies were tuned with; deployments override them through
// the strategy params file.
type Params struct {
	PositionSizeUSD float64 `yaml:"position_size_usd"`
	MaxPositions    int     `yaml:"max_positions"`
	TakeProfitPct   float64 `yaml:"take_profit_percent"`
	StopLossPct     float64 `yaml:"stop_loss_percent"`

	// simple_ma
	FastMAPeriod int `yaml:"fast_ma_period"`
	SlowMAPeriod int `yaml:"slow_ma_period"`

	// rsi
	RSIPeriod  int     `yaml:"rsi_period"`
	Oversold   float64 `yaml:"oversold_threshold"`
	Overbought float64 `yaml:"overbought_threshold"`

	// bollinger_bands
	BBPeriod         int     `yaml:"bb_period"`
	BBStdDev         float64 `yaml:"std_dev"`
	SqueezeThreshold float64 `yaml:"squeeze_threshold"`

	// macd
	FastEMA   int `yaml:"fast_ema"`
	SlowEMA   int `yaml:"slow_ema"`
	SignalEMA int `yaml:"signal_ema"`

	// grid_trading
	GridLevels     int     `yaml:"grid_levels"`
	GridSpacingPct float64 `yaml:"grid_spacing_pct"`
	GridSizeUSD    float64 `yaml:"position_size_per_grid"`
	RangePeriod    int     `yaml:"range_period"`
	GridMaxOpen    int     `yaml:"grid_max_positions"`

	// breakout
	LookbackPeriod   int     `yaml:"lookback_period"`
	VolumeMultiplier float64 `yaml:"volume_multiplier"`
	ConfirmationBars int     `yaml:"breakout_confirmation_bars"`
	ATRPeriod        int     `yaml:"atr_period"`
}

// DefaultParams returns the baseline tuning.
func DefaultParams() Params {
	return Params{
		PositionSizeUSD: 100,
		MaxPositions:    3,
		TakeProfitPct:   10,
		StopLossPct:     5,

		FastMAPeriod: 10,
		SlowMAPeriod: 30,

		RSIPeriod:  14,
		Oversold:   30,
		Overbought: 70,

		BBPeriod:         20,
		BBStdDev:         2,
		SqueezeThreshold: 0.02,

		FastEMA:   12,
		SlowEMA:   26,
		SignalEMA: 9,

		GridLevels:     10,
		GridSpacingPct: 0.5,
		GridSizeUSD:    50,
		RangePeriod:    100,
		GridMaxOpen:    5,

		LookbackPeriod:   20,
		VolumeMultiplier: 1.5,
		ConfirmationBars: 2,
		ATRPeriod:        14,
	}
}

// DefaultParamsFor layers the per-strategy profit and loss bounds over the
// baseline. Grid trading takes profit early and tolerates deeper drawdown
// per rung; breakout rides winners longer.
func DefaultParamsFor(name string) Params {
	p := DefaultParams()
	switch name {
	case "simple_ma", "rsi", "bollinger_bands", "macd":
		p.TakeProfitPct = 5
		p.StopLossPct = 2
	case "grid_trading":
		p.TakeProfitPct = 2
		p.StopLossPct = 5
		p.MaxPositions = 5
	case "breakout":
		p.TakeProfitPct = 7
		p.StopLossPct = 3
	}
	return p
}
