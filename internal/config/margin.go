package config

import (
	"fmt"

	"main/internal/strategy"

	"github.com/yanun0323/logs"
)

const (
	// Margin backing one position at the venue's default leverage.
	_marginRequirement = 0.1
	// The venue demands extra margin when a position is first opened.
	_initialMarginMultiplier = 3.0
	_safetyBuffer            = 1.5
)

// minOrderUSD is the smallest order value the venue accepts per coin.
var minOrderUSD = map[string]float64{
	"BTC": 100.0,
	"ETH": 100.0,
}

const _defaultMinOrderUSD = 50.0

// riskMultiplier scales the margin estimate by how order-hungry a strategy
// is: grids hold many rungs at once, breakouts ride volatile moves.
var riskMultiplier = map[string]float64{
	"grid_trading":    2.0,
	"breakout":        1.5,
	"bollinger_bands": 1.2,
	"simple_ma":       1.0,
	"rsi":             1.0,
	"macd":            1.0,
}

// ValidationResult reports whether a strategy configuration is viable on
// the current account, with concrete fixes when it is not.
type ValidationResult struct {
	Valid           bool
	Message         string
	Recommendations []string
}

// ValidateMargin estimates the margin a strategy configuration needs at
// full deployment and checks the account covers it.
func ValidateMargin(name string, params strategy.Params, coins []string, accountValue float64) ValidationResult {
	if accountValue <= 0 {
		return ValidationResult{
			Valid:           false,
			Message:         "could not retrieve account information",
			Recommendations: []string{"check API connection and credentials"},
		}
	}

	positionSize := params.PositionSizeUSD
	maxPositions := params.MaxPositions
	if name == "grid_trading" {
		positionSize = params.GridSizeUSD
		maxPositions = params.GridLevels
		if m := params.GridMaxOpen; m > 0 && m < maxPositions {
			maxPositions = m
		}
	}

	multiplier, ok := riskMultiplier[name]
	if !ok {
		multiplier = 1.0
	}

	totalExposure := positionSize * float64(maxPositions)
	baseMargin := totalExposure * _marginRequirement * _initialMarginMultiplier
	required := baseMargin * _safetyBuffer * multiplier

	result := ValidationResult{Valid: true, Message: "configuration is valid for trading"}

	if required > accountValue {
		result.Valid = false
		recommendedSize := accountValue / (multiplier * _safetyBuffer * _initialMarginMultiplier * _marginRequirement * float64(maxPositions))
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("reduce position size to $%.2f or less", recommendedSize),
			fmt.Sprintf("or add at least $%.2f to the account", required-accountValue),
		)
	}

	for _, coin := range coins {
		minValue, ok := minOrderUSD[coin]
		if !ok {
			minValue = _defaultMinOrderUSD
		}
		if positionSize < minValue {
			result.Valid = false
			result.Recommendations = append(result.Recommendations,
				fmt.Sprintf("%s: position size $%.2f is below the $%.2f venue minimum", coin, positionSize, minValue))
		}
	}

	if name == "grid_trading" {
		gridMargin := params.GridSizeUSD * float64(params.GridLevels) * _marginRequirement
		if gridMargin > accountValue {
			result.Valid = false
			maxGrids := int(accountValue / (params.GridSizeUSD * _marginRequirement))
			result.Recommendations = append(result.Recommendations,
				fmt.Sprintf("reduce grid_levels to %d or less", maxGrids))
		}
	}

	if !result.Valid {
		result.Message = "insufficient margin or invalid configuration"
		logs.Warnf("margin validation failed for %s, required: $%.2f, account: $%.2f", name, required, accountValue)
		for _, rec := range result.Recommendations {
			logs.Warnf("recommendation: %s", rec)
		}
	} else {
		logs.Infof("margin validation passed for %s, utilization: %.1f%%", name, required/accountValue*100)
	}
	return result
}
