package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"main/internal/strategy"
	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		AccountAddress:    "0xabc",
		PrivateKey:        "0xdef",
		Coins:             []string{"BTC"},
		RequestsPerSecond: 2.0,
		LoopInterval:      10 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	c := validConfig()
	c.AccountAddress = ""
	assert.ErrorIs(t, c.Validate(), exception.ErrConfigMissingAccount)

	c = validConfig()
	c.PrivateKey = ""
	assert.ErrorIs(t, c.Validate(), exception.ErrConfigMissingKey)

	c = validConfig()
	c.Coins = nil
	assert.ErrorIs(t, c.Validate(), exception.ErrConfigNoSymbols)

	c = validConfig()
	c.RequestsPerSecond = 0
	assert.ErrorIs(t, c.Validate(), exception.ErrConfigParamOutOfRange)
}

func TestAPIURLSwitchesNetwork(t *testing.T) {
	c := validConfig()
	c.UseTestnet = true
	assert.Contains(t, c.APIURL(), "testnet")
	assert.Contains(t, c.WsURL(), "testnet")

	c.UseTestnet = false
	assert.NotContains(t, c.APIURL(), "testnet")
}

func TestEnvList(t *testing.T) {
	t.Setenv("TEST_COINS", "BTC, ETH ,SOL")
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, envList("TEST_COINS", nil))

	t.Setenv("TEST_COINS", "")
	assert.Equal(t, []string{"BTC"}, envList("TEST_COINS", []string{"BTC"}))
}

func TestLoadParamsDefaults(t *testing.T) {
	params, err := LoadParams("simple_ma", "")
	require.NoError(t, err)
	assert.Equal(t, 10, params.FastMAPeriod)
	assert.Equal(t, 30, params.SlowMAPeriod)
	assert.Equal(t, 5.0, params.TakeProfitPct)
	assert.Equal(t, 2.0, params.StopLossPct)

	params, err = LoadParams("grid_trading", "")
	require.NoError(t, err)
	assert.Equal(t, 2.0, params.TakeProfitPct)
	assert.Equal(t, 5, params.MaxPositions)
}

func TestLoadParamsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	body := `
simple_ma:
  fast_ma_period: 12
  position_size_usd: 150
rsi:
  rsi_period: 21
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	params, err := LoadParams("simple_ma", path)
	require.NoError(t, err)
	assert.Equal(t, 12, params.FastMAPeriod)
	assert.Equal(t, 150.0, params.PositionSizeUSD)
	// Absent keys keep their defaults.
	assert.Equal(t, 30, params.SlowMAPeriod)
}

func TestLoadParamsRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	body := `
simple_ma:
  fast_ma_period: 40
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	// fast >= slow is not a usable crossover.
	_, err := LoadParams("simple_ma", path)
	require.ErrorIs(t, err, exception.ErrConfigParamOutOfRange)
}

func TestValidateMargin(t *testing.T) {
	params := strategy.DefaultParamsFor("simple_ma")

	// 100 * 3 positions * 0.1 * 3.0 * 1.5 = $135 required.
	result := ValidateMargin("simple_ma", params, []string{"BTC"}, 1000)
	assert.True(t, result.Valid)

	result = ValidateMargin("simple_ma", params, []string{"BTC"}, 100)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Recommendations)
}

func TestValidateMarginMinOrderValue(t *testing.T) {
	params := strategy.DefaultParamsFor("simple_ma")
	params.PositionSizeUSD = 60

	// $60 clears the default minimum but not the BTC one.
	result := ValidateMargin("simple_ma", params, []string{"SOL"}, 10000)
	assert.True(t, result.Valid)

	result = ValidateMargin("simple_ma", params, []string{"BTC"}, 10000)
	assert.False(t, result.Valid)
}

func TestValidateMarginNoAccount(t *testing.T) {
	result := ValidateMargin("simple_ma", strategy.DefaultParams(), []string{"BTC"}, 0)
	assert.False(t, result.Valid)
}
