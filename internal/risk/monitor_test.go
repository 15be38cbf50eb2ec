package risk

import (
	"context"
	"testing"
	"time"

	"main/internal/venue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

type fakeAccount struct {
	state venue.UserState
	err   error
}

func (f *fakeAccount) UserState(context.Context) (venue.UserState, error) {
	return f.state, f.err
}

func stateWith(accountValue, notional, marginUsed float64) venue.UserState {
	return venue.UserState{Margin: venue.MarginSummary{
		AccountValue:    accountValue,
		TotalNotional:   notional,
		TotalMarginUsed: marginUsed,
	}}
}

func TestCurrentMetricsDerivedValues(t *testing.T) {
	api := &fakeAccount{state: stateWith(1000, 2000, 400)}
	api.state.Positions = []venue.Position{{Coin: "BTC", Size: 0.5}}
	m := NewMonitor(api, Config{})

	metrics := m.CurrentMetrics(context.Background())
	require.NotNil(t, metrics)
	assert.Equal(t, 1000.0, metrics.TotalBalance)
	assert.Equal(t, 600.0, metrics.AvailableBalance)
	assert.Equal(t, 2.0, metrics.Leverage)
	assert.Equal(t, 0.4, metrics.MarginRatio)
	assert.Equal(t, 1, metrics.NumPositions)
}

func TestCurrentMetricsZeroAccountValue(t *testing.T) {
	api := &fakeAccount{state: stateWith(0, 2000, 400)}
	m := NewMonitor(api, Config{})

	metrics := m.CurrentMetrics(context.Background())
	require.NotNil(t, metrics)
	assert.Zero(t, metrics.Leverage)
	assert.Zero(t, metrics.MarginRatio)
}

func TestCheckLimitsFailsClosed(t *testing.T) {
	api := &fakeAccount{err: errors.New("connection refused")}
	m := NewMonitor(api, Config{})

	checks := m.CheckLimits(context.Background())
	assert.False(t, checks.Passed)
	assert.Equal(t, "no metrics available", checks.Reason)
}

func TestCheckLimitsAllPass(t *testing.T) {
	api := &fakeAccount{state: stateWith(1000, 2000, 400)}
	m := NewMonitor(api, Config{})

	checks := m.CheckLimits(context.Background())
	assert.True(t, checks.Passed)
	assert.Empty(t, checks.Reason)
}

func TestCheckLimitsLeverageBreach(t *testing.T) {
	api := &fakeAccount{state: stateWith(1000, 3500, 400)}
	m := NewMonitor(api, Config{MaxLeverage: 3.0})

	checks := m.CheckLimits(context.Background())
	assert.False(t, checks.Passed)
	assert.False(t, checks.LeverageOK)
	assert.Contains(t, checks.Reason, "leverage")
}

func TestCheckLimitsMarginRatioBreach(t *testing.T) {
	api := &fakeAccount{state: stateWith(1000, 1000, 850)}
	m := NewMonitor(api, Config{})

	checks := m.CheckLimits(context.Background())
	assert.False(t, checks.Passed)
	assert.False(t, checks.MarginRatioOK)
}

func TestDrawdownBreach(t *testing.T) {
	api := &fakeAccount{state: stateWith(1000, 0, 0)}
	m := NewMonitor(api, Config{MaxDrawdownPct: 0.1})

	// Seed the baseline at 1000, then drop 12%.
	require.True(t, m.CheckLimits(context.Background()).Passed)

	api.state = stateWith(880, 0, 0)
	checks := m.CheckLimits(context.Background())
	assert.False(t, checks.Passed)
	assert.False(t, checks.DrawdownOK)
	assert.Contains(t, checks.Reason, "drawdown")
}

func TestDailyLossBreachAndRollover(t *testing.T) {
	api := &fakeAccount{state: stateWith(1000, 0, 0)}
	m := NewMonitor(api, Config{DailyLossLimitPct: 0.05, MaxDrawdownPct: 0.5})
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.Local)
	m.now = func() time.Time { return now }

	require.True(t, m.CheckLimits(context.Background()).Passed)

	// Down 6% on the day breaches the daily limit but not the drawdown one.
	api.state = stateWith(940, 0, 0)
	checks := m.CheckLimits(context.Background())
	assert.False(t, checks.Passed)
	assert.False(t, checks.DailyLossOK)
	assert.True(t, checks.DrawdownOK)

	// Next local day the daily baseline reseeds at 940 and the same balance
	// passes again.
	now = now.Add(24 * time.Hour)
	checks = m.CheckLimits(context.Background())
	assert.True(t, checks.DailyLossOK)
}

func TestPositionSizeLimit(t *testing.T) {
	// balance 1000, available 600: min(1000*0.2, 600*3) / 50000 = 0.004
	api := &fakeAccount{state: stateWith(1000, 0, 400)}
	m := NewMonitor(api, Config{MaxLeverage: 3.0, MaxPositionSizePct: 0.2})

	limit := m.PositionSizeLimit(context.Background(), 50000)
	assert.InDelta(t, 0.004, limit, 1e-9)
}

func TestPositionSizeLimitLeverageBound(t *testing.T) {
	// Nearly all margin in use: available 50 * 3 = 150 beats 200.
	api := &fakeAccount{state: stateWith(1000, 0, 950)}
	m := NewMonitor(api, Config{MaxLeverage: 3.0, MaxPositionSizePct: 0.2})

	limit := m.PositionSizeLimit(context.Background(), 100)
	assert.InDelta(t, 1.5, limit, 1e-9)
}

func TestPositionSizeLimitUnavailable(t *testing.T) {
	api := &fakeAccount{err: errors.New("timeout")}
	m := NewMonitor(api, Config{})

	assert.Zero(t, m.PositionSizeLimit(context.Background(), 100))
	assert.Zero(t, m.PositionSizeLimit(context.Background(), 0))
}

func TestShouldAllow(t *testing.T) {
	api := &fakeAccount{state: stateWith(1000, 0, 400)}
	m := NewMonitor(api, Config{MaxLeverage: 3.0, MaxPositionSizePct: 0.2})

	assert.True(t, m.ShouldAllow(context.Background(), "BTC", 0.003, 50000))
	assert.False(t, m.ShouldAllow(context.Background(), "BTC", 0.005, 50000))
}

func TestHistoryIsBounded(t *testing.T) {
	api := &fakeAccount{state: stateWith(1000, 0, 0)}
	m := NewMonitor(api, Config{})

	for i := 0; i < 1200; i++ {
		m.CurrentMetrics(context.Background())
	}
	assert.Len(t, m.History(), 1000)
}

func TestRiskSummary(t *testing.T) {
	api := &fakeAccount{state: stateWith(1000, 2000, 400)}
	m := NewMonitor(api, Config{})

	require.NotNil(t, m.CurrentMetrics(context.Background()))

	api.state = stateWith(1100, 2200, 440)
	summary := m.RiskSummary(context.Background())
	require.NotNil(t, summary)
	assert.Equal(t, 1100.0, summary.Balance)
	assert.InDelta(t, 10.0, summary.TotalPnLPct, 1e-9)
	assert.True(t, summary.Checks.Passed)
}
