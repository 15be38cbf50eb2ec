package risk

import (
	"context"
	"strings"
	"time"

	"main/internal/obs"
	"main/internal/venue"
	"main/pkg/ring"

	"github.com/yanun0323/logs"
)

const (
	// Hard ceiling on margin usage, independent of configuration.
	_maxMarginRatio = 0.8

	_historyCap = 1000
)

// Config sets the account-level risk limits.
type Config struct {
	MaxLeverage        float64
	MaxPositionSizePct float64
	MaxDrawdownPct     float64
	DailyLossLimitPct  float64
}

func (c Config) withDefaults() Config {
	if c.MaxLeverage <= 0 {
		c.MaxLeverage = 3.0
	}
	if c.MaxPositionSizePct <= 0 {
		c.MaxPositionSizePct = 0.2
	}
	if c.MaxDrawdownPct <= 0 {
		c.MaxDrawdownPct = 0.1
	}
	if c.DailyLossLimitPct <= 0 {
		c.DailyLossLimitPct = 0.05
	}
	return c
}

// Metrics is one observation of the account's risk posture.
type Metrics struct {
	TotalBalance     float64
	AvailableBalance float64
	MarginUsed       float64
	PositionValue    float64
	Leverage         float64
	MarginRatio      float64
	NumPositions     int
	Time             time.Time
}

// CheckResult is the outcome of one limits pass. A missing snapshot fails
// every check: no metrics means no trading.
type CheckResult struct {
	LeverageOK    bool
	MarginRatioOK bool
	DrawdownOK    bool
	DailyLossOK   bool
	Passed        bool
	Reason        string
}

// Summary is a human-readable risk report for periodic logging.
type Summary struct {
	Balance          float64
	AvailableBalance float64
	Leverage         float64
	MarginRatio      float64
	NumPositions     int
	Checks           CheckResult
	TotalPnLPct      float64
	DailyPnLPct      float64
}

// accountAPI is the slice of the gateway the monitor reads from.
type accountAPI interface {
	UserState(ctx context.Context) (venue.UserState, error)
}

// Monitor watches account health against the configured limits. Baselines
// seed from the first successful fetch; the daily baseline resets when the
// local date rolls over.
type Monitor struct {
	api accountAPI
	cfg Config
	now func() time.Time

	history       *ring.Buffer[Metrics]
	startBalance  float64
	dailyBalance  float64
	seeded        bool
	lastResetDate string
}

// NewMonitor creates a monitor over the account API.
func NewMonitor(api accountAPI, cfg Config) *Monitor {
	return &Monitor{
		api:     api,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		history: ring.New[Metrics](_historyCap),
	}
}

// CurrentMetrics fetches one risk snapshot, updating baselines and history.
// It returns nil when the account state cannot be read.
func (m *Monitor) CurrentMetrics(ctx context.Context) *Metrics {
	state, err := m.api.UserState(ctx)
	if err != nil {
		logs.Errorf("fetch risk metrics, err: %+v", err)
		return nil
	}

	now := m.now()
	accountValue := state.Margin.AccountValue
	marginUsed := state.Margin.TotalMarginUsed
	positionValue := state.Margin.TotalNotional

	metrics := Metrics{
		TotalBalance:     accountValue,
		AvailableBalance: accountValue - marginUsed,
		MarginUsed:       marginUsed,
		PositionValue:    positionValue,
		NumPositions:     len(state.Positions),
		Time:             now,
	}
	if accountValue > 0 {
		metrics.Leverage = positionValue / accountValue
		metrics.MarginRatio = marginUsed / accountValue
	}

	if !m.seeded {
		m.startBalance = accountValue
		m.dailyBalance = accountValue
		m.seeded = true
		m.lastResetDate = localDate(now)
	}
	if today := localDate(now); today != m.lastResetDate {
		m.dailyBalance = accountValue
		m.lastResetDate = today
		logs.Infof("daily risk baseline reset to %.2f", accountValue)
	}

	m.history.Push(metrics)
	obs.Leverage.Set(metrics.Leverage)
	obs.AccountValue.Set(accountValue)
	return &metrics
}

func localDate(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// CheckLimits evaluates every limit against a fresh snapshot.
func (m *Monitor) CheckLimits(ctx context.Context) CheckResult {
	metrics := m.CurrentMetrics(ctx)
	if metrics == nil {
		return CheckResult{Reason: "no metrics available"}
	}
	return m.evaluate(*metrics)
}

func (m *Monitor) evaluate(metrics Metrics) CheckResult {
	result := CheckResult{
		LeverageOK:    metrics.Leverage <= m.cfg.MaxLeverage,
		MarginRatioOK: metrics.MarginRatio < _maxMarginRatio,
		DrawdownOK:    true,
		DailyLossOK:   true,
	}

	if m.startBalance > 0 {
		drawdown := (m.startBalance - metrics.TotalBalance) / m.startBalance
		result.DrawdownOK = drawdown <= m.cfg.MaxDrawdownPct
	}
	if m.dailyBalance > 0 {
		dailyLoss := (m.dailyBalance - metrics.TotalBalance) / m.dailyBalance
		result.DailyLossOK = dailyLoss <= m.cfg.DailyLossLimitPct
	}

	result.Passed = result.LeverageOK && result.MarginRatioOK && result.DrawdownOK && result.DailyLossOK
	if !result.Passed {
		var reasons []string
		if !result.LeverageOK {
			reasons = append(reasons, "leverage too high")
		}
		if !result.MarginRatioOK {
			reasons = append(reasons, "margin ratio too high")
		}
		if !result.DrawdownOK {
			reasons = append(reasons, "max drawdown exceeded")
		}
		if !result.DailyLossOK {
			reasons = append(reasons, "daily loss limit exceeded")
		}
		result.Reason = strings.Join(reasons, "; ")
	}
	return result
}

// PositionSizeLimit returns the largest new position size allowed at the
// given price, zero when metrics are unavailable.
func (m *Monitor) PositionSizeLimit(ctx context.Context, price float64) float64 {
	if price <= 0 {
		return 0
	}
	metrics := m.CurrentMetrics(ctx)
	if metrics == nil {
		return 0
	}

	maxValue := metrics.TotalBalance * m.cfg.MaxPositionSizePct
	withLeverage := metrics.AvailableBalance * m.cfg.MaxLeverage
	if withLeverage < maxValue {
		maxValue = withLeverage
	}
	return maxValue / price
}

// ShouldAllow reports whether a new position of the given size passes every
// limit. Failing closed, it refuses when the account cannot be read.
func (m *Monitor) ShouldAllow(ctx context.Context, coin string, size, price float64) bool {
	checks := m.CheckLimits(ctx)
	if !checks.Passed {
		logs.Warnf("risk check failed: %s", checks.Reason)
		return false
	}

	if limit := m.PositionSizeLimit(ctx, price); size > limit {
		logs.Warnf("position size %v exceeds limit %v, coin: %s", size, limit, coin)
		return false
	}
	return true
}

// RiskSummary builds a report for the periodic status log. It returns nil
// when metrics are unavailable.
func (m *Monitor) RiskSummary(ctx context.Context) *Summary {
	metrics := m.CurrentMetrics(ctx)
	if metrics == nil {
		return nil
	}

	summary := &Summary{
		Balance:          metrics.TotalBalance,
		AvailableBalance: metrics.AvailableBalance,
		Leverage:         metrics.Leverage,
		MarginRatio:      metrics.MarginRatio,
		NumPositions:     metrics.NumPositions,
		Checks:           m.evaluate(*metrics),
	}
	if m.startBalance > 0 {
		summary.TotalPnLPct = (metrics.TotalBalance - m.startBalance) / m.startBalance * 100
	}
	if m.dailyBalance > 0 {
		summary.DailyPnLPct = (metrics.TotalBalance - m.dailyBalance) / m.dailyBalance * 100
	}
	return summary
}

// History returns the retained snapshots, oldest first.
func (m *Monitor) History() []Metrics {
	out := make([]Metrics, 0, m.history.Len())
	m.history.Each(func(item Metrics) {
		out = append(out, item)
	})
	return out
}
