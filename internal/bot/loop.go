package bot

import (
	"context"
	"time"

	"main/internal/gateway"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/strategy"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

// riskMonitor gates every tick on account health.
type riskMonitor interface {
	CheckLimits(ctx context.Context) risk.CheckResult
	RiskSummary(ctx context.Context) *risk.Summary
}

// orderBook is the slice of the ledger the loop drives.
type orderBook interface {
	CancelAll(ctx context.Context, coin string) (int, error)
	Reconcile(ctx context.Context) error
}

// strategyRunner executes one strategy pass.
type strategyRunner interface {
	Run(ctx context.Context, strat strategy.Strategy, coins []string) error
}

// connectionResetter rebuilds the venue transport.
type connectionResetter interface {
	ResetConnections()
}

// breachRecorder persists risk-gate trips. May be a nil journal.
type breachRecorder interface {
	RecordBreach(checks risk.CheckResult)
}

// LoopConfig tunes the trading loop cadence and its connection-failure
// handling.
type LoopConfig struct {
	Interval        time.Duration
	ErrorThreshold  int
	ResetAfter      time.Duration
	MaxErrorBackoff time.Duration
	ShutdownTimeout time.Duration
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
	if c.ErrorThreshold <= 0 {
		c.ErrorThreshold = 10
	}
	if c.ResetAfter <= 0 {
		c.ResetAfter = 5 * time.Minute
	}
	if c.MaxErrorBackoff <= 0 {
		c.MaxErrorBackoff = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// Loop is the trading control loop: one tick checks risk, reconciles the
// ledger and runs the strategy over every configured coin.
type Loop struct {
	cfg      LoopConfig
	monitor  riskMonitor
	orders   orderBook
	executor strategyRunner
	strat    strategy.Strategy
	resetter connectionResetter
	journal  breachRecorder
	coins    []string

	connErrors  int
	lastResetAt time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewLoop wires the control loop. journal may be nil.
func NewLoop(
	cfg LoopConfig,
	monitor riskMonitor,
	orders orderBook,
	executor strategyRunner,
	strat strategy.Strategy,
	resetter connectionResetter,
	journal breachRecorder,
	coins []string,
) *Loop {
	return &Loop{
		cfg:      cfg.withDefaults(),
		monitor:  monitor,
		orders:   orders,
		executor: executor,
		strat:    strat,
		resetter: resetter,
		journal:  journal,
		coins:    coins,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run drives ticks until the context or the process shuts down, then
// cancels every resting order.
func (l *Loop) Run(ctx context.Context) {
	logs.Infof("trading loop started, strategy: %s, coins: %v, interval: %s",
		l.strat.Name(), l.coins, l.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return
		case <-sys.Shutdown():
			l.shutdown()
			return
		default:
		}

		if err := l.tick(ctx); err != nil {
			l.onError(ctx, err)
		} else {
			l.connErrors = 0
		}

		l.sleep(ctx, l.cfg.Interval)
	}
}

func (l *Loop) tick(ctx context.Context) error {
	checks := l.monitor.CheckLimits(ctx)
	if !checks.Passed {
		logs.Warnf("risk limits exceeded: %s", checks.Reason)
		obs.RiskBreaches.Inc()
		if l.journal != nil {
			l.journal.RecordBreach(checks)
		}
		if _, err := l.orders.CancelAll(ctx, ""); err != nil {
			return err
		}
		return nil
	}

	if err := l.orders.Reconcile(ctx); err != nil {
		return err
	}

	if err := l.executor.Run(ctx, l.strat, l.coins); err != nil {
		return err
	}

	if l.now().Unix()%60 == 0 {
		if summary := l.monitor.RiskSummary(ctx); summary != nil {
			logs.Infof("risk summary, balance: %.2f, leverage: %.2f, positions: %d, total pnl: %.2f%%, daily pnl: %.2f%%",
				summary.Balance, summary.Leverage, summary.NumPositions, summary.TotalPnLPct, summary.DailyPnLPct)
		}
	}
	return nil
}

// onError backs off proportionally to the consecutive connection-failure
// count and rebuilds the venue transport once the failures look like a
// wedged link rather than a blip.
func (l *Loop) onError(ctx context.Context, err error) {
	if !gateway.IsConnectionError(err) {
		obs.LoopErrors.WithLabelValues("general").Inc()
		logs.Errorf("trading loop error: %+v", err)
		return
	}

	l.connErrors++
	obs.LoopErrors.WithLabelValues("connection").Inc()
	logs.Errorf("connection error #%d: %+v", l.connErrors, err)

	if l.connErrors > l.cfg.ErrorThreshold && l.now().Sub(l.lastResetAt) > l.cfg.ResetAfter {
		logs.Warn("too many connection errors, rebuilding venue connections")
		l.resetter.ResetConnections()
		l.lastResetAt = l.now()
		l.connErrors = 0
	}

	backoff := time.Duration(l.connErrors) * 5 * time.Second
	if backoff > l.cfg.MaxErrorBackoff {
		backoff = l.cfg.MaxErrorBackoff
	}
	if backoff > 0 {
		l.sleep(ctx, backoff)
	}
}

// shutdown cancels every resting order within a bounded window so a kill
// signal never leaves stale orders working the book.
func (l *Loop) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), l.cfg.ShutdownTimeout)
	defer cancel()

	cancelled, err := l.orders.CancelAll(ctx, "")
	if err != nil {
		logs.Errorf("cancel all on shutdown, err: %+v", err)
	}
	logs.Infof("trading loop stopped, cancelled %d resting orders", cancelled)
}
