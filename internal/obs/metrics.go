package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/logs"
)

var (
	APICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_api_calls_total", Help: "Venue API calls issued through the gateway"},
		[]string{"operation"},
	)
	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_api_errors_total", Help: "Venue API calls that returned an error"},
		[]string{"operation"},
	)
	RateLimitHits = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_rate_limit_hits_total", Help: "Venue responses classified as rate limited"},
	)
	ThrottleWait = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_throttle_wait_seconds_total", Help: "Seconds spent waiting on the pacing gate"},
	)
	Backoff = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_backoff_seconds", Help: "Current rate-limit backoff in seconds"},
	)

	OrdersPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_orders_placed_total", Help: "Orders acknowledged by the venue"},
	)
	OrdersRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_orders_rejected_total", Help: "Orders rejected before or by the venue"},
	)
	OrdersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_orders_cancelled_total", Help: "Orders cancelled on request"},
	)
	OrdersFilled = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_orders_filled_total", Help: "Orders observed filled during reconcile"},
	)

	RiskBreaches = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "bot_risk_breaches_total", Help: "Ticks blocked by the risk gate"},
	)
	Leverage = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_leverage", Help: "Last observed account leverage"},
	)
	AccountValue = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "bot_account_value_usd", Help: "Last observed account value in USD"},
	)

	LoopErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bot_loop_errors_total", Help: "Control loop errors by class"},
		[]string{"class"},
	)
)

func init() {
	prometheus.MustRegister(
		APICalls, APIErrors, RateLimitHits, ThrottleWait, Backoff,
		OrdersPlaced, OrdersRejected, OrdersCancelled, OrdersFilled,
		RiskBreaches, Leverage, AccountValue, LoopErrors,
	)
}

// Serve exposes /metrics on addr. It never blocks the caller.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logs.Errorf("metrics server stopped, err: %+v", err)
		}
	}()
}
