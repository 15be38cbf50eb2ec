package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"main/internal/bot"
	"main/internal/config"
	"main/internal/gateway"
	"main/internal/journal"
	"main/internal/ledger"
	"main/internal/marketdata"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/strategy"
	"main/internal/venue"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("bot: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	strategyFlag := flag.String("strategy", "", "Strategy name (overrides STRATEGY)")
	coinsFlag := flag.String("coins", "", "Comma-separated coins (overrides COINS)")
	paramsFlag := flag.String("params", "", "Strategy params YAML (overrides STRATEGY_PARAMS_FILE)")
	flag.Parse()

	cfg := config.Load()
	if *strategyFlag != "" {
		cfg.Strategy = *strategyFlag
	}
	if *coinsFlag != "" {
		cfg.Coins = splitCoins(*coinsFlag)
	}
	if *paramsFlag != "" {
		cfg.ParamsFile = *paramsFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PyroscopeURL != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "hyperliquid-bot",
			ServerAddress:   cfg.PyroscopeURL,
			Tags: map[string]string{
				"strategy": cfg.Strategy,
			},
		})
		if err != nil {
			logs.Warnf("pyroscope start failed: %+v", err)
		} else {
			defer profiler.Stop()
		}
	}

	obs.Serve(cfg.MetricsAddr)

	key, err := venue.ParseKey(cfg.PrivateKey)
	if err != nil {
		return err
	}

	client := venue.NewClient(&http.Client{}, cfg.APIURL(), cfg.AccountAddress, key)
	limiter := gateway.NewRateLimiter(gateway.LimiterConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		BurstLimit:        cfg.BurstLimit,
		BackoffFactor:     cfg.BackoffFactor,
		MaxBackoff:        cfg.MaxBackoff,
	})
	gw := gateway.New(client, limiter)

	var stream *marketdata.Stream
	if cfg.EnableStream {
		stream = marketdata.NewStream(ctx, cfg.WsURL())
		if err := stream.StartWebsocket(ctx); err != nil {
			return err
		}
		defer stream.Close()
		if err := stream.SubscribeAllMids(ctx); err != nil {
			return err
		}
		stream.ObserveAllMids(ctx)
	}
	market := marketdata.NewProvider(gw, stream)

	jnl, err := journal.Open(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer jnl.Close()

	params, err := config.LoadParams(cfg.Strategy, cfg.ParamsFile)
	if err != nil {
		return err
	}

	state, err := gw.UserState(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch account state")
	}
	logs.Infof("account: %s, value: $%.2f, network: %s",
		cfg.AccountAddress, state.Margin.AccountValue, network(cfg.UseTestnet))

	if result := config.ValidateMargin(cfg.Strategy, params, cfg.Coins, state.Margin.AccountValue); !result.Valid {
		return errors.Errorf("margin validation failed: %s", result.Message)
	}

	book := strategy.NewPositionBook()
	strat, err := strategy.New(cfg.Strategy, market, gw, book, params)
	if err != nil {
		return err
	}

	orders := ledger.New(gw, jnl, ledger.ReconcileGrace{})
	monitor := risk.NewMonitor(gw, risk.Config{})
	executor := strategy.NewExecutor(market, orders, monitor, book, params)

	loop := bot.NewLoop(
		bot.LoopConfig{Interval: cfg.LoopInterval},
		monitor, orders, executor, strat, gw, jnl, cfg.Coins,
	)
	loop.Run(ctx)
	return nil
}

func splitCoins(s string) []string {
	parts := strings.Split(s, ",")
	coins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			coins = append(coins, p)
		}
	}
	return coins
}

func network(testnet bool) string {
	if testnet {
		return "testnet"
	}
	return "mainnet"
}
