package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"main/internal/config"
	"main/internal/gateway"
	"main/internal/venue"

	"github.com/yanun0323/logs"
)

// Prints the account balance and open positions, then exits.
func main() {
	if err := run(); err != nil {
		logs.Errorf("balance: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

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

	state, err := gw.UserState(context.Background())
	if err != nil {
		return err
	}

	rule := strings.Repeat("=", 50)
	fmt.Println(rule)
	fmt.Println("HYPERLIQUID ACCOUNT BALANCE")
	fmt.Println(rule)

	available := state.Margin.AccountValue - state.Margin.TotalMarginUsed
	fmt.Printf("Account Value:  $%.2f\n", state.Margin.AccountValue)
	fmt.Printf("Available:      $%.2f\n", available)
	fmt.Printf("Margin Used:    $%.2f\n", state.Margin.TotalMarginUsed)
	fmt.Printf("Position Value: $%.2f\n", state.Margin.TotalNotional)
	if state.Margin.TotalNotional > 0 && state.Margin.AccountValue > 0 {
		fmt.Printf("Leverage:       %.2fx\n", state.Margin.TotalNotional/state.Margin.AccountValue)
	}

	fmt.Println()
	fmt.Println(rule)
	fmt.Println("POSITIONS")
	fmt.Println(rule)

	if len(state.Positions) == 0 {
		fmt.Println("No open positions")
		fmt.Println(rule)
		return nil
	}

	totalPnL := 0.0
	for _, p := range state.Positions {
		side := "LONG"
		if p.Size < 0 {
			side = "SHORT"
		}
		size := p.Size
		if size < 0 {
			size = -size
		}
		totalPnL += p.UnrealizedPnL
		fmt.Printf("%-6s | %-5s | Size: %8.4f | Entry: $%8.2f | PnL: $%8.2f\n",
			p.Coin, side, size, p.EntryPrice, p.UnrealizedPnL)
	}
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("%-6s | %-5s | %19s | %15s | PnL: $%8.2f\n", "TOTAL", "", "", "", totalPnL)
	fmt.Println(rule)
	return nil
}
