package strategy

import (
	"context"
	"testing"

	"main/internal/ledger"
	"main/internal/marketdata"
	"main/internal/venue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

type fakeMarket struct {
	candles  []venue.Candle
	snap     marketdata.Snapshot
	decimals int
}

func (f *fakeMarket) BookSnapshot(context.Context, string) (marketdata.Snapshot, error) {
	return f.snap, nil
}

func (f *fakeMarket) Candles(context.Context, string, string, int) ([]venue.Candle, error) {
	return f.candles, nil
}

func (f *fakeMarket) SizeDecimals(context.Context, string) int {
	return f.decimals
}

type fakeOrders struct {
	positions map[string]venue.Position
	posErr    error
	submitted []ledger.SubmitRequest
	submitErr error
}

func (f *fakeOrders) Submit(_ context.Context, req ledger.SubmitRequest) (ledger.Order, error) {
	if f.submitErr != nil {
		return ledger.Order{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return ledger.Order{OrderID: int64(len(f.submitted)), Status: ledger.StatusPending}, nil
}

func (f *fakeOrders) Positions(context.Context) (map[string]venue.Position, error) {
	return f.positions, f.posErr
}

type fakeRisk struct {
	limit float64
}

func (f *fakeRisk) PositionSizeLimit(context.Context, float64) float64 {
	return f.limit
}

type stubStrategy struct {
	sig     *Signal
	sigErr  map[string]error
	size    float64
	sizeErr error
	calls   []string
}

func (s *stubStrategy) Name() string { return "stub" }

func (s *stubStrategy) GenerateSignal(_ context.Context, coin string) (*Signal, error) {
	s.calls = append(s.calls, coin)
	if err, ok := s.sigErr[coin]; ok {
		return nil, err
	}
	return s.sig, nil
}

func (s *stubStrategy) SizePosition(context.Context, string, *Signal) (float64, error) {
	return s.size, s.sizeErr
}

func mkCandles(closes ...float64) []venue.Candle {
	candles := make([]venue.Candle, 0, len(closes))
	for i, c := range closes {
		candles = append(candles, venue.Candle{
			OpenTime: int64(i) * 15 * 60 * 1000,
			Open:     c, High: c, Low: c, Close: c,
			Volume: 1,
		})
	}
	return candles
}

func newExecutor(market *fakeMarket, orders *fakeOrders, risk riskGate, params Params) *Executor {
	return NewExecutor(market, orders, risk, NewPositionBook(), params)
}

func TestExecutorTakeProfitClose(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{positions: map[string]venue.Position{
		"BTC": {Coin: "BTC", Size: 0.5, MarginUsed: 100, UnrealizedPnL: 12},
	}}
	e := newExecutor(market, orders, nil, DefaultParams())
	strat := &stubStrategy{}

	require.NoError(t, e.Run(context.Background(), strat, []string{"BTC"}))
	require.Len(t, orders.submitted, 1)
	req := orders.submitted[0]
	assert.Equal(t, ledger.SideSell, req.Side)
	assert.Equal(t, ledger.TypeMarket, req.Type)
	assert.True(t, req.ReduceOnly)
	assert.Equal(t, 0.5, req.Size)
	assert.Empty(t, strat.calls)
}

func TestExecutorStopLossClosesShortWithBuy(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{positions: map[string]venue.Position{
		"ETH": {Coin: "ETH", Size: -2, MarginUsed: 100, UnrealizedPnL: -6},
	}}
	e := newExecutor(market, orders, nil, DefaultParams())

	require.NoError(t, e.Run(context.Background(), &stubStrategy{}, []string{"ETH"}))
	require.Len(t, orders.submitted, 1)
	assert.Equal(t, ledger.SideBuy, orders.submitted[0].Side)
	assert.Equal(t, 2.0, orders.submitted[0].Size)
	assert.True(t, orders.submitted[0].ReduceOnly)
}

func TestExecutorHoldsInsideBounds(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{positions: map[string]venue.Position{
		"BTC": {Coin: "BTC", Size: 0.5, MarginUsed: 100, UnrealizedPnL: 3},
	}}
	e := newExecutor(market, orders, nil, DefaultParams())

	require.NoError(t, e.Run(context.Background(), &stubStrategy{}, []string{"BTC"}))
	assert.Empty(t, orders.submitted)
}

func TestExecutorLimitPricedOffBook(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{}
	e := newExecutor(market, orders, nil, DefaultParams())
	strat := &stubStrategy{
		sig:  &Signal{Side: ledger.SideBuy, Type: ledger.TypeLimit, PostOnly: true, Confidence: 0.7},
		size: 0.25,
	}

	require.NoError(t, e.Run(context.Background(), strat, []string{"BTC"}))
	require.Len(t, orders.submitted, 1)
	req := orders.submitted[0]
	assert.Equal(t, 99.0, req.Price)
	assert.True(t, req.PostOnly)
	assert.Equal(t, 0.25, req.Size)
}

func TestExecutorUsesSignalLimitPrice(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{}
	e := newExecutor(market, orders, nil, DefaultParams())
	strat := &stubStrategy{
		sig:  &Signal{Side: ledger.SideBuy, Type: ledger.TypeLimit, Confidence: 0.6, LimitPrice: 98.5},
		size: 0.25,
	}

	require.NoError(t, e.Run(context.Background(), strat, []string{"BTC"}))
	require.Len(t, orders.submitted, 1)
	assert.Equal(t, 98.5, orders.submitted[0].Price)
}

func TestExecutorRoundsSize(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{}
	e := newExecutor(market, orders, nil, DefaultParams())
	strat := &stubStrategy{
		sig:  &Signal{Side: ledger.SideBuy, Type: ledger.TypeMarket, Confidence: 0.7},
		size: 0.123456,
	}

	require.NoError(t, e.Run(context.Background(), strat, []string{"BTC"}))
	require.Len(t, orders.submitted, 1)
	assert.Equal(t, 0.123, orders.submitted[0].Size)
}

func TestExecutorSkipsZeroSize(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{}
	e := newExecutor(market, orders, nil, DefaultParams())
	strat := &stubStrategy{
		sig:  &Signal{Side: ledger.SideBuy, Type: ledger.TypeMarket, Confidence: 0.7},
		size: 0,
	}

	require.NoError(t, e.Run(context.Background(), strat, []string{"BTC"}))
	assert.Empty(t, orders.submitted)
}

func TestExecutorClampsToRiskLimit(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{}
	e := newExecutor(market, orders, &fakeRisk{limit: 0.05}, DefaultParams())
	strat := &stubStrategy{
		sig:  &Signal{Side: ledger.SideBuy, Type: ledger.TypeMarket, Confidence: 0.7},
		size: 0.5,
	}

	require.NoError(t, e.Run(context.Background(), strat, []string{"BTC"}))
	require.Len(t, orders.submitted, 1)
	assert.Equal(t, 0.05, orders.submitted[0].Size)
}

func TestExecutorReduceOnlyBypassesClamp(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{}
	e := newExecutor(market, orders, &fakeRisk{limit: 0.05}, DefaultParams())
	strat := &stubStrategy{
		sig:  &Signal{Side: ledger.SideSell, Type: ledger.TypeMarket, ReduceOnly: true, Confidence: 0.8},
		size: 0.5,
	}

	require.NoError(t, e.Run(context.Background(), strat, []string{"BTC"}))
	require.Len(t, orders.submitted, 1)
	assert.Equal(t, 0.5, orders.submitted[0].Size)
}

func TestExecutorAbsorbsPerCoinErrors(t *testing.T) {
	market := &fakeMarket{decimals: 3, snap: marketdata.Snapshot{Bid: 99, Ask: 101, Mid: 100}}
	orders := &fakeOrders{}
	e := newExecutor(market, orders, nil, DefaultParams())
	strat := &stubStrategy{
		sig:    &Signal{Side: ledger.SideBuy, Type: ledger.TypeMarket, Confidence: 0.7},
		size:   0.1,
		sigErr: map[string]error{"BTC": errors.New("candle fetch failed")},
	}

	require.NoError(t, e.Run(context.Background(), strat, []string{"BTC", "ETH"}))
	require.Len(t, orders.submitted, 1)
	assert.Equal(t, "ETH", orders.submitted[0].Coin)
}

func TestExecutorFailsWhenPositionsUnavailable(t *testing.T) {
	market := &fakeMarket{decimals: 3}
	orders := &fakeOrders{posErr: errors.New("timeout")}
	e := newExecutor(market, orders, nil, DefaultParams())

	require.Error(t, e.Run(context.Background(), &stubStrategy{}, []string{"BTC"}))
}
