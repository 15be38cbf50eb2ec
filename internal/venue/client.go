package venue

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"io"
	"net/http"
	"time"

	"main/pkg/exception"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"
)

const (
	MainnetURL = "https://api.hyperliquid.xyz"
	TestnetURL = "https://api.hyperliquid-testnet.xyz"

	_requestTimeout = 15 * time.Second
)

// Client talks to the venue's HTTP API. It does no pacing by itself; every
// component reaches it through the gateway.
type Client struct {
	client   *http.Client
	baseURL  string
	account  string
	key      *ecdsa.PrivateKey
	assetIdx map[string]int
}

// NewClient creates a venue client for one account.
func NewClient(client *http.Client, baseURL, account string, key *ecdsa.PrivateKey) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		client:   client,
		baseURL:  baseURL,
		account:  account,
		key:      key,
		assetIdx: make(map[string]int),
	}
}

// Account returns the configured account address.
func (c *Client) Account() string {
	return c.account
}

// ResetConnections drops every pooled connection and starts over with a
// fresh transport. Used when the control loop decides the link is wedged.
func (c *Client) ResetConnections() {
	c.client.CloseIdleConnections()
	c.client = &http.Client{}
}

func (c *Client) post(ctx context.Context, path string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return exception.ErrVenueRateLimited
	}
	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("venue responded %d: %s", resp.StatusCode, body)
	}

	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response body")
	}
	return nil
}

func (c *Client) info(ctx context.Context, body map[string]any, out any) error {
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode info request")
	}
	return c.post(ctx, "/info", payload, out)
}

func (c *Client) exchange(ctx context.Context, action any, out any) error {
	actionPayload, err := sonic.ConfigFastest.Marshal(action)
	if err != nil {
		return errors.Wrap(err, "encode action")
	}

	nonce := time.Now().UnixMilli()
	sig, err := signAction(c.key, actionPayload, nonce)
	if err != nil {
		return err
	}

	payload, err := sonic.ConfigFastest.Marshal(exchangeRequest{
		Action:    action,
		Nonce:     nonce,
		Signature: sig,
	})
	if err != nil {
		return errors.Wrap(err, "encode exchange request")
	}
	return c.post(ctx, "/exchange", payload, out)
}

// assetIndex resolves a coin name to the venue's asset index, fetching the
// universe once and caching it for the lifetime of the client.
func (c *Client) assetIndex(ctx context.Context, coin string) (int, error) {
	if idx, ok := c.assetIdx[coin]; ok {
		return idx, nil
	}
	meta, err := c.Meta(ctx)
	if err != nil {
		return 0, err
	}
	for i, asset := range meta.Universe {
		c.assetIdx[asset.Name] = i
	}
	idx, ok := c.assetIdx[coin]
	if !ok {
		return 0, errors.Wrapf(exception.ErrVenueUnknownSymbol, "coin %s", coin)
	}
	return idx, nil
}

// UserState returns the account margin summary and open positions.
func (c *Client) UserState(ctx context.Context) (UserState, error) {
	var raw wireUserState
	if err := c.info(ctx, map[string]any{"type": "clearinghouseState", "user": c.account}, &raw); err != nil {
		return UserState{}, err
	}

	state := UserState{
		Margin: MarginSummary{
			AccountValue:    toFloat(raw.MarginSummary.AccountValue),
			TotalNotional:   toFloat(raw.MarginSummary.TotalNtlPos),
			TotalMarginUsed: toFloat(raw.MarginSummary.TotalMarginUsed),
		},
		Positions: make([]Position, 0, len(raw.AssetPositions)),
	}
	for _, ap := range raw.AssetPositions {
		state.Positions = append(state.Positions, Position{
			Coin:          ap.Position.Coin,
			Size:          toFloat(ap.Position.Szi),
			EntryPrice:    toFloat(ap.Position.EntryPx),
			UnrealizedPnL: toFloat(ap.Position.UnrealizedPnl),
			MarginUsed:    toFloat(ap.Position.MarginUsed),
		})
	}
	return state, nil
}

// OpenOrders lists the account's currently resting orders.
func (c *Client) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	var raw []wireOpenOrder
	if err := c.info(ctx, map[string]any{"type": "openOrders", "user": c.account}, &raw); err != nil {
		return nil, err
	}

	orders := make([]OpenOrder, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, OpenOrder{
			Coin:       o.Coin,
			OrderID:    o.Oid,
			IsBuy:      o.Side == "B",
			LimitPrice: toFloat(o.LimitPx),
			Size:       toFloat(o.Sz),
			Timestamp:  o.Timestamp,
		})
	}
	return orders, nil
}

// UserFills lists the account's recent fills, newest first.
func (c *Client) UserFills(ctx context.Context) ([]Fill, error) {
	var raw []wireFill
	if err := c.info(ctx, map[string]any{"type": "userFills", "user": c.account}, &raw); err != nil {
		return nil, err
	}

	fills := make([]Fill, 0, len(raw))
	for _, f := range raw {
		fills = append(fills, Fill{
			Coin:    f.Coin,
			OrderID: f.Oid,
			Price:   toFloat(f.Px),
			Size:    toFloat(f.Sz),
			IsBuy:   f.Side == "B",
			Time:    f.Time,
		})
	}
	return fills, nil
}

// AllMids returns the mid price of every listed instrument.
func (c *Client) AllMids(ctx context.Context) (map[string]float64, error) {
	var raw map[string]decimal.Decimal
	if err := c.info(ctx, map[string]any{"type": "allMids"}, &raw); err != nil {
		return nil, err
	}

	mids := make(map[string]float64, len(raw))
	for coin, px := range raw {
		mids[coin] = toFloat(px)
	}
	return mids, nil
}

// L2Book returns the order-book snapshot for one coin, best levels first.
func (c *Client) L2Book(ctx context.Context, coin string) (Book, error) {
	var raw wireBook
	if err := c.info(ctx, map[string]any{"type": "l2Book", "coin": coin}, &raw); err != nil {
		return Book{}, err
	}
	if len(raw.Levels) < 2 {
		return Book{}, exception.ErrVenueEmptyResponse
	}

	book := Book{Coin: raw.Coin, Time: raw.Time}
	for _, lvl := range raw.Levels[0] {
		book.Bids = append(book.Bids, BookLevel{Price: toFloat(lvl.Px), Size: toFloat(lvl.Sz)})
	}
	for _, lvl := range raw.Levels[1] {
		book.Asks = append(book.Asks, BookLevel{Price: toFloat(lvl.Px), Size: toFloat(lvl.Sz)})
	}
	return book, nil
}

// Candles returns OHLCV bars for [startTime, endTime] in milliseconds.
func (c *Client) Candles(ctx context.Context, coin, interval string, startTime, endTime int64) ([]Candle, error) {
	var raw []wireCandle
	req := map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      coin,
			"interval":  interval,
			"startTime": startTime,
			"endTime":   endTime,
		},
	}
	if err := c.info(ctx, req, &raw); err != nil {
		return nil, err
	}

	candles := make([]Candle, 0, len(raw))
	for _, k := range raw {
		candles = append(candles, Candle{
			OpenTime:  k.T,
			CloseTime: k.C2,
			Open:      toFloat(k.O),
			High:      toFloat(k.H),
			Low:       toFloat(k.L),
			Close:     toFloat(k.C),
			Volume:    toFloat(k.V),
		})
	}
	return candles, nil
}

// Meta returns the instrument universe.
func (c *Client) Meta(ctx context.Context) (Meta, error) {
	var raw wireMeta
	if err := c.info(ctx, map[string]any{"type": "meta"}, &raw); err != nil {
		return Meta{}, err
	}

	meta := Meta{Universe: make([]Asset, 0, len(raw.Universe))}
	for _, a := range raw.Universe {
		meta.Universe = append(meta.Universe, Asset{
			Name:         a.Name,
			SizeDecimals: a.SzDecimals,
			MaxLeverage:  a.MaxLeverage,
		})
	}
	return meta, nil
}

// FundingHistory returns funding records for one coin since startTime (ms).
func (c *Client) FundingHistory(ctx context.Context, coin string, startTime int64) ([]FundingEntry, error) {
	var raw []wireFunding
	req := map[string]any{"type": "fundingHistory", "coin": coin, "startTime": startTime}
	if err := c.info(ctx, req, &raw); err != nil {
		return nil, err
	}

	entries := make([]FundingEntry, 0, len(raw))
	for _, f := range raw {
		entries = append(entries, FundingEntry{Coin: f.Coin, Rate: toFloat(f.FundingRate), Time: f.Time})
	}
	return entries, nil
}

// PlaceOrder submits one order and returns the venue acknowledgment. A
// response without an order id is an error: the order must not be tracked.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	asset, err := c.assetIndex(ctx, req.Coin)
	if err != nil {
		return OrderAck{}, err
	}

	order := wireOrder{
		Asset:      asset,
		IsBuy:      req.IsBuy,
		Price:      formatFloat(req.LimitPrice),
		Size:       formatFloat(req.Size),
		ReduceOnly: req.ReduceOnly,
		ClientID:   req.ClientID,
	}
	if req.Market {
		order.Type = wireOrderType{Market: &struct{}{}}
	} else {
		tif := req.TimeInForce
		if tif == "" {
			tif = "Gtc"
		}
		order.Type = wireOrderType{Limit: &wireLimit{Tif: tif}}
	}

	var resp exchangeResponse
	action := orderAction{Type: "order", Orders: []wireOrder{order}, Grouping: "na"}
	if err := c.exchange(ctx, action, &resp); err != nil {
		return OrderAck{}, err
	}

	if resp.Status != "ok" {
		return OrderAck{}, errors.Wrapf(exception.ErrVenueBadStatus, "status %q", resp.Status)
	}
	if resp.Response == nil || resp.Response.Data == nil || len(resp.Response.Data.Statuses) == 0 {
		return OrderAck{}, exception.ErrVenueMissingOrderID
	}

	entry := resp.Response.Data.Statuses[0]
	switch {
	case entry.Error != "":
		return OrderAck{}, errors.Wrapf(exception.ErrVenueBadStatus, "order error: %s", entry.Error)
	case entry.Resting != nil:
		// An acknowledgment without an order id must not be treated as
		// accepted; nothing could ever be reconciled or cancelled by id.
		if entry.Resting.Oid == 0 {
			return OrderAck{}, exception.ErrVenueMissingOrderID
		}
		return OrderAck{OrderID: entry.Resting.Oid}, nil
	case entry.Filled != nil:
		if entry.Filled.Oid == 0 {
			return OrderAck{}, exception.ErrVenueMissingOrderID
		}
		return OrderAck{
			OrderID:   entry.Filled.Oid,
			Filled:    true,
			AvgPrice:  toFloat(entry.Filled.AvgPx),
			TotalSize: toFloat(entry.Filled.TotalSz),
		}, nil
	default:
		return OrderAck{}, exception.ErrVenueMissingOrderID
	}
}

// CancelOrder requests cancellation of one resting order.
func (c *Client) CancelOrder(ctx context.Context, coin string, orderID int64) error {
	asset, err := c.assetIndex(ctx, coin)
	if err != nil {
		return err
	}

	var resp cancelResponse
	action := cancelAction{Type: "cancel", Cancels: []wireCancel{{Asset: asset, OrderID: orderID}}}
	if err := c.exchange(ctx, action, &resp); err != nil {
		return err
	}

	if resp.Status != "ok" {
		return errors.Wrapf(exception.ErrVenueBadStatus, "status %q", resp.Status)
	}
	if resp.Response == nil || resp.Response.Data == nil || len(resp.Response.Data.Statuses) == 0 {
		return exception.ErrVenueEmptyResponse
	}
	if s, ok := resp.Response.Data.Statuses[0].(string); !ok || s != "success" {
		return errors.Wrapf(exception.ErrVenueBadStatus, "cancel status: %v", resp.Response.Data.Statuses[0])
	}
	return nil
}
