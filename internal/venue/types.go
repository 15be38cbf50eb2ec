package venue

import (
	"strconv"

	"github.com/yanun0323/decimal"
)

// MarginSummary is the account-level margin view returned by the venue.
type MarginSummary struct {
	AccountValue    float64
	TotalNotional   float64
	TotalMarginUsed float64
}

// Position is the venue's view of one open position. Size is signed:
// positive long, negative short.
type Position struct {
	Coin          string
	Size          float64
	EntryPrice    float64
	UnrealizedPnL float64
	MarginUsed    float64
}

// UserState bundles the margin summary with all open positions.
type UserState struct {
	Margin    MarginSummary
	Positions []Position
}

// OpenOrder is one entry of the venue's open-order list.
type OpenOrder struct {
	Coin       string
	OrderID    int64
	IsBuy      bool
	LimitPrice float64
	Size       float64
	Timestamp  int64
}

// Fill is one entry of the venue's fill history.
type Fill struct {
	Coin    string
	OrderID int64
	Price   float64
	Size    float64
	IsBuy   bool
	Time    int64
}

// BookLevel is a single price level of the order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// Book is an L2 snapshot, best levels first.
type Book struct {
	Coin string
	Bids []BookLevel
	Asks []BookLevel
	Time int64
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Asset is one instrument of the venue universe.
type Asset struct {
	Name         string
	SizeDecimals int
	MaxLeverage  int
}

// Meta is the instrument metadata of the venue.
type Meta struct {
	Universe []Asset
}

// FundingEntry is one funding-history record.
type FundingEntry struct {
	Coin string
	Rate float64
	Time int64
}

// OrderRequest describes one order to place.
type OrderRequest struct {
	Coin        string
	IsBuy       bool
	Size        float64
	LimitPrice  float64 // zero for market orders
	Market      bool
	TimeInForce string // "Gtc" or "Alo", ignored for market orders
	ReduceOnly  bool
	ClientID    string
}

// OrderAck is the venue acknowledgment of a placed order.
type OrderAck struct {
	OrderID   int64
	Filled    bool
	AvgPrice  float64
	TotalSize float64
}

// --- wire payloads ---
//
// The venue encodes every number as a JSON string; wire structs decode them
// through decimal and the conversion to float64 happens here, at the
// boundary.

type wireMarginSummary struct {
	AccountValue    decimal.Decimal `json:"accountValue"`
	TotalNtlPos     decimal.Decimal `json:"totalNtlPos"`
	TotalRawUsd     decimal.Decimal `json:"totalRawUsd"`
	TotalMarginUsed decimal.Decimal `json:"totalMarginUsed"`
}

type wirePosition struct {
	Coin          string          `json:"coin"`
	Szi           decimal.Decimal `json:"szi"`
	EntryPx       decimal.Decimal `json:"entryPx"`
	UnrealizedPnl decimal.Decimal `json:"unrealizedPnl"`
	MarginUsed    decimal.Decimal `json:"marginUsed"`
}

type wireUserState struct {
	MarginSummary  wireMarginSummary `json:"marginSummary"`
	AssetPositions []struct {
		Position wirePosition `json:"position"`
	} `json:"assetPositions"`
}

type wireOpenOrder struct {
	Coin      string          `json:"coin"`
	LimitPx   decimal.Decimal `json:"limitPx"`
	Oid       int64           `json:"oid"`
	Side      string          `json:"side"` // "B" bid, "A" ask
	Sz        decimal.Decimal `json:"sz"`
	Timestamp int64           `json:"timestamp"`
}

type wireFill struct {
	Coin string          `json:"coin"`
	Px   decimal.Decimal `json:"px"`
	Sz   decimal.Decimal `json:"sz"`
	Side string          `json:"side"`
	Time int64           `json:"time"`
	Oid  int64           `json:"oid"`
}

type wireBookLevel struct {
	Px decimal.Decimal `json:"px"`
	Sz decimal.Decimal `json:"sz"`
	N  int             `json:"n"`
}

type wireBook struct {
	Coin   string            `json:"coin"`
	Time   int64             `json:"time"`
	Levels [][]wireBookLevel `json:"levels"` // [0] bids, [1] asks
}

type wireCandle struct {
	T  int64           `json:"t"`
	C2 int64           `json:"T"`
	O  decimal.Decimal `json:"o"`
	C  decimal.Decimal `json:"c"`
	H  decimal.Decimal `json:"h"`
	L  decimal.Decimal `json:"l"`
	V  decimal.Decimal `json:"v"`
}

type wireAsset struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
}

type wireMeta struct {
	Universe []wireAsset `json:"universe"`
}

type wireFunding struct {
	Coin        string          `json:"coin"`
	FundingRate decimal.Decimal `json:"fundingRate"`
	Time        int64           `json:"time"`
}

type wireLimit struct {
	Tif string `json:"tif"`
}

type wireOrderType struct {
	Limit  *wireLimit `json:"limit,omitempty"`
	Market *struct{}  `json:"market,omitempty"`
}

type wireOrder struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	Price      string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	Type       wireOrderType `json:"t"`
	ClientID   string        `json:"c,omitempty"`
}

type orderAction struct {
	Type     string      `json:"type"` // "order"
	Orders   []wireOrder `json:"orders"`
	Grouping string      `json:"grouping"`
}

type cancelAction struct {
	Type    string       `json:"type"` // "cancel"
	Cancels []wireCancel `json:"cancels"`
}

type wireCancel struct {
	Asset   int   `json:"a"`
	OrderID int64 `json:"o"`
}

type exchangeRequest struct {
	Action    any          `json:"action"`
	Nonce     int64        `json:"nonce"`
	Signature rsvSignature `json:"signature"`
}

type restingStatus struct {
	Oid int64 `json:"oid"`
}

type filledStatus struct {
	Oid     int64           `json:"oid"`
	TotalSz decimal.Decimal `json:"totalSz"`
	AvgPx   decimal.Decimal `json:"avgPx"`
}

type orderStatusEntry struct {
	Resting *restingStatus `json:"resting"`
	Filled  *filledStatus  `json:"filled"`
	Error   string         `json:"error"`
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response *struct {
		Type string `json:"type"`
		Data *struct {
			Statuses []orderStatusEntry `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

type cancelResponse struct {
	Status   string `json:"status"`
	Response *struct {
		Type string `json:"type"`
		Data *struct {
			Statuses []any `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

func toFloat(d decimal.Decimal) float64 {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
