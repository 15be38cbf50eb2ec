package marketdata

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"
)

const (
	MainnetWsURL = "wss://api.hyperliquid.xyz/ws"
	TestnetWsURL = "wss://api.hyperliquid-testnet.xyz/ws"

	// Mids older than this are ignored and callers fall back to REST.
	_midsMaxAge = 5 * time.Second
)

// Stream keeps a live all-mids cache fed by the venue's websocket feed.
type Stream struct {
	wss *ws.WebSocket
	now func() time.Time

	mu        sync.RWMutex
	mids      map[string]float64
	updatedAt time.Time
}

// NewStream creates a stream against the given websocket endpoint.
func NewStream(ctx context.Context, url string) *Stream {
	return &Stream{
		wss: ws.New(ctx, url),
		now: time.Now,
	}
}

// Close tears the websocket down.
func (s *Stream) Close() {
	s.wss.Close()
}

// StartWebsocket dials the feed.
func (s *Stream) StartWebsocket(ctx context.Context) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	return nil
}

type subscribeRequest struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

type subscription struct {
	Type string `json:"type"`
}

type subscribeResponse struct {
	Channel string `json:"channel"`
	Data    struct {
		Method       string       `json:"method"`
		Subscription subscription `json:"subscription"`
	} `json:"data"`
}

type allMidsEvent struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

// SubscribeAllMids subscribes the all-mids channel and waits for the ack.
func (s *Stream) SubscribeAllMids(ctx context.Context) error {
	appendIntoRegister := true
	if err := s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := subscribeRequest{
				Method:       "subscribe",
				Subscription: subscription{Type: "allMids"},
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp subscribeResponse
			if err := m.Unmarshal(&resp); err != nil {
				return false, nil
			}

			return resp.Channel == "subscriptionResponse" && resp.Data.Subscription.Type == "allMids", nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait")
	}

	return nil
}

// ObserveAllMids consumes mid updates into the cache until the context or
// the process shuts down.
func (s *Stream) ObserveAllMids(ctx context.Context) (unsubscribe func()) {
	ch, cancel := s.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				event, ok := ws.ReadMessage[allMidsEvent](m)
				if !ok || event.Channel != "allMids" {
					continue
				}

				s.store(event.Data.Mids)
			}
		}
	}()

	return cancel
}

func (s *Stream) store(raw map[string]string) {
	mids := make(map[string]float64, len(raw))
	for coin, px := range raw {
		mid, err := strconv.ParseFloat(px, 64)
		if err != nil {
			logs.Warnf("drop unparsable mid, coin: %s, px: %s", coin, px)
			continue
		}
		mids[coin] = mid
	}
	if len(mids) == 0 {
		return
	}

	s.mu.Lock()
	s.mids = mids
	s.updatedAt = s.now()
	s.mu.Unlock()
}

// Mids returns a copy of the cached mids when they are fresh enough to use.
func (s *Stream) Mids() (map[string]float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.mids == nil || s.now().Sub(s.updatedAt) > _midsMaxAge {
		return nil, false
	}

	mids := make(map[string]float64, len(s.mids))
	for coin, mid := range s.mids {
		mids[coin] = mid
	}
	return mids, true
}
