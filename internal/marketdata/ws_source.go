package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/util"
)

const (
	wsDialTimeout         = 10 * time.Second
	wsReadDeadline        = 90 * time.Second
	wsMaxReconnects       = 5
	wsReconnectDelay      = time.Second
	wsReconnectResetAfter = 5 * time.Minute
)

// wsBarMessage is the wire format of one bar on the stream.
type wsBarMessage struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"ts_ms"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type wsSubscribeRequest struct {
	Op       string `json:"op"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// WSSource streams live bars over a websocket feed.
type WSSource struct {
	url string
	log *log.Logger

	reconnectDelay time.Duration
	resetAfter     time.Duration
}

// NewWSSource creates a live bar source for the given feed URL.
func NewWSSource(url string, logger *log.Logger) *WSSource {
	if logger == nil {
		logger = log.Default()
	}
	return &WSSource{
		url:            url,
		log:            logger,
		reconnectDelay: wsReconnectDelay,
		resetAfter:     wsReconnectResetAfter,
	}
}

// Subscribe connects to the feed and returns a channel of bars for the
// symbol. The initial dial is retried with backoff; after that the
// connection is re-dialed on read failure for as long as the context lives.
// Backoff grows per consecutive failure and holds at its cap, and the
// failure count resets once the outage clears, so a flaky feed costs
// skipped ticks, never a dead stream.
func (s *WSSource) Subscribe(ctx context.Context, symbol string, interval time.Duration) (<-chan domain.MarketBar, error) {
	var conn *websocket.Conn
	err := util.Retry(ctx, wsMaxReconnects, s.reconnectDelay, func() error {
		var dialErr error
		conn, dialErr = s.dial(ctx, symbol, interval)
		return dialErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", domain.ErrDataUnavailable, s.url, err)
	}

	barsCh := make(chan domain.MarketBar, 100)
	go func() {
		defer close(barsCh)
		defer conn.Close()

		reconnects := 0
		var lastFailure time.Time
		for {
			if ctx.Err() != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				now := time.Now()
				if !lastFailure.IsZero() && now.Sub(lastFailure) > s.resetAfter {
					reconnects = 0
				}
				lastFailure = now
				reconnects++
				exp := reconnects
				if exp > wsMaxReconnects {
					exp = wsMaxReconnects
				}
				delay := s.reconnectDelay * time.Duration(1<<(exp-1))
				s.log.Printf("[ws-bars] reconnect %d for %s after %v: %v", reconnects, symbol, delay, err)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
				conn.Close()
				next, dialErr := s.dial(ctx, symbol, interval)
				if dialErr != nil {
					s.log.Printf("[ws-bars] redial failed for %s: %v", symbol, dialErr)
					continue
				}
				conn = next
				continue
			}
			reconnects = 0

			var msg wsBarMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				s.log.Printf("[ws-bars] SKIP: bad payload for %s: %v", symbol, err)
				continue
			}
			if msg.Symbol != "" && msg.Symbol != symbol {
				continue
			}
			bar := domain.MarketBar{
				Symbol:    symbol,
				Timestamp: time.UnixMilli(msg.Timestamp).UTC(),
				Open:      msg.Open,
				High:      msg.High,
				Low:       msg.Low,
				Close:     msg.Close,
				Volume:    msg.Volume,
			}
			if err := bar.Validate(); err != nil {
				s.log.Printf("[ws-bars] SKIP: invalid bar for %s: %v", symbol, err)
				continue
			}
			select {
			case barsCh <- bar:
			case <-ctx.Done():
				return
			}
		}
	}()
	return barsCh, nil
}

func (s *WSSource) dial(ctx context.Context, symbol string, interval time.Duration) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	if err != nil {
		return nil, err
	}
	sub := wsSubscribeRequest{Op: "subscribe", Symbol: symbol, Interval: interval.String()}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

var _ LiveSource = (*WSSource)(nil)
