package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/polydeck/polydeck/internal/domain"
)

const (
	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second

	// keepalivePeriod is how often a ping frame is written while the
	// session is open.
	keepalivePeriod = 5 * time.Second

	// feedWriteWait is the time allowed to write a frame to the peer.
	feedWriteWait = 10 * time.Second
)

// FeedClient implements domain.PriceFeed over the CLOB market-data
// websocket. Each CollectBooks call opens one short-lived session: a single
// subscribe frame is sent on connect, server frames are collected until
// every requested instrument has a book snapshot or the session deadline
// passes, and the socket is always closed on exit.
type FeedClient struct {
	wsURL   string
	timeout time.Duration
	dialer  *websocket.Dialer
}

// NewFeedClient creates a feed client for the given websocket URL. timeout
// caps the wall-clock duration of one collection session.
func NewFeedClient(wsURL string, timeout time.Duration) *FeedClient {
	return &FeedClient{
		wsURL:   wsURL,
		timeout: timeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

// CollectBooks opens a streaming session subscribed to the full id batch and
// returns the book snapshots observed before the deadline. A read error or
// deadline expiry ends collection and returns whatever was gathered; only a
// failure to establish the session is reported as an error.
func (f *FeedClient) CollectBooks(ctx context.Context, assetIDs []string) (map[string]domain.BookSnapshot, error) {
	snapshots := make(map[string]domain.BookSnapshot, len(assetIDs))
	if len(assetIDs) == 0 {
		return snapshots, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	conn, _, err := f.dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/feed: connect %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	sub := wsSubscribe{AssetIDs: assetIDs, Type: "market"}
	conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		return nil, fmt.Errorf("polymarket/feed: subscribe: %w", err)
	}

	deadline, _ := ctx.Deadline()

	// Keepalive pings for the lifetime of the session. WriteControl is safe
	// to call concurrently with the close-frame WriteMessage at the end of
	// collection; WriteMessage here would race it.
	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(keepalivePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ticker.C:
				deadline := time.Now().Add(feedWriteWait)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()

	pending := make(map[string]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		pending[id] = struct{}{}
	}

	for len(pending) > 0 {
		conn.SetReadDeadline(deadline)
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Deadline expiry or a dropped connection: return whatever has
			// been collected so far.
			break
		}
		f.handleFrame(raw, snapshots, pending)

		select {
		case <-ctx.Done():
			return snapshots, nil
		default:
		}
	}

	conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	_ = conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)

	return snapshots, nil
}

// handleFrame decodes one raw server message, which may be a single frame or
// an array of frames, and folds its content into the snapshot map. Malformed
// frames are skipped, never fatal.
func (f *FeedClient) handleFrame(raw []byte, snapshots map[string]domain.BookSnapshot, pending map[string]struct{}) {
	var frames []json.RawMessage
	if err := json.Unmarshal(raw, &frames); err != nil {
		frames = []json.RawMessage{raw}
	}

	for _, frame := range frames {
		var env wsEnvelope
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}

		switch env.EventType {
		case "book":
			var book wsBook
			if err := json.Unmarshal(frame, &book); err != nil {
				continue
			}
			snap := snapshots[book.AssetID]
			snap.AssetID = book.AssetID
			snap.BestBid, snap.BestAsk = bestLevels(book.Bids, book.Asks)
			snapshots[book.AssetID] = snap
			delete(pending, book.AssetID)

		case "last_trade_price":
			var trade wsLastTrade
			if err := json.Unmarshal(frame, &trade); err != nil {
				continue
			}
			price, err := strconv.ParseFloat(trade.Price, 64)
			if err != nil {
				continue
			}
			snap := snapshots[trade.AssetID]
			snap.AssetID = trade.AssetID
			snap.LastTrade = price
			snapshots[trade.AssetID] = snap
		}
	}
}

// Compile-time interface check.
var _ domain.PriceFeed = (*FeedClient)(nil)
