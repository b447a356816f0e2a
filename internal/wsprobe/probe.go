// Package wsprobe checks that the CLOB market websocket is reachable and
// answering heartbeats.
package wsprobe

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultMarketURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

type Options struct {
	// Attempts bounds the dial+heartbeat rounds before giving up.
	Attempts int
	Timeout  time.Duration

	BackoffMin time.Duration
	BackoffMax time.Duration

	Dialer *websocket.Dialer
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 5 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	return o
}

type Result struct {
	URL       string
	Attempts  int
	Handshake time.Duration
	RoundTrip time.Duration
}

// Probe dials url and exchanges one PING/PONG, retrying with jittered backoff.
func Probe(ctx context.Context, url string, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if strings.TrimSpace(url) == "" {
		url = DefaultMarketURL
	}
	res := Result{URL: url}

	backoff := opts.BackoffMin
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		res.Attempts = attempt
		hs, rtt, err := probeOnce(ctx, url, opts)
		if err == nil {
			res.Handshake, res.RoundTrip = hs, rtt
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if attempt < opts.Attempts {
			sleepWithJitter(ctx, backoff)
			backoff = nextBackoff(backoff, opts.BackoffMax)
		}
	}
	return res, fmt.Errorf("websocket probe %s failed after %d attempts: %w", url, res.Attempts, lastErr)
}

func probeOnce(ctx context.Context, url string, opts Options) (handshake, roundTrip time.Duration, err error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	conn, _, err := opts.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	handshake = time.Since(start)

	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	sent := time.Now()
	if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
		return handshake, 0, fmt.Errorf("write ping: %w", err)
	}
	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrCloseSent) {
				return handshake, 0, fmt.Errorf("connection closed before pong")
			}
			return handshake, 0, fmt.Errorf("read: %w", err)
		}
		if typ != websocket.TextMessage {
			continue
		}
		// The market channel may push book snapshots before answering.
		if strings.EqualFold(strings.TrimSpace(string(msg)), "pong") {
			roundTrip = time.Since(sent)
			break
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return handshake, roundTrip, nil
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	j := int64(d) / 7
	if j > 0 {
		d = time.Duration(int64(d) + rand.Int63n(2*j+1) - j)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
