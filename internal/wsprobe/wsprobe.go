// Package wsprobe drives WebSocket probes: authenticated connects,
// ping/heartbeat round-trips, negative-path rejection checks, and
// multi-connection fan-out for a single principal.
package wsprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beatspace-qa/harness/internal/probe"
)

// Prober opens sockets against one backend. The ws base URL is derived
// from the harness API base by swapping the scheme.
type Prober struct {
	base        string
	openTimeout time.Duration
	recvTimeout time.Duration
	log         *zap.Logger

	// Strict turns malformed frames (missing type or timestamp) from soft
	// warnings into failures.
	Strict bool
}

// NewProber creates a Prober from the HTTP API base URL.
func NewProber(apiBase string, openTimeout, recvTimeout time.Duration, log *zap.Logger) *Prober {
	if log == nil {
		log = zap.NewNop()
	}
	base := apiBase
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return &Prober{
		base:        strings.TrimRight(base, "/"),
		openTimeout: openTimeout,
		recvTimeout: recvTimeout,
		log:         log,
	}
}

func (p *Prober) dial(ctx context.Context, path string) (*websocket.Conn, int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: p.openTimeout}
	target := p.base + path
	conn, resp, err := dialer.DialContext(ctx, target, nil)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return conn, status, err
}

// parseFrame reports the type and timestamp of a framed JSON message and
// whether the frame is well-formed (both fields present, timestamp
// parseable as ISO-8601).
func parseFrame(data []byte) (typ string, wellFormed bool) {
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", false
	}
	typ, _ = frame["type"].(string)
	ts, _ := frame["timestamp"].(string)
	if typ == "" || ts == "" {
		return typ, false
	}
	return typ, parseTimestamp(ts)
}

// parseTimestamp accepts the ISO-8601 variants backends actually emit,
// with and without timezone or fractional seconds.
func parseTimestamp(ts string) bool {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if _, err := time.Parse(layout, ts); err == nil {
			return true
		}
	}
	return false
}

// Ping connects, sends {type:"ping", timestamp}, and waits for a reply.
// Acceptance is deliberately relaxed: any well-formed frame within the
// receive timeout counts, because the server may push a welcome frame
// before (or instead of) the pong. Malformed frames are soft warnings
// unless Strict is set.
func (p *Prober) Ping(ctx context.Context, name, path string) probe.Result {
	start := time.Now()
	res := probe.Result{Name: name, Method: "WS", URL: p.base + path, ExpectedStatus: http.StatusSwitchingProtocols}

	conn, status, err := p.dial(ctx, path)
	res.ActualStatus = status
	if err != nil {
		res.Error = fmt.Sprintf("websocket connect: %v", err)
		res.Kind = probe.KindWSClosedUnexpected
		res.LatencySeconds = time.Since(start).Seconds()
		return res
	}
	defer conn.Close()

	ping := map[string]string{
		"type":      "ping",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if err := conn.WriteJSON(ping); err != nil {
		res.Error = fmt.Sprintf("sending ping: %v", err)
		res.Kind = probe.KindWSClosedUnexpected
		res.LatencySeconds = time.Since(start).Seconds()
		return res
	}

	deadline := time.Now().Add(p.recvTimeout)
	conn.SetReadDeadline(deadline)
	var warnings []string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err) {
				res.Error = fmt.Sprintf("socket closed before a framed reply: %v", err)
			} else {
				res.Error = fmt.Sprintf("no framed reply within %s: %v", p.recvTimeout, err)
			}
			res.Kind = probe.KindWSClosedUnexpected
			res.LatencySeconds = time.Since(start).Seconds()
			return res
		}

		typ, wellFormed := parseFrame(data)
		if wellFormed {
			res.Success = true
			res.Body = map[string]any{"reply_type": typ, "warnings": warnings}
			res.LatencySeconds = time.Since(start).Seconds()
			return res
		}

		if p.Strict {
			res.Error = fmt.Sprintf("malformed frame (missing type/timestamp): %s", excerpt(data))
			res.Kind = probe.KindShape
			res.LatencySeconds = time.Since(start).Seconds()
			return res
		}
		warning := fmt.Sprintf("malformed frame ignored: %s", excerpt(data))
		warnings = append(warnings, warning)
		p.log.Debug("ws frame missing type/timestamp", zap.String("frame", excerpt(data)))
	}
}

// Reject asserts that the server refuses a handshake (or closes the
// socket before any data frame) for an invalid or missing token. Either
// outcome satisfies the negative assertion.
func (p *Prober) Reject(ctx context.Context, name, path string) probe.Result {
	start := time.Now()
	res := probe.Result{Name: name, Method: "WS", URL: p.base + path}

	conn, status, err := p.dial(ctx, path)
	res.ActualStatus = status
	if err != nil {
		res.Success = true
		res.Kind = probe.KindWSClosedExpected
		res.Body = map[string]any{"refusal": err.Error()}
		res.LatencySeconds = time.Since(start).Seconds()
		return res
	}
	defer conn.Close()

	// Handshake was accepted; the server must close before sending data.
	conn.SetReadDeadline(time.Now().Add(p.openTimeout))
	_, data, err := conn.ReadMessage()
	res.LatencySeconds = time.Since(start).Seconds()
	if err != nil {
		res.Success = true
		res.Kind = probe.KindWSClosedExpected
		if closeErr, ok := err.(*websocket.CloseError); ok {
			res.Body = map[string]any{"close_code": closeErr.Code}
		}
		return res
	}

	res.Error = fmt.Sprintf("server accepted invalid credentials and sent a frame: %s", excerpt(data))
	res.Kind = probe.KindStatusMismatch
	return res
}

// Fanout opens n concurrent sockets for the same principal, requires each
// to round-trip one message, and closes them all on teardown. One Result
// per socket is returned, in socket order.
func (p *Prober) Fanout(ctx context.Context, name, path string, n int) []probe.Result {
	results := make([]probe.Result, n)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			res := p.Ping(gctx, fmt.Sprintf("%s (socket %d)", name, i+1), path)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results
}

func excerpt(data []byte) string {
	const max = 120
	s := string(data)
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multibyte rune.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
