package wsprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatspace-qa/harness/internal/probe"
)

var upgrader = websocket.Upgrader{}

// wsServer upgrades connections for valid tokens and echoes pings.
// Behavior knobs cover the scenarios the prober must distinguish.
func wsServer(t *testing.T, validToken string, welcomeFirst, malformedOnly bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token != validToken {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if welcomeFirst {
			conn.WriteJSON(map[string]any{
				"type":      "connection_established",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		}
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if malformedOnly {
				conn.WriteJSON(map[string]any{"hello": "no type here"})
				continue
			}
			conn.WriteJSON(map[string]any{
				"type":      "pong",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		}
	}))
}

func newTestProber(srvURL string) *Prober {
	return NewProber(srvURL, 2*time.Second, 2*time.Second, nil)
}

func TestPing_PongReply(t *testing.T) {
	srv := wsServer(t, "tok", false, false)
	defer srv.Close()

	p := newTestProber(srv.URL)
	res := p.Ping(context.Background(), "ws ping", "/ws/u1?token=tok")

	require.True(t, res.Success, "ping failed: %s", res.Error)
	assert.Equal(t, http.StatusSwitchingProtocols, res.ActualStatus)
	body := res.Body.(map[string]any)
	assert.Equal(t, "pong", body["reply_type"])
}

func TestPing_WelcomeFrameAccepted(t *testing.T) {
	// Relaxed acceptance: a welcome frame with type+timestamp satisfies
	// the heartbeat even though it is not a pong.
	srv := wsServer(t, "tok", true, false)
	defer srv.Close()

	p := newTestProber(srv.URL)
	res := p.Ping(context.Background(), "ws ping", "/ws/u1?token=tok")

	require.True(t, res.Success, "ping failed: %s", res.Error)
	body := res.Body.(map[string]any)
	assert.Equal(t, "connection_established", body["reply_type"])
}

func TestPing_MalformedFramesTimeOut(t *testing.T) {
	srv := wsServer(t, "tok", false, true)
	defer srv.Close()

	p := NewProber(srv.URL, 1*time.Second, 500*time.Millisecond, nil)
	res := p.Ping(context.Background(), "ws ping", "/ws/u1?token=tok")

	require.False(t, res.Success)
	assert.Equal(t, probe.KindWSClosedUnexpected, res.Kind)
}

func TestPing_StrictFailsOnMalformedFrame(t *testing.T) {
	srv := wsServer(t, "tok", false, true)
	defer srv.Close()

	p := newTestProber(srv.URL)
	p.Strict = true
	res := p.Ping(context.Background(), "ws ping strict", "/ws/u1?token=tok")

	require.False(t, res.Success)
	assert.Equal(t, probe.KindShape, res.Kind)
}

func TestReject_HandshakeRefused(t *testing.T) {
	srv := wsServer(t, "tok", false, false)
	defer srv.Close()

	p := newTestProber(srv.URL)

	res := p.Reject(context.Background(), "ws reject invalid", "/ws/u1?token=invalid_short_token")
	require.True(t, res.Success, "rejection not detected: %s", res.Error)
	assert.Equal(t, probe.KindWSClosedExpected, res.Kind)

	res = p.Reject(context.Background(), "ws reject empty", "/ws/u1")
	require.True(t, res.Success, "empty-token rejection not detected: %s", res.Error)
}

func TestReject_FailsWhenServerAccepts(t *testing.T) {
	// A server that welcomes everyone must fail the negative assertion.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]any{
			"type":      "welcome",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		// Hold the socket open long enough for the prober to read.
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := newTestProber(srv.URL)
	res := p.Reject(context.Background(), "ws reject", "/ws/u1?token=bad")

	require.False(t, res.Success)
	assert.Equal(t, probe.KindStatusMismatch, res.Kind)
}

func TestFanout_ThreeSockets(t *testing.T) {
	srv := wsServer(t, "tok", false, false)
	defer srv.Close()

	p := newTestProber(srv.URL)
	results := p.Fanout(context.Background(), "ws fanout", "/ws/u1?token=tok", 3)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.True(t, res.Success, "socket %d failed: %s", i+1, res.Error)
	}
	assert.Equal(t, "ws fanout (socket 1)", results[0].Name)
	assert.Equal(t, "ws fanout (socket 3)", results[2].Name)
}

func TestParseTimestamp(t *testing.T) {
	valid := []string{
		"2026-08-30T12:00:00Z",
		"2026-08-30T12:00:00.123456Z",
		"2026-08-30T12:00:00",
		"2026-08-30T12:00:00.123456",
	}
	for _, ts := range valid {
		assert.True(t, parseTimestamp(ts), "timestamp %q should parse", ts)
	}
	assert.False(t, parseTimestamp("yesterday"))
	assert.False(t, parseTimestamp(""))
}

func TestExcerpt_RuneBoundary(t *testing.T) {
	short := []byte("ping")
	assert.Equal(t, "ping", excerpt(short))

	// The leading ASCII byte puts every 2-byte rune off the 120-byte cut.
	long := []byte("x" + strings.Repeat("é", 100))
	got := excerpt(long)
	assert.True(t, utf8.ValidString(got), "excerpt split a rune: %q", got)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len(got), 120+len("…"))
}
