package catalog

import (
	"context"
	"net/url"

	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/run"
)

// realtimeEvents checks the notification socket: an authenticated
// heartbeat round-trip, two rejection paths, and a three-socket fan-out
// for the same user.
func realtimeEvents() run.Scenario {
	wsPath := func(h *run.Harness, token string) (string, bool) {
		entry, ok := h.Auth.Entry(RoleBuyer)
		if !ok {
			return "", false
		}
		path := "/ws/" + entry.UserID
		if token != "" {
			path += "?token=" + url.QueryEscape(token)
		}
		return path, true
	}

	wsStep := func(name string, do func(ctx context.Context, h *run.Harness, path string) []probe.Result, token func(h *run.Harness) string) run.Step {
		return run.Step{
			Name: name, Kind: run.StepWSProbe, Policy: run.PolicyRequired, Roles: []string{RoleBuyer},
			Run: func(ctx context.Context, h *run.Harness) []probe.Result {
				path, ok := wsPath(h, token(h))
				if !ok {
					return []probe.Result{probe.Skip(name, "buyer auth context unavailable")}
				}
				return do(ctx, h, path)
			},
		}
	}

	buyerToken := func(h *run.Harness) string {
		tok, _ := h.Auth.Token(RoleBuyer)
		return tok
	}

	return run.Scenario{
		ID:            "realtime-events",
		Description:   "websocket heartbeat, token rejection, and per-user fan-out",
		RequiredRoles: []string{RoleBuyer},
		Critical:      []string{"ws heartbeat", "ws rejects invalid token"},
		Steps: []run.Step{
			wsStep("ws heartbeat", func(ctx context.Context, h *run.Harness, path string) []probe.Result {
				return []probe.Result{h.WS.Ping(ctx, "ws heartbeat", path)}
			}, buyerToken),
			wsStep("ws rejects invalid token", func(ctx context.Context, h *run.Harness, path string) []probe.Result {
				return []probe.Result{h.WS.Reject(ctx, "ws rejects invalid token", path)}
			}, func(*run.Harness) string { return "invalid_short_token" }),
			wsStep("ws rejects missing token", func(ctx context.Context, h *run.Harness, path string) []probe.Result {
				return []probe.Result{h.WS.Reject(ctx, "ws rejects missing token", path)}
			}, func(*run.Harness) string { return "" }),
			wsStep("ws fan-out", func(ctx context.Context, h *run.Harness, path string) []probe.Result {
				return h.WS.Fanout(ctx, "ws fan-out", path, 3)
			}, buyerToken),
		},
	}
}
