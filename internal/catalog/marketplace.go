package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/run"
)

// marketplaceState checks the public marketplace invariants without any
// authentication: every asset declares its go-live state, and an asset
// waiting for go-live must carry an expiry date.
func marketplaceState() run.Scenario {
	const fetchName = "public assets"

	fetch := probeStep(run.PolicyRequired, probe.Probe{
		Name: fetchName, Method: http.MethodGet, Endpoint: epPublicAssets,
		ExpectedStatus: http.StatusOK, RequireJSON: true,
	}, checkAssetStates)

	// The marketplace is live data, so a fully-waiting marketplace is not
	// wrong, just unusual. Optional: fails only when expiry-dated assets
	// exist and every one of them is still waiting.
	liveCheck := run.Step{
		Name: "live offers among expiring assets", Kind: run.StepProbe, Policy: run.PolicyOptional,
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			prior, ok := h.Store.Get(fetchName)
			if !ok || !prior.Success {
				return []probe.Result{probe.Skip("live offers among expiring assets", "public assets fetch did not succeed")}
			}
			res := probe.Result{
				Name: "live offers among expiring assets", Success: true,
				Method: prior.Method, URL: prior.URL, ActualStatus: prior.ActualStatus,
			}
			arr, err := probe.AsArray(prior.Body, "")
			if err != nil {
				return []probe.Result{res.Fail(probe.KindShape, err.Error())}
			}
			expiring, live := 0, 0
			for _, el := range arr {
				expiry, _ := probe.StringField(el, "asset_expiry_date")
				if expiry == "" {
					continue
				}
				expiring++
				if waiting, ok := probe.BoolField(el, "waiting_for_go_live"); ok && !waiting {
					live++
				}
			}
			if expiring > 0 && live == 0 {
				return []probe.Result{res.Fail(probe.KindShape,
					fmt.Sprintf("all %d expiry-dated assets are still waiting for go-live", expiring))}
			}
			res.Body = map[string]any{"expiring": expiring, "live": live}
			return []probe.Result{res}
		},
	}

	return run.Scenario{
		ID:          "marketplace-state",
		Description: "public asset go-live and expiry invariants",
		Critical:    []string{fetchName},
		Steps:       []run.Step{fetch, liveCheck},
	}
}

// checkAssetStates validates per-asset invariants on the public listing:
// waiting_for_go_live must be a boolean, and a waiting asset must have a
// non-empty asset_expiry_date.
func checkAssetStates(r probe.Result) probe.Result {
	if !r.Success {
		return r
	}
	arr, err := probe.AsArray(r.Body, "")
	if err != nil {
		return r.Fail(probe.KindShape, err.Error())
	}
	for i, el := range arr {
		waiting, ok := probe.BoolField(el, "waiting_for_go_live")
		if !ok {
			return r.Fail(probe.KindShape,
				fmt.Sprintf("element %d: waiting_for_go_live missing or not boolean", i))
		}
		if waiting {
			if expiry, _ := probe.StringField(el, "asset_expiry_date"); expiry == "" {
				return r.Fail(probe.KindShape,
					fmt.Sprintf("element %d: waiting for go-live without asset_expiry_date", i))
			}
		}
	}
	return r
}
