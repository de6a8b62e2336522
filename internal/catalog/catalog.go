// Package catalog declares the end-to-end scenarios the harness knows how
// to run. Each scenario is a data description built from probes and small
// closures over shared run state; endpoints and response envelopes are
// declared here, not in the core.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/run"
)

// Role names used across scenarios. The configuration supplies exactly
// one credential per role; missing credentials skip dependent steps.
const (
	RoleAdmin = "admin"
	RoleBuyer = "buyer"
)

// Endpoints exercised by the catalog, relative to the API base.
const (
	epAdminOfferRequests = "/admin/offer-requests"
	epAdminAssets        = "/admin/assets"
	epAdminUsers         = "/admin/users"
	epAdminCampaigns     = "/admin/campaigns"
	epPublicAssets       = "/assets/public"
	epMonitoring         = "/monitoring/services"
	epOfferRequests      = "/offers/requests"
)

// servicesEnvelope is the monitoring list envelope. The backend has been
// seen returning both a bare array and {services: [...]}; the admin
// editing flow settles it on the latter, so that is authoritative here.
const servicesEnvelope = "services"

// builders maps scenario ids to constructors, in execution order. Each
// call returns a fresh Scenario so closure state never leaks between
// runs.
var builders = []struct {
	id    string
	build func() run.Scenario
}{
	{"admin-dashboard", adminDashboard},
	{"marketplace-state", marketplaceState},
	{"monitoring-subscribe", monitoringSubscribe},
	{"monitoring-admin", monitoringAdmin},
	{"po-upload", poUpload},
	{"realtime-events", realtimeEvents},
}

// All returns every catalog scenario in default order.
func All() []run.Scenario {
	out := make([]run.Scenario, 0, len(builders))
	for _, b := range builders {
		out = append(out, b.build())
	}
	return out
}

// Select returns the scenarios for the given ids, preserving request
// order. Unknown ids are configuration errors.
func Select(ids []string) ([]run.Scenario, error) {
	if len(ids) == 0 {
		return All(), nil
	}
	byID := make(map[string]func() run.Scenario, len(builders))
	for _, b := range builders {
		byID[b.id] = b.build
	}
	out := make([]run.Scenario, 0, len(ids))
	for _, id := range ids {
		build, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", id)
		}
		out = append(out, build())
	}
	return out, nil
}

// probeStep wraps a single probe plus optional shape checks into a Step.
func probeStep(policy run.Policy, p probe.Probe, check func(probe.Result) probe.Result) run.Step {
	var roles []string
	if p.AuthRole != "" {
		roles = []string{p.AuthRole}
	}
	return run.Step{
		Name: p.Name, Kind: run.StepProbe, Policy: policy, Roles: roles,
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			res := h.Client.Do(ctx, p)
			if check != nil {
				res = check(res)
			}
			return []probe.Result{res}
		},
	}
}

// pickAssetStep fetches the public marketplace and stores the first
// asset id into target. Scenarios that need a real asset id start here.
func pickAssetStep(target *string) run.Step {
	const name = "pick marketplace asset"
	return run.Step{
		Name: name, Kind: run.StepProbe, Policy: run.PolicyRequired,
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			res := h.Client.Do(ctx, probe.Probe{
				Name: name, Method: http.MethodGet, Endpoint: epPublicAssets,
				ExpectedStatus: http.StatusOK, RequireJSON: true,
			})
			if !res.Success {
				return []probe.Result{res}
			}
			arr, err := probe.AsArray(res.Body, "")
			if err != nil {
				return []probe.Result{res.Fail(probe.KindShape, err.Error())}
			}
			if len(arr) == 0 {
				return []probe.Result{res.Fail(probe.KindShape, "no public assets available")}
			}
			id, ok := probe.StringField(arr[0], "id")
			if !ok {
				return []probe.Result{res.Fail(probe.KindShape, "missing fields: id")}
			}
			*target = id
			return []probe.Result{res}
		},
	}
}

// findByID returns the array element whose "id" field matches.
func findByID(arr []any, id string) (map[string]any, bool) {
	for _, el := range arr {
		if got, ok := probe.StringField(el, "id"); ok && got == id {
			return el.(map[string]any), true
		}
	}
	return nil, false
}

// isoDate formats a date the way the backend expects in request bodies.
func isoDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
