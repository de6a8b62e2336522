package catalog

import (
	"net/http"

	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/run"
)

// adminDashboard probes the four admin listing endpoints and checks that
// each returns a JSON array whose elements carry the fields the dashboard
// renders.
func adminDashboard() run.Scenario {
	listing := func(name, endpoint string, keys ...string) run.Step {
		return probeStep(run.PolicyRequired, probe.Probe{
			Name: name, Method: http.MethodGet, Endpoint: endpoint,
			ExpectedStatus: http.StatusOK, AuthRole: RoleAdmin, RequireJSON: true,
		}, func(r probe.Result) probe.Result {
			return probe.CheckElementShape(r, "", keys...)
		})
	}

	return run.Scenario{
		ID:            "admin-dashboard",
		Description:   "admin listings return well-formed collections",
		RequiredRoles: []string{RoleAdmin},
		Critical:      []string{"admin login", "admin offer-requests"},
		Steps: []run.Step{
			listing("admin offer-requests", epAdminOfferRequests, "id", "status"),
			listing("admin assets", epAdminAssets, "id", "name"),
			listing("admin users", epAdminUsers, "id", "email"),
			listing("admin campaigns", epAdminCampaigns, "id", "name"),
		},
	}
}
