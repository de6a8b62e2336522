package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/beatspace-qa/harness/internal/fixture"
	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/run"
)

// monitoringBody builds a subscription request for one asset. campaign_id
// is deliberately absent: standalone subscriptions must be accepted
// without one.
func monitoringBody(assetID, frequency, serviceLevel string) map[string]any {
	now := time.Now()
	return map[string]any{
		"asset_ids":     []string{assetID},
		"frequency":     frequency,
		"start_date":    isoDate(now),
		"end_date":      isoDate(now.AddDate(0, 1, 0)),
		"service_level": serviceLevel,
		"notification_preferences": map[string]any{
			"email":  true,
			"in_app": true,
			"sms":    false,
		},
	}
}

// serviceForAsset finds the subscription covering assetID in a services
// listing body.
func serviceForAsset(body any, assetID string) (map[string]any, bool) {
	arr, err := probe.AsArray(body, servicesEnvelope)
	if err != nil {
		return nil, false
	}
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		ids, _ := obj["asset_ids"].([]any)
		for _, id := range ids {
			if s, ok := id.(string); ok && s == assetID {
				return obj, true
			}
		}
	}
	return nil, false
}

// monitoringSubscribe covers the buyer-facing subscription lifecycle:
// create a standalone subscription for a marketplace asset, see it in the
// buyer's listing, and delete it again.
func monitoringSubscribe() run.Scenario {
	var assetID, serviceID string

	create := run.Step{
		Name: "create monitoring service", Kind: run.StepProbe, Policy: run.PolicyRequired,
		Roles: []string{RoleBuyer},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			res := h.Client.Do(ctx, probe.Probe{
				Name: "create monitoring service", Method: http.MethodPost, Endpoint: epMonitoring,
				ExpectedStatus: http.StatusOK, AuthRole: RoleBuyer, RequireJSON: true,
				Body: monitoringBody(assetID, "weekly", "standard"),
			})
			if !res.Success {
				return []probe.Result{res}
			}
			id, ok := probe.StringField(res.Body, "id")
			if !ok {
				if v, found := probe.NestedField(res.Body, "service.id"); found {
					id, ok = v.(string)
				}
			}
			if !ok || id == "" {
				return []probe.Result{res.Fail(probe.KindShape, "created service has no id")}
			}
			serviceID = id
			return []probe.Result{res}
		},
	}

	list := run.Step{
		Name: "buyer sees subscription", Kind: run.StepProbe, Policy: run.PolicyRequired,
		Roles: []string{RoleBuyer},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			res := h.Client.Do(ctx, probe.Probe{
				Name: "buyer sees subscription", Method: http.MethodGet, Endpoint: epMonitoring,
				ExpectedStatus: http.StatusOK, AuthRole: RoleBuyer, RequireJSON: true,
			})
			if !res.Success {
				return []probe.Result{res}
			}
			svc, ok := serviceForAsset(res.Body, assetID)
			if !ok {
				return []probe.Result{res.Fail(probe.KindShape,
					fmt.Sprintf("no subscription for asset %s in services listing", assetID))}
			}
			if freq, _ := probe.StringField(svc, "frequency"); freq != "weekly" {
				return []probe.Result{res.Fail(probe.KindShape,
					fmt.Sprintf("subscription frequency = %q, want weekly", freq))}
			}
			if lvl, _ := probe.StringField(svc, "service_level"); lvl != "standard" {
				return []probe.Result{res.Fail(probe.KindShape,
					fmt.Sprintf("subscription service_level = %q, want standard", lvl))}
			}
			if cid, ok := svc["campaign_id"]; ok && cid != nil {
				return []probe.Result{res.Fail(probe.KindShape,
					"standalone subscription unexpectedly bound to a campaign")}
			}
			return []probe.Result{res}
		},
	}

	cleanup := run.Step{
		Name: "delete monitoring service", Kind: run.StepFixtureTeardown,
		Policy: run.PolicyContinueOnFail, Cleanup: true, Roles: []string{RoleBuyer},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			if serviceID == "" {
				return []probe.Result{probe.Skip("delete monitoring service", "no service was created")}
			}
			return []probe.Result{h.Client.Do(ctx, probe.Probe{
				Name: "delete monitoring service", Method: http.MethodDelete,
				Endpoint: epMonitoring + "/" + serviceID,
				ExpectedStatus: http.StatusOK, AuthRole: RoleBuyer,
			})}
		},
	}

	return run.Scenario{
		ID:            "monitoring-subscribe",
		Description:   "buyer creates, lists, and deletes a standalone subscription",
		RequiredRoles: []string{RoleBuyer},
		Critical:      []string{"create monitoring service", "buyer sees subscription"},
		Steps:         []run.Step{pickAssetStep(&assetID), create, list, cleanup},
	}
}

// monitoringAdmin exercises the admin side of subscriptions: edit and
// delete a buyer's subscription, confirm the deletion on both views, then
// let the buyer recreate it.
func monitoringAdmin() run.Scenario {
	var assetID, serviceID, recreatedID string

	ensure := run.Step{
		Name: "ensure monitoring subscription", Kind: run.StepFixtureSetup, Policy: run.PolicyRequired,
		Roles: []string{RoleBuyer},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			verify := probe.Probe{
				Name: "verify monitoring subscription", Method: http.MethodGet, Endpoint: epMonitoring,
				ExpectedStatus: http.StatusOK, AuthRole: RoleBuyer, RequireJSON: true,
			}
			f, results, ok := h.Fixtures.Ensure(ctx, fixture.Recipe{
				Kind: fixture.KindMonitoringSubscription, Name: "ensure monitoring subscription",
				OwningRole: RoleBuyer,
				Verify:     &verify,
				VerifyMatch: func(body any) (string, bool) {
					svc, found := serviceForAsset(body, assetID)
					if !found {
						return "", false
					}
					id, _ := probe.StringField(svc, "id")
					return id, id != ""
				},
				Create: probe.Probe{
					Name: "create monitoring subscription", Method: http.MethodPost, Endpoint: epMonitoring,
					ExpectedStatus: http.StatusOK, AuthRole: RoleBuyer, RequireJSON: true,
					Body: monitoringBody(assetID, "weekly", "standard"),
				},
				CreateID: func(body any) (string, error) {
					if id, ok := probe.StringField(body, "id"); ok && id != "" {
						return id, nil
					}
					if v, ok := probe.NestedField(body, "service.id"); ok {
						if id, ok := v.(string); ok && id != "" {
							return id, nil
						}
					}
					return "", fmt.Errorf("created service has no id")
				},
				// The scenario deletes the subscription itself; a cleanup
				// probe here would double-delete.
			})
			if ok {
				serviceID = f.ServerID
			}
			return results
		},
	}

	update := run.Step{
		Name: "admin updates subscription", Kind: run.StepProbe, Policy: run.PolicyRequired,
		Roles: []string{RoleAdmin},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			return []probe.Result{h.Client.Do(ctx, probe.Probe{
				Name: "admin updates subscription", Method: http.MethodPut,
				Endpoint: epMonitoring + "/" + serviceID,
				ExpectedStatus: http.StatusOK, AuthRole: RoleAdmin,
				Body: map[string]any{
					"frequency":     "monthly",
					"service_level": "premium",
					"notification_preferences": map[string]any{
						"email":  true,
						"in_app": false,
						"sms":    false,
					},
					"end_date": isoDate(time.Now().AddDate(0, 2, 0)),
				},
			})}
		},
	}

	del := run.Step{
		Name: "admin deletes subscription", Kind: run.StepProbe, Policy: run.PolicyRequired,
		Roles: []string{RoleAdmin},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			return []probe.Result{h.Client.Do(ctx, probe.Probe{
				Name: "admin deletes subscription", Method: http.MethodDelete,
				Endpoint: epMonitoring + "/" + serviceID,
				ExpectedStatus: http.StatusOK, AuthRole: RoleAdmin,
			})}
		},
	}

	absence := func(name, role string) run.Step {
		return run.Step{
			Name: name, Kind: run.StepProbe, Policy: run.PolicyRequired, Roles: []string{role},
			Run: func(ctx context.Context, h *run.Harness) []probe.Result {
				res := h.Client.Do(ctx, probe.Probe{
					Name: name, Method: http.MethodGet, Endpoint: epMonitoring,
					ExpectedStatus: http.StatusOK, AuthRole: role, RequireJSON: true,
				})
				if !res.Success {
					return []probe.Result{res}
				}
				arr, err := probe.AsArray(res.Body, servicesEnvelope)
				if err != nil {
					return []probe.Result{res.Fail(probe.KindShape, err.Error())}
				}
				if _, found := findByID(arr, serviceID); found {
					return []probe.Result{res.Fail(probe.KindShape,
						fmt.Sprintf("deleted subscription %s still listed", serviceID))}
				}
				return []probe.Result{res}
			},
		}
	}

	recreate := run.Step{
		Name: "buyer recreates subscription", Kind: run.StepProbe, Policy: run.PolicyRequired,
		Roles: []string{RoleBuyer},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			res := h.Client.Do(ctx, probe.Probe{
				Name: "buyer recreates subscription", Method: http.MethodPost, Endpoint: epMonitoring,
				ExpectedStatus: http.StatusOK, AuthRole: RoleBuyer, RequireJSON: true,
				Body: monitoringBody(assetID, "weekly", "standard"),
			})
			if res.Success {
				if id, ok := probe.StringField(res.Body, "id"); ok {
					recreatedID = id
				} else if v, ok := probe.NestedField(res.Body, "service.id"); ok {
					recreatedID, _ = v.(string)
				}
			}
			return []probe.Result{res}
		},
	}

	cleanup := run.Step{
		Name: "delete recreated subscription", Kind: run.StepFixtureTeardown,
		Policy: run.PolicyContinueOnFail, Cleanup: true, Roles: []string{RoleBuyer},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			if recreatedID == "" {
				return []probe.Result{probe.Skip("delete recreated subscription", "nothing was recreated")}
			}
			return []probe.Result{h.Client.Do(ctx, probe.Probe{
				Name: "delete recreated subscription", Method: http.MethodDelete,
				Endpoint: epMonitoring + "/" + recreatedID,
				ExpectedStatus: http.StatusOK, AuthRole: RoleBuyer,
			})}
		},
	}

	return run.Scenario{
		ID:            "monitoring-admin",
		Description:   "admin edits and deletes a buyer subscription, buyer recreates it",
		RequiredRoles: []string{RoleAdmin, RoleBuyer},
		Critical:      []string{"admin updates subscription", "admin deletes subscription"},
		Steps: []run.Step{
			pickAssetStep(&assetID),
			ensure,
			update,
			del,
			absence("subscription gone from admin view", RoleAdmin),
			absence("subscription gone from buyer view", RoleBuyer),
			recreate,
			cleanup,
		},
	}
}
