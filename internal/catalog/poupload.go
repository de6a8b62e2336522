package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/beatspace-qa/harness/internal/fixture"
	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/run"
)

// pdfFixture is a minimal but structurally valid PDF document.
var pdfFixture = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

// poUpload drives an offer request through quoting and purchase-order
// upload, then verifies the stored document from both the public URL and
// the admin listing. A regression here once produced po URLs like
// "x.pdf.pdf", so the URL check counts ".pdf" occurrences.
func poUpload() run.Scenario {
	var assetID, offerID, poURL string

	createOffer := run.Step{
		Name: "create offer request", Kind: run.StepFixtureSetup, Policy: run.PolicyRequired,
		Roles: []string{RoleBuyer},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			f, results, ok := h.Fixtures.Ensure(ctx, fixture.Recipe{
				Kind: fixture.KindOffer, Name: "create offer request", OwningRole: RoleBuyer,
				// Always create: the PO flow needs a fresh offer in a known
				// initial state.
				Create: probe.Probe{
					Name: "create offer request", Method: http.MethodPost, Endpoint: epOfferRequests,
					ExpectedStatus: http.StatusOK, AuthRole: RoleBuyer, RequireJSON: true,
					Body: map[string]any{
						"asset_id":      assetID,
						"campaign_name": fmt.Sprintf("po-upload-check-%d", time.Now().Unix()),
						"start_date":    isoDate(time.Now()),
						"duration":      "3 months",
					},
				},
				CreateID: func(body any) (string, error) {
					if id, ok := probe.StringField(body, "id"); ok && id != "" {
						return id, nil
					}
					return "", fmt.Errorf("created offer has no id")
				},
				Cleanup: func(id string) probe.Probe {
					return probe.Probe{
						Name: "delete offer request", Method: http.MethodDelete,
						Endpoint: epAdminOfferRequests + "/" + id,
						ExpectedStatus: http.StatusOK, AuthRole: RoleAdmin,
					}
				},
			})
			if ok {
				offerID = f.ServerID
			}
			return results
		},
	}

	quote := run.Step{
		Name: "admin quotes offer", Kind: run.StepProbe, Policy: run.PolicyRequired,
		Roles: []string{RoleAdmin},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			return []probe.Result{h.Client.Do(ctx, probe.Probe{
				Name: "admin quotes offer", Method: http.MethodPut,
				Endpoint: epAdminOfferRequests + "/" + offerID + "/status",
				ExpectedStatus: http.StatusOK, AuthRole: RoleAdmin,
				Body: map[string]any{"status": "Quoted"},
			})}
		},
	}

	upload := run.Step{
		Name: "buyer uploads po", Kind: run.StepProbe, Policy: run.PolicyRequired,
		Roles: []string{RoleBuyer},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			res := h.Client.Do(ctx, probe.Probe{
				Name: "buyer uploads po", Method: http.MethodPost,
				Endpoint: "/offers/" + offerID + "/upload-po",
				ExpectedStatus: http.StatusOK, AuthRole: RoleBuyer, RequireJSON: true,
				Multipart: &probe.Multipart{
					FieldName: "file", FileName: "purchase_order.pdf",
					ContentType: "application/pdf", Content: pdfFixture,
					Fields: map[string]string{"uploaded_by": RoleBuyer},
				},
			})
			if !res.Success {
				return []probe.Result{res}
			}
			url, ok := probe.StringField(res.Body, "po_url")
			if !ok || url == "" {
				return []probe.Result{res.Fail(probe.KindShape, "upload response missing po_url")}
			}
			if !strings.HasSuffix(url, ".pdf") || strings.Count(url, ".pdf") != 1 {
				return []probe.Result{res.Fail(probe.KindShape,
					fmt.Sprintf("po_url %q must end in exactly one .pdf", url))}
			}
			poURL = url
			return []probe.Result{res}
		},
	}

	fetch := run.Step{
		Name: "fetch po document", Kind: run.StepProbe, Policy: run.PolicyRequired,
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			// Document URLs are served outside the API base and without
			// authentication.
			res := h.Client.Do(ctx, probe.Probe{
				Name: "fetch po document", Method: http.MethodGet, Endpoint: poURL,
				ExpectedStatus: http.StatusOK,
			})
			if !res.Success {
				return []probe.Result{res}
			}
			raw, _ := probe.StringField(res.Body, probe.RawBodyKey)
			if !strings.HasPrefix(raw, "%PDF") {
				return []probe.Result{res.Fail(probe.KindShape, "stored document is not a PDF")}
			}
			return []probe.Result{res}
		},
	}

	adminSees := run.Step{
		Name: "admin sees po metadata", Kind: run.StepProbe, Policy: run.PolicyRequired,
		Roles: []string{RoleAdmin},
		Run: func(ctx context.Context, h *run.Harness) []probe.Result {
			res := h.Client.Do(ctx, probe.Probe{
				Name: "admin sees po metadata", Method: http.MethodGet, Endpoint: epAdminOfferRequests,
				ExpectedStatus: http.StatusOK, AuthRole: RoleAdmin, RequireJSON: true,
			})
			if !res.Success {
				return []probe.Result{res}
			}
			arr, err := probe.AsArray(res.Body, "")
			if err != nil {
				return []probe.Result{res.Fail(probe.KindShape, err.Error())}
			}
			offer, found := findByID(arr, offerID)
			if !found {
				return []probe.Result{res.Fail(probe.KindShape,
					fmt.Sprintf("offer %s missing from admin listing", offerID))}
			}
			if missing := probe.MissingFields(offer, "po_document_url", "po_uploaded_by", "po_uploaded_at"); len(missing) > 0 {
				return []probe.Result{res.Fail(probe.KindShape,
					fmt.Sprintf("offer missing po fields: %s", strings.Join(missing, ", ")))}
			}
			if by, _ := probe.StringField(offer, "po_uploaded_by"); by != RoleBuyer {
				return []probe.Result{res.Fail(probe.KindShape,
					fmt.Sprintf("po_uploaded_by = %q, want %q", by, RoleBuyer))}
			}
			return []probe.Result{res}
		},
	}

	return run.Scenario{
		ID:            "po-upload",
		Description:   "offer request quoting and purchase-order upload round-trip",
		RequiredRoles: []string{RoleBuyer, RoleAdmin},
		Critical:      []string{"buyer uploads po", "fetch po document"},
		Steps:         []run.Step{pickAssetStep(&assetID), createOffer, quote, upload, fetch, adminSees},
	}
}
