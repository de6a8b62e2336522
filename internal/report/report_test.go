package report

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/result"
	"github.com/beatspace-qa/harness/internal/run"
)

func TestStepResult_Lines(t *testing.T) {
	var buf strings.Builder
	r := New(&buf)

	r.StepResult(probe.Result{Name: "admin login", Success: true, ActualStatus: 200, LatencySeconds: 0.123})
	r.StepResult(probe.Result{
		Name: "assets list", Success: false, ActualStatus: 500, ExpectedStatus: 200,
		Kind: probe.KindStatusMismatch, Error: "expected status 200, got 500",
		Body: map[string]any{"detail": "boom"},
	})
	r.StepResult(probe.Skip("buyer list", `auth context for role "buyer" unavailable`))

	out := buf.String()
	if !strings.Contains(out, "✅ admin login") {
		t.Errorf("missing pass line:\n%s", out)
	}
	if !strings.Contains(out, "❌ assets list") {
		t.Errorf("missing fail line:\n%s", out)
	}
	if !strings.Contains(out, "expected status 200, got 500") {
		t.Errorf("missing error detail:\n%s", out)
	}
	if !strings.Contains(out, `body: {"detail":"boom"}`) {
		t.Errorf("missing body excerpt:\n%s", out)
	}
	if !strings.Contains(out, "skipped") || !strings.Contains(out, "buyer") {
		t.Errorf("missing skip line:\n%s", out)
	}
}

func TestStepResult_ExcerptCapped(t *testing.T) {
	var buf strings.Builder
	r := New(&buf)

	r.StepResult(probe.Result{
		Name: "big", Success: false, ActualStatus: 500, Kind: probe.KindStatusMismatch,
		Error: "expected status 200, got 500",
		Body:  map[string]any{"blob": strings.Repeat("x", 500)},
	})

	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "body:") && len(line) > excerptLimit+40 {
			t.Errorf("excerpt line too long (%d chars)", len(line))
		}
	}
}

func TestBodyExcerpt_RuneBoundary(t *testing.T) {
	// 2-byte runes straddle the excerpt cut point.
	ex := bodyExcerpt(map[string]any{"blob": strings.Repeat("é", 300)})
	if !utf8.ValidString(ex) {
		t.Errorf("excerpt split a rune: %q", ex)
	}
	if !strings.HasSuffix(ex, "…") {
		t.Errorf("excerpt not truncated: %q", ex)
	}
	if len(ex) > excerptLimit+len("…") {
		t.Errorf("excerpt too long (%d bytes)", len(ex))
	}
}

func TestSummary_CountsAndFailedBlock(t *testing.T) {
	store := result.NewStore()
	store.Append(probe.Result{Name: "a", Success: true})
	store.Append(probe.Result{Name: "b", Success: false, Kind: probe.KindTransport, Error: "connection refused"})

	sum := result.NewRunSummary([]string{"smoke"})
	sum.Finish(store)

	var buf strings.Builder
	New(&buf).Summary(store, sum, []run.Scenario{
		{ID: "smoke", Critical: []string{"a", "b"}},
	})

	out := buf.String()
	if !strings.Contains(out, "Results: 1/2 passed (50.0%), 1 failed") {
		t.Errorf("missing aggregate line:\n%s", out)
	}
	if !strings.Contains(out, "Critical tests:") {
		t.Errorf("missing critical roll-up:\n%s", out)
	}
	if !strings.Contains(out, "FAILED TESTS:") {
		t.Errorf("missing failed block:\n%s", out)
	}
	if !strings.Contains(out, "[transport] connection refused") {
		t.Errorf("missing failure kind:\n%s", out)
	}
}

func TestRender_Artifact(t *testing.T) {
	a := &result.Artifact{
		Summary: result.RunSummary{
			RunID:      "r1",
			Scenarios:  []string{"admin-dashboard"},
			StartedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
			FinishedAt: time.Date(2026, 8, 30, 10, 0, 5, 0, time.UTC),
			Total:      2, Passed: 1, Failed: 1, PassRate: 50,
			Failures: []result.Failure{{Name: "x", Kind: probe.KindShape, Error: "missing fields: id"}},
		},
		Results: []probe.Result{
			{Name: "login", Success: true, ActualStatus: 200},
			{Name: "x", Success: false, ActualStatus: 200, Kind: probe.KindShape, Error: "missing fields: id"},
		},
	}

	var buf strings.Builder
	New(&buf).Render(a)

	out := buf.String()
	if !strings.Contains(out, "Run r1") {
		t.Errorf("missing run header:\n%s", out)
	}
	if !strings.Contains(out, "✅ login") || !strings.Contains(out, "❌ x") {
		t.Errorf("missing step lines:\n%s", out)
	}
	if !strings.Contains(out, "[shape] missing fields: id") {
		t.Errorf("missing failure detail:\n%s", out)
	}
}

func TestListScenarios(t *testing.T) {
	var buf strings.Builder
	New(&buf).ListScenarios([]run.Scenario{
		{ID: "marketplace-state", Description: "public asset expiry invariants", Steps: make([]run.Step, 2)},
		{ID: "po-upload", RequiredRoles: []string{"buyer", "admin"}, Steps: make([]run.Step, 5)},
	})

	out := buf.String()
	if !strings.Contains(out, "marketplace-state") || !strings.Contains(out, "po-upload") {
		t.Errorf("missing rows:\n%s", out)
	}
	if !strings.Contains(out, "buyer,admin") {
		t.Errorf("missing roles:\n%s", out)
	}
}
