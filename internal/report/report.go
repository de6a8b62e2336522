// Package report renders run output. It is the only component that
// formats stdout; everything else hands it structured events.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/result"
	"github.com/beatspace-qa/harness/internal/run"
)

// excerptLimit caps response-body excerpts in human output.
const excerptLimit = 200

// Reporter writes human-readable run output to one writer.
type Reporter struct {
	w io.Writer
}

// New creates a Reporter writing to w.
func New(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Section prints a scenario header.
func (r *Reporter) Section(title, description string) {
	fmt.Fprintf(r.w, "\n--- %s ---\n", title)
	if description != "" {
		fmt.Fprintf(r.w, "    %s\n", description)
	}
	fmt.Fprintln(r.w)
}

// StepResult prints one per-probe line, with a body excerpt and error on
// failure.
func (r *Reporter) StepResult(res probe.Result) {
	switch {
	case res.Skipped:
		fmt.Fprintf(r.w, "  ⏭  %-50s skipped – %s\n", res.Name, res.Error)
	case res.Success:
		fmt.Fprintf(r.w, "  ✅ %-50s %s – %s\n", res.Name, statusLabel(res), latency(res))
	default:
		fmt.Fprintf(r.w, "  ❌ %-50s %s – %s\n", res.Name, statusLabel(res), latency(res))
		if res.Error != "" {
			fmt.Fprintf(r.w, "     %s\n", res.Error)
		}
		if ex := bodyExcerpt(res.Body); ex != "" {
			fmt.Fprintf(r.w, "     body: %s\n", ex)
		}
	}
}

// ScenarioDone prints the per-scenario verdict line.
func (r *Reporter) ScenarioDone(id string, failed bool, d time.Duration) {
	label := "PASSED"
	if failed {
		label = "FAILED"
	}
	fmt.Fprintf(r.w, "\n  Scenario: %s (%s)\n", label, d.Round(time.Millisecond))
}

// Summary prints the aggregate pass-rate, the critical-tests roll-up
// derived from each scenario's allow-list, and the grouped FAILED TESTS
// block.
func (r *Reporter) Summary(store *result.Store, sum *result.RunSummary, scenarios []run.Scenario) {
	total, passed, failed := store.Counts()
	fmt.Fprintf(r.w, "\nResults: %d/%d passed (%.1f%%), %d failed\n", passed, total, store.PassRate(), failed)

	r.criticalRollup(store, scenarios)

	failures := store.Failures()
	if len(failures) > 0 {
		fmt.Fprintln(r.w, "\nFAILED TESTS:")
		for _, f := range failures {
			kind := string(f.Kind)
			if kind == "" {
				kind = "failure"
			}
			fmt.Fprintf(r.w, "  ❌ %-50s [%s] %s\n", f.Name, kind, f.Error)
		}
	}

	fmt.Fprintf(r.w, "\nRun %s finished in %s\n",
		sum.RunID, sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond))
}

func (r *Reporter) criticalRollup(store *result.Store, scenarios []run.Scenario) {
	printedHeader := false
	for _, sc := range scenarios {
		for _, name := range sc.Critical {
			res, ok := store.Get(name)
			if !ok {
				continue
			}
			if !printedHeader {
				fmt.Fprintln(r.w, "\nCritical tests:")
				printedHeader = true
			}
			mark := "✅"
			if !res.Success {
				mark = "❌"
			}
			fmt.Fprintf(r.w, "  %s %-20s %s\n", mark, sc.ID, name)
		}
	}
}

// Render re-renders a previously written artifact as human output, for
// `harness report`.
func (r *Reporter) Render(a *result.Artifact) {
	fmt.Fprintf(r.w, "Run %s — scenarios: %s\n",
		a.Summary.RunID, strings.Join(a.Summary.Scenarios, ", "))
	fmt.Fprintf(r.w, "Started %s\n\n", a.Summary.StartedAt.Format(time.RFC3339))

	for _, res := range a.Results {
		r.StepResult(res)
	}

	fmt.Fprintf(r.w, "\nResults: %d/%d passed (%.1f%%), %d failed\n",
		a.Summary.Passed, a.Summary.Total, a.Summary.PassRate, a.Summary.Failed)

	if len(a.Summary.Failures) > 0 {
		fmt.Fprintln(r.w, "\nFAILED TESTS:")
		for _, f := range a.Summary.Failures {
			kind := string(f.Kind)
			if kind == "" {
				kind = "failure"
			}
			fmt.Fprintf(r.w, "  ❌ %-50s [%s] %s\n", f.Name, kind, f.Error)
		}
	}
}

// ListScenarios prints the catalog table for `harness list`.
func (r *Reporter) ListScenarios(scenarios []run.Scenario) {
	fmt.Fprintln(r.w)
	fmt.Fprintf(r.w, "  %-28s %-16s %-6s %s\n", "SCENARIO", "ROLES", "STEPS", "DESCRIPTION")
	fmt.Fprintf(r.w, "  %-28s %-16s %-6s %s\n", "--------", "-----", "-----", "-----------")
	for _, sc := range scenarios {
		roles := strings.Join(sc.RequiredRoles, ",")
		if roles == "" {
			roles = "-"
		}
		fmt.Fprintf(r.w, "  %-28s %-16s %-6d %s\n", sc.ID, roles, len(sc.Steps), sc.Description)
	}
	fmt.Fprintln(r.w)
}

func statusLabel(res probe.Result) string {
	if res.ActualStatus == 0 {
		return "no response"
	}
	return fmt.Sprintf("%d", res.ActualStatus)
}

func latency(res probe.Result) string {
	return (time.Duration(res.LatencySeconds * float64(time.Second))).Round(time.Millisecond).String()
}

// bodyExcerpt renders a decoded body as compact JSON capped at
// excerptLimit characters.
func bodyExcerpt(body any) string {
	if body == nil {
		return ""
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	s := string(data)
	if len(s) <= excerptLimit {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multibyte rune.
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
