// Package run executes scenarios: ordered, named steps over shared
// harness state, with per-step policies and per-backend locking so two
// runs never interleave mutations against the same live backend.
package run

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beatspace-qa/harness/internal/auth"
	"github.com/beatspace-qa/harness/internal/config"
	"github.com/beatspace-qa/harness/internal/fixture"
	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/result"
	"github.com/beatspace-qa/harness/internal/wsprobe"
)

// Policy decides how a step failure affects the rest of the scenario.
type Policy string

const (
	// PolicyRequired marks the scenario failed and skips the remaining
	// non-cleanup steps.
	PolicyRequired Policy = "required"
	// PolicyOptional records the failure and continues.
	PolicyOptional Policy = "optional"
	// PolicyContinueOnFail continues unconditionally.
	PolicyContinueOnFail Policy = "continue_on_fail"
)

// StepKind classifies a step for reporting purposes.
type StepKind string

const (
	StepProbe           StepKind = "probe"
	StepWSProbe         StepKind = "ws_probe"
	StepFixtureSetup    StepKind = "fixture_setup"
	StepFixtureTeardown StepKind = "fixture_teardown"
	StepComposite       StepKind = "composite"
)

// Harness bundles the shared state one run operates on. Tokens and
// fixtures live only in memory; the backend is the only shared resource.
type Harness struct {
	Config   *config.Config
	Client   *probe.Client
	Auth     *auth.Context
	Fixtures *fixture.Manager
	WS       *wsprobe.Prober
	Store    *result.Store
	Log      *zap.Logger
}

// NewHarness wires the harness components from configuration.
func NewHarness(cfg *config.Config, log *zap.Logger) *Harness {
	if log == nil {
		log = zap.NewNop()
	}
	ac := auth.NewContext()
	client := probe.NewClient(cfg.APIBase(), time.Duration(cfg.Timeouts.RequestSeconds)*time.Second, ac, log)
	return &Harness{
		Config:   cfg,
		Client:   client,
		Auth:     ac,
		Fixtures: fixture.NewManager(client, log),
		WS: wsprobe.NewProber(cfg.APIBase(),
			time.Duration(cfg.Timeouts.WSOpenSeconds)*time.Second,
			time.Duration(cfg.Timeouts.WSRecvSeconds)*time.Second,
			log),
		Store: result.NewStore(),
		Log:   log,
	}
}

// Step is one unit in a scenario. Run returns every probe Result the step
// produced; a step that returns none still yields exactly one synthesized
// Result so the store always reflects each executed step.
type Step struct {
	Name    string
	Kind    StepKind
	Policy  Policy
	Cleanup bool
	Roles   []string
	Run     func(ctx context.Context, h *Harness) []probe.Result
}

// Scenario is a static, ordered description of one end-to-end flow.
type Scenario struct {
	ID            string
	Description   string
	RequiredRoles []string
	// Critical names the probes rolled up in the reporter's critical
	// tests block.
	Critical []string
	Steps    []Step
}

// Outcome is the per-scenario verdict: failed iff any required step
// failed.
type Outcome struct {
	ScenarioID string
	Failed     bool
	Duration   time.Duration
}

// Reporter receives structured events as the run progresses. The concrete
// reporter owns all stdout formatting.
type Reporter interface {
	Section(title, description string)
	StepResult(r probe.Result)
	ScenarioDone(id string, failed bool, d time.Duration)
}

// backendLocks serializes scenario execution per backend base URL.
var backendLocks sync.Map

func backendLock(base string) *sync.Mutex {
	mu, _ := backendLocks.LoadOrStore(base, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Runner executes scenarios sequentially against one harness.
type Runner struct {
	H   *Harness
	Rep Reporter
}

// RunScenario executes one scenario: acquires the backend lock, logs in
// the required roles, walks the steps in order, and flushes fixture
// teardown at the end regardless of outcome.
func (r *Runner) RunScenario(ctx context.Context, sc Scenario) Outcome {
	mu := backendLock(r.H.Client.Base())
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	r.Rep.Section(sc.ID, sc.Description)

	r.loginRoles(ctx, sc.RequiredRoles)

	requiredFailed := false
	for _, step := range sc.Steps {
		if requiredFailed && !step.Cleanup {
			r.record(probe.Skip(step.Name, "earlier required step failed"))
			continue
		}
		if ctx.Err() != nil && !step.Cleanup {
			r.record(probe.Skip(step.Name, "interrupted"))
			continue
		}
		if reason, ok := r.missingRole(step); ok {
			r.record(probe.Skip(step.Name, reason))
			if step.Policy == PolicyRequired {
				requiredFailed = true
			}
			continue
		}

		results := step.Run(ctx, r.H)
		if len(results) == 0 {
			results = []probe.Result{{Name: step.Name, Success: true}}
		}
		stepFailed := false
		for _, res := range results {
			r.record(res)
			if !res.Success {
				stepFailed = true
			}
		}

		if stepFailed && step.Policy == PolicyRequired {
			requiredFailed = true
			r.H.Log.Debug("required step failed, short-circuiting",
				zap.String("scenario", sc.ID), zap.String("step", step.Name))
		}
	}

	// Fixture teardown runs even after a required failure; its failures
	// are recorded but never change the verdict.
	for _, res := range r.H.Fixtures.Teardown(ctx) {
		r.record(res)
	}

	d := time.Since(start)
	r.Rep.ScenarioDone(sc.ID, requiredFailed, d)
	return Outcome{ScenarioID: sc.ID, Failed: requiredFailed, Duration: d}
}

// RunAll executes the scenarios in order and returns their outcomes.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Outcome {
	outcomes := make([]Outcome, 0, len(scenarios))
	for _, sc := range scenarios {
		outcomes = append(outcomes, r.RunScenario(ctx, sc))
	}
	return outcomes
}

// loginRoles acquires auth contexts for every required role that has
// credentials. Roles without credentials are reported as skips here; the
// dependent steps will skip again with their own reason.
func (r *Runner) loginRoles(ctx context.Context, roles []string) {
	for _, role := range roles {
		if r.H.Auth.Has(role) {
			continue
		}
		cred, ok := r.H.Config.Credential(role)
		if !ok {
			r.record(probe.Skip(
				fmt.Sprintf("%s login", role),
				fmt.Sprintf("no credentials configured for role %q", role)))
			continue
		}
		res := r.H.Auth.Login(ctx, r.H.Client, role, cred)
		r.record(res)
	}
}

// missingRole returns a skip reason when a step's required role has no
// auth context.
func (r *Runner) missingRole(step Step) (string, bool) {
	for _, role := range step.Roles {
		if !r.H.Auth.Has(role) {
			return fmt.Sprintf("auth context for role %q unavailable", role), true
		}
	}
	return "", false
}

func (r *Runner) record(res probe.Result) {
	name := r.H.Store.Append(res)
	res.Name = name
	r.Rep.StepResult(res)
}
