// Package fixture manages server-side seed state through the same HTTP
// surface the probes use: each fixture kind declares a verification probe,
// a creation probe, and an optional cleanup probe. Verification first
// makes creation idempotent.
package fixture

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/beatspace-qa/harness/internal/probe"
)

// Kind enumerates the fixture kinds the harness knows how to seed.
type Kind string

const (
	KindUser                   Kind = "user"
	KindAsset                  Kind = "asset"
	KindCampaign               Kind = "campaign"
	KindOffer                  Kind = "offer"
	KindMonitoringSubscription Kind = "monitoring_subscription"
	KindUploadedPDF            Kind = "uploaded_pdf"
)

// Fixture is a registered piece of server-side seed state.
type Fixture struct {
	Kind          Kind
	ServerID      string
	OwningRole    string
	CreatedByStep string
}

// Recipe declares how to verify, create, and clean up one fixture.
type Recipe struct {
	Kind       Kind
	Name       string
	OwningRole string

	// Verify runs first; when it succeeds and VerifyMatch finds the
	// expected shape, creation is skipped. Nil means always create.
	Verify      *probe.Probe
	VerifyMatch func(body any) (serverID string, ok bool)

	Create   probe.Probe
	CreateID func(body any) (string, error)

	// Cleanup builds the teardown probe for a created fixture. Nil means
	// the fixture is left in place.
	Cleanup func(serverID string) probe.Probe
}

type entry struct {
	fixture Fixture
	cleanup *probe.Probe
}

// Manager registers fixtures as they are created and tears them down in
// reverse creation order at run end.
type Manager struct {
	client  *probe.Client
	created []entry
	byKind  map[Kind]Fixture
	log     *zap.Logger
}

// NewManager creates a Manager bound to one backend client.
func NewManager(client *probe.Client, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		client: client,
		byKind: make(map[Kind]Fixture),
		log:    log,
	}
}

// Ensure makes the fixture described by the recipe exist, verifying
// before creating. All probe outcomes are returned for the result store;
// the returned ok is false when the fixture could not be made available.
func (m *Manager) Ensure(ctx context.Context, r Recipe) (Fixture, []probe.Result, bool) {
	var results []probe.Result

	if r.Verify != nil {
		res := m.client.Do(ctx, *r.Verify)
		results = append(results, res)
		if res.Success && r.VerifyMatch != nil {
			if id, ok := r.VerifyMatch(res.Body); ok {
				f := Fixture{Kind: r.Kind, ServerID: id, OwningRole: r.OwningRole, CreatedByStep: r.Name}
				m.byKind[r.Kind] = f
				m.log.Debug("fixture already present",
					zap.String("kind", string(r.Kind)), zap.String("id", id))
				return f, results, true
			}
		}
	}

	res := m.client.Do(ctx, r.Create)
	results = append(results, res)
	if !res.Success {
		return Fixture{}, results, false
	}

	id := ""
	if r.CreateID != nil {
		var err error
		id, err = r.CreateID(res.Body)
		if err != nil {
			results[len(results)-1] = res.Fail(probe.KindShape, fmt.Sprintf("fixture id: %v", err))
			return Fixture{}, results, false
		}
	}

	f := Fixture{Kind: r.Kind, ServerID: id, OwningRole: r.OwningRole, CreatedByStep: r.Name}
	e := entry{fixture: f}
	if r.Cleanup != nil {
		p := r.Cleanup(id)
		e.cleanup = &p
	}
	m.created = append(m.created, e)
	m.byKind[r.Kind] = f
	m.log.Debug("fixture created",
		zap.String("kind", string(r.Kind)), zap.String("id", id))
	return f, results, true
}

// Get returns the registered fixture of a kind, if any.
func (m *Manager) Get(kind Kind) (Fixture, bool) {
	f, ok := m.byKind[kind]
	return f, ok
}

// Teardown flushes created fixtures in reverse creation order. Teardown
// failures are recorded but never mask the run outcome; the caller
// appends the results and moves on.
func (m *Manager) Teardown(ctx context.Context) []probe.Result {
	var results []probe.Result
	for i := len(m.created) - 1; i >= 0; i-- {
		e := m.created[i]
		if e.cleanup == nil {
			continue
		}
		res := m.client.Do(ctx, *e.cleanup)
		if !res.Success {
			m.log.Debug("fixture teardown failed",
				zap.String("kind", string(e.fixture.Kind)),
				zap.String("error", res.Error))
		}
		results = append(results, res)
	}
	m.created = nil
	return results
}
