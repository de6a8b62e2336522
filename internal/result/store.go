// Package result accumulates probe outcomes for one harness run and
// serializes them into the run artifact.
package result

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/beatspace-qa/harness/internal/probe"
)

// Store is an in-memory ordered log of probe results keyed by name.
// The first result to claim a name keeps it; later duplicates are
// suffixed with #2, #3, and so on.
type Store struct {
	order  []string
	byName map[string]probe.Result
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{byName: make(map[string]probe.Result)}
}

// Append records a result, renaming on collision, and returns the final
// name under which it was stored. Results are immutable once appended.
func (s *Store) Append(r probe.Result) string {
	name := r.Name
	if name == "" {
		name = "unnamed"
	}
	if _, taken := s.byName[name]; taken {
		for i := 2; ; i++ {
			candidate := fmt.Sprintf("%s#%d", name, i)
			if _, taken := s.byName[candidate]; !taken {
				name = candidate
				break
			}
		}
	}
	r.Name = name
	s.byName[name] = r
	s.order = append(s.order, name)
	return name
}

// Get looks up a result by its stored name.
func (s *Store) Get(name string) (probe.Result, bool) {
	r, ok := s.byName[name]
	return r, ok
}

// All returns every result in insertion order.
func (s *Store) All() []probe.Result {
	out := make([]probe.Result, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// Counts returns total, passed, and failed probe counts. Every appended
// result is either passed or failed; there is no third bucket.
func (s *Store) Counts() (total, passed, failed int) {
	total = len(s.order)
	for _, name := range s.order {
		if s.byName[name].Success {
			passed++
		} else {
			failed++
		}
	}
	return total, passed, total - passed
}

// PassRate returns passed/total as a percentage; 0 for an empty store.
func (s *Store) PassRate() float64 {
	total, passed, _ := s.Counts()
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

// Failure names one failed probe and its error classification.
type Failure struct {
	Name  string          `json:"name"`
	Kind  probe.ErrorKind `json:"kind,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Failures returns the failed results in insertion order.
func (s *Store) Failures() []Failure {
	var out []Failure
	for _, name := range s.order {
		r := s.byName[name]
		if !r.Success {
			out = append(out, Failure{Name: r.Name, Kind: r.Kind, Error: r.Error})
		}
	}
	return out
}

// RunSummary is the aggregate outcome of one harness invocation.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Scenarios  []string  `json:"scenarios"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total_probes"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	PassRate   float64   `json:"pass_rate"`
	Failures   []Failure `json:"failures,omitempty"`
}

// NewRunSummary builds a summary for the given scenario ids with a fresh
// run id and the clock started.
func NewRunSummary(scenarios []string) *RunSummary {
	return &RunSummary{
		RunID:     uuid.NewString(),
		Scenarios: scenarios,
		StartedAt: time.Now().UTC(),
	}
}

// Finish stamps the end time and folds in the store's counters.
func (rs *RunSummary) Finish(s *Store) {
	rs.FinishedAt = time.Now().UTC()
	rs.Total, rs.Passed, rs.Failed = s.Counts()
	rs.PassRate = s.PassRate()
	rs.Failures = s.Failures()
}
