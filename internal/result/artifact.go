package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beatspace-qa/harness/internal/probe"
)

// Artifact is the single machine-readable document written per run when
// an artifact path is configured: the config snapshot, the run summary,
// and every result in insertion order.
type Artifact struct {
	Config  any            `json:"config_snapshot"`
	Summary RunSummary     `json:"run_summary"`
	Results []probe.Result `json:"results"`
}

// WriteArtifact serializes the artifact to path, creating parent
// directories as needed.
func WriteArtifact(path string, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating artifact dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", path, err)
	}
	return nil
}

// ReadArtifact loads a previously written artifact for re-rendering.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing artifact %s: %w", path, err)
	}
	return &a, nil
}
