package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beatspace-qa/harness/internal/probe"
	"github.com/beatspace-qa/harness/internal/result"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestListCommand(t *testing.T) {
	out, err := execute(t, "list")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"admin-dashboard", "marketplace-state", "po-upload", "realtime-events"} {
		if !strings.Contains(out, id) {
			t.Errorf("list output missing %q:\n%s", id, out)
		}
	}
}

func TestReportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.json")
	err := result.WriteArtifact(path, &result.Artifact{
		Summary: result.RunSummary{RunID: "r-test", Total: 1, Passed: 1, PassRate: 100},
		Results: []probe.Result{{Name: "ping", Success: true, ActualStatus: 200}},
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "report", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Run r-test") || !strings.Contains(out, "✅ ping") {
		t.Errorf("report output:\n%s", out)
	}
}

func TestReportCommand_MissingArtifact(t *testing.T) {
	_, err := execute(t, "report", filepath.Join(t.TempDir(), "absent.json"))
	var coded *exitError
	if !errors.As(err, &coded) || coded.code != exitConfig {
		t.Errorf("err = %v, want exit code %d", err, exitConfig)
	}
}

func TestRunCommand_ConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.yaml")
	if err := os.WriteFile(path, []byte("base_url: http://localhost:8001/api\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "run", "--config", path)
	var coded *exitError
	if !errors.As(err, &coded) || coded.code != exitConfig {
		t.Fatalf("err = %v, want exit code %d", err, exitConfig)
	}
	if !strings.Contains(err.Error(), "/api") {
		t.Errorf("error should name the /api suffix rule: %v", err)
	}
	rootFlags.configPath = ""
}

func TestRunCommand_UnknownScenario(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "harness.yaml")
	if err := os.WriteFile(cfg, []byte("base_url: http://localhost:8001\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "run", "--config", cfg, "no-such-scenario")
	var coded *exitError
	if !errors.As(err, &coded) || coded.code != exitConfig {
		t.Fatalf("err = %v, want exit code %d", err, exitConfig)
	}
	rootFlags.configPath = ""
}
