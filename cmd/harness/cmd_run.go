package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beatspace-qa/harness/internal/catalog"
	"github.com/beatspace-qa/harness/internal/report"
	"github.com/beatspace-qa/harness/internal/result"
	"github.com/beatspace-qa/harness/internal/run"
)

var runFlags struct {
	artifact string
}

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run scenarios against the configured backend",
	Long: "Runs the named scenarios in order, or every catalog scenario when\n" +
		"none are given. Scenario selection falls back to the scenarios list\n" +
		"in the config file ($HARNESS_SCENARIOS).",
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.artifact, "artifact", "o", "",
		"Write the JSON run artifact to this path (overrides config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.artifact != "" {
		cfg.ArtifactPath = runFlags.artifact
	}

	ids := args
	if len(ids) == 0 {
		ids = cfg.Scenarios
	}
	scenarios, err := catalog.Select(ids)
	if err != nil {
		return exitWith(exitConfig, err)
	}

	log := buildLogger()
	defer log.Sync()

	h := run.NewHarness(cfg, log)
	rep := report.New(cmd.OutOrStdout())
	runner := &run.Runner{H: h, Rep: rep}

	// A first SIGINT cancels the run; in-flight probes resolve, remaining
	// steps skip, and the artifact is still written. stop unregisters the
	// handler as soon as the context is done, so a second SIGINT falls
	// through to default handling and kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		stop()
	}()

	scenarioIDs := make([]string, 0, len(scenarios))
	for _, sc := range scenarios {
		scenarioIDs = append(scenarioIDs, sc.ID)
	}
	sum := result.NewRunSummary(scenarioIDs)

	outcomes := runner.RunAll(ctx, scenarios)
	sum.Finish(h.Store)

	rep.Summary(h.Store, sum, scenarios)

	if cfg.ArtifactPath != "" {
		artifact := &result.Artifact{
			Config:  cfg.Snapshot(),
			Summary: *sum,
			Results: h.Store.All(),
		}
		if err := result.WriteArtifact(cfg.ArtifactPath, artifact); err != nil {
			log.Error("writing artifact", zap.Error(err))
			fmt.Fprintf(cmd.ErrOrStderr(), "writing artifact: %v\n", err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Artifact: %s\n", cfg.ArtifactPath)
		}
	}

	if ctx.Err() != nil {
		return exitWith(exitInterrupted, fmt.Errorf("interrupted"))
	}
	failed := 0
	for _, out := range outcomes {
		if out.Failed {
			failed++
		}
	}
	if failed > 0 {
		return exitWith(exitFailures, fmt.Errorf("%d of %d scenarios failed", failed, len(outcomes)))
	}
	return nil
}
