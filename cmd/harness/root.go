package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beatspace-qa/harness/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

// Exit codes: 0 all passed, 1 failures, 2 configuration error, 130
// interrupted.
const (
	exitFailures    = 1
	exitConfig      = 2
	exitInterrupted = 130
)

var rootFlags struct {
	configPath string
	verbose    bool
}

var rootCmd = &cobra.Command{
	Use:   "harness",
	Short: "End-to-end API and WebSocket checks against a live BeatSpace backend",
	Long: "harness drives scripted scenarios (REST probes, fixtures, WebSocket\n" +
		"connections) against a running backend and reports per-step results.",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootFlags.configPath, "config", "c", "",
		"Config file path (default harness.yaml or $HARNESS_CONFIG)")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.Version = version
}

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, exitWith(exitConfig, err)
	}
	return cfg, nil
}

// buildLogger returns a stderr debug logger when --verbose or
// HARNESS_DEBUG is set, otherwise a nop logger. Stdout stays reserved for
// the reporter.
func buildLogger() *zap.Logger {
	if !rootFlags.verbose && os.Getenv("HARNESS_DEBUG") == "" {
		return zap.NewNop()
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{"stderr"}
	log, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var coded *exitError
		if errors.As(err, &coded) {
			os.Exit(coded.code)
		}
		os.Exit(exitFailures)
	}
}
