package main

import (
	"github.com/spf13/cobra"

	"github.com/beatspace-qa/harness/internal/report"
	"github.com/beatspace-qa/harness/internal/result"
)

var reportCmd = &cobra.Command{
	Use:   "report <artifact>",
	Short: "Re-render a run artifact as human-readable output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := result.ReadArtifact(args[0])
		if err != nil {
			return exitWith(exitConfig, err)
		}
		report.New(cmd.OutOrStdout()).Render(a)
		return nil
	},
}
