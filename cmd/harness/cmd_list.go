package main

import (
	"github.com/spf13/cobra"

	"github.com/beatspace-qa/harness/internal/catalog"
	"github.com/beatspace-qa/harness/internal/report"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the scenario catalog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		report.New(cmd.OutOrStdout()).ListScenarios(catalog.All())
		return nil
	},
}
