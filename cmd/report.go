package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Reporting commands",
}

var reportMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the operational metrics snapshot as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies(configPath)
		if err != nil {
			return err
		}
		defer deps.Close()

		snap, err := deps.Services.Metrics.Report(context.Background())
		if err != nil {
			return fmt.Errorf("failed to compute metrics: %w", err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	reportCmd.AddCommand(reportMetricsCmd)
	rootCmd.AddCommand(reportCmd)
}
