package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eprofos/backoffice/internal/crm"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge duplicate prospects sharing the same email",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("consolidate"); err != nil {
			return err
		}

		ctx := cmd.Context()
		store, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := crm.NewConsolidator(store).ConsolidateAll(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Merged %d duplicate prospect(s)\n", report.Merged)
		for _, email := range report.Failed {
			fmt.Printf("Failed: %s\n", email)
		}
		if len(report.Failed) > 0 {
			zap.L().Warn("consolidation finished with failures",
				zap.Int("failed", len(report.Failed)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
}
