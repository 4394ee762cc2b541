package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old terminal jobs",
	Long:  "Removes completed and failed jobs older than the retention window. Pending and processing jobs are never touched.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		days, err := cmd.Flags().GetInt("days")
		if err != nil {
			return eris.Wrap(err, "cleanup")
		}

		n, err := env.Orch.CleanupOldJobs(ctx, days)
		if err != nil {
			return eris.Wrap(err, "cleanup")
		}

		fmt.Printf("Deleted %d jobs\n", n)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().Int("days", 0, "delete jobs older than this many days (default: retention from config)")
	rootCmd.AddCommand(cleanupCmd)
}
