package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Process the pending job backlog",
	Long:  "Drains pending OCR jobs oldest first with bounded concurrency. One job's failure does not stop the batch.",
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

		result, err := env.Orch.ProcessPendingJobs(ctx)
		if err != nil {
			return eris.Wrap(err, "pending")
		}

		fmt.Printf("Processed: %d\nFailed:    %d\n", result.Processed, result.Failed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}
