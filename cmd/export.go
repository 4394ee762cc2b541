package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscan/internal/export"
	"github.com/sells-group/leadscan/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export contacts to an .xlsx file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		n, err := export.Contacts(ctx, st, args[0], export.Options{
			Status: model.ContactStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "export")
		}

		fmt.Printf("Exported %d contacts to %s\n", n, args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().String("status", "", "filter by contact status (completed, pending_review, ...)")
	exportCmd.Flags().Int("limit", 0, "max number of contacts to export")
	rootCmd.AddCommand(exportCmd)
}
