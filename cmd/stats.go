package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscan/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job and contact statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		jobs, err := st.JobStats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}
		contacts, err := st.ContactStats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}

		formatStats(os.Stdout, jobs, contacts)
		return nil
	},
}

func formatStats(w io.Writer, jobs *model.JobStats, contacts *model.ContactStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "JOBS")
	fmt.Fprintf(tw, "  total\t%d\n", jobs.Total)
	for status, n := range jobs.ByStatus {
		fmt.Fprintf(tw, "  %s\t%d\n", status, n)
	}
	fmt.Fprintf(tw, "  avg duration\t%.1fs\n", jobs.AvgProcessingSecs)

	fmt.Fprintln(tw, "CONTACTS")
	fmt.Fprintf(tw, "  total\t%d\n", contacts.Total)
	for status, n := range contacts.ByStatus {
		fmt.Fprintf(tw, "  %s\t%d\n", status, n)
	}
	fmt.Fprintf(tw, "  needs review\t%d\n", contacts.NeedsReview)

	_ = tw.Flush()
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
