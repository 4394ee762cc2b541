package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscan/internal/model"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect OCR jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list <contact-id>",
	Short: "List a contact's OCR jobs",
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

		jobs, err := st.ListJobsByContact(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}
		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show full details of a job",
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

		j, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(j)
	},
}

func formatJobsList(w io.Writer, jobs []model.Job) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tDURATION\tERROR")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Status, j.CreatedAt.Format(time.RFC3339),
			jobDuration(&j), truncate(j.ErrorMessage, 60))
	}
	_ = tw.Flush()
}

func jobDuration(j *model.Job) string {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return "-"
	}
	return j.CompletedAt.Sub(*j.StartedAt).Round(time.Millisecond).String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}
