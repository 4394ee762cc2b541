package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <contact-id>",
	Short: "Scan a contact's business card",
	Long:  "Creates an OCR job for the contact and runs the full pipeline: fetch, extract, classify, reconcile.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()
		if err := env.Store.Migrate(ctx); err != nil {
			return err
		}

		j, err := env.Orch.CreateJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "scan")
		}

		createOnly, _ := cmd.Flags().GetBool("create-only")
		if createOnly {
			fmt.Printf("Job %s queued for contact %s\n", j.ID, j.ContactID)
			return nil
		}

		if err := env.Orch.ProcessJob(ctx, j.ID); err != nil {
			return eris.Wrap(err, "scan")
		}

		contact, err := env.Store.GetContact(ctx, j.ContactID)
		if err != nil {
			return eris.Wrap(err, "scan")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(contact)
	},
}

func init() {
	scanCmd.Flags().Bool("create-only", false, "queue the job without processing it")
	rootCmd.AddCommand(scanCmd)
}
