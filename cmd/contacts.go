package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscan/internal/model"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage contact records",
}

var contactsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a contact with a card image URL",
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

		cardURL, _ := cmd.Flags().GetString("card-url")
		eventID, _ := cmd.Flags().GetString("event")

		contact := &model.Contact{
			FullName:        model.PlaceholderName,
			EventID:         eventID,
			BusinessCardURL: cardURL,
			Status:          model.ContactProcessing,
		}
		if err := st.CreateContact(ctx, contact); err != nil {
			return eris.Wrap(err, "contacts add")
		}

		fmt.Printf("Contact %s created\n", contact.ID)
		return nil
	},
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
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

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		contacts, err := st.ListContacts(ctx, model.ContactStatus(status), limit)
		if err != nil {
			return eris.Wrap(err, "contacts list")
		}
		if len(contacts) == 0 {
			fmt.Fprintln(os.Stderr, "No contacts found.")
			return nil
		}

		formatContactsList(os.Stdout, contacts)
		return nil
	},
}

var contactsShowCmd = &cobra.Command{
	Use:   "show <contact-id>",
	Short: "Show full details of a contact",
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

		contact, err := st.GetContact(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "contacts show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(contact)
	},
}

func formatContactsList(w io.Writer, contacts []model.Contact) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tEMAIL\tSTATUS\tCONF")
	for _, c := range contacts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			c.ID, c.FullName, truncate(c.Company, 30), c.Email, c.Status, c.OCRConfidence)
	}
	_ = tw.Flush()
}

func init() {
	contactsAddCmd.Flags().String("card-url", "", "business card image URL")
	contactsAddCmd.Flags().String("event", "", "event the card was collected at")
	_ = contactsAddCmd.MarkFlagRequired("card-url")

	contactsListCmd.Flags().String("status", "", "filter by contact status")
	contactsListCmd.Flags().Int("limit", 50, "max number of contacts to display")

	contactsCmd.AddCommand(contactsAddCmd)
	contactsCmd.AddCommand(contactsListCmd)
	contactsCmd.AddCommand(contactsShowCmd)
	rootCmd.AddCommand(contactsCmd)
}
