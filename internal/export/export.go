// Package export writes contacts to spreadsheet files for handoff.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/store"
)

const sheetName = "Contacts"

var columns = []string{
	"Full Name", "Email", "Company", "Title", "Phone", "LinkedIn",
	"Status", "Confidence", "Scanned At",
}

// Options filters what gets exported.
type Options struct {
	// Status limits the export to one contact status; empty exports all.
	Status model.ContactStatus

	// Limit caps how many contacts are written. Default 10000.
	Limit int
}

// Contacts writes matching contacts to an .xlsx file at path and returns how
// many rows were written.
func Contacts(ctx context.Context, st store.Store, path string, opts Options) (int, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10000
	}
	contacts, err := st.ListContacts(ctx, opts.Status, limit)
	if err != nil {
		return 0, eris.Wrap(err, "export: list contacts")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return 0, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}
	for i := range contacts {
		addContactRow(sheet, &contacts[i])
	}

	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}
	zap.L().Info("contacts exported",
		zap.String("path", path),
		zap.Int("count", len(contacts)),
		zap.String("status_filter", string(opts.Status)),
	)
	return len(contacts), nil
}

func addContactRow(sheet *xlsx.Sheet, c *model.Contact) {
	row := sheet.AddRow()
	row.AddCell().SetString(c.FullName)
	row.AddCell().SetString(c.Email)
	row.AddCell().SetString(c.Company)
	row.AddCell().SetString(c.Title)
	row.AddCell().SetString(c.Phone)
	row.AddCell().SetString(c.LinkedInURL)
	row.AddCell().SetString(string(c.Status))
	row.AddCell().SetString(fmt.Sprintf("%.2f", c.OCRConfidence))
	row.AddCell().SetString(formatTime(c.ProcessedAt))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
