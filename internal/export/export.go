// Package export renders stateless visit report projections. Rows are the
// visit joined to its visitor, host and branch; callers assemble the join
// and stream the result straight into the response body.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Row is one exported visit.
type Row struct {
	Date         time.Time
	VisitorName  string
	VisitorEmail string
	Company      string
	Host         string
	Branch       string
	Purpose      string
	Status       string
	CheckinAt    *time.Time
	CheckoutAt   *time.Time
}

// Header is the column order of every export format.
var Header = []string{
	"Date", "Visitor Name", "Visitor Email", "Company",
	"Host", "Branch", "Purpose", "Status", "Check In", "Check Out",
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04:05"
)

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func (r Row) record() []string {
	return []string{
		r.Date.UTC().Format(dateLayout),
		r.VisitorName,
		r.VisitorEmail,
		r.Company,
		r.Host,
		r.Branch,
		r.Purpose,
		r.Status,
		formatTime(r.CheckinAt),
		formatTime(r.CheckoutAt),
	}
}

// WriteCSV streams rows as RFC 4180 CSV with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX renders the same projection as a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Visits"
	f.SetSheetName(f.GetSheetName(0), sheet)

	cells := make([]interface{}, len(Header))
	for i, h := range Header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i, r := range rows {
		rec := r.record()
		cells := make([]interface{}, len(rec))
		for j, v := range rec {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("export: write row: %w", err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
