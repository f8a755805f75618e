package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func testRows() []Row {
	checkin := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	checkout := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	return []Row{
		{
			Date:         time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			VisitorName:  "Jane Doe",
			VisitorEmail: "jane@x.com",
			Company:      `Acme, "The" Corp`,
			Host:         "Askar B.",
			Branch:       "HQ",
			Purpose:      "MEETING",
			Status:       "CHECKED_OUT",
			CheckinAt:    &checkin,
			CheckoutAt:   &checkout,
		},
		{
			Date:        time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
			VisitorName: "Bob",
			Host:        "Askar B.",
			Branch:      "HQ",
			Purpose:     "DELIVERY",
			Status:      "PENDING_APPROVAL",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testRows()); err != nil {
		t.Fatal(err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("output not parseable CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0][0] != "Date" || records[0][9] != "Check Out" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	// Commas and quotes in fields survive the round trip.
	if records[1][3] != `Acme, "The" Corp` {
		t.Fatalf("company mangled: %q", records[1][3])
	}
	if records[1][8] != "2025-06-01 09:30:00" {
		t.Fatalf("unexpected checkin: %q", records[1][8])
	}
	// Unset timestamps render empty, not zero time.
	if records[2][8] != "" || records[2][9] != "" {
		t.Fatalf("empty timestamps rendered: %v", records[2])
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, testRows()); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("output not a readable workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Visits")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Date" {
		t.Fatalf("unexpected header row: %v", rows[0])
	}
	if rows[1][1] != "Jane Doe" || rows[1][7] != "CHECKED_OUT" {
		t.Fatalf("unexpected data row: %v", rows[1])
	}
}
