package jobcard

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func sampleRows() []Row {
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return []Row{
		{ID: "jc-1", RegistrationNumber: "MH01AB1234", CustomerName: "Asha Patil", CustomerPhone: "9820012345", Status: StatusInProgress, Priority: PriorityHigh, CreatedAt: at},
		{ID: "jc-2", RegistrationNumber: "MH02CD5678", CustomerName: "Ravi Kumar", CustomerPhone: "9988776655", Status: StatusCreated, Priority: PriorityNormal, CreatedAt: at},
		{ID: "jc-3", RegistrationNumber: "KA05MN4321", CustomerName: "Meera Rao", CustomerPhone: "9123456780", Status: "CUSTOMER_APPROVED", Priority: PriorityHigh, CreatedAt: at},
	}
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"registration prefix", Filter{SearchQuery: "MH01"}, []string{"jc-1"}},
		{"zero filter", Filter{}, []string{"jc-1", "jc-2", "jc-3"}},
		{"customer case-insensitive", Filter{SearchQuery: "ravi"}, []string{"jc-2"}},
		{"phone", Filter{SearchQuery: "98200"}, []string{"jc-1"}},
		{"id", Filter{SearchQuery: "JC-3"}, []string{"jc-3"}},
		{"spaced registration", Filter{SearchQuery: "ka 05"}, []string{"jc-3"}},
		{"hyphenated registration", Filter{SearchQuery: "mh-02"}, []string{"jc-2"}},
		{"spaced letters are not a plate", Filter{SearchQuery: "a b"}, []string{}},
		{"mid-plate fragment", Filter{SearchQuery: "5-m"}, []string{}},
		{"spaced plate tail", Filter{SearchQuery: "n 4"}, []string{}},
		{"status", Filter{Status: "IN_PROGRESS"}, []string{"jc-1"}},
		{"status alias on both sides", Filter{Status: "customer_approval"}, []string{"jc-3"}},
		{"status all", Filter{Status: "ALL"}, []string{"jc-1", "jc-2", "jc-3"}},
		{"unknown status", Filter{Status: "DONE"}, []string{}},
		{"priority", Filter{Priority: "high"}, []string{"jc-1", "jc-3"}},
		{"and", Filter{SearchQuery: "MH", Priority: "HIGH"}, []string{"jc-1"}},
		{"no match", Filter{SearchQuery: "zzz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(sampleRows(), tt.f))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRowFromCard(t *testing.T) {
	c := newTestController()
	jc, _ := c.InitializeJobCard(t.Context(), hondaCity(), WithCustomer(Customer{Name: "Asha", Phone: "9820012345"}))
	r := jc.Row()
	if r.ID != jc.ID || r.RegistrationNumber != "MH01AB1234" || r.CustomerName != "Asha" || r.Status != StatusCreated {
		t.Fatalf("row = %+v", r)
	}
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportCSV(&buf, sampleRows()[:2]); err != nil {
		t.Fatal(err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("records = %d", len(recs))
	}
	if recs[0][1] != "Registration" || recs[1][1] != "MH01AB1234" || recs[2][6] != "2026-02-01T10:00:00Z" {
		t.Errorf("records = %v", recs)
	}
}

func TestExportXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportXLSX(&buf, sampleRows()); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != "JobCards" {
		t.Fatalf("sheets = %v", sheets)
	}
	rows, err := f.GetRows("JobCards")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[0][0] != "ID" || rows[3][1] != "KA05MN4321" {
		t.Fatalf("rows = %v", rows)
	}
}
