package invoice

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/eka-ai/workshop/engine/domain"
)

const mhGSTIN = "27AAPFU0939F1ZV"

func brakeJob() []Line {
	return []Line{
		{Description: "Front brake pads", HSN: "8708", Kind: KindPart, Quantity: 2, UnitPrice: Rupees(1250), GSTRate: 18},
		{Description: "Brake service labour", HSN: "9987", Kind: KindLabour, Quantity: 1, UnitPrice: Rupees(800), GSTRate: 18},
	}
}

func TestCompute_IntraState(t *testing.T) {
	tot, err := Compute(brakeJob(), mhGSTIN, "27")
	if err != nil {
		t.Fatal(err)
	}
	if tot.InterState {
		t.Error("27 -> 27 is intra-state")
	}
	if tot.Taxable != Rupees(3300) || tot.CGST != Rupees(297) || tot.SGST != Rupees(297) || tot.IGST != 0 {
		t.Fatalf("totals = %+v", tot)
	}
	if tot.Total != Rupees(3894) || tot.Tax() != Rupees(594) {
		t.Fatalf("total = %s", tot.Total)
	}
	if len(tot.Lines) != 2 || tot.Lines[0].CGST != Rupees(225) {
		t.Fatalf("lines = %+v", tot.Lines)
	}
}

func TestCompute_InterState(t *testing.T) {
	tot, err := Compute(brakeJob(), mhGSTIN, "29")
	if err != nil {
		t.Fatal(err)
	}
	if !tot.InterState || tot.IGST != Rupees(594) || tot.CGST != 0 || tot.SGST != 0 {
		t.Fatalf("totals = %+v", tot)
	}
	if tot.Total != Rupees(3894) {
		t.Fatalf("total = %s", tot.Total)
	}
}

func TestCompute_EmptyPlaceOfSupplyIsHomeState(t *testing.T) {
	tot, err := Compute(brakeJob(), mhGSTIN, "")
	if err != nil {
		t.Fatal(err)
	}
	if tot.InterState {
		t.Fatal("empty place of supply should be intra-state")
	}
}

func TestCompute_Rounding(t *testing.T) {
	lines := []Line{{Description: "Coolant", Quantity: 1.5, UnitPrice: 33333, GSTRate: 5}}
	tot, err := Compute(lines, mhGSTIN, "27")
	if err != nil {
		t.Fatal(err)
	}
	if tot.Taxable != 50000 || tot.CGST != 1250 || tot.SGST != 1250 || tot.Total != 52500 {
		t.Fatalf("totals = %+v", tot)
	}
}

func TestCompute_Errors(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		gstin string
		pos   string
		want  error
	}{
		{"bad rate", []Line{{Quantity: 1, UnitPrice: 100, GSTRate: 10}}, mhGSTIN, "27", ErrInvalidRate},
		{"zero qty", []Line{{Quantity: 0, UnitPrice: 100, GSTRate: 18}}, mhGSTIN, "27", ErrInvalidQuantity},
		{"negative price", []Line{{Quantity: 1, UnitPrice: -1, GSTRate: 18}}, mhGSTIN, "27", ErrNegativePrice},
		{"bad place of supply", brakeJob(), mhGSTIN, "MH", ErrInvalidState},
		{"bad gstin", brakeJob(), "27AAPFU0939F1ZX", "27", domain.ErrInvalidGSTIN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compute(tt.lines, tt.gstin, tt.pos); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}{Money(123456), Money(-5)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":1234.56,"b":-0.05}` {
		t.Fatalf("got %s", b)
	}
	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":99.99,"b":"12.5"}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.A != 9999 || v.B != 1250 {
		t.Fatalf("got %d %d", v.A, v.B)
	}
}

func TestLinesFromEstimate(t *testing.T) {
	five := 5.0
	e := &domain.EstimateData{Items: []domain.EstimateItem{
		{Description: "Oil filter", Quantity: 1, UnitPrice: 450},
		{Description: "Labour", Kind: "Labour", UnitPrice: 600, GSTRate: &five},
	}}
	lines := LinesFromEstimate(e)
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if lines[0].Kind != KindPart || lines[0].GSTRate != DefaultPartRate || lines[0].UnitPrice != 45000 {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if lines[1].Kind != KindLabour || lines[1].GSTRate != 5 || lines[1].Quantity != 1 {
		t.Errorf("line 1 = %+v", lines[1])
	}
	if LinesFromEstimate(nil) != nil {
		t.Error("nil estimate should give nil lines")
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	inv, err := NewDraft("jc-1", mhGSTIN, "", brakeJob()[:1], at)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Status != StatusDraft || inv.PlaceOfSupply != "27" {
		t.Fatalf("draft = %+v", inv)
	}
	if err := inv.AddLine(brakeJob()[1]); err != nil {
		t.Fatal(err)
	}
	if inv.Totals.Total != Rupees(3894) {
		t.Fatalf("total = %s", inv.Totals.Total)
	}
	if err := inv.AddLine(Line{Quantity: 1, GSTRate: 7}); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("err = %v", err)
	}
	if len(inv.Lines) != 2 {
		t.Fatal("rejected line must not be kept")
	}
	if err := inv.MarkSent(at); !errors.Is(err, ErrNotFinalized) {
		t.Fatalf("err = %v", err)
	}
	if err := inv.Finalize("EKA/26-27/0001", at); err != nil {
		t.Fatal(err)
	}
	if err := inv.AddLine(brakeJob()[0]); !errors.Is(err, ErrNotDraft) {
		t.Fatalf("err = %v", err)
	}
	if err := inv.Finalize("again", at); !errors.Is(err, ErrNotDraft) {
		t.Fatalf("err = %v", err)
	}
	if err := inv.MarkSent(at.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if inv.Status != StatusSent || inv.SentAt == nil {
		t.Fatalf("invoice = %+v", inv)
	}
}

func TestFinalize_Empty(t *testing.T) {
	inv := &Invoice{Status: StatusDraft}
	if err := inv.Finalize("X", time.Now()); !errors.Is(err, ErrEmptyInvoice) {
		t.Fatalf("err = %v", err)
	}
}
