// Package invoice computes GST invoices for job cards. Amounts are integer
// paise; tax is split into CGST and SGST for intra-state supply and charged
// as IGST otherwise.
package invoice

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/eka-ai/workshop/engine/domain"
)

var (
	ErrInvalidRate     = errors.New("invoice: GST rate must be one of 0, 5, 12, 18, 28")
	ErrInvalidQuantity = errors.New("invoice: quantity must be positive")
	ErrNegativePrice   = errors.New("invoice: unit price is negative")
	ErrInvalidState    = errors.New("invoice: invalid place of supply")
	ErrEmptyInvoice    = errors.New("invoice: no lines")
	ErrNotDraft        = errors.New("invoice: not a draft")
	ErrNotFinalized    = errors.New("invoice: not finalized")
)

// Rates are the GST slabs accepted on a line.
var Rates = []int{0, 5, 12, 18, 28}

// Line kinds.
const (
	KindPart   = "part"
	KindLabour = "labour"
)

// Default rates applied to estimate lines that carry none.
const (
	DefaultPartRate   = 18
	DefaultLabourRate = 18
)

// Line is one invoice line.
type Line struct {
	Description string  `json:"description"`
	HSN         string  `json:"hsn_code,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   Money   `json:"unit_price"`
	GSTRate     int     `json:"gst_rate"`
}

// Taxable returns quantity × unit price rounded to the paisa.
func (l Line) Taxable() Money {
	return Money(math.Round(l.Quantity * float64(l.UnitPrice)))
}

func (l Line) validate(i int) error {
	if !slices.Contains(Rates, l.GSTRate) {
		return fmt.Errorf("line %d: %w (got %d)", i+1, ErrInvalidRate, l.GSTRate)
	}
	if !(l.Quantity > 0) {
		return fmt.Errorf("line %d: %w", i+1, ErrInvalidQuantity)
	}
	if l.UnitPrice < 0 {
		return fmt.Errorf("line %d: %w", i+1, ErrNegativePrice)
	}
	return nil
}

// LineTotal is the computed tax for one line.
type LineTotal struct {
	Taxable Money `json:"taxable_amount"`
	CGST    Money `json:"cgst_amount"`
	SGST    Money `json:"sgst_amount"`
	IGST    Money `json:"igst_amount"`
	Total   Money `json:"total"`
}

// Totals is the invoice summary.
type Totals struct {
	InterState bool        `json:"inter_state"`
	Taxable    Money       `json:"taxable_amount"`
	CGST       Money       `json:"cgst_amount"`
	SGST       Money       `json:"sgst_amount"`
	IGST       Money       `json:"igst_amount"`
	Total      Money       `json:"total_amount"`
	Lines      []LineTotal `json:"lines"`
}

// Tax returns CGST + SGST + IGST.
func (t Totals) Tax() Money { return t.CGST + t.SGST + t.IGST }

// Compute totals lines for a supplier registered under supplierGSTIN
// delivering to placeOfSupply, a two-digit state code. An empty place of
// supply is treated as the supplier's own state.
func Compute(lines []Line, supplierGSTIN, placeOfSupply string) (Totals, error) {
	if err := domain.ValidateGSTIN(supplierGSTIN); err != nil {
		return Totals{}, err
	}
	home := domain.GSTINStateCode(supplierGSTIN)
	pos := strings.TrimSpace(placeOfSupply)
	if pos == "" {
		pos = home
	}
	if len(pos) == 1 {
		pos = "0" + pos
	}
	if len(pos) != 2 || strings.Trim(pos, "0123456789") != "" {
		return Totals{}, fmt.Errorf("%w: %q", ErrInvalidState, placeOfSupply)
	}

	t := Totals{InterState: pos != home, Lines: make([]LineTotal, 0, len(lines))}
	for i, l := range lines {
		if err := l.validate(i); err != nil {
			return Totals{}, err
		}
		lt := LineTotal{Taxable: l.Taxable()}
		if t.InterState {
			lt.IGST = percent(lt.Taxable, float64(l.GSTRate))
		} else {
			half := float64(l.GSTRate) / 2
			lt.CGST = percent(lt.Taxable, half)
			lt.SGST = percent(lt.Taxable, half)
		}
		lt.Total = lt.Taxable + lt.CGST + lt.SGST + lt.IGST
		t.Lines = append(t.Lines, lt)
		t.Taxable += lt.Taxable
		t.CGST += lt.CGST
		t.SGST += lt.SGST
		t.IGST += lt.IGST
	}
	t.Total = t.Taxable + t.Tax()
	return t, nil
}

func percent(m Money, rate float64) Money {
	return Money(math.Round(float64(m) * rate / 100))
}

// LinesFromEstimate converts an AI estimate into invoice lines. Items without
// a GST rate get the default for their kind; a rate outside the slabs is
// kept so Compute reports it.
func LinesFromEstimate(e *domain.EstimateData) []Line {
	if e == nil {
		return nil
	}
	out := make([]Line, 0, len(e.Items))
	for _, it := range e.Items {
		kind := strings.ToLower(strings.TrimSpace(it.Kind))
		if kind == "" {
			kind = KindPart
		}
		rate := DefaultPartRate
		if kind == KindLabour {
			rate = DefaultLabourRate
		}
		if it.GSTRate != nil {
			rate = int(math.Round(*it.GSTRate))
		}
		qty := it.Quantity
		if qty == 0 {
			qty = 1
		}
		out = append(out, Line{
			Description: it.Description,
			HSN:         it.HSNCode,
			Kind:        kind,
			Quantity:    qty,
			UnitPrice:   Rupees(it.UnitPrice),
			GSTRate:     rate,
		})
	}
	return out
}

// Status is an invoice state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
	StatusSent      Status = "SENT"
)

// Invoice is a GST invoice raised against a job card.
type Invoice struct {
	ID            string     `json:"id,omitempty"`
	Number        string     `json:"invoice_number,omitempty"`
	JobCardID     string     `json:"job_card_id"`
	SupplierGSTIN string     `json:"supplier_gstin"`
	CustomerGSTIN string     `json:"customer_gstin,omitempty"`
	PlaceOfSupply string     `json:"place_of_supply"`
	Lines         []Line     `json:"lines"`
	Totals        Totals     `json:"totals"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	FinalizedAt   *time.Time `json:"finalized_at,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// NewDraft computes a draft invoice.
func NewDraft(jobCardID, supplierGSTIN, placeOfSupply string, lines []Line, at time.Time) (*Invoice, error) {
	totals, err := Compute(lines, supplierGSTIN, placeOfSupply)
	if err != nil {
		return nil, err
	}
	if placeOfSupply == "" {
		placeOfSupply = domain.GSTINStateCode(supplierGSTIN)
	}
	return &Invoice{
		JobCardID:     jobCardID,
		SupplierGSTIN: strings.ToUpper(strings.TrimSpace(supplierGSTIN)),
		PlaceOfSupply: placeOfSupply,
		Lines:         slices.Clone(lines),
		Totals:        totals,
		Status:        StatusDraft,
		CreatedAt:     at.UTC(),
	}, nil
}

// AddLine appends l to a draft and recomputes totals.
func (inv *Invoice) AddLine(l Line) error {
	if inv.Status != StatusDraft {
		return ErrNotDraft
	}
	lines := append(slices.Clone(inv.Lines), l)
	totals, err := Compute(lines, inv.SupplierGSTIN, inv.PlaceOfSupply)
	if err != nil {
		return err
	}
	inv.Lines, inv.Totals = lines, totals
	return nil
}

// Finalize freezes a draft under number.
func (inv *Invoice) Finalize(number string, at time.Time) error {
	if inv.Status != StatusDraft {
		return ErrNotDraft
	}
	if len(inv.Lines) == 0 {
		return ErrEmptyInvoice
	}
	if strings.TrimSpace(number) == "" {
		return fmt.Errorf("invoice: finalize: empty invoice number")
	}
	at = at.UTC()
	inv.Number = number
	inv.Status = StatusFinalized
	inv.FinalizedAt = &at
	return nil
}

// MarkSent records delivery of a finalized invoice.
func (inv *Invoice) MarkSent(at time.Time) error {
	if inv.Status != StatusFinalized {
		return ErrNotFinalized
	}
	at = at.UTC()
	inv.Status = StatusSent
	inv.SentAt = &at
	return nil
}
