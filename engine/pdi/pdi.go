// Package pdi builds and tracks pre-delivery inspection checklists.
package pdi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eka-ai/workshop/engine/domain"
)

var (
	ErrUnknownItem         = errors.New("pdi: unknown checklist item")
	ErrIncomplete          = errors.New("pdi: required items incomplete")
	ErrDeclarationRequired = errors.New("pdi: technician declaration required")
	ErrAlreadyCompleted    = errors.New("pdi: checklist already completed")
)

// Categories.
const (
	CatExterior   = "exterior"
	CatInterior   = "interior"
	CatMechanical = "mechanical"
	CatElectrical = "electrical"
	CatDocuments  = "documents"
	CatBattery    = "battery"
)

type template struct {
	id, category, label string
	required            bool
}

var common = []template{
	{"body-panels", CatExterior, "Body panels free of dents and scratches", true},
	{"lights", CatExterior, "Head, tail and indicator lamps working", true},
	{"tyres", CatExterior, "Tyre pressure and tread checked", true},
	{"brakes", CatMechanical, "Brake operation and fluid level", true},
	{"horn", CatElectrical, "Horn working", true},
	{"road-test", CatMechanical, "Road test completed", true},
	{"wash", CatExterior, "Vehicle washed", false},
	{"documents", CatDocuments, "Service book and invoice handed over", true},
}

var fourWheelerOnly = []template{
	{"wipers", CatExterior, "Wipers and washer fluid", true},
	{"ac", CatInterior, "Air conditioning cooling", true},
	{"seatbelts", CatInterior, "Seat belts latch and retract", true},
	{"spare-wheel", CatExterior, "Spare wheel and jack present", false},
}

var iceOnly = []template{
	{"engine-oil", CatMechanical, "Engine oil level", true},
	{"coolant", CatMechanical, "Coolant level", true},
}

var evOnly = []template{
	{"battery-soc", CatBattery, "Traction battery state of charge above 80%", true},
	{"charging-port", CatBattery, "Charging port and cable inspected", true},
	{"hv-warnings", CatElectrical, "No high-voltage warnings on cluster", true},
}

// DefaultChecklist returns the inspection list for a vehicle: common items,
// four-wheeler items for cars, and either EV or combustion items.
func DefaultChecklist(vc domain.VehicleContext) *domain.PDIChecklist {
	var tpl []template
	tpl = append(tpl, common...)
	if domain.IsFourWheeler(vc.VehicleType) {
		tpl = append(tpl, fourWheelerOnly...)
	}
	if vc.IsElectric() {
		tpl = append(tpl, evOnly...)
	} else {
		tpl = append(tpl, iceOnly...)
	}
	items := make([]domain.PDIItem, len(tpl))
	for i, t := range tpl {
		items[i] = domain.PDIItem{ID: t.id, Category: t.category, Label: t.label, Required: t.required}
	}
	return &domain.PDIChecklist{Items: items}
}

// UpdateItem marks one item and returns the updated copy of list.
func UpdateItem(list *domain.PDIChecklist, itemID string, completed bool, notes string) (*domain.PDIChecklist, error) {
	if list == nil {
		return nil, ErrUnknownItem
	}
	if list.CompletedAt != nil {
		return nil, ErrAlreadyCompleted
	}
	out := list.Clone()
	for i := range out.Items {
		if out.Items[i].ID == itemID {
			out.Items[i].Completed = completed
			if notes != "" {
				out.Items[i].Notes = notes
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownItem, itemID)
}

// Progress counts completed items.
type Progress struct {
	Completed         int `json:"completed"`
	Total             int `json:"total"`
	RequiredRemaining int `json:"required_remaining"`
	Percentage        int `json:"percentage"`
}

// ProgressOf summarizes list.
func ProgressOf(list *domain.PDIChecklist) Progress {
	var p Progress
	if list == nil {
		return p
	}
	p.Total = len(list.Items)
	for _, it := range list.Items {
		switch {
		case it.Completed:
			p.Completed++
		case it.Required:
			p.RequiredRemaining++
		}
	}
	if p.Total > 0 {
		p.Percentage = int(float64(p.Completed)/float64(p.Total)*100 + 0.5)
	}
	return p
}

// Declaration is the technician's sign-off.
type Declaration struct {
	Accepted bool   `json:"technician_declaration"`
	Text     string `json:"declaration_text"`
}

// IncompleteError lists the required items still open.
type IncompleteError struct {
	Items []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("pdi: %d required items incomplete: %s", len(e.Items), strings.Join(e.Items, ", "))
}

func (e *IncompleteError) Unwrap() error { return ErrIncomplete }

// Complete signs off list at time at. Every required item must be done and
// the declaration accepted with a non-blank text.
func Complete(list *domain.PDIChecklist, d Declaration, at time.Time) (*domain.PDIChecklist, error) {
	if list == nil {
		return nil, &IncompleteError{}
	}
	if list.CompletedAt != nil {
		return nil, ErrAlreadyCompleted
	}
	var open []string
	for _, it := range list.Items {
		if it.Required && !it.Completed {
			open = append(open, it.ID)
		}
	}
	if len(open) > 0 {
		return nil, &IncompleteError{Items: open}
	}
	if !d.Accepted || strings.TrimSpace(d.Text) == "" {
		return nil, ErrDeclarationRequired
	}
	out := list.Clone()
	out.TechnicianDeclaration = true
	out.DeclarationText = strings.TrimSpace(d.Text)
	at = at.UTC()
	out.CompletedAt = &at
	return out, nil
}
