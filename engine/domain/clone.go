package domain

import "slices"

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a deep copy of d.
func (d *DiagnosticData) Clone() *DiagnosticData {
	if d == nil {
		return nil
	}
	c := *d
	c.Confidence = clonePtr(d.Confidence)
	c.DTCCodes = slices.Clone(d.DTCCodes)
	c.RecommendedActions = slices.Clone(d.RecommendedActions)
	if d.ProbableCauses != nil {
		c.ProbableCauses = make([]ProbableCause, len(d.ProbableCauses))
		for i, pc := range d.ProbableCauses {
			pc.Probability = clonePtr(pc.Probability)
			c.ProbableCauses[i] = pc
		}
	}
	return &c
}

// Clone returns a deep copy of e.
func (e *EstimateData) Clone() *EstimateData {
	if e == nil {
		return nil
	}
	c := *e
	c.PartsTotal = clonePtr(e.PartsTotal)
	c.LabourTotal = clonePtr(e.LabourTotal)
	c.TaxTotal = clonePtr(e.TaxTotal)
	c.GrandTotal = clonePtr(e.GrandTotal)
	if e.Items != nil {
		c.Items = make([]EstimateItem, len(e.Items))
		for i, it := range e.Items {
			it.GSTRate = clonePtr(it.GSTRate)
			it.MinPrice = clonePtr(it.MinPrice)
			it.MaxPrice = clonePtr(it.MaxPrice)
			c.Items[i] = it
		}
	}
	return &c
}

// Clone returns a deep copy of p.
func (p *PDIChecklist) Clone() *PDIChecklist {
	if p == nil {
		return nil
	}
	c := *p
	c.Items = slices.Clone(p.Items)
	c.CompletedAt = clonePtr(p.CompletedAt)
	return &c
}
