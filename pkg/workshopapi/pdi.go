package workshopapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/engine/pdi"
)

// ItemUpdate is the body of a PDI item update.
type ItemUpdate struct {
	ItemID    string `json:"item_id"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes,omitempty"`
}

// PDIChecklist fetches the checklist for a job card.
func (c *Client) PDIChecklist(ctx context.Context, jobCardID string) (*domain.PDIChecklist, error) {
	var out domain.PDIChecklist
	if err := c.do(ctx, http.MethodGet, "/job-cards/"+escape(jobCardID)+"/pdi", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePDIItem marks one checklist item.
func (c *Client) UpdatePDIItem(ctx context.Context, jobCardID string, u ItemUpdate) (*domain.PDIChecklist, error) {
	var out domain.PDIChecklist
	if err := c.do(ctx, http.MethodPut, "/job-cards/"+escape(jobCardID)+"/pdi/items", nil, u, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompletePDI submits the technician declaration.
func (c *Client) CompletePDI(ctx context.Context, jobCardID string, d pdi.Declaration) (*domain.PDIChecklist, error) {
	var out domain.PDIChecklist
	if err := c.do(ctx, http.MethodPost, "/job-cards/"+escape(jobCardID)+"/pdi/complete", nil, d, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadEvidence sends a photo, video or document for a checklist item as
// multipart/form-data.
func (c *Client) UploadEvidence(ctx context.Context, jobCardID, itemID string, kind jobcard.EvidenceKind, filename string, content io.Reader) (*jobcard.PDIEvidence, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("item_id", itemID); err != nil {
		return nil, err
	}
	if err := mw.WriteField("kind", string(kind)); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("workshopapi: upload evidence: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out jobcard.PDIEvidence
	path := "/job-cards/" + escape(jobCardID) + "/pdi/evidence"
	if err := c.do(ctx, http.MethodPost, path, nil, &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
