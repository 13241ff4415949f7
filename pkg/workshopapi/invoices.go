package workshopapi

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/eka-ai/workshop/engine/invoice"
)

// SendInvoice is the body of POST /invoices/:id/send.
type SendInvoice struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// CreateInvoice stores a draft invoice.
func (c *Client) CreateInvoice(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, error) {
	var out invoice.Invoice
	if err := c.do(ctx, http.MethodPost, "/invoices", nil, inv, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetInvoice fetches one invoice.
func (c *Client) GetInvoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	var out invoice.Invoice
	if err := c.do(ctx, http.MethodGet, "/invoices/"+escape(id), nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FinalizeInvoice freezes a draft; the backend assigns the number.
func (c *Client) FinalizeInvoice(ctx context.Context, id string) (*invoice.Invoice, error) {
	var out invoice.Invoice
	if err := c.do(ctx, http.MethodPost, "/invoices/"+escape(id)+"/finalize", nil, struct{}{}, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendInvoiceTo delivers a finalized invoice.
func (c *Client) SendInvoiceTo(ctx context.Context, id string, to SendInvoice) (*invoice.Invoice, error) {
	var out invoice.Invoice
	if err := c.do(ctx, http.MethodPost, "/invoices/"+escape(id)+"/send", nil, to, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadPDF streams the backend-rendered PDF into w.
func (c *Client) DownloadPDF(ctx context.Context, id string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, "/invoices/"+escape(id)+"/pdf", nil, nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("workshopapi: download pdf: %w", err)
	}
	return n, nil
}
