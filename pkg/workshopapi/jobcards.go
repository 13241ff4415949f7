package workshopapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/engine/jobcard"
)

// ListParams narrows a job-card listing.
type ListParams struct {
	Status string
	Search string
	Page   int
	Limit  int
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// CreateJobCard is the body of POST /job-cards.
type CreateJobCard struct {
	Vehicle  domain.VehicleContext `json:"vehicle_context"`
	Customer jobcard.Customer      `json:"customer"`
	Priority string                `json:"priority,omitempty"`
	Notes    string                `json:"notes,omitempty"`
}

// TransitionRequest is the body of POST /job-cards/:id/transition.
type TransitionRequest struct {
	TargetState jobcard.Status `json:"target_state"`
	Reason      string         `json:"reason,omitempty"`
}

// TransitionOptions is the response of GET /job-cards/:id/transitions.
type TransitionOptions struct {
	CurrentState       jobcard.Status   `json:"current_state"`
	AllowedTransitions []jobcard.Status `json:"allowed_transitions"`
}

// ListJobCards returns job cards matching p.
func (c *Client) ListJobCards(ctx context.Context, p ListParams) ([]jobcard.JobCard, error) {
	var out []jobcard.JobCard
	if err := c.do(ctx, http.MethodGet, "/job-cards", p.values(), nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetJobCard fetches one job card.
func (c *Client) GetJobCard(ctx context.Context, id string) (*jobcard.JobCard, error) {
	var out jobcard.JobCard
	if err := c.do(ctx, http.MethodGet, "/job-cards/"+escape(id), nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJobCard opens a job card on the backend.
func (c *Client) CreateJobCard(ctx context.Context, req CreateJobCard) (*jobcard.JobCard, error) {
	var out jobcard.JobCard
	if err := c.do(ctx, http.MethodPost, "/job-cards", nil, req, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateJobCard patches fields of a job card.
func (c *Client) UpdateJobCard(ctx context.Context, id string, patch map[string]any) (*jobcard.JobCard, error) {
	var out jobcard.JobCard
	if err := c.do(ctx, http.MethodPatch, "/job-cards/"+escape(id), nil, patch, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteJobCard deletes a job card.
func (c *Client) DeleteJobCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/job-cards/"+escape(id), nil, nil, "", nil)
}

// Transition asks the backend to move a job card to target.
func (c *Client) Transition(ctx context.Context, id string, target jobcard.Status, reason string) (*jobcard.JobCard, error) {
	var out jobcard.JobCard
	body := TransitionRequest{TargetState: target, Reason: reason}
	if err := c.do(ctx, http.MethodPost, "/job-cards/"+escape(id)+"/transition", nil, body, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transitions returns the backend's view of the allowed next states.
func (c *Client) Transitions(ctx context.Context, id string) (TransitionOptions, error) {
	var out TransitionOptions
	err := c.do(ctx, http.MethodGet, "/job-cards/"+escape(id)+"/transitions", nil, nil, "", &out)
	return out, err
}

// History returns a job card's audit trail.
func (c *Client) History(ctx context.Context, id string) ([]jobcard.AuditEntry, error) {
	var out []jobcard.AuditEntry
	if err := c.do(ctx, http.MethodGet, "/job-cards/"+escape(id)+"/history", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}
