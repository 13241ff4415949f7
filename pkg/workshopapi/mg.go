package workshopapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/engine/fleet"
)

// OdometerCheck is the backend's verdict on a log entry.
type OdometerCheck struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// BillingRequest is the body of POST /mg/contracts/:id/billing.
type BillingRequest struct {
	Month string `json:"month"`
}

// Contracts lists MG contracts.
func (c *Client) Contracts(ctx context.Context) ([]fleet.Contract, error) {
	var out []fleet.Contract
	if err := c.do(ctx, http.MethodGet, "/mg/contracts", nil, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Contract fetches one contract.
func (c *Client) Contract(ctx context.Context, id string) (*fleet.Contract, error) {
	var out fleet.Contract
	if err := c.do(ctx, http.MethodGet, "/mg/contracts/"+escape(id), nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateContract stores a new contract.
func (c *Client) CreateContract(ctx context.Context, ct fleet.Contract) (*fleet.Contract, error) {
	var out fleet.Contract
	if err := c.do(ctx, http.MethodPost, "/mg/contracts", nil, ct, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateContract replaces a contract.
func (c *Client) UpdateContract(ctx context.Context, ct fleet.Contract) (*fleet.Contract, error) {
	var out fleet.Contract
	if err := c.do(ctx, http.MethodPut, "/mg/contracts/"+escape(ct.ID), nil, ct, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteContract removes a contract.
func (c *Client) DeleteContract(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/mg/contracts/"+escape(id), nil, nil, "", nil)
}

// CalculateBilling asks the backend to bill a contract for month (YYYY-MM).
func (c *Client) CalculateBilling(ctx context.Context, contractID, month string) (domain.MGAnalysis, error) {
	var out domain.MGAnalysis
	err := c.do(ctx, http.MethodPost, "/mg/contracts/"+escape(contractID)+"/billing", nil, BillingRequest{Month: month}, "", &out)
	return out, err
}

// ValidateOdometer asks the backend to check a log before saving it.
func (c *Client) ValidateOdometer(ctx context.Context, log fleet.VehicleLog) (OdometerCheck, error) {
	var out OdometerCheck
	err := c.do(ctx, http.MethodPost, "/mg/odometer/validate", nil, log, "", &out)
	return out, err
}

// VehicleLogs lists logs for a vehicle, optionally for one month.
func (c *Client) VehicleLogs(ctx context.Context, vehicleID, month string) ([]fleet.VehicleLog, error) {
	q := url.Values{"vehicle_id": {vehicleID}}
	if month != "" {
		q.Set("month", month)
	}
	var out []fleet.VehicleLog
	if err := c.do(ctx, http.MethodGet, "/mg/vehicle-logs", q, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateVehicleLog stores a daily log.
func (c *Client) CreateVehicleLog(ctx context.Context, log fleet.VehicleLog) (*fleet.VehicleLog, error) {
	var out fleet.VehicleLog
	if err := c.do(ctx, http.MethodPost, "/mg/vehicle-logs", nil, log, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateVehicleLog replaces a daily log.
func (c *Client) UpdateVehicleLog(ctx context.Context, log fleet.VehicleLog) (*fleet.VehicleLog, error) {
	var out fleet.VehicleLog
	if err := c.do(ctx, http.MethodPut, "/mg/vehicle-logs/"+escape(log.ID), nil, log, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteVehicleLog removes a daily log.
func (c *Client) DeleteVehicleLog(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/mg/vehicle-logs/"+escape(id), nil, nil, "", nil)
}
