// Package chat is the client for the diagnostics chat backend. Send never
// fails: transport problems become a degraded response that keeps the job
// card where it is.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/eka-ai/workshop/engine/domain"
	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/pkg/fn"
	"github.com/eka-ai/workshop/pkg/resilience"
)

// Theme colors sent in UI triggers.
const (
	ThemeBrand = "#f18a22"
	ThemeError = "#ef4444"
)

// FallbackText is shown when the backend cannot be reached.
const FallbackText = "The diagnostics service is unreachable right now. Your job card is unchanged; please try again shortly."

// Part is one piece of a message.
type Part struct {
	Text string `json:"text"`
}

// Message is one conversation turn. Role is "user" or "model".
type Message struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Text builds a single-part message.
func Text(role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// Request is the body of POST /api/chat.
type Request struct {
	History          []Message              `json:"history"`
	Context          *domain.VehicleContext `json:"context,omitempty"`
	Status           jobcard.Status         `json:"status"`
	IntelligenceMode string                 `json:"intelligence_mode,omitempty"`
	OperatingMode    int                    `json:"operating_mode"`
}

// Content is the text the assistant answers with.
type Content struct {
	VisualText string `json:"visual_text"`
	AudioText  string `json:"audio_text,omitempty"`
}

// UITriggers steer the chat panel's styling.
type UITriggers struct {
	ThemeColor       string `json:"theme_color,omitempty"`
	BrandIdentity    string `json:"brand_identity,omitempty"`
	ShowOrangeBorder bool   `json:"show_orange_border"`
}

// VisualAssets names what the UI should render beside the answer.
type VisualAssets struct {
	VehicleDisplayQuery string `json:"vehicle_display_query,omitempty"`
	PartInFocus         string `json:"part_in_focus,omitempty"`
}

// Response is the backend's answer. Every payload is optional.
type Response struct {
	ResponseContent Content                `json:"response_content"`
	JobStatusUpdate string                 `json:"job_status_update,omitempty"`
	UITriggers      *UITriggers            `json:"ui_triggers,omitempty"`
	VisualAssets    *VisualAssets          `json:"visual_assets,omitempty"`
	DiagnosticData  *domain.DiagnosticData `json:"diagnostic_data,omitempty"`
	EstimateData    *domain.EstimateData   `json:"estimate_data,omitempty"`
	MGAnalysis      *domain.MGAnalysis     `json:"mg_analysis,omitempty"`
	ServiceHistory  *domain.ServiceHistory `json:"service_history,omitempty"`
	PDIChecklist    *domain.PDIChecklist   `json:"pdi_checklist,omitempty"`
	RecallData      *domain.RecallData     `json:"recall_data,omitempty"`

	// Degraded is set on synthesized fallback responses.
	Degraded bool `json:"degraded,omitempty"`
}

// StatusUpdate returns the canonical status the backend asked for, or "" if
// it asked for none or for an unknown one.
func (r Response) StatusUpdate() jobcard.Status {
	return jobcard.NormalizeStatus(r.JobStatusUpdate)
}

// Fallback synthesizes the degraded response for a failed call.
func Fallback(current jobcard.Status) Response {
	return Response{
		ResponseContent: Content{VisualText: FallbackText},
		JobStatusUpdate: string(current),
		UITriggers:      &UITriggers{ThemeColor: ThemeError, ShowOrangeBorder: false},
		Degraded:        true,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBreaker sets the circuit breaker guarding the backend.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver is called after every call with its start time and error.
func WithObserver(f func(start time.Time, err error)) Option {
	return func(c *Client) { c.observe = f }
}

// Client talks to the chat backend.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *resilience.Breaker
	logger  *slog.Logger
	observe func(time.Time, error)
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send posts req and returns the backend's answer, or Fallback(req.Status)
// if the call fails for any reason.
func (c *Client) Send(ctx context.Context, req Request) Response {
	start := time.Now()
	resp, err := resilience.CallResult(c.breaker, ctx, func(ctx context.Context) fn.Result[Response] {
		resp, err := c.do(ctx, req)
		return fn.FromPair(resp, err)
	}).Unwrap()
	if c.observe != nil {
		c.observe(start, err)
	}
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, resilience.ErrCircuitOpen) {
			level = slog.LevelDebug
		}
		c.logger.Log(ctx, level, "chat backend failed, using fallback", "status", req.Status, "err", err)
		return Fallback(req.Status)
	}
	return resp
}

func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	if req.History == nil {
		req.History = []Message{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	hresp, err := c.http.Do(hreq)
	if err != nil {
		return Response{}, fmt.Errorf("chat: %w", err)
	}
	defer hresp.Body.Close()

	if hresp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(hresp.Body, 512))
		return Response{}, fmt.Errorf("chat: status %d: %s", hresp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var out Response
	if err := json.NewDecoder(hresp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("chat: decode: %w", err)
	}
	return out, nil
}
