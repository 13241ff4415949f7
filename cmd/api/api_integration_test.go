//go:build integration

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/eka-ai/workshop/engine/graph"
	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/pkg/metrics"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newGraphServer wires the gateway to a live Neo4j the way run does.
func newGraphServer(t *testing.T) (*httptest.Server, *graph.GraphStore) {
	t.Helper()
	ctx := context.Background()
	driver, err := neo4j.NewDriverWithContext(
		envOr("NEO4J_URL", "neo4j://localhost:7687"),
		neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""),
	)
	if err != nil {
		t.Skipf("neo4j: %v", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Skipf("neo4j not reachable: %v", err)
	}
	t.Cleanup(func() { driver.Close(ctx) })

	store := graph.New(driver)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wm := metrics.NewWorkshop(metrics.New())
	factory := func(id string) *jobcard.Controller {
		return jobcard.NewController(jobcard.WithSessionID(id), jobcard.WithLogger(logger),
			jobcard.WithListener(store.Listener(logger)), jobcard.WithListener(metricsListener(wm)))
	}
	s := &server{
		logger:   logger,
		sessions: jobcard.NewRegistry(factory, jobcard.WithLoader(store.Loader())),
		metrics:  wm,
		stats:    store,
		archive:  store,
	}
	ts := httptest.NewServer(s.routes(nil))
	t.Cleanup(ts.Close)
	return ts, store
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPI_JobCardPersisted(t *testing.T) {
	ts, store := newGraphServer(t)
	sid := "it-" + time.Now().Format("150405.000000")

	resp := post(t, ts.URL+"/api/sessions/"+sid+"/job-card", `{
		"vehicle_context": {"vehicle_type":"4W","brand":"Honda","model":"City","year":2020,
			"fuel_type":"petrol","registration_number":"MH01AB1234","vin":"MA1TA2E45K6A12345"},
		"customer": {"name":"Ravi Kumar"}
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("init: %d", resp.StatusCode)
	}
	var v cardView
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.DeleteJobCard(context.Background(), v.JobCard.ID) })

	resp = post(t, ts.URL+"/api/sessions/"+sid+"/status", `{"status":"CONTEXT_VERIFIED"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	got, err := store.LoadSession(context.Background(), sid)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != v.JobCard.ID || got.Status != jobcard.StatusContextVerified {
		t.Fatalf("stored card = %+v", got)
	}

	statsResp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer statsResp.Body.Close()
	if statsResp.StatusCode != http.StatusOK {
		t.Fatalf("stats: %d", statsResp.StatusCode)
	}
}

func TestAPI_SessionRehydrated(t *testing.T) {
	ts, store := newGraphServer(t)
	sid := "it-rehydrate-" + time.Now().Format("150405.000000")

	resp := post(t, ts.URL+"/api/sessions/"+sid+"/job-card", `{
		"vehicle_context": {"vehicle_type":"2W","brand":"Bajaj","model":"Pulsar","year":2021,"fuel_type":"petrol"}
	}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("init: %d", resp.StatusCode)
	}
	var v cardView
	json.NewDecoder(resp.Body).Decode(&v)
	t.Cleanup(func() { store.DeleteJobCard(context.Background(), v.JobCard.ID) })

	// A second gateway with an empty registry loads the card from Neo4j.
	ts2, _ := newGraphServer(t)
	got, err := http.Get(ts2.URL + "/api/sessions/" + sid + "/job-card")
	if err != nil {
		t.Fatal(err)
	}
	defer got.Body.Close()
	if got.StatusCode != http.StatusOK {
		t.Fatalf("expected rehydrated card, got %d", got.StatusCode)
	}
}
