// Command snapshot-collector fetches job-card stats from the gateway,
// computes per-status deltas against the previous run, and writes JSON files
// for the workshop dashboard.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Snapshot mirrors GET /api/stats.
type Snapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	ByStatus  map[string]int64 `json:"by_status"`
	TopBrands []struct {
		Brand    string `json:"brand"`
		Vehicles int64  `json:"vehicles"`
		JobCards int64  `json:"job_cards"`
	} `json:"top_brands"`
}

// Delta is the change between two consecutive snapshots.
type Delta struct {
	Timestamp time.Time        `json:"timestamp"`
	Period    string           `json:"period"`
	ByStatus  map[string]int64 `json:"by_status"`
	NewCards  int64            `json:"new_cards"`
	NewBrands []string         `json:"new_brands,omitempty"`
}

const maxHistory = 288

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "gateway base URL")
	dir := flag.String("out", "docs/data", "output directory")
	period := flag.String("period", "5m", "collection period recorded in deltas")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := collect(ctx, http.DefaultClient, *apiURL, os.Getenv("EKA_TOKEN"), *dir, *period, time.Now().UTC()); err != nil {
		logger.Error("snapshot failed", "err", err)
		os.Exit(1)
	}
}

func collect(ctx context.Context, hc *http.Client, apiURL, token, dir, period string, now time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	latestPath := filepath.Join(dir, "jobcards-latest.json")
	historyPath := filepath.Join(dir, "jobcards-history.json")
	prevPath := filepath.Join(dir, ".jobcards-prev.json")

	current, err := fetch(ctx, hc, apiURL, token)
	if err != nil {
		return err
	}
	current.Timestamp = now

	var prev Snapshot
	if data, err := os.ReadFile(prevPath); err == nil {
		json.Unmarshal(data, &prev)
	}
	delta := diff(prev, current, period)

	body, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(latestPath, body, 0o644); err != nil {
		return fmt.Errorf("write latest: %w", err)
	}

	var history []Delta
	if data, err := os.ReadFile(historyPath); err == nil {
		json.Unmarshal(data, &history)
	}
	history = append(history, delta)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	histData, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(historyPath, histData, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return os.WriteFile(prevPath, body, 0o644)
}

func fetch(ctx context.Context, hc *http.Client, apiURL, token string) (Snapshot, error) {
	var s Snapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/stats", nil)
	if err != nil {
		return s, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return s, fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return s, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return s, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &s); err != nil {
		return s, fmt.Errorf("parse stats: %w", err)
	}
	return s, nil
}

// diff counts cards per status gained since prev. Statuses that vanished
// report a negative delta.
func diff(prev, current Snapshot, period string) Delta {
	d := Delta{Timestamp: current.Timestamp, Period: period, ByStatus: make(map[string]int64)}
	var prevTotal, curTotal int64
	for k, v := range current.ByStatus {
		d.ByStatus[k] = v - prev.ByStatus[k]
		curTotal += v
	}
	for k, v := range prev.ByStatus {
		if _, ok := current.ByStatus[k]; !ok {
			d.ByStatus[k] = -v
		}
		prevTotal += v
	}
	d.NewCards = curTotal - prevTotal

	seen := make(map[string]bool, len(prev.TopBrands))
	for _, b := range prev.TopBrands {
		seen[b.Brand] = true
	}
	for _, b := range current.TopBrands {
		if !seen[b.Brand] {
			d.NewBrands = append(d.NewBrands, b.Brand)
		}
	}
	return d
}
