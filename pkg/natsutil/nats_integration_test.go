//go:build integration

package natsutil

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func natsURL() string {
	if v := os.Getenv("NATS_URL"); v != "" {
		return v
	}
	return nats.DefaultURL
}

func connectNATS(t *testing.T) *nats.Conn {
	t.Helper()
	nc, err := nats.Connect(natsURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	return nc
}

func TestNATS_JobCardEvents(t *testing.T) {
	nc := connectNATS(t)

	type msg struct {
		Status string `json:"status"`
	}

	ch := make(chan msg, 1)
	sub, err := Subscribe(nc, "jobcard.events.integ", func(ctx context.Context, m msg) {
		ch <- m
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := Publish(context.Background(), nc, "jobcard.events.integ", msg{Status: "ESTIMATED"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got.Status != "ESTIMATED" {
			t.Fatalf("expected ESTIMATED, got %q", got.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNATS_StatusRequest(t *testing.T) {
	nc := connectNATS(t)

	type req struct{ N int }
	type resp struct{ Result int }

	// Responder
	sub, err := nc.Subscribe("jobcard.integ.request", func(m *nats.Msg) {
		var r req
		if err := json.Unmarshal(m.Data, &r); err != nil {
			return
		}
		data, _ := json.Marshal(resp{Result: r.N * 2})
		m.Respond(data)
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	got, err := Request[req, resp](context.Background(), nc, "jobcard.integ.request", req{N: 21})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got.Result != 42 {
		t.Fatalf("expected 42, got %d", got.Result)
	}
}
