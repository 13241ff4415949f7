package natsutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	if !srv.ReadyForConnections(3 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

type statusEvent struct {
	JobCardID string `json:"job_card_id"`
	Status    string `json:"status"`
}

func TestJobCardSubject(t *testing.T) {
	cases := map[string]string{
		"CONTEXT_VERIFIED": "jobcard.events.context_verified",
		" pdi ":            "jobcard.events.pdi",
		"":                 "jobcard.events.unknown",
	}
	for in, want := range cases {
		if got := JobCardSubject(in); got != want {
			t.Errorf("JobCardSubject(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNatsHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	if got := carrier.Get("missing"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if keys := carrier.Keys(); keys != nil {
		t.Fatalf("expected nil keys, got %v", keys)
	}

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if keys := carrier.Keys(); len(keys) != 1 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestPublish(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(JobCardSubject("DIAGNOSED"), ch)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	err = Publish(context.Background(), nc, JobCardSubject("DIAGNOSED"), statusEvent{JobCardID: "jc-1", Status: "DIAGNOSED"})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-ch:
		var ev statusEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.JobCardID != "jc-1" || ev.Status != "DIAGNOSED" {
			t.Fatalf("unexpected payload: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestSubscribeWildcard(t *testing.T) {
	nc := startTestNATS(t)

	ch := make(chan statusEvent, 2)
	sub, err := Subscribe(nc, JobCardEventsAll, func(ctx context.Context, ev statusEvent) {
		ch <- ev
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	for _, s := range []string{"CREATED", "CONTEXT_VERIFIED"} {
		if err := Publish(context.Background(), nc, JobCardSubject(s), statusEvent{JobCardID: "jc-9", Status: s}); err != nil {
			t.Fatal(err)
		}
	}

	for _, want := range []string{"CREATED", "CONTEXT_VERIFIED"} {
		select {
		case ev := <-ch:
			if ev.Status != want {
				t.Fatalf("got %q, want %q", ev.Status, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout")
		}
	}
}

func TestSubscribeDropsMalformed(t *testing.T) {
	nc := startTestNATS(t)

	called := make(chan struct{}, 1)
	sub, err := Subscribe(nc, "jobcard.events.bad", func(ctx context.Context, ev statusEvent) {
		called <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	nc.Publish("jobcard.events.bad", []byte("{bad"))
	nc.Flush()

	select {
	case <-called:
		t.Fatal("handler should not be called for malformed data")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRequest(t *testing.T) {
	nc := startTestNATS(t)

	sub, err := nc.Subscribe("jobcard.status", func(msg *nats.Msg) {
		var req statusEvent
		json.Unmarshal(msg.Data, &req)
		data, _ := json.Marshal(statusEvent{JobCardID: req.JobCardID, Status: "IN_PROGRESS"})
		msg.Respond(data)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	resp, err := Request[statusEvent, statusEvent](context.Background(), nc, "jobcard.status", statusEvent{JobCardID: "jc-3"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.JobCardID != "jc-3" || resp.Status != "IN_PROGRESS" {
		t.Fatalf("unexpected resp: %+v", resp)
	}
}

func TestRequestHonoursDeadline(t *testing.T) {
	nc := startTestNATS(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := Request[statusEvent, statusEvent](ctx, nc, "jobcard.noreply", statusEvent{})
	if err == nil {
		t.Fatal("expected error without responder")
	}
	if time.Since(start) > time.Second {
		t.Fatal("request ignored context deadline")
	}
}

func TestMarshalErrors(t *testing.T) {
	nc := startTestNATS(t)

	if err := Publish(context.Background(), nc, "jobcard.err", make(chan int)); err == nil {
		t.Fatal("expected publish marshal error")
	}
	if _, err := Request[chan int, statusEvent](context.Background(), nc, "jobcard.err", make(chan int)); err == nil {
		t.Fatal("expected request marshal error")
	}
}

func TestRequestUnmarshalError(t *testing.T) {
	nc := startTestNATS(t)

	sub, err := nc.Subscribe("jobcard.badjson", func(msg *nats.Msg) {
		msg.Respond([]byte("{invalid"))
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	_, err = Request[statusEvent, statusEvent](context.Background(), nc, "jobcard.badjson", statusEvent{})
	if err == nil {
		t.Fatal("expected unmarshal error")
	}
}
