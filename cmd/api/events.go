package main

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/engine/semantic"
	"github.com/eka-ai/workshop/pkg/live"
	"github.com/eka-ai/workshop/pkg/metrics"
	"github.com/eka-ai/workshop/pkg/natsutil"
)

func metricsListener(m *metrics.Workshop) jobcard.Listener {
	return func(_ context.Context, ev jobcard.Event) error {
		switch ev.Type {
		case jobcard.EventCreated:
			m.Created()
		case jobcard.EventStatusChanged:
			m.Transition(string(ev.Previous), string(ev.Status))
		}
		return nil
	}
}

// eventSubject is the NATS subject for ev: its status, or its type when the
// event carries none.
func eventSubject(ev jobcard.Event) string {
	if ev.Status == "" {
		return natsutil.JobCardSubject(string(ev.Type))
	}
	return natsutil.JobCardSubject(string(ev.Status))
}

func publishListener(nc *nats.Conn) jobcard.Listener {
	return func(ctx context.Context, ev jobcard.Event) error {
		return natsutil.Publish(ctx, nc, eventSubject(ev), ev)
	}
}

func hubListener(h *live.Hub) jobcard.Listener {
	return func(_ context.Context, ev jobcard.Event) error {
		h.Broadcast(toMessage(ev))
		return nil
	}
}

// forwardToHub relays every lifecycle event seen on NATS to the websocket hub.
func forwardToHub(nc *nats.Conn, h *live.Hub) (*nats.Subscription, error) {
	return natsutil.Subscribe(nc, natsutil.JobCardEventsAll, func(_ context.Context, ev jobcard.Event) {
		h.Broadcast(toMessage(ev))
	})
}

// toMessage drops the card snapshot; dashboards fetch it on demand.
func toMessage(ev jobcard.Event) live.Message {
	msg := live.Message{
		Type:      string(ev.Type),
		SessionID: ev.SessionID,
		JobCardID: ev.JobCardID,
		Status:    string(ev.Status),
	}
	data := map[string]any{"at": ev.At}
	if ev.Previous != "" {
		data["previous"] = ev.Previous
	}
	if ev.Entry != nil {
		data["entry"] = ev.Entry
	}
	if ev.Status != "" {
		data["progress"] = jobcard.ProgressOf(ev.Status)
	}
	msg.Data = data
	return msg
}

// indexListener stores closed jobs for similar-job search.
func indexListener(ix *semantic.Index, logger *slog.Logger) jobcard.Listener {
	return func(ctx context.Context, ev jobcard.Event) error {
		if ev.Type != jobcard.EventStatusChanged || ev.Status != jobcard.StatusClosed || ev.Card == nil {
			return nil
		}
		if err := ix.IndexJob(ctx, semantic.SummaryFromCard(ev.Card)); err != nil {
			return err
		}
		logger.Info("closed job indexed", "job_card", ev.Card.ID)
		return nil
	}
}
