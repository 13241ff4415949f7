package graph

import (
	"context"
	"log/slog"

	"github.com/eka-ai/workshop/engine/jobcard"
)

// Loader rehydrates registry sessions from the graph.
func (g *GraphStore) Loader() jobcard.Loader {
	return g.LoadSession
}

// Listener persists every controller event that carries a card and unlinks
// the session on reset.
func (g *GraphStore) Listener(logger *slog.Logger) jobcard.Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, ev jobcard.Event) error {
		switch {
		case ev.Type == jobcard.EventReset:
			if ev.SessionID == "" {
				return nil
			}
			return g.ClearSession(ctx, ev.SessionID)
		case ev.Card != nil:
			if err := g.SaveJobCard(ctx, ev.SessionID, ev.Card); err != nil {
				return err
			}
			logger.Debug("job card saved", "job_card", ev.Card.ID, "event", ev.Type, "status", ev.Card.Status)
		}
		return nil
	}
}
