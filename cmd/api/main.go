// Package main implements the EKA-AI workshop gateway.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/eka-ai/workshop/engine/chat"
	"github.com/eka-ai/workshop/engine/graph"
	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/engine/semantic"
	"github.com/eka-ai/workshop/engine/speech"
	"github.com/eka-ai/workshop/pkg/config"
	"github.com/eka-ai/workshop/pkg/live"
	"github.com/eka-ai/workshop/pkg/metrics"
	"github.com/eka-ai/workshop/pkg/mid"
	"github.com/eka-ai/workshop/pkg/ollama"
	"github.com/eka-ai/workshop/pkg/repo"
	"github.com/eka-ai/workshop/pkg/workshopapi"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	wm := metrics.NewWorkshop(reg)
	hub := live.NewHub(logger,
		live.WithOrigins(cfg.CORSOrigin),
		live.WithCountHook(func(n int) { wm.WSClients.Set(int64(n)) }),
	)
	defer hub.Close()

	listeners := []jobcard.Listener{metricsListener(wm)}
	var regOpts []jobcard.RegistryOption

	// --- Neo4j (optional) ---
	var graphStore *graph.GraphStore
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(context.Background())
		graphStore = graph.New(driver)
		listeners = append(listeners, graphStore.Listener(logger))
		regOpts = append(regOpts, jobcard.WithLoader(graphStore.Loader()))
	} else {
		logger.Warn("neo4j disabled; sessions are not persisted")
	}

	// --- NATS (optional): lifecycle events fan out to the hub through NATS
	// when it is configured, directly otherwise.
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("eka-gateway"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		sub, err := forwardToHub(nc, hub)
		if err != nil {
			return fmt.Errorf("nats subscribe: %w", err)
		}
		defer sub.Unsubscribe()
		listeners = append(listeners, publishListener(nc))
	} else {
		listeners = append(listeners, hubListener(hub))
	}

	// --- Qdrant + Ollama (optional) ---
	var index *semantic.Index
	if cfg.QdrantURL != "" && cfg.OllamaURL != "" {
		vs, err := semantic.New(cfg.QdrantURL, cfg.QdrantCollection)
		if err != nil {
			return fmt.Errorf("qdrant connect: %w", err)
		}
		defer vs.Close()
		if err := vs.EnsureCollection(ctx, cfg.EmbedDims); err != nil {
			logger.Warn("qdrant collection unavailable", "collection", cfg.QdrantCollection, "err", err)
		}
		index = semantic.NewIndex(vs, ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel), logger)
		listeners = append(listeners, indexListener(index, logger))
	}

	factory := func(id string) *jobcard.Controller {
		opts := []jobcard.Option{jobcard.WithSessionID(id), jobcard.WithLogger(logger)}
		for _, l := range listeners {
			opts = append(opts, jobcard.WithListener(l))
		}
		return jobcard.NewController(opts...)
	}
	regOpts = append(regOpts, jobcard.WithTTL(cfg.SessionTTL), jobcard.WithRegistryLogger(logger))
	sessions := jobcard.NewRegistry(factory, regOpts...)
	go sessions.Run(ctx, time.Minute)

	s := &server{
		logger:        logger,
		sessions:      sessions,
		metrics:       wm,
		hub:           hub,
		supplierGSTIN: cfg.SupplierGSTIN,
		auth: mid.Auth(mid.AuthConfig{
			Secret:   []byte(cfg.SupabaseJWTSecret),
			Audience: cfg.JWTAudience,
			Logger:   logger,
		}),
		chat: chat.NewClient(cfg.ChatBackendURL, cfg.ChatTimeout,
			chat.WithLogger(logger),
			chat.WithObserver(func(start time.Time, err error) { wm.Upstream("chat", start, err) }),
		),
		speech: speech.NewClient(cfg.SpeechBaseURL()),
	}
	if index != nil {
		s.similar = index
	}
	switch {
	case cfg.WorkshopAPIURL != "":
		api := workshopapi.New(cfg.WorkshopAPIURL, workshopapi.ContextToken{},
			workshopapi.WithRateLimit(cfg.WorkshopAPIRate, 5),
			workshopapi.WithLogger(logger),
			workshopapi.WithObserver(func(start time.Time, err error) { wm.Upstream("workshop_api", start, err) }),
		)
		s.listJobs = func(ctx context.Context, status string) ([]jobcard.Row, error) {
			cards, err := api.ListJobCards(ctx, workshopapi.ListParams{Status: status})
			if err != nil {
				return nil, err
			}
			rows := make([]jobcard.Row, len(cards))
			for i := range cards {
				rows[i] = cards[i].Row()
			}
			return rows, nil
		}
	case graphStore != nil:
		s.listJobs = func(ctx context.Context, status string) ([]jobcard.Row, error) {
			opts := repo.ListOpts{Limit: 500}
			if status != "" {
				opts.Filter = map[string]any{"status": status}
			}
			cards, err := graphStore.ListJobCards(ctx, opts)
			if err != nil {
				return nil, err
			}
			rows := make([]jobcard.Row, len(cards))
			for i, jc := range cards {
				rows[i] = jc.Row()
			}
			return rows, nil
		}
	}
	if graphStore != nil {
		s.stats = graphStore
		s.archive = graphStore
	}

	handler := mid.Chain(s.routes(reg),
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("eka-gateway"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ChatTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "port", cfg.Port,
			"neo4j", graphStore != nil, "nats", cfg.NATSURL != "", "semantic", index != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
