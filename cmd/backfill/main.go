// Command backfill indexes closed job cards already stored in Neo4j into the
// Qdrant similar-job collection. The gateway indexes cards as they close;
// this catches up on cards closed before search was enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/eka-ai/workshop/engine/graph"
	"github.com/eka-ai/workshop/engine/jobcard"
	"github.com/eka-ai/workshop/engine/semantic"
	"github.com/eka-ai/workshop/pkg/config"
	"github.com/eka-ai/workshop/pkg/ollama"
	"github.com/eka-ai/workshop/pkg/repo"
)

func main() {
	batch := flag.Int("batch", 100, "job cards fetched per page")
	recreate := flag.Bool("recreate", false, "drop and recreate the collection first")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := config.Load("")
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	if err := run(ctx, cfg, logger, *batch, *recreate); err != nil {
		logger.Error("backfill failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, batch int, recreate bool) error {
	if cfg.Neo4jURL == "" || cfg.QdrantURL == "" || cfg.OllamaURL == "" {
		return fmt.Errorf("backfill needs NEO4J_URL, QDRANT_URL and OLLAMA_URL")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return fmt.Errorf("neo4j connect: %w", err)
	}
	defer driver.Close(ctx)

	vs, err := semantic.New(cfg.QdrantURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vs.Close()
	if recreate {
		if err := vs.DeleteCollection(ctx); err != nil {
			logger.Warn("delete collection", "err", err)
		}
	}
	if err := vs.EnsureCollection(ctx, cfg.EmbedDims); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	gs := graph.New(driver)
	ix := semantic.NewIndex(vs, ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel), logger)
	indexed, failed, err := backfill(ctx, gs, ix, batch, logger)
	logger.Info("backfill done", "indexed", indexed, "failed", failed)
	return err
}

type cardLister interface {
	ListJobCards(ctx context.Context, opts repo.ListOpts) ([]*jobcard.JobCard, error)
}

type jobIndexer interface {
	IndexJob(ctx context.Context, s semantic.JobSummary) error
}

// backfill pages through closed cards oldest first. A card that fails to
// index is logged and skipped; a listing failure stops the run.
func backfill(ctx context.Context, src cardLister, ix jobIndexer, batch int, logger *slog.Logger) (indexed, failed int, err error) {
	if batch <= 0 {
		batch = 100
	}
	opts := repo.ListOpts{
		Limit:   batch,
		Filter:  map[string]any{"status": string(jobcard.StatusClosed)},
		OrderBy: "created_at",
	}
	for {
		if err := ctx.Err(); err != nil {
			return indexed, failed, err
		}
		cards, err := src.ListJobCards(ctx, opts)
		if err != nil {
			return indexed, failed, fmt.Errorf("list closed job cards at offset %d: %w", opts.Offset, err)
		}
		for _, jc := range cards {
			if err := ix.IndexJob(ctx, semantic.SummaryFromCard(jc)); err != nil {
				logger.Warn("index failed", "job_card", jc.ID, "err", err)
				failed++
				continue
			}
			indexed++
		}
		if len(cards) < batch {
			return indexed, failed, nil
		}
		opts.Offset += batch
		logger.Info("progress", "indexed", indexed, "failed", failed)
	}
}
