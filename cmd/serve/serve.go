// Package serve implements the serve command: the HTTP API server.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	api "github.com/averros/semquery/internal/api/v2"
	"github.com/averros/semquery/internal/conf"
	"github.com/averros/semquery/internal/logging"
	"github.com/averros/semquery/internal/observability"
	"github.com/averros/semquery/internal/ontology"
	"github.com/averros/semquery/internal/search"
	"github.com/averros/semquery/internal/semdex"
)

const shutdownTimeout = 10 * time.Second

// Command returns the serve sub-command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the semantic search HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}
}

func runServer(settings *conf.Settings) error {
	log, closeLog, err := setupLogger(settings)
	if err != nil {
		return fmt.Errorf("initializing server logger: %w", err)
	}
	defer func() { _ = closeLog() }()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	store, err := ontology.New(settings,
		ontology.WithAuditFailureHook(metrics.Ontology.RecordAuditFailure))
	if err != nil {
		return fmt.Errorf("initializing concept store: %w", err)
	}
	defer store.Close()
	metrics.Ontology.SetConceptCount(store.Count())

	index, err := buildIndex(settings)
	if err != nil {
		return fmt.Errorf("initializing semantic index: %w", err)
	}

	engine := search.NewEngine(store, index, &settings.Search, metrics.Search)

	e := echo.New()
	e.HideBanner = true
	e.Debug = settings.WebServer.Debug
	api.New(e, store, engine, settings, metrics)

	errChan := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		log.Info("http server starting", "addr", addr, "storage", store.StorageMode())
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// setupLogger returns the server's lifecycle logger and its close function.
// With file logging enabled the logger writes rotated JSON to the configured
// path; otherwise it shares the process-wide structured logger.
func setupLogger(settings *conf.Settings) (*slog.Logger, func() error, error) {
	if !settings.Main.Log.Enabled {
		log := logging.ForService("server")
		if log == nil {
			log = slog.Default().With("service", "server")
		}
		return log, func() error { return nil }, nil
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	return logging.NewFileLogger(settings.Main.Log.Path, "server", level)
}

// buildIndex creates the embedding-backed semantic index and loads the
// configured corpus under the default model name. A missing corpus is not
// fatal; the service starts with an empty index.
func buildIndex(settings *conf.Settings) (*semdex.Index, error) {
	index, err := semdex.NewFromConfig(&settings.Embedding)
	if err != nil {
		return nil, err
	}

	docs, err := semdex.LoadCorpus(settings.Embedding.CorpusPath)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		logging.Warn("no corpus loaded, semantic index is empty",
			"path", settings.Embedding.CorpusPath)
		index.AddModel(settings.Search.DefaultModel, nil)
		return index, nil
	}

	// Documents shipped with pre-computed vectors skip the embedding pass.
	preEmbedded := true
	for i := range docs {
		if len(docs[i].Vector) == 0 {
			preEmbedded = false
			break
		}
	}
	if preEmbedded {
		index.AddModel(settings.Search.DefaultModel, docs)
		logging.Info("corpus loaded with pre-computed vectors", "documents", len(docs))
		return index, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := index.IndexDocuments(ctx, settings.Search.DefaultModel, docs); err != nil {
		return nil, err
	}
	return index, nil
}
