package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/agrolab/hydrochat/internal/answer"
	"github.com/agrolab/hydrochat/internal/api"
	"github.com/agrolab/hydrochat/internal/config"
	"github.com/agrolab/hydrochat/internal/extract"
	"github.com/agrolab/hydrochat/internal/ingest"
	"github.com/agrolab/hydrochat/internal/interaction"
	"github.com/agrolab/hydrochat/internal/openai"
	"github.com/agrolab/hydrochat/internal/retrieval"
	"github.com/agrolab/hydrochat/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hydrochat server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

// app holds the wired components shared by the HTTP, MCP, and CLI surfaces.
type app struct {
	cfg       config.Config
	store     *storage.Store
	vectors   *retrieval.SQLiteStore
	retriever *retrieval.Retriever
	builder   *ingest.Builder
	answerer  *answer.Service
	extractor *extract.Service
	log       *interaction.Log

	rebuildMu sync.Mutex
}

func buildApp(cfg config.Config) (*app, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	client := openai.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey)
	embedder := retrieval.NewEmbedder(client, cfg.OpenAI.EmbedModel)
	vectors := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder)
	builder := ingest.NewBuilder(embedder, vectors)
	ilog := interaction.NewLog(cfg.Log.InteractionCapacity)

	svc := answer.NewService(retriever, client, ilog, answer.Params{
		Model:       cfg.OpenAI.ChatModel,
		Temperature: &cfg.Answer.Temperature,
		MaxTokens:   cfg.Answer.MaxTokens,
		Timeout:     time.Duration(cfg.Answer.TimeoutSeconds) * time.Second,
	})

	return &app{
		cfg:       cfg,
		store:     store,
		vectors:   vectors,
		retriever: retriever,
		builder:   builder,
		answerer:  svc,
		extractor: extract.NewService(cfg.Ingest.ArtifactDir),
		log:       ilog,
	}, nil
}

// rebuild re-indexes the corpus from scratch: windowed JSON artifacts first,
// then any reference PDFs. The retriever handle is withdrawn before the
// store is touched and published again only after both passes succeed, so
// queries racing a rebuild get the index-not-ready condition, never a
// half-built table. A failed rebuild leaves the retriever unbound. Rebuilds
// are serialized; a second POST /index waits for the running one.
func (a *app) rebuild(ctx context.Context) (int, error) {
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()

	a.retriever.Unbind()
	if err := a.vectors.Clear(); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}

	embeddingsDir := ""
	if a.cfg.Ingest.WriteArtifacts {
		embeddingsDir = a.cfg.Ingest.ArtifactDir
	}
	docs, err := a.builder.BuildFromArtifacts(ctx, a.cfg.Ingest.ArtifactDir, embeddingsDir)
	if err != nil {
		return 0, err
	}
	pdfs, err := a.builder.BuildFromPDFs(ctx, a.cfg.Ingest.PDFDir)
	if err != nil {
		return 0, err
	}

	a.retriever.Bind(a.vectors)
	return docs + pdfs, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "hydrochat version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// A previous run may have left an index behind. Bind it so queries work
	// without re-indexing; POST /index rebuilds on demand.
	if n, err := a.vectors.Count(); err == nil && n > 0 {
		a.retriever.Bind(a.vectors)
		slog.Info("bound existing index", "documents", n)
	} else {
		slog.Info("no index yet; POST /index after extracting a workbook")
	}

	handler := api.NewHandler(api.Deps{
		Answerer:  a.answerer,
		Extractor: a.extractor,
		Rebuild:   a.rebuild,
		Log:       a.log,
		Store:     a.store,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server over stdio, alongside HTTP.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Answerer: a.answerer,
		Searcher: a.retriever,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "hydrochat listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
