// Package main implements the review worker daemon: an HTTP service that
// accepts repository indexing and pull-request review jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/imaxisXD/ai-code-review-service-sub000/internal/analyzer"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/breaker"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/chunker"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/comments"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/config"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/embedding"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/gitrepo"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/graph"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/indexing"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/logging"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/provider"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/retrieval"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/review"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/server"
	"github.com/imaxisXD/ai-code-review-service-sub000/internal/store"
)

var (
	logger  *zap.Logger
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "reviewworker",
	Short: "Background worker for repository indexing and AI pull-request review",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, _ = zapCfg.Build()
		if err := logging.Initialize(); err != nil {
			logger.Warn("category logging init failed", zap.Error(err))
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP job server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", zap.Int("port", cfg.Port))

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	embedProvider, err := embedding.NewOpenAIProvider(cfg.OpenAIAPIKey)
	if err != nil {
		return err
	}
	embedder := embedding.NewService(embedProvider, cfg.Embedding)

	llmClient, err := analyzer.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLM.Model)
	if err != nil {
		return err
	}
	brk := breaker.New(cfg.LLM.MaxFailures, cfg.LLM.ResetTimeout)
	llm := analyzer.New(llmClient, brk, cfg.LLM)

	git := gitrepo.New(cfg.GitHubToken)
	host := provider.NewGitHub(ctx, cfg.GitHubToken)
	chk := chunker.New()
	graphs := graph.NewCache()

	indexer := indexing.NewOrchestrator(indexing.Deps{
		Store:    st,
		Git:      git,
		Chunker:  chk,
		Embedder: embedder,
		Graphs:   graphs,
	}, cfg.Indexing)

	reviewer := review.NewOrchestrator(review.Deps{
		Store:     st,
		Host:      host,
		Git:       git,
		Retriever: retrieval.New(st, embedder),
		Analyzer:  llm,
		Comments:  comments.New(host),
		Embedder:  embedder,
	}, cfg.Review)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.New(cfg.ServiceSecretKey, indexer, reviewer).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logging.CloseAll()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
