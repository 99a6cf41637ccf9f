// Docqa is a retrieval-augmented document question-answering server.
//
// Uploaded documents are extracted, chunked and embedded into a vector
// store; questions are answered from the chunks of one upload via an LLM.
//
// Configuration is loaded from environment variables with an optional YAML
// file. See internal/config for details.
//
// Usage:
//
//	# Start server with defaults (embedded store, port 8000)
//	docqa
//
//	# Back onto an external store
//	ZILLIZ_URI=grpc://localhost:6334 MISTRAL_API_KEY=... docqa
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/philippgille/chromem-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docqa/internal/config"
	"github.com/fyrsmithlabs/docqa/internal/httpapi"
	"github.com/fyrsmithlabs/docqa/internal/logging"
	"github.com/fyrsmithlabs/docqa/internal/rag"
	"github.com/fyrsmithlabs/docqa/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Document question-answering server",
	Long: `docqa serves a retrieval-augmented question-answering API.

Upload a document, then ask questions scoped to that upload. Answers are
generated from the document's own text; anything else is refused.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docqa\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// runServe wires the pipeline and serves until the context is cancelled.
func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("starting docqa",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("external_store", cfg.Store.URI != ""),
		zap.String("collection", cfg.Store.Collection))

	llm, err := rag.NewChatLLM(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.APIKey.Value())
	if err != nil {
		return fmt.Errorf("initializing llm client: %w", err)
	}

	// One embedded database for the whole process. Handles opened for
	// requests that override only the collection still see the same data.
	sharedDB := chromem.NewDB()
	newHandle := func(hc vectorstore.HandleConfig) (vectorstore.Store, error) {
		return vectorstore.NewHandle(hc, sharedDB, logger)
	}

	svc := rag.NewService(cfg, llm, newHandle, logger)
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("closing pipeline", zap.Error(err))
		}
	}()

	srv, err := httpapi.NewServer(svc, logger, cfg.Server)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
