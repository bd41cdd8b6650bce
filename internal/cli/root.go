// Package cli provides the command-line interface for courserag.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"courserag/internal/config"
	"courserag/internal/llm"
	"courserag/internal/orchestrator"
	"courserag/internal/parser"
	"courserag/internal/service"
	"courserag/internal/session"
	"courserag/internal/store"
	"courserag/internal/tools"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, loaded in PersistentPreRunE
	cfg config.Config

	loggerCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "courserag",
	Short: "Question answering over course transcripts",
	Long: `Courserag answers natural-language questions about a corpus of course
transcripts. Transcripts are chunked and embedded into a vector index; an LLM
decides per query whether to search the corpus or answer directly, and cites
the course material it used.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		loggerCleanup = config.SetupLogger(cfg.LogFile, level)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if loggerCleanup != nil {
			if err := loggerCleanup(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// pipeline bundles the components every command needs: the vector store, the
// ingestor feeding it, and the orchestrator answering from it.
type pipeline struct {
	store    store.Store
	ingestor *service.Ingestor
	sessions *session.Store
	orch     *orchestrator.Orchestrator

	closeStore func()
}

// buildPipeline constructs the full stack from cfg. An empty database URL
// selects the in-memory index; anything else is a Postgres connection string.
func buildPipeline(ctx context.Context) (*pipeline, error) {
	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	var (
		s          store.Store
		closeStore func()
	)
	if cfg.DatabaseURL == "" {
		m, err := store.NewMemory(embedder, cfg.MaxResults)
		if err != nil {
			return nil, err
		}
		s = m
		closeStore = func() {}
		slog.Info("using in-memory vector index")
	} else {
		p, err := store.NewPostgres(ctx, cfg.DatabaseURL, embedder, cfg.EmbedDimension, cfg.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s = p
		closeStore = p.Close
		slog.Info("using postgres vector index")
	}

	ingestor, err := service.NewIngestor(s, parser.ChunkConfig{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		closeStore()
		return nil, err
	}

	client, err := llm.NewChat(cfg)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("init model: %w", err)
	}

	sessions := session.NewStore(cfg.MaxHistory)
	registry := tools.NewRegistry(tools.NewSearchTool(s), tools.NewOutlineTool(s))
	orch := orchestrator.New(client, registry, sessions, cfg.MaxToolRounds,
		time.Duration(cfg.RequestTimeout)*time.Second)

	return &pipeline{
		store:      s,
		ingestor:   ingestor,
		sessions:   sessions,
		orch:       orch,
		closeStore: closeStore,
	}, nil
}

// loadCorpus ingests the configured docs directory, skipping courses already
// in the store. A missing directory is logged, not fatal.
func (p *pipeline) loadCorpus(ctx context.Context) {
	if _, err := os.Stat(cfg.DocsDir); err != nil {
		slog.Warn("docs directory not available, skipping corpus load", "dir", cfg.DocsDir, "error", err)
		return
	}
	stats, err := p.ingestor.IngestDirectory(ctx, cfg.DocsDir, false)
	if err != nil {
		slog.Error("corpus load failed", "dir", cfg.DocsDir, "error", err)
		return
	}
	slog.Info("corpus loaded", "courses", stats.Courses, "chunks", stats.Chunks, "skipped", stats.Skipped)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(askCmd)
}
