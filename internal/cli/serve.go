package cli

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

	"courserag/internal/server"
)

var (
	serveAddr     string
	serveSkipLoad bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP API server.

On startup the configured docs directory is ingested (courses already in the
store are skipped), then the API listens until interrupted.

Endpoints:
  POST   /api/query        answer a question, optionally within a session
  GET    /api/courses      corpus statistics
  POST   /api/session      start a new conversation session
  DELETE /api/session/:id  discard a session`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides configuration)")
	serveCmd.Flags().BoolVar(&serveSkipLoad, "skip-load", false, "skip the startup corpus load")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	p, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.closeStore()

	if !serveSkipLoad {
		p.loadCorpus(ctx)
	}

	addr := cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := server.New(p.orch, p.sessions, p.store)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		fmt.Fprintf(os.Stderr, "Received %s, shutting down\n", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
