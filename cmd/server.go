package cmd

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

	"github.com/ziadkadry99/textbook-qa/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP question-answering API",
	Long: `Starts the bookqa HTTP API with /api/v1/ask, /api/v1/health, the query
history and a WebSocket ask channel. The server starts even when no index
has been built yet; /health then reports degraded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serverPort > 0 {
			cfg.Server.Port = serverPort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		server.Version = Version
		srv := server.New(server.Config{
			Addr:           cfg.Server.Address(),
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: cfg.CompressTimeout() + cfg.CompleteTimeout() + cfg.EmbedTimeout(),
		}, a.service, a.history, logger)

		// Graceful shutdown.
		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "bookqa server %s starting on %s\n", Version, cfg.Server.Address())
		fmt.Fprintf(os.Stderr, "  Index: %s (%d entries)\n", cfg.VectorDBPath, a.index.Count())
		if a.history != nil {
			fmt.Fprintf(os.Stderr, "  History: %s\n", cfg.HistoryDB)
		}

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
