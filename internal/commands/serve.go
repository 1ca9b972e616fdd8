package commands

import (
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hooktail-systems/hooktail/internal/connector"
	"github.com/hooktail-systems/hooktail/internal/handlers"
	"github.com/hooktail-systems/hooktail/internal/logging"
	"github.com/hooktail-systems/hooktail/internal/repository"
	"github.com/hooktail-systems/hooktail/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hooktail daemon",
	Long: `Connects to the hook event stream, ingests events into the local
cache, and serves the query API over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	conn := connector.New(connector.Config{
		URL:            cfg.NATS.URL,
		Name:           cfg.NATS.Name,
		Subject:        cfg.NATS.Subject,
		ConnectTimeout: cfg.NATS.ConnectTimeout,
		Buffer:         cfg.NATS.Buffer,
	}, log)

	repo := repository.New(conn, store, cfg.Retention.MaxEvents, log)
	if err := repo.Connect(ctx); err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer repo.Disconnect()

	events, err := repo.LiveEvents(ctx)
	if err != nil {
		return fmt.Errorf("start ingest: %w", err)
	}
	go func() {
		for ev := range events {
			log.Debug("event ingested",
				logging.EventID(ev.ID),
				logging.HookType(string(ev.Type)),
				logging.SessionID(ev.SessionID()))
		}
		if err := repo.LastError(); err != nil {
			log.Error("ingest stream terminated", logging.Error(err))
		}
	}()

	h := handlers.New(repo, cfg.Retention.DisplayLimit, log)
	srv := server.New(cfg.Server.Addr(), h)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Server.Addr())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := server.Shutdown(srv, 10*time.Second); err != nil {
		log.Warn("shutdown incomplete", logging.Error(err))
	}
	return nil
}
