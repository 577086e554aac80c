package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"crossfade/internal/server"
	"crossfade/internal/tasks"

	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API server until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	host := cmd.String("host")
	if host == "" {
		host = r.config.Server.Host
	}
	port := int(cmd.Int("port"))
	if port == 0 {
		port = r.config.Server.Port
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	hub := server.NewHub()
	orchestrator, jobs, matches := r.orchestrator(db, hub)
	dispatcher := tasks.NewDispatcher(orchestrator, r.config.Worker.PoolSize, r.logger)
	reviewer := r.reviewer(jobs, matches)

	router := server.NewBasicRouter()
	router.Use(server.LoggingMiddleware(r.logger))
	router.Handler(server.NewJobsHandler(orchestrator, dispatcher, jobs, hub, r.logger))
	router.Handler(server.NewReviewHandler(reviewer, r.logger))

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(runCtx)
	defer dispatcher.Stop()

	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	r.logger.Info("server listening", "addr", addr)

	select {
	case <-runCtx.Done():
		r.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}
}
