package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"intake-agent/handler"
	"intake-agent/internal/logger"
)

const shutdownTimeout = 15 * time.Second

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := build(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	addr := app.cfg.Port
	if port != "" {
		addr = port
	}
	srv := handler.NewHTTPServer(app.handler, net.JoinHostPort("", addr), app.cfg.CORSOrigins)

	errCh := make(chan error, 1)
	go func() {
		app.log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func runLambda(ctx context.Context) error {
	app, err := build(ctx, handler.WithCORS())
	if err != nil {
		return err
	}
	defer app.close()

	lambda.Start(app.handler.Handle)
	return nil
}

func logWarnings(log *logger.Logger, warnings []string) {
	for _, w := range warnings {
		log.Warn("degraded capability", "detail", w)
	}
}
