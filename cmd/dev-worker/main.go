package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bezdarei/client/internal/ballot"
	"bezdarei/client/internal/fakeworker"
	"bezdarei/client/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "dev-worker.yaml", "path to dev worker config file")
	flag.Parse()

	config, err := LoadServerConfig(*configPath)
	if err != nil {
		return err
	}
	logger := logging.NewWithWriter(os.Stderr, logging.ParseLevel(config.LogLevel))
	defer logger.Close()
	logger.Infof("dev worker starting (config: %s)", *configPath)

	b, err := ballot.Load(config.BallotFile)
	if err != nil {
		return err
	}
	worker := fakeworker.New(fakeworker.Options{
		User: fakeworker.User{
			Login:        config.UserLogin,
			DisplayName:  config.UserDisplayName,
			TwitchUserID: config.UserTwitchID,
		},
		Ballot:       b,
		EnableUnvote: config.EnableUnvote,
		AllowRevote:  config.AllowRevote,
		DenyLogin:    config.DenyLogin,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, config.ListenAddr, worker.Handler(), logger)
}

// serve обслуживает запросы до отмены ctx и затем мягко останавливает сервер.
func serve(ctx context.Context, addr string, handler http.Handler, logger *logging.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Infof("shutting down dev worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Infof("dev worker exited")
	return nil
}
