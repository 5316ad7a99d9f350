package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bezdarei/client/internal/app"
	"bezdarei/client/internal/config"
	"bezdarei/client/internal/logging"
	"bezdarei/client/internal/state"
	"bezdarei/client/internal/ui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "bezdarei",
		Short:         "Клиент голосования Bezdarei Award",
		Long:          "Без подкоманды открывает окно голосования. Подкоманды работают без GUI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGUI(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.yaml (default: next to the executable)")
	root.AddCommand(
		newBallotCmd(opts),
		newWhoamiCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
	)
	return root
}

// setup загружает конфигурацию и открывает лог-файл.
func setup(opts *rootOptions) (*config.Config, *logging.Logger, error) {
	appDir, err := config.DetectAppDir()
	if err != nil {
		return nil, nil, fmt.Errorf("determine app directory: %w", err)
	}
	path := opts.configPath
	if path == "" {
		path = config.DefaultPath(appDir)
	}
	cfg, err := config.Load(path, appDir)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Debugf("config loaded from %s", path)
	return cfg, logger, nil
}

func runGUI(parent context.Context, opts *rootOptions) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}
	defer logger.Close()

	if parent == nil {
		parent = context.Background()
	}
	baseCtx := logging.WithContext(parent, logger)
	ctx, stop := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Infof("Bezdarei Award client starting (worker: %s)", cfg.WorkerURL)
	logger.Debugf("vote policy: %s, unvote allowed: %t", cfg.VotePolicy, cfg.AllowUnvote)

	return startApp(ctx, cfg)
}

func startApp(ctx context.Context, cfg *config.Config) error {
	logger, ok := logging.FromContext(ctx)
	if !ok {
		return fmt.Errorf("logger not found in context")
	}
	var application *app.Application
	manager := ui.NewManager(ui.Options{
		AppID:   "bezdarei.award",
		AppName: "Bezdarei Award",
		Logger:  logger,
		Dispatch: func(evt state.Event) error {
			return application.Dispatch(evt)
		},
	})
	application, err := app.New(cfg, logger, app.Options{View: manager, Opener: manager})
	if err != nil {
		return err
	}
	manager.SetOnStopped(application.Stop)
	manager.Start()
	if err := application.Run(); err != nil {
		return err
	}
	logger.Infof("state machine launched, entering UI loop")
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			logger.Infof("shutdown requested")
			application.Stop()
			manager.Quit()
		case <-application.Done():
			logger.Infof("application requested shutdown")
		}
		close(done)
	}()
	manager.RunMainLoop()
	logger.Infof("UI loop exited, stopping application")
	application.Stop()
	manager.Quit()
	if !manager.WaitAsync(3 * time.Second) {
		logger.Errorf("ui background tasks did not finish before timeout")
	}
	<-done
	return nil
}
