package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bezdarei/client/internal/authflow"
	"bezdarei/client/internal/ballot"
	"bezdarei/client/internal/browser"
	"bezdarei/client/internal/config"
	"bezdarei/client/internal/logging"
	"bezdarei/client/internal/session"
	"bezdarei/client/internal/state"
	"bezdarei/client/internal/workerclient"
)

func newBallotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ballot",
		Short: "Показать номинации и кандидатов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Close()
			b, err := ballot.Load(cfg.BallotFile)
			if err != nil {
				return err
			}
			printBallot(cmd.OutOrStdout(), b, nil)
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Показать текущего пользователя и его голоса",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Close()
			return runWhoami(cmd.Context(), cmd.OutOrStdout(), cfg, logger)
		},
	}
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Войти через Twitch в браузере и сохранить сессию",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Close()
			return runLogin(cmd.Context(), cmd.OutOrStdout(), cfg, logger, browser.New().Open)
		},
	}
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Удалить сохранённую сессию",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Close()
			store, err := session.NewStore(cfg.TokenFile)
			if err != nil {
				return err
			}
			if err := store.Delete(); err != nil {
				return err
			}
			logger.Infof("session removed from cli")
			fmt.Fprintln(cmd.OutOrStdout(), "Сессия удалена")
			return nil
		},
	}
}

func runLogin(ctx context.Context, out io.Writer, cfg *config.Config, logger *logging.Logger, open authflow.OpenFunc) error {
	worker, err := workerclient.New(cfg.WorkerURL, workerclient.Options{Logger: logger})
	if err != nil {
		return err
	}
	store, err := session.NewStore(cfg.TokenFile)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	loginCtx, cancel := context.WithTimeout(ctx, cfg.LoginTimeout)
	defer cancel()

	fmt.Fprintln(out, "Завершите вход в открывшемся браузере…")
	token, err := authflow.Login(loginCtx, cfg.CallbackAddr, worker.AuthStartURL, open, logger)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := store.Save(token); err != nil {
		return err
	}
	return runWhoami(ctx, out, cfg, logger)
}

func runWhoami(ctx context.Context, out io.Writer, cfg *config.Config, logger *logging.Logger) error {
	store, err := session.NewStore(cfg.TokenFile)
	if err != nil {
		return err
	}
	token, err := store.Load()
	if err != nil {
		return err
	}
	if token == "" {
		fmt.Fprintln(out, "Вы не вошли")
		return nil
	}
	b, err := ballot.Load(cfg.BallotFile)
	if err != nil {
		return err
	}
	worker, err := workerclient.New(cfg.WorkerURL, workerclient.Options{Logger: logger})
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	var (
		user  state.User
		votes map[string]string
	)
	g, gctx := errgroup.WithContext(reqCtx)
	g.Go(func() error {
		var err error
		user, err = worker.Me(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		votes, err = worker.MyVotes(gctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Вы вошли как %s\n", user.Label())
	printBallot(out, b, votes)
	return nil
}

// printBallot печатает номинации. Звёздочкой отмечен сохранённый голос.
func printBallot(out io.Writer, b *ballot.Ballot, votes map[string]string) {
	for _, nom := range b.Nominations {
		fmt.Fprintf(out, "%s [%s]\n", nom.Title, nom.ID)
		for _, cand := range nom.Candidates {
			mark := " "
			if votes[nom.ID] == cand.ID {
				mark = "*"
			}
			fmt.Fprintf(out, "  %s %s [%s]\n", mark, cand.Title, cand.ID)
			if link := cand.Link(); link != "" {
				fmt.Fprintf(out, "      %s\n", link)
			}
		}
	}
}
