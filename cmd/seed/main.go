package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/subscription-manager/internal/app/seed"
	"github.com/magabrotheeeer/subscription-manager/internal/config"
	"github.com/magabrotheeeer/subscription-manager/internal/lib/sl"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		users    int
		randSeed uint64
	)

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Fill the database with plans, users and subscriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.MustLoad()
			if cmd.Flags().Changed("users") {
				cfg.Seed.Users = users
			}
			logger := sl.New(cfg.Env)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := seed.New(ctx, cfg, logger, randSeed)
			if err != nil {
				logger.Error("failed to initialize seed", sl.Err(err))
				return err
			}
			if err := app.Run(ctx); err != nil {
				logger.Error("seed failed", sl.Err(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&users, "users", 0, "number of users to create (overrides seed.users from config)")
	cmd.Flags().Uint64Var(&randSeed, "seed", uint64(time.Now().UnixNano()), "random seed; the same seed produces the same data")

	return cmd
}
