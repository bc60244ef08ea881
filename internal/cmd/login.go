package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"titleCountdown/internal/app/runtime"
	"titleCountdown/internal/infrastructure/browser"
)

func LoginCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Args:  cobra.ExactArgs(0),
		Short: "Authorizes the app with Twitch and saves the access token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rt := runtime.New(runtime.Options{
				Config: cfg,
				Logger: logger,
				Opener: browser.NewOpener(logger),
			})
			if err := rt.Load(ctx); err != nil {
				return err
			}
			defer rt.Unload()

			attempt, err := rt.Login(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Waiting for Twitch to redirect to %s\nIf no browser opened, visit:\n%s\n", attempt.RedirectURI, attempt.AuthURL)

			if err := attempt.Wait(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in. Token saved to %s\n", cfg.TokenPath)
			return nil
		},
	}

	return cmd
}
