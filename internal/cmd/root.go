package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"titleCountdown/internal/cmdutil"
	"titleCountdown/internal/infrastructure/config"
)

type rootOptions struct {
	dir   string
	debug bool
}

func (o *rootOptions) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := cmdutil.LoadConfig(o.dir, o.debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cmdutil.NewLogger(cfg.Debug), nil
}

func Execute(ctx context.Context) int {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "title-countdown",
		Short:        "Keeps a \"Stream ends HH:MM:SS\" countdown in your Twitch stream title.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dir, "dir", "", "directory holding config.json, access_token.json and settings.yaml")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")

	rootCmd.AddCommand(RunCmd(ctx, opts))
	rootCmd.AddCommand(LoginCmd(ctx, opts))
	rootCmd.AddCommand(PreviewCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}

	return 0
}
