package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"titleCountdown/internal/app/events"
	"titleCountdown/internal/app/runtime"
	"titleCountdown/internal/domain"
	"titleCountdown/internal/infrastructure/browser"
	"titleCountdown/internal/infrastructure/settings"
	"titleCountdown/internal/interface/api/ws"
)

func RunCmd(ctx context.Context, opts *rootOptions) *cobra.Command {
	flags := domain.Settings{}

	cmd := &cobra.Command{
		Use:   "run",
		Args:  cobra.ExactArgs(0),
		Short: "Updates the stream title on an interval until the countdown ends or you stop it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			initial, err := initialSettings(cmd, cfg.SettingsPath, flags, logger)
			if err != nil {
				return err
			}

			bus := events.NewBus(logger)
			defer bus.Close()

			rt := runtime.New(runtime.Options{
				Config: cfg,
				Logger: logger,
				Bus:    bus,
				Opener: browser.NewOpener(logger),
			})
			if err := rt.Load(ctx); err != nil {
				return err
			}
			defer rt.Unload()

			if err := rt.ApplySettings(initial); err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				w := settings.NewWatcher(cfg.SettingsPath, logger)
				err := w.Watch(gctx, func(s domain.Settings) {
					if err := rt.ApplySettings(s); err != nil {
						logger.Warn("ignoring invalid settings", zap.Error(err), zap.String("path", cfg.SettingsPath))
					}
				})
				if err != nil {
					logger.Warn("settings watcher stopped", zap.Error(err))
				}
				return nil
			})

			if cfg.ControlAddr != "" {
				g.Go(func() error {
					srv := ws.NewServer(ws.Config{
						Addr:       cfg.ControlAddr,
						Logger:     logger,
						Controller: rt,
						Events:     bus,
					})
					if err := srv.Start(gctx); err != nil {
						logger.Error("control api stopped", zap.Error(err))
					}
					return nil
				})
			}

			<-ctx.Done()
			logger.Info("shutting down")

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.DurationMinutes, "duration", 60, "stream duration in minutes (1-1440)")
	cmd.Flags().StringVar(&flags.ChannelName, "channel", "", "Twitch channel whose title is updated")
	cmd.Flags().BoolVar(&flags.Enabled, "enable", false, "start updating the title right away")

	return cmd
}

// initialSettings starts from settings.yaml when present. Flags given on the
// command line win over the file.
func initialSettings(cmd *cobra.Command, path string, flags domain.Settings, logger *zap.Logger) (domain.Settings, error) {
	s := flags
	if settings.Exists(path) {
		fromFile, err := settings.Load(path)
		switch {
		case err == nil:
			s = fromFile
		case errors.Is(err, settings.ErrEmpty):
		default:
			logger.Warn("ignoring unreadable settings file", zap.Error(err), zap.String("path", path))
		}
	}

	if cmd.Flags().Changed("duration") || s.DurationMinutes == 0 {
		s.DurationMinutes = flags.DurationMinutes
	}
	if cmd.Flags().Changed("channel") {
		s.ChannelName = flags.ChannelName
	}
	if cmd.Flags().Changed("enable") {
		s.Enabled = flags.Enabled
	}

	s = s.Normalized()
	if err := s.Validate(); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}
