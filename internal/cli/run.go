package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soyeahso/nanoagent/internal/channel"
	clichan "github.com/soyeahso/nanoagent/internal/channel/cli"
	"github.com/soyeahso/nanoagent/internal/channel/irc"
	"github.com/soyeahso/nanoagent/internal/channel/websocket"
	"github.com/soyeahso/nanoagent/internal/config"
	"github.com/soyeahso/nanoagent/internal/routing"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var withTerminal bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the configured channels and the agent loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if withTerminal && cfg.Channels.CLI == nil {
				cfg.Channels.CLI = &config.CLIChannelConfig{Enabled: true}
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			channels := channel.NewRegistry(log)
			router := routing.NewRouter(channels, a.bus, log)
			registerChannels(cfg.Channels, channels, router)
			if channels.Count() == 0 {
				return fmt.Errorf("no channels configured; enable one under channels in %s or pass --terminal", paths.Config)
			}

			router.Attach(ctx)
			if err := channels.StartAll(ctx); err != nil {
				return fmt.Errorf("starting channels: %w", err)
			}
			defer channels.StopAll(context.Background())

			log.Info().
				Strs("channels", channels.List()).
				Int("tools", a.tools.Len()).
				Msg("message routing active")

			if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info().Msg("shutting down")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withTerminal, "terminal", false, "also chat on stdin/stdout")
	return cmd
}

// registerChannels creates every configured channel and applies its allow list.
func registerChannels(cfg config.ChannelsConfig, channels *channel.Registry, router *routing.Router) {
	if c := cfg.CLI; c != nil && c.Enabled {
		channels.Register(clichan.New(os.Stdin, os.Stdout, log, clichan.WithPrompt("> ")))
		router.Allow(clichan.ChannelID, c.AllowFrom)
	}
	if c := cfg.IRC; c != nil {
		channels.Register(irc.New(*c, log))
		router.Allow(irc.ChannelID, c.AllowFrom)
	}
	if c := cfg.WebSocket; c != nil {
		channels.Register(websocket.New(*c, log))
		router.Allow(websocket.ChannelID, c.AllowFrom)
	}
}
