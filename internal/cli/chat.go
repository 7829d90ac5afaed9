package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/nanoagent/internal/agent"
	"github.com/soyeahso/nanoagent/internal/channel"
	clichan "github.com/soyeahso/nanoagent/internal/channel/cli"
	"github.com/soyeahso/nanoagent/internal/domain"
	"github.com/soyeahso/nanoagent/internal/routing"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var (
		session string
		model   string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the agent from the terminal",
		Long: "With a message, process it once and print the reply. " +
			"Without one, start an interactive session on stdin/stdout.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if model != "" {
				cfg.Agent.Model = model
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if len(args) == 0 {
				return interactive(ctx, a)
			}

			// Messages sent by tools during the run are printed as they arrive.
			out := cmd.OutOrStdout()
			channelID, _, _ := strings.Cut(session, ":")
			a.bus.SubscribeOutbound(channelID, func(_ context.Context, msg domain.OutboundMessage) error {
				if url, _ := msg.Metadata["photo_url"].(string); url != "" {
					fmt.Fprintln(out, "[image] "+url)
				}
				if msg.Content != "" {
					fmt.Fprintln(out, msg.Content)
				}
				return nil
			})

			reply, err := a.loop.ProcessDirect(ctx, strings.Join(args, " "), session)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", agent.DirectSessionKey, "session key (channel:chat_id)")
	cmd.Flags().StringVar(&model, "model", "", "override the agent model")
	return cmd
}

// interactive runs the agent loop with the terminal as its only channel
// until stdin closes or the process is interrupted.
func interactive(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	channels := channel.NewRegistry(log)
	term := clichan.New(os.Stdin, os.Stdout, log, clichan.WithPrompt("> "))
	channels.Register(term)
	router := routing.NewRouter(channels, a.bus, log)
	router.Attach(ctx)

	loopErr := make(chan error, 1)
	go func() { loopErr <- a.loop.Run(ctx) }()

	fmt.Println("nanoagent interactive chat. /reset clears history, Ctrl-D exits.")
	err := term.Start(ctx)
	cancel()
	if lerr := <-loopErr; lerr != nil && !errors.Is(lerr, context.Canceled) {
		return lerr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
