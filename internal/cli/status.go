package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/soyeahso/nanoagent/internal/config"
	"github.com/soyeahso/nanoagent/internal/extension"
	"github.com/soyeahso/nanoagent/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show nanoagent paths and a configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nanoagent %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:     %s\n", paths.Config)
			fmt.Fprintf(out, "Data:       %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:       %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:     error loading: %v\n", err)
				return nil
			}
			if cfg.Agent.Workspace == "" {
				cfg.Agent.Workspace = paths.Workspace
			}

			fmt.Fprintf(out, "Workspace:  %s\n", cfg.Agent.Workspace)
			fmt.Fprintf(out, "Agent:      model=%s maxIterations=%d fallbacks=%s\n",
				orNone(cfg.Agent.Model), cfg.Agent.MaxIterations, orNone(strings.Join(cfg.Agent.Fallbacks, ",")))

			names := make([]string, 0, len(cfg.Providers))
			for name := range cfg.Providers {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(out, "Providers:  %s\n", orNone(strings.Join(names, ", ")))
			fmt.Fprintf(out, "Session:    store=%s\n", cfg.Session.Store)

			if s := cfg.Summarizer; s.IsEnabled() {
				fmt.Fprintf(out, "Summarizer: maxMessages=%d tokenBudget=%d keepRecent=%d workers=%d model=%s\n",
					s.MaxMessages, s.TokenBudget, s.KeepRecent, s.Workers, orNone(cfg.SummarizerModel()))
			} else {
				fmt.Fprintln(out, "Summarizer: disabled")
			}

			if cfg.Extensions.IsEnabled() {
				files, _ := extension.Candidates(cfg.ExtensionsDir())
				fmt.Fprintf(out, "Extensions: dir=%s files=%d\n", cfg.ExtensionsDir(), len(files))
			} else {
				fmt.Fprintln(out, "Extensions: disabled")
			}

			ch := cfg.Channels
			if ch.CLI != nil && ch.CLI.Enabled {
				fmt.Fprintln(out, "Terminal:   enabled")
			}
			if irc := ch.IRC; irc != nil {
				fmt.Fprintf(out, "IRC:        server=%s:%d nick=%s channels=%s tls=%v\n",
					irc.Server, irc.Port, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
			} else {
				fmt.Fprintln(out, "IRC:        (not configured)")
			}
			if ws := ch.WebSocket; ws != nil {
				fmt.Fprintf(out, "WebSocket:  addr=%s path=%s token=%v\n", ws.Addr, ws.Path, ws.Token != "")
			} else {
				fmt.Fprintln(out, "WebSocket:  (not configured)")
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
