package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/nanoagent/internal/store"
	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and reset persisted conversations",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	cmd.AddCommand(newSessionsResetCmd())
	return cmd
}

// openSessions opens the SQLite session store. The caller closes the DB.
func openSessions() (*store.DB, *store.SQLiteSessionStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Session.Store == "memory" {
		return nil, nil, fmt.Errorf("sessions are not persisted with session.store=memory")
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, err
	}
	db, err := store.Open(paths.Database(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, store.NewSQLiteSessionStore(db), nil
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ss, err := openSessions()
			if err != nil {
				return err
			}
			defer db.Close()

			infos, err := ss.List()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tMESSAGES\tSUMMARY\tUPDATED")
			for _, info := range infos {
				summary := "no"
				if info.HasSummary {
					summary = "yes"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", info.Key, info.Messages, summary, info.UpdatedAt.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print a session's summary and messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ss, err := openSessions()
			if err != nil {
				return err
			}
			defer db.Close()

			sess, ok, err := ss.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("session %q not found", args[0])
			}

			out := cmd.OutOrStdout()
			if summary := sess.CurrentSummary(); summary != "" {
				fmt.Fprintf(out, "--- Summary ---\n%s\n\n", summary)
			}
			for _, m := range sess.History() {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.Timestamp.Local().Format(time.DateTime), m.Role, m.Text())
			}
			return nil
		},
	}
}

func newSessionsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <key>",
		Short: "Clear a session's history and summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, ss, err := openSessions()
			if err != nil {
				return err
			}
			defer db.Close()

			sess, ok, err := ss.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("session %q not found", args[0])
			}
			n := sess.Clear()
			if err := ss.Save(sess); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s (%d messages)\n", args[0], n)
			return nil
		},
	}
}
