package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/soyeahso/nanoagent/internal/extension"
	"github.com/spf13/cobra"
)

func newExtensionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extensions",
		Short: "Inspect hot-loaded tool extensions",
	}
	cmd.AddCommand(newExtensionsCheckCmd())
	cmd.AddCommand(newExtensionsPatternsCmd())
	return cmd
}

func newExtensionsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Evaluate extension files without registering them",
		Long: "Scan, interpret and validate every extension file the agent would load, " +
			"and report which would be registered and why the others would be rejected.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dir := cfg.ExtensionsDir()
			if len(args) == 1 {
				dir = args[0]
			}

			var taken []string
			for _, t := range builtinTools(cfg, nil) {
				taken = append(taken, t.Name())
			}

			loader := extension.NewLoader(dir, extensionConfig(cfg), nil, log)
			verdicts, err := loader.Check(taken)
			if err != nil {
				return fmt.Errorf("scanning %s: %w", dir, err)
			}

			out := cmd.OutOrStdout()
			if len(verdicts) == 0 {
				fmt.Fprintf(out, "No extension files in %s\n", dir)
				return nil
			}

			rejected := 0
			for _, v := range verdicts {
				name := filepath.Base(v.File)
				if v.Err == nil {
					fmt.Fprintf(out, "  ok      %-24s tool=%s\n", name, v.Tool)
					continue
				}
				rejected++
				var rerr *extension.RejectError
				if errors.As(v.Err, &rerr) {
					detail := rerr.Reason
					if rerr.Pattern != "" {
						detail += " (" + rerr.Pattern + ")"
					}
					if rerr.Err != nil {
						detail += ": " + rerr.Err.Error()
					}
					fmt.Fprintf(out, "  reject  %-24s %s\n", name, detail)
				} else {
					fmt.Fprintf(out, "  reject  %-24s %v\n", name, v.Err)
				}
			}

			if rejected > 0 {
				return fmt.Errorf("%d of %d extension(s) would be rejected", rejected, len(verdicts))
			}
			return nil
		},
	}
}

func newExtensionsPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the source patterns that make an extension rejected",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range extension.PatternNames() {
				fmt.Fprintln(cmd.OutOrStdout(), "  "+p)
			}
		},
	}
}
