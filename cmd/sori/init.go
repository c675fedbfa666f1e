package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sori-ai/sori/internal/config"
	"github.com/sori-ai/sori/pkg/app"
)

func initCmd() *cobra.Command {
	var (
		output      string
		force       bool
		interactive bool
		opts        config.ScaffoldOptions
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter sori.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = app.ConfigCandidates()[0]
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			if interactive {
				if err := runInitForm(&opts); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return errors.New("init aborted")
					}
					return err
				}
			}

			raw, err := config.Scaffold(opts)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(output, raw, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&output, "output", "o", "", "config file to write (default: the first config search path)")
	f.BoolVar(&force, "force", false, "overwrite an existing file")
	f.BoolVarP(&interactive, "interactive", "i", true, "ask for the settings in a form")
	f.StringVar(&opts.Memory, "memory", "sqlite", "storage backend: sqlite or postgres")
	f.StringVar(&opts.Provider, "provider", "openai", "model provider: openai or anthropic")
	f.StringVar(&opts.Model, "model", "", "model name (default depends on the provider)")
	f.BoolVar(&opts.Speech, "speech", false, "enable spoken replies")
	f.StringVar(&opts.Listen, "bind", "127.0.0.1:8080", "HTTP listen address")
	f.StringVar(&opts.Eviction, "eviction", "none", "session eviction: none, ttl or lru")
	return cmd
}

func runInitForm(opts *config.ScaffoldOptions) error {
	storage := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Where should conversations be stored?").
			Options(
				huh.NewOption("SQLite file in the data directory", "sqlite"),
				huh.NewOption("PostgreSQL (DSN from $SORI_POSTGRES_DSN)", "postgres"),
			).
			Value(&opts.Memory),
		huh.NewSelect[string]().
			Title("Session eviction").
			Options(
				huh.NewOption("Keep every session in memory", "none"),
				huh.NewOption("Drop sessions idle for an hour", "ttl"),
				huh.NewOption("Cap live sessions", "lru"),
			).
			Value(&opts.Eviction),
	)
	model := huh.NewGroup(
		huh.NewSelect[string]().
			Title("Model provider").
			Options(huh.NewOption("OpenAI", "openai"), huh.NewOption("Anthropic", "anthropic")).
			Value(&opts.Provider),
		huh.NewConfirm().
			Title("Speak replies on /ws/voice?").
			Description("Uses the OpenAI speech endpoint and $OPENAI_API_KEY.").
			Value(&opts.Speech),
		huh.NewInput().
			Title("HTTP listen address").
			Value(&opts.Listen).
			Validate(func(s string) error {
				_, _, err := net.SplitHostPort(s)
				return err
			}),
	)
	if err := huh.NewForm(storage, model).Run(); err != nil {
		return err
	}
	if opts.Model == "" {
		opts.Model = config.DefaultModel(opts.Provider)
	}
	return nil
}
