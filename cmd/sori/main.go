// Package main is the entry point for the sori CLI.
package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sori-ai/sori/internal/core"
	"github.com/sori-ai/sori/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command that loads the configuration.
type globalFlags struct {
	config   string
	dataDir  string
	logLevel string
}

func (g *globalFlags) params(oneShot bool) app.Params {
	return app.Params{
		ConfigPath: g.config,
		DataDir:    g.dataDir,
		LogLevel:   g.logLevel,
		OneShot:    oneShot,
	}
}

func rootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "sori",
		Short:         "A conversational companion backend with durable memory and voice replies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.config, "config", "c", "", "path to sori.yaml")
	root.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "persistent data directory")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(
		versionCmd(),
		serveCmd(&g),
		chatCmd(&g),
		profileCmd(&g),
		historyCmd(&g),
		configCmd(&g),
		initCmd(),
		serviceCmd(&g),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sori %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Fprintln(out, "\nNo compiled modules.")
				return
			}
			ids := make([]string, 0, len(mods))
			for _, mod := range mods {
				ids = append(ids, string(mod.ID))
			}
			slices.Sort(ids)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
		},
	}
}

func serveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and voice gateway with all configured modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), g.params(false))
		},
	}
}

// withRuntime builds a one-shot runtime, starts it, runs fn and shuts the
// runtime down.
func withRuntime(g *globalFlags, fn func(rt *app.Runtime) error) error {
	rt, err := app.Build(g.params(true))
	if err != nil {
		return err
	}
	if err := rt.App.Start(); err != nil {
		return err
	}
	defer rt.App.Stop()
	return fn(rt)
}
