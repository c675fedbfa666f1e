package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sori-ai/sori/pkg/app"
)

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate the configuration and provision every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := g.params(false)
			if len(args) == 1 {
				params.ConfigPath = args[0]
			}
			rt, err := app.Build(params)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			ids := rt.Config.ModuleIDs()
			fmt.Fprintf(out, "Configuration OK: %s (%d modules)\n", rt.ConfigPath, len(ids))
			for _, id := range ids {
				fmt.Fprintf(out, "  %s\n", id)
			}
			fmt.Fprintf(out, "Gateway order: %v\n", rt.Config.GatewayOrder())
			return nil
		},
	})
	return cmd
}
