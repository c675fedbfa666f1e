package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sori-ai/sori/pkg/app"
)

func historyCmd(g *globalFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored conversation of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(g, func(rt *app.Runtime) error {
				turns, err := rt.Engine.History(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(turns) == 0 {
					fmt.Fprintf(out, "No history for %s\n", sessionID)
					return nil
				}
				for _, t := range turns {
					fmt.Fprintf(out, "%4d  %-9s %s\n", t.Sequence, t.Role, t.Content)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (user id)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
