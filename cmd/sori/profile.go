package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sori-ai/sori/pkg/app"
)

func profileCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Read or replace a session profile",
	}
	cmd.AddCommand(profileSetCmd(g), profileGetCmd(g))
	return cmd
}

func profileSetCmd(g *globalFlags) *cobra.Command {
	var (
		sessionID string
		age       int
		interests []string
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the profile of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var agePtr *int
			if cmd.Flags().Changed("age") {
				agePtr = &age
			}
			return withRuntime(g, func(rt *app.Runtime) error {
				if err := rt.Engine.SetProfile(cmd.Context(), sessionID, agePtr, interests); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Profile saved for %s\n", sessionID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (user id)")
	cmd.Flags().IntVar(&age, "age", 0, "age; omit to leave unknown")
	cmd.Flags().StringSliceVar(&interests, "interests", nil, "comma separated interests")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func profileGetCmd(g *globalFlags) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the profile of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(g, func(rt *app.Runtime) error {
				p, found, err := rt.Engine.Profile(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !found {
					fmt.Fprintf(out, "No profile for %s\n", sessionID)
					return nil
				}
				age := "unknown"
				if p.Age != nil {
					age = fmt.Sprint(*p.Age)
				}
				fmt.Fprintf(out, "session:   %s\nage:       %s\ninterests: %s\n", sessionID, age, strings.Join(p.Interests, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (user id)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
