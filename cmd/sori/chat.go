package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sori-ai/sori/internal/engine"
	"github.com/sori-ai/sori/pkg/app"
)

func chatCmd(g *globalFlags) *cobra.Command {
	var (
		sessionID string
		speakTo   string
	)
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Run one conversation turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withRuntime(g, func(rt *app.Runtime) error {
				if speakTo != "" {
					return speak(cmd, rt.Engine, sessionID, text, speakTo)
				}
				reply, err := rt.Engine.ProcessTurn(cmd.Context(), sessionID, text)
				if reply != "" {
					fmt.Fprintln(cmd.OutOrStdout(), reply)
				}
				if err != nil && reply != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: reply was not saved to history: %v\n", err)
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id (user id)")
	cmd.Flags().StringVar(&speakTo, "speak", "", "write the synthesized reply audio to this file")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

// speak streams a turn, writing audio chunks to path as they arrive.
func speak(cmd *cobra.Command, eng *engine.Engine, sessionID, text, path string) error {
	if !eng.CanSpeak() {
		return errors.New("no speech module configured")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var turnErr error
	for ev := range eng.StreamTurn(cmd.Context(), sessionID, text) {
		switch ev.Kind {
		case engine.EventAudio:
			if _, err := f.Write(ev.Audio); err != nil {
				return fmt.Errorf("writing audio: %w", err)
			}
		case engine.EventText:
			fmt.Fprintln(cmd.OutOrStdout(), ev.Text)
		case engine.EventWarning:
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", ev.Err)
		case engine.EventError:
			turnErr = ev.Err
		}
	}
	if turnErr != nil {
		return turnErr
	}
	return f.Close()
}
