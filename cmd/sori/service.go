package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/sori-ai/sori/pkg/app"
)

// program adapts app.Run to the service manager's start/stop callbacks.
type program struct {
	params app.Params
	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*program)(nil)

func (p *program) Start(service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- app.Run(ctx, p.params) }()
	return nil
}

func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	return <-p.done
}

func newService(g *globalFlags) (service.Service, error) {
	params := g.params(false)
	args := []string{"service", "run"}
	if params.ConfigPath == "" {
		resolved, err := app.ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		params.ConfigPath = resolved
	}
	abs, err := filepath.Abs(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	params.ConfigPath = abs
	args = append(args, "--config", abs)
	if params.DataDir != "" {
		args = append(args, "--data-dir", params.DataDir)
	}

	return service.New(&program{params: params}, &service.Config{
		Name:        "sori",
		DisplayName: "Sori",
		Description: "Conversational companion backend",
		Arguments:   args,
	})
}

func serviceCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage sori as an OS service",
	}
	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the sori service", action),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(g)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print the sori service status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(g)
				if err != nil {
					return err
				}
				st, err := svc.Status()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), statusText(st))
				return nil
			},
		},
		&cobra.Command{
			Use:    "run",
			Short:  "Run under the service manager",
			Hidden: true,
			Args:   cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				svc, err := newService(g)
				if err != nil {
					return err
				}
				return svc.Run()
			},
		},
	)
	return cmd
}

func statusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
