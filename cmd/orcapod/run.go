package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/brian-arnold/orcapod/config"
	"github.com/brian-arnold/orcapod/metrics"
	"github.com/brian-arnold/orcapod/pipeline"
	"github.com/brian-arnold/orcapod/pod"
)

type RunCmd struct{}

func NewRunCmd() *RunCmd {
	return &RunCmd{}
}

func (c *RunCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Run a pipeline definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
			if err != nil {
				return fmt.Errorf("failed to get verbose flag: %w", err)
			}
			runID := uuid.NewString()
			log := newLogger(verbose).With("run_id", runID)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			backing, err := openStore(ctx, log, cfg)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			def, err := pipeline.ParseDef(args[0])
			if err != nil {
				return err
			}

			reg := pod.NewRegistry()
			if err := registerBuiltinPods(reg); err != nil {
				return fmt.Errorf("failed to register built-in pods: %w", err)
			}

			m := metrics.New(nil)

			p, err := pipeline.Build(ctx, def, reg, backing, m, cfg.DataContext)
			if err != nil {
				return err
			}

			if err := p.Run(ctx); err != nil {
				_ = p.Exit()
				return err
			}
			if err := p.Exit(); err != nil {
				return err
			}

			log.Info("pipeline run complete", "name", def.Name, "fingerprint", p.Fingerprint().String())
			return nil
		},
	}
	return cmd
}
