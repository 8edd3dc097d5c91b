package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brian-arnold/orcapod/config"
	"github.com/brian-arnold/orcapod/pipeline"
	"github.com/brian-arnold/orcapod/pod"
	"github.com/brian-arnold/orcapod/store/memstore"
)

type FingerprintCmd struct{}

func NewFingerprintCmd() *FingerprintCmd {
	return &FingerprintCmd{}
}

func (c *FingerprintCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint <pipeline.yaml>",
		Short: "Print a pipeline definition's fingerprint without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			def, err := pipeline.ParseDef(args[0])
			if err != nil {
				return err
			}

			reg := pod.NewRegistry()
			if err := registerBuiltinPods(reg); err != nil {
				return fmt.Errorf("failed to register built-in pods: %w", err)
			}

			// Fingerprint construction only reads source streams to hash
			// them; no node is ever executed, so a scratch in-memory store
			// is enough regardless of the configured backend.
			scratch, err := memstore.New(memstore.Config{})
			if err != nil {
				return err
			}

			p, err := pipeline.Build(ctx, def, reg, scratch, nil, cfg.DataContext)
			if err != nil {
				return err
			}
			defer p.Exit()

			fmt.Println(p.Fingerprint().String())
			return nil
		},
	}
	return cmd
}
