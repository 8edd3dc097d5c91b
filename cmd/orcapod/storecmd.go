package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/brian-arnold/orcapod/config"
	"github.com/brian-arnold/orcapod/hash"
	"github.com/brian-arnold/orcapod/store"
)

type StoreCmd struct{}

func NewStoreCmd() *StoreCmd {
	return &StoreCmd{}
}

func (c *StoreCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the configured store's contents",
	}
	cmd.AddCommand(newStoreLsCmd(), newStoreInspectCmd())
	return cmd
}

func newStoreLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List every fingerprint held by the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			backing, err := openStore(ctx, newLogger(false), cfg)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			lister, ok := backing.(store.Lister)
			if !ok {
				return fmt.Errorf("backend %q does not support listing", cfg.Backend)
			}
			fps, err := lister.ListFingerprints(ctx)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Fingerprint", "Rows"})
			for _, fp := range fps {
				tbl, err := backing.GetTable(ctx, fp)
				rows := "?"
				if err == nil {
					rows = fmt.Sprintf("%d", tbl.NumRows())
				}
				table.Append([]string{fp.String(), rows})
			}
			table.Render()
			return nil
		},
	}
}

func newStoreInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <fingerprint>",
		Short: "Print the schema and row count of a stored table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			backing, err := openStore(ctx, newLogger(false), cfg)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}

			fp, err := hash.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid fingerprint: %w", err)
			}
			tbl, err := backing.GetTable(ctx, fp)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Column", "Kind"})
			for _, col := range tbl.Schema().Columns {
				table.Append([]string{col.Name, col.Kind.String()})
			}
			table.Render()
			fmt.Println("rows:", tbl.NumRows())
			return nil
		},
	}
}
