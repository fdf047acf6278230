// Package cli implements linevaultctl, the operator command line for the
// ledger.
package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cimillas/linevault/internal/bootstrap"
)

// Opener connects to the ledger. migrate forces schema migrations on open.
type Opener func(ctx context.Context, migrate bool) (*bootstrap.Services, error)

type runner struct {
	open Opener
}

// NewRootCmd builds the linevaultctl command tree.
func NewRootCmd(open Opener) *cobra.Command {
	r := &runner{open: open}

	root := &cobra.Command{
		Use:           "linevaultctl",
		Short:         "Operate the linevault line ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(r.migrateCmd())
	root.AddCommand(r.sweepCmd())
	root.AddCommand(r.statsCmd())
	root.AddCommand(r.holdsCmd())
	root.AddCommand(r.cancelCmd())
	root.AddCommand(r.extendCmd())
	root.AddCommand(r.confirmCmd())
	root.AddCommand(r.releaseCmd())
	root.AddCommand(r.listingsCmd())

	return root
}

// with opens the ledger for the duration of fn.
func (r *runner) with(cmd *cobra.Command, fn func(ctx context.Context, svc *bootstrap.Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := r.open(ctx, false)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(ctx, svc)
}

func (r *runner) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			svc, err := r.open(ctx, true)
			if err != nil {
				return err
			}
			defer svc.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s migrations applied to %s\n", ok(), svc.Stores.Backend)
			return nil
		},
	}
}

func (r *runner) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire every hold past its deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				n, err := svc.Reaper.SweepOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s expired %d holds\n", ok(), n)
				return nil
			})
		},
	}
}

func ok() string {
	return color.New(color.FgGreen).Sprint("OK")
}

func requireFlag(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		if !cmd.Flags().Changed(name) {
			return fmt.Errorf("--%s is required", name)
		}
	}
	return nil
}
