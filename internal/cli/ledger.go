package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cimillas/linevault/internal/app"
	"github.com/cimillas/linevault/internal/bootstrap"
)

func (r *runner) holdsCmd() *cobra.Command {
	var owner, listing string

	cmd := &cobra.Command{
		Use:   "holds",
		Short: "List an owner's active holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag(cmd, "owner"); err != nil {
				return err
			}
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				held, err := svc.Stats.ActiveHolds(ctx, owner, listing)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(held) == 0 {
					fmt.Fprintf(out, "no active holds for %s\n", owner)
					return nil
				}
				for _, h := range held {
					fmt.Fprintf(out, "%-12s %4d  %s  %s\n",
						h.Hold.ListingID,
						h.Hold.Position,
						h.Hold.SafeLine,
						color.New(color.FgYellow).Sprintf("(%s left)", h.ExpiresIn.Round(time.Second)),
					)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	cmd.Flags().StringVar(&listing, "listing", "", "limit to one listing")
	return cmd
}

func (r *runner) cancelCmd() *cobra.Command {
	var owner, listing string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Release an owner's held lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag(cmd, "owner"); err != nil {
				return err
			}
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				n, err := svc.Ledger.CancelHolds(ctx, owner, listing)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s cancelled %d holds\n", ok(), n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	cmd.Flags().StringVar(&listing, "listing", "", "limit to one listing")
	return cmd
}

func (r *runner) extendCmd() *cobra.Command {
	var (
		owner, listing string
		minutes        int
	)

	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Push an owner's hold deadlines out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag(cmd, "owner", "listing", "minutes"); err != nil {
				return err
			}
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				res, err := svc.Ledger.ExtendHolds(ctx, owner, listing, minutes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s extended %d holds until %s\n", ok(), res.Extended, res.ExpiresAt.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	cmd.Flags().StringVar(&listing, "listing", "", "listing id")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "minutes from now")
	return cmd
}

func (r *runner) confirmCmd() *cobra.Command {
	var (
		owner, listing, confirmer, saleID string
		amount                            int64
	)

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Record a confirmed payment and sell the owner's held lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag(cmd, "owner", "listing", "amount", "confirmer"); err != nil {
				return err
			}
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				res, err := svc.Ledger.RecordSale(ctx, app.SaleInput{
					SaleID:      saleID,
					OwnerID:     owner,
					ListingID:   listing,
					AmountCents: amount,
					ConfirmerID: confirmer,
				})
				if err != nil {
					return err
				}
				state := "recorded"
				if !res.Created {
					state = color.New(color.FgYellow).Sprint("already recorded")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s sale %s %s: %d lines, %d cents\n",
					ok(), res.Sale.ID, state, res.Sale.LinesConfirmed, res.Sale.AmountCents)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	cmd.Flags().StringVar(&listing, "listing", "", "listing id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount paid in cents")
	cmd.Flags().StringVar(&confirmer, "confirmer", "", "who confirmed the payment")
	cmd.Flags().StringVar(&saleID, "sale-id", "", "idempotency key; generated when empty")
	return cmd
}

func (r *runner) releaseCmd() *cobra.Command {
	var owner, listing, output string

	cmd := &cobra.Command{
		Use:   "release",
		Short: "Write the purchased lines for an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag(cmd, "owner", "listing"); err != nil {
				return err
			}
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				pkg, err := svc.Fulfillment.BuildReleasePackage(ctx, owner, listing)
				if err != nil {
					return err
				}
				if output == "" {
					fmt.Fprintln(cmd.OutOrStdout(), pkg.Content)
					return nil
				}
				if err := os.WriteFile(output, []byte(pkg.Content+"\n"), 0o600); err != nil {
					return fmt.Errorf("write release: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %d lines to %s\n", ok(), pkg.Count, output)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id")
	cmd.Flags().StringVar(&listing, "listing", "", "listing id")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}
