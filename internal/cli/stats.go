package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cimillas/linevault/internal/bootstrap"
	"github.com/cimillas/linevault/internal/domain"
)

func (r *runner) statsCmd() *cobra.Command {
	var (
		owner, listing string
		top            int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show ledger counts globally or for one owner or listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				out := cmd.OutOrStdout()
				switch {
				case owner != "":
					c, err := svc.Stats.OwnerStats(ctx, owner)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "owner %s\n", owner)
					printCounts(out, c)
				case listing != "":
					s, err := svc.Stats.ListingStats(ctx, listing)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "listing %s (%d owners)\n", s.ListingID, s.DistinctOwners)
					printCounts(out, s.Counts)
				case cmd.Flags().Changed("top"):
					vols, err := svc.Stats.TopListings(ctx, top)
					if err != nil {
						return err
					}
					for i, v := range vols {
						fmt.Fprintf(out, "%2d. %-12s %-12s rows=%d sold=%d\n", i+1, v.ListingID, v.Category, v.Rows, v.Sold)
					}
				default:
					g, err := svc.Stats.GlobalStats(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "listings=%d owners=%d sales=%d revenue_cents=%d\n", g.Listings, g.DistinctOwners, g.Sales, g.RevenueCents)
					printCounts(out, g.Counts)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "counts for one owner")
	cmd.Flags().StringVar(&listing, "listing", "", "counts for one listing")
	cmd.Flags().IntVar(&top, "top", 10, "rank listings by ledger rows")
	return cmd
}

func printCounts(w io.Writer, c domain.StateCounts) {
	fmt.Fprintf(w, "  held=%d sold=%d expired=%d total=%d\n", c.Held, c.Sold, c.Expired, c.Total)
}
