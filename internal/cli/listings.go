package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cimillas/linevault/internal/bootstrap"
)

func (r *runner) listingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Manage listings",
	}

	var category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List listings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				listings, err := svc.Listings.ListListings(ctx, category)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, l := range listings {
					status := color.New(color.FgGreen).Sprint("available")
					if !l.Available {
						status = color.New(color.FgRed).Sprint("disabled")
					}
					fmt.Fprintf(out, "%-12s %-12s %-30s %s\n", l.ID, l.Category, l.Name, status)
				}
				return nil
			})
		},
	}
	list.Flags().StringVar(&category, "category", "", "filter by category")

	imp := &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Create or update listings from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				n, err := svc.Listings.ImportCatalog(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s imported %d listings\n", ok(), n)
				return nil
			})
		},
	}

	cmd.AddCommand(list, imp, r.availabilityCmd("enable", true), r.availabilityCmd("disable", false))
	return cmd
}

func (r *runner) availabilityCmd(use string, available bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <listing-id>",
		Short: use + " a listing for new reservations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.with(cmd, func(ctx context.Context, svc *bootstrap.Services) error {
				l, err := svc.Listings.SetAvailability(ctx, args[0], available)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s available=%t\n", ok(), l.ID, l.Available)
				return nil
			})
		},
	}
}
