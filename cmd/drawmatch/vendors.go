package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func vendorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vendors <vendor-name>",
		Short: "Show a vendor's learned category associations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			associations, err := store.GetVendorAssociations(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load vendor associations: %w", err)
			}

			if len(associations) == 0 {
				fmt.Println("No history for this vendor yet.")
				return nil
			}

			fmt.Printf("History for %s:\n", associations[0].VendorName)
			for _, assoc := range associations {
				fmt.Printf("  %-40s %4d matches  $%.2f total  last %s\n",
					assoc.BudgetCategory,
					assoc.MatchCount,
					assoc.TotalAmount,
					assoc.LastMatchedAt.Format("2006-01-02"))
			}

			return nil
		},
	}
}
