package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <invoice-id>",
		Short: "Match an extracted invoice to a draw budget line",
		Long: `Match runs the full pipeline for one invoice: candidate generation,
deterministic classification, and AI selection when the result is ambiguous.
The match (or review flag) is persisted before the command returns.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			invoiceID := args[0]

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			outcome, err := buildEngine(store).MatchInvoice(ctx, invoiceID)
			if err != nil {
				return fmt.Errorf("failed to match invoice: %w", err)
			}

			fmt.Printf("Classification: %s\n", outcome.Classification)
			if outcome.Applied {
				fmt.Printf("Matched to:     %s (%s)\n", outcome.Category, outcome.DrawLineID)
				fmt.Printf("Method:         %s\n", outcome.Method)
				fmt.Printf("Confidence:     %.2f\n", outcome.Confidence)
			}
			if outcome.Flagged {
				fmt.Printf("Flagged for review: %s\n", outcome.Reason)
			}

			return nil
		},
	}
}
