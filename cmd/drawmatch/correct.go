package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerock/drawmatch/internal/engine"
)

func correctCmd() *cobra.Command {
	var (
		reason string
		userID string
	)

	cmd := &cobra.Command{
		Use:   "correct <invoice-id> <new-line-id>",
		Short: "Manually override an invoice match",
		Long: `Correct re-points an invoice to a different draw line and records the
override as an append-only decision. Corrected invoices feed future training
with the manual method, since a human supplied the ground truth.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			decision, err := buildEngine(store).RecordCorrection(ctx, engine.CorrectionParams{
				InvoiceID: args[0],
				NewLineID: args[1],
				Reason:    reason,
				UserID:    userID,
			})
			if err != nil {
				return fmt.Errorf("failed to record correction: %w", err)
			}

			fmt.Printf("Correction recorded (%s)\n", decision.ID)
			if decision.PreviousLineID != "" {
				fmt.Printf("Previous line: %s\n", decision.PreviousLineID)
			}
			fmt.Printf("New line:      %s (%s)\n", decision.NewLineID, decision.NewCategory)

			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the original match was wrong")
	cmd.Flags().StringVar(&userID, "user", "", "who is making the correction")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
