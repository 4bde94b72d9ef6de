package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerock/drawmatch/internal/training"
)

func captureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture <draw-id>",
		Short: "Capture training data from a funded draw",
		Long: `Capture converts every matched invoice on a funded draw into a permanent
training record and updates vendor associations. Safe to re-run: invoices
already captured are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			drawID := args[0]

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := training.NewCapturer(store).CaptureForDraw(ctx, drawID)
			if err != nil {
				return fmt.Errorf("failed to capture training data: %w", err)
			}

			fmt.Printf("Invoices processed:          %d\n", result.InvoicesProcessed)
			fmt.Printf("Training records created:    %d\n", result.TrainingRecordsCreated)
			fmt.Printf("Vendor associations updated: %d\n", result.VendorAssociationsUpdated)
			for _, e := range result.Errors {
				fmt.Printf("Error: %s\n", e)
			}

			return nil
		},
	}
}
