package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ledgerock/drawmatch/internal/training"
)

func backfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Capture training data from all previously funded draws",
		Long: `Backfill runs training capture over every funded draw in the database.
Use it once after enabling learning on an existing dataset. Capture is
idempotent, so re-running only picks up draws funded since the last run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			drawIDs, err := store.GetFundedDrawIDs(ctx)
			if err != nil {
				return fmt.Errorf("failed to list funded draws: %w", err)
			}
			if len(drawIDs) == 0 {
				fmt.Println("No funded draws to backfill.")
				return nil
			}

			capturer := training.NewCapturer(store)
			bar := progressbar.NewOptions(len(drawIDs),
				progressbar.OptionSetDescription("Capturing training data"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			var records, associations, failures int
			for _, drawID := range drawIDs {
				if err := ctx.Err(); err != nil {
					return err
				}

				result, err := capturer.CaptureForDraw(ctx, drawID)
				if err != nil {
					failures++
					fmt.Printf("\nDraw %s failed: %v\n", drawID, err)
				} else {
					records += result.TrainingRecordsCreated
					associations += result.VendorAssociationsUpdated
					failures += len(result.Errors)
				}
				_ = bar.Add(1)
			}

			fmt.Printf("Backfill complete: %d draws, %d new training records, %d association updates",
				len(drawIDs), records, associations)
			if failures > 0 {
				fmt.Printf(", %d failures", failures)
			}
			fmt.Println()

			return nil
		},
	}
}
