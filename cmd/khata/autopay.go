package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chitragupta/khata/internal/common"
	"github.com/chitragupta/khata/internal/model"
)

func autopayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autopay",
		Short: "Detect recurring auto-pay obligations",
		Long: `Scan the user's expense history for monthly recurring payments such as
EMIs, subscriptions, and standing instructions, and print the detected
patterns ordered by confidence.`,
		RunE: runAutopay,
	}

	cmd.Flags().IntP("limit", "n", 0, "Maximum pending transactions to include in the scan")
	_ = viper.BindPFlag("autopay.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

func runAutopay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID := viper.GetString("user")
	limit := viper.GetInt("autopay.limit")

	db, cfg, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			common.LogError(closeErr, "Failed to close database", common.Fields{"user_id": userID})
		}
	}()

	eng, err := buildEngine(db, cfg)
	if err != nil {
		return err
	}

	// Pending transactions extend the stored history so patterns that only
	// complete in the current statement are still found.
	pending, err := db.PendingTransactions(ctx, userID, limit)
	if err != nil {
		return fmt.Errorf("failed to load pending transactions: %w", err)
	}
	txns := make([]model.Transaction, len(pending))
	for i, p := range pending {
		txns[i] = p.Txn
	}

	detected, err := eng.DetectAutoPay(ctx, userID, txns)
	if err != nil {
		return common.NewUserError("auto-pay detection failed", err)
	}

	if len(detected) == 0 {
		cmd.Println("No recurring auto-pay patterns detected.")
		return nil
	}

	cmd.Printf("Detected %d auto-pay pattern(s):\n\n", len(detected))
	for _, p := range detected {
		category := p.CategoryName
		if category == "" {
			category = "(uncategorized)"
		}
		cmd.Printf("  %-40s %10.2f  %s  conf %.2f  last %s  (%d occurrences)\n",
			p.Title, p.Amount, category, p.Confidence,
			p.LastTransactionDate.Format("2006-01-02"), p.OccurrenceCount)
	}
	return nil
}
