package main

import (
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chitragupta/khata/internal/common"
	"github.com/chitragupta/khata/internal/model"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Categorize pending transactions",
		Long: `Categorize stored transactions that do not yet have a category.

Each transaction runs through the classification pipeline: commodity and
family matches first, then recurring and auto-pay patterns, learned
store/UPI/person patterns, deterministic rules, and finally the AI batcher
for anything still uncategorized.

Examples:
  khata classify                # Classify all pending transactions
  khata classify --limit 200    # Classify at most 200 transactions
  khata classify --dry-run      # Preview without saving assignments`,
		RunE: runClassify,
	}

	cmd.Flags().IntP("limit", "n", 0, "Maximum transactions to classify (0 = all pending)")
	cmd.Flags().Bool("dry-run", false, "Preview without saving changes")

	_ = viper.BindPFlag("classification.limit", cmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("classification.dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	userID := viper.GetString("user")
	limit := viper.GetInt("classification.limit")
	dryRun := viper.GetBool("classification.dry_run")

	db, cfg, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			common.LogError(closeErr, "Failed to close database", common.Fields{"user_id": userID})
		}
	}()

	if err := db.SeedDefaultCategories(ctx, userID); err != nil {
		return common.NewUserError("failed to prepare categories", err)
	}

	pending, err := db.PendingTransactions(ctx, userID, limit)
	if err != nil {
		return fmt.Errorf("failed to load pending transactions: %w", err)
	}
	if len(pending) == 0 {
		cmd.Println("No pending transactions to classify.")
		return nil
	}

	slog.Info("Starting classification", "user_id", userID, "pending", len(pending))

	eng, err := buildEngine(db, cfg)
	if err != nil {
		return err
	}

	txns := make([]model.Transaction, len(pending))
	for i, p := range pending {
		txns[i] = p.Txn
	}

	results, err := eng.Classify(ctx, userID, txns)
	if err != nil {
		return common.NewUserError("classification failed", err)
	}

	bar := progressbar.NewOptions(len(results),
		progressbar.OptionSetDescription("Saving assignments"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var assigned, skipped int
	for i, res := range results {
		_ = bar.Add(1)

		if res.CategoryID == nil {
			skipped++
			slog.Debug("transaction left uncategorized",
				"description", txns[i].Description,
				"reasoning", res.Reasoning)
			continue
		}

		if dryRun {
			cmd.Printf("%s  %10.2f  ->  %s (%.2f, %s)\n",
				txns[i].Date.Format("2006-01-02"), txns[i].Amount,
				res.CategoryName, res.Confidence, res.Source)
			assigned++
			continue
		}

		if err := db.SetTransactionCategory(ctx, pending[i].ID, *res.CategoryID); err != nil {
			return fmt.Errorf("failed to save assignment: %w", err)
		}
		assigned++
	}

	common.LogInfo("Classification complete", common.Fields{
		"user_id":       userID,
		"assigned":      assigned,
		"uncategorized": skipped,
		"dry_run":       dryRun,
	})
	cmd.Printf("Classified %d of %d transactions (%d left uncategorized)\n",
		assigned, len(results), skipped)
	if dryRun {
		cmd.Println("Dry run: no assignments were saved.")
	}
	return nil
}
