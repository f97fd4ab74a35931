package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chitragupta/khata/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the category catalog",
	}

	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())

	return cmd
}

func categoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the user's categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			userID := viper.GetString("user")

			db, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					slog.Error("Failed to close database", "error", closeErr)
				}
			}()

			if err := db.SeedDefaultCategories(ctx, userID); err != nil {
				return fmt.Errorf("failed to seed categories: %w", err)
			}

			cats, err := db.ListCategories(ctx, userID, model.FinancialOther)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			for _, c := range cats {
				marker := " "
				if c.IsDefault {
					marker = "*"
				}
				cmd.Printf("%s %-30s %s\n", marker, c.Name, c.Type)
			}
			cmd.Printf("\n%d categories (* = default)\n", len(cats))
			return nil
		},
	}
}

func categoriesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID := viper.GetString("user")
			catType, _ := cmd.Flags().GetString("type")

			db, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					slog.Error("Failed to close database", "error", closeErr)
				}
			}()

			cat, err := db.CreateCategory(ctx, userID, args[0], model.CategoryType(catType))
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			cmd.Printf("Created category %q (%s)\n", cat.Name, cat.Type)
			return nil
		},
	}

	cmd.Flags().StringP("type", "t", "expense", "category type (income, expense, system)")
	return cmd
}
