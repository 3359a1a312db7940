package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mealog/internal/config"
	"mealog/internal/store"
)

func newMealCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meal",
		Short: "Inspect and remove meals in the local database",
	}
	cmd.AddCommand(newMealListCmd(cfg))
	cmd.AddCommand(newMealDeleteCmd(cfg))
	return cmd
}

func newMealListCmd(cfg *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <username>",
		Short: "List the meals of one account, newest first",
		Args:  requireExactlyArgs(1, "username is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := lookupUser(cmd, st, args[0])
			if err != nil {
				return err
			}
			meals, err := st.ListMeals(cmd.Context(), store.MealFilter{UserID: user.ID, Limit: limit})
			if err != nil {
				return err
			}
			return writeMeals(meals)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum meals to show (0 for all)")
	return cmd
}

func newMealDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete one meal and its image",
		Args:    requireExactlyArgs(1, "meal id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			rt, err := openRuntime(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			deleted, err := rt.lifecycle.DeleteMeal(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("meal %d not found", id)
			}
			if err != nil {
				return err
			}
			return writeOutput(deleted, func() error {
				return writePlain("deleted meal %d (%s)\n", deleted.ID, deleted.Name)
			})
		},
	}
}
