package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"mealog/internal/format"
	"mealog/internal/media"
	"mealog/internal/models"
)

// outputFormatter is set from --format; nil selects plain text.
var outputFormatter format.Formatter

func writeOutput(payload any, plain func() error) error {
	if outputFormatter != nil {
		return outputFormatter.Write(os.Stdout, payload)
	}
	return plain()
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeStoredImage(img media.StoredImage) error {
	return writeOutput(img, func() error {
		line := fmt.Sprintf("%s\t%dx%d\t%s\tq=%d", img.Path, img.Width, img.Height, humanize.IBytes(uint64(img.SizeBytes)), img.Quality)
		if img.OverBudget {
			line += "\tover budget"
		}
		return writePlain("%s\n", line)
	})
}

func writeUsers(users []models.User) error {
	return writeOutput(users, func() error {
		if len(users) == 0 {
			return writePlain("no users\n")
		}
		if err := writePlain("ID\tUSERNAME\tROLE\tCREATED\n"); err != nil {
			return err
		}
		for _, user := range users {
			if err := writePlain("%d\t%s\t%s\t%s\n", user.ID, user.Username, user.Role, humanize.Time(user.CreatedAt)); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeMeals(meals []models.Meal) error {
	return writeOutput(meals, func() error {
		if len(meals) == 0 {
			return writePlain("no meals\n")
		}
		for _, meal := range meals {
			image := meal.Image
			if image == "" {
				image = "-"
			}
			if err := writePlain("%d\t%s\t%s\t%s\t%s\n", meal.ID, formatDate(meal.MealDate), meal.Visibility, meal.Name, image); err != nil {
				return err
			}
		}
		return nil
	})
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
