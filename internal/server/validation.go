package server

import (
	"fmt"
	"strings"
	"time"

	"mealog/internal/api"
	"mealog/internal/media"
	"mealog/internal/models"
)

const (
	maxMealNameLength = 200
	maxMealTextLength = 4000
)

func parseFlexibleTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return t.UTC(), nil
	}
	t, err = time.Parse(time.DateOnly, value)
	if err == nil {
		return t, nil
	}
	return time.Time{}, badRequestCode(fmt.Errorf("expected RFC3339 or YYYY-MM-DD format"), ErrCodeInvalidTimeFilter)
}

func normalizeVisibility(value string) (string, error) {
	visibility, err := models.ParseVisibility(value)
	if err != nil {
		return "", badRequestCode(err, ErrCodeInvalidVisibility)
	}
	return string(visibility), nil
}

func validateRating(value *float64) error {
	if value == nil {
		return nil
	}
	if !models.IsValidRating(*value) {
		return badRequestCode(fmt.Errorf("rating must be between %g and %g", models.RatingMin, models.RatingMax), ErrCodeInvalidRating)
	}
	return nil
}

// validateImageRef accepts an empty ref or a path shaped like the upload
// endpoint's output. Whether the file exists and who uploaded it is checked
// by MealService.
func validateImageRef(paths media.Paths, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}
	if _, ok := paths.KeyForPath(ref); !ok {
		return "", badRequestCode(fmt.Errorf("image must be a path returned by /api/upload"), ErrCodeInvalidImageRef)
	}
	return ref, nil
}

func validateText(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) > max {
		return "", badRequestCode(fmt.Errorf("%s must be at most %d characters", field, max), ErrCodeInvalidArgument)
	}
	return value, nil
}

// mealFromRequest validates req and returns the meal fields it describes.
// A request without an image keeps currentImage. Identity and ownership
// fields are left for the caller.
func mealFromRequest(paths media.Paths, req api.MealRequest, currentImage string) (*models.Meal, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, badRequestCode(fmt.Errorf("name is required"), ErrCodeMissingRequired)
	}
	name, err := validateText("name", name, maxMealNameLength)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.MealDate) == "" {
		return nil, badRequestCode(fmt.Errorf("meal_date is required"), ErrCodeMissingRequired)
	}
	mealDate, err := parseFlexibleTime(req.MealDate)
	if err != nil {
		return nil, err
	}
	if err := validateRating(req.Rating); err != nil {
		return nil, err
	}
	visibility, err := normalizeVisibility(req.Visibility)
	if err != nil {
		return nil, err
	}
	image := currentImage
	if req.Image != nil {
		image, err = validateImageRef(paths, *req.Image)
		if err != nil {
			return nil, err
		}
	}

	meal := &models.Meal{
		Name:       name,
		MealDate:   mealDate,
		Rating:     req.Rating,
		Image:      image,
		Visibility: visibility,
	}
	for _, field := range []struct {
		name  string
		value string
		dst   *string
	}{
		{"category", req.Category, &meal.Category},
		{"location", req.Location, &meal.Location},
		{"rating_notes", req.RatingNotes, &meal.RatingNotes},
		{"remarks", req.Remarks, &meal.Remarks},
	} {
		value, err := validateText(field.name, field.value, maxMealTextLength)
		if err != nil {
			return nil, err
		}
		*field.dst = value
	}
	return meal, nil
}
