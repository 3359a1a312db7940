package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mealog/internal/models"
)

const mealColumns = "id, user_id, name, category, meal_date, location, rating, rating_notes, remarks, image, visibility, created_at, updated_at"

const qualifiedMealColumns = "m.id, m.user_id, m.name, m.category, m.meal_date, m.location, m.rating, m.rating_notes, m.remarks, m.image, m.visibility, m.created_at, m.updated_at"

// CreateMeal inserts meal and sets its ID.
func (s *Store) CreateMeal(ctx context.Context, meal *models.Meal) error {
	if meal == nil {
		return fmt.Errorf("meal is required")
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO meals (
			user_id, name, category, meal_date, location, rating, rating_notes, remarks, image, visibility, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		meal.UserID,
		meal.Name,
		nullIfEmpty(meal.Category),
		formatTime(meal.MealDate),
		nullIfEmpty(meal.Location),
		nullFloat(meal.Rating),
		nullIfEmpty(meal.RatingNotes),
		nullIfEmpty(meal.Remarks),
		nullIfEmpty(meal.Image),
		meal.Visibility,
		formatTime(meal.CreatedAt),
		formatTime(meal.UpdatedAt),
	)
	if err != nil {
		return mealWriteError(err, meal.Image)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	meal.ID = id
	return nil
}

// GetMeal returns a meal by id, or nil when missing.
func (s *Store) GetMeal(ctx context.Context, id int64) (*models.Meal, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+mealColumns+" FROM meals WHERE id = ?", id)
	return scanMeal(row)
}

// ListMeals returns meals matching filter, newest meal_date first.
func (s *Store) ListMeals(ctx context.Context, filter MealFilter) ([]models.Meal, error) {
	query, args := buildMealQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meals := make([]models.Meal, 0)
	for rows.Next() {
		meal, err := scanMealWithOwner(rows)
		if err != nil {
			return nil, err
		}
		meals = append(meals, *meal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return meals, nil
}

// UpdateMeal replaces the mutable fields of meal and returns the image ref it held
// before, read in the same transaction as the write. A replaced image leaves the
// upload ledger in that transaction.
func (s *Store) UpdateMeal(ctx context.Context, meal *models.Meal) (previous string, err error) {
	if meal == nil {
		return "", fmt.Errorf("meal is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var prior sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT image FROM meals WHERE id = ?", meal.ID).Scan(&prior)
	if err == sql.ErrNoRows {
		err = fmt.Errorf("%w: meal %d", ErrNotFound, meal.ID)
		return "", err
	}
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE meals SET
			name = ?, category = ?, meal_date = ?, location = ?, rating = ?,
			rating_notes = ?, remarks = ?, image = ?, visibility = ?, updated_at = ?
		WHERE id = ?
	`,
		meal.Name,
		nullIfEmpty(meal.Category),
		formatTime(meal.MealDate),
		nullIfEmpty(meal.Location),
		nullFloat(meal.Rating),
		nullIfEmpty(meal.RatingNotes),
		nullIfEmpty(meal.Remarks),
		nullIfEmpty(meal.Image),
		meal.Visibility,
		formatTime(meal.UpdatedAt),
		meal.ID,
	)
	if err != nil {
		err = mealWriteError(err, meal.Image)
		return "", err
	}
	if prior.String != meal.Image {
		if err = forgetUpload(ctx, tx, prior.String); err != nil {
			return "", err
		}
	}
	if err = tx.Commit(); err != nil {
		return "", err
	}
	return prior.String, nil
}

// DeleteMeal deletes one meal and returns the row as it was before deletion.
func (s *Store) DeleteMeal(ctx context.Context, id int64) (deleted *models.Meal, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	deleted, err = scanMeal(tx.QueryRowContext(ctx, "SELECT "+mealColumns+" FROM meals WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	if deleted == nil {
		err = fmt.Errorf("%w: meal %d", ErrNotFound, id)
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM meals WHERE id = ?", id); err != nil {
		return nil, err
	}
	if err = forgetUpload(ctx, tx, deleted.Image); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return deleted, nil
}

func mealWriteError(err error, image string) error {
	if isUniqueViolation(err) && (strings.Contains(err.Error(), "meals.image") || strings.Contains(err.Error(), "idx_meals_image")) {
		return fmt.Errorf("%w: image %q is already used by another meal", ErrConflict, image)
	}
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: meal owner does not exist", ErrNotFound)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeal(scanner rowScanner) (*models.Meal, error) {
	return scanMealInto(scanner, false)
}

func scanMealWithOwner(scanner rowScanner) (*models.Meal, error) {
	return scanMealInto(scanner, true)
}

func scanMealInto(scanner rowScanner, withOwner bool) (*models.Meal, error) {
	var meal models.Meal
	var category, location, ratingNotes, remarks, image sql.NullString
	var rating sql.NullFloat64
	var mealDate, createdAt, updatedAt string

	dest := []any{
		&meal.ID,
		&meal.UserID,
		&meal.Name,
		&category,
		&mealDate,
		&location,
		&rating,
		&ratingNotes,
		&remarks,
		&image,
		&meal.Visibility,
		&createdAt,
		&updatedAt,
	}
	if withOwner {
		dest = append(dest, &meal.Username)
	}
	if err := scanner.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	meal.Category = category.String
	meal.Location = location.String
	meal.RatingNotes = ratingNotes.String
	meal.Remarks = remarks.String
	meal.Image = image.String
	if rating.Valid {
		value := rating.Float64
		meal.Rating = &value
	}

	var err error
	if meal.MealDate, err = parseTime(mealDate); err != nil {
		return nil, err
	}
	if meal.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if meal.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &meal, nil
}
