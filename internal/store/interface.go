package store

import (
	"context"
	"time"

	"mealog/internal/models"
)

// MealStore abstracts meal storage.
type MealStore interface {
	CreateMeal(ctx context.Context, meal *models.Meal) error
	GetMeal(ctx context.Context, id int64) (*models.Meal, error)
	ListMeals(ctx context.Context, filter MealFilter) ([]models.Meal, error)
	UpdateMeal(ctx context.Context, meal *models.Meal) (string, error)
	DeleteMeal(ctx context.Context, id int64) (*models.Meal, error)
}

// UserStore abstracts user storage.
type UserStore interface {
	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, username, passwordHash string, role models.Role, now time.Time) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserPassword(ctx context.Context, id int64, passwordHash string) error
	SetUserEmail(ctx context.Context, id int64, email string) error
	DeleteUserCascade(ctx context.Context, userID int64) ([]string, error)
}

// UploadStore records who uploaded each stored image.
type UploadStore interface {
	RecordUpload(ctx context.Context, path string, uploaderID int64, at time.Time) error
	UploadOwner(ctx context.Context, path string) (uploaderID int64, found bool, err error)
}

var (
	_ MealStore   = (*Store)(nil)
	_ UserStore   = (*Store)(nil)
	_ UploadStore = (*Store)(nil)
)
