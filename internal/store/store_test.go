package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mealog/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testUser(t *testing.T, st *Store, username string) *models.User {
	t.Helper()
	user, err := st.CreateUser(context.Background(), username, "hash", models.RoleUser, time.Now())
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func testMeal(t *testing.T, st *Store, userID int64, name, image string, date time.Time) *models.Meal {
	t.Helper()
	now := time.Now().UTC()
	meal := &models.Meal{
		UserID:     userID,
		Name:       name,
		MealDate:   date,
		Image:      image,
		Visibility: string(models.VisibilityPrivate),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.CreateMeal(context.Background(), meal); err != nil {
		t.Fatalf("create meal %s: %v", name, err)
	}
	return meal
}

func TestCreateAndGetMeal(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	user := testUser(t, st, "alice")

	rating := 4.5
	date := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	meal := &models.Meal{
		UserID:      user.ID,
		Name:        "Ramen",
		Category:    "lunch",
		MealDate:    date,
		Location:    "Ichiran",
		Rating:      &rating,
		RatingNotes: "rich broth",
		Image:       "/uploads/meals/1-abcdef.jpg",
		Visibility:  string(models.VisibilityMember),
		CreatedAt:   date,
		UpdatedAt:   date,
	}
	if err := st.CreateMeal(ctx, meal); err != nil {
		t.Fatalf("create: %v", err)
	}
	if meal.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	got, err := st.GetMeal(ctx, meal.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected meal, got nil")
	}
	if got.Name != "Ramen" || got.Location != "Ichiran" || got.Image != meal.Image {
		t.Fatalf("unexpected meal %+v", got)
	}
	if got.Rating == nil || *got.Rating != 4.5 {
		t.Fatalf("expected rating 4.5, got %v", got.Rating)
	}
	if !got.MealDate.Equal(date) {
		t.Fatalf("expected meal date %v, got %v", date, got.MealDate)
	}
	if got.Remarks != "" {
		t.Fatalf("expected empty remarks, got %q", got.Remarks)
	}
}

func TestGetMealMissingReturnsNil(t *testing.T) {
	st := testStore(t)
	got, err := st.GetMeal(context.Background(), 999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestCreateMealRejectsUnknownOwner(t *testing.T) {
	st := testStore(t)
	meal := &models.Meal{UserID: 42, Name: "Ghost", MealDate: time.Now(), Visibility: "private"}
	if err := st.CreateMeal(context.Background(), meal); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown owner, got %v", err)
	}
}

func TestImageRefOwnedByOneMeal(t *testing.T) {
	st := testStore(t)
	user := testUser(t, st, "alice")
	testMeal(t, st, user.ID, "first", "/uploads/meals/1-aaaaaa.jpg", time.Now())

	dup := &models.Meal{UserID: user.ID, Name: "second", MealDate: time.Now(), Image: "/uploads/meals/1-aaaaaa.jpg", Visibility: "private"}
	if err := st.CreateMeal(context.Background(), dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for shared image, got %v", err)
	}

	// Meals without images do not collide.
	testMeal(t, st, user.ID, "plain-1", "", time.Now())
	testMeal(t, st, user.ID, "plain-2", "", time.Now())
}

func TestUpdateMealReturnsPreviousImage(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	user := testUser(t, st, "alice")
	meal := testMeal(t, st, user.ID, "Pho", "/uploads/meals/1-aaaaaa.jpg", time.Now())

	meal.Name = "Pho bo"
	meal.Image = "/uploads/meals/2-bbbbbb.jpg"
	meal.UpdatedAt = time.Now()
	previous, err := st.UpdateMeal(ctx, meal)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if previous != "/uploads/meals/1-aaaaaa.jpg" {
		t.Fatalf("expected previous image, got %q", previous)
	}

	got, err := st.GetMeal(ctx, meal.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Pho bo" || got.Image != "/uploads/meals/2-bbbbbb.jpg" {
		t.Fatalf("update not applied: %+v", got)
	}

	meal.Image = ""
	previous, err = st.UpdateMeal(ctx, meal)
	if err != nil {
		t.Fatalf("clear image: %v", err)
	}
	if previous != "/uploads/meals/2-bbbbbb.jpg" {
		t.Fatalf("expected second image as previous, got %q", previous)
	}
}

func TestUpdateMealMissing(t *testing.T) {
	st := testStore(t)
	meal := &models.Meal{ID: 7, Name: "x", MealDate: time.Now(), Visibility: "private"}
	if _, err := st.UpdateMeal(context.Background(), meal); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMealConflictKeepsPriorRow(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	user := testUser(t, st, "alice")
	testMeal(t, st, user.ID, "a", "/uploads/meals/1-aaaaaa.jpg", time.Now())
	b := testMeal(t, st, user.ID, "b", "/uploads/meals/2-bbbbbb.jpg", time.Now())

	b.Image = "/uploads/meals/1-aaaaaa.jpg"
	if _, err := st.UpdateMeal(ctx, b); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got, err := st.GetMeal(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Image != "/uploads/meals/2-bbbbbb.jpg" {
		t.Fatalf("failed update changed image to %q", got.Image)
	}
}

func TestDeleteMealReturnsRow(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	user := testUser(t, st, "alice")
	meal := testMeal(t, st, user.ID, "Curry", "/uploads/meals/1-aaaaaa.jpg", time.Now())

	deleted, err := st.DeleteMeal(ctx, meal.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Image != meal.Image || deleted.Name != "Curry" {
		t.Fatalf("unexpected deleted row %+v", deleted)
	}
	if got, _ := st.GetMeal(ctx, meal.ID); got != nil {
		t.Fatal("meal still present after delete")
	}
	if _, err := st.DeleteMeal(ctx, meal.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
