package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mealog/internal/api"
	"mealog/internal/blobstore"
	"mealog/internal/media"
	"mealog/internal/models"
	"mealog/internal/store"
)

// MealRepository is the storage MealService needs: meal rows plus the upload
// ledger that says who may attach each stored image.
type MealRepository interface {
	store.MealStore
	store.UploadStore
}

// MealService applies ownership and visibility rules to meal operations.
// Edits and deletes go through the lifecycle coordinator so stored images
// are reclaimed once their meal no longer references them.
type MealService struct {
	store     MealRepository
	blobs     blobstore.BlobStore
	lifecycle *media.Coordinator
	paths     media.Paths
	now       func() time.Time
}

func NewMealService(repo MealRepository, blobs blobstore.BlobStore, lifecycle *media.Coordinator, paths media.Paths) *MealService {
	return &MealService{
		store:     repo,
		blobs:     blobs,
		lifecycle: lifecycle,
		paths:     paths,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MealSearch narrows a search over the caller's own meals.
type MealSearch struct {
	Keyword   string
	Category  string
	Location  string
	From      *time.Time
	To        *time.Time
	MinRating *float64
	MaxRating *float64
	Limit     int
	Offset    int
}

func (m *MealService) Create(ctx context.Context, owner *models.User, req api.MealRequest) (*models.Meal, error) {
	if owner == nil {
		return nil, unauthorized(fmt.Errorf("authentication required"))
	}
	meal, err := mealFromRequest(m.paths, req, "")
	if err != nil {
		return nil, err
	}
	if err := m.checkAttachable(ctx, owner, owner.ID, meal.Image, ""); err != nil {
		return nil, err
	}
	now := m.now()
	meal.UserID = owner.ID
	meal.CreatedAt = now
	meal.UpdatedAt = now
	if err := m.store.CreateMeal(ctx, meal); err != nil {
		return nil, mealStoreError(err)
	}
	return meal, nil
}

// Get returns the meal when viewer may see it. Meals hidden from viewer are
// reported as not found.
func (m *MealService) Get(ctx context.Context, viewer *models.User, id int64) (*models.Meal, error) {
	meal, err := m.store.GetMeal(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if meal == nil || !canView(viewer, meal) {
		return nil, notFoundCode(fmt.Errorf("meal not found"), ErrCodeMealNotFound)
	}
	return meal, nil
}

// ListOwn returns the caller's meals, newest meal_date first.
func (m *MealService) ListOwn(ctx context.Context, owner *models.User, limit, offset int) ([]models.Meal, error) {
	if owner == nil {
		return nil, unauthorized(fmt.Errorf("authentication required"))
	}
	meals, err := m.store.ListMeals(ctx, store.MealFilter{UserID: owner.ID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, storeFailure(err)
	}
	return meals, nil
}

func (m *MealService) Search(ctx context.Context, owner *models.User, search MealSearch) ([]models.Meal, error) {
	if owner == nil {
		return nil, unauthorized(fmt.Errorf("authentication required"))
	}
	if search.From != nil && search.To != nil && search.From.After(*search.To) {
		return nil, badRequestCode(fmt.Errorf("from must not be after to"), ErrCodeInvalidTimeFilter)
	}
	if err := validateRating(search.MinRating); err != nil {
		return nil, err
	}
	if err := validateRating(search.MaxRating); err != nil {
		return nil, err
	}
	meals, err := m.store.ListMeals(ctx, store.MealFilter{
		UserID:    owner.ID,
		Keyword:   search.Keyword,
		Category:  search.Category,
		Location:  search.Location,
		From:      search.From,
		To:        search.To,
		MinRating: search.MinRating,
		MaxRating: search.MaxRating,
		Limit:     search.Limit,
		Offset:    search.Offset,
	})
	if err != nil {
		return nil, storeFailure(err)
	}
	return meals, nil
}

// Explore returns the shared feed: public meals for guests, public and
// member meals for signed-in users.
func (m *MealService) Explore(ctx context.Context, viewer *models.User) ([]models.Meal, error) {
	meals, err := m.store.ListMeals(ctx, store.MealFilter{
		Visibilities: models.ExploreVisibilityStrings(viewer != nil),
		Limit:        models.ExploreLimit,
	})
	if err != nil {
		return nil, storeFailure(err)
	}
	return meals, nil
}

// Update replaces the meal's fields. Omitting the image keeps it; a replaced
// or removed image is deleted after the row is committed.
func (m *MealService) Update(ctx context.Context, actor *models.User, id int64, req api.MealRequest) (*models.Meal, error) {
	existing, err := m.mutable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	meal, err := mealFromRequest(m.paths, req, existing.Image)
	if err != nil {
		return nil, err
	}
	if err := m.checkAttachable(ctx, actor, existing.UserID, meal.Image, existing.Image); err != nil {
		return nil, err
	}
	meal.ID = existing.ID
	meal.UserID = existing.UserID
	meal.CreatedAt = existing.CreatedAt
	meal.UpdatedAt = m.now()
	if err := m.lifecycle.UpdateMeal(ctx, meal); err != nil {
		return nil, mealStoreError(err)
	}
	return meal, nil
}

// Delete removes the meal and its stored image.
func (m *MealService) Delete(ctx context.Context, actor *models.User, id int64) (*models.Meal, error) {
	if _, err := m.mutable(ctx, actor, id); err != nil {
		return nil, err
	}
	deleted, err := m.lifecycle.DeleteMeal(ctx, id)
	if err != nil {
		return nil, mealStoreError(err)
	}
	return deleted, nil
}

// mutable loads meal id and checks actor may change it.
func (m *MealService) mutable(ctx context.Context, actor *models.User, id int64) (*models.Meal, error) {
	if actor == nil {
		return nil, unauthorized(fmt.Errorf("authentication required"))
	}
	meal, err := m.store.GetMeal(ctx, id)
	if err != nil {
		return nil, storeFailure(err)
	}
	if meal == nil || !canView(actor, meal) {
		return nil, notFoundCode(fmt.Errorf("meal not found"), ErrCodeMealNotFound)
	}
	if meal.UserID != actor.ID && !actor.IsAdmin() {
		return nil, forbidden(fmt.Errorf("only the owner may change this meal"))
	}
	return meal, nil
}

// checkAttachable verifies ref names a stored image that the meal's owner or
// the acting user uploaded. Images without a recorded uploader came from the
// operator CLI and may only be attached by admins. The meal's current image is
// always accepted.
func (m *MealService) checkAttachable(ctx context.Context, actor *models.User, ownerID int64, ref, current string) error {
	if ref == "" || ref == current {
		return nil
	}
	invalid := func() error {
		return badRequestCode(fmt.Errorf("image must be a path returned by /api/upload"), ErrCodeInvalidImageRef)
	}
	uploaderID, found, err := m.store.UploadOwner(ctx, ref)
	if err != nil {
		return storeFailure(err)
	}
	if !found {
		return invalid()
	}
	switch {
	case uploaderID != 0 && (uploaderID == ownerID || uploaderID == actor.ID):
	case uploaderID == 0 && actor.IsAdmin():
	default:
		return invalid()
	}

	key, ok := m.paths.KeyForPath(ref)
	if !ok {
		return invalid()
	}
	rc, err := m.blobs.Open(ctx, key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return invalid()
	}
	if err != nil {
		return storageFailure(err)
	}
	_ = rc.Close()
	return nil
}

func canView(viewer *models.User, meal *models.Meal) bool {
	if viewer != nil && (viewer.ID == meal.UserID || viewer.IsAdmin()) {
		return true
	}
	switch models.Visibility(meal.Visibility) {
	case models.VisibilityAll:
		return true
	case models.VisibilityMember:
		return viewer != nil
	default:
		return false
	}
}

func mealStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return conflictCode(fmt.Errorf("image is already attached to another meal"), ErrCodeImageInUse)
	case errors.Is(err, store.ErrNotFound):
		return notFoundCode(fmt.Errorf("meal not found"), ErrCodeMealNotFound)
	default:
		return storeFailure(err)
	}
}
