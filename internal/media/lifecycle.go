package media

import (
	"context"
	"log/slog"

	"mealog/internal/blobstore"
	"mealog/internal/models"
)

// MealStore is the persistence the Coordinator mutates before reclaiming images.
// Each method commits its transaction before returning.
type MealStore interface {
	// UpdateMeal writes meal and returns the image ref it replaced.
	UpdateMeal(ctx context.Context, meal *models.Meal) (previousImage string, err error)
	// DeleteMeal removes one meal and returns the deleted row.
	DeleteMeal(ctx context.Context, id int64) (*models.Meal, error)
	// DeleteUserCascade removes a user and all of their meals and returns the
	// image refs those meals held.
	DeleteUserCascade(ctx context.Context, userID int64) ([]string, error)
}

// Coordinator keeps stored images a subset of those referenced by live meals.
// It deletes images only after the database change that orphaned them has committed,
// and never fails because of a blob store error.
type Coordinator struct {
	store   MealStore
	blobs   blobstore.BlobStore
	paths   Paths
	logger  *slog.Logger
	metrics *Metrics
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(store MealStore, blobs blobstore.BlobStore, paths Paths) *Coordinator {
	return &Coordinator{
		store:  store,
		blobs:  blobs,
		paths:  paths,
		logger: slog.Default().With("component", "lifecycle"),
	}
}

// SetLogger replaces the logger.
func (c *Coordinator) SetLogger(logger *slog.Logger) {
	if c != nil && logger != nil {
		c.logger = logger
	}
}

// SetMetrics attaches pipeline metrics.
func (c *Coordinator) SetMetrics(m *Metrics) {
	if c != nil {
		c.metrics = m
	}
}

// UpdateMeal persists meal, then reclaims the image it no longer references.
func (c *Coordinator) UpdateMeal(ctx context.Context, meal *models.Meal) error {
	previous, err := c.store.UpdateMeal(ctx, meal)
	if err != nil {
		return err
	}
	c.ImageReplaced(ctx, previous, meal.Image)
	return nil
}

// DeleteMeal deletes the meal row, then its image.
func (c *Coordinator) DeleteMeal(ctx context.Context, id int64) (*models.Meal, error) {
	meal, err := c.store.DeleteMeal(ctx, id)
	if err != nil {
		return nil, err
	}
	c.MealDeleted(ctx, meal.Image)
	return meal, nil
}

// DeleteUser deletes the user and their meals in one transaction, then every image
// those meals held. A failed image deletion does not stop the rest.
func (c *Coordinator) DeleteUser(ctx context.Context, userID int64) error {
	refs, err := c.store.DeleteUserCascade(ctx, userID)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		c.reclaim(ctx, ref)
	}
	c.logger.Info("user deleted", "user_id", userID, "images", len(refs))
	return nil
}

// ImageReplaced reclaims oldRef once a committed write swapped it for newRef.
func (c *Coordinator) ImageReplaced(ctx context.Context, oldRef, newRef string) {
	if oldRef == "" || oldRef == newRef {
		return
	}
	c.reclaim(ctx, oldRef)
}

// MealDeleted reclaims the image of a meal whose delete has committed.
func (c *Coordinator) MealDeleted(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	c.reclaim(ctx, ref)
}

func (c *Coordinator) reclaim(ctx context.Context, ref string) {
	key, ok := c.paths.KeyForPath(ref)
	if !ok {
		c.logger.Warn("image ref outside managed prefix, not deleted", "ref", ref)
		c.metrics.recordCleanup(cleanupResultSkipped)
		return
	}
	// The database change is already committed; finish the cleanup even if the caller went away.
	if err := c.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		c.logger.Warn("image cleanup failed", "ref", ref, "error", err)
		c.metrics.recordCleanup(cleanupResultFailed)
		return
	}
	c.logger.Debug("image deleted", "ref", ref)
	c.metrics.recordCleanup(cleanupResultDeleted)
}
