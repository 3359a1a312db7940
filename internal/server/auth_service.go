package server

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"mealog/internal/api"
	internalauth "mealog/internal/auth"
	"mealog/internal/media"
	"mealog/internal/models"
	"mealog/internal/store"
)

var errInvalidCredentials = errors.New("invalid credentials")

const maxEmailLength = 254

// AuthService handles sign-in and account administration backed by the store.
// Account deletion cascades to the user's meals and stored images.
type AuthService struct {
	store         store.UserStore
	lifecycle     *media.Coordinator
	now           func() time.Time
	allowRegister bool
}

func NewAuthService(userStore store.UserStore, lifecycle *media.Coordinator, allowRegister bool) *AuthService {
	return &AuthService{
		store:         userStore,
		lifecycle:     lifecycle,
		now:           func() time.Time { return time.Now().UTC() },
		allowRegister: allowRegister,
	}
}

// RegistrationOpen reports whether self-service sign-up is enabled.
func (a *AuthService) RegistrationOpen() bool {
	return a.allowRegister
}

// Login verifies credentials. Unknown users and wrong passwords both return
// errInvalidCredentials after one bcrypt comparison.
func (a *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	normalized, err := internalauth.NormalizeUsername(username)
	if err != nil {
		return nil, badRequest(err)
	}
	if strings.TrimSpace(password) == "" {
		return nil, badRequestCode(fmt.Errorf("password is required"), ErrCodeMissingRequired)
	}

	user, err := a.store.GetUserByUsername(ctx, normalized)
	if err != nil {
		return nil, storeFailure(err)
	}
	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if !internalauth.VerifyPassword(hash, password) {
		return nil, errInvalidCredentials
	}
	return user, nil
}

// Register creates a self-service account. The first account becomes admin.
func (a *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if !a.allowRegister {
		return nil, forbidden(fmt.Errorf("registration is closed"))
	}
	count, err := a.store.CountUsers(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	role := models.RoleUser
	if count == 0 {
		role = models.RoleAdmin
	}
	return a.createUser(ctx, username, password, role)
}

// CreateUser provisions an account on behalf of an admin.
func (a *AuthService) CreateUser(ctx context.Context, username, password, role string) (*models.User, error) {
	parsed := models.RoleUser
	if strings.TrimSpace(role) != "" {
		var err error
		parsed, err = models.ParseRole(role)
		if err != nil {
			return nil, badRequestCode(err, ErrCodeInvalidRole)
		}
	}
	return a.createUser(ctx, username, password, parsed)
}

func (a *AuthService) createUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	normalized, err := internalauth.NormalizeUsername(username)
	if err != nil {
		return nil, badRequest(err)
	}
	hash, err := internalauth.HashPassword(password)
	if err != nil {
		return nil, badRequest(err)
	}
	user, err := a.store.CreateUser(ctx, normalized, hash, role, a.now())
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, conflictCode(fmt.Errorf("username already exists"), ErrCodeUsernameTaken)
		}
		return nil, storeFailure(err)
	}
	return user, nil
}

// UserByID resolves a session's user id. Missing users yield nil.
func (a *AuthService) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return a.store.GetUserByID(ctx, id)
}

func (a *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, storeFailure(err)
	}
	return users, nil
}

func (a *AuthService) ResetPassword(ctx context.Context, id int64, password string) error {
	hash, err := internalauth.HashPassword(password)
	if err != nil {
		return badRequest(err)
	}
	if err := a.store.SetUserPassword(ctx, id, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundCode(fmt.Errorf("user not found"), ErrCodeUserNotFound)
		}
		return storeFailure(err)
	}
	return nil
}

// UpdateProfile changes the caller's email and password. Changing the
// password requires the current one.
func (a *AuthService) UpdateProfile(ctx context.Context, actor *models.User, req api.ProfileRequest) (*models.User, error) {
	if actor == nil {
		return nil, unauthorized(fmt.Errorf("authentication required"))
	}
	user, err := a.store.GetUserByID(ctx, actor.ID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if user == nil {
		return nil, notFoundCode(fmt.Errorf("user not found"), ErrCodeUserNotFound)
	}

	var email *string
	if req.Email != nil {
		normalized, err := normalizeEmail(*req.Email)
		if err != nil {
			return nil, err
		}
		if normalized != user.Email {
			email = &normalized
		}
	}
	hash := ""
	if req.NewPassword != "" {
		if req.CurrentPassword == "" {
			return nil, badRequestCode(fmt.Errorf("current_password is required to change the password"), ErrCodeMissingRequired)
		}
		if !internalauth.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
			return nil, forbidden(fmt.Errorf("current password is incorrect"))
		}
		hash, err = internalauth.HashPassword(req.NewPassword)
		if err != nil {
			return nil, badRequest(err)
		}
	}

	if email != nil {
		if err := a.store.SetUserEmail(ctx, user.ID, *email); err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				return nil, conflictCode(fmt.Errorf("email is already in use"), ErrCodeEmailTaken)
			case errors.Is(err, store.ErrNotFound):
				return nil, notFoundCode(fmt.Errorf("user not found"), ErrCodeUserNotFound)
			}
			return nil, storeFailure(err)
		}
		user.Email = *email
	}
	if hash != "" {
		if err := a.store.SetUserPassword(ctx, user.ID, hash); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, notFoundCode(fmt.Errorf("user not found"), ErrCodeUserNotFound)
			}
			return nil, storeFailure(err)
		}
		user.PasswordHash = hash
	}
	return user, nil
}

// normalizeEmail trims and lowercases a bare address. Empty clears the email.
func normalizeEmail(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", nil
	}
	if len(value) > maxEmailLength {
		return "", badRequestCode(fmt.Errorf("email must be at most %d characters", maxEmailLength), ErrCodeInvalidEmail)
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || addr.Name != "" {
		return "", badRequestCode(fmt.Errorf("email must be a plain address like name@example.com"), ErrCodeInvalidEmail)
	}
	return value, nil
}

// DeleteUser removes target with all of their meals and images. Admins cannot
// delete their own account.
func (a *AuthService) DeleteUser(ctx context.Context, actor *models.User, target int64) error {
	if actor != nil && actor.ID == target {
		return forbidden(fmt.Errorf("admins cannot delete their own account"))
	}
	if err := a.lifecycle.DeleteUser(ctx, target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundCode(fmt.Errorf("user not found"), ErrCodeUserNotFound)
		}
		return storeFailure(err)
	}
	return nil
}
