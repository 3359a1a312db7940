package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 72 // bcrypt ignores input past 72 bytes
	maxUsernameLength = 32

	passwordCost = 10
)

var (
	// ErrInvalidUsername wraps every username rejection.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword wraps every password policy rejection.
	ErrInvalidPassword = errors.New("invalid password")
)

// Usernames are lowercase and may use . _ - between alphanumerics.
var usernamePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9._-]*[a-z0-9])?$`)

// dummyHash stands in for a missing hash so unknown users still cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("mealog-dummy-password"), passwordCost)

// NormalizeUsername lowercases and trims raw, then checks length and alphabet.
func NormalizeUsername(raw string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case username == "":
		return "", fmt.Errorf("%w: username is required", ErrInvalidUsername)
	case len(username) > maxUsernameLength:
		return "", fmt.Errorf("%w: at most %d characters", ErrInvalidUsername, maxUsernameLength)
	case !usernamePattern.MatchString(username):
		return "", fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	return username, nil
}

// ValidatePassword enforces the length window bcrypt can hash faithfully.
func ValidatePassword(password string) error {
	switch n := len(password); {
	case n < minPasswordLength:
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidPassword, minPasswordLength)
	case n > maxPasswordLength:
		return fmt.Errorf("%w: must be at most %d bytes", ErrInvalidPassword, maxPasswordLength)
	}
	return nil
}

// HashPassword validates password and returns its bcrypt hash.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether candidate matches passwordHash. A blank hash
// never matches but still pays for one comparison.
func VerifyPassword(passwordHash, candidate string) bool {
	hash := []byte(strings.TrimSpace(passwordHash))
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(candidate))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(candidate)) == nil
}
