package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mealog/internal/models"
)

const userColumns = "id, username, email, password_hash, role, created_at"

// CountUsers returns the number of provisioned users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateUser inserts one user. Duplicate usernames return ErrConflict.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, role models.Role, now time.Time) (*models.User, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, fmt.Errorf("password hash is required")
	}
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?)
	`, username, passwordHash, string(role), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %q already exists", ErrConflict, username)
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         string(role),
		CreatedAt:    now.UTC(),
	}, nil
}

// GetUserByID returns a user by id, or nil when missing.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	return scanUser(row)
}

// GetUserByUsername returns a user by normalized username, or nil when missing.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username = normalizeUsername(username)
	if username == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ? LIMIT 1", username)
	return scanUser(row)
}

// ListUsers returns all users sorted by username.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		if user == nil {
			continue
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// SetUserPassword replaces one user's password hash.
func (s *Store) SetUserPassword(ctx context.Context, id int64, passwordHash string) error {
	if strings.TrimSpace(passwordHash) == "" {
		return fmt.Errorf("password hash is required")
	}
	result, err := s.db.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return nil
}

// SetUserEmail replaces one user's email; an empty email clears it. An email
// held by another account returns ErrConflict.
func (s *Store) SetUserEmail(ctx context.Context, id int64, email string) error {
	result, err := s.db.ExecContext(ctx, "UPDATE users SET email = ? WHERE id = ?", nullIfEmpty(strings.TrimSpace(email)), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %q is already in use", ErrConflict, email)
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return nil
}

// DeleteUserCascade deletes a user and all of their meals in one transaction and
// returns the image refs to reclaim: those their meals held plus their uploads
// no meal references. Ledger rows of those images go in the same transaction.
func (s *Store) DeleteUserCascade(ctx context.Context, userID int64) (refs []string, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", userID).Scan(&exists)
	if err == sql.ErrNoRows {
		err = fmt.Errorf("%w: user %d", ErrNotFound, userID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	refs, err = collectStrings(ctx, tx, `
		SELECT image FROM meals WHERE user_id = ? AND image IS NOT NULL
		UNION
		SELECT path FROM uploads
		WHERE uploader_id = ? AND path NOT IN (SELECT image FROM meals WHERE image IS NOT NULL)
		ORDER BY 1
	`, userID, userID)
	if err != nil {
		return nil, err
	}

	for _, ref := range refs {
		if err = forgetUpload(ctx, tx, ref); err != nil {
			return nil, err
		}
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM meals WHERE user_id = ?", userID); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return refs, nil
}

func collectStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

func scanUser(scanner rowScanner) (*models.User, error) {
	var user models.User
	var email sql.NullString
	var createdAt string
	if err := scanner.Scan(&user.ID, &user.Username, &email, &user.PasswordHash, &user.Role, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	user.CreatedAt = parsed
	return &user, nil
}

func normalizeUsername(username string) string {
	return strings.TrimSpace(strings.ToLower(username))
}
