package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RecordUpload remembers who uploaded the image at path. A zero uploaderID
// marks an image ingested by an operator rather than a signed-in user.
func (s *Store) RecordUpload(ctx context.Context, path string, uploaderID int64, at time.Time) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("upload path is required")
	}
	var uploader any
	if uploaderID > 0 {
		uploader = uploaderID
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO uploads (path, uploader_id, created_at) VALUES (?, ?, ?)",
		path, uploader, formatTime(at))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: upload %q already recorded", ErrConflict, path)
		}
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%w: uploader %d", ErrNotFound, uploaderID)
		}
		return err
	}
	return nil
}

// UploadOwner returns the uploader recorded for path. found is false when the
// path was never uploaded or its image has since been reclaimed.
func (s *Store) UploadOwner(ctx context.Context, path string) (uploaderID int64, found bool, err error) {
	var uploader sql.NullInt64
	err = s.db.QueryRowContext(ctx, "SELECT uploader_id FROM uploads WHERE path = ?", path).Scan(&uploader)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uploader.Int64, true, nil
}

// forgetUpload drops the ledger row of a reclaimed image inside tx.
func forgetUpload(ctx context.Context, tx *sql.Tx, path string) error {
	if path == "" {
		return nil
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM uploads WHERE path = ?", path)
	return err
}
