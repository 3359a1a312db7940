package blobstore

import (
	"errors"
	"path"
	"strings"
)

var (
	// ErrInvalidKey reports a key that is empty, absolute, or escapes the store root.
	ErrInvalidKey = errors.New("invalid blob key")
	// ErrNotFound reports an Open of a key with no content.
	ErrNotFound = errors.New("blob not found")
)

// CleanKey normalizes a relative slash-separated key.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
