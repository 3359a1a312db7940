package media

import (
	"strings"

	"mealog/internal/blobstore"
)

// DefaultPublicPrefix is the URL path under which meal images are served.
const DefaultPublicPrefix = "uploads/meals"

// Paths maps blob keys to the public image paths stored on meal records.
type Paths struct {
	prefix string
}

// NewPaths builds a mapper for prefix. An empty prefix uses DefaultPublicPrefix.
func NewPaths(prefix string) Paths {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPublicPrefix
	}
	return Paths{prefix: prefix}
}

// Prefix returns the normalized prefix without surrounding slashes.
func (p Paths) Prefix() string {
	if p.prefix == "" {
		return DefaultPublicPrefix
	}
	return p.prefix
}

// PathForKey returns the public path for key, e.g. /uploads/meals/<key>.
func (p Paths) PathForKey(key string) string {
	return "/" + p.Prefix() + "/" + key
}

// KeyForPath extracts the blob key from a stored image path.
// It returns false for refs outside the public prefix or with unsafe keys.
func (p Paths) KeyForPath(ref string) (string, bool) {
	base := "/" + p.Prefix() + "/"
	if !strings.HasPrefix(ref, base) {
		return "", false
	}
	key, err := blobstore.CleanKey(strings.TrimPrefix(ref, base))
	if err != nil {
		return "", false
	}
	return key, true
}
