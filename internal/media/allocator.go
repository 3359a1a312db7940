package media

import (
	"crypto/rand"
	"io"
	mathrand "math/rand/v2"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	base36Alphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	tokenLength      = 6
	defaultExtension = "jpg"

	// Largest multiple of 36 that fits in a byte; higher values are redrawn to keep tokens uniform.
	base36Cutoff = 252
	maxRedraws   = 8
)

// FilenameAllocator derives storage keys of the form <epoch-millis>-<token>.<ext>.
type FilenameAllocator struct {
	now     func() time.Time
	entropy io.Reader

	mu         sync.Mutex
	lastMillis int64
	issued     map[string]struct{}
}

// NewFilenameAllocator returns an allocator using the wall clock and crypto/rand.
func NewFilenameAllocator() *FilenameAllocator {
	return NewFilenameAllocatorWith(time.Now, rand.Reader)
}

// NewFilenameAllocatorWith returns an allocator with an injected clock and entropy source.
func NewFilenameAllocatorWith(now func() time.Time, entropy io.Reader) *FilenameAllocator {
	if now == nil {
		now = time.Now
	}
	if entropy == nil {
		entropy = rand.Reader
	}
	return &FilenameAllocator{now: now, entropy: entropy}
}

// Allocate returns a new key carrying the lower-cased extension of originalName,
// or jpg when it has none. Keys issued within the same millisecond never repeat.
func (a *FilenameAllocator) Allocate(originalName string) string {
	ext := normalizeExtension(originalName)

	a.mu.Lock()
	defer a.mu.Unlock()

	millis := a.now().UnixMilli()
	if millis != a.lastMillis || a.issued == nil {
		a.lastMillis = millis
		a.issued = map[string]struct{}{}
	}
	src := a.entropy
	token := randomToken(src)
	for attempt := 1; ; attempt++ {
		if _, dup := a.issued[token]; !dup {
			break
		}
		if attempt >= maxRedraws {
			src = fallbackEntropy{}
		}
		token = randomToken(src)
	}
	a.issued[token] = struct{}{}

	return strconv.FormatInt(millis, 10) + "-" + token + "." + ext
}

func randomToken(entropy io.Reader) string {
	out := make([]byte, 0, tokenLength)
	buf := make([]byte, tokenLength*2)
	for len(out) < tokenLength {
		if _, err := io.ReadFull(entropy, buf); err != nil {
			_, _ = fallbackEntropy{}.Read(buf)
		}
		for _, b := range buf {
			if b >= base36Cutoff {
				continue
			}
			out = append(out, base36Alphabet[int(b)%len(base36Alphabet)])
			if len(out) == tokenLength {
				break
			}
		}
	}
	return string(out)
}

// fallbackEntropy is used when the configured source fails or keeps repeating.
type fallbackEntropy struct{}

func (fallbackEntropy) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(mathrand.UintN(256))
	}
	return len(p), nil
}

func normalizeExtension(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(strings.TrimSpace(name))), ".")
	if ext == "" {
		return defaultExtension
	}
	return ext
}
