package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"

	"mealog/internal/blobstore"
)

// recordingBlobs is an in-memory BlobStore that records calls.
type recordingBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      []string
	deletes   []string
	putErr    error
	deleteErr map[string]error
}

var _ blobstore.BlobStore = (*recordingBlobs)(nil)

func newRecordingBlobs() *recordingBlobs {
	return &recordingBlobs{objects: map[string][]byte{}, deleteErr: map[string]error{}}
}

func (r *recordingBlobs) Put(_ context.Context, key string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts = append(r.puts, key)
	if r.putErr != nil {
		return r.putErr
	}
	r.objects[key] = append([]byte(nil), data...)
	return nil
}

func (r *recordingBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *recordingBlobs) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes = append(r.deletes, key)
	if err := r.deleteErr[key]; err != nil {
		return err
	}
	delete(r.objects, key)
	return nil
}

func (r *recordingBlobs) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.objects[key]
	return ok
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
