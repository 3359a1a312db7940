package media

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mealog/internal/blobstore"
	"mealog/internal/imaging"
)

func testIngestService(t *testing.T, blobs blobstore.BlobStore) *IngestService {
	t.Helper()
	tr, err := imaging.NewTranscoder(imaging.DefaultOptions(), discardLogger())
	if err != nil {
		t.Fatalf("new transcoder: %v", err)
	}
	svc := NewIngestService(tr, blobs, NewPaths(""), imaging.DefaultMaxSizeBytes)
	svc.SetLogger(discardLogger())
	return svc
}

// countingTranscoder fails the test if validation lets a bad upload through.
type countingTranscoder struct {
	calls int
}

func (c *countingTranscoder) Transcode([]byte) (imaging.Result, error) {
	c.calls++
	return imaging.Result{}, errors.New("unexpected transcode")
}

func TestIngestStoresJPEGUnderPublicPrefix(t *testing.T) {
	root := t.TempDir()
	blobs, err := blobstore.NewLocalFS(root)
	if err != nil {
		t.Fatalf("new local fs: %v", err)
	}
	svc := testIngestService(t, blobs)

	stored, err := svc.Ingest(context.Background(), Upload{
		Filename:    "Lunch.PNG",
		Data:        pngBytes(t, 320, 200),
		ContentType: "image/png",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !strings.HasPrefix(stored.Path, "/uploads/meals/") {
		t.Fatalf("unexpected path %q", stored.Path)
	}
	if !strings.HasSuffix(stored.Key, ".jpg") {
		t.Fatalf("expected jpg key for png input, got %q", stored.Key)
	}
	if stored.Path != "/uploads/meals/"+stored.Key {
		t.Fatalf("path %q does not match key %q", stored.Path, stored.Key)
	}
	if stored.Width != 320 || stored.Height != 200 || stored.OverBudget {
		t.Fatalf("unexpected stored image %+v", stored)
	}

	data, err := os.ReadFile(filepath.Join(root, stored.Key))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if len(data) != stored.SizeBytes {
		t.Fatalf("size mismatch: file %d, reported %d", len(data), stored.SizeBytes)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(data)); err != nil {
		t.Fatalf("stored file is not a jpeg: %v", err)
	}
}

func TestIngestAcceptsExtensionsCaseInsensitively(t *testing.T) {
	svc := testIngestService(t, newRecordingBlobs())
	for _, name := range []string{"a.jpg", "b.JPEG", "c.Png"} {
		if _, err := svc.Ingest(context.Background(), Upload{Filename: name, Data: pngBytes(t, 8, 8)}); err != nil {
			t.Fatalf("ingest %s: %v", name, err)
		}
	}
}

func TestIngestRejections(t *testing.T) {
	tests := []struct {
		name    string
		upload  Upload
		wantErr error
	}{
		{name: "gif", upload: Upload{Filename: "party.gif", Data: []byte("GIF89a")}, wantErr: ErrUnsupportedType},
		{name: "no extension", upload: Upload{Filename: "photo", Data: []byte("x")}, wantErr: ErrUnsupportedType},
		{name: "eleven MiB", upload: Upload{Filename: "huge.jpg", Data: make([]byte, 11<<20)}, wantErr: ErrPayloadTooLarge},
		{name: "declared too large", upload: Upload{Filename: "huge.jpg", Data: []byte("x"), DeclaredSize: 11 << 20}, wantErr: ErrPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := newRecordingBlobs()
			tr := &countingTranscoder{}
			svc := NewIngestService(tr, blobs, NewPaths(""), imaging.DefaultMaxSizeBytes)
			svc.SetLogger(discardLogger())

			stored, err := svc.Ingest(context.Background(), tt.upload)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if stored.Path != "" {
				t.Fatalf("expected no path on failure, got %q", stored.Path)
			}
			if tr.calls != 0 {
				t.Fatal("transcoder ran before validation passed")
			}
			if len(blobs.puts) != 0 {
				t.Fatalf("expected no writes, got %v", blobs.puts)
			}
		})
	}
}

func TestIngestTextRenamedToJPEGIsInvalidImage(t *testing.T) {
	blobs := newRecordingBlobs()
	svc := testIngestService(t, blobs)

	_, err := svc.Ingest(context.Background(), Upload{
		Filename: "notes.jpg",
		Data:     []byte("shopping list: rice, eggs, scallions\n"),
	})
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if len(blobs.puts) != 0 {
		t.Fatalf("expected no writes, got %v", blobs.puts)
	}
}

func TestIngestStorageFailure(t *testing.T) {
	blobs := newRecordingBlobs()
	blobs.putErr = errors.New("disk full")
	svc := testIngestService(t, blobs)

	stored, err := svc.Ingest(context.Background(), Upload{Filename: "a.png", Data: pngBytes(t, 16, 16)})
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
	if stored.Path != "" {
		t.Fatalf("expected no path on storage failure, got %q", stored.Path)
	}
}

func TestIngestCanceledContextWritesNothing(t *testing.T) {
	blobs := newRecordingBlobs()
	svc := testIngestService(t, blobs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Ingest(ctx, Upload{Filename: "a.png", Data: pngBytes(t, 16, 16)}); !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
	if len(blobs.puts) != 0 {
		t.Fatalf("expected no writes, got %v", blobs.puts)
	}
}

func TestIngestConfigureLimits(t *testing.T) {
	svc := testIngestService(t, newRecordingBlobs())
	svc.ConfigureLimits(1024)
	if _, err := svc.Ingest(context.Background(), Upload{Filename: "a.jpg", Data: make([]byte, 2048)}); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge under custom limit, got %v", err)
	}
	svc.ConfigureLimits(0)
	if svc.MaxUploadBytes() != DefaultMaxUploadBytes {
		t.Fatalf("expected default limit restored, got %d", svc.MaxUploadBytes())
	}
}

func TestIngestRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := MustNewMetrics(reg)
	svc := testIngestService(t, newRecordingBlobs())
	svc.SetMetrics(metrics)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, Upload{Filename: "a.png", Data: pngBytes(t, 16, 16)}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	_, _ = svc.Ingest(ctx, Upload{Filename: "a.gif", Data: []byte("x")})
	_, _ = svc.Ingest(ctx, Upload{Filename: "a.jpg", Data: []byte("not an image")})

	if got := testutil.ToFloat64(metrics.ingestTotal.WithLabelValues(ingestResultStored)); got != 1 {
		t.Fatalf("expected 1 stored, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ingestTotal.WithLabelValues(ingestResultUnsupportedType)); got != 1 {
		t.Fatalf("expected 1 unsupported, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ingestTotal.WithLabelValues(ingestResultInvalidImage)); got != 1 {
		t.Fatalf("expected 1 invalid, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.storedBytes); got <= 0 {
		t.Fatalf("expected stored bytes to be counted, got %v", got)
	}

	// Registering twice reuses the existing collectors.
	again := MustNewMetrics(reg)
	if testutil.ToFloat64(again.ingestTotal.WithLabelValues(ingestResultStored)) != 1 {
		t.Fatal("expected shared collectors on re-registration")
	}
}

type uploadRecord struct {
	path       string
	uploaderID int64
}

type fakeRecorder struct {
	records []uploadRecord
	err     error
}

func (f *fakeRecorder) RecordUpload(_ context.Context, path string, uploaderID int64, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, uploadRecord{path: path, uploaderID: uploaderID})
	return nil
}

func TestIngestRecordsUploader(t *testing.T) {
	rec := &fakeRecorder{}
	svc := testIngestService(t, newRecordingBlobs())
	svc.SetRecorder(rec)

	stored, err := svc.Ingest(context.Background(), Upload{Filename: "a.png", Data: pngBytes(t, 16, 16), UploaderID: 7})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(rec.records) != 1 || rec.records[0] != (uploadRecord{path: stored.Path, uploaderID: 7}) {
		t.Fatalf("unexpected records %+v for %q", rec.records, stored.Path)
	}
}

func TestIngestRecorderFailureDropsImage(t *testing.T) {
	blobs := newRecordingBlobs()
	svc := testIngestService(t, blobs)
	svc.SetRecorder(&fakeRecorder{err: errors.New("database is locked")})

	stored, err := svc.Ingest(context.Background(), Upload{Filename: "a.png", Data: pngBytes(t, 16, 16), UploaderID: 7})
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
	if stored.Path != "" {
		t.Fatalf("expected no path, got %q", stored.Path)
	}
	if len(blobs.puts) != 1 || len(blobs.deletes) != 1 || blobs.puts[0] != blobs.deletes[0] {
		t.Fatalf("expected the written image to be deleted, puts %v deletes %v", blobs.puts, blobs.deletes)
	}
	if blobs.has(blobs.puts[0]) {
		t.Fatal("unrecorded image left in storage")
	}
}

func TestCheckExtension(t *testing.T) {
	for _, name := range []string{"a.jpg", "B.JPEG", "c.png", "d.webp"} {
		if err := CheckExtension(name); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	for _, name := range []string{"a.gif", "photo", "x.jpg.exe"} {
		if err := CheckExtension(name); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("%s: expected ErrUnsupportedType, got %v", name, err)
		}
	}
}

func TestCheckNameCountsRejection(t *testing.T) {
	metrics := MustNewMetrics(prometheus.NewRegistry())
	svc := testIngestService(t, newRecordingBlobs())
	svc.SetMetrics(metrics)

	if err := svc.CheckName("lunch.png"); err != nil {
		t.Fatalf("check png: %v", err)
	}
	if err := svc.CheckName("party.gif"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if got := testutil.ToFloat64(metrics.ingestTotal.WithLabelValues(ingestResultUnsupportedType)); got != 1 {
		t.Fatalf("expected 1 unsupported, got %v", got)
	}
}
