// Package media turns uploaded photos into stored meal images and reclaims
// stored images once no meal references them.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"mealog/internal/blobstore"
	"mealog/internal/imaging"
)

// DefaultMaxUploadBytes is the raw upload ceiling checked before transcoding.
const DefaultMaxUploadBytes int64 = 10 << 20

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// CheckExtension rejects filenames whose extension is not an accepted image
// type. It needs only the name, so callers can run it before reading the body.
func CheckExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, filename)
	}
	return nil
}

// Upload is one incoming image file.
type Upload struct {
	Filename string
	Data     []byte
	// ContentType is informational; validation uses the filename extension.
	ContentType string
	// DeclaredSize is the client-reported length, or 0 when unknown.
	DeclaredSize int64
	// UploaderID is the signed-in user sending the file, or 0 for operator ingests.
	UploaderID int64
}

// StoredImage describes an image written to the blob store.
type StoredImage struct {
	Path       string `json:"path"`
	Key        string `json:"key"`
	SizeBytes  int    `json:"size_bytes"`
	Quality    int    `json:"quality"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	OverBudget bool   `json:"over_budget,omitempty"`
}

// UploadRecorder remembers who uploaded each stored path, so a meal can only
// attach images its owner uploaded.
type UploadRecorder interface {
	RecordUpload(ctx context.Context, path string, uploaderID int64, at time.Time) error
}

// Transcoder normalizes raw image bytes.
type Transcoder interface {
	Transcode(data []byte) (imaging.Result, error)
}

// IngestService validates uploads, transcodes them and stores the result.
type IngestService struct {
	transcoder Transcoder
	allocator  *FilenameAllocator
	blobs      blobstore.BlobStore
	paths      Paths
	recorder   UploadRecorder

	maxUploadBytes int64
	maxSizeBytes   int
	logger         *slog.Logger
	metrics        *Metrics
}

// NewIngestService constructs an IngestService with default limits.
// maxSizeBytes is the transcoder budget, used only to flag over-budget output.
func NewIngestService(transcoder Transcoder, blobs blobstore.BlobStore, paths Paths, maxSizeBytes int) *IngestService {
	return &IngestService{
		transcoder:     transcoder,
		allocator:      NewFilenameAllocator(),
		blobs:          blobs,
		paths:          paths,
		maxUploadBytes: DefaultMaxUploadBytes,
		maxSizeBytes:   maxSizeBytes,
		logger:         slog.Default().With("component", "ingest"),
	}
}

// ConfigureLimits overrides the raw upload ceiling. Non-positive values keep the default.
func (s *IngestService) ConfigureLimits(maxUploadBytes int64) {
	if s == nil {
		return
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	s.maxUploadBytes = maxUploadBytes
}

// SetAllocator replaces the filename allocator.
func (s *IngestService) SetAllocator(a *FilenameAllocator) {
	if s != nil && a != nil {
		s.allocator = a
	}
}

// SetRecorder attaches the upload ledger written after each stored image.
func (s *IngestService) SetRecorder(r UploadRecorder) {
	if s != nil {
		s.recorder = r
	}
}

// SetLogger replaces the logger.
func (s *IngestService) SetLogger(logger *slog.Logger) {
	if s != nil && logger != nil {
		s.logger = logger
	}
}

// SetMetrics attaches pipeline metrics.
func (s *IngestService) SetMetrics(m *Metrics) {
	if s != nil {
		s.metrics = m
	}
}

// MaxUploadBytes returns the raw upload ceiling.
func (s *IngestService) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// CheckName runs the filename checks of Ingest on their own, counting a
// rejection like Ingest does. Callers use it before reading a streamed body.
func (s *IngestService) CheckName(filename string) error {
	if err := CheckExtension(filename); err != nil {
		s.metrics.recordIngest(ingestResultUnsupportedType, 0)
		return err
	}
	return nil
}

// Ingest validates upload, transcodes it to JPEG and stores it under a fresh key.
// Nothing is written unless validation and decoding succeed.
func (s *IngestService) Ingest(ctx context.Context, upload Upload) (StoredImage, error) {
	start := time.Now()
	stored, result, err := s.ingest(ctx, upload)
	s.metrics.recordIngest(result, time.Since(start))
	return stored, err
}

func (s *IngestService) ingest(ctx context.Context, upload Upload) (StoredImage, string, error) {
	var zero StoredImage

	if err := CheckExtension(upload.Filename); err != nil {
		return zero, ingestResultUnsupportedType, err
	}
	size := int64(len(upload.Data))
	if upload.DeclaredSize > size {
		size = upload.DeclaredSize
	}
	if size > s.maxUploadBytes {
		return zero, ingestResultTooLarge, fmt.Errorf("%w: %s exceeds %s", ErrPayloadTooLarge,
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(s.maxUploadBytes)))
	}

	res, err := s.transcoder.Transcode(upload.Data)
	if err != nil {
		if !errors.Is(err, imaging.ErrDecode) {
			s.logger.Warn("transcode failed after decode", "source", upload.Filename, "error", err)
		}
		return zero, ingestResultInvalidImage, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	key := s.allocator.Allocate("image." + imaging.OutputExtension)
	if err := ctx.Err(); err != nil {
		return zero, ingestResultStorageError, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if err := s.blobs.Put(ctx, key, res.Data); err != nil {
		s.logger.Error("image write failed", "key", key, "error", err)
		return zero, ingestResultStorageError, fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	if s.recorder != nil {
		if err := s.recorder.RecordUpload(ctx, s.paths.PathForKey(key), upload.UploaderID, time.Now()); err != nil {
			// An unrecorded image can never be attached, so drop it now.
			if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				s.logger.Warn("drop unrecorded image", "key", key, "error", delErr)
			}
			s.logger.Error("record upload failed", "key", key, "error", err)
			return zero, ingestResultStorageError, fmt.Errorf("%w: record upload: %w", ErrStorageWrite, err)
		}
	}

	stored := StoredImage{
		Path:       s.paths.PathForKey(key),
		Key:        key,
		SizeBytes:  len(res.Data),
		Quality:    res.Quality,
		Width:      res.Width,
		Height:     res.Height,
		OverBudget: s.maxSizeBytes > 0 && res.OverBudget(s.maxSizeBytes),
	}
	s.metrics.recordStored(stored.SizeBytes, stored.Quality, stored.OverBudget)
	s.logger.Info("image stored",
		"path", stored.Path,
		"source", upload.Filename,
		"source_size", humanize.IBytes(uint64(len(upload.Data))),
		"size", humanize.IBytes(uint64(stored.SizeBytes)),
		"quality", stored.Quality,
		"dims", fmt.Sprintf("%dx%d", stored.Width, stored.Height),
	)
	return stored, ingestResultStored, nil
}
