package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"mealog/internal/api"
	"mealog/internal/blobstore"
	"mealog/internal/media"
)

// multipartOverhead is the body allowance above the image limit for form framing.
const multipartOverhead = 64 << 10

// handleUpload streams the multipart body. The file part's name is checked
// before any of its data is read.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	maxUpload := s.ingest.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, badRequestCode(fmt.Errorf("expected a multipart/form-data body: %w", err), ErrCodeInvalidArgument))
		return
	}

	var upload media.Upload
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, badRequestCode(fmt.Errorf("file is required"), ErrCodeMissingRequired))
			return
		}
		if err != nil {
			s.writeError(w, r, classifyMultipartError(err))
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		if err := s.ingest.CheckName(part.FileName()); err != nil {
			_ = part.Close()
			s.writeServiceError(w, r, ingestError(err))
			return
		}
		data, err := io.ReadAll(io.LimitReader(part, maxUpload+1))
		_ = part.Close()
		if err != nil {
			s.writeError(w, r, classifyMultipartError(err))
			return
		}
		upload = media.Upload{
			Filename:    part.FileName(),
			Data:        data,
			ContentType: part.Header.Get("Content-Type"),
			UploaderID:  user.ID,
		}
		break
	}

	stored, err := s.ingest.Ingest(r.Context(), upload)
	if err != nil {
		s.writeServiceError(w, r, ingestError(err))
		return
	}

	s.writeJSON(w, http.StatusCreated, api.UploadResponse{Path: stored.Path})
}

func (s *Server) handleServeImage(w http.ResponseWriter, r *http.Request) {
	key, err := blobstore.CleanKey(r.PathValue("key"))
	if err != nil {
		s.writeError(w, r, notFoundCode(fmt.Errorf("image not found"), ErrCodeImageNotFound))
		return
	}

	rc, err := s.blobs.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.writeError(w, r, notFoundCode(fmt.Errorf("image not found"), ErrCodeImageNotFound))
			return
		}
		s.writeError(w, r, storageFailure(err))
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	// Keys are never reused, so content under a key never changes.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log().Warn("stream image", "key", key, "error", err)
	}
}

func ingestError(err error) error {
	switch {
	case errors.Is(err, media.ErrUnsupportedType):
		return badRequestCode(err, ErrCodeUnsupportedImageType)
	case errors.Is(err, media.ErrPayloadTooLarge):
		return badRequestCode(err, ErrCodeImageTooLarge)
	case errors.Is(err, media.ErrInvalidImage):
		return badRequestCode(err, ErrCodeInvalidImage)
	case errors.Is(err, media.ErrStorageWrite):
		return storageFailure(err)
	default:
		return internalError(err)
	}
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(media.ErrPayloadTooLarge, ErrCodeImageTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}
