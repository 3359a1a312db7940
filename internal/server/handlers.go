package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"mealog/internal/api"
)

const defaultJSONMaxBody = 1 << 20 // 1 MiB

// errorKind pairs an HTTP status with the envelope code clients switch on and
// the numeric code used when the caller gives none.
type errorKind struct {
	status  int
	code    string
	errCode int
}

var (
	kindInvalid      = errorKind{http.StatusBadRequest, "invalid_argument", ErrCodeInvalidArgument}
	kindUnauthorized = errorKind{http.StatusUnauthorized, "unauthorized", ErrCodeUnauthorized}
	kindForbidden    = errorKind{http.StatusForbidden, "forbidden", ErrCodeForbidden}
	kindNotFound     = errorKind{http.StatusNotFound, "not_found", ErrCodeMealNotFound}
	kindConflict     = errorKind{http.StatusConflict, "conflict", ErrCodeConflict}
	kindExhausted    = errorKind{http.StatusTooManyRequests, "resource_exhausted", ErrCodeResourceExhausted}
	kindInternal     = errorKind{http.StatusInternalServerError, "internal", ErrCodeInternal}
)

// apiError carries everything writeError needs to render a failure.
type apiError struct {
	kind    errorKind
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

// newAPIError classifies err. An error that is already classified keeps its
// first classification.
func newAPIError(kind errorKind, errCode int, err error) error {
	var existing apiError
	if errors.As(err, &existing) {
		return existing
	}
	if err == nil {
		err = errors.New(http.StatusText(kind.status))
	}
	if errCode == 0 {
		errCode = kind.errCode
	}
	return apiError{kind: kind, errCode: errCode, err: err}
}

func badRequest(err error) error { return newAPIError(kindInvalid, 0, err) }
func badRequestCode(err error, c int) error { return newAPIError(kindInvalid, c, err) }
func unauthorized(err error) error { return newAPIError(kindUnauthorized, 0, err) }
func forbidden(err error) error { return newAPIError(kindForbidden, 0, err) }
func notFoundCode(err error, c int) error { return newAPIError(kindNotFound, c, err) }
func conflictCode(err error, c int) error { return newAPIError(kindConflict, c, err) }
func tooManyRequests(err error) error { return newAPIError(kindExhausted, 0, err) }
func internalError(err error) error { return newAPIError(kindInternal, 0, err) }
func storeFailure(err error) error { return newAPIError(kindInternal, ErrCodeStoreFailure, err) }
func storageFailure(err error) error { return newAPIError(kindInternal, ErrCodeStorageFailure, err) }

// writeError renders err as the JSON error envelope. Unclassified errors are
// internal. Server-side messages never reach the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var classified apiError
	if !errors.As(newAPIError(kindInternal, 0, err), &classified) {
		return
	}
	kind := classified.kind
	message := classified.Error()

	attrs := []slog.Attr{
		slog.Int("status", kind.status),
		slog.String("code", kind.code),
		slog.Int("error_code", classified.errCode),
		slog.String("error", message),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
	switch kind.status {
	case http.StatusInternalServerError:
		s.log().LogAttrs(r.Context(), slog.LevelError, "request failed", attrs...)
		message = "internal error"
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		s.log().LogAttrs(r.Context(), slog.LevelWarn, "request rejected", attrs...)
	default:
		s.log().LogAttrs(r.Context(), slog.LevelDebug, "request rejected", attrs...)
	}

	s.writeJSON(w, kind.status, api.ErrorResponse{Error: message, Code: kind.code, ErrorCode: classified.errCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		s.writeError(w, r, classifyDecodeJSONError(err))
		return false
	}
	return true
}

// writeServiceError writes err with the status it carries; unclassified errors
// are treated as store failures.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, storeFailure(err))
}

func (s *Server) pathIDOrBadRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := requirePathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return 0, false
	}
	return id, true
}

func requirePathID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequestCode(fmt.Errorf("invalid id"), ErrCodeInvalidID)
	}
	return id, nil
}

func queryIntDefault(r *http.Request, key string, def int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	if parsed < 0 {
		return 0, badRequestCode(fmt.Errorf("%s must be >= 0", key), ErrCodeInvalidQuery)
	}
	return parsed, nil
}

func queryFloat(r *http.Request, key string) (*float64, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, badRequestCode(fmt.Errorf("invalid %s", key), ErrCodeInvalidQuery)
	}
	return &parsed, nil
}
