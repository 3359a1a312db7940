package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// quietPaths are polled by health checks and scrapers and would drown the log.
var quietPaths = map[string]bool{"/health": true, "/metrics": true}

// statusRecorder captures the response status and size. Optional interfaces
// such as http.Flusher stay reachable through http.ResponseController via Unwrap.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(p []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(p)
	rec.written += int64(n)
	return n, err
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (rec *statusRecorder) code() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if quietPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.code()),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("size", humanize.IBytes(uint64(rec.written))),
			slog.String("remote", r.RemoteAddr),
		}
		if r.Pattern != "" {
			attrs = append(attrs, slog.String("route", r.Pattern))
		}

		level := slog.LevelDebug
		if rec.code() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.log().LogAttrs(r.Context(), level, "request", attrs...)
	})
}
