package main

import (
	"context"
	"errors"
	"net"

	"mealog/internal/api"
	"mealog/internal/media"
)

// errCodeImageTooLarge mirrors the server's numeric code for oversized uploads.
const errCodeImageTooLarge = 1102

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized":
			lines = append(lines, "hint: check --username and the password given on stdin.")
		case "forbidden":
			lines = append(lines, "hint: this action needs the owner of the meal or an admin account.")
		case "resource_exhausted":
			lines = append(lines, "hint: too many failed logins; wait a few minutes before retrying.")
		}
		if apiErr.ErrorCode == errCodeImageTooLarge {
			lines = append(lines, "hint: the server limit is images.max_upload_bytes.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify MEALOG_API_URL points to a mealog server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		if apiErr.Temporary() {
			lines = append(lines, "hint: the request may succeed if retried.")
		}
		return uniqueLines(lines)
	}

	switch {
	case errors.Is(err, media.ErrUnsupportedType):
		lines = append(lines, "hint: supported image types are jpg, jpeg, png and webp.")
	case errors.Is(err, media.ErrPayloadTooLarge):
		lines = append(lines, "hint: raise images.max_upload_bytes to accept larger files.")
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase MEALOG_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a mealog server is running at MEALOG_API_URL.",
			"hint: start the server with: mealog srv",
		)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
