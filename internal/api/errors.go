package api

import (
	"net/http"
	"strconv"
	"strings"
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

// Error renders "code [error_code]: message", leaving out the parts the server did not send.
func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Code != "" {
		b.WriteString(e.Code)
		if e.ErrorCode > 0 {
			b.WriteString(" [" + strconv.Itoa(e.ErrorCode) + "]")
		}
	}
	msg := e.Message
	if msg == "" && e.Status > 0 {
		msg = http.StatusText(e.Status)
	}
	if msg != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(msg)
	}
	if b.Len() == 0 {
		return "api error"
	}
	return b.String()
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e != nil && (e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError)
}
