package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestUploadSendsMultipartFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "lunch.png" || string(data) != "png-bytes" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"path":"/uploads/meals/1-abcdef.jpg"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).Upload(context.Background(), "lunch.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.Path != "/uploads/meals/1-abcdef.jpg" {
		t.Fatalf("unexpected path %q", resp.Path)
	}
}

func TestDecodeErrorCarriesCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unsupported image type","code":"invalid_argument","error_code":1101}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Upload(context.Background(), "a.gif", strings.NewReader("x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.ErrorCode != 1101 || apiErr.Code != "invalid_argument" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if StatusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected StatusOf 400, got %d", StatusOf(err))
	}
}

func TestLoginKeepsSessionCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "user_id", Value: "signed", Path: "/"})
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":1,"username":"ana","role":"admin"}`))
		case "/api/meals":
			if c, err := r.Cookie("user_id"); err != nil || c.Value != "signed" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"authentication required"}`))
				return
			}
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	user, err := client.Login(context.Background(), "ana", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.Username != "ana" {
		t.Fatalf("unexpected user %+v", user)
	}
	if _, err := client.ListMeals(context.Background()); err != nil {
		t.Fatalf("list with session: %v", err)
	}
}
