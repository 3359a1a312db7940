package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"mealog/internal/config"
	"mealog/internal/models"
	"mealog/internal/store"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, "mealog.db")
	cfg.Storage.PublicRoot = filepath.Join(dir, "public")
	return cfg
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) error {
	t.Helper()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func openTestStore(t *testing.T, cfg config.Config) *store.Store {
	t.Helper()
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func storedImages(t *testing.T, cfg config.Config) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(cfg.Storage.LocalImageDir(), "*.jpg"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return matches
}

func TestUserAddRequiresPasswordStdin(t *testing.T) {
	cfg := testConfig(t)
	if err := execute(t, newUserAddCmd(&cfg), "", "ana"); err == nil {
		t.Fatal("expected error without --password-stdin")
	}
}

func TestUserAddAndPasswd(t *testing.T) {
	cfg := testConfig(t)
	if err := execute(t, newUserAddCmd(&cfg), "secret-1\n", "Ana", "--password-stdin", "--admin"); err != nil {
		t.Fatalf("user add: %v", err)
	}
	if err := execute(t, newUserAddCmd(&cfg), "secret-1\n", "ana", "--password-stdin"); err == nil {
		t.Fatal("expected duplicate user error")
	}
	if err := execute(t, newUserPasswdCmd(&cfg), "secret-2\n", "ana", "--password-stdin"); err != nil {
		t.Fatalf("user passwd: %v", err)
	}

	st := openTestStore(t, cfg)
	user, err := st.GetUserByUsername(context.Background(), "ana")
	if err != nil || user == nil {
		t.Fatalf("lookup user: %v", err)
	}
	if !user.IsAdmin() {
		t.Fatalf("expected admin role, got %q", user.Role)
	}
	if user.PasswordHash == "" || strings.Contains(user.PasswordHash, "secret") {
		t.Fatal("expected hashed password")
	}
}

func TestImageIngestThenMealDelete(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "lunch.png")
	writePNG(t, src)

	if err := execute(t, newImageIngestCmd(&cfg), "", src); err != nil {
		t.Fatalf("image ingest: %v", err)
	}
	files := storedImages(t, cfg)
	if len(files) != 1 {
		t.Fatalf("expected one stored image, got %v", files)
	}

	st := openTestStore(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC()
	user, err := st.CreateUser(ctx, "ana", "hash", models.RoleUser, now)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	meal := &models.Meal{
		UserID:     user.ID,
		Name:       "Lunch",
		MealDate:   now,
		Image:      "/uploads/meals/" + filepath.Base(files[0]),
		Visibility: string(models.VisibilityPrivate),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.CreateMeal(ctx, meal); err != nil {
		t.Fatalf("create meal: %v", err)
	}

	if err := execute(t, newMealDeleteCmd(&cfg), "", strconv.FormatInt(meal.ID, 10)); err != nil {
		t.Fatalf("meal delete: %v", err)
	}
	if _, err := os.Stat(files[0]); !os.IsNotExist(err) {
		t.Fatalf("expected image removed, stat err=%v", err)
	}
	if err := execute(t, newMealDeleteCmd(&cfg), "", strconv.FormatInt(meal.ID, 10)); err == nil {
		t.Fatal("expected not found on second delete")
	}
}

func TestImageIngestRejectsUnsupportedType(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "cat.gif")
	if err := os.WriteFile(src, []byte("GIF89a"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := execute(t, newImageIngestCmd(&cfg), "", src); err == nil {
		t.Fatal("expected unsupported type error")
	}
	if files := storedImages(t, cfg); len(files) != 0 {
		t.Fatalf("expected nothing stored, got %v", files)
	}
}

func TestImageIngestRecordsOwner(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "lunch.png")
	writePNG(t, src)

	st := openTestStore(t, cfg)
	ctx := context.Background()
	user, err := st.CreateUser(ctx, "ana", "hash", models.RoleUser, time.Now().UTC())
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := execute(t, newImageIngestCmd(&cfg), "", src, "--owner", "Ana"); err != nil {
		t.Fatalf("image ingest: %v", err)
	}
	files := storedImages(t, cfg)
	if len(files) != 1 {
		t.Fatalf("expected one stored image, got %v", files)
	}
	uploaderID, found, err := st.UploadOwner(ctx, "/uploads/meals/"+filepath.Base(files[0]))
	if err != nil || !found || uploaderID != user.ID {
		t.Fatalf("expected upload owned by %d, got %d found=%v err=%v", user.ID, uploaderID, found, err)
	}

	if err := execute(t, newImageIngestCmd(&cfg), "", src, "--owner", "nobody"); err == nil {
		t.Fatal("expected unknown owner error")
	}
	if files := storedImages(t, cfg); len(files) != 1 {
		t.Fatalf("unknown owner must not store files, got %v", files)
	}
}

func TestImageUploadUsesAPIClient(t *testing.T) {
	var uploaded atomic.Bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "user_id", Value: "signed", Path: "/"})
			_ = json.NewEncoder(w).Encode(models.User{ID: 1, Username: "ana", Role: "user"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/upload":
			if c, err := r.Cookie("user_id"); err != nil || c.Value != "signed" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"authentication required","code":"unauthorized","error_code":3001}`))
				return
			}
			if _, _, err := r.FormFile("file"); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"file is required"}`))
				return
			}
			uploaded.Store(true)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"path":"/uploads/meals/1-abc.jpg"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer ts.Close()

	cfg := testConfig(t)
	cfg.APIURL = ts.URL
	src := filepath.Join(t.TempDir(), "lunch.png")
	writePNG(t, src)

	if err := execute(t, newImageUploadCmd(&cfg), "secret-1\n", src, "--username", "ana", "--password-stdin"); err != nil {
		t.Fatalf("image upload: %v", err)
	}
	if !uploaded.Load() {
		t.Fatal("expected upload to reach the API")
	}
}

func TestUserDeleteCascadesImages(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(t.TempDir(), "lunch.png")
	writePNG(t, src)
	if err := execute(t, newImageIngestCmd(&cfg), "", src); err != nil {
		t.Fatalf("image ingest: %v", err)
	}
	files := storedImages(t, cfg)
	if len(files) != 1 {
		t.Fatalf("expected one stored image, got %v", files)
	}

	st := openTestStore(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC()
	user, err := st.CreateUser(ctx, "ben", "hash", models.RoleUser, now)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	meal := &models.Meal{UserID: user.ID, Name: "Soup", MealDate: now, Image: "/uploads/meals/" + filepath.Base(files[0]), Visibility: "all", CreatedAt: now, UpdatedAt: now}
	if err := st.CreateMeal(ctx, meal); err != nil {
		t.Fatalf("create meal: %v", err)
	}

	if err := execute(t, newUserDeleteCmd(&cfg), "", "ben"); err != nil {
		t.Fatalf("user delete: %v", err)
	}
	if _, err := os.Stat(files[0]); !os.IsNotExist(err) {
		t.Fatalf("expected image removed, stat err=%v", err)
	}
	if err := execute(t, newUserDeleteCmd(&cfg), "", "ben"); err == nil {
		t.Fatal("expected error for missing user")
	}
}

func TestConfigGetHidesSecrets(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionSecret = "super-secret-value-super-secret-value"

	out := captureStdout(t, func() {
		if err := execute(t, newConfigGetCmd(&cfg), "", "session_secret"); err != nil {
			t.Fatalf("config get: %v", err)
		}
	})
	if strings.Contains(out, "super-secret") || !strings.Contains(out, hiddenSecret) {
		t.Fatalf("expected hidden secret, got %q", out)
	}

	out = captureStdout(t, func() {
		if err := execute(t, newConfigShowCmd(&cfg), ""); err != nil {
			t.Fatalf("config show: %v", err)
		}
	})
	if strings.Contains(out, "super-secret") {
		t.Fatalf("config show leaked a secret: %q", out)
	}
	if !strings.Contains(out, "max_upload_bytes:") {
		t.Fatalf("expected yaml config output, got %q", out)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	_ = w.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	return buf.String()
}
