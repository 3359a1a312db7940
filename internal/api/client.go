package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"mealog/internal/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "MEALOG_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for the mealog API. It keeps the session
// cookie set by Login for subsequent calls.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv(), Jar: jar},
	}
}

// Health checks whether the API server is reachable.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, &resp)
	return resp, err
}

// Login signs in and stores the session cookie.
func (c *Client) Login(ctx context.Context, username, password string) (models.User, error) {
	var resp models.User
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, CredentialsRequest{Username: username, Password: password}, &resp)
	return resp, err
}

// Upload sends one image as the multipart field "file" and returns the stored path.
func (c *Client) Upload(ctx context.Context, filename string, data io.Reader) (UploadResponse, error) {
	var resp UploadResponse
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, data); err != nil {
		return resp, err
	}
	if err := mw.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.send(req, &resp)
	return resp, err
}

// CreateMeal creates a meal owned by the signed-in user.
func (c *Client) CreateMeal(ctx context.Context, req MealRequest) (models.Meal, error) {
	var resp models.Meal
	err := c.do(ctx, http.MethodPost, "/api/meals", nil, req, &resp)
	return resp, err
}

// ListMeals lists the signed-in user's meals.
func (c *Client) ListMeals(ctx context.Context) ([]models.Meal, error) {
	var resp []models.Meal
	err := c.do(ctx, http.MethodGet, "/api/meals", nil, nil, &resp)
	return resp, err
}

// Explore lists the shared feed visible to the caller.
func (c *Client) Explore(ctx context.Context) ([]models.Meal, error) {
	var resp []models.Meal
	err := c.do(ctx, http.MethodGet, "/api/meals/explore", nil, nil, &resp)
	return resp, err
}

// DeleteMeal deletes a meal and its stored image.
func (c *Client) DeleteMeal(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/meals/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: "api error: " + resp.Status}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
