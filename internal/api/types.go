package api

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Path string `json:"path"`
}

// MealRequest is the payload for creating or replacing a meal.
// MealDate accepts RFC3339 or YYYY-MM-DD. On update a nil Image keeps the
// current image and an empty one removes it.
type MealRequest struct {
	Name        string   `json:"name"`
	Category    string   `json:"category,omitempty"`
	MealDate    string   `json:"meal_date"`
	Location    string   `json:"location,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	RatingNotes string   `json:"rating_notes,omitempty"`
	Remarks     string   `json:"remarks,omitempty"`
	Image       *string  `json:"image,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
}

// CredentialsRequest is used for login and registration.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserCreateRequest is the admin payload for provisioning an account.
type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// PasswordResetRequest is the admin payload for resetting a password.
type PasswordResetRequest struct {
	Password string `json:"password"`
}

// ProfileRequest is the payload for PUT /api/auth/profile. A nil Email leaves
// the address alone and an empty one clears it. NewPassword requires
// CurrentPassword.
type ProfileRequest struct {
	Email           *string `json:"email,omitempty"`
	CurrentPassword string  `json:"current_password,omitempty"`
	NewPassword     string  `json:"new_password,omitempty"`
}

// PublicSettings is returned by GET /api/settings/public.
type PublicSettings struct {
	AllowRegister bool `json:"allow_register"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
