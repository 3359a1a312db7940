package models

import "time"

// Meal is one logged meal.
type Meal struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	MealDate    time.Time `json:"meal_date"`
	Location    string    `json:"location,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	RatingNotes string    `json:"rating_notes,omitempty"`
	Remarks     string    `json:"remarks,omitempty"`
	// Image is a stored image path such as /uploads/meals/<key>, or empty.
	Image      string    `json:"image,omitempty"`
	Visibility string    `json:"visibility"`
	// Username is the owner's name, filled only on feed queries.
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasImage reports whether the meal references a stored image.
func (m *Meal) HasImage() bool {
	return m != nil && m.Image != ""
}
