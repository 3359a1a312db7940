package models

import (
	"fmt"
	"strings"
)

// Visibility controls who can see a meal.
type Visibility string

const (
	VisibilityAll     Visibility = "all"
	VisibilityMember  Visibility = "member"
	VisibilityPrivate Visibility = "private"

	DefaultVisibility = VisibilityPrivate
)

// Role defines account privileges.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	RatingMin = 0.0
	RatingMax = 5.0

	ExploreLimit = 50
)

var validVisibilities = map[Visibility]struct{}{
	VisibilityAll:     {},
	VisibilityMember:  {},
	VisibilityPrivate: {},
}

var validRoles = map[Role]struct{}{
	RoleUser:  {},
	RoleAdmin: {},
}

// guestVisibilities are visible without a session; memberVisibilities to any signed-in user.
var (
	guestVisibilities  = []Visibility{VisibilityAll}
	memberVisibilities = []Visibility{VisibilityAll, VisibilityMember}
)

func IsValidVisibility(v Visibility) bool {
	_, ok := validVisibilities[v]
	return ok
}

func IsValidRole(r Role) bool {
	_, ok := validRoles[r]
	return ok
}

// ParseVisibility normalizes raw; empty input yields DefaultVisibility.
func ParseVisibility(raw string) (Visibility, error) {
	value := Visibility(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return DefaultVisibility, nil
	}
	if !IsValidVisibility(value) {
		return "", fmt.Errorf("invalid visibility: %s", value)
	}
	return value, nil
}

func ParseRole(raw string) (Role, error) {
	value := Role(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return "", fmt.Errorf("role is required")
	}
	if !IsValidRole(value) {
		return "", fmt.Errorf("invalid role: %s", value)
	}
	return value, nil
}

func IsValidRating(value float64) bool {
	return value >= RatingMin && value <= RatingMax
}

// ExploreVisibilityStrings lists the visibilities shown on the explore feed.
func ExploreVisibilityStrings(signedIn bool) []string {
	if signedIn {
		return visibilityStrings(memberVisibilities)
	}
	return visibilityStrings(guestVisibilities)
}

func visibilityStrings(values []Visibility) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, string(value))
	}
	return out
}
