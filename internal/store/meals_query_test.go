package store

import (
	"context"
	"testing"
	"time"

	"mealog/internal/models"
)

func TestListMealsNewestFirstWithOwner(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	user := testUser(t, st, "alice")
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	testMeal(t, st, user.ID, "breakfast", "", base)
	testMeal(t, st, user.ID, "dinner", "", base.Add(10*time.Hour))
	testMeal(t, st, user.ID, "lunch", "", base.Add(4*time.Hour+500*time.Millisecond))

	meals, err := st.ListMeals(ctx, MealFilter{UserID: user.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"dinner", "lunch", "breakfast"}
	if len(meals) != len(want) {
		t.Fatalf("expected %d meals, got %d", len(want), len(meals))
	}
	for i, name := range want {
		if meals[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, meals[i].Name)
		}
		if meals[i].Username != "alice" {
			t.Fatalf("expected owner username, got %q", meals[i].Username)
		}
	}
}

func TestListMealsExploreVisibility(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	user := testUser(t, st, "alice")

	for _, v := range []models.Visibility{models.VisibilityAll, models.VisibilityMember, models.VisibilityPrivate} {
		meal := testMeal(t, st, user.ID, string(v), "", time.Now())
		meal.Visibility = string(v)
		if _, err := st.UpdateMeal(ctx, meal); err != nil {
			t.Fatalf("set visibility: %v", err)
		}
	}

	guest, err := st.ListMeals(ctx, MealFilter{Visibilities: models.ExploreVisibilityStrings(false), Limit: models.ExploreLimit})
	if err != nil {
		t.Fatalf("guest explore: %v", err)
	}
	if len(guest) != 1 || guest[0].Visibility != "all" {
		t.Fatalf("unexpected guest feed %+v", guest)
	}

	member, err := st.ListMeals(ctx, MealFilter{Visibilities: models.ExploreVisibilityStrings(true), Limit: models.ExploreLimit})
	if err != nil {
		t.Fatalf("member explore: %v", err)
	}
	if len(member) != 2 {
		t.Fatalf("expected 2 meals for members, got %d", len(member))
	}
	for _, m := range member {
		if m.Visibility == "private" {
			t.Fatal("private meal leaked into explore feed")
		}
	}
}

func TestListMealsSearchFilters(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	user := testUser(t, st, "alice")
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	rate := func(m *models.Meal, r float64, category, location string) {
		m.Rating = &r
		m.Category = category
		m.Location = location
		if _, err := st.UpdateMeal(ctx, m); err != nil {
			t.Fatalf("update: %v", err)
		}
	}
	rate(testMeal(t, st, user.ID, "Tonkotsu ramen", "", base), 4.5, "lunch", "Ichiran")
	rate(testMeal(t, st, user.ID, "Salad", "", base.AddDate(0, 0, -3)), 2.0, "lunch", "Home")
	rate(testMeal(t, st, user.ID, "100% rye toast", "", base.AddDate(0, 0, -10)), 3.0, "breakfast", "Home")

	tests := []struct {
		name   string
		filter MealFilter
		want   int
	}{
		{name: "keyword name", filter: MealFilter{Keyword: "ramen"}, want: 1},
		{name: "keyword location", filter: MealFilter{Keyword: "home"}, want: 2},
		{name: "keyword literal percent", filter: MealFilter{Keyword: "100%"}, want: 1},
		{name: "category", filter: MealFilter{Category: "lunch"}, want: 2},
		{name: "location exact", filter: MealFilter{Location: "Home"}, want: 2},
		{name: "min rating", filter: MealFilter{MinRating: ptrFloat(3)}, want: 2},
		{name: "max rating", filter: MealFilter{MaxRating: ptrFloat(2)}, want: 1},
		{name: "date range", filter: MealFilter{From: ptrTime(base.AddDate(0, 0, -5)), To: ptrTime(base)}, want: 2},
		{name: "limit offset", filter: MealFilter{Limit: 1, Offset: 1}, want: 1},
		{name: "offset only", filter: MealFilter{Offset: 2}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.UserID = user.ID
			got, err := st.ListMeals(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d meals, got %d", tt.want, len(got))
			}
		})
	}
}

func ptrFloat(v float64) *float64 { return &v }

func ptrTime(v time.Time) *time.Time { return &v }
