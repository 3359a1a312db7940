package server

import (
	"net/http"
	"strings"
	"time"

	"mealog/internal/api"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

func (s *Server) handleCreateMeal(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req api.MealRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	meal, err := s.meals.Create(r.Context(), user, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, meal)
}

func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	meals, err := s.meals.ListOwn(r.Context(), user, limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, meals)
}

func (s *Server) handleSearchMeals(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	search, err := parseMealSearch(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	meals, err := s.meals.Search(r.Context(), user, search)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, meals)
}

func (s *Server) handleExploreMeals(w http.ResponseWriter, r *http.Request) {
	meals, err := s.meals.Explore(r.Context(), currentUser(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, meals)
}

func (s *Server) handleGetMeal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	meal, err := s.meals.Get(r.Context(), currentUser(r), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, meal)
}

func (s *Server) handleUpdateMeal(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.MealRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	meal, err := s.meals.Update(r.Context(), user, id, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, meal)
}

func (s *Server) handleDeleteMeal(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if _, err := s.meals.Delete(r.Context(), user, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pagination(r *http.Request) (int, int, error) {
	limit, err := queryIntDefault(r, "limit", defaultListLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit == 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	offset, err := queryIntDefault(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseMealSearch(r *http.Request) (MealSearch, error) {
	query := r.URL.Query()
	search := MealSearch{
		Keyword:  strings.TrimSpace(query.Get("q")),
		Category: strings.TrimSpace(query.Get("category")),
		Location: strings.TrimSpace(query.Get("location")),
	}

	var err error
	if search.Limit, search.Offset, err = pagination(r); err != nil {
		return MealSearch{}, err
	}
	if search.From, err = queryDate(r, "from"); err != nil {
		return MealSearch{}, err
	}
	if search.To, err = queryDate(r, "to"); err != nil {
		return MealSearch{}, err
	}
	// A bare YYYY-MM-DD upper bound includes that whole day.
	if search.To != nil && len(strings.TrimSpace(query.Get("to"))) == len(time.DateOnly) {
		end := search.To.Add(24*time.Hour - time.Nanosecond)
		search.To = &end
	}
	if search.MinRating, err = queryFloat(r, "min_rating"); err != nil {
		return MealSearch{}, err
	}
	if search.MaxRating, err = queryFloat(r, "max_rating"); err != nil {
		return MealSearch{}, err
	}
	return search, nil
}

func queryDate(r *http.Request, key string) (*time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}
	t, err := parseFlexibleTime(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
