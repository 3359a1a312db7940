package store

import (
	"strings"
	"time"
)

// MealFilter narrows meal listings. Zero values match everything.
type MealFilter struct {
	UserID       int64
	Visibilities []string
	Keyword      string
	Category     string
	Location     string
	From         *time.Time
	To           *time.Time
	MinRating    *float64
	MaxRating    *float64
	Limit        int
	Offset       int
}

type mealQueryBuilder struct {
	filter MealFilter
	query  string
	args   []any
	where  []string
}

func buildMealQuery(filter MealFilter) (string, []any) {
	builder := &mealQueryBuilder{filter: filter}
	builder.buildSelect()
	builder.buildWhere()
	builder.buildOrder()
	builder.buildPagination()
	return builder.query, builder.args
}

func (b *mealQueryBuilder) buildSelect() {
	b.query = "SELECT " + qualifiedMealColumns + ", COALESCE(u.username, '') FROM meals m LEFT JOIN users u ON u.id = m.user_id"
}

func (b *mealQueryBuilder) buildWhere() {
	b.appendUser()
	b.appendVisibilities()
	b.appendKeyword()
	b.appendExact("m.category", b.filter.Category)
	b.appendExact("m.location", b.filter.Location)
	b.appendDateRange()
	b.appendRatingRange()

	if len(b.where) == 0 {
		return
	}
	b.query += " WHERE " + strings.Join(b.where, " AND ")
}

func (b *mealQueryBuilder) appendUser() {
	if b.filter.UserID <= 0 {
		return
	}
	b.where = append(b.where, "m.user_id = ?")
	b.args = append(b.args, b.filter.UserID)
}

func (b *mealQueryBuilder) appendVisibilities() {
	if len(b.filter.Visibilities) == 0 {
		return
	}
	b.where = append(b.where, "m.visibility IN ("+placeholders(len(b.filter.Visibilities))+")")
	for _, v := range b.filter.Visibilities {
		b.args = append(b.args, v)
	}
}

func (b *mealQueryBuilder) appendKeyword() {
	keyword := strings.TrimSpace(b.filter.Keyword)
	if keyword == "" {
		return
	}
	pattern := "%" + escapeLike(keyword) + "%"
	b.where = append(b.where, "(m.name LIKE ? ESCAPE '\\' OR m.location LIKE ? ESCAPE '\\')")
	b.args = append(b.args, pattern, pattern)
}

func (b *mealQueryBuilder) appendExact(column, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.where = append(b.where, column+" = ?")
	b.args = append(b.args, value)
}

func (b *mealQueryBuilder) appendDateRange() {
	if b.filter.From != nil {
		b.where = append(b.where, "m.meal_date >= ?")
		b.args = append(b.args, formatTime(*b.filter.From))
	}
	if b.filter.To != nil {
		b.where = append(b.where, "m.meal_date <= ?")
		b.args = append(b.args, formatTime(*b.filter.To))
	}
}

func (b *mealQueryBuilder) appendRatingRange() {
	if b.filter.MinRating != nil {
		b.where = append(b.where, "m.rating >= ?")
		b.args = append(b.args, *b.filter.MinRating)
	}
	if b.filter.MaxRating != nil {
		b.where = append(b.where, "m.rating <= ?")
		b.args = append(b.args, *b.filter.MaxRating)
	}
}

func (b *mealQueryBuilder) buildOrder() {
	b.query += " ORDER BY m.meal_date DESC, m.id DESC"
}

func (b *mealQueryBuilder) buildPagination() {
	hasLimit := false
	if b.filter.Limit > 0 {
		b.query += " LIMIT ?"
		b.args = append(b.args, b.filter.Limit)
		hasLimit = true
	}
	if b.filter.Offset > 0 {
		if !hasLimit {
			b.query += " LIMIT -1"
		}
		b.query += " OFFSET ?"
		b.args = append(b.args, b.filter.Offset)
	}
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
