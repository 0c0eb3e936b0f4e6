package repository

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/tiza/library-service/internal/models"
)

// listSpec describes which columns of a table back the generic table controls.
// Empty column names disable the matching filter.
type listSpec struct {
	searchColumns  []string
	statusColumn   string
	categoryColumn string
	gradeColumn    string
	dateColumn     string
	sortable       map[string]string
	defaultSort    string
}

var bookListSpec = listSpec{
	searchColumns:  []string{"title", "author", "isbn"},
	statusColumn:   "status",
	categoryColumn: "category",
	dateColumn:     "created_at",
	sortable: map[string]string{
		"title":      "title",
		"author":     "author",
		"quantity":   "quantity",
		"category":   "category",
		"status":     "status",
		"created_at": "created_at",
	},
	defaultSort: "created_at",
}

var studentListSpec = listSpec{
	searchColumns: []string{"name", "student_id", "phone_number"},
	statusColumn:  "status",
	gradeColumn:   "grade",
	dateColumn:    "created_at",
	sortable: map[string]string{
		"name":       "name",
		"grade":      "grade",
		"student_id": "student_id",
		"status":     "status",
		"created_at": "created_at",
	},
	defaultSort: "created_at",
}

var lendingListSpec = listSpec{
	searchColumns:  []string{"b.title", "b.author", "s.name", "s.student_id"},
	statusColumn:   "l.status",
	categoryColumn: "b.category",
	gradeColumn:    "s.grade",
	dateColumn:     "l.lent_at",
	sortable: map[string]string{
		"lent_at":      "l.lent_at",
		"due_date":     "l.due_date",
		"returned_at":  "l.returned_at",
		"status":       "l.status",
		"book_title":   "b.title",
		"student_name": "s.name",
	},
	defaultSort: "l.lent_at",
}

// likeEscaper makes LIKE wildcards in a search term match literally; backslash
// is the default ILIKE escape character in postgres.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func applyListQuery(ds *goqu.SelectDataset, spec listSpec, q models.ListQuery) *goqu.SelectDataset {
	var where []exp.Expression

	if term := strings.TrimSpace(q.Search); term != "" && len(spec.searchColumns) > 0 {
		pattern := "%" + likeEscaper.Replace(term) + "%"
		ors := make([]exp.Expression, 0, len(spec.searchColumns))
		for _, col := range spec.searchColumns {
			ors = append(ors, goqu.I(col).ILike(pattern))
		}
		where = append(where, goqu.Or(ors...))
	}

	where = appendFacet(where, spec.statusColumn, q.Status)
	where = appendFacet(where, spec.categoryColumn, q.Category)
	where = appendFacet(where, spec.gradeColumn, q.Grade)

	if spec.dateColumn != "" {
		if q.From != nil {
			where = append(where, goqu.I(spec.dateColumn).Gte(*q.From))
		}
		if q.To != nil {
			where = append(where, goqu.I(spec.dateColumn).Lte(*q.To))
		}
	}

	if len(where) > 0 {
		ds = ds.Where(where...)
	}

	// Explicit columns sort ascending unless asked otherwise; the default
	// column sorts newest first.
	column, known := spec.sortable[q.SortBy]
	desc := q.SortDesc != nil && *q.SortDesc
	if !known {
		column = spec.defaultSort
		desc = q.SortDesc == nil || *q.SortDesc
	}
	if desc {
		ds = ds.Order(goqu.I(column).Desc().NullsLast())
	} else {
		ds = ds.Order(goqu.I(column).Asc().NullsLast())
	}

	if q.Paged() {
		ds = ds.Limit(uint(q.Limit)).Offset(uint(q.Offset()))
	}

	return ds
}

func appendFacet(where []exp.Expression, column string, values []string) []exp.Expression {
	if column == "" || len(values) == 0 {
		return where
	}
	in := make([]interface{}, 0, len(values))
	for _, v := range values {
		in = append(in, v)
	}
	return append(where, goqu.I(column).In(in...))
}
