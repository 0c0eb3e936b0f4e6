package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiza/library-service/internal/models"
)

func toSQL(t *testing.T, q models.ListQuery, spec listSpec) (string, []interface{}) {
	t.Helper()

	ds := applyListQuery(dialect.From("books").Select("id"), spec, q)
	query, args, err := ds.Prepared(true).ToSQL()
	require.NoError(t, err)
	return query, args
}

func TestApplyListQuery_DefaultsToNewestFirstWithoutPaging(t *testing.T) {
	query, args := toSQL(t, models.ListQuery{}, bookListSpec)

	assert.Contains(t, query, `ORDER BY "created_at" DESC NULLS LAST`)
	assert.NotContains(t, query, "WHERE")
	assert.NotContains(t, query, "LIMIT")
	assert.Empty(t, args)
}

func TestApplyListQuery_SearchFacetsAndRange(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	query, args := toSQL(t, models.ListQuery{
		Search:   " tolkien ",
		Status:   []string{"available"},
		Category: []string{"fantasy", "classics"},
		From:     &from,
		To:       &to,
	}, bookListSpec)

	assert.Contains(t, query, `"title" ILIKE`)
	assert.Contains(t, query, `"author" ILIKE`)
	assert.Contains(t, query, `"isbn" ILIKE`)
	assert.Contains(t, query, `"status" IN (`)
	assert.Contains(t, query, `"category" IN (`)
	assert.Contains(t, query, `"created_at" >=`)
	assert.Contains(t, query, `"created_at" <=`)

	assert.Contains(t, args, "%tolkien%")
	assert.Contains(t, args, "fantasy")
	assert.Contains(t, args, "classics")
}

func TestApplyListQuery_IgnoresFacetsTheTableDoesNotHave(t *testing.T) {
	query, _ := toSQL(t, models.ListQuery{Grade: []string{"5"}}, bookListSpec)
	assert.NotContains(t, query, "grade")
}

func TestApplyListQuery_SortAndPage(t *testing.T) {
	asc := false
	query, args := toSQL(t, models.ListQuery{
		SortBy:   "title",
		SortDesc: &asc,
		Page:     3,
		Limit:    20,
	}, bookListSpec)

	assert.Contains(t, query, `ORDER BY "title" ASC NULLS LAST`)
	assert.Contains(t, query, "LIMIT")
	assert.Contains(t, query, "OFFSET")
	assert.Len(t, args, 2)
}

func TestApplyListQuery_UnknownSortColumnFallsBack(t *testing.T) {
	query, _ := toSQL(t, models.ListQuery{SortBy: "1; DROP TABLE books"}, bookListSpec)

	assert.Contains(t, query, `ORDER BY "created_at" DESC NULLS LAST`)
	assert.NotContains(t, query, "DROP")
}

func TestLendingDetailsDataset_JoinsBooksAndStudents(t *testing.T) {
	ds := applyListQuery(lendingDetailsDataset(), lendingListSpec, models.ListQuery{
		Grade: []string{"7"},
	})
	query, _, err := ds.Prepared(true).ToSQL()
	require.NoError(t, err)

	assert.Contains(t, query, `LEFT JOIN "books" AS "b"`)
	assert.Contains(t, query, `LEFT JOIN "students" AS "s"`)
	assert.Contains(t, query, `AS "student_number"`)
	assert.Contains(t, query, `"s"."grade" IN (`)
	assert.Contains(t, query, `ORDER BY "l"."lent_at" DESC NULLS LAST`)
}

func TestBuildInsert_SkipExisting(t *testing.T) {
	rows := toRows([]models.Book{{ID: "b1", Title: "Dune", Status: models.BookStatusAvailable}})

	query, args, err := buildInsert("books", rows, true)
	require.NoError(t, err)

	assert.Contains(t, query, `INSERT INTO "books"`)
	assert.Contains(t, query, "ON CONFLICT DO NOTHING")
	assert.Contains(t, args, "b1")
	assert.Contains(t, query, `RETURNING "id"`)

	query, _, err = buildInsert("books", rows, false)
	require.NoError(t, err)
	assert.NotContains(t, query, "ON CONFLICT")
}

func TestApplyListQuery_SearchEscapesWildcards(t *testing.T) {
	query, args := toSQL(t, models.ListQuery{Search: ` 50%_off\ `}, bookListSpec)

	assert.Contains(t, query, "ILIKE")
	require.NotEmpty(t, args)
	for _, arg := range args {
		assert.Equal(t, `%50\%\_off\\%`, arg)
	}
}
