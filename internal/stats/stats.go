// Package stats derives the dashboard figures from plain collections of
// books, students and lendings. Nothing here touches storage, so every
// aggregate is a pure function of its inputs and the supplied clock reading.
package stats

import (
	"sort"
	"time"

	"github.com/tiza/library-service/internal/models"
)

const day = 24 * time.Hour

type Options struct {
	PopularCategoryLimit int
	PopularBooksLimit    int
	RecentActivityWindow time.Duration
	RecentActivityLimit  int
}

func DefaultOptions() Options {
	return Options{
		PopularCategoryLimit: 4,
		PopularBooksLimit:    5,
		RecentActivityWindow: day,
		RecentActivityLimit:  10,
	}
}

func Dashboard(books []models.Book, students []models.Student, lendings []models.LendingWithDetails, now time.Time, opts Options) models.DashboardStats {
	s := models.DashboardStats{
		TotalStudents: int64(len(students)),
		TotalBooks:    int64(len(books)),
	}

	var shelfCopies int64
	for _, b := range books {
		if b.Status == models.BookStatusAvailable {
			s.AvailableBooks++
		}
		shelfCopies += int64(b.Quantity)
	}

	for _, l := range lendings {
		if l.Status == models.LendingStatusLent {
			s.BooksOnLoan++
		}
		if l.IsOverdue(now) {
			s.OverdueBooks++
		}
	}

	s.TotalCopies = shelfCopies + s.BooksOnLoan
	if s.TotalCopies > 0 {
		s.UtilizationRate = s.BooksOnLoan * 100 / s.TotalCopies
	}

	s.PopularCategories = PopularCategories(lendings, opts.PopularCategoryLimit)
	return s
}

// PopularCategories groups every lending ever made by book category.
// Percentages are integer shares of all lendings and may not add up to 100.
func PopularCategories(lendings []models.LendingWithDetails, limit int) []models.CategoryStats {
	counts := make(map[string]int64)
	for _, l := range lendings {
		counts[l.BookCategory]++
	}

	total := int64(len(lendings))
	out := make([]models.CategoryStats, 0, len(counts))
	for name, count := range counts {
		cs := models.CategoryStats{Name: name, Count: count}
		if total > 0 {
			cs.Percentage = count * 100 / total
		}
		out = append(out, cs)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func PopularBooks(books []models.Book, lendings []models.LendingWithDetails, limit int) []models.PopularBook {
	loans := make(map[string]int64)
	for _, l := range lendings {
		loans[l.BookID]++
	}

	out := make([]models.PopularBook, 0, len(books))
	for _, b := range books {
		out = append(out, models.PopularBook{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			Category:    b.Category,
			Status:      b.Status.String(),
			TimesLoaned: loans[b.ID],
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimesLoaned > out[j].TimesLoaned
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// OverdueBooks lists overdue lendings, longest overdue first.
func OverdueBooks(lendings []models.LendingWithDetails, now time.Time) []models.OverdueBook {
	out := []models.OverdueBook{}
	for _, l := range lendings {
		if !l.IsOverdue(now) {
			continue
		}
		out = append(out, models.OverdueBook{
			ID:          l.ID,
			BookTitle:   l.BookTitle,
			Author:      l.BookAuthor,
			StudentName: l.StudentName,
			Grade:       l.StudentGrade,
			StudentID:   l.StudentNumber,
			DueDate:     l.DueDate,
			DaysOverdue: DaysOverdue(l.DueDate, now),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}

// DaysOverdue counts whole days elapsed since due.
func DaysOverdue(due, now time.Time) int64 {
	if !due.Before(now) {
		return 0
	}
	return int64(now.Sub(due) / day)
}

// RecentActivity merges borrow and return events that happened inside the
// window ending at now, newest first.
func RecentActivity(lendings []models.LendingWithDetails, now time.Time, window time.Duration, limit int) []models.RecentActivity {
	since := now.Add(-window)
	out := []models.RecentActivity{}

	for _, l := range lendings {
		base := models.RecentActivity{
			ID:          l.ID,
			StudentName: l.StudentName,
			StudentID:   l.StudentNumber,
			BookTitle:   l.BookTitle,
			Author:      l.BookAuthor,
			Category:    l.BookCategory,
		}

		if !l.LentAt.Before(since) && !l.LentAt.After(now) {
			a := base
			due := l.DueDate
			a.ActivityType = models.ActivityBorrowed
			a.DueDate = &due
			a.CreatedAt = l.LentAt
			out = append(out, a)
		}

		if l.ReturnedAt != nil && !l.ReturnedAt.Before(since) && !l.ReturnedAt.After(now) {
			a := base
			a.ActivityType = models.ActivityReturned
			a.CreatedAt = *l.ReturnedAt
			out = append(out, a)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GradeDistribution counts students per grade, ordered by grade.
func GradeDistribution(students []models.Student) []models.GradeCount {
	counts := make(map[string]int64)
	for _, s := range students {
		counts[s.Grade]++
	}

	out := make([]models.GradeCount, 0, len(counts))
	for grade, count := range counts {
		out = append(out, models.GradeCount{Grade: grade, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Grade < out[j].Grade
	})
	return out
}
