package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/internal/repository"
)

// memStore is an in-memory stand-in for the postgres repositories that keeps
// the same stock and uniqueness rules.
type memStore struct {
	mu       sync.Mutex
	books    map[string]models.Book
	students map[string]models.Student
	lendings map[string]models.Lending
	err      error
}

func newMemStore() *memStore {
	return &memStore{
		books:    map[string]models.Book{},
		students: map[string]models.Student{},
		lendings: map[string]models.Lending{},
	}
}

func (m *memStore) details(l models.Lending) models.LendingWithDetails {
	b := m.books[l.BookID]
	s := m.students[l.StudentID]
	return models.LendingWithDetails{
		Lending:       l,
		BookTitle:     b.Title,
		BookAuthor:    b.Author,
		BookCategory:  b.Category,
		StudentName:   s.Name,
		StudentNumber: s.StudentID,
		StudentGrade:  s.Grade,
	}
}

func (m *memStore) activeFor(match func(models.Lending) bool) int {
	n := 0
	for _, l := range m.lendings {
		if l.Status == models.LendingStatusLent && match(l) {
			n++
		}
	}
	return n
}

func (m *memStore) take(bookID string) error {
	b, ok := m.books[bookID]
	if !ok || b.Quantity <= 0 {
		return repository.ErrNoStock
	}
	b.Quantity--
	if b.Quantity <= 0 {
		b.Status = models.BookStatusUnavailable
	}
	m.books[bookID] = b
	return nil
}

func (m *memStore) giveBack(bookID string) {
	b := m.books[bookID]
	b.Quantity++
	b.Status = models.BookStatusAvailable
	m.books[bookID] = b
}

type memBooks struct{ *memStore }

func (r memBooks) Create(_ context.Context, b *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[b.ID]; ok {
		return repository.ErrDuplicate
	}
	r.books[b.ID] = *b
	return nil
}

func (r memBooks) GetByID(_ context.Context, id string) (*models.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	b, ok := r.books[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r memBooks) GetAll(_ context.Context, _ models.ListQuery) ([]models.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []models.Book{}
	for _, b := range r.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memBooks) Update(_ context.Context, b *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[b.ID]; !ok {
		return repository.ErrNotFound
	}
	r.books[b.ID] = *b
	return nil
}

func (r memBooks) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.books, id)
	for lid, l := range r.lendings {
		if l.BookID == id {
			delete(r.lendings, lid)
		}
	}
	return nil
}

func (r memBooks) CountActiveLendings(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeFor(func(l models.Lending) bool { return l.BookID == id }), nil
}

type memStudents struct{ *memStore }

func (r memStudents) Create(_ context.Context, s *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.students {
		if other.StudentID == s.StudentID {
			return repository.ErrDuplicate
		}
	}
	r.students[s.ID] = *s
	return nil
}

func (r memStudents) GetByID(_ context.Context, id string) (*models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r memStudents) GetByStudentNumber(_ context.Context, number string) (*models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.students {
		if s.StudentID == number {
			return &s, nil
		}
	}
	return nil, nil
}

func (r memStudents) GetAll(_ context.Context, _ models.ListQuery) ([]models.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Student{}
	for _, s := range r.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memStudents) Update(_ context.Context, s *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[s.ID]; !ok {
		return repository.ErrNotFound
	}
	r.students[s.ID] = *s
	return nil
}

func (r memStudents) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.students, id)
	for lid, l := range r.lendings {
		if l.StudentID == id {
			delete(r.lendings, lid)
		}
	}
	return nil
}

func (r memStudents) CountActiveLendings(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeFor(func(l models.Lending) bool { return l.StudentID == id }), nil
}

type memLendings struct{ *memStore }

func (r memLendings) GetAll(_ context.Context, _ models.ListQuery) ([]models.LendingWithDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.LendingWithDetails{}
	for _, l := range r.lendings {
		out = append(out, r.details(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LentAt.After(out[j].LentAt) })
	return out, nil
}

func (r memLendings) GetByID(_ context.Context, id string) (*models.LendingWithDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lendings[id]
	if !ok {
		return nil, nil
	}
	d := r.details(l)
	return &d, nil
}

func (r memLendings) filter(match func(models.Lending) bool) []models.LendingWithDetails {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.LendingWithDetails{}
	for _, l := range r.lendings {
		if match(l) {
			out = append(out, r.details(l))
		}
	}
	return out
}

func (r memLendings) GetByBookID(_ context.Context, id string) ([]models.LendingWithDetails, error) {
	return r.filter(func(l models.Lending) bool { return l.BookID == id }), nil
}

func (r memLendings) GetByStudentID(_ context.Context, id string) ([]models.LendingWithDetails, error) {
	return r.filter(func(l models.Lending) bool { return l.StudentID == id }), nil
}

func (r memLendings) CountActiveByStudent(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeFor(func(l models.Lending) bool { return l.StudentID == id }), nil
}

func (r memLendings) Lend(_ context.Context, l *models.Lending) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeFor(func(o models.Lending) bool { return o.StudentID == l.StudentID }) > 0 {
		return repository.ErrDuplicate
	}
	if err := r.take(l.BookID); err != nil {
		return err
	}
	r.lendings[l.ID] = *l
	return nil
}

func (r memLendings) Update(_ context.Context, l *models.Lending) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.lendings[l.ID]
	if !ok {
		return repository.ErrNotFound
	}

	status, returnedAt := cur.Status, cur.ReturnedAt
	if cur.Status == models.LendingStatusLent {
		if cur.BookID != l.BookID {
			r.giveBack(cur.BookID)
			if err := r.take(l.BookID); err != nil {
				r.take(cur.BookID)
				return err
			}
		}
		if l.ReturnedAt != nil {
			r.giveBack(l.BookID)
			status, returnedAt = models.LendingStatusReturned, l.ReturnedAt
		}
	} else if l.ReturnedAt != nil {
		returnedAt = l.ReturnedAt
	}

	l.Status, l.ReturnedAt, l.LentAt = status, returnedAt, cur.LentAt
	r.lendings[l.ID] = *l
	return nil
}

func (r memLendings) Return(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.lendings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.Status == models.LendingStatusReturned {
		return repository.ErrAlreadyReturned
	}
	cur.Status = models.LendingStatusReturned
	cur.ReturnedAt = &at
	r.lendings[id] = cur
	r.giveBack(cur.BookID)
	return nil
}

func (r memLendings) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.lendings[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.lendings, id)
	if cur.Status == models.LendingStatusLent {
		r.giveBack(cur.BookID)
	}
	return nil
}

type memSnapshots struct{ *memStore }

func (r memSnapshots) Dump(_ context.Context) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &models.Snapshot{Version: models.SnapshotVersion, Books: []models.Book{}, Students: []models.Student{}, Lendings: []models.Lending{}}
	for _, b := range r.books {
		s.Books = append(s.Books, b)
	}
	for _, st := range r.students {
		s.Students = append(s.Students, st)
	}
	for _, l := range r.lendings {
		s.Lendings = append(s.Lendings, l)
	}
	sort.Slice(s.Books, func(i, j int) bool { return s.Books[i].ID < s.Books[j].ID })
	sort.Slice(s.Students, func(i, j int) bool { return s.Students[i].ID < s.Students[j].ID })
	sort.Slice(s.Lendings, func(i, j int) bool { return s.Lendings[i].ID < s.Lendings[j].ID })
	return s, nil
}

func (r memSnapshots) Replace(_ context.Context, s *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books = map[string]models.Book{}
	r.students = map[string]models.Student{}
	r.lendings = map[string]models.Lending{}
	r.insert(s)
	return nil
}

func (r memSnapshots) Import(_ context.Context, s *models.Snapshot) (models.ImportCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	books := make(map[string]models.Book, len(r.books))
	for id, b := range r.books {
		books[id] = b
	}

	c := r.insert(s)
	for _, l := range s.Lendings {
		if l.Status != models.LendingStatusLent || !c.newLendings[l.ID] || c.newBooks[l.BookID] {
			continue
		}
		if err := r.take(l.BookID); err != nil {
			r.books = books
			for id := range c.newBooks {
				delete(r.books, id)
			}
			for id := range c.newStudents {
				delete(r.students, id)
			}
			for id := range c.newLendings {
				delete(r.lendings, id)
			}
			return models.ImportCounts{}, err
		}
	}
	return c.counts(), nil
}

type memInserted struct {
	newBooks, newStudents, newLendings map[string]bool
}

func (c memInserted) counts() models.ImportCounts {
	return models.ImportCounts{Books: len(c.newBooks), Students: len(c.newStudents), Lendings: len(c.newLendings)}
}

func (r memSnapshots) insert(s *models.Snapshot) memInserted {
	c := memInserted{newBooks: map[string]bool{}, newStudents: map[string]bool{}, newLendings: map[string]bool{}}
	for _, b := range s.Books {
		if _, ok := r.books[b.ID]; !ok {
			r.books[b.ID] = b
			c.newBooks[b.ID] = true
		}
	}
	for _, st := range s.Students {
		if _, ok := r.students[st.ID]; !ok {
			r.students[st.ID] = st
			c.newStudents[st.ID] = true
		}
	}
	for _, l := range s.Lendings {
		if _, ok := r.lendings[l.ID]; !ok {
			r.lendings[l.ID] = l
			c.newLendings[l.ID] = true
		}
	}
	return c
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }
