package transfer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tiza/library-service/internal/models"
)

var (
	bookHeader    = []string{"id", "title", "author", "quantity", "isbn", "category", "status", "created_at"}
	studentHeader = []string{"id", "name", "grade", "phone_number", "student_id", "status", "created_at"}
	lendingHeader = []string{"id", "book_id", "student_id", "lent_at", "due_date", "returned_at", "status"}
)

func header(entity models.Entity) ([]string, error) {
	switch entity {
	case models.EntityBooks:
		return bookHeader, nil
	case models.EntityStudents:
		return studentHeader, nil
	case models.EntityLendings:
		return lendingHeader, nil
	default:
		return nil, fmt.Errorf("csv needs a single entity, got %q", entity)
	}
}

// EncodeCSV writes the rows of one entity of the snapshot as CSV with a header line.
func EncodeCSV(w io.Writer, snapshot *models.Snapshot, entity models.Entity) error {
	head, err := header(entity)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(head); err != nil {
		return err
	}

	switch entity {
	case models.EntityBooks:
		for _, b := range snapshot.Books {
			err = cw.Write([]string{
				b.ID, b.Title, b.Author, strconv.Itoa(b.Quantity), b.ISBN, b.Category,
				b.Status.String(), formatTime(b.CreatedAt),
			})
			if err != nil {
				return err
			}
		}
	case models.EntityStudents:
		for _, s := range snapshot.Students {
			phone := ""
			if s.PhoneNumber != nil {
				phone = *s.PhoneNumber
			}
			err = cw.Write([]string{
				s.ID, s.Name, s.Grade, phone, s.StudentID, s.Status.String(), formatTime(s.CreatedAt),
			})
			if err != nil {
				return err
			}
		}
	case models.EntityLendings:
		for _, l := range snapshot.Lendings {
			returned := ""
			if l.ReturnedAt != nil {
				returned = formatTime(*l.ReturnedAt)
			}
			err = cw.Write([]string{
				l.ID, l.BookID, l.StudentID, formatTime(l.LentAt), formatTime(l.DueDate),
				returned, l.Status.String(),
			})
			if err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// DecodeCSV reads one entity from CSV. Columns are matched by header name,
// so their order does not matter; unknown columns are ignored.
func DecodeCSV(r io.Reader, entity models.Entity) (*models.Snapshot, error) {
	head, err := header(entity)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty csv file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(first))
	for i, name := range first {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range head {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("csv is missing column %q", name)
		}
	}

	snapshot := &models.Snapshot{
		Version:  models.SnapshotVersion,
		Books:    []models.Book{},
		Students: []models.Student{},
		Lendings: []models.Lending{},
	}

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}

		row := csvRow{record: record, index: index}
		switch entity {
		case models.EntityBooks:
			b, err := row.book()
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			snapshot.Books = append(snapshot.Books, b)
		case models.EntityStudents:
			s, err := row.student()
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			snapshot.Students = append(snapshot.Students, s)
		case models.EntityLendings:
			l, err := row.lending()
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			snapshot.Lendings = append(snapshot.Lendings, l)
		}
	}

	return snapshot, nil
}

type csvRow struct {
	record []string
	index  map[string]int
}

func (r csvRow) get(name string) string {
	i, ok := r.index[name]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r csvRow) book() (models.Book, error) {
	quantity, err := strconv.Atoi(r.get("quantity"))
	if err != nil {
		return models.Book{}, fmt.Errorf("invalid quantity: %w", err)
	}
	status, err := models.ParseBookStatus(r.get("status"))
	if err != nil {
		return models.Book{}, err
	}
	createdAt, err := parseTime(r.get("created_at"))
	if err != nil {
		return models.Book{}, err
	}

	return models.Book{
		ID:        r.get("id"),
		Title:     r.get("title"),
		Author:    r.get("author"),
		Quantity:  quantity,
		ISBN:      r.get("isbn"),
		Category:  r.get("category"),
		Status:    models.StatusForQuantity(quantity, status),
		CreatedAt: createdAt,
	}, nil
}

func (r csvRow) student() (models.Student, error) {
	status, err := models.ParseStudentStatus(r.get("status"))
	if err != nil {
		return models.Student{}, err
	}
	createdAt, err := parseTime(r.get("created_at"))
	if err != nil {
		return models.Student{}, err
	}

	s := models.Student{
		ID:        r.get("id"),
		Name:      r.get("name"),
		Grade:     r.get("grade"),
		StudentID: r.get("student_id"),
		Status:    status,
		CreatedAt: createdAt,
	}
	if phone := r.get("phone_number"); phone != "" {
		s.PhoneNumber = &phone
	}
	return s, nil
}

func (r csvRow) lending() (models.Lending, error) {
	status, err := models.ParseLendingStatus(r.get("status"))
	if err != nil {
		return models.Lending{}, err
	}
	lentAt, err := parseTime(r.get("lent_at"))
	if err != nil {
		return models.Lending{}, err
	}
	due, err := parseTime(r.get("due_date"))
	if err != nil {
		return models.Lending{}, err
	}

	l := models.Lending{
		ID:        r.get("id"),
		BookID:    r.get("book_id"),
		StudentID: r.get("student_id"),
		LentAt:    lentAt,
		DueDate:   due,
		Status:    status,
	}
	if v := r.get("returned_at"); v != "" {
		returned, err := parseTime(v)
		if err != nil {
			return models.Lending{}, err
		}
		l.ReturnedAt = &returned
	}
	return l, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time: %q", v)
}
