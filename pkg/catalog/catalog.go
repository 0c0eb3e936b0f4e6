// Package catalog names every command of the library API and records which
// queries each mutation makes stale. Server and client share it.
package catalog

import "sort"

type Kind string

const (
	Query    Kind = "query"
	Mutation Kind = "mutation"
)

const (
	TestCommand = "test_command"

	GetDashboardStats    = "get_dashboard_stats"
	GetPopularBooks      = "get_popular_books"
	GetOverdueBooks      = "get_overdue_books"
	GetRecentActivity    = "get_recent_activity"
	GetGradeDistribution = "get_grade_distribution"

	GetAllBooks = "get_all_books"
	GetBookByID = "get_book_by_id"
	CreateBook  = "create_book"
	UpdateBook  = "update_book"
	DeleteBook  = "delete_book"

	GetAllStudents = "get_all_students"
	GetStudentByID = "get_student_by_id"
	CreateStudent  = "create_student"
	UpdateStudent  = "update_student"
	DeleteStudent  = "delete_student"

	GetAllLendings         = "get_all_lendings"
	GetLendingByID         = "get_lending_by_id"
	GetLendingsByBookID    = "get_lending_records_by_book_id"
	GetLendingsByStudentID = "get_lending_records_by_student_id"
	CreateLending          = "create_lending"
	UpdateLending          = "update_lending"
	ReturnLending          = "return_lending"
	DeleteLending          = "delete_lending"

	BackupDatabase  = "backup_database"
	RestoreDatabase = "restore_database"
	ExportData      = "export_data"
	ImportData      = "import_data"
	ListBackups     = "list_backups"
	RefreshApp      = "refresh_app"
)

type Command struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	Invalidates []string `json:"invalidates,omitempty"`
}

func (c Command) IsQuery() bool {
	return c.Kind == Query
}

var (
	bookQueries    = []string{GetAllBooks, GetBookByID}
	studentQueries = []string{GetAllStudents, GetStudentByID, GetGradeDistribution}
	lendingQueries = []string{GetAllLendings, GetLendingByID, GetLendingsByBookID, GetLendingsByStudentID}
	statsQueries   = []string{GetDashboardStats, GetPopularBooks, GetOverdueBooks, GetRecentActivity}
)

func join(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var commands = map[string]Command{}

func add(kind Kind, invalidates []string, names ...string) {
	for _, name := range names {
		commands[name] = Command{Name: name, Kind: kind, Invalidates: invalidates}
	}
}

func init() {
	add(Query, nil,
		TestCommand, ListBackups,
		GetDashboardStats, GetPopularBooks, GetOverdueBooks, GetRecentActivity, GetGradeDistribution,
		GetAllBooks, GetBookByID,
		GetAllStudents, GetStudentByID,
		GetAllLendings, GetLendingByID, GetLendingsByBookID, GetLendingsByStudentID,
	)

	add(Mutation, join(bookQueries, statsQueries), CreateBook)
	// Lending rows repeat the book title, author and category.
	add(Mutation, join(bookQueries, lendingQueries, statsQueries), UpdateBook, DeleteBook)

	add(Mutation, join(studentQueries, []string{GetDashboardStats}), CreateStudent)
	add(Mutation, join(studentQueries, lendingQueries, statsQueries), UpdateStudent, DeleteStudent)

	// Lendings move stock, so every book query goes stale with them.
	add(Mutation, join(lendingQueries, bookQueries, statsQueries),
		CreateLending, UpdateLending, ReturnLending, DeleteLending)

	add(Mutation, []string{ListBackups}, BackupDatabase)
	add(Mutation, nil, ExportData)
	add(Mutation, Queries(), RestoreDatabase, ImportData, RefreshApp)
}

func Lookup(name string) (Command, bool) {
	c, ok := commands[name]
	return c, ok
}

// All returns every command sorted by name.
func All() []Command {
	out := make([]Command, 0, len(commands))
	for _, c := range commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Queries returns the names of all query commands, sorted.
func Queries() []string {
	var out []string
	for name, c := range commands {
		if c.Kind == Query {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Invalidates returns the queries made stale by a successful run of name.
func Invalidates(name string) []string {
	return commands[name].Invalidates
}
