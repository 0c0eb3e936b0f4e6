package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutationsOnlyInvalidateQueries(t *testing.T) {
	for _, cmd := range All() {
		if cmd.IsQuery() {
			assert.Empty(t, cmd.Invalidates, cmd.Name)
			continue
		}
		for _, name := range cmd.Invalidates {
			target, ok := Lookup(name)
			require.True(t, ok, "%s invalidates unknown %s", cmd.Name, name)
			assert.True(t, target.IsQuery(), "%s invalidates mutation %s", cmd.Name, name)
		}
	}
}

func TestInvalidates(t *testing.T) {
	assert.Equal(t, Queries(), Invalidates(RefreshApp))
	assert.Equal(t, Queries(), Invalidates(RestoreDatabase))

	assert.Contains(t, Invalidates(CreateLending), GetAllBooks)
	assert.Contains(t, Invalidates(ReturnLending), GetOverdueBooks)
	assert.Contains(t, Invalidates(CreateStudent), GetGradeDistribution)
	assert.Equal(t, []string{ListBackups}, Invalidates(BackupDatabase))
	assert.Empty(t, Invalidates(ExportData))
	assert.Nil(t, Invalidates("no_such_command"))
}

func TestEditsOfDenormalizedFieldsInvalidateLendings(t *testing.T) {
	for _, mutation := range []string{UpdateBook, DeleteBook, UpdateStudent, DeleteStudent} {
		for _, query := range []string{GetAllLendings, GetLendingByID, GetLendingsByBookID, GetLendingsByStudentID} {
			assert.Contains(t, Invalidates(mutation), query, "%s must invalidate %s", mutation, query)
		}
	}
	assert.NotContains(t, Invalidates(CreateBook), GetAllLendings)
}

func TestLookup(t *testing.T) {
	cmd, ok := Lookup(GetLendingsByStudentID)
	require.True(t, ok)
	assert.Equal(t, "get_lending_records_by_student_id", cmd.Name)
	assert.True(t, cmd.IsQuery())

	_, ok = Lookup("greet")
	assert.False(t, ok)

	assert.Len(t, All(), 30)
	assert.Len(t, Queries(), 15)
}
