package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/chatdb/engine/errors"
)

func school() *Schema {
	return MustNew(
		Table{Name: "Students", Columns: []string{"ID", "Name", "Major"}},
		Table{Name: "Grades", Columns: []string{"ID", "Course", "Grade"}},
	)
}

func TestNew_RejectsDuplicates(t *testing.T) {
	tests := []struct {
		name   string
		tables []Table
	}{
		{"duplicate table", []Table{{Name: "A"}, {Name: "A"}}},
		{"duplicate column", []Table{{Name: "A", Columns: []string{"x", "x"}}}},
		{"empty name", []Table{{Name: ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tables...)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindValidation))
		})
	}
}

func TestColumnIndex_OwnerFollowsSchemaOrder(t *testing.T) {
	idx := school().Index()

	owner, ok := idx.Owner("ID")
	require.True(t, ok)
	assert.Equal(t, "Students", owner)
	assert.Equal(t, []string{"Students", "Grades"}, idx.Tables("ID"))

	owner, ok = idx.Owner("Grade")
	require.True(t, ok)
	assert.Equal(t, "Grades", owner)

	_, ok = idx.Owner("Age")
	assert.False(t, ok)
	assert.False(t, idx.Has("grade"))
}

func TestFromMap_SortsTables(t *testing.T) {
	s, err := FromMap(map[string][]string{
		"zeta":  {"b", "a"},
		"alpha": {"x"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, s.Names())

	zeta, ok := s.Table("zeta")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, zeta.Columns)
}

func TestResolveTable(t *testing.T) {
	s := school()

	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"Students", "Students", true},
		{"students", "Students", true},
		{"student", "Students", true},
		{" grade ", "Grades", true},
		{"Teachers", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := s.ResolveTable(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSchema_String(t *testing.T) {
	assert.Equal(t, "Students(ID, Name, Major)\nGrades(ID, Course, Grade)", school().String())
}
