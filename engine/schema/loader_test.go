package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/chatdb/engine/errors"
)

func TestLoad_PreservesOrder(t *testing.T) {
	for _, path := range []string{"testdata/school.yaml", "testdata/school.json"} {
		t.Run(path, func(t *testing.T) {
			s, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, []string{"Students", "Grades"}, s.Names())

			grades, ok := s.Table("Grades")
			require.True(t, ok)
			assert.Equal(t, []string{"ID", "Course", "Grade"}, grades.Columns)
		})
	}
}

func TestParse_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"bare mapping", "b: [x]\na: [y]\n", []string{"b", "a"}},
		{"collections wrapper", "collections:\n  orders: [total]\n", []string{"orders"}},
		{"table list", "- name: t1\n  columns: [c]\n- name: t2\n  columns: [d]\n", []string{"t1", "t2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s.Names())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"scalar", "just text"},
		{"columns not a list", "t: {a: 1}"},
		{"duplicate column", "t: [a, a]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestFromCSVDir(t *testing.T) {
	s, err := FromCSVDir("testdata/csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"Grades", "Students"}, s.Names())

	students, ok := s.Table("Students")
	require.True(t, ok)
	assert.Equal(t, []string{"ID", "Name", "Major"}, students.Columns)
}

func TestFromCSVDir_Empty(t *testing.T) {
	_, err := FromCSVDir(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}
