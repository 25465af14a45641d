package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestMatchTemplate(t *testing.T) {
	tests := []struct {
		rule     string
		phrase   string
		expected string
	}{
		{"entries-count", "count entries in Students", "SELECT COUNT(*) AS entry_count\nFROM Students;"},
		{"unique-values", "list unique Major in Students", "SELECT DISTINCT Major\nFROM Students;"},
		{"sum", "calculate sum of Credits in Courses", "SELECT SUM(Credits) AS total_sum\nFROM Courses;"},
		{"average", "find average of Grade in Enrollments", "SELECT AVG(Grade) AS average_value\nFROM Enrollments;"},
		{"minimum", "find minimum Grade in Enrollments", "SELECT MIN(Grade) AS min_value\nFROM Enrollments;"},
		{"maximum", "maximum Grade in Enrollments", "SELECT MAX(Grade) AS max_value\nFROM Enrollments;"},
		{"distinct-count", "count distinct Major in Students", "SELECT COUNT(DISTINCT Major) AS distinct_count\nFROM Students;"},
		{"equals", "list rows where Major equals 'CS' in Students", "SELECT *\nFROM Students\nWHERE Major = 'CS';"},
		{"greater-than", "find rows where Grade greater than 80 in Enrollments", "SELECT *\nFROM Enrollments\nWHERE Grade > 80;"},
		{"less-than", "rows where Grade less than 60 in Enrollments", "SELECT *\nFROM Enrollments\nWHERE Grade < 60;"},
		{"count-equals", "count rows where Major equals 'CS' in Students", "SELECT COUNT(*) AS row_count\nFROM Students\nWHERE Major = 'CS';"},
		{"top-n", "list top 5 rows in Students", "SELECT *\nFROM Students\nLIMIT 5;"},
		{"top-n-ordered", "list top 3 rows ordered by Grade in Enrollments", "SELECT *\nFROM Enrollments\nORDER BY Grade\nLIMIT 3;"},
		{"total-rows", "count total number of rows in Students", "SELECT COUNT(*)\nFROM Students;"},
		{"starts-with", "List rows where FirstName starts with 'A' in Students", "SELECT *\nFROM Students\nWHERE FirstName LIKE 'A%';"},
		{"count-starts-with", "count rows where FirstName starts with 'A' in Students", "SELECT COUNT(*)\nFROM Students\nWHERE FirstName LIKE 'A%';"},
		{"ends-with", "list rows where FirstName ends with 'a' in Students", "SELECT *\nFROM Students\nWHERE FirstName LIKE '%a';"},
		{"count-ends-with", "Count rows where FirstName ends with 'a' in Students", "SELECT COUNT(*)\nFROM Students\nWHERE FirstName LIKE '%a';"},
		{"range", "calculate range of Credits in Courses", "SELECT MAX(Credits) - MIN(Credits)\nFROM Courses;"},
		{"between", "list rows where Credits value is between 1 and 3 in Courses", "SELECT *\nFROM Courses\nWHERE Credits BETWEEN 1 AND 3;"},
		{"count-between", "count rows where Grade between 50 and 90 in Enrollments", "SELECT COUNT(*)\nFROM Enrollments\nWHERE Grade BETWEEN 50 AND 90;"},
		{"not-equal", "list rows where Credits is not equal to 4 in Courses", "SELECT *\nFROM Courses\nWHERE Credits != 4;"},
		{"count-not-equal", "count rows where Credits is not equal to 4 in Courses", "SELECT COUNT(*)\nFROM Courses\nWHERE Credits != 4;"},
		{"contains", "find rows where FirstName contains 'ar' in Students", "SELECT *\nFROM Students\nWHERE FirstName LIKE '%ar%';"},
		{"count-contains", "count rows where FirstName contains 'ar' in Students", "SELECT COUNT(*)\nFROM Students\nWHERE FirstName LIKE '%ar%';"},
		{"first-n", "list first 10 rows in Courses", "SELECT *\nFROM Courses\nLIMIT 10;"},
		{"is-null", "list rows where Major is null in Students", "SELECT *\nFROM Students\nWHERE Major IS NULL;"},
		{"is-not-null", "list rows where Major is not null in Students", "SELECT *\nFROM Students\nWHERE Major IS NOT NULL;"},
		{"count-is-null", "count rows where Major is null in Students", "SELECT COUNT(*)\nFROM Students\nWHERE Major IS NULL;"},
		{"count-is-not-null", "count rows where Major is not null in Students", "SELECT COUNT(*)\nFROM Students\nWHERE Major IS NOT NULL;"},
		{"in-list", "list rows where Major has any value in ('CS', 'Math') in Students", "SELECT *\nFROM Students\nWHERE Major IN ('CS', 'Math');"},
		{"count-in-list", "count rows where Grade has any value in (90, 95) in Enrollments", "SELECT COUNT(*)\nFROM Enrollments\nWHERE Grade IN (90, 95);"},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			res, ok := Find(tt.phrase)
			require.True(t, ok, "no template matched %q", tt.phrase)
			assert.Equal(t, tt.rule, res.Rule.Name)
			assert.Equal(t, tt.expected, res.SQL)

			sql, ok := MatchTemplate(tt.phrase)
			require.True(t, ok)
			assert.Equal(t, tt.expected, sql)
		})
	}
}

func TestMatchTemplate_WhitespaceInsensitiveShapes(t *testing.T) {
	sql, ok := MatchTemplate("count total number of rows in Students")
	require.True(t, ok)
	assert.Equal(t, "SELECT COUNT(*) FROM Students;", squash(sql))

	sql, ok = MatchTemplate("List rows where FirstName starts with 'A' in Students")
	require.True(t, ok)
	assert.Equal(t, "SELECT * FROM Students WHERE FirstName LIKE 'A%';", squash(sql))
}

func TestMatchTemplate_OrderDecides(t *testing.T) {
	tests := []struct {
		phrase string
		rule   string
	}{
		// "find" is accepted by both the list and count rules; the list rule comes first
		{"find rows where Major equals 'CS' in Students", "equals"},
		{"find rows where Major is null in Students", "is-null"},
		{"find rows where Major has any value in (1) in Students", "in-list"},
		// "rows in" vs "rows ordered by"
		{"top 2 rows ordered by Grade in Enrollments", "top-n-ordered"},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			res, ok := Find(tt.phrase)
			require.True(t, ok)
			assert.Equal(t, tt.rule, res.Rule.Name)
		})
	}
}

func TestMatchTemplate_NoMatch(t *testing.T) {
	for _, phrase := range []string{
		"",
		"drop every table",
		"rows where Grade is bigger than 3",
		"delete rows where Major equals 'CS' in Students",
	} {
		_, ok := MatchTemplate(phrase)
		assert.False(t, ok, phrase)
	}
}

func TestResult_Render(t *testing.T) {
	res, ok := Find("count total number of rows in students.")
	require.True(t, ok)
	assert.Equal(t, "students", res.TableName())
	assert.Equal(t, "SELECT COUNT(*)\nFROM Students;", res.Render("Students"))

	res, ok = Find("list rows where Grade greater than 3 in grades")
	require.True(t, ok)
	assert.Equal(t, "grades", res.TableName())
	assert.Equal(t, "SELECT *\nFROM Grades\nWHERE Grade > 3;", res.Render("Grades"))
}

func TestRules_Ordered(t *testing.T) {
	names := make([]string, len(Rules))
	for i, r := range Rules {
		names[i] = r.Name
	}
	assert.Len(t, names, 32)
	assert.Equal(t, "entries-count", names[0])
	assert.Equal(t, "count-in-list", names[len(names)-1])
}
