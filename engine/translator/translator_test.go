package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/chatdb/engine/catalog"
	"github.com/omniql-engine/chatdb/engine/errors"
	"github.com/omniql-engine/chatdb/engine/pipeline"
	"github.com/omniql-engine/chatdb/engine/schema"
)

func university() *schema.Schema {
	return schema.MustNew(
		schema.Table{Name: "courses", Columns: []string{"CourseID", "CourseName", "Credits"}},
		schema.Table{Name: "enrollments", Columns: []string{"EnrollmentID", "StudentID", "CourseID", "Semester", "Grade"}},
		schema.Table{Name: "students", Columns: []string{"StudentID", "FirstName", "LastName", "Major"}},
	)
}

var goldens = []struct {
	name string
	sql  string
	rule string
	want string
}{
	{
		"limit",
		"SELECT * FROM students LIMIT 5;",
		"limit",
		`db.students.aggregate([{"$limit":5}]);`,
	},
	{
		"count between",
		"SELECT COUNT(*) FROM students WHERE Grade BETWEEN 50 AND 90;",
		"count",
		`db.students.aggregate([{"$match":{"Grade":{"$gte":50,"$lte":90}}}, {"$count":"total_count"}]);`,
	},
	{
		"scan",
		"SELECT *\nFROM Students;",
		"scan",
		`db.Students.aggregate([{"$match":{}}]);`,
	},
	{
		"entries count",
		"SELECT COUNT(*) AS entry_count\nFROM Students;",
		"count",
		`db.Students.aggregate([{"$count":"entry_count"}]);`,
	},
	{
		"count with alias and filter",
		"SELECT COUNT(*) AS row_count\nFROM Students\nWHERE Major = 'CS';",
		"count",
		`db.Students.aggregate([{"$match":{"Major":"CS"}}, {"$count":"row_count"}]);`,
	},
	{
		"top n ordered",
		"SELECT *\nFROM Enrollments\nORDER BY Grade\nLIMIT 3;",
		"ordered-limit",
		`db.Enrollments.aggregate([{"$sort":{"Grade":1}}, {"$limit":3}]);`,
	},
	{
		"order desc with offset",
		"SELECT * FROM Enrollments ORDER BY Grade DESC LIMIT 2 OFFSET 4;",
		"ordered-limit",
		`db.Enrollments.aggregate([{"$sort":{"Grade":-1}}, {"$skip":4}, {"$limit":2}]);`,
	},
	{
		"distinct",
		"SELECT DISTINCT Major\nFROM Students;",
		"distinct",
		`db.Students.aggregate([{"$group":{"_id":"$Major"}}, {"$project":{"_id":0,"Major":"$_id"}}]);`,
	},
	{
		"sum",
		"SELECT SUM(Credits) AS total_sum\nFROM Courses;",
		"aggregate",
		`db.Courses.aggregate([{"$group":{"_id":null,"total_sum":{"$sum":"$Credits"}}}, {"$project":{"_id":0,"total_sum":1}}]);`,
	},
	{
		"max default alias",
		"SELECT MAX(Grade) FROM Enrollments;",
		"aggregate",
		`db.Enrollments.aggregate([{"$group":{"_id":null,"max_value":{"$max":"$Grade"}}}, {"$project":{"_id":0,"max_value":1}}]);`,
	},
	{
		"count distinct",
		"SELECT COUNT(DISTINCT Major) AS distinct_count\nFROM Students;",
		"count-distinct",
		`db.Students.aggregate([{"$match":{"Major":{"$exists":true,"$ne":null}}}, {"$group":{"_id":"$Major"}}, {"$count":"distinct_count"}]);`,
	},
	{
		"count column",
		"SELECT COUNT(Major) FROM Students;",
		"count",
		`db.Students.aggregate([{"$match":{"Major":{"$exists":true,"$ne":null}}}, {"$count":"total_count"}]);`,
	},
	{
		"range",
		"SELECT MAX(Credits) - MIN(Credits)\nFROM Courses;",
		"range",
		`db.Courses.aggregate([{"$group":{"_id":null,"max_value":{"$max":"$Credits"},"min_value":{"$min":"$Credits"}}}, {"$project":{"_id":0,"range":{"$subtract":["$max_value","$min_value"]}}}]);`,
	},
	{
		"starts with",
		"SELECT *\nFROM Students\nWHERE FirstName LIKE 'A%';",
		"filter",
		`db.Students.aggregate([{"$match":{"FirstName":{"$regex":"^A","$options":"i"}}}]);`,
	},
	{
		"ends with",
		"SELECT COUNT(*)\nFROM Students\nWHERE FirstName LIKE '%a';",
		"count",
		`db.Students.aggregate([{"$match":{"FirstName":{"$regex":"a$","$options":"i"}}}, {"$count":"total_count"}]);`,
	},
	{
		"contains",
		"SELECT *\nFROM Students\nWHERE FirstName LIKE '%ar%';",
		"filter",
		`db.Students.aggregate([{"$match":{"FirstName":{"$regex":"ar","$options":"i"}}}]);`,
	},
	{
		"not equal",
		"SELECT *\nFROM Courses\nWHERE Credits != 4;",
		"filter",
		`db.Courses.aggregate([{"$match":{"Credits":{"$ne":4}}}]);`,
	},
	{
		"is null",
		"SELECT *\nFROM Students\nWHERE Major IS NULL;",
		"filter",
		`db.Students.aggregate([{"$match":{"Major":{"$eq":null}}}]);`,
	},
	{
		"is not null",
		"SELECT *\nFROM Students\nWHERE Major IS NOT NULL;",
		"filter",
		`db.Students.aggregate([{"$match":{"Major":{"$exists":true,"$ne":null}}}]);`,
	},
	{
		"in strings",
		"SELECT *\nFROM Students\nWHERE Major IN ('CS', 'Math');",
		"filter",
		`db.Students.aggregate([{"$match":{"Major":{"$in":["CS","Math"]}}}]);`,
	},
	{
		"in numbers",
		"SELECT COUNT(*)\nFROM Enrollments\nWHERE Grade IN (90, 95);",
		"count",
		`db.Enrollments.aggregate([{"$match":{"Grade":{"$in":[90,95]}}}, {"$count":"total_count"}]);`,
	},
	{
		"projection",
		"SELECT FirstName, Major AS field FROM Students WHERE Grade > 3.5;",
		"filter",
		`db.Students.aggregate([{"$match":{"Grade":{"$gt":3.5}}}, {"$project":{"_id":0,"FirstName":1,"field":"$Major"}}]);`,
	},
	{
		"or",
		"SELECT * FROM Students WHERE Major = 'CS' OR Major = 'Math';",
		"filter",
		`db.Students.aggregate([{"$match":{"$or":[{"Major":"CS"},{"Major":"Math"}]}}]);`,
	},
	{
		"group count",
		"SELECT Major, COUNT(*) AS n FROM Students GROUP BY Major ORDER BY n DESC;",
		"group",
		`db.Students.aggregate([{"$group":{"_id":"$Major","n":{"$sum":1}}}, {"$project":{"_id":0,"Major":"$_id","n":1}}, {"$sort":{"n":-1}}]);`,
	},
	{
		"group avg",
		"SELECT Major, AVG(Grade) FROM Students GROUP BY Major;",
		"group",
		`db.Students.aggregate([{"$group":{"_id":"$Major","average_value":{"$avg":"$Grade"}}}, {"$project":{"_id":0,"Major":"$_id","average_value":1}}]);`,
	},
	{
		"join",
		"SELECT enrollments.Grade, students.Major\nFROM enrollments\nJOIN students ON enrollments.StudentID = students.StudentID\nWHERE Grade IS NOT NULL;",
		"join",
		`db.enrollments.aggregate([{"$lookup":{"from":"students","localField":"StudentID","foreignField":"StudentID","as":"students"}}, {"$unwind":"$students"}, {"$match":{"Grade":{"$exists":true,"$ne":null}}}, {"$project":{"_id":0,"Grade":1,"Major":"$students.Major"}}]);`,
	},
	{
		"join in filter",
		"SELECT enrollments.Grade, students.Major FROM enrollments JOIN students ON enrollments.StudentID = students.StudentID WHERE students.Major NOT IN ('CS', 'Art');",
		"join",
		`db.enrollments.aggregate([{"$lookup":{"from":"students","localField":"StudentID","foreignField":"StudentID","as":"students"}}, {"$unwind":"$students"}, {"$match":{"students.Major":{"$nin":["CS","Art"]}}}, {"$project":{"_id":0,"Grade":1,"Major":"$students.Major"}}]);`,
	},
	{
		"left join count",
		"SELECT COUNT(*) FROM students LEFT JOIN enrollments ON enrollments.StudentID = students.StudentID;",
		"join",
		`db.students.aggregate([{"$lookup":{"from":"enrollments","localField":"StudentID","foreignField":"StudentID","as":"enrollments"}}, {"$unwind":{"path":"$enrollments","preserveNullAndEmptyArrays":true}}, {"$count":"total_count"}]);`,
	},
}

func TestSQLToMongo_Goldens(t *testing.T) {
	tr := New()
	for _, tt := range goldens {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tr.Translate(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.rule, res.Rule)
			assert.Equal(t, tt.want, res.Query)

			query, err := SQLToMongo(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.want, query)
		})
	}
}

func TestSQLToMongo_ParserIdempotence(t *testing.T) {
	tr := New()
	for _, tt := range goldens {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tr.Translate(tt.sql)
			require.NoError(t, err)

			collection, stages, err := pipeline.Extract(res.Query)
			require.NoError(t, err)
			assert.Equal(t, res.Collection, collection)
			assert.Len(t, stages, len(res.Pipeline))

			again, err := Render(collection, stages)
			require.NoError(t, err)
			assert.Equal(t, res.Query, again)
		})
	}
}

func TestSQLToMongo_UnquotedTemplateValues(t *testing.T) {
	tests := []struct {
		phrase   string
		expected string
	}{
		{
			"list rows where Major equals CS in students",
			`db.students.aggregate([{"$match":{"Major":"CS"}}]);`,
		},
		{
			"count rows where Major equals CS in students",
			`db.students.aggregate([{"$match":{"Major":"CS"}}, {"$count":"row_count"}]);`,
		},
		{
			"find rows where Major is not equal to Math in students",
			`db.students.aggregate([{"$match":{"Major":{"$ne":"Math"}}}]);`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			sql, ok := catalog.MatchTemplate(tt.phrase)
			require.True(t, ok)

			mongo, err := SQLToMongo(sql)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mongo)
		})
	}
}

func TestTranslator_WithSchemaQualifiesJoinColumns(t *testing.T) {
	sql := "SELECT Grade, Major FROM enrollments JOIN students ON enrollments.StudentID = students.StudentID WHERE Major = 'CS' AND Grade > 80;"

	res, err := New(WithSchema(university())).Translate(sql)
	require.NoError(t, err)
	assert.Equal(t,
		`db.enrollments.aggregate([{"$lookup":{"from":"students","localField":"StudentID","foreignField":"StudentID","as":"students"}}, {"$unwind":"$students"}, {"$match":{"students.Major":"CS","Grade":{"$gt":80}}}, {"$project":{"_id":0,"Grade":1,"Major":"$students.Major"}}]);`,
		res.Query)

	// without a schema unqualified columns stay on the base document
	res, err = New().Translate(sql)
	require.NoError(t, err)
	assert.Contains(t, res.Query, `{"$match":{"Major":"CS","Grade":{"$gt":80}}}`)
}

func TestTranslator_JoinNameCollision(t *testing.T) {
	sql := "SELECT enrollments.StudentID, students.StudentID FROM enrollments JOIN students ON enrollments.StudentID = students.StudentID;"
	res, err := New().Translate(sql)
	require.NoError(t, err)
	assert.Contains(t, res.Query, `{"$project":{"_id":0,"StudentID":1,"students_StudentID":"$students.StudentID"}}`)

	sql = "SELECT students.StudentID, StudentID FROM enrollments JOIN students ON enrollments.StudentID = students.StudentID;"
	res, err = New().Translate(sql)
	require.NoError(t, err)
	assert.Contains(t, res.Query, `{"$project":{"_id":0,"StudentID":"$students.StudentID","enrollments_StudentID":1}}`)
}

func TestTranslator_JoinChain(t *testing.T) {
	sql := `SELECT students.FirstName, courses.CourseName FROM students
		JOIN enrollments ON students.StudentID = enrollments.StudentID
		JOIN courses ON enrollments.CourseID = courses.CourseID;`
	res, err := New().Translate(sql)
	require.NoError(t, err)
	require.Len(t, res.Pipeline, 5)
	assert.Equal(t,
		`db.students.aggregate([{"$lookup":{"from":"enrollments","localField":"StudentID","foreignField":"StudentID","as":"enrollments"}}, {"$unwind":"$enrollments"}, {"$lookup":{"from":"courses","localField":"enrollments.CourseID","foreignField":"CourseID","as":"courses"}}, {"$unwind":"$courses"}, {"$project":{"_id":0,"FirstName":1,"CourseName":"$courses.CourseName"}}]);`,
		res.Query)
}

func TestSQLToMongo_Unsupported(t *testing.T) {
	for _, sql := range []string{
		"DELETE FROM students;",
		"SELECT Major, Grade, COUNT(*) FROM Students;",
		"SELECT Major, Grade, COUNT(*) FROM Students GROUP BY Major;",
		"SELECT * FROM a RIGHT JOIN b ON a.id = b.id;",
		"not sql at all",
	} {
		_, err := SQLToMongo(sql)
		require.Error(t, err, sql)
		assert.True(t, errors.IsKind(err, errors.KindUnsupportedQueryFormat), sql)
		assert.ErrorIs(t, err, errors.ErrUnsupportedQueryFormat)
		assert.Contains(t, err.Error(), sql)
	}
}
