package generator

import (
	"fmt"
	"strings"

	"github.com/omniql-engine/chatdb/mapping"
)

const sqlInstructions = `You are an SQL expert. Write one MySQL SELECT statement for the user's request using only the tables and columns in the schema.
Prefer JOINs over subqueries. Respond only with a JSON object of the form {"sql": "<statement>"}.

Example
Request: list Grade, CourseName where grade between 50 and 90
Schema:
courses(CourseID, CourseName, InstructorID, InstructorName, CreditHours)
enrollments(EnrollmentID, StudentID, CourseID, Semester, Grade)
Reply: {"sql": "SELECT enrollments.Grade, courses.CourseName FROM courses JOIN enrollments ON courses.CourseID = enrollments.CourseID WHERE Grade BETWEEN 50 AND 90;"}`

const mongoInstructions = `You are a MongoDB expert. Write one aggregation for the user's request using only the collections and fields in the schema.
Use $lookup and $unwind for data spread over several collections. Respond only with a JSON object of the form {"query": "db.<collection>.aggregate([...])"}.

Example
Request: count students per Major
Schema:
students(StudentID, FirstName, LastName, Major)
Reply: {"query": "db.students.aggregate([{\"$group\": {\"_id\": \"$Major\", \"count\": {\"$sum\": 1}}}])"}`

// BuildPrompt renders the few-shot prompt for req
func BuildPrompt(req Request) string {
	var sb strings.Builder
	if req.Target == mapping.MongoDB {
		sb.WriteString(mongoInstructions)
	} else {
		sb.WriteString(sqlInstructions)
	}

	sb.WriteString("\n\nNow\nRequest: ")
	sb.WriteString(req.Phrase)
	sb.WriteString("\nSchema:\n")
	if req.Schema != nil {
		sb.WriteString(req.Schema.String())
	}
	sb.WriteString(fmt.Sprintf("\nReply with the JSON object only, key %q.", ReplyKey(req.Target)))
	return sb.String()
}
