package translator

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	mongobuilders "github.com/omniql-engine/chatdb/engine/builders/mongodb"
	"github.com/omniql-engine/chatdb/engine/errors"
	"github.com/omniql-engine/chatdb/engine/models"
	"github.com/omniql-engine/chatdb/engine/reverse"
	"github.com/omniql-engine/chatdb/engine/schema"
	"github.com/omniql-engine/chatdb/mapping"
)

// Translation is a SQL statement rewritten as an aggregation pipeline
type Translation struct {
	SQL        string         // input statement
	Rule       string         // name of the rule that produced the pipeline
	Collection string         // FROM table
	Pipeline   mongo.Pipeline // stages in execution order
	Query      string         // db.<collection>.aggregate([...]);
}

// Translator converts generated SQL into MongoDB aggregate calls. A schema is
// optional; with one, unqualified columns of a join resolve to their table.
type Translator struct {
	schema *schema.Schema
}

// Option configures a Translator
type Option func(*Translator)

// WithSchema attaches a schema used to qualify join columns
func WithSchema(s *schema.Schema) Option {
	return func(t *Translator) {
		t.schema = s
	}
}

// New creates a Translator
func New(opts ...Option) *Translator {
	t := &Translator{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SQLToMongo translates sql without a schema and returns the aggregate call string
func SQLToMongo(sql string) (string, error) {
	tr, err := New().Translate(sql)
	if err != nil {
		return "", err
	}
	return tr.Query, nil
}

// Translate parses sql and runs it through the rule table
func (t *Translator) Translate(sql string) (*Translation, error) {
	stmt, err := reverse.ToStatement(sql, mapping.MySQL)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnsupportedQueryFormat, "Unsupported SQL query format: %s", sql)
	}
	return t.TranslateStatement(sql, stmt)
}

// TranslateStatement runs an already parsed statement through the rule table
func (t *Translator) TranslateStatement(sql string, stmt *models.Statement) (*Translation, error) {
	sc := newScope(stmt, t.schema)
	for _, r := range rules {
		if !r.match(stmt) {
			continue
		}
		pipeline, err := r.build(sc, stmt)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindUnsupportedQueryFormat, "Unsupported SQL query format: %s", sql)
		}
		query, err := Render(stmt.Table, pipeline)
		if err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "failed to render pipeline")
		}
		return &Translation{
			SQL:        sql,
			Rule:       r.name,
			Collection: stmt.Table,
			Pipeline:   pipeline,
			Query:      query,
		}, nil
	}
	return nil, errors.Newf(errors.KindUnsupportedQueryFormat, "Unsupported SQL query format: %s", sql)
}

// ============================================================================
// QUERY STRING BUILDER
// ============================================================================

// Render formats a pipeline as db.<collection>.aggregate([<stage>, ...]);
// Stages are written as relaxed extended JSON.
func Render(collection string, pipeline mongo.Pipeline) (string, error) {
	stages := make([]string, 0, len(pipeline))
	for _, stage := range pipeline {
		b, err := bson.MarshalExtJSON(stage, false, false)
		if err != nil {
			return "", fmt.Errorf("stage %v: %w", stage, err)
		}
		stages = append(stages, string(b))
	}
	return fmt.Sprintf("db.%s.aggregate([%s]);", collection, strings.Join(stages, ", ")), nil
}

// ============================================================================
// FIELD SCOPE
// ============================================================================

// scope maps SQL columns onto document paths. Columns of a joined table
// live under the table's name after $unwind.
type scope struct {
	base   string
	joined map[string]string // lower-case name -> joined table
	schema *schema.Schema
}

func newScope(stmt *models.Statement, s *schema.Schema) *scope {
	sc := &scope{base: stmt.Table, joined: make(map[string]string), schema: s}
	for _, j := range stmt.Joins {
		sc.joined[strings.ToLower(j.Table)] = j.Table
	}
	return sc
}

// owner returns the table a column belongs to, or "" for the base table
func (sc *scope) owner(c models.Column) string {
	if len(sc.joined) == 0 {
		return ""
	}
	if c.Table != "" {
		if t, ok := sc.joined[strings.ToLower(c.Table)]; ok && !strings.EqualFold(c.Table, sc.base) {
			return t
		}
		return ""
	}
	if sc.schema == nil {
		return ""
	}
	tables := sc.schema.Index().Tables(c.Name)
	for _, t := range tables {
		if strings.EqualFold(t, sc.base) {
			return ""
		}
	}
	for _, t := range tables {
		if j, ok := sc.joined[strings.ToLower(t)]; ok {
			return j
		}
	}
	return ""
}

// field is the FieldNamer used while building stages
func (sc *scope) field(c models.Column) string {
	if t := sc.owner(c); t != "" {
		return t + "." + c.Name
	}
	return mongobuilders.PlainName(c)
}
