package chatdb

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/omniql-engine/chatdb/engine/cache"
	"github.com/omniql-engine/chatdb/engine/errors"
	"github.com/omniql-engine/chatdb/engine/generator"
	"github.com/omniql-engine/chatdb/engine/schema"
	"github.com/omniql-engine/chatdb/internal/config"
	"github.com/omniql-engine/chatdb/mapping"
)

func university() *schema.Schema {
	return schema.MustNew(
		schema.Table{Name: "courses", Columns: []string{"CourseID", "CourseName", "Credits"}},
		schema.Table{Name: "enrollments", Columns: []string{"EnrollmentID", "StudentID", "CourseID", "Semester", "Grade"}},
		schema.Table{Name: "students", Columns: []string{"StudentID", "FirstName", "LastName", "Major"}},
	)
}

// scripted returns replies in order and counts calls
func scripted(calls *int32, replies ...string) generator.Generator {
	return generator.Func(func(_ context.Context, _ generator.Request) (string, error) {
		n := atomic.AddInt32(calls, 1)
		i := int(n) - 1
		if i >= len(replies) {
			i = len(replies) - 1
		}
		return replies[i], nil
	})
}

func TestTranslate_TemplateMySQL(t *testing.T) {
	res, err := New().Translate(context.Background(), "find entries in student", university(), "mysql")
	require.NoError(t, err)

	assert.Equal(t, SourceTemplate, res.Source)
	assert.Equal(t, "entries-count", res.Rule)
	assert.Equal(t, mapping.MySQL, res.Target)
	assert.Equal(t, "SELECT COUNT(*) AS entry_count\nFROM students;", res.SQL)
	assert.Equal(t, res.SQL, res.Query())
	assert.Empty(t, res.Mongo)
	assert.NotEqual(t, uuid.Nil, res.ID)
}

func TestTranslate_TemplateWithoutSchema(t *testing.T) {
	res, err := New().Translate(context.Background(), "Find top 3 rows in Students.", nil, mapping.MySQL)
	require.NoError(t, err)
	assert.Equal(t, "top-n", res.Rule)
	assert.Equal(t, "SELECT *\nFROM Students\nLIMIT 3;", res.SQL)
}

func TestTranslate_TemplateMongoDB(t *testing.T) {
	res, err := New().Translate(context.Background(), "count entries in Students", university(), mapping.MongoDB)
	require.NoError(t, err)

	assert.Equal(t, SourceTemplate, res.Source)
	assert.Equal(t, "entries-count", res.Rule)
	assert.Equal(t, "SELECT COUNT(*) AS entry_count\nFROM students;", res.SQL)
	assert.Equal(t, `db.students.aggregate([{"$count":"entry_count"}]);`, res.Mongo)
	assert.Equal(t, res.Mongo, res.Query())
	assert.Equal(t, "students", res.Collection)
	assert.Len(t, res.Pipeline, 1)
}

func TestTranslate_Join(t *testing.T) {
	e := New()
	ctx := context.Background()

	res, err := e.Translate(ctx, "get Grade, Major where Grade > 80", university(), mapping.MySQL)
	require.NoError(t, err)
	assert.Equal(t, SourceJoin, res.Source)
	assert.Equal(t, "SELECT enrollments.Grade, students.Major\n"+
		"FROM enrollments\n"+
		"JOIN students ON enrollments.StudentID = students.StudentID\n"+
		"WHERE Grade > 80;", res.SQL)

	res, err = e.Translate(ctx, "get Grade, Major where Grade > 80", university(), mapping.MongoDB)
	require.NoError(t, err)
	assert.Equal(t, SourceJoin, res.Source)
	assert.Equal(t, "join", res.Rule)
	assert.Equal(t, "enrollments", res.Collection)
	assert.Equal(t, `db.enrollments.aggregate([{"$lookup":{"from":"students","localField":"StudentID","foreignField":"StudentID","as":"students"}}, `+
		`{"$unwind":"$students"}, {"$match":{"Grade":{"$gt":80}}}, {"$project":{"_id":0,"Grade":1,"Major":"$students.Major"}}]);`, res.Mongo)
}

func TestTranslate_JoinErrorWithoutGenerator(t *testing.T) {
	_, err := New().Translate(context.Background(), "get FirstName, CourseName where FirstName = 'Ann' and Credits > 3", university(), mapping.MySQL)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNoJoinKey), "got %v", err)
}

func TestTranslate_JoinErrorFallsBackToGenerator(t *testing.T) {
	var calls int32
	e := New(WithGenerator(scripted(&calls, "SELECT students.FirstName FROM students WHERE FirstName = 'Ann';")))

	res, err := e.Translate(context.Background(), "get FirstName, CourseName where FirstName = 'Ann' and Credits > 3", university(), mapping.MySQL)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerator, res.Source)
	assert.Equal(t, int32(1), calls)
}

func TestTranslate_NoMatchWithoutGenerator(t *testing.T) {
	_, err := New().Translate(context.Background(), "who studies the most", university(), mapping.MySQL)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedQueryFormat))
	assert.NotEmpty(t, errors.Suggestions(err))
}

func TestTranslate_InvalidInput(t *testing.T) {
	_, err := New().Translate(context.Background(), "find entries in students", nil, "Oracle")
	assert.True(t, errors.IsKind(err, errors.KindConfig))

	_, err = New().Translate(context.Background(), "   ", nil, mapping.MySQL)
	assert.True(t, errors.IsKind(err, errors.KindInvalidQueryFormat))
}

func TestTranslate_GeneratorRetriesUntilValid(t *testing.T) {
	var calls int32
	core, logs := observer.New(zap.DebugLevel)
	e := New(
		WithGenerator(scripted(&calls,
			"DELETE FROM students;",
			"SELECT FirstName FROM students WHERE Major = 'CS';",
		)),
		WithLogger(zap.New(core)),
	)

	res, err := e.Translate(context.Background(), "who studies CS", university(), mapping.MySQL)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerator, res.Source)
	assert.Equal(t, "SELECT FirstName FROM students WHERE Major = 'CS';", res.SQL)
	assert.Equal(t, int32(2), calls)

	assert.Equal(t, 1, logs.FilterMessage("generator attempt failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("translated").Len())
}

func TestTranslate_GeneratorMongoDB(t *testing.T) {
	var calls int32
	e := New(WithGenerator(scripted(&calls, `db.students.aggregate([{"$match": {"Major": "CS"}}])`)))

	res, err := e.Translate(context.Background(), "who studies CS", university(), mapping.MongoDB)
	require.NoError(t, err)
	assert.Equal(t, SourceGenerator, res.Source)
	assert.Empty(t, res.SQL)
	assert.Equal(t, "students", res.Collection)
	assert.Equal(t, `db.students.aggregate([{"$match":{"Major":"CS"}}]);`, res.Mongo)
}

func TestTranslate_GeneratorExhausted(t *testing.T) {
	var calls int32
	gen := generator.Func(func(context.Context, generator.Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New(errors.KindGenerationFailed, "model unavailable")
	})
	e := New(WithGenerator(gen), WithMaxAttempts(4))

	_, err := e.Translate(context.Background(), "who studies CS", university(), mapping.MySQL)
	require.Error(t, err)
	assert.Equal(t, int32(4), calls)
	assert.ErrorIs(t, err, errors.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "after 4 attempts")

	var structured *errors.Error
	require.True(t, stderrors.As(err, &structured))
	assert.Len(t, multierr.Errors(structured.Cause), 4)
}

func TestTranslate_GeneratorStopsOnCancel(t *testing.T) {
	var calls int32
	e := New(WithGenerator(scripted(&calls, "SELECT 1")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Translate(ctx, "who studies CS", university(), mapping.MySQL)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindGenerationFailed))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls)
}

func TestTranslate_Cache(t *testing.T) {
	var calls int32
	mem := cache.NewMemory(0)
	e := New(WithCache(mem), WithGenerator(scripted(&calls, `db.students.aggregate([{"$limit": 2}])`)))
	ctx := context.Background()

	first, err := e.Translate(ctx, "two students please", university(), mapping.MongoDB)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, mem.Len())

	second, err := e.Translate(ctx, "two students please", university(), mapping.MongoDB)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Source, second.Source)
	assert.Equal(t, first.Mongo, second.Mongo)
	assert.Equal(t, first.Collection, second.Collection)
	assert.Len(t, second.Pipeline, 1)
	assert.Equal(t, int32(1), calls)

	// another target misses
	_, err = e.Translate(ctx, "find entries in students", university(), mapping.MySQL)
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Len())
}

func TestTranslate_CorruptCacheEntry(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemory(0)
	s := university()
	key := cache.Key(mapping.MySQL, "find entries in students", s)
	require.NoError(t, mem.Set(ctx, key, []byte("not json")))

	res, err := New(WithCache(mem)).Translate(ctx, "find entries in students", s, mapping.MySQL)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "SELECT COUNT(*) AS entry_count\nFROM students;", res.SQL)

	data, ok, err := mem.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), `"source":"template"`)
}

func TestFromConfig(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	e, closeFn, err := FromConfig(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.IsType(t, &cache.Memory{}, e.cache)
	assert.Nil(t, e.generator)
	assert.Equal(t, DefaultMaxAttempts, e.maxAttempts)

	cfg.Generator.Provider = generator.ProviderOpenAI
	cfg.Generator.APIKey = "sk-test"
	cfg.Cache.Backend = "none"
	cfg.Engine.MaxAttempts = 5
	e, _, err = FromConfig(ctx, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &generator.Client{}, e.generator)
	assert.IsType(t, cache.Nop{}, e.cache)
	assert.Equal(t, 5, e.maxAttempts)

	cfg.Generator.APIKey = ""
	_, _, err = FromConfig(ctx, cfg, nil)
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestFromConfig_RedisUnavailable(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cfg := config.Default()
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	e, closeFn, err := FromConfig(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.IsType(t, cache.Nop{}, e.cache)
	assert.Equal(t, 1, logs.FilterMessage("redis cache unavailable, continuing without cache").Len())
}
