// Package chatdb turns natural-language questions into MySQL statements or
// MongoDB aggregation pipelines.
//
// Phrases that name columns of more than one table go through the join
// resolver, simple single-table phrases through the template catalog, and
// everything else through an optional model-backed generator. MongoDB
// output is derived from the SQL by the translator.
package chatdb

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/omniql-engine/chatdb/engine/cache"
	"github.com/omniql-engine/chatdb/engine/catalog"
	"github.com/omniql-engine/chatdb/engine/errors"
	"github.com/omniql-engine/chatdb/engine/generator"
	"github.com/omniql-engine/chatdb/engine/pipeline"
	"github.com/omniql-engine/chatdb/engine/resolver"
	"github.com/omniql-engine/chatdb/engine/schema"
	"github.com/omniql-engine/chatdb/engine/translator"
	"github.com/omniql-engine/chatdb/engine/validator"
	"github.com/omniql-engine/chatdb/mapping"
)

// DefaultMaxAttempts bounds generator retries per phrase
const DefaultMaxAttempts = 3

// Source names the path that produced a query
type Source string

const (
	SourceJoin      Source = "join"
	SourceTemplate  Source = "template"
	SourceGenerator Source = "generator"
)

// Result is one translated phrase
type Result struct {
	ID         uuid.UUID
	Phrase     string
	Target     string
	Source     Source
	Rule       string // catalog rule, or the translator rule for MongoDB joins
	SQL        string // empty when the generator answered in MongoDB syntax directly
	Mongo      string // db.<collection>.aggregate([...]); MongoDB target only
	Collection string
	Pipeline   mongo.Pipeline
	Cached     bool
}

// Query returns the statement to run against the target
func (r *Result) Query() string {
	if r.Target == mapping.MongoDB {
		return r.Mongo
	}
	return r.SQL
}

// ============================================================================
// ENGINE
// ============================================================================

// Engine translates phrases. It is safe for concurrent use.
type Engine struct {
	generator   generator.Generator
	cache       cache.Cache
	logger      *zap.Logger
	maxAttempts int
}

// Option configures an Engine
type Option func(*Engine)

// WithGenerator enables the model fallback
func WithGenerator(g generator.Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithCache stores translations by phrase fingerprint
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithLogger sets the logger; the default discards
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMaxAttempts sets how often the generator is asked before giving up
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// New creates an Engine. Without options only the join and template paths
// are available and nothing is cached.
func New(opts ...Option) *Engine {
	e := &Engine{
		cache:       cache.Nop{},
		logger:      zap.NewNop(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Translate turns phrase into a query for target (MySQL or MongoDB). The
// schema may be nil, which disables join detection and table name
// canonicalization.
func (e *Engine) Translate(ctx context.Context, phrase string, s *schema.Schema, target string) (*Result, error) {
	canonical, ok := mapping.NormalizeDatabase(target)
	if !ok {
		return nil, errors.Newf(errors.KindConfig, "unsupported target database: %s", target).
			WithSuggestion("use " + strings.Join(mapping.SupportedDatabases, " or "))
	}
	target = canonical

	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, errors.New(errors.KindInvalidQueryFormat, "empty phrase")
	}

	key := cache.Key(target, phrase, s)
	if res, ok := e.lookup(ctx, key, phrase, target); ok {
		return res, nil
	}

	res, err := e.translate(ctx, phrase, s, target)
	if err != nil {
		e.logger.Debug("translation failed",
			zap.String("phrase", phrase),
			zap.String("target", target),
			zap.Error(err))
		return nil, err
	}
	res.ID = uuid.New()

	e.logger.Debug("translated",
		zap.Stringer("id", res.ID),
		zap.String("source", string(res.Source)),
		zap.String("rule", res.Rule),
		zap.String("target", target))

	e.store(ctx, key, res)
	return res, nil
}

func (e *Engine) translate(ctx context.Context, phrase string, s *schema.Schema, target string) (*Result, error) {
	res := &Result{Phrase: phrase, Target: target}

	if s != nil && resolver.NeedsJoin(phrase, s) {
		sql, err := resolver.ResolveJoin(phrase, s)
		if err == nil {
			res.Source = SourceJoin
			res.SQL = sql
			return e.finish(res, s)
		}
		if e.generator == nil {
			return nil, err
		}
		e.logger.Debug("join resolution failed, falling back to generator", zap.Error(err))
	} else if match, ok := catalog.Find(phrase); ok {
		res.Source = SourceTemplate
		res.Rule = match.Rule.Name
		res.SQL = match.SQL
		if s != nil {
			if table, ok := s.ResolveTable(match.TableName()); ok {
				res.SQL = match.Render(table)
			}
		}
		return e.finish(res, s)
	}

	if e.generator == nil {
		return nil, errors.New(errors.KindUnsupportedQueryFormat, "no template matches the phrase").
			WithSuggestion("configure a generator provider for free-form questions")
	}
	return e.generate(ctx, res, s)
}

// generate asks the generator until its output validates
func (e *Engine) generate(ctx context.Context, res *Result, s *schema.Schema) (*Result, error) {
	req := generator.Request{Phrase: res.Phrase, Schema: s, Target: res.Target}

	var errs error
	attempts := 0
	for attempts < e.maxAttempts {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		attempts++

		query, err := e.generator.Generate(ctx, req)
		if err == nil {
			err = validator.Validate(query, res.Target)
		}
		if err == nil {
			res.Source = SourceGenerator
			if res.Target == mapping.MongoDB {
				err = e.adoptMongo(res, query)
			} else {
				res.SQL = query
			}
		}
		if err == nil {
			return res, nil
		}

		e.logger.Warn("generator attempt failed",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", e.maxAttempts),
			zap.Error(err))
		errs = multierr.Append(errs, err)
	}

	return nil, errors.Wrapf(errs, errors.KindGenerationFailed,
		"could not generate a valid query after %d attempts", attempts)
}

// finish derives the MongoDB pipeline from res.SQL when targeting MongoDB
func (e *Engine) finish(res *Result, s *schema.Schema) (*Result, error) {
	if res.Target != mapping.MongoDB {
		return res, nil
	}
	tr, err := translator.New(translator.WithSchema(s)).Translate(res.SQL)
	if err != nil {
		return nil, err
	}
	res.Mongo = tr.Query
	res.Collection = tr.Collection
	res.Pipeline = tr.Pipeline
	if res.Rule == "" {
		res.Rule = tr.Rule
	}
	return res, nil
}

func (e *Engine) adoptMongo(res *Result, query string) error {
	collection, stages, err := pipeline.Extract(query)
	if err != nil {
		return err
	}
	rendered, err := translator.Render(collection, stages)
	if err != nil {
		return err
	}
	res.Mongo = rendered
	res.Collection = collection
	res.Pipeline = stages
	return nil
}

// ============================================================================
// CACHE
// ============================================================================

type cacheEntry struct {
	Source Source `json:"source"`
	Rule   string `json:"rule,omitempty"`
	SQL    string `json:"sql,omitempty"`
	Mongo  string `json:"mongo,omitempty"`
}

func (e *Engine) lookup(ctx context.Context, key, phrase, target string) (*Result, bool) {
	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		e.logger.Warn("dropping unreadable cache entry", zap.String("key", key), zap.Error(err))
		_ = e.cache.Delete(ctx, key)
		return nil, false
	}

	res := &Result{
		ID:     uuid.New(),
		Phrase: phrase,
		Target: target,
		Source: entry.Source,
		Rule:   entry.Rule,
		SQL:    entry.SQL,
		Cached: true,
	}
	if entry.Mongo != "" {
		if err := e.adoptMongo(res, entry.Mongo); err != nil {
			e.logger.Warn("dropping unreadable cache entry", zap.String("key", key), zap.Error(err))
			_ = e.cache.Delete(ctx, key)
			return nil, false
		}
	}

	e.logger.Debug("cache hit", zap.Stringer("id", res.ID), zap.String("source", string(res.Source)))
	return res, true
}

func (e *Engine) store(ctx context.Context, key string, res *Result) {
	data, err := json.Marshal(cacheEntry{Source: res.Source, Rule: res.Rule, SQL: res.SQL, Mongo: res.Mongo})
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, data); err != nil {
		e.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
