package translator

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	mongobuilders "github.com/omniql-engine/chatdb/engine/builders/mongodb"
	"github.com/omniql-engine/chatdb/engine/models"
	"github.com/omniql-engine/chatdb/mapping"
)

// ============================================================================
// RULE TABLE
// ============================================================================

// rule is one SQL shape and the pipeline it produces. Rules are tried in
// order and the first match wins; a join is recognized before anything else
// so that every later shape can run on top of the $lookup stages.
type rule struct {
	name  string
	match func(*models.Statement) bool
	build func(*scope, *models.Statement) (mongo.Pipeline, error)
}

var rules []rule

func init() {
	rules = []rule{
		{"join", isJoin, buildJoin},
		{"range", isRange, buildRange},
		{"group", isGroup, buildGroup},
		{"count-distinct", isCountDistinct, buildCountDistinct},
		{"count", isCount, buildCount},
		{"aggregate", isAggregate, buildAggregate},
		{"distinct", isDistinct, buildDistinct},
		{"ordered-limit", isOrderedLimit, buildSelect},
		{"limit", isLimit, buildSelect},
		{"filter", isFilter, buildSelect},
		{"scan", isScan, buildSelect},
	}
}

func isJoin(s *models.Statement) bool {
	return len(s.Joins) > 0
}

func isRange(s *models.Statement) bool {
	return s.Range != nil && len(s.Aggregates) == 0 && len(s.Columns) == 0 && len(s.GroupBy) == 0
}

func isGroup(s *models.Statement) bool {
	return len(s.GroupBy) > 0 && s.Range == nil && !s.Star
}

func isCountDistinct(s *models.Statement) bool {
	return len(s.Aggregates) == 1 && len(s.Columns) == 0 && s.Range == nil &&
		s.Aggregates[0].Function == models.Count && s.Aggregates[0].Distinct && !s.Aggregates[0].IsStar()
}

func isCount(s *models.Statement) bool {
	return len(s.Aggregates) == 1 && len(s.Columns) == 0 && s.Range == nil &&
		s.Aggregates[0].Function == models.Count && !s.Aggregates[0].Distinct
}

func isAggregate(s *models.Statement) bool {
	return len(s.Aggregates) > 0 && len(s.Columns) == 0 && s.Range == nil && !s.Star
}

func isDistinct(s *models.Statement) bool {
	return s.Distinct && len(s.Columns) > 0 && !s.Star && len(s.Aggregates) == 0 && s.Range == nil
}

func isPlainSelect(s *models.Statement) bool {
	return len(s.Aggregates) == 0 && s.Range == nil && len(s.GroupBy) == 0 && !s.Distinct
}

func isOrderedLimit(s *models.Statement) bool {
	return isPlainSelect(s) && len(s.OrderBy) > 0
}

func isLimit(s *models.Statement) bool {
	return isPlainSelect(s) && (s.Limit > 0 || s.Offset > 0)
}

func isFilter(s *models.Statement) bool {
	return isPlainSelect(s) && s.Where != nil
}

func isScan(s *models.Statement) bool {
	return isPlainSelect(s)
}

// ============================================================================
// JOIN
// ============================================================================

func buildJoin(sc *scope, s *models.Statement) (mongo.Pipeline, error) {
	pipeline := mongo.Pipeline{}
	for _, j := range s.Joins {
		local, foreign := joinFields(sc, j)
		pipeline = append(pipeline, mongobuilders.BuildMongoDBJoinStages(j, local, foreign)...)
	}

	body := *s
	body.Joins = nil
	// everything after the join rule applies to the joined documents
	for _, r := range rules[1:] {
		if !r.match(&body) {
			continue
		}
		if isPlainSelect(&body) {
			return append(pipeline, joinSelect(sc, &body)...), nil
		}
		rest, err := r.build(sc, &body)
		if err != nil {
			return nil, err
		}
		return append(pipeline, rest...), nil
	}
	return nil, fmt.Errorf("no rule for joined statement")
}

// joinFields returns the localField path and the foreignField column of j.
// The side of the ON clause naming the joined table is the foreign side.
func joinFields(sc *scope, j models.Join) (string, string) {
	left := models.Column{Table: j.LeftTable, Name: j.LeftField}
	right := models.Column{Table: j.RightTable, Name: j.RightField}
	if j.LeftTable != "" && strings.EqualFold(j.LeftTable, j.Table) {
		left, right = right, left
	}
	return sc.field(left), right.Name
}

// joinSelect is the filter/sort/limit tail of a join with the $project
// that flattens joined columns back to the top level
func joinSelect(sc *scope, s *models.Statement) mongo.Pipeline {
	pipeline := mongo.Pipeline{}
	if s.Where != nil {
		pipeline = append(pipeline, mongobuilders.BuildMongoDBMatchStage(
			mongobuilders.BuildMongoFilter(s.Where, sc.field)))
	}
	pipeline = append(pipeline, tailStages(sc, s)...)

	if s.Star || len(s.Columns) == 0 {
		return pipeline
	}

	projection := bson.D{{Key: "_id", Value: 0}}
	used := make(map[string]bool)
	for _, c := range s.Columns {
		owner := sc.owner(c)
		path := sc.field(c)
		key := c.OutputName()
		if used[key] {
			// two tables contribute the same column name
			prefix := owner
			if prefix == "" {
				prefix = sc.base
			}
			key = prefix + "_" + mongobuilders.ExtractFieldName(path)
		}
		used[key] = true

		if owner == "" && c.Alias == "" {
			projection = append(projection, bson.E{Key: key, Value: 1})
		} else {
			projection = append(projection, bson.E{Key: key, Value: mongobuilders.FieldRef(path)})
		}
	}
	return append(pipeline, mongobuilders.BuildMongoDBProjectStage(projection))
}

// ============================================================================
// RANGE
// ============================================================================

func buildRange(sc *scope, s *models.Statement) (mongo.Pipeline, error) {
	pipeline := matchStages(sc, s, nil)

	field := mongobuilders.FieldRef(sc.field(s.Range.Field))
	pipeline = append(pipeline, mongobuilders.BuildMongoDBGroupStage(nil, bson.D{
		{Key: mapping.AliasMaxValue, Value: bson.D{{Key: "$max", Value: field}}},
		{Key: mapping.AliasMinValue, Value: bson.D{{Key: "$min", Value: field}}},
	}))

	alias := s.Range.Alias
	if alias == "" {
		alias = mapping.AliasRange
	}
	pipeline = append(pipeline, mongobuilders.BuildMongoDBProjectStage(bson.D{
		{Key: "_id", Value: 0},
		{Key: alias, Value: bson.D{{Key: "$subtract", Value: bson.A{
			mongobuilders.FieldRef(mapping.AliasMaxValue),
			mongobuilders.FieldRef(mapping.AliasMinValue),
		}}}},
	}))
	return pipeline, nil
}

// ============================================================================
// GROUP BY
// ============================================================================

func buildGroup(sc *scope, s *models.Statement) (mongo.Pipeline, error) {
	for _, c := range s.Columns {
		if !inGroupBy(c, s.GroupBy) {
			return nil, fmt.Errorf("column %s is neither grouped nor aggregated", c.Qualified())
		}
	}

	pipeline := matchStages(sc, s, s.Aggregates)

	var id interface{}
	if len(s.GroupBy) == 1 {
		id = mongobuilders.FieldRef(sc.field(s.GroupBy[0]))
	} else {
		keys := bson.D{}
		for _, g := range s.GroupBy {
			keys = append(keys, bson.E{Key: g.Name, Value: mongobuilders.FieldRef(sc.field(g))})
		}
		id = keys
	}

	accumulators, projected := aggregateFields(sc, s.Aggregates)
	pipeline = append(pipeline, mongobuilders.BuildMongoDBGroupStage(id, accumulators))

	projection := bson.D{{Key: "_id", Value: 0}}
	for _, g := range s.GroupBy {
		src := "_id"
		if len(s.GroupBy) > 1 {
			src = "_id." + g.Name
		}
		projection = append(projection, bson.E{Key: groupOutputName(g, s.Columns), Value: mongobuilders.FieldRef(src)})
	}
	projection = append(projection, projected...)
	pipeline = append(pipeline, mongobuilders.BuildMongoDBProjectStage(projection))

	return append(pipeline, tailStages(outputScope, s)...), nil
}

func inGroupBy(c models.Column, groupBy []models.Column) bool {
	for _, g := range groupBy {
		if g.Name == c.Name {
			return true
		}
	}
	return false
}

// groupOutputName uses the select-list alias of a grouped column when present
func groupOutputName(g models.Column, columns []models.Column) string {
	for _, c := range columns {
		if c.Name == g.Name {
			return c.OutputName()
		}
	}
	return g.Name
}

// ============================================================================
// AGGREGATES
// ============================================================================

func buildCountDistinct(sc *scope, s *models.Statement) (mongo.Pipeline, error) {
	agg := s.Aggregates[0]
	pipeline := matchStages(sc, s, s.Aggregates)
	pipeline = append(pipeline, mongobuilders.BuildMongoDBGroupStage(
		mongobuilders.FieldRef(sc.field(agg.Field)), bson.D{}))

	alias := agg.Alias
	if alias == "" {
		alias = mapping.AliasDistinctCount
	}
	return append(pipeline, mongobuilders.BuildMongoDBCountStage(alias)), nil
}

func buildCount(sc *scope, s *models.Statement) (mongo.Pipeline, error) {
	agg := s.Aggregates[0]
	pipeline := matchStages(sc, s, s.Aggregates)
	alias := mapping.GetAggregateAlias(string(agg.Function), agg.Alias)
	return append(pipeline, mongobuilders.BuildMongoDBCountStage(alias)), nil
}

func buildAggregate(sc *scope, s *models.Statement) (mongo.Pipeline, error) {
	pipeline := matchStages(sc, s, s.Aggregates)

	accumulators, projected := aggregateFields(sc, s.Aggregates)
	pipeline = append(pipeline, mongobuilders.BuildMongoDBGroupStage(nil, accumulators))

	projection := append(bson.D{{Key: "_id", Value: 0}}, projected...)
	return append(pipeline, mongobuilders.BuildMongoDBProjectStage(projection)), nil
}

// aggregateFields returns the $group accumulators and the matching
// $project entries. COUNT(DISTINCT c) collects a set and projects its size.
func aggregateFields(sc *scope, aggs []models.Aggregation) (bson.D, bson.D) {
	accumulators := bson.D{}
	projected := bson.D{}
	for _, a := range aggs {
		alias := aggregateAlias(a)
		if a.Distinct && !a.IsStar() {
			accumulators = append(accumulators, bson.E{Key: alias, Value: bson.D{
				{Key: "$addToSet", Value: mongobuilders.FieldRef(sc.field(a.Field))},
			}})
			projected = append(projected, bson.E{Key: alias, Value: bson.D{
				{Key: "$size", Value: mongobuilders.FieldRef(alias)},
			}})
			continue
		}
		accumulators = append(accumulators, bson.E{Key: alias, Value: mongobuilders.BuildAccumulator(a, sc.field)})
		projected = append(projected, bson.E{Key: alias, Value: 1})
	}
	return accumulators, projected
}

func aggregateAlias(a models.Aggregation) string {
	if a.Alias == "" && a.Function == models.Count && a.Distinct {
		return mapping.AliasDistinctCount
	}
	return mapping.GetAggregateAlias(string(a.Function), a.Alias)
}

// ============================================================================
// DISTINCT
// ============================================================================

func buildDistinct(sc *scope, s *models.Statement) (mongo.Pipeline, error) {
	pipeline := matchStages(sc, s, nil)

	projection := bson.D{{Key: "_id", Value: 0}}
	var id interface{}
	if len(s.Columns) == 1 {
		c := s.Columns[0]
		id = mongobuilders.FieldRef(sc.field(c))
		projection = append(projection, bson.E{Key: c.OutputName(), Value: mongobuilders.FieldRef("_id")})
	} else {
		keys := bson.D{}
		for _, c := range s.Columns {
			keys = append(keys, bson.E{Key: c.OutputName(), Value: mongobuilders.FieldRef(sc.field(c))})
			projection = append(projection, bson.E{Key: c.OutputName(), Value: mongobuilders.FieldRef("_id." + c.OutputName())})
		}
		id = keys
	}

	pipeline = append(pipeline,
		mongobuilders.BuildMongoDBGroupStage(id, bson.D{}),
		mongobuilders.BuildMongoDBProjectStage(projection),
	)
	return append(pipeline, tailStages(outputScope, s)...), nil
}

// ============================================================================
// PLAIN SELECT
// ============================================================================

// buildSelect covers filter, sort, skip and limit over a single table
func buildSelect(sc *scope, s *models.Statement) (mongo.Pipeline, error) {
	pipeline := matchStages(sc, s, nil)
	pipeline = append(pipeline, tailStages(sc, s)...)

	if !s.Star && len(s.Columns) > 0 {
		projection := bson.D{{Key: "_id", Value: 0}}
		for _, c := range s.Columns {
			if c.Alias != "" {
				projection = append(projection, bson.E{Key: c.Alias, Value: mongobuilders.FieldRef(sc.field(c))})
			} else {
				projection = append(projection, bson.E{Key: sc.field(c), Value: 1})
			}
		}
		pipeline = append(pipeline, mongobuilders.BuildMongoDBProjectStage(projection))
	}

	if len(pipeline) == 0 {
		pipeline = append(pipeline, mongobuilders.BuildMongoDBMatchStage(bson.D{}))
	}
	return pipeline, nil
}

// ============================================================================
// SHARED STAGES
// ============================================================================

// matchStages renders WHERE plus the non-null filters COUNT(c) implies
func matchStages(sc *scope, s *models.Statement, aggs []models.Aggregation) mongo.Pipeline {
	var parts []models.Condition
	if s.Where != nil {
		parts = append(parts, *s.Where)
	}
	seen := make(map[string]bool)
	for _, a := range aggs {
		if a.Function != models.Count || a.IsStar() {
			continue
		}
		path := sc.field(a.Field)
		if seen[path] {
			continue
		}
		seen[path] = true
		parts = append(parts, models.Condition{Field: a.Field, Operator: "IS_NOT_NULL"})
	}

	switch len(parts) {
	case 0:
		return mongo.Pipeline{}
	case 1:
		return mongo.Pipeline{mongobuilders.BuildMongoDBMatchStage(mongobuilders.BuildMongoFilter(&parts[0], sc.field))}
	default:
		cond := models.Condition{Logic: "AND", Conditions: parts}
		return mongo.Pipeline{mongobuilders.BuildMongoDBMatchStage(mongobuilders.BuildMongoFilter(&cond, sc.field))}
	}
}

// tailStages renders ORDER BY, OFFSET and LIMIT
func tailStages(sc fieldScope, s *models.Statement) mongo.Pipeline {
	pipeline := mongo.Pipeline{}
	if len(s.OrderBy) > 0 {
		pipeline = append(pipeline, mongobuilders.BuildMongoDBSortStage(s.OrderBy, sc.field))
	}
	if s.Offset > 0 {
		pipeline = append(pipeline, mongobuilders.BuildMongoDBSkipStage(s.Offset))
	}
	if s.Limit > 0 {
		pipeline = append(pipeline, mongobuilders.BuildMongoDBLimitStage(s.Limit))
	}
	return pipeline
}

// fieldScope names fields for stages that may run before or after a $project
type fieldScope interface {
	field(models.Column) string
}

// outputNames refers to fields by their projected name
type outputNames struct{}

func (outputNames) field(c models.Column) string {
	return c.Name
}

var outputScope fieldScope = outputNames{}
