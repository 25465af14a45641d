package mongodb

import (
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/omniql-engine/chatdb/engine/models"
	"github.com/omniql-engine/chatdb/mapping"
)

// FieldNamer maps a SQL column onto the document path it reads from
type FieldNamer func(models.Column) string

// PlainName uses the bare column name, dropping any table qualifier
func PlainName(c models.Column) string {
	return c.Name
}

// ============================================================================
// FILTER BUILDING
// ============================================================================

// BuildMongoFilter builds a filter document from a WHERE tree
func BuildMongoFilter(cond *models.Condition, name FieldNamer) bson.D {
	if cond == nil {
		return bson.D{}
	}
	if cond.IsGroup() {
		return buildGroupFilter(cond, name)
	}
	return buildSingleConditionFilter(cond, name)
}

func buildGroupFilter(cond *models.Condition, name FieldNamer) bson.D {
	parts := make([]bson.D, 0, len(cond.Conditions))
	for i := range cond.Conditions {
		parts = append(parts, BuildMongoFilter(&cond.Conditions[i], name))
	}

	switch cond.Logic {
	case "OR":
		if len(parts) == 1 {
			return parts[0]
		}
		return bson.D{{Key: mapping.LogicMap["OR"], Value: toArray(parts)}}
	case "NOT":
		return bson.D{{Key: mapping.LogicMap["NOT"], Value: toArray(parts)}}
	default:
		return mergeAnd(parts)
	}
}

// mergeAnd folds AND-ed filters into one document, falling back to $and
// when two children constrain the same key
func mergeAnd(parts []bson.D) bson.D {
	if len(parts) == 1 {
		return parts[0]
	}
	seen := make(map[string]bool)
	merged := bson.D{}
	for _, p := range parts {
		for _, e := range p {
			if seen[e.Key] {
				return bson.D{{Key: mapping.LogicMap["AND"], Value: toArray(parts)}}
			}
			seen[e.Key] = true
			merged = append(merged, e)
		}
	}
	return merged
}

func toArray(parts []bson.D) bson.A {
	arr := make(bson.A, len(parts))
	for i, p := range parts {
		arr[i] = p
	}
	return arr
}

func buildSingleConditionFilter(cond *models.Condition, name FieldNamer) bson.D {
	field := name(cond.Field)

	switch cond.Operator {
	case "=":
		return bson.D{{Key: field, Value: ParseMongoValue(cond.Value)}}
	case "IS_NULL":
		return bson.D{{Key: field, Value: bson.D{{Key: "$eq", Value: nil}}}}
	case "IS_NOT_NULL":
		return bson.D{{Key: field, Value: bson.D{
			{Key: "$exists", Value: true},
			{Key: "$ne", Value: nil},
		}}}
	case "IN", "NOT_IN":
		op, _ := mapping.GetMongoOperator(cond.Operator)
		return bson.D{{Key: field, Value: bson.D{{Key: op, Value: parseMongoValues(cond.Values)}}}}
	case "BETWEEN":
		return bson.D{{Key: field, Value: bson.D{
			{Key: "$gte", Value: ParseMongoValue(cond.Value)},
			{Key: "$lte", Value: ParseMongoValue(cond.Value2)},
		}}}
	case "NOT_BETWEEN":
		return bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: field, Value: bson.D{{Key: "$lt", Value: ParseMongoValue(cond.Value)}}}},
			bson.D{{Key: field, Value: bson.D{{Key: "$gt", Value: ParseMongoValue(cond.Value2)}}}},
		}}}
	case "LIKE":
		return bson.D{{Key: field, Value: BuildRegex(cond.Value.Raw)}}
	case "NOT_LIKE":
		return bson.D{{Key: field, Value: bson.D{{Key: "$not", Value: BuildRegex(cond.Value.Raw)}}}}
	default:
		op, ok := mapping.GetMongoOperator(cond.Operator)
		if !ok {
			op = "$eq"
		}
		return bson.D{{Key: field, Value: bson.D{{Key: op, Value: ParseMongoValue(cond.Value)}}}}
	}
}

func parseMongoValues(values []models.Literal) bson.A {
	result := bson.A{}
	for _, v := range values {
		result = append(result, ParseMongoValue(v))
	}
	return result
}

// ============================================================================
// LIKE PATTERNS
// ============================================================================

// BuildRegex renders a LIKE pattern as a case-insensitive $regex operator
func BuildRegex(pattern string) bson.D {
	return bson.D{
		{Key: "$regex", Value: LikeToRegex(pattern)},
		{Key: "$options", Value: "i"},
	}
}

// LikeToRegex converts a SQL LIKE pattern: a leading % drops the ^ anchor,
// a trailing % drops the $ anchor, inner % and _ become .* and .
func LikeToRegex(pattern string) string {
	anchorStart := !strings.HasPrefix(pattern, "%")
	anchorEnd := !strings.HasSuffix(pattern, "%")
	body := strings.TrimPrefix(pattern, "%")
	if !anchorEnd {
		body = strings.TrimSuffix(body, "%")
	}

	var sb strings.Builder
	if anchorStart {
		sb.WriteByte('^')
	}
	lit := strings.Builder{}
	flush := func() {
		sb.WriteString(regexp.QuoteMeta(lit.String()))
		lit.Reset()
	}
	for _, r := range body {
		switch r {
		case '%':
			flush()
			sb.WriteString(".*")
		case '_':
			flush()
			sb.WriteByte('.')
		default:
			lit.WriteRune(r)
		}
	}
	flush()
	if anchorEnd {
		sb.WriteByte('$')
	}
	return sb.String()
}

// ============================================================================
// STAGES
// ============================================================================

// BuildMongoDBMatchStage wraps a filter in $match
func BuildMongoDBMatchStage(filter bson.D) bson.D {
	if filter == nil {
		filter = bson.D{}
	}
	return bson.D{{Key: "$match", Value: filter}}
}

// BuildMongoDBSortStage renders ORDER BY; ASC and unspecified sort as 1, DESC as -1
func BuildMongoDBSortStage(orderBy []models.OrderBy, name FieldNamer) bson.D {
	sortFields := bson.D{}
	for _, ob := range orderBy {
		direction := 1
		if ob.Direction == models.Descending {
			direction = -1
		}
		sortFields = append(sortFields, bson.E{Key: name(ob.Field), Value: direction})
	}
	return bson.D{{Key: "$sort", Value: sortFields}}
}

// BuildMongoDBLimitStage renders LIMIT
func BuildMongoDBLimitStage(n int) bson.D {
	return bson.D{{Key: "$limit", Value: n}}
}

// BuildMongoDBSkipStage renders OFFSET
func BuildMongoDBSkipStage(n int) bson.D {
	return bson.D{{Key: "$skip", Value: n}}
}

// BuildMongoDBCountStage renders a $count stage named alias
func BuildMongoDBCountStage(alias string) bson.D {
	return bson.D{{Key: "$count", Value: alias}}
}

// BuildMongoDBGroupStage renders {$group: {_id: id, <accumulators>}}
func BuildMongoDBGroupStage(id interface{}, accumulators bson.D) bson.D {
	group := bson.D{{Key: "_id", Value: id}}
	group = append(group, accumulators...)
	return bson.D{{Key: "$group", Value: group}}
}

// BuildMongoDBProjectStage renders $project
func BuildMongoDBProjectStage(fields bson.D) bson.D {
	return bson.D{{Key: "$project", Value: fields}}
}

// BuildAccumulator renders the $group accumulator for one aggregate
func BuildAccumulator(agg models.Aggregation, name FieldNamer) bson.D {
	if agg.Function == models.Count {
		return bson.D{{Key: "$sum", Value: 1}}
	}
	acc, ok := mapping.GetAccumulator(string(agg.Function))
	if !ok {
		acc = "$sum"
	}
	return bson.D{{Key: acc, Value: FieldRef(name(agg.Field))}}
}

// BuildMongoDBJoinStages renders one JOIN as $lookup followed by $unwind.
// The joined document lands under the joined table's name.
func BuildMongoDBJoinStages(join models.Join, local, foreign string) mongo.Pipeline {
	lookup := bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: join.Table},
		{Key: "localField", Value: local},
		{Key: "foreignField", Value: foreign},
		{Key: "as", Value: join.Table},
	}}}

	var unwind bson.D
	if join.Type == models.LeftJoin {
		unwind = bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: FieldRef(join.Table)},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}}
	} else {
		unwind = bson.D{{Key: "$unwind", Value: FieldRef(join.Table)}}
	}
	return mongo.Pipeline{lookup, unwind}
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

// FieldRef turns a field path into an aggregation expression ("$path")
func FieldRef(field string) string {
	return "$" + field
}

// ExtractFieldName drops the table qualifier of "table.column"
func ExtractFieldName(field string) string {
	parts := strings.Split(field, ".")
	if len(parts) == 2 {
		return parts[1]
	}
	return field
}

// ============================================================================
// VALUE PARSING
// ============================================================================

// ParseMongoValue converts a SQL literal to a BSON value. Integral numbers
// become int64, other numbers float64, NULL nil.
func ParseMongoValue(lit models.Literal) interface{} {
	switch lit.Kind {
	case models.NullLiteral:
		return nil
	case models.StringLiteral:
		return lit.Raw
	case models.IntLiteral, models.FloatLiteral:
		return ParseNumber(lit.Raw)
	default:
		return ParseNumber(lit.Raw)
	}
}

// ParseNumber returns raw as int64 or float64 when it is numeric, else raw
func ParseNumber(raw string) interface{} {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	}
	return raw
}
