package mapping

import "strings"

// ============================================================================
// SQL → MONGODB OPERATORS
// ============================================================================

// OperatorMap maps normalized SQL comparison operators onto MongoDB query operators.
// "=" has no entry: equality renders as a bare value.
var OperatorMap = map[string]string{
	"!=":          "$ne",
	"<>":          "$ne",
	">":           "$gt",
	"<":           "$lt",
	">=":          "$gte",
	"<=":          "$lte",
	"IN":          "$in",
	"NOT_IN":      "$nin",
	"LIKE":        "$regex",
	"NOT_LIKE":    "$regex",
	"IS_NULL":     "$eq",
	"IS_NOT_NULL": "$ne",
}

// LogicMap maps SQL connectives onto MongoDB logical operators
var LogicMap = map[string]string{
	"AND": "$and",
	"OR":  "$or",
	"NOT": "$nor",
}

// AggregateMap maps SQL aggregate functions onto $group accumulators
var AggregateMap = map[string]string{
	"COUNT": "$sum",
	"SUM":   "$sum",
	"AVG":   "$avg",
	"MIN":   "$min",
	"MAX":   "$max",
}

// ============================================================================
// RESULT ALIASES
// ============================================================================

const (
	AliasEntryCount    = "entry_count"
	AliasTotalSum      = "total_sum"
	AliasAverageValue  = "average_value"
	AliasMinValue      = "min_value"
	AliasMaxValue      = "max_value"
	AliasDistinctCount = "distinct_count"
	AliasRowCount      = "row_count"
	AliasTotalCount    = "total_count"
	AliasRange         = "range"
)

// DefaultAggregateAlias names an aggregate result that carries no AS clause
var DefaultAggregateAlias = map[string]string{
	"COUNT": AliasTotalCount,
	"SUM":   AliasTotalSum,
	"AVG":   AliasAverageValue,
	"MIN":   AliasMinValue,
	"MAX":   AliasMaxValue,
}

// GetMongoOperator returns the MongoDB operator for a SQL operator
func GetMongoOperator(op string) (string, bool) {
	m, ok := OperatorMap[strings.ToUpper(op)]
	return m, ok
}

// GetAccumulator returns the $group accumulator for an aggregate function
func GetAccumulator(fn string) (string, bool) {
	acc, ok := AggregateMap[strings.ToUpper(fn)]
	return acc, ok
}

// GetAggregateAlias returns alias when set, otherwise the default for fn
func GetAggregateAlias(fn, alias string) string {
	if alias != "" {
		return alias
	}
	if def, ok := DefaultAggregateAlias[strings.ToUpper(fn)]; ok {
		return def
	}
	return "result"
}
