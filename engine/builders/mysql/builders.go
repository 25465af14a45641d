package mysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/omniql-engine/chatdb/engine/models"
)

// ============================================================================
// DQL OPERATIONS
// ============================================================================

// BuildSelectSQL renders a parameterized SELECT; literals become ? placeholders
func BuildSelectSQL(stmt *models.Statement) (string, []interface{}) {
	b := &sqlBuilder{params: true}
	return b.selectSQL(stmt), b.args
}

// FormatSQL renders a SELECT with literals inlined, one clause per line
func FormatSQL(stmt *models.Statement) string {
	b := &sqlBuilder{}
	return b.selectSQL(stmt)
}

type sqlBuilder struct {
	params bool
	args   []interface{}
}

func (b *sqlBuilder) selectSQL(stmt *models.Statement) string {
	selectClause := "SELECT"
	if stmt.Distinct {
		selectClause = "SELECT DISTINCT"
	}

	lines := []string{selectClause + " " + buildColumns(stmt)}
	lines = append(lines, "FROM "+stmt.Table)

	for _, j := range stmt.Joins {
		keyword := "JOIN"
		if j.Type == models.LeftJoin {
			keyword = "LEFT JOIN"
		}
		lines = append(lines, fmt.Sprintf("%s %s ON %s = %s", keyword, j.Table,
			qualify(j.LeftTable, j.LeftField), qualify(j.RightTable, j.RightField)))
	}

	if stmt.Where != nil {
		lines = append(lines, "WHERE "+b.buildCondition(stmt.Where, false))
	}

	if len(stmt.GroupBy) > 0 {
		parts := make([]string, len(stmt.GroupBy))
		for i, g := range stmt.GroupBy {
			parts[i] = g.Qualified()
		}
		lines = append(lines, "GROUP BY "+strings.Join(parts, ", "))
	}

	if len(stmt.OrderBy) > 0 {
		parts := make([]string, len(stmt.OrderBy))
		for i, ob := range stmt.OrderBy {
			parts[i] = ob.Field.Qualified()
			if ob.Direction == models.Descending {
				parts[i] += " DESC"
			}
		}
		lines = append(lines, "ORDER BY "+strings.Join(parts, ", "))
	}

	if stmt.Limit > 0 {
		limit := fmt.Sprintf("LIMIT %d", stmt.Limit)
		if stmt.Offset > 0 {
			limit += fmt.Sprintf(" OFFSET %d", stmt.Offset)
		}
		lines = append(lines, limit)
	} else if stmt.Offset > 0 {
		lines = append(lines, fmt.Sprintf("LIMIT 18446744073709551615 OFFSET %d", stmt.Offset))
	}

	return strings.Join(lines, "\n") + ";"
}

func buildColumns(stmt *models.Statement) string {
	var parts []string
	if stmt.Star {
		parts = append(parts, "*")
	}
	for _, c := range stmt.Columns {
		parts = append(parts, withAlias(c.Qualified(), c.Alias))
	}
	for _, a := range stmt.Aggregates {
		parts = append(parts, withAlias(aggregateSQL(a), a.Alias))
	}
	if stmt.Range != nil {
		f := stmt.Range.Field.Qualified()
		parts = append(parts, withAlias(fmt.Sprintf("MAX(%s) - MIN(%s)", f, f), stmt.Range.Alias))
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, ", ")
}

func aggregateSQL(a models.Aggregation) string {
	arg := a.Field.Qualified()
	if a.Distinct {
		arg = "DISTINCT " + arg
	}
	return fmt.Sprintf("%s(%s)", a.Function, arg)
}

func withAlias(expr, alias string) string {
	if alias == "" {
		return expr
	}
	return expr + " AS " + alias
}

func qualify(table, field string) string {
	if table == "" {
		return field
	}
	return table + "." + field
}

// ============================================================================
// WHERE CLAUSE
// ============================================================================

func (b *sqlBuilder) buildCondition(cond *models.Condition, nested bool) string {
	if !cond.IsGroup() {
		return b.buildSingleCondition(cond)
	}

	if cond.Logic == "NOT" {
		inner := make([]string, len(cond.Conditions))
		for i := range cond.Conditions {
			inner[i] = b.buildCondition(&cond.Conditions[i], false)
		}
		return "NOT (" + strings.Join(inner, " AND ") + ")"
	}

	parts := make([]string, len(cond.Conditions))
	for i := range cond.Conditions {
		parts[i] = b.buildCondition(&cond.Conditions[i], true)
	}
	clause := strings.Join(parts, " "+cond.Logic+" ")
	if nested {
		return "(" + clause + ")"
	}
	return clause
}

func (b *sqlBuilder) buildSingleCondition(cond *models.Condition) string {
	field := cond.Field.Qualified()

	switch cond.Operator {
	case "IS_NULL":
		return field + " IS NULL"
	case "IS_NOT_NULL":
		return field + " IS NOT NULL"
	case "IN", "NOT_IN":
		op := strings.ReplaceAll(cond.Operator, "_", " ")
		if len(cond.Values) == 0 {
			if cond.Operator == "IN" {
				return "1 = 0"
			}
			return "1 = 1"
		}
		values := make([]string, len(cond.Values))
		for i, v := range cond.Values {
			values[i] = b.value(v)
		}
		return fmt.Sprintf("%s %s (%s)", field, op, strings.Join(values, ", "))
	case "BETWEEN", "NOT_BETWEEN":
		op := strings.ReplaceAll(cond.Operator, "_", " ")
		return fmt.Sprintf("%s %s %s AND %s", field, op, b.value(cond.Value), b.value(cond.Value2))
	case "LIKE", "NOT_LIKE":
		op := strings.ReplaceAll(cond.Operator, "_", " ")
		return fmt.Sprintf("%s %s %s", field, op, b.value(cond.Value))
	default:
		return fmt.Sprintf("%s %s %s", field, cond.Operator, b.value(cond.Value))
	}
}

// value renders a literal inline or records it as a parameter
func (b *sqlBuilder) value(lit models.Literal) string {
	if lit.Kind == models.NullLiteral {
		return "NULL"
	}
	if b.params {
		b.args = append(b.args, ConvertMySQLValue(lit))
		return "?"
	}
	if lit.Kind == models.StringLiteral {
		return "'" + strings.ReplaceAll(lit.Raw, "'", "''") + "'"
	}
	return lit.Raw
}

// ConvertMySQLValue converts a literal to a driver argument
func ConvertMySQLValue(lit models.Literal) interface{} {
	switch lit.Kind {
	case models.IntLiteral:
		if n, err := strconv.ParseInt(lit.Raw, 10, 64); err == nil {
			return n
		}
	case models.FloatLiteral:
		if f, err := strconv.ParseFloat(lit.Raw, 64); err == nil {
			return f
		}
	case models.NullLiteral:
		return nil
	}
	return lit.Raw
}
