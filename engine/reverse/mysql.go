package reverse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/omniql-engine/chatdb/engine/models"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/opcode"
	"github.com/pingcap/tidb/parser/test_driver"
)

// ============================================================================
// ENTRY POINT
// ============================================================================

// MySQLToStatement parses one MySQL SELECT into a models.Statement
func MySQLToStatement(sql string) (*models.Statement, error) {
	p := parser.New()
	stmts, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseError, err)
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("%w: empty statement", ErrParseError)
	}
	if len(stmts) > 1 {
		return nil, fmt.Errorf("%w: multiple statements", ErrNotSupported)
	}

	switch stmt := stmts[0].(type) {
	case *ast.SelectStmt:
		return convertMySQLSelect(stmt)
	default:
		return nil, fmt.Errorf("%w: unsupported MySQL statement type %T", ErrNotSupported, stmts[0])
	}
}

// ============================================================================
// SELECT
// ============================================================================

// selectScope resolves table aliases to table names
type selectScope struct {
	aliases map[string]string
}

func (sc *selectScope) table(name string) string {
	if real, ok := sc.aliases[strings.ToLower(name)]; ok {
		return real
	}
	return name
}

func convertMySQLSelect(stmt *ast.SelectStmt) (*models.Statement, error) {
	if stmt.From == nil || stmt.From.TableRefs == nil {
		return nil, fmt.Errorf("%w: SELECT without FROM", ErrNotSupported)
	}
	if stmt.Having != nil {
		return nil, fmt.Errorf("%w: HAVING", ErrNotSupported)
	}

	sc := &selectScope{aliases: make(map[string]string)}
	out := &models.Statement{Distinct: stmt.Distinct}

	// FROM / JOIN
	if err := extractMySQLFrom(stmt.From.TableRefs, sc, out); err != nil {
		return nil, err
	}

	// Select list
	if stmt.Fields != nil {
		if err := extractMySQLFields(stmt.Fields.Fields, sc, out); err != nil {
			return nil, err
		}
	}

	// WHERE
	if stmt.Where != nil {
		cond, err := mysqlExprToCondition(stmt.Where, sc)
		if err != nil {
			return nil, err
		}
		out.Where = &cond
	}

	// GROUP BY
	if stmt.GroupBy != nil {
		for _, item := range stmt.GroupBy.Items {
			col, err := mysqlColumn(item.Expr, sc)
			if err != nil {
				return nil, err
			}
			out.GroupBy = append(out.GroupBy, col)
		}
	}

	// ORDER BY
	if stmt.OrderBy != nil {
		for _, item := range stmt.OrderBy.Items {
			col, err := mysqlColumn(item.Expr, sc)
			if err != nil {
				return nil, err
			}
			dir := models.Ascending
			if item.Desc {
				dir = models.Descending
			}
			out.OrderBy = append(out.OrderBy, models.OrderBy{Field: col, Direction: dir})
		}
	}

	// LIMIT & OFFSET
	if stmt.Limit != nil {
		if stmt.Limit.Count != nil {
			n, err := mysqlInt(stmt.Limit.Count)
			if err != nil {
				return nil, err
			}
			out.Limit = n
		}
		if stmt.Limit.Offset != nil {
			n, err := mysqlInt(stmt.Limit.Offset)
			if err != nil {
				return nil, err
			}
			out.Offset = n
		}
	}

	return out, nil
}

// ============================================================================
// FROM / JOIN
// ============================================================================

func extractMySQLFrom(refs *ast.Join, sc *selectScope, out *models.Statement) error {
	if refs.Right == nil {
		name, err := mysqlTableSource(refs.Left, sc)
		if err != nil {
			return err
		}
		out.Table = name
		return nil
	}

	// Join chains are left-deep: ((t1 JOIN t2) JOIN t3)
	switch left := refs.Left.(type) {
	case *ast.Join:
		if err := extractMySQLFrom(left, sc, out); err != nil {
			return err
		}
	default:
		name, err := mysqlTableSource(left, sc)
		if err != nil {
			return err
		}
		out.Table = name
	}

	right, err := mysqlTableSource(refs.Right, sc)
	if err != nil {
		return err
	}

	join := models.Join{Table: right}
	switch refs.Tp {
	case ast.LeftJoin:
		join.Type = models.LeftJoin
	case ast.CrossJoin:
		// plain JOIN ... ON parses as a cross join with an ON condition
		if refs.On == nil {
			return fmt.Errorf("%w: join without ON condition", ErrNotSupported)
		}
		join.Type = models.InnerJoin
	default:
		return fmt.Errorf("%w: join type %v", ErrNotSupported, refs.Tp)
	}

	if refs.On == nil {
		return fmt.Errorf("%w: join without ON condition", ErrNotSupported)
	}
	on, ok := refs.On.Expr.(*ast.BinaryOperationExpr)
	if !ok || on.Op != opcode.EQ {
		return fmt.Errorf("%w: join condition must be a column equality", ErrNotSupported)
	}
	l, err := mysqlColumn(on.L, sc)
	if err != nil {
		return err
	}
	r, err := mysqlColumn(on.R, sc)
	if err != nil {
		return err
	}
	join.LeftTable, join.LeftField = l.Table, l.Name
	join.RightTable, join.RightField = r.Table, r.Name

	out.Joins = append(out.Joins, join)
	return nil
}

func mysqlTableSource(node ast.ResultSetNode, sc *selectScope) (string, error) {
	ts, ok := node.(*ast.TableSource)
	if !ok {
		return "", fmt.Errorf("%w: table expression %T", ErrNotSupported, node)
	}
	tn, ok := ts.Source.(*ast.TableName)
	if !ok {
		return "", fmt.Errorf("%w: derived table", ErrNotSupported)
	}
	name := tn.Name.O
	if alias := ts.AsName.O; alias != "" {
		sc.aliases[strings.ToLower(alias)] = name
	}
	return name, nil
}

// ============================================================================
// SELECT LIST
// ============================================================================

func extractMySQLFields(fields []*ast.SelectField, sc *selectScope, out *models.Statement) error {
	for _, f := range fields {
		if f.WildCard != nil {
			out.Star = true
			continue
		}

		switch e := f.Expr.(type) {
		case *ast.ColumnNameExpr:
			col := mysqlColumnName(e, sc)
			col.Alias = f.AsName.O
			out.Columns = append(out.Columns, col)

		case *ast.AggregateFuncExpr:
			agg, err := mysqlAggregation(e, sc)
			if err != nil {
				return err
			}
			agg.Alias = f.AsName.O
			out.Aggregates = append(out.Aggregates, agg)

		case *ast.BinaryOperationExpr:
			rng, err := mysqlRange(e, sc)
			if err != nil {
				return err
			}
			rng.Alias = f.AsName.O
			out.Range = rng

		default:
			return fmt.Errorf("%w: select expression %T", ErrNotSupported, f.Expr)
		}
	}
	return nil
}

func mysqlAggregation(e *ast.AggregateFuncExpr, sc *selectScope) (models.Aggregation, error) {
	fn, ok := models.ParseAggregateFunc(e.F)
	if !ok {
		return models.Aggregation{}, fmt.Errorf("%w: aggregate %s", ErrNotSupported, e.F)
	}

	agg := models.Aggregation{Function: fn, Distinct: e.Distinct}
	if len(e.Args) == 0 {
		agg.Field = models.Column{Name: "*"}
		return agg, nil
	}

	switch arg := e.Args[0].(type) {
	case *ast.ColumnNameExpr:
		agg.Field = mysqlColumnName(arg, sc)
	case *test_driver.ValueExpr:
		// COUNT(*) and COUNT(1) carry a constant argument
		if fn != models.Count {
			return models.Aggregation{}, fmt.Errorf("%w: %s of a constant", ErrNotSupported, fn)
		}
		agg.Field = models.Column{Name: "*"}
	default:
		return models.Aggregation{}, fmt.Errorf("%w: aggregate argument %T", ErrNotSupported, arg)
	}
	return agg, nil
}

// mysqlRange recognizes MAX(c) - MIN(c)
func mysqlRange(e *ast.BinaryOperationExpr, sc *selectScope) (*models.Range, error) {
	if e.Op != opcode.Minus {
		return nil, fmt.Errorf("%w: arithmetic %s", ErrNotSupported, e.Op)
	}
	maxExpr, okL := e.L.(*ast.AggregateFuncExpr)
	minExpr, okR := e.R.(*ast.AggregateFuncExpr)
	if !okL || !okR || !strings.EqualFold(maxExpr.F, "max") || !strings.EqualFold(minExpr.F, "min") {
		return nil, fmt.Errorf("%w: only MAX(c) - MIN(c) arithmetic", ErrNotSupported)
	}

	maxAgg, err := mysqlAggregation(maxExpr, sc)
	if err != nil {
		return nil, err
	}
	minAgg, err := mysqlAggregation(minExpr, sc)
	if err != nil {
		return nil, err
	}
	if maxAgg.Field.Name != minAgg.Field.Name {
		return nil, fmt.Errorf("%w: range over two columns", ErrNotSupported)
	}
	return &models.Range{Field: maxAgg.Field}, nil
}

// ============================================================================
// CONDITIONS
// ============================================================================

func mysqlExprToCondition(expr ast.ExprNode, sc *selectScope) (models.Condition, error) {
	switch e := expr.(type) {
	case *ast.BinaryOperationExpr:
		switch e.Op {
		case opcode.LogicAnd, opcode.LogicOr:
			return buildMySQLLogicCondition(e, sc)
		default:
			return buildMySQLCondition(e, sc)
		}

	case *ast.PatternInExpr:
		return buildMySQLInCondition(e, sc)

	case *ast.PatternLikeOrIlikeExpr:
		return buildMySQLLikeCondition(e, sc)

	case *ast.BetweenExpr:
		return buildMySQLBetweenCondition(e, sc)

	case *ast.IsNullExpr:
		return buildMySQLNullCondition(e, sc)

	case *ast.ParenthesesExpr:
		return mysqlExprToCondition(e.Expr, sc)

	case *ast.UnaryOperationExpr:
		if e.Op != opcode.Not {
			return models.Condition{}, fmt.Errorf("%w: unary %s in condition", ErrNotSupported, e.Op)
		}
		inner, err := mysqlExprToCondition(e.V, sc)
		if err != nil {
			return models.Condition{}, err
		}
		return models.Condition{Logic: "NOT", Conditions: []models.Condition{inner}}, nil

	default:
		return models.Condition{}, fmt.Errorf("%w: unsupported condition type %T", ErrNotSupported, expr)
	}
}

// buildMySQLLogicCondition flattens chains of the same connective
func buildMySQLLogicCondition(e *ast.BinaryOperationExpr, sc *selectScope) (models.Condition, error) {
	logic := "AND"
	if e.Op == opcode.LogicOr {
		logic = "OR"
	}

	group := models.Condition{Logic: logic}
	for _, side := range []ast.ExprNode{e.L, e.R} {
		child, err := mysqlExprToCondition(side, sc)
		if err != nil {
			return models.Condition{}, err
		}
		if child.Logic == logic {
			group.Conditions = append(group.Conditions, child.Conditions...)
		} else {
			group.Conditions = append(group.Conditions, child)
		}
	}
	return group, nil
}

func buildMySQLCondition(e *ast.BinaryOperationExpr, sc *selectScope) (models.Condition, error) {
	op, ok := mysqlComparison(e.Op)
	if !ok {
		return models.Condition{}, fmt.Errorf("%w: operator %s", ErrNotSupported, e.Op)
	}

	colExpr, valExpr := e.L, e.R
	if _, isCol := colExpr.(*ast.ColumnNameExpr); !isCol {
		// 5 < col  →  col > 5
		colExpr, valExpr = e.R, e.L
		op = flipComparison(op)
	}

	col, err := mysqlColumn(colExpr, sc)
	if err != nil {
		return models.Condition{}, err
	}
	if op == "=" || op == "!=" {
		if word, ok := mysqlBareWord(valExpr); ok {
			return models.Condition{Field: col, Operator: op, Value: word}, nil
		}
	}
	val, err := mysqlLiteral(valExpr)
	if err != nil {
		return models.Condition{}, err
	}
	return models.Condition{Field: col, Operator: op, Value: val}, nil
}

// mysqlBareWord reads an unquoted, unqualified identifier in value position
// (Major = CS) as the string it spells
func mysqlBareWord(expr ast.ExprNode) (models.Literal, bool) {
	e, ok := expr.(*ast.ColumnNameExpr)
	if !ok || e.Name.Table.L != "" {
		return models.Literal{}, false
	}
	return models.Literal{Kind: models.StringLiteral, Raw: e.Name.Name.O}, true
}

func buildMySQLInCondition(e *ast.PatternInExpr, sc *selectScope) (models.Condition, error) {
	if e.Sel != nil {
		return models.Condition{}, fmt.Errorf("%w: IN subquery", ErrNotSupported)
	}
	col, err := mysqlColumn(e.Expr, sc)
	if err != nil {
		return models.Condition{}, err
	}

	cond := models.Condition{Field: col, Operator: "IN"}
	if e.Not {
		cond.Operator = "NOT_IN"
	}
	for _, item := range e.List {
		if word, ok := mysqlBareWord(item); ok {
			cond.Values = append(cond.Values, word)
			continue
		}
		lit, err := mysqlLiteral(item)
		if err != nil {
			return models.Condition{}, err
		}
		cond.Values = append(cond.Values, lit)
	}
	return cond, nil
}

func buildMySQLLikeCondition(e *ast.PatternLikeOrIlikeExpr, sc *selectScope) (models.Condition, error) {
	col, err := mysqlColumn(e.Expr, sc)
	if err != nil {
		return models.Condition{}, err
	}
	pattern, err := mysqlLiteral(e.Pattern)
	if err != nil {
		return models.Condition{}, err
	}

	cond := models.Condition{Field: col, Operator: "LIKE", Value: pattern}
	if e.Not {
		cond.Operator = "NOT_LIKE"
	}
	return cond, nil
}

func buildMySQLBetweenCondition(e *ast.BetweenExpr, sc *selectScope) (models.Condition, error) {
	col, err := mysqlColumn(e.Expr, sc)
	if err != nil {
		return models.Condition{}, err
	}
	lo, err := mysqlLiteral(e.Left)
	if err != nil {
		return models.Condition{}, err
	}
	hi, err := mysqlLiteral(e.Right)
	if err != nil {
		return models.Condition{}, err
	}

	cond := models.Condition{Field: col, Operator: "BETWEEN", Value: lo, Value2: hi}
	if e.Not {
		cond.Operator = "NOT_BETWEEN"
	}
	return cond, nil
}

func buildMySQLNullCondition(e *ast.IsNullExpr, sc *selectScope) (models.Condition, error) {
	col, err := mysqlColumn(e.Expr, sc)
	if err != nil {
		return models.Condition{}, err
	}

	cond := models.Condition{Field: col, Operator: "IS_NULL"}
	if e.Not {
		cond.Operator = "IS_NOT_NULL"
	}
	return cond, nil
}

func mysqlComparison(op opcode.Op) (string, bool) {
	switch op {
	case opcode.EQ:
		return "=", true
	case opcode.NE:
		return "!=", true
	case opcode.LT:
		return "<", true
	case opcode.GT:
		return ">", true
	case opcode.LE:
		return "<=", true
	case opcode.GE:
		return ">=", true
	}
	return "", false
}

func flipComparison(op string) string {
	switch op {
	case "<":
		return ">"
	case ">":
		return "<"
	case "<=":
		return ">="
	case ">=":
		return "<="
	}
	return op
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

func mysqlColumnName(e *ast.ColumnNameExpr, sc *selectScope) models.Column {
	col := models.Column{Name: e.Name.Name.O}
	if t := e.Name.Table.O; t != "" {
		col.Table = sc.table(t)
	}
	return col
}

func mysqlColumn(expr ast.ExprNode, sc *selectScope) (models.Column, error) {
	if p, ok := expr.(*ast.ParenthesesExpr); ok {
		return mysqlColumn(p.Expr, sc)
	}
	e, ok := expr.(*ast.ColumnNameExpr)
	if !ok {
		return models.Column{}, fmt.Errorf("%w: expected a column, got %T", ErrNotSupported, expr)
	}
	return mysqlColumnName(e, sc), nil
}

func mysqlInt(expr ast.ExprNode) (int, error) {
	lit, err := mysqlLiteral(expr)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(lit.Raw)
	if err != nil || lit.Kind != models.IntLiteral {
		return 0, fmt.Errorf("%w: expected an integer, got %q", ErrNotSupported, lit.Raw)
	}
	return n, nil
}

func mysqlLiteral(expr ast.ExprNode) (models.Literal, error) {
	switch e := expr.(type) {
	case *test_driver.ValueExpr:
		return formatMySQLValue(e), nil

	case *ast.UnaryOperationExpr:
		// Negative numbers
		if e.Op == opcode.Minus {
			inner, err := mysqlLiteral(e.V)
			if err != nil {
				return models.Literal{}, err
			}
			if inner.Kind == models.IntLiteral || inner.Kind == models.FloatLiteral {
				inner.Raw = "-" + inner.Raw
				return inner, nil
			}
		}
		return models.Literal{}, fmt.Errorf("%w: unary %s on a literal", ErrNotSupported, e.Op)

	case *ast.ParenthesesExpr:
		return mysqlLiteral(e.Expr)

	default:
		return models.Literal{}, fmt.Errorf("%w: expected a literal, got %T", ErrNotSupported, expr)
	}
}

func formatMySQLValue(val *test_driver.ValueExpr) models.Literal {
	d := val.Datum
	switch d.Kind() {
	case test_driver.KindNull:
		return models.Literal{Kind: models.NullLiteral, Raw: "NULL"}
	case test_driver.KindInt64:
		return models.Literal{Kind: models.IntLiteral, Raw: strconv.FormatInt(d.GetInt64(), 10)}
	case test_driver.KindUint64:
		return models.Literal{Kind: models.IntLiteral, Raw: strconv.FormatUint(d.GetUint64(), 10)}
	case test_driver.KindFloat64:
		return models.Literal{Kind: models.FloatLiteral, Raw: strconv.FormatFloat(d.GetFloat64(), 'f', -1, 64)}
	case test_driver.KindString:
		return models.Literal{Kind: models.StringLiteral, Raw: d.GetString()}
	case test_driver.KindBytes:
		return models.Literal{Kind: models.StringLiteral, Raw: string(d.GetBytes())}
	default:
		// DECIMAL literals such as 3.5
		raw := fmt.Sprintf("%v", d.GetValue())
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return models.Literal{Kind: models.FloatLiteral, Raw: raw}
		}
		return models.Literal{Kind: models.StringLiteral, Raw: raw}
	}
}
