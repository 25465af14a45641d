package models

import "strings"

// ============================================================================
// STATEMENT - parsed form of the SELECT statements the engine produces
// ============================================================================

// Statement represents a single SELECT, optionally joined
type Statement struct {
	// ========== SOURCE ==========
	Table string // FROM table (first table of a join chain)
	Joins []Join // JOIN clauses in source order

	// ========== SELECT LIST ==========
	Star       bool          // SELECT *
	Columns    []Column      // plain columns
	Aggregates []Aggregation // COUNT/SUM/AVG/MIN/MAX
	Range      *Range        // MAX(c) - MIN(c)
	Distinct   bool          // SELECT DISTINCT

	// ========== CLAUSES ==========
	Where   *Condition // WHERE predicate tree
	GroupBy []Column   // GROUP BY columns
	OrderBy []OrderBy  // ORDER BY clauses
	Limit   int        // LIMIT (0 = none)
	Offset  int        // OFFSET
}

// Tables returns the FROM table followed by joined tables
func (s *Statement) Tables() []string {
	tables := []string{s.Table}
	for _, j := range s.Joins {
		tables = append(tables, j.Table)
	}
	return tables
}

// HasAggregate reports whether the select list contains fn
func (s *Statement) HasAggregate(fn AggregateFunc) bool {
	for _, a := range s.Aggregates {
		if a.Function == fn {
			return true
		}
	}
	return false
}

// ============================================================================
// SELECT LIST
// ============================================================================

// Column is an optionally table-qualified column reference
type Column struct {
	Table string // qualifier, empty when unqualified
	Name  string
	Alias string // AS alias
}

// Qualified returns "table.name" or "name"
func (c Column) Qualified() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// OutputName is the name the column carries in a result row
func (c Column) OutputName() string {
	if c.Alias != "" {
		return c.Alias
	}
	return c.Name
}

// Aggregation represents an aggregate function in the select list
type Aggregation struct {
	Function AggregateFunc
	Field    Column // Name is "*" for COUNT(*)
	Distinct bool   // COUNT(DISTINCT c)
	Alias    string
}

// IsStar reports COUNT(*)
func (a Aggregation) IsStar() bool {
	return a.Field.Name == "*"
}

// AggregateFunc represents aggregate function types
type AggregateFunc string

const (
	Count AggregateFunc = "COUNT"
	Sum   AggregateFunc = "SUM"
	Avg   AggregateFunc = "AVG"
	Min   AggregateFunc = "MIN"
	Max   AggregateFunc = "MAX"
)

// ParseAggregateFunc maps a function name onto a supported aggregate
func ParseAggregateFunc(name string) (AggregateFunc, bool) {
	switch fn := AggregateFunc(strings.ToUpper(name)); fn {
	case Count, Sum, Avg, Min, Max:
		return fn, true
	}
	return "", false
}

// Range represents MAX(c) - MIN(c)
type Range struct {
	Field Column
	Alias string
}

// ============================================================================
// JOINS
// ============================================================================

// Join represents an equi-join: Table is joined ON LeftTable.LeftField = RightTable.RightField
type Join struct {
	Type       JoinType
	Table      string
	LeftTable  string
	LeftField  string
	RightTable string
	RightField string
}

// JoinType represents the type of join
type JoinType string

const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
)

// ============================================================================
// CONDITIONS
// ============================================================================

// Condition is a node of the WHERE predicate tree. Group nodes carry Logic
// and Conditions; leaf nodes carry Field, Operator and values.
type Condition struct {
	Logic      string      // AND, OR, NOT (group nodes only)
	Conditions []Condition // children of a group node

	Field    Column
	Operator string    // =, !=, <, >, <=, >=, IN, NOT_IN, BETWEEN, NOT_BETWEEN, LIKE, NOT_LIKE, IS_NULL, IS_NOT_NULL
	Value    Literal   // comparison value, LIKE pattern, BETWEEN lower bound
	Value2   Literal   // BETWEEN upper bound
	Values   []Literal // IN list
}

// IsGroup reports whether the node combines children
func (c *Condition) IsGroup() bool {
	return c.Logic != ""
}

// Literal is a constant from the SQL text
type Literal struct {
	Kind LiteralKind
	Raw  string
}

// LiteralKind classifies a literal
type LiteralKind string

const (
	IntLiteral    LiteralKind = "INT"
	FloatLiteral  LiteralKind = "FLOAT"
	StringLiteral LiteralKind = "STRING"
	NullLiteral   LiteralKind = "NULL"
)

// ============================================================================
// ORDER BY
// ============================================================================

// OrderBy represents ORDER BY clause
type OrderBy struct {
	Field     Column
	Direction SortDirection
}

// SortDirection represents sort order
type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)
