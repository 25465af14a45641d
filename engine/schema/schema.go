package schema

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/omniql-engine/chatdb/engine/errors"
)

// ============================================================================
// SCHEMA MODEL
// ============================================================================

// Table is a named, ordered list of columns
type Table struct {
	Name    string   `json:"name"    yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
}

// HasColumn reports whether the table declares column (exact match)
func (t Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Schema is an ordered collection of tables. Order matters: every
// first-match rule (column ownership, join keys) walks tables and columns
// in declaration order.
type Schema struct {
	Tables []Table
}

// New builds a schema, rejecting duplicate table names and duplicate
// columns within a table.
func New(tables ...Table) (*Schema, error) {
	seenTables := make(map[string]bool, len(tables))
	for _, t := range tables {
		if t.Name == "" {
			return nil, errors.New(errors.KindValidation, "table name must not be empty")
		}
		if seenTables[t.Name] {
			return nil, errors.Newf(errors.KindValidation, "duplicate table %q", t.Name)
		}
		seenTables[t.Name] = true

		seenCols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if seenCols[c] {
				return nil, errors.Newf(errors.KindValidation, "duplicate column %q in table %q", c, t.Name)
			}
			seenCols[c] = true
		}
	}

	copied := make([]Table, len(tables))
	for i, t := range tables {
		copied[i] = Table{Name: t.Name, Columns: append([]string(nil), t.Columns...)}
	}
	return &Schema{Tables: copied}, nil
}

// MustNew is New for static schemas in tests and examples
func MustNew(tables ...Table) *Schema {
	s, err := New(tables...)
	if err != nil {
		panic(err)
	}
	return s
}

// FromMap builds a schema from a table→columns mapping. Go maps carry no
// order, so tables are sorted by name; column order is kept.
func FromMap(m map[string][]string) (*Schema, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		tables = append(tables, Table{Name: name, Columns: m[name]})
	}
	return New(tables...)
}

// ============================================================================
// LOOKUPS
// ============================================================================

// Table returns the table with the exact given name
func (s *Schema) Table(name string) (Table, bool) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Names returns table names in schema order
func (s *Schema) Names() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Map returns the schema as a plain table→columns mapping
func (s *Schema) Map() map[string][]string {
	m := make(map[string][]string, len(s.Tables))
	for _, t := range s.Tables {
		m[t.Name] = append([]string(nil), t.Columns...)
	}
	return m
}

// Index builds the column→owning-tables index
func (s *Schema) Index() ColumnIndex {
	idx := ColumnIndex{owners: make(map[string][]string)}
	for _, t := range s.Tables {
		for _, c := range t.Columns {
			idx.owners[c] = append(idx.owners[c], t.Name)
		}
	}
	return idx
}

// ResolveTable maps a user-typed table name onto a declared one. It tries
// an exact match, then a case-insensitive one, then singular/plural forms.
func (s *Schema) ResolveTable(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if _, ok := s.Table(name); ok {
		return name, true
	}

	for _, t := range s.Tables {
		if strings.EqualFold(t.Name, name) {
			return t.Name, true
		}
	}

	singular := inflection.Singular(strings.ToLower(name))
	for _, t := range s.Tables {
		if inflection.Singular(strings.ToLower(t.Name)) == singular {
			return t.Name, true
		}
	}
	return "", false
}

// String renders the schema the way prompts present it: "table(col, col)" per line
func (s *Schema) String() string {
	var sb strings.Builder
	for i, t := range s.Tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(t.Name)
		sb.WriteString("(")
		sb.WriteString(strings.Join(t.Columns, ", "))
		sb.WriteString(")")
	}
	return sb.String()
}

// ============================================================================
// COLUMN INDEX
// ============================================================================

// ColumnIndex maps a column name to the tables declaring it, in schema order
type ColumnIndex struct {
	owners map[string][]string
}

// Owner returns the first table (schema order) that declares column
func (idx ColumnIndex) Owner(column string) (string, bool) {
	tables := idx.owners[column]
	if len(tables) == 0 {
		return "", false
	}
	return tables[0], true
}

// Tables returns every table declaring column
func (idx ColumnIndex) Tables(column string) []string {
	return idx.owners[column]
}

// Has reports whether any table declares column
func (idx ColumnIndex) Has(column string) bool {
	return len(idx.owners[column]) > 0
}
