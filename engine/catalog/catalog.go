package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/omniql-engine/chatdb/mapping"
)

// ============================================================================
// RULE TABLE
// ============================================================================

// Rule maps one phrase shape onto a SQL template
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Table   int                    // submatch index of the table name
	Format  func(g []string) string // g[0] is the whole match, g[1:] the groups
}

// Result is a successful catalog lookup
type Result struct {
	Rule   *Rule
	Groups []string
	SQL    string
}

// TableName returns the table the phrase referred to
func (r *Result) TableName() string {
	return r.Groups[r.Rule.Table]
}

// Render re-formats the template against a different table name, used once
// the caller has mapped the phrase's table onto a schema table.
func (r *Result) Render(table string) string {
	g := append([]string(nil), r.Groups...)
	g[r.Rule.Table] = table
	return r.Rule.Format(g)
}

func rule(name, verbs, shape string, table int, format func(g []string) string) Rule {
	prefix := `(?i)^`
	if verbs != "" {
		prefix += `(?:` + verbs + `)?`
	}
	return Rule{
		Name:    name,
		Pattern: regexp.MustCompile(prefix + `\s*` + shape),
		Table:   table,
		Format:  format,
	}
}

func selectFrom(head, table string) string {
	return fmt.Sprintf("SELECT %s\nFROM %s;", head, table)
}

func selectWhere(head, table, cond string) string {
	return fmt.Sprintf("SELECT %s\nFROM %s\nWHERE %s;", head, table, cond)
}

// Rules is scanned top to bottom; the first pattern that matches wins.
// Several shapes overlap, so the order is part of the contract.
var Rules = []Rule{
	rule("entries-count", "find|count", `entries in (.+)`, 1, func(g []string) string {
		return selectFrom("COUNT(*) AS "+mapping.AliasEntryCount, g[1])
	}),
	rule("unique-values", "find|list", `unique (.+) in (.+)`, 2, func(g []string) string {
		return selectFrom("DISTINCT "+g[1], g[2])
	}),
	rule("sum", "find|calculate", `sum of (.+) in (.+)`, 2, func(g []string) string {
		return selectFrom(fmt.Sprintf("SUM(%s) AS %s", g[1], mapping.AliasTotalSum), g[2])
	}),
	rule("average", "find|calculate", `average of (.+) in (.+)`, 2, func(g []string) string {
		return selectFrom(fmt.Sprintf("AVG(%s) AS %s", g[1], mapping.AliasAverageValue), g[2])
	}),
	rule("minimum", "find|list", `minimum (.+) in (.+)`, 2, func(g []string) string {
		return selectFrom(fmt.Sprintf("MIN(%s) AS %s", g[1], mapping.AliasMinValue), g[2])
	}),
	rule("maximum", "find|list", `maximum (.+) in (.+)`, 2, func(g []string) string {
		return selectFrom(fmt.Sprintf("MAX(%s) AS %s", g[1], mapping.AliasMaxValue), g[2])
	}),
	rule("distinct-count", "find|count", `distinct (.+) in (.+)`, 2, func(g []string) string {
		return selectFrom(fmt.Sprintf("COUNT(DISTINCT %s) AS %s", g[1], mapping.AliasDistinctCount), g[2])
	}),
	rule("equals", "find|list", `rows where (.+) equals (.+) in (.+)`, 3, func(g []string) string {
		return selectWhere("*", g[3], g[1]+" = "+g[2])
	}),
	rule("greater-than", "find|list", `rows where (.+) greater than (.+) in (.+)`, 3, func(g []string) string {
		return selectWhere("*", g[3], g[1]+" > "+g[2])
	}),
	rule("less-than", "find|list", `rows where (.+) less than (.+) in (.+)`, 3, func(g []string) string {
		return selectWhere("*", g[3], g[1]+" < "+g[2])
	}),
	rule("count-equals", "find|count", `rows where (.+) equals (.+) in (.+)`, 3, func(g []string) string {
		return selectWhere("COUNT(*) AS "+mapping.AliasRowCount, g[3], g[1]+" = "+g[2])
	}),
	rule("top-n", "find|list", `top (\d+) rows in (.+)`, 2, func(g []string) string {
		return fmt.Sprintf("SELECT *\nFROM %s\nLIMIT %s;", g[2], g[1])
	}),
	rule("top-n-ordered", "find|list", `top (\d+) rows ordered by (.+) in (.+)`, 3, func(g []string) string {
		return fmt.Sprintf("SELECT *\nFROM %s\nORDER BY %s\nLIMIT %s;", g[3], g[2], g[1])
	}),
	rule("total-rows", "find|count", `total number of rows in (.+)`, 1, func(g []string) string {
		return selectFrom("COUNT(*)", g[1])
	}),
	rule("starts-with", "find|list", `rows where (.+) starts with '(.+)' in (.+)`, 3, func(g []string) string {
		return selectWhere("*", g[3], fmt.Sprintf("%s LIKE '%s%%'", g[1], g[2]))
	}),
	rule("count-starts-with", "count", `rows where (.+) starts with '(.+)' in (.+)`, 3, func(g []string) string {
		return selectWhere("COUNT(*)", g[3], fmt.Sprintf("%s LIKE '%s%%'", g[1], g[2]))
	}),
	rule("ends-with", "find|list", `rows where (.+) ends with '(.+)' in (.+)`, 3, func(g []string) string {
		return selectWhere("*", g[3], fmt.Sprintf("%s LIKE '%%%s'", g[1], g[2]))
	}),
	rule("count-ends-with", "count", `rows where (.+) ends with '(.+)' in (.+)`, 3, func(g []string) string {
		return selectWhere("COUNT(*)", g[3], fmt.Sprintf("%s LIKE '%%%s'", g[1], g[2]))
	}),
	rule("range", "find|calculate", `range of (.+) in (.+)`, 2, func(g []string) string {
		return selectFrom(fmt.Sprintf("MAX(%s) - MIN(%s)", g[1], g[1]), g[2])
	}),
	rule("between", "find|list", `rows where (.+?)(?:\s+value is)?\s+between (.+) and (.+) in (.+)`, 4, func(g []string) string {
		return selectWhere("*", g[4], fmt.Sprintf("%s BETWEEN %s AND %s", g[1], g[2], g[3]))
	}),
	rule("count-between", "count", `rows where (.+?)(?:\s+value is)?\s+between (.+) and (.+) in (.+)`, 4, func(g []string) string {
		return selectWhere("COUNT(*)", g[4], fmt.Sprintf("%s BETWEEN %s AND %s", g[1], g[2], g[3]))
	}),
	rule("not-equal", "find|list", `rows where (.+) is not equal to (.+) in (.+)`, 3, func(g []string) string {
		return selectWhere("*", g[3], g[1]+" != "+g[2])
	}),
	rule("count-not-equal", "count", `rows where (.+) is not equal to (.+) in (.+)`, 3, func(g []string) string {
		return selectWhere("COUNT(*)", g[3], g[1]+" != "+g[2])
	}),
	rule("contains", "find|list", `rows where (.+) contains '(.+)' in (.+)`, 3, func(g []string) string {
		return selectWhere("*", g[3], fmt.Sprintf("%s LIKE '%%%s%%'", g[1], g[2]))
	}),
	rule("count-contains", "count", `rows where (.+) contains '(.+)' in (.+)`, 3, func(g []string) string {
		return selectWhere("COUNT(*)", g[3], fmt.Sprintf("%s LIKE '%%%s%%'", g[1], g[2]))
	}),
	rule("first-n", "find|list", `first (\d+) rows in (.+)`, 2, func(g []string) string {
		return fmt.Sprintf("SELECT *\nFROM %s\nLIMIT %s;", g[2], g[1])
	}),
	rule("is-null", "find|list", `rows where (.+) is null in (.+)`, 2, func(g []string) string {
		return selectWhere("*", g[2], g[1]+" IS NULL")
	}),
	rule("is-not-null", "find|list", `rows where (.+) is not null in (.+)`, 2, func(g []string) string {
		return selectWhere("*", g[2], g[1]+" IS NOT NULL")
	}),
	rule("count-is-null", "find|count", `rows where (.+) is null in (.+)`, 2, func(g []string) string {
		return selectWhere("COUNT(*)", g[2], g[1]+" IS NULL")
	}),
	rule("count-is-not-null", "find|count", `rows where (.+) is not null in (.+)`, 2, func(g []string) string {
		return selectWhere("COUNT(*)", g[2], g[1]+" IS NOT NULL")
	}),
	rule("in-list", "find|list", `rows where (.+) has any value in \((.+)\) in (.+)`, 3, func(g []string) string {
		return selectWhere("*", g[3], fmt.Sprintf("%s IN (%s)", g[1], g[2]))
	}),
	rule("count-in-list", "find|count", `rows where (.+) has any value in \((.+)\) in (.+)`, 3, func(g []string) string {
		return selectWhere("COUNT(*)", g[3], fmt.Sprintf("%s IN (%s)", g[1], g[2]))
	}),
}

// ============================================================================
// LOOKUP
// ============================================================================

// Find returns the first rule matching phrase, with its rendered SQL
func Find(phrase string) (*Result, bool) {
	phrase = strings.TrimRight(strings.TrimSpace(phrase), ".?!;")
	for i := range Rules {
		r := &Rules[i]
		m := r.Pattern.FindStringSubmatch(phrase)
		if m == nil {
			continue
		}
		for j := 1; j < len(m); j++ {
			m[j] = strings.TrimSpace(m[j])
		}
		return &Result{Rule: r, Groups: m, SQL: r.Format(m)}, true
	}
	return nil, false
}

// MatchTemplate returns the SQL for phrase, or false when no template applies
func MatchTemplate(phrase string) (string, bool) {
	res, ok := Find(phrase)
	if !ok {
		return "", false
	}
	return res.SQL, true
}
