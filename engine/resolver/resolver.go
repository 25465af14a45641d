package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/omniql-engine/chatdb/engine/errors"
	"github.com/omniql-engine/chatdb/engine/schema"
	"github.com/omniql-engine/chatdb/mapping"
)

// ============================================================================
// PATTERNS
// ============================================================================

// queryPattern splits a phrase into <columns> [context] <intro> <condition>
var queryPattern = regexp.MustCompile(
	`(?i)^` + mapping.VerbPattern() + `?\s*(.+?)\s*` + mapping.ContextPattern() +
		`\s*` + mapping.ConditionPattern() + `\s+(.+)`,
)

// keywordPatterns upper-case SQL keywords as whole words, in mapping.SQLKeywords order
var keywordPatterns = func() []keywordRule {
	rules := make([]keywordRule, 0, len(mapping.SQLKeywords))
	for _, kw := range mapping.SQLKeywords {
		rules = append(rules, keywordRule{
			pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`),
			upper:   strings.ToUpper(kw),
		})
	}
	return rules
}()

type keywordRule struct {
	pattern *regexp.Regexp
	upper   string
}

// ============================================================================
// JOIN DETECTION
// ============================================================================

// NeedsJoin reports whether the whitespace-separated tokens of phrase that
// name a column resolve to more than one table. Each token counts for the
// first table (schema order) declaring it; other tokens are ignored.
func NeedsJoin(phrase string, s *schema.Schema) bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(phrase) {
		tokens[tok] = true
	}

	tables := make(map[string]bool)
	for tok := range tokens {
		for _, t := range s.Tables {
			if t.HasColumn(tok) {
				tables[t.Name] = true
				break
			}
		}
	}
	return len(tables) > 1
}

// ============================================================================
// MULTI-TABLE RESOLUTION
// ============================================================================

// ResolveJoin rewrites a multi-table phrase into a SELECT ... JOIN ... WHERE
// statement. Tables are chained pairwise in the order the column list first
// needs them; each pair joins on the first column of the left table that the
// right table also declares.
func ResolveJoin(phrase string, s *schema.Schema) (string, error) {
	cleaned := stripStopWords(phrase)

	m := queryPattern.FindStringSubmatch(cleaned)
	if m == nil {
		return "", errors.New(errors.KindInvalidQueryFormat, "Query format is invalid. Please use a supported structure.").
			WithSuggestion("Phrase it as: <columns> where <condition>")
	}

	columns := splitColumns(m[1])
	if len(columns) == 0 {
		return "", errors.New(errors.KindInvalidQueryFormat, "Query format is invalid. Please use a supported structure.")
	}
	condition := normalizeCondition(strings.TrimSpace(m[2]))

	idx := s.Index()
	qualified := make([]string, 0, len(columns))
	var required []string
	seen := make(map[string]bool)
	for _, col := range columns {
		table, ok := idx.Owner(col)
		if !ok {
			return "", errors.Newf(errors.KindColumnNotFound, "Column '%s' not found in any table.", col)
		}
		qualified = append(qualified, table+"."+col)
		if !seen[table] {
			seen[table] = true
			required = append(required, table)
		}
	}

	joins := make([]string, 0, len(required))
	for i := 0; i+1 < len(required); i++ {
		left, right := required[i], required[i+1]
		key, ok := JoinKey(s, left, right)
		if !ok {
			return "", errors.Newf(errors.KindNoJoinKey, "No common column found to join '%s' and '%s'.", left, right)
		}
		joins = append(joins, fmt.Sprintf("%s.%s = %s.%s", left, key, right, key))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(qualified, ", "))
	sb.WriteString("\nFROM ")
	sb.WriteString(required[0])
	for i := 1; i < len(required); i++ {
		sb.WriteString("\nJOIN ")
		sb.WriteString(required[i])
		sb.WriteString(" ON ")
		sb.WriteString(joins[i-1])
	}
	sb.WriteString("\nWHERE ")
	sb.WriteString(condition)
	sb.WriteString(";")
	return sb.String(), nil
}

// JoinKey returns the first column of left (declaration order) that right also declares
func JoinKey(s *schema.Schema, left, right string) (string, bool) {
	lt, ok := s.Table(left)
	if !ok {
		return "", false
	}
	rt, ok := s.Table(right)
	if !ok {
		return "", false
	}
	for _, c := range lt.Columns {
		if rt.HasColumn(c) {
			return c, true
		}
	}
	return "", false
}

// ============================================================================
// HELPERS
// ============================================================================

func stripStopWords(phrase string) string {
	words := strings.Fields(phrase)
	kept := words[:0]
	for _, w := range words {
		if !mapping.StopWords[strings.ToLower(w)] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func splitColumns(part string) []string {
	raw := strings.Split(part, ",")
	cols := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

func normalizeCondition(condition string) string {
	for _, kw := range keywordPatterns {
		condition = kw.pattern.ReplaceAllString(condition, kw.upper)
	}
	return condition
}
