package mapping

import "strings"

// ============================================================================
// PHRASE VOCABULARY - shared by the join resolver and the template catalog
// ============================================================================

// StopWords are dropped from a phrase before multi-table resolution
var StopWords = map[string]bool{
	"a":   true,
	"an":  true,
	"the": true,
	"and": true,
}

// QueryVerbs may lead a phrase. Longer alternatives come first so that
// "show me" is consumed whole instead of leaving "me" in the column list.
var QueryVerbs = []string{
	"find",
	"list",
	"determine",
	"show me",
	"show",
	"get",
	"retrieve",
	"give me",
	"provide",
	"display",
	"fetch",
	"what are",
}

// ContextWords may link the column list to the condition ("... from context where ...")
var ContextWords = []string{"from", "in", "on", "of"}

// ConditionIntros start the condition part of a phrase
var ConditionIntros = []string{
	"where",
	"if",
	"with",
	"satisfying",
	"that (?:meet|fulfill)",
}

// SQLKeywords are upper-cased inside a free-text condition, in this order
var SQLKeywords = []string{
	"between",
	"like",
	"is not null",
	"is null",
	"and",
	"or",
	"not",
	"in",
}

// VerbPattern returns the verb alternation as a regex fragment
func VerbPattern() string {
	return "(?:" + strings.Join(QueryVerbs, "|") + ")"
}

// ContextPattern returns the optional "from context" fragment
func ContextPattern() string {
	return "(?:" + strings.Join(ContextWords, "|") + `)?\s*(?:context)?`
}

// ConditionPattern returns the condition-intro alternation
func ConditionPattern() string {
	return "(?:" + strings.Join(ConditionIntros, "|") + ")"
}
